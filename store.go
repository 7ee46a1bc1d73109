package trackstore

import (
	"io"

	"github.com/absfs/absfs"
)

// Store is the kernel façade (spec §4.7, §6): an opaque key/value blob
// store over one directory, combining an Index (key -> allocation map)
// with a Disk (allocation map -> bytes). Store is not safe for concurrent
// use — spec §5 fixes the core as single-writer, synchronous, with no
// suspension points; serialize callers externally if needed.
type Store struct {
	index *Index
	disk  *Disk
}

// Open validates config, creates the directory if missing, and opens (or
// initializes) both the index and the track files beneath it.
func Open(fs absfs.FileSystem, config Config) (*Store, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	disk, err := openDisk(fs, config.Dir, config.chunkSize(), config.TrackSize)
	if err != nil {
		return nil, err
	}

	index, err := openIndex(config.Dir)
	if err != nil {
		_ = disk.close()
		return nil, err
	}

	return &Store{index: index, disk: disk}, nil
}

// Write stores the bytes read from source under key. It returns
// AlreadyExistsError if key already has an entry — callers that want
// overwrite semantics must Delete first (spec §4.7).
func (s *Store) Write(key []byte, source io.Reader) error {
	exists, err := s.index.has(key)
	if err != nil {
		return err
	}
	if exists {
		return &AlreadyExistsError{Key: key}
	}

	m, err := s.disk.write(source)
	if err != nil {
		return err
	}
	return s.index.set(key, m)
}

// Read streams key's bytes to sink, in order. It returns NotFoundError if
// key has no entry.
func (s *Store) Read(key []byte, sink io.Writer) error {
	m, ok, err := s.index.get(key)
	if err != nil {
		return err
	}
	if !ok {
		return &NotFoundError{Key: key}
	}
	return s.disk.read(m, sink)
}

// Delete reclaims key's chunks and removes its index entry. Per spec
// §4.7's crash-tolerance note, the chunks are spliced onto their tracks'
// free lists (and that splice flushed) before the index entry is dropped:
// a crash between the two leaves the chunks freed but the key still
// resolving to them, which a subsequent Read would surface as garbage
// rather than silently losing already-freed space. It returns
// NotFoundError if key has no entry.
func (s *Store) Delete(key []byte) error {
	m, ok, err := s.index.get(key)
	if err != nil {
		return err
	}
	if !ok {
		return &NotFoundError{Key: key}
	}
	if err := s.disk.remove(m); err != nil {
		return err
	}
	return s.index.remove(key)
}

// Stat reports whether key exists and, if so, how many chunks its blob
// occupies across all tracks.
func (s *Store) Stat(key []byte) (chunks int, ok bool, err error) {
	m, ok, err := s.index.get(key)
	if err != nil || !ok {
		return 0, ok, err
	}
	return m.totalChunks(), true, nil
}

// Close closes the index and every open track file. It does not rewrite
// track headers; each completed Write and Delete has already flushed the
// headers it changed.
func (s *Store) Close() error {
	diskErr := s.disk.close()
	indexErr := s.index.close()
	if diskErr != nil {
		return diskErr
	}
	return indexErr
}
