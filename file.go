package trackstore

import (
	"fmt"
	"io"

	"github.com/absfs/absfs"
)

// trackFile is the concrete realization of spec §6's file-handle
// collaborator: random-access read/write on a byte file, with a cached
// logical cursor so a run of sequential reads or writes at increasing
// offsets doesn't reissue a Seek syscall per call. It wraps an
// absfs.File, which gives tracks a backend-agnostic home — osfs on a real
// disk, memfs in tests — without this package depending on either
// directly (see DESIGN.md).
type trackFile struct {
	f      absfs.File
	path   string
	cursor int64 // last position the underlying file was seeked to, or -1 if unknown
	size   int64 // cached on-disk length
}

func openTrackFile(f absfs.File, path string) (*trackFile, error) {
	info, err := f.Stat()
	if err != nil {
		return nil, NewIOError("stat", path, err)
	}
	return &trackFile{f: f, path: path, cursor: -1, size: info.Size()}, nil
}

// seekTo positions the file at offset, skipping the syscall if the cached
// cursor already sits there.
func (t *trackFile) seekTo(offset int64) error {
	if t.cursor == offset {
		return nil
	}
	if _, err := t.f.Seek(offset, io.SeekStart); err != nil {
		t.cursor = -1
		return NewIOErrorAt("seek", t.path, offset, err)
	}
	t.cursor = offset
	return nil
}

// readAt reads up to len(buf) bytes starting at offset, returning the
// number of bytes actually read (which may be less than len(buf) at EOF).
func (t *trackFile) readAt(buf []byte, offset int64) (int, error) {
	if err := t.seekTo(offset); err != nil {
		return 0, err
	}
	n, err := t.f.Read(buf)
	t.cursor += int64(n)
	if err != nil && err != io.EOF {
		return n, NewIOErrorAt("read", t.path, offset, err)
	}
	return n, nil
}

// readExactAt reads exactly len(buf) bytes starting at offset, returning
// an IntegrityViolationError if the underlying file is shorter.
func (t *trackFile) readExactAt(buf []byte, offset int64) error {
	if err := t.seekTo(offset); err != nil {
		return err
	}
	n, err := io.ReadFull(t.f, buf)
	t.cursor += int64(n)
	if err != nil {
		return &IntegrityViolationError{
			Path:   t.path,
			Reason: fmt.Sprintf("short read at offset %d: %v", offset, err),
		}
	}
	return nil
}

// writeAt writes all of buf starting at offset, growing the cached size
// if the write extends past the current end.
func (t *trackFile) writeAt(buf []byte, offset int64) error {
	if err := t.seekTo(offset); err != nil {
		return err
	}
	n, err := t.f.Write(buf)
	t.cursor += int64(n)
	if err != nil {
		return NewIOErrorAt("write", t.path, offset, err)
	}
	if end := offset + int64(len(buf)); end > t.size {
		t.size = end
	}
	return nil
}

// length returns the cached on-disk length of the file.
func (t *trackFile) length() int64 {
	return t.size
}

// resize grows or shrinks the file to exactly n bytes via Truncate.
func (t *trackFile) resize(n int64) error {
	if err := t.f.Truncate(n); err != nil {
		return NewIOError("truncate", t.path, err)
	}
	t.size = n
	return nil
}

// flush fsyncs the underlying file.
func (t *trackFile) flush() error {
	if err := t.f.Sync(); err != nil {
		return NewIOError("sync", t.path, err)
	}
	return nil
}

func (t *trackFile) close() error {
	return t.f.Close()
}
