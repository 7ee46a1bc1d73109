package trackstore

import (
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/absfs/absfs"
)

const trackFileSuffix = ".track"

func trackFileName(id uint16) string {
	return strconv.FormatUint(uint64(id), 10) + trackFileSuffix
}

// Disk owns every track file under one store directory. It creates new
// tracks on demand, dispatches reads and writes to the tracks that hold a
// blob's chunks, and fans a delete out across every track a blob touched
// (spec §4.2-§4.4).
type Disk struct {
	fs  absfs.FileSystem
	dir string

	chunkSize uint64
	trackSize uint64

	tracks map[uint16]*Track
	nextID uint16
}

// openDisk scans dir for existing "<id>.track" files, opens and
// initializes each one, and creates the first track if the directory was
// empty.
func openDisk(fs absfs.FileSystem, dir string, chunkSize, trackSize uint64) (*Disk, error) {
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return nil, NewIOError("mkdir", dir, err)
	}

	d := &Disk{
		fs:        fs,
		dir:       dir,
		chunkSize: chunkSize,
		trackSize: trackSize,
		tracks:    make(map[uint16]*Track),
		nextID:    1, // track ids start at 1; 0 is never assigned
	}

	ids, err := d.discoverTrackIDs()
	if err != nil {
		return nil, err
	}

	for _, id := range ids {
		if err := d.openExistingTrack(id); err != nil {
			return nil, err
		}
		if id >= d.nextID {
			d.nextID = id + 1
		}
	}

	if len(d.tracks) == 0 {
		if _, err := d.newTrack(); err != nil {
			return nil, err
		}
	}

	return d, nil
}

func (d *Disk) discoverTrackIDs() ([]uint16, error) {
	dirFile, err := d.fs.Open(d.dir)
	if err != nil {
		return nil, NewIOError("open", d.dir, err)
	}
	names, err := dirFile.Readdirnames(-1)
	closeErr := dirFile.Close()
	if err != nil {
		return nil, NewIOError("readdir", d.dir, err)
	}
	if closeErr != nil {
		return nil, NewIOError("close", d.dir, closeErr)
	}

	var ids []uint16
	for _, name := range names {
		if !strings.HasSuffix(name, trackFileSuffix) {
			continue
		}
		raw := strings.TrimSuffix(name, trackFileSuffix)
		n, perr := strconv.ParseUint(raw, 10, 16)
		if perr != nil {
			continue
		}
		ids = append(ids, uint16(n))
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (d *Disk) openExistingTrack(id uint16) error {
	path := filepath.Join(d.dir, trackFileName(id))
	f, err := d.fs.OpenFile(path, os.O_RDWR, 0o644)
	if err != nil {
		return NewIOError("open", path, err)
	}
	tf, err := openTrackFile(f, path)
	if err != nil {
		return err
	}
	track := newTrack(id, tf, d.chunkSize, d.trackSize)
	if err := track.init(); err != nil {
		return err
	}
	d.tracks[id] = track
	return nil
}

// newTrack creates, initializes, and registers a fresh track file. It is
// the callback a streamWriter invokes when it has walked off the end of
// the existing track id sequence and still has data to place (spec
// §4.3/§9's resolution of the writer/disk cyclic-ownership problem: the
// writer can't create a track itself because Disk alone owns the
// registry, so it asks Disk to do so and takes back the result).
func (d *Disk) newTrack() (*Track, error) {
	if d.nextID == 0 {
		return nil, &ValidationError{Message: "track id space exhausted"}
	}
	id := d.nextID
	path := filepath.Join(d.dir, trackFileName(id))
	f, err := d.fs.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, NewIOError("create", path, err)
	}
	tf, err := openTrackFile(f, path)
	if err != nil {
		return nil, err
	}
	track := newTrack(id, tf, d.chunkSize, d.trackSize)
	if err := track.init(); err != nil {
		return nil, err
	}
	d.tracks[id] = track
	d.nextID++
	return track, nil
}

// firstTrack returns track id 1, the fixed starting point for every write
// (spec §4.3 step 1: "Start at track id 1"). Track ids are dense from 1
// and tracks are never removed from the registry, so it always exists
// once the store has been opened.
func (d *Disk) firstTrack() *Track {
	return d.tracks[1]
}

// write streams source into one or more tracks, always starting from
// track id 1 so that free slots in earlier tracks are reused before later
// ones are touched, spilling into later or fresh tracks as needed, and
// returns the finished allocation map.
func (d *Disk) write(source io.Reader) (*AllocMap, error) {
	w := newStreamWriter(d, d.firstTrack(), d.chunkSize-chunkHeaderSize)
	return w.write(source)
}

// read streams every chunk named by m, in order, into sink (spec §4.4).
func (d *Disk) read(m *AllocMap, sink io.Writer) error {
	return newStreamReader(d).read(m, sink)
}

// remove fans a blob's allocation map out across the tracks it touches,
// splicing each track's run onto that track's free list (spec §4.2). A run
// naming a track absent from the registry is skipped rather than treated as
// an error: that can't happen for a map that actually came from this store,
// so there is nothing to police here (spec §4.5).
func (d *Disk) remove(m *AllocMap) error {
	for _, run := range m.Runs {
		track, ok := d.tracks[run.TrackID]
		if !ok {
			continue
		}
		if err := track.remove(run.Offsets); err != nil {
			return err
		}
	}
	return nil
}

func (d *Disk) close() error {
	var first error
	for _, track := range d.tracks {
		if err := track.file.close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
