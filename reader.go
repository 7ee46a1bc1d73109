package trackstore

import "io"

// streamReader walks an allocation map's chunk locations, in order, and
// writes each chunk's payload to a sink. It never consults a chunk's
// on-disk next field for traversal — the allocation map alone is
// authoritative for which chunks belong to a blob and in what order
// (spec §4.4, §9).
type streamReader struct {
	disk *Disk
}

func newStreamReader(disk *Disk) *streamReader {
	return &streamReader{disk: disk}
}

func (r *streamReader) read(m *AllocMap, sink io.Writer) error {
	for _, loc := range m.allOffsets() {
		track, ok := r.disk.tracks[loc.TrackID]
		if !ok {
			return &IntegrityViolationError{
				Path:   r.disk.dir,
				Reason: "allocation map references a track that is not open",
			}
		}
		chunk, err := track.read(loc.Offset)
		if err != nil {
			return err
		}
		if _, err := sink.Write(chunk.Data); err != nil {
			return NewIOError("write", "sink", err)
		}
	}
	return nil
}
