package trackstore

import (
	"bufio"
	"io"
)

// streamWriter consumes an io.Reader and allocates and writes a blob's
// chunks across one or more tracks, producing the finished allocation
// map. It holds exactly one un-written chunk at a time: a chunk's on-disk
// next field must name the following chunk's offset, so the writer can't
// flush a chunk until it has already allocated (though not yet written)
// the one after it — a one-chunk lookahead cache, not a whole-blob buffer
// (spec §4.3).
type streamWriter struct {
	disk    *Disk
	payload uint64
	track   *Track

	runs  map[uint16]*TrackRun
	order []uint16 // first-seen track order, so the finished map stays ordered
}

func newStreamWriter(disk *Disk, track *Track, payload uint64) *streamWriter {
	return &streamWriter{
		disk:    disk,
		payload: payload,
		track:   track,
		runs:    make(map[uint16]*TrackRun),
	}
}

type pendingChunk struct {
	trackID uint16
	offset  uint64
	data    []byte
	last    bool
}

// allocNext reserves the next chunk slot, advancing through the existing
// track id sequence as each track fills and only asking the Disk for a
// fresh track once the next id doesn't exist yet (spec §4.3 step 3a:
// "advance to the next track id; if that track doesn't exist, pause and
// signal needs-new-track"). This walk, not just a single fresh-track
// fallback, is what lets a write started at track 1 pass through and
// reuse free slots in every already-existing track before growing the
// disk.
func (w *streamWriter) allocNext() (uint16, uint64, error) {
	for {
		offset, err := w.track.alloc()
		if err == nil {
			return w.track.id, offset, nil
		}
		if err != errTrackFull {
			return 0, 0, err
		}

		next, ok := w.disk.tracks[w.track.id+1]
		if !ok {
			fresh, nerr := w.disk.newTrack()
			if nerr != nil {
				return 0, 0, nerr
			}
			next = fresh
		}
		w.track = next
	}
}

func (w *streamWriter) recordOffset(trackID uint16, offset uint64) {
	run, ok := w.runs[trackID]
	if !ok {
		run = &TrackRun{TrackID: trackID}
		w.runs[trackID] = run
		w.order = append(w.order, trackID)
	}
	run.Offsets = append(run.Offsets, offset)
}

// readChunk reads up to w.payload bytes from br. A short read at EOF marks
// the chunk as the blob's last. A read that fills the buffer exactly is
// peeked one byte further: io.ReadFull alone can't tell a chunk that
// exactly exhausts the source from one that merely hits a chunk boundary,
// and treating the former as "more to come" would allocate and write a
// phantom trailing chunk with a zero-length payload — which the frame
// format (spec §3's size==0 sentinel for "full chunk") can't represent
// distinctly from an actual full chunk.
func (w *streamWriter) readChunk(br *bufio.Reader) (pendingChunk, error) {
	buf := make([]byte, w.payload)
	n, err := io.ReadFull(br, buf)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return pendingChunk{}, NewIOError("read", "source", err)
	}
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return pendingChunk{data: buf[:n], last: true}, nil
	}

	if _, peekErr := br.Peek(1); peekErr != nil {
		return pendingChunk{data: buf, last: true}, nil
	}
	return pendingChunk{data: buf, last: false}, nil
}

// write drains source to completion, writing every chunk frame exactly
// once with its final next pointer, and returns the finished allocation
// map. A genuinely empty blob (zero bytes total) allocates no chunks at
// all and produces an empty map, rather than one chunk with an empty
// payload.
func (w *streamWriter) write(source io.Reader) (*AllocMap, error) {
	br := bufio.NewReader(source)

	pending, err := w.readChunk(br)
	if err != nil {
		return nil, err
	}
	if pending.last && len(pending.data) == 0 {
		return &AllocMap{}, nil
	}

	trackID, offset, err := w.allocNext()
	if err != nil {
		return nil, err
	}
	pending.trackID, pending.offset = trackID, offset

	for !pending.last {
		nextTrackID, nextOffset, err := w.allocNext()
		if err != nil {
			return nil, err
		}
		owner := w.disk.tracks[pending.trackID]
		if err := owner.write(Chunk{Next: nextOffset, Data: pending.data}, pending.offset); err != nil {
			return nil, err
		}
		w.recordOffset(pending.trackID, pending.offset)

		next, err := w.readChunk(br)
		if err != nil {
			return nil, err
		}
		next.trackID, next.offset = nextTrackID, nextOffset
		pending = next
	}

	owner := w.disk.tracks[pending.trackID]
	if err := owner.write(Chunk{Next: 0, Data: pending.data}, pending.offset); err != nil {
		return nil, err
	}
	w.recordOffset(pending.trackID, pending.offset)

	// Every track that received a write in this operation must persist
	// its header (the bump cursor moved), even though no chunk was freed
	// (spec §4.3 step 4: "flush() on every track that received writes").
	for _, id := range w.order {
		if err := w.disk.tracks[id].flush(); err != nil {
			return nil, err
		}
	}

	m := &AllocMap{Runs: make([]TrackRun, 0, len(w.order))}
	for _, id := range w.order {
		m.Runs = append(m.Runs, *w.runs[id])
	}
	return m, nil
}
