package trackstore

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// alloc.go implements the allocation map: the durable, authoritative
// record of every chunk offset a blob occupies, grouped by track, in the
// order the blob's chunks appear (spec §4.6). The map — not any on-disk
// next pointer — is what a reader and a delete walk.

// TrackRun is one track's contiguous contribution to a blob's chunk list:
// the offsets, within that track, holding the blob's chunks, in order.
type TrackRun struct {
	TrackID uint16
	Offsets []uint64
}

// AllocMap is the ordered list of per-track runs that make up one blob.
type AllocMap struct {
	Runs []TrackRun
}

// encode serializes the map per spec §4.6: for each run, a 2-byte
// track id, a 4-byte offset count, then that many 8-byte offsets, all
// big-endian, with no trailing delimiter between runs.
func (m *AllocMap) encode() []byte {
	var buf bytes.Buffer
	for _, run := range m.Runs {
		var header [6]byte
		binary.BigEndian.PutUint16(header[0:2], run.TrackID)
		binary.BigEndian.PutUint32(header[2:6], uint32(len(run.Offsets)))
		buf.Write(header[:])
		for _, off := range run.Offsets {
			var b [8]byte
			binary.BigEndian.PutUint64(b[:], off)
			buf.Write(b[:])
		}
	}
	return buf.Bytes()
}

// decodeAllocMap parses an encoded map. Per spec §4.6, a truncated final
// record (a partial header, or a count promising more offsets than remain)
// is tolerated: decoding stops and returns the runs parsed so far rather
// than an error, on the theory that an interrupted flush left a clean
// prefix of complete records.
func decodeAllocMap(data []byte) (*AllocMap, error) {
	r := bytes.NewReader(data)
	m := &AllocMap{}

	for {
		var header [6]byte
		if _, err := io.ReadFull(r, header[:]); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				return m, nil
			}
			return nil, fmt.Errorf("trackstore: alloc map: %w", err)
		}

		trackID := binary.BigEndian.Uint16(header[0:2])
		count := binary.BigEndian.Uint32(header[2:6])

		offsets := make([]uint64, 0, count)
		truncated := false
		for i := uint32(0); i < count; i++ {
			var b [8]byte
			if _, err := io.ReadFull(r, b[:]); err != nil {
				if err == io.EOF || err == io.ErrUnexpectedEOF {
					truncated = true
					break
				}
				return nil, fmt.Errorf("trackstore: alloc map: %w", err)
			}
			offsets = append(offsets, binary.BigEndian.Uint64(b[:]))
		}

		if truncated {
			return m, nil
		}
		if len(offsets) > 0 {
			m.Runs = append(m.Runs, TrackRun{TrackID: trackID, Offsets: offsets})
		}
	}
}

// ChunkLocation names one chunk slot: which track holds it and at what
// byte offset within that track.
type ChunkLocation struct {
	TrackID uint16
	Offset  uint64
}

// allOffsets flattens the map back into blob order, for callers (the
// streaming reader) that just need the full chunk sequence regardless of
// track boundaries.
func (m *AllocMap) allOffsets() []ChunkLocation {
	var out []ChunkLocation
	for _, run := range m.Runs {
		for _, off := range run.Offsets {
			out = append(out, ChunkLocation{TrackID: run.TrackID, Offset: off})
		}
	}
	return out
}

// totalChunks returns the number of chunk slots recorded across all runs.
func (m *AllocMap) totalChunks() int {
	n := 0
	for _, run := range m.Runs {
		n += len(run.Offsets)
	}
	return n
}
