package trackstore

import (
	"encoding/binary"
	"fmt"
)

// chunk.go implements the pure chunk codec (spec §4.1): a logical chunk
// record {next, payload} encodes to and decodes from a fixed C-byte frame.
// It touches no file or index state and is safe to share across goroutines
// — though the core itself is single-writer (spec §5).
//
// Frame layout (spec §3), all integers big-endian:
//
//	offset  width  field
//	0       8      next   — byte offset of the next chunk, 0 means end of list
//	8       2      size   — payload length; 0 encodes the full payload D
//	10      <=D    payload, zero-padded to D on write

// encodeChunk writes next and payload into a newly allocated C-byte frame.
// It returns an error if payload is longer than D (frameSize - 10).
func encodeChunk(frameSize uint64, next uint64, payload []byte) ([]byte, error) {
	d := frameSize - chunkHeaderSize
	if uint64(len(payload)) > d {
		return nil, fmt.Errorf("trackstore: payload of %d bytes exceeds chunk capacity %d", len(payload), d)
	}

	frame := make([]byte, frameSize)
	binary.BigEndian.PutUint64(frame[0:8], next)

	size := uint16(len(payload))
	if uint64(len(payload)) == d {
		// A fully-loaded chunk is encoded as size==0 (spec §3, §9: the
		// newer draft's resolution of the size==0 ambiguity).
		size = 0
	}
	binary.BigEndian.PutUint16(frame[8:10], size)

	copy(frame[chunkHeaderSize:], payload)
	return frame, nil
}

// decodeChunk parses a C-byte frame back into (next, payload). next is 0
// when the frame is the tail of its list. The returned payload aliases
// frame — callers that retain it past the frame's next use must copy.
func decodeChunk(frame []byte) (next uint64, payload []byte, err error) {
	if len(frame) < chunkHeaderSize {
		return 0, nil, fmt.Errorf("trackstore: chunk frame of %d bytes is shorter than the %d-byte header", len(frame), chunkHeaderSize)
	}

	next = binary.BigEndian.Uint64(frame[0:8])
	size := binary.BigEndian.Uint16(frame[8:10])

	d := len(frame) - chunkHeaderSize
	length := int(size)
	if size == 0 {
		length = d
	}
	if length > len(frame)-chunkHeaderSize {
		return 0, nil, fmt.Errorf("trackstore: chunk declares payload length %d beyond frame capacity %d", length, d)
	}

	return next, frame[chunkHeaderSize : chunkHeaderSize+length], nil
}
