package trackstore

import "encoding/binary"

// Track owns one track file: a 24-byte header followed by a sequence of
// C-byte chunk frames (spec §3, §4.2). It holds the free-list head/tail
// cursors, the logical bump cursor, and allocates/reads/writes/frees
// individual chunk slots. A Track never deletes or truncates its file.
type Track struct {
	file *trackFile
	id   uint16

	chunkSize uint64
	trackSize uint64

	freeStart uint64 // offset of first freed chunk, 0 if the free list is empty
	freeEnd   uint64 // offset of the last freed chunk in the chain, 0 if empty
	size      uint64 // persisted bump cursor (spec §9: fixed as "next bump offset")
	realSize  uint64 // actual on-disk file length, observed at init
}

// Chunk is the logical decoded form of one on-disk frame: a payload and
// the offset of the next chunk in its list, or 0 at the tail.
type Chunk struct {
	Next uint64
	Data []byte
}

// newTrack wraps an open file as track id, with the given chunk/track
// sizes. Callers must call init before any other operation.
func newTrack(id uint16, f *trackFile, chunkSize, trackSize uint64) *Track {
	return &Track{file: f, id: id, chunkSize: chunkSize, trackSize: trackSize}
}

// init reads the track's header, or writes a fresh default header into an
// empty file. Idempotent: calling it again on an already-initialized
// Track is a no-op because file.length() no longer reports zero.
func (t *Track) init() error {
	t.realSize = uint64(t.file.length())
	if t.realSize == 0 {
		t.freeStart, t.freeEnd, t.size = 0, 0, trackHeaderSize
		if err := t.flush(); err != nil {
			return err
		}
		t.realSize = trackHeaderSize
		return nil
	}

	header := make([]byte, trackHeaderSize)
	if err := t.file.readExactAt(header, 0); err != nil {
		return err
	}
	t.freeStart = binary.BigEndian.Uint64(header[0:8])
	t.freeEnd = binary.BigEndian.Uint64(header[8:16])
	t.size = binary.BigEndian.Uint64(header[16:24])

	// size is the bump cursor: every byte below it must actually exist on
	// disk. A header claiming more than the file's real length is
	// corrupt — no future alloc/read against it can be trusted (spec §8
	// boundary scenario 6).
	if t.size > t.realSize {
		return &IntegrityViolationError{
			Path:   t.file.path,
			Reason: "header size exceeds on-disk file length",
		}
	}
	return nil
}

// read loads and decodes the chunk frame at offset.
func (t *Track) read(offset uint64) (Chunk, error) {
	frame := make([]byte, t.chunkSize)
	if err := t.file.readExactAt(frame, int64(offset)); err != nil {
		return Chunk{}, err
	}
	next, payload, err := decodeChunk(frame)
	if err != nil {
		return Chunk{}, &IntegrityViolationError{Path: t.file.path, Reason: err.Error()}
	}
	// Copy the payload out: frame is local to this call, so no aliasing
	// hazard, but decodeChunk's contract is "borrowed slice" in general.
	data := make([]byte, len(payload))
	copy(data, payload)
	return Chunk{Next: next, Data: data}, nil
}

// write encodes chunk and writes it at offset. It never touches the
// header; callers that change the bump cursor or free-list cursors must
// flush separately.
func (t *Track) write(chunk Chunk, offset uint64) error {
	frame, err := encodeChunk(t.chunkSize, chunk.Next, chunk.Data)
	if err != nil {
		return err
	}
	return t.file.writeAt(frame, int64(offset))
}

// alloc reserves a C-sized slot for the caller to write into: bump first,
// falling back to the free list, per spec §4.2. It returns errTrackFull
// when the track is full.
func (t *Track) alloc() (offset uint64, err error) {
	if t.realSize+t.chunkSize <= t.trackSize {
		offset = t.realSize
		t.realSize += t.chunkSize
		t.size += t.chunkSize
		return offset, nil
	}

	if t.freeStart != 0 {
		next, err := t.readNextField(t.freeStart)
		if err != nil {
			return 0, err
		}
		freed := t.freeStart
		t.freeStart = next
		if t.freeStart == 0 {
			t.freeEnd = 0
		}
		return freed, nil
	}

	return 0, errTrackFull
}

// remove splices the chunk offsets of one blob's run — in the order they
// appear in the blob — onto this track's free list as a single contiguous
// segment (spec §4.2). offsets must be non-empty.
//
// The run's internal chain (each offset's on-disk next pointing at the
// following offset) is left untouched; only the tail's next field is
// rewritten, unconditionally, to the list terminator 0. For the blob's
// true final chunk this is a no-op (it's already 0); for an interior run
// that continues into another track, this overwrites what would otherwise
// be a dangling cross-track pointer, keeping this track's free list
// self-contained.
func (t *Track) remove(offsets []uint64) error {
	if len(offsets) == 0 {
		return &ValidationError{Field: "offsets", Message: "remove requires at least one offset"}
	}

	tail := offsets[len(offsets)-1]
	if err := t.writeNextField(tail, 0); err != nil {
		return err
	}

	if t.freeStart == 0 {
		t.freeStart = offsets[0]
	} else {
		if err := t.writeNextField(t.freeEnd, offsets[0]); err != nil {
			return err
		}
	}
	t.freeEnd = tail

	return t.flush()
}

// flush persists the three header fields and fsyncs the track file.
func (t *Track) flush() error {
	header := make([]byte, trackHeaderSize)
	binary.BigEndian.PutUint64(header[0:8], t.freeStart)
	binary.BigEndian.PutUint64(header[8:16], t.freeEnd)
	binary.BigEndian.PutUint64(header[16:24], t.size)

	if err := t.file.writeAt(header, 0); err != nil {
		return err
	}
	return t.file.flush()
}

// readNextField reads just the 8-byte next pointer of the frame at offset,
// without decoding the whole chunk.
func (t *Track) readNextField(offset uint64) (uint64, error) {
	buf := make([]byte, 8)
	if err := t.file.readExactAt(buf, int64(offset)); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(buf), nil
}

// writeNextField patches the 8-byte next pointer of the frame at offset.
func (t *Track) writeNextField(offset, next uint64) error {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, next)
	return t.file.writeAt(buf, int64(offset))
}

// freeListChain walks the free list from freeStart to freeEnd, bounded by
// the maximum number of chunk slots the track could possibly hold, and
// returns IntegrityViolationError if it would read past the track's
// on-disk length or fails to terminate within that bound (spec §4.2
// Failure modes, §8 Free-list acyclicity).
func (t *Track) freeListChain() ([]uint64, error) {
	if t.freeStart == 0 {
		return nil, nil
	}

	maxSteps := t.realSize / t.chunkSize
	chain := make([]uint64, 0, maxSteps)
	offset := t.freeStart
	for steps := uint64(0); ; steps++ {
		if steps >= maxSteps {
			return nil, &IntegrityViolationError{Path: t.file.path, Reason: "free list exceeds track capacity: likely a cycle"}
		}
		if offset >= t.realSize {
			return nil, &IntegrityViolationError{Path: t.file.path, Reason: "free list offset beyond on-disk length"}
		}
		chain = append(chain, offset)
		next, err := t.readNextField(offset)
		if err != nil {
			return nil, err
		}
		if next == 0 {
			if offset != t.freeEnd {
				return nil, &IntegrityViolationError{Path: t.file.path, Reason: "free list terminator does not match free_end"}
			}
			return chain, nil
		}
		offset = next
	}
}
