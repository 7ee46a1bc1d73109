package trackstore

import (
	"encoding/binary"
	"os"
	"testing"

	"github.com/absfs/memfs"
)

func newTestTrack(t *testing.T, chunkSize, trackSize uint64) *Track {
	t.Helper()
	fs, err := memfs.NewFS()
	if err != nil {
		t.Fatalf("memfs.NewFS: %v", err)
	}
	f, err := fs.OpenFile("/1.track", os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	tf, err := openTrackFile(f, "/1.track")
	if err != nil {
		t.Fatalf("openTrackFile: %v", err)
	}
	track := newTrack(1, tf, chunkSize, trackSize)
	if err := track.init(); err != nil {
		t.Fatalf("init: %v", err)
	}
	return track
}

func TestTrack_InitIsIdempotent(t *testing.T) {
	tr := newTestTrack(t, 64, 64*4+trackHeaderSize)
	if tr.realSize != trackHeaderSize {
		t.Fatalf("realSize after first init = %d, want %d", tr.realSize, trackHeaderSize)
	}

	// Re-running init against the already-populated file must recover the
	// same header state rather than resetting it.
	if err := tr.init(); err != nil {
		t.Fatalf("second init: %v", err)
	}
	if tr.realSize != trackHeaderSize || tr.freeStart != 0 || tr.freeEnd != 0 {
		t.Fatalf("init was not idempotent: realSize=%d freeStart=%d freeEnd=%d", tr.realSize, tr.freeStart, tr.freeEnd)
	}
}

func TestTrack_AllocBumpsUntilTrackFull(t *testing.T) {
	tr := newTestTrack(t, 64, 64*2+trackHeaderSize)

	off1, err := tr.alloc()
	if err != nil {
		t.Fatalf("alloc 1: %v", err)
	}
	if off1 != trackHeaderSize {
		t.Fatalf("first alloc offset = %d, want %d", off1, trackHeaderSize)
	}

	off2, err := tr.alloc()
	if err != nil {
		t.Fatalf("alloc 2: %v", err)
	}
	if off2 != trackHeaderSize+64 {
		t.Fatalf("second alloc offset = %d, want %d", off2, trackHeaderSize+64)
	}

	if _, err := tr.alloc(); err != errTrackFull {
		t.Fatalf("alloc on a full track: got %v, want errTrackFull", err)
	}
}

func TestTrack_WriteReadRoundTrip(t *testing.T) {
	tr := newTestTrack(t, 64, 64*2+trackHeaderSize)

	off, err := tr.alloc()
	if err != nil {
		t.Fatalf("alloc: %v", err)
	}
	want := Chunk{Next: 0, Data: []byte("hello, track")}
	if err := tr.write(want, off); err != nil {
		t.Fatalf("write: %v", err)
	}

	got, err := tr.read(off)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got.Next != want.Next || string(got.Data) != string(want.Data) {
		t.Fatalf("read = %+v, want %+v", got, want)
	}
}

func TestTrack_RemoveThenReallocReusesSlot(t *testing.T) {
	tr := newTestTrack(t, 64, 64*2+trackHeaderSize)

	off1, _ := tr.alloc()
	off2, _ := tr.alloc()

	if err := tr.remove([]uint64{off1}); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if tr.freeStart != off1 || tr.freeEnd != off1 {
		t.Fatalf("free list after remove: start=%d end=%d, want both %d", tr.freeStart, tr.freeEnd, off1)
	}

	// The track is already at capacity (off1, off2 both used), so the next
	// alloc must come from the free list, reusing off1.
	reused, err := tr.alloc()
	if err != nil {
		t.Fatalf("alloc after remove: %v", err)
	}
	if reused != off1 {
		t.Fatalf("reused offset = %d, want %d", reused, off1)
	}
	if tr.freeStart != 0 || tr.freeEnd != 0 {
		t.Fatalf("free list should be empty after popping its only entry: start=%d end=%d", tr.freeStart, tr.freeEnd)
	}

	if _, err := tr.alloc(); err != errTrackFull {
		t.Fatalf("alloc once both slots are reused: got %v, want errTrackFull", err)
	}
	_ = off2
}

func TestTrack_RemoveSplicesContiguousRunAndTerminatesTail(t *testing.T) {
	tr := newTestTrack(t, 64, 64*4+trackHeaderSize)

	a, _ := tr.alloc()
	b, _ := tr.alloc()
	c, _ := tr.alloc()

	// Simulate an interior run: a's on-disk next pointed at b, b's at c,
	// and c's (wrongly, for this test) at some offset outside this track.
	if err := tr.write(Chunk{Next: b, Data: []byte("a")}, a); err != nil {
		t.Fatal(err)
	}
	if err := tr.write(Chunk{Next: c, Data: []byte("b")}, b); err != nil {
		t.Fatal(err)
	}
	if err := tr.write(Chunk{Next: 99999, Data: []byte("c")}, c); err != nil {
		t.Fatal(err)
	}

	if err := tr.remove([]uint64{a, b, c}); err != nil {
		t.Fatalf("remove: %v", err)
	}

	// The tail's dangling cross-track pointer must have been overwritten
	// with the list terminator.
	next, err := tr.readNextField(c)
	if err != nil {
		t.Fatalf("readNextField: %v", err)
	}
	if next != 0 {
		t.Fatalf("tail next field = %d, want 0 (terminated)", next)
	}

	chain, err := tr.freeListChain()
	if err != nil {
		t.Fatalf("freeListChain: %v", err)
	}
	want := []uint64{a, b, c}
	if len(chain) != len(want) {
		t.Fatalf("free list chain = %v, want %v", chain, want)
	}
	for i := range want {
		if chain[i] != want[i] {
			t.Fatalf("free list chain = %v, want %v", chain, want)
		}
	}
}

func TestTrack_InitRejectsHeaderSizeBeyondFileLength(t *testing.T) {
	fs, err := memfs.NewFS()
	if err != nil {
		t.Fatalf("memfs.NewFS: %v", err)
	}
	f, err := fs.OpenFile("/1.track", os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	tf, err := openTrackFile(f, "/1.track")
	if err != nil {
		t.Fatalf("openTrackFile: %v", err)
	}

	// A header whose size field claims more bytes than the file actually
	// has: freeStart=0, freeEnd=0, size far beyond the 24-byte file length
	// that results from writing just this header.
	header := make([]byte, trackHeaderSize)
	binary.BigEndian.PutUint64(header[16:24], trackHeaderSize+1<<20)
	if err := tf.writeAt(header, 0); err != nil {
		t.Fatalf("writeAt: %v", err)
	}

	track := newTrack(1, tf, 64, 64*4+trackHeaderSize)
	err = track.init()
	if !IsIntegrityViolation(err) {
		t.Fatalf("init with corrupted size field: got %v, want IntegrityViolationError", err)
	}
}

func TestTrack_FreeListChainDetectsOutOfBoundsOffset(t *testing.T) {
	tr := newTestTrack(t, 64, 64*2+trackHeaderSize)
	tr.freeStart = 99999
	tr.freeEnd = 99999

	if _, err := tr.freeListChain(); !IsIntegrityViolation(err) {
		t.Fatalf("freeListChain with out-of-bounds offset: got %v, want IntegrityViolationError", err)
	}
}
