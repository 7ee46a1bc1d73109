// Package trackstore provides an embedded blob store built on fixed-size
// "tracks" and "chunks" instead of per-key files, for callers that want
// to hold a large number of opaque blobs without handing the filesystem
// one inode per key.
//
// # Overview
//
// A Store maps opaque []byte keys to byte streams of arbitrary length. It
// keeps two pieces of state on disk: an Index (key -> allocation map) and
// a set of track files (allocation map -> bytes). Writing a blob chunks it
// into fixed-size frames and scatters those frames across one or more
// tracks; reading a blob walks its allocation map and reassembles the
// frames in order; deleting a blob splices its frames onto their tracks'
// free lists for reuse by future writes.
//
// # Basic Usage
//
//	fs, err := osfs.NewFS()
//	if err != nil {
//	    panic(err)
//	}
//	store, err := trackstore.Open(fs, trackstore.Config{
//	    Dir:       "/var/lib/myapp/blobs",
//	    TrackSize: 64<<20 + 24, // 64 MiB of chunks plus the 24-byte header
//	})
//	if err != nil {
//	    panic(err)
//	}
//	defer store.Close()
//
//	if err := store.Write([]byte("user:42:avatar"), bytes.NewReader(data)); err != nil {
//	    panic(err)
//	}
//
//	var buf bytes.Buffer
//	if err := store.Read([]byte("user:42:avatar"), &buf); err != nil {
//	    panic(err)
//	}
//
// # Track File Format
//
// Each track file is a 24-byte header followed by a sequence of
// fixed-size chunk frames:
//   - free_start (8 bytes): offset of the first freed chunk, 0 if none
//   - free_end (8 bytes): offset of the last freed chunk, 0 if none
//   - size (8 bytes): the bump allocator's next-offset cursor
//
// Each chunk frame is:
//   - next (8 bytes): byte offset of the next chunk in its list, 0 at the tail
//   - size (2 bytes): payload length, with 0 meaning "the full payload capacity"
//   - payload (variable, zero-padded to the chunk's payload capacity)
//
// All integers are big-endian.
//
// # Allocation and Reclamation
//
// A track allocates new chunk slots by bumping its size cursor until the
// track reaches its configured capacity, after which it falls back to
// popping from its free list. Deleting a blob never shrinks a track file;
// it only returns chunk slots to the free list for the next writer to
// reuse, so track files grow monotonically and are never truncated.
//
// # Concurrency
//
// Store is not safe for concurrent use. It performs no internal locking
// and has no asynchronous or background work: every method runs to
// completion (or a returned error) before control returns to the caller.
// Callers that need concurrent access must serialize it themselves.
//
// # Durability
//
// A track's header is rewritten and fsynced when a delete splices chunks
// onto its free list and at the end of every write that placed chunks in
// it; slots popped from the free list during a write reach the header with
// that end-of-write flush.
// The Index entry for a key is the last thing written on Write and the
// first thing consulted on Read, so a crash between allocating a blob's
// chunks and recording its Index entry leaves orphaned chunks rather than
// a key that resolves to partially-written data.
package trackstore
