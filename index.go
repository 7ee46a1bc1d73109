package trackstore

import (
	"errors"
	"path/filepath"

	badger "github.com/dgraph-io/badger/v4"
)

// Index is the durable key -> AllocMap mapping (spec §4.5): given an
// opaque key, it resolves to the ordered list of chunk slots holding that
// blob. It is backed by an embedded badger.DB rather than a hand-rolled
// on-disk hash table, so it gets crash-safe commits and compaction for
// free — the same reasoning the core applies to tracks (keep a proven
// on-disk structure instead of reinventing one) applied to the metadata
// side instead.
type Index struct {
	db *badger.DB
}

// openIndex opens (or creates) the badger database rooted at
// filepath.Join(dir, "index").
func openIndex(dir string) (*Index, error) {
	opts := badger.DefaultOptions(filepath.Join(dir, "index")).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, NewIOError("open", dir, err)
	}
	return &Index{db: db}, nil
}

// has reports whether key has an entry, without decoding its value.
func (idx *Index) has(key []byte) (bool, error) {
	found := false
	err := idx.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return nil
	})
	if err != nil {
		return false, NewIOError("get", string(key), err)
	}
	return found, nil
}

// get resolves key to its AllocMap. ok is false if the key is absent.
func (idx *Index) get(key []byte) (m *AllocMap, ok bool, err error) {
	txErr := idx.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			decoded, decErr := decodeAllocMap(val)
			if decErr != nil {
				return decErr
			}
			m, ok = decoded, true
			return nil
		})
	})
	if txErr != nil {
		return nil, false, NewIOError("get", string(key), txErr)
	}
	return m, ok, nil
}

// set writes (overwriting) key's AllocMap.
func (idx *Index) set(key []byte, m *AllocMap) error {
	err := idx.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, m.encode())
	})
	if err != nil {
		return NewIOError("set", string(key), err)
	}
	return nil
}

// remove deletes key's entry. It is not an error for key to be absent.
func (idx *Index) remove(key []byte) error {
	err := idx.db.Update(func(txn *badger.Txn) error {
		err := txn.Delete(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		return err
	})
	if err != nil {
		return NewIOError("delete", string(key), err)
	}
	return nil
}

func (idx *Index) close() error {
	if err := idx.db.Close(); err != nil {
		return NewIOError("close", "index", err)
	}
	return nil
}
