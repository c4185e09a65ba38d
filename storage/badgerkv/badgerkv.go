// Package badgerkv adapts github.com/dgraph-io/badger/v2 to the
// storage.KV/storage.Txn contract. Grounded on the teacher's
// storage/badger/operation/common.go: the same insert/retrieve/iterate
// shape, generalized from per-entity JSON encoding to opaque byte values
// since the core treats message bytes as opaque (§6).
package badgerkv

import (
	"bytes"
	"errors"

	"github.com/dgraph-io/badger/v2"

	"github.com/sagar-a16z/hub/storage"
)

// DB wraps a *badger.DB as a storage.KV.
type DB struct {
	bdb *badger.DB
}

// Open opens (creating if absent) a badger database rooted at dir.
func Open(dir string, inMemory bool) (*DB, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	if inMemory {
		opts = opts.WithInMemory(true)
	}
	bdb, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &DB{bdb: bdb}, nil
}

func (d *DB) Close() error { return d.bdb.Close() }

func (d *DB) View(fn func(storage.Txn) error) error {
	return d.bdb.View(func(tx *badger.Txn) error {
		return fn(&txn{tx: tx})
	})
}

// Update retries on badger.ErrConflict, mirroring the teacher's
// operation.RetryOnConflict: optimistic-concurrency conflicts are expected
// under concurrent writers and are not a caller-visible error.
func (d *DB) Update(fn func(storage.Txn) error) error {
	for {
		err := d.bdb.Update(func(tx *badger.Txn) error {
			return fn(&txn{tx: tx})
		})
		if errors.Is(err, badger.ErrConflict) {
			continue
		}
		return err
	}
}

type txn struct {
	tx *badger.Txn
}

func (t *txn) Get(key []byte) ([]byte, error) {
	item, err := t.tx.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return item.ValueCopy(nil)
}

func (t *txn) Set(key, val []byte) error {
	return t.tx.Set(key, val)
}

func (t *txn) Delete(key []byte) error {
	return t.tx.Delete(key)
}

// Iterate walks every key in [start, end] inclusive, prefix-wise: any key
// sharing the start or end prefix, or lexicographically between them, is
// visited. Grounded on operation.iterate's 0xff-suffix trick for making a
// prefix boundary behave correctly under badger's seek semantics.
func (t *txn) Iterate(start, end []byte, fn func(key, val []byte) error) error {
	opts := badger.DefaultIteratorOptions
	reverse := bytes.Compare(start, end) > 0

	suffix := bytes.Repeat([]byte{0xff}, 256)
	seekStart := start
	stopAt := end
	if reverse {
		opts.Reverse = true
		seekStart = append(append([]byte{}, start...), suffix...)
	} else {
		stopAt = append(append([]byte{}, end...), suffix...)
	}

	it := t.tx.NewIterator(opts)
	defer it.Close()

	for it.Seek(seekStart); it.Valid(); it.Next() {
		item := it.Item()
		key := item.KeyCopy(nil)
		if reverse {
			if bytes.Compare(key, stopAt) < 0 {
				break
			}
		} else {
			if bytes.Compare(key, stopAt) > 0 {
				break
			}
		}
		val, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		if err := fn(key, val); err != nil {
			return err
		}
	}
	return nil
}
