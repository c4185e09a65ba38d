// Package storagetest provides an in-memory storage.KV for unit tests,
// so package tests don't need a real badger database on disk. Grounded on
// the teacher's unittest/storeutil in-memory fixtures, narrowed to this
// core's much smaller KV contract (Get/Set/Delete/Iterate) instead of a
// full mock of badger's API.
package storagetest

import (
	"sort"
	"sync"

	"github.com/sagar-a16z/hub/storage"
)

// MemKV is a single in-process storage.KV backed by a plain map whose keys
// are sorted on every Iterate call. Not
// optimized for large datasets; existing only to make package tests fast
// and hermetic.
type MemKV struct {
	mu   sync.Mutex
	data map[string][]byte
}

func New() *MemKV {
	return &MemKV{data: make(map[string][]byte)}
}

func (m *MemKV) View(fn func(storage.Txn) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(&memTxn{kv: m})
}

func (m *MemKV) Update(fn func(storage.Txn) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	snapshot := make(map[string][]byte, len(m.data))
	for k, v := range m.data {
		snapshot[k] = v
	}
	if err := fn(&memTxn{kv: m}); err != nil {
		m.data = snapshot
		return err
	}
	return nil
}

func (m *MemKV) Close() error { return nil }

type memTxn struct {
	kv *MemKV
}

func (t *memTxn) Get(key []byte) ([]byte, error) {
	val, ok := t.kv.data[string(key)]
	if !ok {
		return nil, storage.ErrNotFound
	}
	out := make([]byte, len(val))
	copy(out, val)
	return out, nil
}

func (t *memTxn) Set(key, val []byte) error {
	cp := make([]byte, len(val))
	copy(cp, val)
	t.kv.data[string(key)] = cp
	return nil
}

func (t *memTxn) Delete(key []byte) error {
	delete(t.kv.data, string(key))
	return nil
}

// Iterate visits every key in ascending order that either shares a prefix
// with start or end, or falls lexicographically between them — the same
// inclusive, prefix-wise semantics badgerkv.Iterate documents. Reverse
// (start > end) iteration is not needed by anything in this core today and
// is not implemented here.
func (t *memTxn) Iterate(start, end []byte, fn func(key, val []byte) error) error {
	keys := make([]string, 0, len(t.kv.data))
	for k := range t.kv.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	startS, endS := string(start), string(end)
	for _, k := range keys {
		if !withinRange(k, startS, endS) {
			continue
		}
		if err := fn([]byte(k), t.kv.data[k]); err != nil {
			return err
		}
	}
	return nil
}

func withinRange(k, start, end string) bool {
	if hasPrefix(k, start) || hasPrefix(k, end) {
		return true
	}
	return k >= start && k <= end
}

func hasPrefix(s, prefix string) bool {
	return len(prefix) > 0 && len(s) >= len(prefix) && s[:len(prefix)] == prefix
}
