// Package trie implements the 16-ary merkle trie over message sync-ids
// (§4.5): a compact, incrementally-hashed index that lets two replicas
// compare corpora in O(prefix length) instead of transferring full sets.
// Grounded on the teacher's ledger/complete_ledger Merkle-Patricia-Trie
// node/hash shape, narrowed to a fixed-depth, non-compressed radix trie
// since every sync-id is the same length (10-digit timestamp + 48 hex
// tsHash characters for the 4-byte timestamp and 20-byte hash, all valid
// base-16 digits).
package trie

import (
	"fmt"

	"github.com/sagar-a16z/hub/metrics"
	"github.com/sagar-a16z/hub/model"
)

type node struct {
	children [16]*node
	hash     []byte
	count    int // number of leaves in this subtree
	leaf     bool
}

func (n *node) childHash(i int) []byte {
	if n == nil || n.children[i] == nil {
		return model.EmptyHash
	}
	return n.children[i].hash
}

func (n *node) childCount(i int) int {
	if n == nil || n.children[i] == nil {
		return 0
	}
	return n.children[i].count
}

func recomputeHash(n *node) []byte {
	if n.leaf {
		return n.hash
	}
	buf := make([]byte, 0, 16*model.TrieDigestSize)
	for i := 0; i < 16; i++ {
		buf = append(buf, n.childHash(i)...)
	}
	return model.Blake3(buf, model.TrieDigestSize)
}

// Trie is a single fid's (or the process-wide, depending on the caller's
// choice of granularity) merkle trie over sync-ids. Not safe for concurrent
// use without external locking; syncengine serializes access per fid.
type Trie struct {
	root *node
	mc   metrics.Collector
}

func New(mc metrics.Collector) *Trie {
	if mc == nil {
		mc = metrics.NoopCollector{}
	}
	return &Trie{mc: mc}
}

// RootHash is model.EmptyHash iff the trie holds zero ids (§8 invariant).
func (t *Trie) RootHash() []byte {
	if t.root == nil {
		return model.EmptyHash
	}
	return t.root.hash
}

func (t *Trie) NumMessages() int {
	if t.root == nil {
		return 0
	}
	return t.root.count
}

// Insert adds id to the trie. Returns false if id was already present
// (idempotent — inserting twice leaves the trie unchanged, §8).
func (t *Trie) Insert(id string) bool {
	newRoot, inserted := insert(t.root, id, 0)
	t.root = newRoot
	if inserted {
		t.mc.TrieInsert()
		t.mc.TrieSize(uint64(t.NumMessages()))
	}
	return inserted
}

func insert(n *node, key string, depth int) (*node, bool) {
	if depth == len(key) {
		if n != nil {
			return n, false
		}
		return &node{leaf: true, count: 1, hash: model.Blake3([]byte(key), model.TrieDigestSize)}, true
	}
	if n == nil {
		n = &node{}
	}
	d := digitValue(key[depth])
	child, inserted := insert(n.children[d], key, depth+1)
	n.children[d] = child
	if inserted {
		n.count++
		n.hash = recomputeHash(n)
	}
	return n, inserted
}

// Delete removes id from the trie. Returns false if id was absent.
func (t *Trie) Delete(id string) bool {
	newRoot, deleted := remove(t.root, id, 0)
	t.root = newRoot
	if deleted {
		t.mc.TrieDelete()
		t.mc.TrieSize(uint64(t.NumMessages()))
	}
	return deleted
}

func remove(n *node, key string, depth int) (*node, bool) {
	if n == nil {
		return nil, false
	}
	if depth == len(key) {
		if !n.leaf {
			return n, false
		}
		return nil, true
	}
	d := digitValue(key[depth])
	child, deleted := remove(n.children[d], key, depth+1)
	if !deleted {
		return n, false
	}
	n.children[d] = child
	n.count--
	if n.count == 0 && !n.leaf {
		return nil, true
	}
	n.hash = recomputeHash(n)
	return n, true
}

// Exists reports whether id is present in the trie.
func (t *Trie) Exists(id string) bool {
	n := t.root
	for depth := 0; depth < len(id); depth++ {
		if n == nil {
			return false
		}
		n = n.children[digitValue(id[depth])]
	}
	return n != nil && n.leaf
}

// ChildMetadata describes one of a node's 16 possible children.
type ChildMetadata struct {
	Prefix      string
	NumMessages int
	Hash        []byte
}

// NodeMetadata describes the node reached by walking prefix from the root,
// and a one-level lookahead at its children (getTrieNodeMetadata, §6).
type NodeMetadata struct {
	Prefix      string
	NumMessages int
	Hash        []byte
	Children    []ChildMetadata
}

func (t *Trie) walk(prefix string) *node {
	n := t.root
	for i := 0; i < len(prefix); i++ {
		if n == nil {
			return nil
		}
		n = n.children[digitValue(prefix[i])]
	}
	return n
}

// GetTrieNodeMetadata returns metadata for the node at prefix, or nil if no
// id in the trie shares that prefix.
func (t *Trie) GetTrieNodeMetadata(prefix string) *NodeMetadata {
	n := t.walk(prefix)
	if n == nil {
		return nil
	}
	md := &NodeMetadata{Prefix: prefix, NumMessages: n.count, Hash: n.hash}
	if n.leaf {
		return md
	}
	for i := 0; i < 16; i++ {
		if n.children[i] == nil {
			continue
		}
		md.Children = append(md.Children, ChildMetadata{
			Prefix:      prefix + digitChar(i),
			NumMessages: n.children[i].count,
			Hash:        n.children[i].hash,
		})
	}
	return md
}

// Snapshot is a compact summary of the subtree rooted at Prefix: the number
// of ids it holds, and, at each depth along Prefix, a digest of everything
// hanging off that node EXCEPT the branch the prefix itself takes. Comparing
// two replicas' snapshots for the same prefix character-by-character finds
// the deepest point at which the two tries still agree on everything
// outside the path being walked (§4.5/§6 getSnapshotByPrefix, §8 Scenario
// S4).
type Snapshot struct {
	Prefix         string
	NumMessages    int
	ExcludedHashes [][]byte
}

// siblingHash hashes together the hashes of n's children other than
// excludeDigit, in ascending digit order, skipping absent children
// entirely rather than padding them in as model.EmptyHash. With no
// siblings present this concatenates zero hashes, and
// model.Blake3(nil, ...) is exactly model.EmptyHash — matching §8 S4's
// worked example, where an untaken digit with no other occupied sibling
// collapses to emptyHash rather than to the hash of a padded-out node.
func siblingHash(n *node, excludeDigit int) []byte {
	var buf []byte
	if n != nil {
		for i := 0; i < 16; i++ {
			if i == excludeDigit || n.children[i] == nil {
				continue
			}
			buf = append(buf, n.children[i].hash...)
		}
	}
	return model.Blake3(buf, model.TrieDigestSize)
}

// GetSnapshot returns the snapshot for prefix. ExcludedHashes[i] is
// siblingHash of the node reached after consuming prefix[:i] characters,
// excluding the digit prefix[i] itself — the hash of everything a peer
// walking the same prefix would NOT reach by following it, which is what
// GetDivergencePrefix compares to catch differences the query path itself
// never visits.
func (t *Trie) GetSnapshot(prefix string) Snapshot {
	snap := Snapshot{Prefix: prefix}
	n := t.root
	for i := 0; i < len(prefix); i++ {
		d := digitValue(prefix[i])
		snap.ExcludedHashes = append(snap.ExcludedHashes, siblingHash(n, d))
		if n != nil {
			n = n.children[d]
		}
	}
	if n != nil {
		snap.NumMessages = n.count
	}
	return snap
}

// GetDivergencePrefix compares this trie's per-depth sibling digests along
// prefix against a peer snapshot's ExcludedHashes for the same prefix and
// returns the longest leading prefix at which the two still agree on
// everything off that path. syncengine does not call it: its reconcile loop
// descends by comparing GetTrieNodeMetadata child hashes instead.
func (t *Trie) GetDivergencePrefix(prefix string, otherExcludedHashes [][]byte) string {
	mine := t.GetSnapshot(prefix).ExcludedHashes
	n := len(mine)
	if len(otherExcludedHashes) < n {
		n = len(otherExcludedHashes)
	}
	for i := 0; i < n; i++ {
		if !bytesEqual(mine[i], otherExcludedHashes[i]) {
			return prefix[:i]
		}
	}
	return prefix[:n]
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func digitValue(c byte) int {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0')
	case c >= 'a' && c <= 'f':
		return int(c-'a') + 10
	case c >= 'A' && c <= 'F':
		return int(c-'A') + 10
	default:
		panic(fmt.Sprintf("trie: invalid sync-id character %q", c))
	}
}

const hexChars = "0123456789abcdef"

func digitChar(d int) string {
	return string(hexChars[d])
}
