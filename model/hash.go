package model

import "github.com/zeebo/blake3"

// HashSize is the width, in bytes, of a message content hash.
const HashSize = 20

// TrieDigestSize is the width, in bytes, of a merkle trie node digest.
const TrieDigestSize = 16

// Blake3 returns the blake3 extendable-output hash of data truncated (really:
// read) to size bytes. zeebo/blake3's Digest is an XOF, so this is a single
// hash evaluation regardless of size, not a truncation of a fixed digest.
func Blake3(data []byte, size int) []byte {
	h := blake3.New()
	_, _ = h.Write(data)
	out := make([]byte, size)
	_, _ = h.Digest().Read(out)
	return out
}

// EmptyHash is the fixed placeholder blake3(“”, TrieDigestSize) used by the
// merkle trie whenever a level has no sibling to hash against, and as the
// root hash of the empty trie.
var EmptyHash = Blake3(nil, TrieDigestSize)
