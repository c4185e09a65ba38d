package model_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sagar-a16z/hub/model"
)

func TestBlake3_DeterministicAndSizeRespecting(t *testing.T) {
	data := []byte("hello hub")
	h1 := model.Blake3(data, model.HashSize)
	h2 := model.Blake3(data, model.HashSize)
	require.Equal(t, h1, h2)
	require.Len(t, h1, model.HashSize)

	trieDigest := model.Blake3(data, model.TrieDigestSize)
	require.Len(t, trieDigest, model.TrieDigestSize)
}

func TestEmptyHash_IsBlake3OfNil(t *testing.T) {
	require.Equal(t, model.Blake3(nil, model.TrieDigestSize), model.EmptyHash)
}
