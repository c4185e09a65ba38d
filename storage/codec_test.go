package storage_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sagar-a16z/hub/model"
	"github.com/sagar-a16z/hub/storage"
)

func TestEncodeDecodeMessage_CastAddRoundTrips(t *testing.T) {
	msg := &model.Message{
		Fid:       model.FidFromBytes([]byte("fid-1")),
		Type:      model.MessageTypeCastAdd,
		Timestamp: 12345,
		Hash:      []byte{1, 2, 3, 4},
		Signature: []byte{5, 6, 7},
		Signer:    []byte("signer-key"),
		Body: model.CastAddBody{
			Text:           "hello",
			MentionFids:    []model.Fid{model.FidFromBytes([]byte("fid-2"))},
			MentionIndices: []uint32{1},
		},
	}

	raw, err := storage.EncodeMessage(msg)
	require.NoError(t, err)

	got, err := storage.DecodeMessage(raw)
	require.NoError(t, err)
	require.Equal(t, msg.Fid, got.Fid)
	require.Equal(t, msg.Type, got.Type)
	require.Equal(t, msg.Timestamp, got.Timestamp)
	require.Equal(t, msg.Hash, got.Hash)
	require.Equal(t, msg.Body, got.Body)
}

func TestEncodeDecodeMessage_WithoutCompression(t *testing.T) {
	storage.CompressRows = false
	defer func() { storage.CompressRows = true }()

	msg := &model.Message{
		Fid:       model.FidFromBytes([]byte("fid-1")),
		Type:      model.MessageTypeSignerAdd,
		Timestamp: 1,
		Hash:      []byte{9},
		Body:      model.SignerBody{Signer: []byte("delegate")},
	}
	raw, err := storage.EncodeMessage(msg)
	require.NoError(t, err)
	got, err := storage.DecodeMessage(raw)
	require.NoError(t, err)
	require.Equal(t, msg.Body, got.Body)
}

func TestEncodeDecodeIdRegistryEvent_RoundTrips(t *testing.T) {
	evt := &model.IdRegistryEvent{
		Type:        model.IdRegistryEventTypeRegister,
		BlockNumber: 10,
		LogIndex:    2,
		Fid:         model.FidFromBytes([]byte("fid-1")),
		To:          []byte("custody-addr"),
	}
	raw, err := storage.EncodeIdRegistryEvent(evt)
	require.NoError(t, err)
	got, err := storage.DecodeIdRegistryEvent(raw)
	require.NoError(t, err)
	require.Equal(t, evt, got)
}
