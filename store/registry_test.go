package store_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sagar-a16z/hub/events"
	"github.com/sagar-a16z/hub/metrics"
	"github.com/sagar-a16z/hub/model"
	"github.com/sagar-a16z/hub/storage/storagetest"
	"github.com/sagar-a16z/hub/store"
)

func TestRegistry_RevokeMessagesBySignerCascadesThroughDelegatedSigner(t *testing.T) {
	r := store.NewRegistry(storagetest.New(), events.NewBus(), metrics.NoopCollector{}, store.Limits{})
	fid := model.FidFromBytes([]byte("alice"))
	custody := []byte("custody")
	delegate := []byte("delegate")

	signerAddMsg := &model.Message{
		Fid: fid, Type: model.MessageTypeSignerAdd, Timestamp: 100,
		Hash: []byte{0x01}, Signer: custody, Body: model.SignerBody{Signer: delegate},
	}
	require.NoError(t, r.Merge(signerAddMsg))

	castMsg := &model.Message{
		Fid: fid, Type: model.MessageTypeCastAdd, Timestamp: 101,
		Hash: []byte{0x02}, Signer: delegate, Body: model.CastAddBody{Text: "hi"},
	}
	require.NoError(t, r.Merge(castMsg))

	revoked, err := r.RevokeMessagesBySigner(fid, custody)
	require.NoError(t, err)
	// revoking the SignerAdd custody signed for delegate cascades into
	// revoking everything delegate signed (the cast): two messages in all.
	require.Len(t, revoked, 2)

	require.False(t, r.Signer.IsActive(fid, delegate))
	_, err = r.Cast.GetCastAdd(fid, castMsg.TsHash())
	require.Error(t, err)
}

func TestRegistry_StoreForTypeRoutesEveryMessageType(t *testing.T) {
	r := store.NewRegistry(storagetest.New(), events.NewBus(), metrics.NoopCollector{}, store.Limits{})
	require.Same(t, r.Signer.Store, r.StoreForType(model.MessageTypeSignerAdd))
	require.Same(t, r.Cast.Store, r.StoreForType(model.MessageTypeCastRemove))
	require.Same(t, r.Reaction.Store, r.StoreForType(model.MessageTypeReactionAdd))
	require.Same(t, r.Amp.Store, r.StoreForType(model.MessageTypeAmpRemove))
	require.Same(t, r.Verification.Store, r.StoreForType(model.MessageTypeVerificationAddEthAddress))
	require.Same(t, r.UserData.Store, r.StoreForType(model.MessageTypeUserDataAdd))
}
