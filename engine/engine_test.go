package engine_test

import (
	"crypto/ed25519"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sagar-a16z/hub/engine"
	"github.com/sagar-a16z/hub/events"
	"github.com/sagar-a16z/hub/identity"
	"github.com/sagar-a16z/hub/metrics"
	"github.com/sagar-a16z/hub/model"
	"github.com/sagar-a16z/hub/storage/storagetest"
	"github.com/sagar-a16z/hub/store"
)

type fixture struct {
	eng      *engine.Engine
	registry *store.Registry
	idStore  *identity.Store
	custody  ed25519.PrivateKey
	delegate ed25519.PrivateKey
	fid      model.Fid
}

func newFixture(t *testing.T, cfg engine.Config) *fixture {
	db := storagetest.New()
	bus := events.NewBus()
	mc := metrics.NoopCollector{}
	registry := store.NewRegistry(db, bus, mc, store.Limits{})
	idStore := identity.New(db, bus, registry)
	eng := engine.New(registry, idStore, cfg)

	custodyPub, custodyPriv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	delegatePub, delegatePriv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	fid := model.FidFromBytes([]byte("alice"))
	require.NoError(t, idStore.Merge(&model.IdRegistryEvent{
		Type: model.IdRegistryEventTypeRegister, BlockNumber: 1, Fid: fid, To: custodyPub,
	}))

	f := &fixture{eng: eng, registry: registry, idStore: idStore, custody: custodyPriv, delegate: delegatePriv, fid: fid}
	_ = delegatePub
	return f
}

func sign(t *testing.T, priv ed25519.PrivateKey, fid model.Fid, typ model.MessageType, timestamp uint32, signer []byte, body model.Body) *model.Message {
	msg := &model.Message{
		Fid: fid, Type: typ, Timestamp: timestamp, Body: body,
		HashScheme: model.HashSchemeBlake3, SignatureScheme: model.SignatureSchemeEd25519, Signer: signer,
	}
	msg.Hash = model.Blake3(model.CanonicalData(msg), model.HashSize)
	msg.Signature = ed25519.Sign(priv, msg.Hash)
	return msg
}

func requireCode(t *testing.T, err error, code model.Code) {
	require.Error(t, err)
	he, ok := err.(*model.HubError)
	require.True(t, ok)
	require.Equal(t, code, he.Code)
}

func TestEngine_SubmitRejectsTamperedHash(t *testing.T) {
	f := newFixture(t, engine.DefaultConfig())
	custodyPub := mustPub(f.custody)

	msg := sign(t, f.custody, f.fid, model.MessageTypeSignerAdd, 100, custodyPub, model.SignerBody{Signer: mustPub(f.delegate)})
	msg.Hash[0] ^= 0xFF // corrupt without re-signing

	requireCode(t, f.eng.Submit(msg), model.CodeParseFailure)
}

func TestEngine_SubmitRejectsBadSignature(t *testing.T) {
	f := newFixture(t, engine.DefaultConfig())
	custodyPub := mustPub(f.custody)

	msg := sign(t, f.custody, f.fid, model.MessageTypeSignerAdd, 100, custodyPub, model.SignerBody{Signer: mustPub(f.delegate)})
	msg.Signature[0] ^= 0xFF

	requireCode(t, f.eng.Submit(msg), model.CodeValidationFailure)
}

func TestEngine_SubmitRejectsUnknownFid(t *testing.T) {
	f := newFixture(t, engine.DefaultConfig())
	unknownFid := model.FidFromBytes([]byte("nobody"))
	custodyPub := mustPub(f.custody)

	msg := sign(t, f.custody, unknownFid, model.MessageTypeSignerAdd, 100, custodyPub, model.SignerBody{Signer: mustPub(f.delegate)})
	requireCode(t, f.eng.Submit(msg), model.CodeValidationFailure)
}

func TestEngine_SignerAddMustComeFromCustody(t *testing.T) {
	f := newFixture(t, engine.DefaultConfig())
	delegatePub := mustPub(f.delegate)

	// the delegate tries to authorize itself -- only custody may do so.
	msg := sign(t, f.delegate, f.fid, model.MessageTypeSignerAdd, 100, delegatePub, model.SignerBody{Signer: delegatePub})
	requireCode(t, f.eng.Submit(msg), model.CodeValidationFailure)
}

func TestEngine_NonSignerMessageRequiresActiveDelegate(t *testing.T) {
	f := newFixture(t, engine.DefaultConfig())
	delegatePub := mustPub(f.delegate)

	castMsg := sign(t, f.delegate, f.fid, model.MessageTypeCastAdd, 100, delegatePub, model.CastAddBody{Text: "hi"})
	// delegate has never been authorized via SignerAdd.
	requireCode(t, f.eng.Submit(castMsg), model.CodeValidationFailure)

	custodyPub := mustPub(f.custody)
	signerAdd := sign(t, f.custody, f.fid, model.MessageTypeSignerAdd, 99, custodyPub, model.SignerBody{Signer: delegatePub})
	require.NoError(t, f.eng.Submit(signerAdd))

	castMsg2 := sign(t, f.delegate, f.fid, model.MessageTypeCastAdd, 101, delegatePub, model.CastAddBody{Text: "hi again"})
	require.NoError(t, f.eng.Submit(castMsg2))

	got, err := f.registry.Cast.GetCastAdd(f.fid, castMsg2.TsHash())
	require.NoError(t, err)
	require.Equal(t, castMsg2.Hash, got.Hash)
}

func TestEngine_ReactionsGatedByFeatureFlag(t *testing.T) {
	f := newFixture(t, engine.Config{FeatureReactions: false})
	custodyPub := mustPub(f.custody)
	delegatePub := mustPub(f.delegate)

	signerAdd := sign(t, f.custody, f.fid, model.MessageTypeSignerAdd, 99, custodyPub, model.SignerBody{Signer: delegatePub})
	require.NoError(t, f.eng.Submit(signerAdd))

	reaction := sign(t, f.delegate, f.fid, model.MessageTypeReactionAdd, 100, delegatePub, model.ReactionBody{
		Type: model.ReactionTypeLike, TargetCastId: model.CastId{Fid: f.fid, TsHash: []byte("some-tshash")},
	})
	requireCode(t, f.eng.Submit(reaction), model.CodeValidationFailure)
}

func TestEngine_RevokedSignerIsRejectedEvenFromCache(t *testing.T) {
	f := newFixture(t, engine.DefaultConfig())
	custodyPub := mustPub(f.custody)
	delegatePub := mustPub(f.delegate)

	signerAdd := sign(t, f.custody, f.fid, model.MessageTypeSignerAdd, 99, custodyPub, model.SignerBody{Signer: delegatePub})
	require.NoError(t, f.eng.Submit(signerAdd))

	cast := sign(t, f.delegate, f.fid, model.MessageTypeCastAdd, 100, delegatePub, model.CastAddBody{Text: "first"})
	require.NoError(t, f.eng.Submit(cast)) // populates the isActiveSigner cache as true

	signerRemove := sign(t, f.custody, f.fid, model.MessageTypeSignerRemove, 101, custodyPub, model.SignerBody{Signer: delegatePub})
	require.NoError(t, f.eng.Submit(signerRemove))

	cast2 := sign(t, f.delegate, f.fid, model.MessageTypeCastAdd, 102, delegatePub, model.CastAddBody{Text: "second"})
	requireCode(t, f.eng.Submit(cast2), model.CodeValidationFailure)
}

func mustPub(priv ed25519.PrivateKey) []byte {
	return []byte(priv.Public().(ed25519.PublicKey))
}
