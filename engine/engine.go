// Package engine implements mergeMessage dispatch (§4.4): signature and
// hash verification, signer-chain validation, and routing into the correct
// typed store. Grounded on the teacher's module/engine.go Engine-interface
// shape, narrowed to this core's single entrypoint rather than a full
// network.Engine lifecycle (the engine here has no background loop of its
// own — every call is synchronous with its caller).
package engine

import (
	"bytes"
	"crypto/ed25519"

	lru "github.com/hashicorp/golang-lru"

	"github.com/sagar-a16z/hub/identity"
	"github.com/sagar-a16z/hub/model"
	"github.com/sagar-a16z/hub/store"
)

// Config tunes engine behavior for the one documented gating decision in
// the spec (Open Question (a), §9): Reaction routing is present in the
// type system unconditionally but gated behind a runtime flag.
type Config struct {
	FeatureReactions bool
}

func DefaultConfig() Config {
	return Config{FeatureReactions: true}
}

// signerCacheSize bounds the engine's "is this signer currently active"
// lookaside cache, grounded on storage/badger/cache.go's functional-options
// LRU wrapper, sized for a hot validation path rather than full-entity
// caching.
const signerCacheSize = 10_000

type Engine struct {
	registry *store.Registry
	identity *identity.Store
	cfg      Config

	signerCache *lru.Cache
}

func New(registry *store.Registry, idStore *identity.Store, cfg Config) *Engine {
	cache, _ := lru.New(signerCacheSize)
	return &Engine{registry: registry, identity: idStore, cfg: cfg, signerCache: cache}
}

type signerCacheKey struct {
	fid    model.Fid
	signer string
}

// Submit validates and merges msg, per §4.4.
func (e *Engine) Submit(msg *model.Message) error {
	if err := e.verifyHashAndSignature(msg); err != nil {
		return err
	}

	current, err := e.identity.Current(msg.Fid)
	if err != nil {
		return model.ErrValidationFailure("unknown fid")
	}

	if msg.Type == model.MessageTypeSignerAdd || msg.Type == model.MessageTypeSignerRemove {
		if !bytes.Equal(msg.Signer, current.To) {
			return model.ErrValidationFailure("unknown fid")
		}
	} else {
		if !e.isActiveSigner(msg.Fid, msg.Signer) {
			return model.ErrValidationFailure("unknown fid")
		}
	}

	if (msg.Type == model.MessageTypeReactionAdd || msg.Type == model.MessageTypeReactionRemove) && !e.cfg.FeatureReactions {
		return model.ErrValidationFailure("reactions are disabled")
	}

	err = e.registry.Merge(msg)
	if err != nil {
		return err
	}
	// The signer store just changed; invalidate any cached verdict for this
	// (fid, signer) pair so a revoked signer is rejected on its next use.
	if msg.Type == model.MessageTypeSignerAdd || msg.Type == model.MessageTypeSignerRemove {
		if body, ok := msg.Body.(model.SignerBody); ok {
			e.signerCache.Remove(signerCacheKey{fid: msg.Fid, signer: string(body.Signer)})
		}
	}
	// Enforce the per-fid row budget opportunistically (§4.2/§8 S6):
	// PruneMessages is a no-op below the limit, so this only does real work
	// the merge that actually crosses the threshold for some type.
	if err := e.registry.PruneAll(msg.Fid); err != nil {
		return err
	}
	return nil
}

func (e *Engine) isActiveSigner(fid model.Fid, signer []byte) bool {
	key := signerCacheKey{fid: fid, signer: string(signer)}
	if v, ok := e.signerCache.Get(key); ok {
		return v.(bool)
	}
	active := e.registry.Signer.IsActive(fid, signer)
	e.signerCache.Add(key, active)
	return active
}

// SubmitIdRegistryEvent ingests an on-chain custody event (§4.1).
func (e *Engine) SubmitIdRegistryEvent(evt *model.IdRegistryEvent) error {
	if err := e.identity.Merge(evt); err != nil {
		return err
	}
	// A custody transfer revokes the previous custody's signers; drop every
	// cached verdict so none of them is still reported active.
	e.signerCache.Purge()
	return nil
}

func (e *Engine) verifyHashAndSignature(msg *model.Message) error {
	if len(msg.Hash) != model.HashSize {
		return model.ErrParseFailure("message hash has wrong size")
	}
	want := model.Blake3(model.CanonicalData(msg), model.HashSize)
	if !bytes.Equal(want, msg.Hash) {
		return model.ErrParseFailure("message hash does not match data")
	}
	switch msg.SignatureScheme {
	case model.SignatureSchemeEd25519:
		if len(msg.Signer) != ed25519.PublicKeySize {
			return model.ErrValidationFailure("signer is not a valid ed25519 public key")
		}
		if !ed25519.Verify(ed25519.PublicKey(msg.Signer), msg.Hash, msg.Signature) {
			return model.ErrValidationFailure("invalid signature")
		}
	default:
		return model.ErrInvalidParam("unsupported signature scheme")
	}
	return nil
}
