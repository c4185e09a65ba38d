package store

import (
	"github.com/sagar-a16z/hub/events"
	"github.com/sagar-a16z/hub/metrics"
	"github.com/sagar-a16z/hub/model"
	"github.com/sagar-a16z/hub/storage"
)

// Registry bundles the six typed stores and provides the cross-store
// operation the identity store needs: revoking every message signed by a
// given key, regardless of which typed store holds it.
type Registry struct {
	Signer       *SignerStore
	Cast         *CastStore
	Reaction     *ReactionStore
	Amp          *AmpStore
	Verification *VerificationStore
	UserData     *UserDataStore

	db        storage.KV
	byPostfix map[storage.UserPostfix]*Store
}

// Limits configures per-type pruneSizeLimit overrides; zero means "use
// store.DefaultPruneSizeLimit".
type Limits struct {
	Signer, Cast, Reaction, Amp, Verification, UserData int
}

func NewRegistry(db storage.KV, bus *events.Bus, mc metrics.Collector, limits Limits) *Registry {
	signer := NewSignerStore(db, bus, mc, limits.Signer)
	cast := NewCastStore(db, bus, mc, limits.Cast)
	reaction := NewReactionStore(db, bus, mc, limits.Reaction)
	amp := NewAmpStore(db, bus, mc, limits.Amp)
	verification := NewVerificationStore(db, bus, mc, limits.Verification)
	userData := NewUserDataStore(db, bus, mc, limits.UserData)

	r := &Registry{
		Signer: signer, Cast: cast, Reaction: reaction,
		Amp: amp, Verification: verification, UserData: userData,
		db: db,
		byPostfix: map[storage.UserPostfix]*Store{
			storage.PostfixSignerMessage:       signer.Store,
			storage.PostfixCastMessage:         cast.Store,
			storage.PostfixReactionMessage:     reaction.Store,
			storage.PostfixAmpMessage:          amp.Store,
			storage.PostfixVerificationMessage: verification.Store,
			storage.PostfixUserDataMessage:     userData.Store,
		},
	}
	return r
}

// StoreForType returns the typed store that owns messages of type t, or nil
// if t is not a message type any store merges.
func (r *Registry) StoreForType(t model.MessageType) *Store {
	return r.byPostfix[storage.PostfixForType(t)]
}

// Merge routes msg to the store that owns its type.
func (r *Registry) Merge(msg *model.Message) error {
	s := r.StoreForType(msg.Type)
	if s == nil {
		return model.ErrValidationFailure("unknown message type %s", msg.Type)
	}
	return s.Merge(msg)
}

// AllMessagesByFid concatenates GetAllByFid across every typed store, for
// callers (the sync rpc surface) that need to resolve a sync-id to a
// message without knowing which store owns its type up front.
func (r *Registry) AllMessagesByFid(fid model.Fid) ([]*model.Message, error) {
	var out []*model.Message
	for _, s := range r.byPostfix {
		msgs, err := s.GetAllByFid(fid)
		if err != nil {
			return nil, err
		}
		out = append(out, msgs...)
	}
	return out, nil
}

// PruneAll runs PruneMessages(fid) on every typed store.
func (r *Registry) PruneAll(fid model.Fid) error {
	for _, s := range r.byPostfix {
		if err := s.PruneMessages(fid); err != nil {
			return err
		}
	}
	return nil
}

// RevokeMessagesBySigner implements §4.2's revokeMessagesBySigner: every
// message under fid whose top-level Signer is signer is deleted, regardless
// of which typed store holds it. If a deleted message is itself a
// SignerAdd, the delegate key it authorized is revoked transitively too
// (cascading custody-transfer revocation, §4.1/§4.2).
func (r *Registry) RevokeMessagesBySigner(fid model.Fid, signer []byte) ([]*model.Message, error) {
	type pending struct {
		tsHash []byte
		typ    model.MessageType
	}
	var items []pending
	prefix := storage.BySignerPrefix(fid, signer)
	err := r.db.View(func(tx storage.Txn) error {
		return tx.Iterate(prefix, prefix, func(key, val []byte) error {
			tsHash := key[len(prefix):]
			items = append(items, pending{tsHash: append([]byte{}, tsHash...), typ: model.MessageType(val[0])})
			return nil
		})
	})
	if err != nil {
		return nil, model.WrapUnknown(err)
	}

	var revoked []*model.Message
	for _, it := range items {
		s := r.byPostfix[storage.PostfixForType(it.typ)]
		if s == nil {
			continue
		}
		msg, err := s.RevokeTsHash(fid, it.tsHash)
		if err != nil {
			return revoked, err
		}
		if msg == nil {
			continue
		}
		revoked = append(revoked, msg)
		if msg.Type == model.MessageTypeSignerAdd {
			if body, ok := msg.Body.(model.SignerBody); ok {
				cascaded, err := r.RevokeMessagesBySigner(fid, body.Signer)
				if err != nil {
					return revoked, err
				}
				revoked = append(revoked, cascaded...)
			}
		}
	}
	return revoked, nil
}
