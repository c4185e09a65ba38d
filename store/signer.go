package store

import (
	"github.com/sagar-a16z/hub/events"
	"github.com/sagar-a16z/hub/metrics"
	"github.com/sagar-a16z/hub/model"
	"github.com/sagar-a16z/hub/storage"
)

// SignerStore is the canonical CRDT example from §4.2: the per-fid set of
// Ed25519 signer keys currently authorized by the fid's custody address.
type SignerStore struct{ *Store }

func NewSignerStore(db storage.KV, bus *events.Bus, mc metrics.Collector, pruneLimit int) *SignerStore {
	target := func(msg *model.Message) ([]byte, error) {
		body, ok := msg.Body.(model.SignerBody)
		if !ok {
			return nil, model.ErrValidationFailure("signer message missing SignerBody")
		}
		return body.Signer, nil
	}
	return &SignerStore{newStore(db, bus, mc, "signer", storage.PostfixSignerMessage,
		model.MessageTypeSignerAdd, model.MessageTypeSignerRemove, target, pruneLimit)}
}

func (s *SignerStore) GetSignerAdd(fid model.Fid, signer []byte) (*model.Message, error) {
	return s.GetAdd(fid, signer)
}

func (s *SignerStore) GetSignerRemove(fid model.Fid, signer []byte) (*model.Message, error) {
	return s.GetRemove(fid, signer)
}

// IsActive reports whether signer currently has a live SignerAdd for fid —
// the check the engine makes before routing a non-signer message (§4.4 step 3).
func (s *SignerStore) IsActive(fid model.Fid, signer []byte) bool {
	_, err := s.GetSignerAdd(fid, signer)
	return err == nil
}
