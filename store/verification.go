package store

import (
	"github.com/sagar-a16z/hub/events"
	"github.com/sagar-a16z/hub/metrics"
	"github.com/sagar-a16z/hub/model"
	"github.com/sagar-a16z/hub/storage"
)

// VerificationStore holds per-fid Ethereum address verifications, keyed by
// the verified address.
type VerificationStore struct{ *Store }

func NewVerificationStore(db storage.KV, bus *events.Bus, mc metrics.Collector, pruneLimit int) *VerificationStore {
	target := func(msg *model.Message) ([]byte, error) {
		switch b := msg.Body.(type) {
		case model.VerificationAddBody:
			return b.Address, nil
		case model.VerificationRemoveBody:
			return b.Address, nil
		default:
			return nil, model.ErrValidationFailure("verification message has unexpected body %T", msg.Body)
		}
	}
	return &VerificationStore{newStore(db, bus, mc, "verification", storage.PostfixVerificationMessage,
		model.MessageTypeVerificationAddEthAddress, model.MessageTypeVerificationRemove, target, pruneLimit)}
}

func (s *VerificationStore) GetVerificationAdd(fid model.Fid, address []byte) (*model.Message, error) {
	return s.GetAdd(fid, address)
}

func (s *VerificationStore) GetVerificationRemove(fid model.Fid, address []byte) (*model.Message, error) {
	return s.GetRemove(fid, address)
}
