package store

import (
	"github.com/sagar-a16z/hub/events"
	"github.com/sagar-a16z/hub/metrics"
	"github.com/sagar-a16z/hub/model"
	"github.com/sagar-a16z/hub/storage"
)

// CastStore holds per-fid casts, keyed by the tsHash of the CastAdd; a
// CastRemove targets an existing CastAdd by that same tsHash (§4.3).
type CastStore struct{ *Store }

func NewCastStore(db storage.KV, bus *events.Bus, mc metrics.Collector, pruneLimit int) *CastStore {
	target := func(msg *model.Message) ([]byte, error) {
		switch b := msg.Body.(type) {
		case model.CastAddBody:
			return msg.TsHash(), nil
		case model.CastRemoveBody:
			return b.TargetTsHash, nil
		default:
			return nil, model.ErrValidationFailure("cast message has unexpected body %T", msg.Body)
		}
	}
	return &CastStore{newStore(db, bus, mc, "cast", storage.PostfixCastMessage,
		model.MessageTypeCastAdd, model.MessageTypeCastRemove, target, pruneLimit)}
}

func (s *CastStore) GetCastAdd(fid model.Fid, tsHash []byte) (*model.Message, error) {
	return s.GetAdd(fid, tsHash)
}

func (s *CastStore) GetCastRemove(fid model.Fid, tsHash []byte) (*model.Message, error) {
	return s.GetRemove(fid, tsHash)
}
