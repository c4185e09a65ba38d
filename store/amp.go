package store

import (
	"github.com/sagar-a16z/hub/events"
	"github.com/sagar-a16z/hub/metrics"
	"github.com/sagar-a16z/hub/model"
	"github.com/sagar-a16z/hub/storage"
)

// AmpStore holds per-fid amps ("follows"), keyed by the target user's fid.
type AmpStore struct{ *Store }

func NewAmpStore(db storage.KV, bus *events.Bus, mc metrics.Collector, pruneLimit int) *AmpStore {
	target := func(msg *model.Message) ([]byte, error) {
		body, ok := msg.Body.(model.AmpBody)
		if !ok {
			return nil, model.ErrValidationFailure("amp message missing AmpBody")
		}
		return body.TargetFid.Bytes(), nil
	}
	return &AmpStore{newStore(db, bus, mc, "amp", storage.PostfixAmpMessage,
		model.MessageTypeAmpAdd, model.MessageTypeAmpRemove, target, pruneLimit)}
}

func (s *AmpStore) GetAmpAdd(fid model.Fid, target model.Fid) (*model.Message, error) {
	return s.GetAdd(fid, target.Bytes())
}

func (s *AmpStore) GetAmpRemove(fid model.Fid, target model.Fid) (*model.Message, error) {
	return s.GetRemove(fid, target.Bytes())
}
