package store

import (
	"github.com/sagar-a16z/hub/events"
	"github.com/sagar-a16z/hub/metrics"
	"github.com/sagar-a16z/hub/model"
	"github.com/sagar-a16z/hub/storage"
)

// ReactionStore holds per-fid reactions keyed by (reactionType, castId).
// Reactions are always present in the type system; whether the engine
// routes them is gated by engine.Config.FeatureReactions (Open Question (a)).
type ReactionStore struct{ *Store }

func NewReactionStore(db storage.KV, bus *events.Bus, mc metrics.Collector, pruneLimit int) *ReactionStore {
	target := func(msg *model.Message) ([]byte, error) {
		body, ok := msg.Body.(model.ReactionBody)
		if !ok {
			return nil, model.ErrValidationFailure("reaction message missing ReactionBody")
		}
		out := make([]byte, 0, 1+len(body.TargetCastId.Fid)+len(body.TargetCastId.TsHash))
		out = append(out, byte(body.Type))
		out = append(out, body.TargetCastId.Fid.Bytes()...)
		out = append(out, body.TargetCastId.TsHash...)
		return out, nil
	}
	return &ReactionStore{newStore(db, bus, mc, "reaction", storage.PostfixReactionMessage,
		model.MessageTypeReactionAdd, model.MessageTypeReactionRemove, target, pruneLimit)}
}

func ReactionTarget(t model.ReactionType, castID model.CastId) []byte {
	out := make([]byte, 0, 1+len(castID.Fid)+len(castID.TsHash))
	out = append(out, byte(t))
	out = append(out, castID.Fid.Bytes()...)
	out = append(out, castID.TsHash...)
	return out
}

func (s *ReactionStore) GetReactionAdd(fid model.Fid, t model.ReactionType, castID model.CastId) (*model.Message, error) {
	return s.GetAdd(fid, ReactionTarget(t, castID))
}

func (s *ReactionStore) GetReactionRemove(fid model.Fid, t model.ReactionType, castID model.CastId) (*model.Message, error) {
	return s.GetRemove(fid, ReactionTarget(t, castID))
}
