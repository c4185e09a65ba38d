package store

import (
	"github.com/sagar-a16z/hub/events"
	"github.com/sagar-a16z/hub/metrics"
	"github.com/sagar-a16z/hub/model"
	"github.com/sagar-a16z/hub/storage"
)

// UserDataStore holds per-fid profile fields. There is no Remove type
// (Open Question (b), §9): a later UserDataAdd for the same dataType
// strictly supersedes the earlier one via the shared comparator.
type UserDataStore struct{ *Store }

func NewUserDataStore(db storage.KV, bus *events.Bus, mc metrics.Collector, pruneLimit int) *UserDataStore {
	target := func(msg *model.Message) ([]byte, error) {
		body, ok := msg.Body.(model.UserDataBody)
		if !ok {
			return nil, model.ErrValidationFailure("user data message missing UserDataBody")
		}
		return []byte{byte(body.Type)}, nil
	}
	return &UserDataStore{newStore(db, bus, mc, "userdata", storage.PostfixUserDataMessage,
		model.MessageTypeUserDataAdd, model.MessageTypeUnspecified, target, pruneLimit)}
}

func (s *UserDataStore) GetUserData(fid model.Fid, t model.UserDataType) (*model.Message, error) {
	return s.GetAdd(fid, []byte{byte(t)})
}
