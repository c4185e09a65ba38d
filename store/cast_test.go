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

func newCastStore() *store.CastStore {
	return store.NewCastStore(storagetest.New(), events.NewBus(), metrics.NoopCollector{}, 0)
}

func castAdd(fid model.Fid, timestamp uint32, hash byte, text string) *model.Message {
	return &model.Message{
		Fid: fid, Type: model.MessageTypeCastAdd, Timestamp: timestamp,
		Hash: []byte{hash}, Body: model.CastAddBody{Text: text},
	}
}

func castRemove(fid model.Fid, timestamp uint32, hash byte, target []byte) *model.Message {
	return &model.Message{
		Fid: fid, Type: model.MessageTypeCastRemove, Timestamp: timestamp,
		Hash: []byte{hash}, Body: model.CastRemoveBody{TargetTsHash: target},
	}
}

func TestCastStore_LaterRemoveSupersedesEarlierRemoveForSameTarget(t *testing.T) {
	s := newCastStore()
	fid := model.FidFromBytes([]byte("alice"))

	add := castAdd(fid, 100, 0x01, "v1")
	require.NoError(t, s.Merge(add))

	firstRemove := castRemove(fid, 200, 0x02, add.TsHash())
	require.NoError(t, s.Merge(firstRemove))
	secondRemove := castRemove(fid, 300, 0x03, add.TsHash())
	require.NoError(t, s.Merge(secondRemove))

	got, err := s.GetCastRemove(fid, add.TsHash())
	require.NoError(t, err)
	require.Equal(t, secondRemove.Hash, got.Hash)

	all, err := s.GetAllByFid(fid)
	require.NoError(t, err)
	require.Len(t, all, 1) // the superseded first remove and the original add are both gone/replaced
}

func TestCastStore_RemoveBeatsAddAtEqualTimestamp(t *testing.T) {
	s := newCastStore()
	fid := model.FidFromBytes([]byte("alice"))

	add := castAdd(fid, 100, 0x01, "hi")
	require.NoError(t, s.Merge(add))

	remove := &model.Message{
		Fid: fid, Type: model.MessageTypeCastRemove, Timestamp: 100,
		Hash: []byte{0x02}, Body: model.CastRemoveBody{TargetTsHash: add.TsHash()},
	}
	require.NoError(t, s.Merge(remove))

	_, err := s.GetCastAdd(fid, add.TsHash())
	require.Error(t, err)
	got, err := s.GetCastRemove(fid, add.TsHash())
	require.NoError(t, err)
	require.Equal(t, remove.Hash, got.Hash)
}

func TestCastStore_MergeIsIdempotent(t *testing.T) {
	s := newCastStore()
	fid := model.FidFromBytes([]byte("alice"))
	msg := castAdd(fid, 100, 0x01, "hi")

	require.NoError(t, s.Merge(msg))
	require.NoError(t, s.Merge(msg))

	all, err := s.GetAllByFid(fid)
	require.NoError(t, err)
	require.Len(t, all, 1)
}

func TestCastStore_PruneMessagesRespectsLimit(t *testing.T) {
	kv := storagetest.New()
	bus := events.NewBus()
	var pruned []*model.Message
	bus.Subscribe(events.TypePruneMessage, func(ev events.Event) { pruned = append(pruned, ev.Message) })

	s := store.NewCastStore(kv, bus, metrics.NoopCollector{}, 2)
	fid := model.FidFromBytes([]byte("alice"))
	for i := 0; i < 5; i++ {
		require.NoError(t, s.Merge(castAdd(fid, uint32(100+i), byte(i), "x")))
	}

	all, err := s.GetAllByFid(fid)
	require.NoError(t, err)
	require.Len(t, all, 5)

	require.NoError(t, s.PruneMessages(fid))

	all, err = s.GetAllByFid(fid)
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.Len(t, pruned, 3)
}
