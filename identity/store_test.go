package identity_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sagar-a16z/hub/events"
	"github.com/sagar-a16z/hub/identity"
	"github.com/sagar-a16z/hub/model"
	"github.com/sagar-a16z/hub/storage/storagetest"
)

type fakeRevoker struct {
	calls []struct {
		fid    model.Fid
		signer []byte
	}
}

func (f *fakeRevoker) RevokeMessagesBySigner(fid model.Fid, signer []byte) ([]*model.Message, error) {
	f.calls = append(f.calls, struct {
		fid    model.Fid
		signer []byte
	}{fid, signer})
	return nil, nil
}

func TestStore_FirstEventWinsAnEmptySlot(t *testing.T) {
	s := identity.New(storagetest.New(), events.NewBus(), &fakeRevoker{})
	fid := model.FidFromBytes([]byte("alice"))
	evt := &model.IdRegistryEvent{Type: model.IdRegistryEventTypeRegister, BlockNumber: 1, LogIndex: 0, Fid: fid, To: []byte("addr-1")}

	require.NoError(t, s.Merge(evt))
	got, err := s.Current(fid)
	require.NoError(t, err)
	require.Equal(t, evt.To, got.To)
}

func TestStore_LaterTransferReplacesAndSchedulesRevocation(t *testing.T) {
	revoker := &fakeRevoker{}
	s := identity.New(storagetest.New(), events.NewBus(), revoker)
	fid := model.FidFromBytes([]byte("alice"))

	first := &model.IdRegistryEvent{Type: model.IdRegistryEventTypeRegister, BlockNumber: 1, LogIndex: 0, Fid: fid, To: []byte("addr-1")}
	require.NoError(t, s.Merge(first))

	second := &model.IdRegistryEvent{Type: model.IdRegistryEventTypeTransfer, BlockNumber: 2, LogIndex: 0, Fid: fid, From: []byte("addr-1"), To: []byte("addr-2")}
	require.NoError(t, s.Merge(second))

	got, err := s.Current(fid)
	require.NoError(t, err)
	require.Equal(t, []byte("addr-2"), got.To)

	require.Len(t, revoker.calls, 1)
	require.Equal(t, []byte("addr-1"), revoker.calls[0].signer)
}

func TestStore_OlderEventIsANoOp(t *testing.T) {
	s := identity.New(storagetest.New(), events.NewBus(), &fakeRevoker{})
	fid := model.FidFromBytes([]byte("alice"))

	later := &model.IdRegistryEvent{Type: model.IdRegistryEventTypeRegister, BlockNumber: 5, LogIndex: 0, Fid: fid, To: []byte("addr-2")}
	require.NoError(t, s.Merge(later))

	earlier := &model.IdRegistryEvent{Type: model.IdRegistryEventTypeRegister, BlockNumber: 1, LogIndex: 0, Fid: fid, To: []byte("addr-1")}
	require.NoError(t, s.Merge(earlier))

	got, err := s.Current(fid)
	require.NoError(t, err)
	require.Equal(t, []byte("addr-2"), got.To)
}

func TestStore_ConflictingRecordAtSameOrderIsRejected(t *testing.T) {
	s := identity.New(storagetest.New(), events.NewBus(), &fakeRevoker{})
	fid := model.FidFromBytes([]byte("alice"))

	first := &model.IdRegistryEvent{
		Type: model.IdRegistryEventTypeRegister, BlockNumber: 1, LogIndex: 0, Fid: fid,
		To: []byte("addr-1"), BlockHash: []byte("hash-a"),
	}
	require.NoError(t, s.Merge(first))

	conflicting := &model.IdRegistryEvent{
		Type: model.IdRegistryEventTypeRegister, BlockNumber: 1, LogIndex: 0, Fid: fid,
		To: []byte("addr-9"), BlockHash: []byte("hash-b"),
	}
	err := s.Merge(conflicting)
	require.Error(t, err)
	he, ok := err.(*model.HubError)
	require.True(t, ok)
	require.Equal(t, model.CodeConflict, he.Code)
}

func TestStore_ByCustodyLooksUpBySecondaryIndex(t *testing.T) {
	s := identity.New(storagetest.New(), events.NewBus(), &fakeRevoker{})
	fid := model.FidFromBytes([]byte("alice"))
	evt := &model.IdRegistryEvent{Type: model.IdRegistryEventTypeRegister, BlockNumber: 1, Fid: fid, To: []byte("addr-1")}
	require.NoError(t, s.Merge(evt))

	got, err := s.ByCustody([]byte("addr-1"))
	require.NoError(t, err)
	require.Equal(t, fid, got.Fid)
}

func TestStore_AllFidsListsEveryCurrentEvent(t *testing.T) {
	s := identity.New(storagetest.New(), events.NewBus(), &fakeRevoker{})
	alice := model.FidFromBytes([]byte("alice"))
	bob := model.FidFromBytes([]byte("bob"))

	require.NoError(t, s.Merge(&model.IdRegistryEvent{Type: model.IdRegistryEventTypeRegister, BlockNumber: 1, Fid: alice, To: []byte("addr-1")}))
	require.NoError(t, s.Merge(&model.IdRegistryEvent{Type: model.IdRegistryEventTypeRegister, BlockNumber: 1, Fid: bob, To: []byte("addr-2")}))

	fids, err := s.AllFids()
	require.NoError(t, err)
	require.ElementsMatch(t, []model.Fid{alice, bob}, fids)
}
