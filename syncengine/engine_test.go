package syncengine_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sagar-a16z/hub/events"
	"github.com/sagar-a16z/hub/metrics"
	"github.com/sagar-a16z/hub/model"
	"github.com/sagar-a16z/hub/syncengine"
	"github.com/sagar-a16z/hub/trie"
)

// fakePeer serves GetTrieNodeMetadata/GetAllSyncIdsByPrefix/GetAllMessagesBySyncIds
// out of its own in-memory trie plus a side table of messages, grounded on
// the rpc surface the real peer implements (rpc.Client) but without a
// network hop.
type fakePeer struct {
	tr   *trie.Trie
	msgs map[string]*model.Message // syncID -> message
}

func newFakePeer() *fakePeer {
	return &fakePeer{tr: trie.New(metrics.NoopCollector{}), msgs: map[string]*model.Message{}}
}

func (p *fakePeer) add(msg *model.Message) {
	p.tr.Insert(msg.SyncID())
	p.msgs[msg.SyncID()] = msg
}

func (p *fakePeer) GetTrieNodeMetadata(ctx context.Context, prefix string) (*trie.NodeMetadata, error) {
	return p.tr.GetTrieNodeMetadata(prefix), nil
}

func (p *fakePeer) GetAllSyncIdsByPrefix(ctx context.Context, prefix string) ([]string, error) {
	md := p.tr.GetTrieNodeMetadata(prefix)
	if md == nil {
		return nil, nil
	}
	var out []string
	var walk func(string)
	walk = func(pfx string) {
		m := p.tr.GetTrieNodeMetadata(pfx)
		if m == nil {
			return
		}
		if len(m.Children) == 0 {
			if p.tr.Exists(pfx) {
				out = append(out, pfx)
			}
			return
		}
		for _, c := range m.Children {
			walk(c.Prefix)
		}
	}
	walk(prefix)
	return out, nil
}

func (p *fakePeer) GetAllMessagesBySyncIds(ctx context.Context, ids []string) ([]*model.Message, error) {
	var out []*model.Message
	for _, id := range ids {
		if m, ok := p.msgs[id]; ok {
			out = append(out, m)
		}
	}
	return out, nil
}

type fakeMerger struct {
	merged []*model.Message
	reject map[string]bool
}

func (m *fakeMerger) Submit(msg *model.Message) error {
	if m.reject[string(msg.Hash)] {
		return model.ErrValidationFailure("rejected")
	}
	m.merged = append(m.merged, msg)
	return nil
}

func newMessage(timestamp uint32, hash byte, text string) *model.Message {
	return &model.Message{
		Fid: model.FidFromBytes([]byte("alice")), Type: model.MessageTypeCastAdd,
		Timestamp: timestamp, Hash: []byte{hash}, Body: model.CastAddBody{Text: text},
	}
}

func TestSyncEngine_RootHashesAlreadyEqualIsNoOp(t *testing.T) {
	e := syncengine.New(events.NewBus(), metrics.NoopCollector{})
	peer := newFakePeer()

	merger := &fakeMerger{}
	require.NoError(t, e.Sync(context.Background(), peer, merger))
	require.Empty(t, merger.merged)
}

func TestSyncEngine_PullsMessagesMissingFromLocalTrie(t *testing.T) {
	bus := events.NewBus()
	e := syncengine.New(bus, metrics.NoopCollector{})

	local := newMessage(100, 0x01, "local")
	bus.MergeMessage(local) // drives e's internal trie via its subscription

	peer := newFakePeer()
	peer.add(local)
	missing := newMessage(200, 0x02, "missing")
	peer.add(missing)

	merger := &fakeMerger{}
	require.NoError(t, e.Sync(context.Background(), peer, merger))

	require.Len(t, merger.merged, 1)
	require.Equal(t, missing.Hash, merger.merged[0].Hash)
}

func TestSyncEngine_SkipsMessagesTheMergerRejects(t *testing.T) {
	bus := events.NewBus()
	e := syncengine.New(bus, metrics.NoopCollector{})

	peer := newFakePeer()
	bad := newMessage(100, 0x09, "bad")
	good := newMessage(101, 0x0a, "good")
	peer.add(bad)
	peer.add(good)

	merger := &fakeMerger{reject: map[string]bool{string(bad.Hash): true}}
	require.NoError(t, e.Sync(context.Background(), peer, merger))

	require.Len(t, merger.merged, 1)
	require.Equal(t, good.Hash, merger.merged[0].Hash)
}

func TestSyncEngine_StatsReflectsLastSync(t *testing.T) {
	bus := events.NewBus()
	e := syncengine.New(bus, metrics.NoopCollector{})

	require.True(t, e.Stats().LastSyncAt.IsZero())

	peer := newFakePeer()
	missing := newMessage(100, 0x01, "missing")
	peer.add(missing)

	require.NoError(t, e.Sync(context.Background(), peer, &fakeMerger{}))

	stats := e.Stats()
	require.False(t, stats.LastSyncAt.IsZero())
	require.True(t, stats.LastSuccess)
	require.Empty(t, stats.LastError)
	require.Equal(t, 1, stats.LastMessagesPulled)
	require.Positive(t, stats.LastDivergingNodes)
}

func TestSyncEngine_ConcurrentSyncIsRejected(t *testing.T) {
	bus := events.NewBus()
	e := syncengine.New(bus, metrics.NoopCollector{})

	blocker := &blockingPeer{release: make(chan struct{})}
	defer close(blocker.release)

	done := make(chan error, 1)
	go func() { done <- e.Sync(context.Background(), blocker, &fakeMerger{}) }()

	// give the first Sync a moment to claim the single-flight slot.
	time.Sleep(20 * time.Millisecond)

	err := e.Sync(context.Background(), newFakePeer(), &fakeMerger{})
	require.Error(t, err)
	he, ok := err.(*model.HubError)
	require.True(t, ok)
	require.Equal(t, model.CodeUnavailable, he.Code)
}

// blockingPeer blocks the first GetTrieNodeMetadata call until release is
// closed, holding the sync engine's single-flight slot open long enough for
// a concurrent Sync call to observe it busy.
type blockingPeer struct {
	release chan struct{}
}

func (p *blockingPeer) GetTrieNodeMetadata(ctx context.Context, prefix string) (*trie.NodeMetadata, error) {
	<-p.release
	return nil, nil
}

func (p *blockingPeer) GetAllSyncIdsByPrefix(ctx context.Context, prefix string) ([]string, error) {
	return nil, nil
}

func (p *blockingPeer) GetAllMessagesBySyncIds(ctx context.Context, ids []string) ([]*model.Message, error) {
	return nil, nil
}
