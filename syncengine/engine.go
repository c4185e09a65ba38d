// Package syncengine implements the merkle-trie-backed divergence check
// and pull-based reconciliation between two hub replicas (§4.6): maintain
// a live trie of every merged message's sync-id, compare root hashes with
// a peer, and when they differ, narrow down to the diverging prefixes and
// pull only the messages the peer has that this replica doesn't.
//
// Grounded on the teacher's module/notifier.go single-slot Notifier for
// "at most one reconciliation in flight, cancellable" semantics. The engine
// has no Start/Stop lifecycle: each Sync call is bounded by its own context.
package syncengine

import (
	"context"
	"sync"
	"time"

	"github.com/sagar-a16z/hub/events"
	"github.com/sagar-a16z/hub/metrics"
	"github.com/sagar-a16z/hub/model"
	"github.com/sagar-a16z/hub/trie"
)

// Stats is a point-in-time snapshot of the last completed (or attempted)
// reconciliation, grounded on the teacher's module/metrics counters pattern
// but kept in-process rather than pushed to Prometheus — this is for the
// rpc surface's own operational getter, not for scraping.
type Stats struct {
	LastSyncAt          time.Time `json:"lastSyncAt"`
	LastDurationSeconds float64   `json:"lastDurationSeconds"`
	LastMessagesPulled  int       `json:"lastMessagesPulled"`
	LastDivergingNodes  int       `json:"lastDivergingNodes"`
	LastSuccess         bool      `json:"lastSuccess"`
	LastError           string    `json:"lastError,omitempty"`
}

// Merger is the subset of engine.Engine the sync engine needs to apply
// pulled messages through the normal validation and routing path, rather
// than writing directly into storage.
type Merger interface {
	Submit(msg *model.Message) error
}

// Peer is everything the sync engine needs from a remote replica. An rpc
// client implements this against the HTTP JSON sync surface (§6); the sync
// engine itself has no knowledge of the transport.
type Peer interface {
	GetTrieNodeMetadata(ctx context.Context, prefix string) (*trie.NodeMetadata, error)
	GetAllSyncIdsByPrefix(ctx context.Context, prefix string) ([]string, error)
	GetAllMessagesBySyncIds(ctx context.Context, ids []string) ([]*model.Message, error)
}

// pullThreshold bounds the breadth-first descent: once a diverging node's
// subtree holds this many or fewer ids, the engine stops drilling into its
// children one level at a time and instead fetches the prefix's full id
// list from the peer and diffs it locally in one round trip.
const pullThreshold = 16

// defaultTimeout bounds total reconciliation wall-clock time (§4.6, §5):
// a sync that cannot complete within this window is abandoned and reported
// as failed rather than left running indefinitely.
const defaultTimeout = 2 * time.Minute

type Engine struct {
	trie *trie.Trie
	bus  *events.Bus
	mc   metrics.Collector

	timeout time.Duration

	// running serializes reconciliation: only one logical sync task may be
	// in flight at a time, mirroring the teacher's Notifier single-slot
	// wakeup channel rather than an unbounded worker pool.
	running chan struct{}

	statsMu sync.Mutex
	stats   Stats
}

func New(bus *events.Bus, mc metrics.Collector) *Engine {
	if mc == nil {
		mc = metrics.NoopCollector{}
	}
	e := &Engine{
		trie:    trie.New(mc),
		bus:     bus,
		mc:      mc,
		timeout: defaultTimeout,
		running: make(chan struct{}, 1),
	}
	bus.Subscribe(events.TypeMergeMessage, func(ev events.Event) {
		e.trie.Insert(ev.Message.SyncID())
	})
	bus.Subscribe(events.TypePruneMessage, func(ev events.Event) {
		e.trie.Delete(ev.Message.SyncID())
	})
	bus.Subscribe(events.TypeRevokeMessage, func(ev events.Event) {
		e.trie.Delete(ev.Message.SyncID())
	})
	return e
}

// Trie exposes the live trie for the rpc sync surface (getAllSyncIdsByPrefix,
// getTrieNodesByPrefix) to read directly.
func (e *Engine) Trie() *trie.Trie { return e.trie }

// RootHash is this replica's current trie root, the cheapest possible
// "are we in sync" check against a peer.
func (e *Engine) RootHash() []byte { return e.trie.RootHash() }

// Stats returns a snapshot of the last completed (or failed) Sync, for the
// rpc surface's operational getter. The zero value (LastSyncAt.IsZero())
// means no sync has run yet.
func (e *Engine) Stats() Stats {
	e.statsMu.Lock()
	defer e.statsMu.Unlock()
	return e.stats
}

// Sync reconciles against peer: if root hashes already match, it's a no-op.
// Otherwise it walks the diverging prefixes breadth-first and pulls
// messages this replica is missing, merging each through merger. At most
// one Sync runs at a time; a Sync already in progress causes this call to
// return immediately with model.ErrUnavailable.
func (e *Engine) Sync(ctx context.Context, peer Peer, merger Merger) error {
	select {
	case e.running <- struct{}{}:
	default:
		return model.ErrUnavailable("a sync is already in progress")
	}
	defer func() { <-e.running }()

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	start := time.Now()
	pulled, diverging, err := e.reconcile(ctx, peer, merger)
	duration := time.Since(start).Seconds()
	success := err == nil
	e.bus.SyncComplete(success)
	e.mc.SyncCompleted(success, duration, pulled)

	e.statsMu.Lock()
	e.stats = Stats{
		LastSyncAt:          start,
		LastDurationSeconds: duration,
		LastMessagesPulled:  pulled,
		LastDivergingNodes:  diverging,
		LastSuccess:         success,
	}
	if err != nil {
		e.stats.LastError = err.Error()
	}
	e.statsMu.Unlock()

	return err
}

// reconcile returns the number of messages pulled, the number of trie nodes
// visited whose hash disagreed with the peer's (a proxy for how much of the
// two tries actually diverged), and an error if reconciliation could not
// complete.
func (e *Engine) reconcile(ctx context.Context, peer Peer, merger Merger) (int, int, error) {
	peerRoot, err := peer.GetTrieNodeMetadata(ctx, "")
	if err != nil {
		return 0, 0, model.WrapUnknown(err)
	}
	if peerRoot == nil || bytesEqual(peerRoot.Hash, e.trie.RootHash()) {
		return 0, 0, nil
	}

	pulled, diverging := 0, 0
	queue := []string{""}
	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return pulled, diverging, model.ErrUnavailable("sync timed out before completing")
		}
		prefix := queue[0]
		queue = queue[1:]

		peerMD, err := peer.GetTrieNodeMetadata(ctx, prefix)
		if err != nil {
			return pulled, diverging, model.WrapUnknown(err)
		}
		if peerMD == nil {
			continue
		}
		localMD := e.trie.GetTrieNodeMetadata(prefix)
		if localMD != nil && bytesEqual(localMD.Hash, peerMD.Hash) {
			continue
		}
		diverging++

		if peerMD.NumMessages <= pullThreshold || len(peerMD.Children) == 0 {
			n, err := e.pullPrefix(ctx, peer, merger, prefix)
			if err != nil {
				return pulled, diverging, err
			}
			pulled += n
			continue
		}

		for _, child := range peerMD.Children {
			queue = append(queue, child.Prefix)
		}
	}
	return pulled, diverging, nil
}

// pullPrefix fetches the peer's full id list for prefix, diffs it against
// what this replica already has, and merges the missing messages.
func (e *Engine) pullPrefix(ctx context.Context, peer Peer, merger Merger, prefix string) (int, error) {
	peerIDs, err := peer.GetAllSyncIdsByPrefix(ctx, prefix)
	if err != nil {
		return 0, model.WrapUnknown(err)
	}
	var missing []string
	for _, id := range peerIDs {
		if !e.trie.Exists(id) {
			missing = append(missing, id)
		}
	}
	if len(missing) == 0 {
		return 0, nil
	}
	msgs, err := peer.GetAllMessagesBySyncIds(ctx, missing)
	if err != nil {
		return 0, model.WrapUnknown(err)
	}
	for _, msg := range msgs {
		if err := merger.Submit(msg); err != nil {
			// A message this replica can't validate (e.g. its signer was
			// since revoked) is not a sync failure; skip and continue.
			continue
		}
	}
	return len(msgs), nil
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
