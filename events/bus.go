// Package events implements the hub's lifecycle event bus: synchronous
// fan-out of merge/prune/revoke/sync notifications to registered listeners,
// dispatched in commit order after each KV transaction commits (§5, §6).
package events

import (
	"sync"

	"github.com/sagar-a16z/hub/model"
)

// Type enumerates the events observable on the bus, per §6.
type Type uint8

const (
	TypeMergeMessage Type = iota
	TypePruneMessage
	TypeRevokeMessage
	TypeMergeIdRegistryEvent
	TypeSyncComplete
)

func (t Type) String() string {
	switch t {
	case TypeMergeMessage:
		return "mergeMessage"
	case TypePruneMessage:
		return "pruneMessage"
	case TypeRevokeMessage:
		return "revokeMessage"
	case TypeMergeIdRegistryEvent:
		return "mergeIdRegistryEvent"
	case TypeSyncComplete:
		return "syncComplete"
	default:
		return "unknown"
	}
}

// Event is the payload dispatched to listeners. Only the fields relevant to
// Type are populated.
type Event struct {
	Type            Type
	Message         *model.Message
	IdRegistryEvent *model.IdRegistryEvent
	SyncSuccess     bool
}

// Listener receives events synchronously with respect to dispatch. A
// listener must not block indefinitely — the bus applies no back-pressure
// and a slow listener stalls every other listener's delivery of the same
// event (§5).
type Listener func(Event)

// Bus is a per-engine handle, never a process-wide singleton: callers pass
// it explicitly to every component that needs to observe or emit events.
type Bus struct {
	mu        sync.RWMutex
	listeners map[Type][]Listener
}

func NewBus() *Bus {
	return &Bus{listeners: make(map[Type][]Listener)}
}

// Subscribe registers l for events of type t and returns a function that
// removes the subscription.
func (b *Bus) Subscribe(t Type, l Listener) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners[t] = append(b.listeners[t], l)
	idx := len(b.listeners[t]) - 1
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		ls := b.listeners[t]
		if idx < len(ls) {
			ls[idx] = nil
		}
	}
}

// Emit dispatches ev to every listener registered for ev.Type, in
// registration order. Dispatch is synchronous: Emit returns only after every
// listener has been called.
func (b *Bus) Emit(ev Event) {
	b.mu.RLock()
	ls := b.listeners[ev.Type]
	// copy under the lock so a Subscribe/unsubscribe racing with dispatch
	// can't mutate the slice we're about to range over.
	snapshot := make([]Listener, len(ls))
	copy(snapshot, ls)
	b.mu.RUnlock()

	for _, l := range snapshot {
		if l == nil {
			continue
		}
		l(ev)
	}
}

func (b *Bus) MergeMessage(msg *model.Message) {
	b.Emit(Event{Type: TypeMergeMessage, Message: msg})
}

func (b *Bus) PruneMessage(msg *model.Message) {
	b.Emit(Event{Type: TypePruneMessage, Message: msg})
}

func (b *Bus) RevokeMessage(msg *model.Message) {
	b.Emit(Event{Type: TypeRevokeMessage, Message: msg})
}

func (b *Bus) MergeIdRegistryEvent(evt *model.IdRegistryEvent) {
	b.Emit(Event{Type: TypeMergeIdRegistryEvent, IdRegistryEvent: evt})
}

func (b *Bus) SyncComplete(success bool) {
	b.Emit(Event{Type: TypeSyncComplete, SyncSuccess: success})
}
