package events_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sagar-a16z/hub/events"
	"github.com/sagar-a16z/hub/model"
)

func TestBus_DispatchesToSubscribedListenersOnly(t *testing.T) {
	bus := events.NewBus()

	var mergeCount, pruneCount int
	bus.Subscribe(events.TypeMergeMessage, func(ev events.Event) { mergeCount++ })
	bus.Subscribe(events.TypePruneMessage, func(ev events.Event) { pruneCount++ })

	msg := &model.Message{Fid: model.FidFromBytes([]byte("1"))}
	bus.MergeMessage(msg)
	bus.MergeMessage(msg)
	bus.PruneMessage(msg)

	require.Equal(t, 2, mergeCount)
	require.Equal(t, 1, pruneCount)
}

func TestBus_UnsubscribeStopsDelivery(t *testing.T) {
	bus := events.NewBus()
	var count int
	unsubscribe := bus.Subscribe(events.TypeSyncComplete, func(ev events.Event) { count++ })

	bus.SyncComplete(true)
	unsubscribe()
	bus.SyncComplete(true)

	require.Equal(t, 1, count)
}

func TestBus_EventCarriesExpectedPayload(t *testing.T) {
	bus := events.NewBus()
	evt := &model.IdRegistryEvent{Fid: model.FidFromBytes([]byte("5"))}

	var got events.Event
	bus.Subscribe(events.TypeMergeIdRegistryEvent, func(ev events.Event) { got = ev })
	bus.MergeIdRegistryEvent(evt)

	require.Equal(t, events.TypeMergeIdRegistryEvent, got.Type)
	require.Same(t, evt, got.IdRegistryEvent)
}
