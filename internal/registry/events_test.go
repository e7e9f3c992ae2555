package registry

import (
	"testing"
	"time"
)

func TestPublishDeliversToSubscriber(t *testing.T) {
	bus := NewEventBus()
	ch, unsubscribe := bus.Subscribe()
	defer unsubscribe()

	bus.Publish(NetworkEvent{Type: EventPeerConnected, Data: PeerConnectedData{Peer: "p1"}})

	select {
	case evt := <-ch:
		if evt.Type != EventPeerConnected {
			t.Fatalf("type = %v", evt.Type)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestPublishNeverBlocksOnFullSubscriber(t *testing.T) {
	bus := NewEventBus()
	ch, unsubscribe := bus.Subscribe()
	defer unsubscribe()

	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriberCapacity+10; i++ {
			bus.Publish(NetworkEvent{Type: EventLogEntry, Data: LogEntryData{Content: "x"}})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a full, undrained subscriber")
	}

	drained := 0
	for range ch {
		drained++
		if drained >= subscriberCapacity {
			break
		}
	}
	if drained == 0 {
		t.Fatal("expected some buffered events to survive")
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	bus := NewEventBus()
	ch, unsubscribe := bus.Subscribe()
	unsubscribe()

	bus.Publish(NetworkEvent{Type: EventPeerConnected, Data: PeerConnectedData{Peer: "p1"}})

	if _, ok := <-ch; ok {
		t.Fatal("expected channel closed after unsubscribe")
	}
}
