package registry

import (
	"encoding/json"
	"sync"
)

// EventKind identifies the variant of a NetworkEvent.
type EventKind string

const (
	EventPeerConnected    EventKind = "PeerConnected"
	EventPeerDisconnected EventKind = "PeerDisconnected"
	EventMessageSent      EventKind = "MessageSent"
	EventMessageReceived  EventKind = "MessageReceived"
	EventLogEntry         EventKind = "LogEntry"
)

// NetworkEvent is the externally-tagged telemetry shape serialized onto
// every WebSocket subscriber: {"type": "<Kind>", "data": {...}}.
type NetworkEvent struct {
	Type EventKind   `json:"type"`
	Data interface{} `json:"data"`
}

// MarshalJSON renders the tagged shape directly rather than relying on the
// zero-value struct tags, so Data can be any of the per-kind payload types.
func (e NetworkEvent) MarshalJSON() ([]byte, error) {
	type wire struct {
		Type EventKind   `json:"type"`
		Data interface{} `json:"data"`
	}
	return json.Marshal(wire{Type: e.Type, Data: e.Data})
}

type PeerConnectedData struct {
	Peer string `json:"peer"`
}

type PeerDisconnectedData struct {
	Peer string `json:"peer"`
}

type MessageSentData struct {
	From     string `json:"from"`
	To       string `json:"to"`
	Protocol string `json:"protocol"`
}

type MessageReceivedData struct {
	From     string `json:"from"`
	To       string `json:"to"`
	Protocol string `json:"protocol"`
}

type LogEntryData struct {
	From    string `json:"from"`
	Content string `json:"content"`
}

// subscription is one WebSocket client's lossy telemetry stream.
type subscription struct {
	ch     chan NetworkEvent
	mu     sync.Mutex
	closed bool
}

func newSubscription(capacity int) *subscription {
	return &subscription{ch: make(chan NetworkEvent, capacity)}
}

func (s *subscription) Events() <-chan NetworkEvent { return s.ch }

func (s *subscription) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}

// send is non-blocking: if the subscriber's buffer is full, the oldest
// buffered event is discarded to make room for the new one rather than
// stalling the publisher (spec.md §5: drop-oldest semantics under a fixed
// capacity of 100).
func (s *subscription) send(event NetworkEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.ch <- event:
	default:
		select {
		case <-s.ch:
		default:
		}
		select {
		case s.ch <- event:
		default:
		}
	}
}

// EventBus is a multi-producer, multi-consumer broadcast of NetworkEvents.
// Every subscriber gets its own bounded, independently lossy channel.
type EventBus struct {
	mu   sync.RWMutex
	subs []*subscription
}

// NewEventBus creates an empty bus.
func NewEventBus() *EventBus { return &EventBus{} }

const subscriberCapacity = 100

// Subscribe registers a fresh subscriber and returns its event channel and
// an unsubscribe function.
func (b *EventBus) Subscribe() (<-chan NetworkEvent, func()) {
	sub := newSubscription(subscriberCapacity)
	b.mu.Lock()
	b.subs = append(b.subs, sub)
	b.mu.Unlock()

	unsubscribe := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, s := range b.subs {
			if s == sub {
				s.Close()
				b.subs = append(b.subs[:i], b.subs[i+1:]...)
				return
			}
		}
	}
	return sub.Events(), unsubscribe
}

// Publish broadcasts event to every current subscriber.
func (b *EventBus) Publish(event NetworkEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subs {
		sub.send(event)
	}
}
