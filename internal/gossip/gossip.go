// Package gossip implements the three-topic publish/subscribe overlay:
// global chat, CRDT log replication, and private direct messages. It is
// grounded on the teacher's libp2p host usage (internal/sync/p2p.go) but
// replaces point-to-point state-hash sync with go-libp2p-pubsub's
// gossipsub, since spec.md §4.6 requires topic-based dedup and signed
// delivery the teacher's protocol never needed.
package gossip

import (
	"context"
	"fmt"
	"sync"
	"time"

	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"
	"go.uber.org/zap"

	"github.com/neviim/ghostmesh/internal/meshevent"
)

const (
	TopicGlobal  = "ghostmesh-global"
	TopicCRDT    = "ghostmesh-crdt"
	TopicPrivate = "ghostmesh-private"

	heartbeatInterval = 10 * time.Second
)

// Router owns the pubsub instance and the node's subscriptions to the three
// named topics.
type Router struct {
	ps  *pubsub.PubSub
	log *zap.Logger

	mu     sync.Mutex
	topics map[string]*pubsub.Topic
	subs   map[string]*pubsub.Subscription

	events chan meshevent.Event

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New builds a gossipsub router over h with permissive validation (anonymous
// signer IDs are accepted) and a 10-second heartbeat.
func New(ctx context.Context, h host.Host, log *zap.Logger) (*Router, error) {
	rctx, cancel := context.WithCancel(ctx)

	ps, err := pubsub.NewGossipSub(rctx, h,
		pubsub.WithMessageIdFn(messageID),
		pubsub.WithMessageSignaturePolicy(pubsub.LaxSign),
		pubsub.WithGossipSubParams(gossipParams()),
	)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("gossip: creating pubsub: %w", err)
	}

	r := &Router{
		ps:     ps,
		log:    log,
		topics: make(map[string]*pubsub.Topic),
		subs:   make(map[string]*pubsub.Subscription),
		events: make(chan meshevent.Event, 64),
		ctx:    rctx,
		cancel: cancel,
	}
	return r, nil
}

func gossipParams() pubsub.GossipSubParams {
	p := pubsub.DefaultGossipSubParams()
	p.HeartbeatInterval = heartbeatInterval
	return p
}

// messageID is a 64-bit FNV-1a hash of the payload bytes, rendered as a
// decimal string (spec.md §4.6), used by pubsub to deduplicate deliveries.
func messageID(m *pubsub.Message) string {
	var h uint64 = 14695981039346656037
	for _, b := range m.Data {
		h ^= uint64(b)
		h *= 1099511628211
	}
	return fmt.Sprintf("%d", h)
}

// Events returns the channel carrying inbound messages and subscribe/
// unsubscribe notifications across all three topics.
func (r *Router) Events() <-chan meshevent.Event { return r.events }

// Join subscribes to topic, starting a background reader that forwards
// every message delivered on the subscription — including our own
// publishes, which gossipsub echoes back — as a meshevent.
func (r *Router) Join(topic string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.topics[topic]; exists {
		return nil
	}

	t, err := r.ps.Join(topic)
	if err != nil {
		return fmt.Errorf("gossip: joining topic %s: %w", topic, err)
	}
	sub, err := t.Subscribe()
	if err != nil {
		t.Close()
		return fmt.Errorf("gossip: subscribing to topic %s: %w", topic, err)
	}

	r.topics[topic] = t
	r.subs[topic] = sub

	r.wg.Add(1)
	go r.readLoop(topic, sub)

	r.emit(meshevent.Event{Kind: meshevent.KindSubscribed, Topic: topic})
	return nil
}

// Publish sends data on topic. Per spec.md §4.6 this fails if no peers are
// currently subscribed to the topic; the caller is expected to log and
// continue rather than treat it as fatal.
func (r *Router) Publish(topic string, data []byte) error {
	r.mu.Lock()
	t, ok := r.topics[topic]
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("gossip: not joined to topic %s", topic)
	}

	if len(t.ListPeers()) == 0 {
		return fmt.Errorf("gossip: no subscribers on topic %s", topic)
	}

	return t.Publish(r.ctx, data)
}

// Leave unsubscribes from topic and stops its reader.
func (r *Router) Leave(topic string) {
	r.mu.Lock()
	sub, ok := r.subs[topic]
	if ok {
		delete(r.subs, topic)
	}
	t, hasTopic := r.topics[topic]
	if hasTopic {
		delete(r.topics, topic)
	}
	r.mu.Unlock()

	if ok {
		sub.Cancel()
	}
	if hasTopic {
		t.Close()
	}
	r.emit(meshevent.Event{Kind: meshevent.KindUnsubscribed, Topic: topic})
}

// Stop cancels every subscription and shuts the router down.
func (r *Router) Stop() {
	r.mu.Lock()
	topics := make([]string, 0, len(r.topics))
	for topic := range r.topics {
		topics = append(topics, topic)
	}
	r.mu.Unlock()

	for _, topic := range topics {
		r.Leave(topic)
	}
	r.cancel()
	r.wg.Wait()
}

func (r *Router) readLoop(topic string, sub *pubsub.Subscription) {
	defer r.wg.Done()

	for {
		msg, err := sub.Next(r.ctx)
		if err != nil {
			return
		}
		r.emit(meshevent.Event{
			Kind:              meshevent.KindGossipMessage,
			Topic:             topic,
			PropagationSource: msg.ReceivedFrom,
			Payload:           msg.Data,
		})
	}
}

func (r *Router) emit(e meshevent.Event) {
	select {
	case r.events <- e:
	case <-r.ctx.Done():
	}
}

// LocalPeers reports peers subscribed to topic, for diagnostics.
func (r *Router) LocalPeers(topic string) []peer.ID {
	r.mu.Lock()
	t, ok := r.topics[topic]
	r.mu.Unlock()
	if !ok {
		return nil
	}
	return t.ListPeers()
}
