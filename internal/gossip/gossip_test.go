package gossip

import (
	"testing"

	pubsub "github.com/libp2p/go-libp2p-pubsub"
	pubsub_pb "github.com/libp2p/go-libp2p-pubsub/pb"
)

func withPayload(data []byte) *pubsub.Message {
	return &pubsub.Message{Message: &pubsub_pb.Message{Data: data}}
}

func TestMessageIDStableForSamePayload(t *testing.T) {
	a := withPayload([]byte("hello"))
	b := withPayload([]byte("hello"))

	if messageID(a) != messageID(b) {
		t.Fatal("expected identical payloads to produce identical message IDs")
	}
}

func TestMessageIDDiffersForDifferentPayloads(t *testing.T) {
	a := withPayload([]byte("hello"))
	b := withPayload([]byte("world"))

	if messageID(a) == messageID(b) {
		t.Fatal("expected different payloads to produce different message IDs")
	}
}

func TestMessageIDEmptyPayload(t *testing.T) {
	msg := withPayload(nil)
	if messageID(msg) == "" {
		t.Fatal("expected non-empty message ID even for empty payload")
	}
}
