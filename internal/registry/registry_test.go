package registry

import (
	"testing"
	"time"

	"github.com/neviim/ghostmesh/internal/crdt"
)

func TestSnapshotReflectsLogAndPeers(t *testing.T) {
	log := crdt.New()
	log.Insert("hello")
	log.Insert("world")

	r := New("local-peer", log)
	r.AddPeer("peer-a")
	r.AppendDM("peer-a", "hi", time.Unix(100, 0))

	snap := r.Snapshot()
	if snap.LocalPeerID != "local-peer" {
		t.Fatalf("local_peer_id = %q", snap.LocalPeerID)
	}
	if len(snap.Peers) != 1 || snap.Peers[0] != "peer-a" {
		t.Fatalf("peers = %v", snap.Peers)
	}
	if len(snap.Log) != 2 {
		t.Fatalf("log = %v", snap.Log)
	}
	if len(snap.DMs) != 1 || snap.DMs[0].Content != "hi" {
		t.Fatalf("dms = %v", snap.DMs)
	}
}

func TestPendingDialsTracksMembership(t *testing.T) {
	r := New("local", crdt.New())
	if r.IsDialing("p1") {
		t.Fatal("expected p1 not dialing initially")
	}
	r.MarkDialing("p1")
	if !r.IsDialing("p1") {
		t.Fatal("expected p1 dialing after mark")
	}
	r.ClearDialing("p1")
	if r.IsDialing("p1") {
		t.Fatal("expected p1 cleared")
	}
}

func TestPublicKeyRetainedAcrossDisconnect(t *testing.T) {
	r := New("local", crdt.New())
	r.AddPeer("p1")
	r.SetPublicKey("p1", []byte("pubkey"))
	r.RemovePeer("p1")

	key, ok := r.PublicKey("p1")
	if !ok || string(key) != "pubkey" {
		t.Fatalf("expected public key retained, got %v %v", key, ok)
	}
	if r.IsConnected("p1") {
		t.Fatal("expected p1 disconnected")
	}
}
