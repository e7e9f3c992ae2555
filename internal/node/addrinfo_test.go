package node

import (
	"testing"

	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/peer"
)

func testPeerID(t *testing.T) peer.ID {
	t.Helper()
	priv, _, err := crypto.GenerateEd25519Key(nil)
	if err != nil {
		t.Fatalf("generating key: %v", err)
	}
	id, err := peer.IDFromPrivateKey(priv)
	if err != nil {
		t.Fatalf("deriving peer id: %v", err)
	}
	return id
}

func TestBuildAddrInfoSkipsInvalidAddrs(t *testing.T) {
	id := testPeerID(t)
	info, err := buildAddrInfo(id, []string{"not-a-multiaddr", "/ip4/127.0.0.1/tcp/4001"})
	if err != nil {
		t.Fatalf("buildAddrInfo: %v", err)
	}
	if len(info.Addrs) != 1 {
		t.Fatalf("expected 1 valid addr, got %d", len(info.Addrs))
	}
}

func TestBuildAddrInfoRejectsAllInvalid(t *testing.T) {
	id := testPeerID(t)
	if _, err := buildAddrInfo(id, []string{"garbage"}); err == nil {
		t.Fatal("expected error when no addresses parse")
	}
}
