package transport

import (
	"context"
	"fmt"
	"time"

	dht "github.com/libp2p/go-libp2p-kad-dht"
	"github.com/libp2p/go-libp2p/core/peer"
	drouting "github.com/libp2p/go-libp2p/p2p/discovery/routing"
	dutil "github.com/libp2p/go-libp2p/p2p/discovery/util"
	"go.uber.org/zap"

	"github.com/neviim/ghostmesh/internal/meshevent"
)

// rendezvousNamespace is the DHT advertising namespace for wide-area
// GhostMesh discovery, an optional supplement to the LAN-only mDNS path
// mandated by spec.md §4.5 (see SPEC_FULL.md's domain-stack wiring notes).
const rendezvousNamespace = "/ghostmesh/1.0.0"

// EnableDHT bootstraps a Kademlia DHT in client mode against the default
// IPFS bootstrap peers, advertises this node under rendezvousNamespace, and
// forwards discovered peers as KindPeerDiscovered events exactly like mDNS.
func (t *Transport) EnableDHT(ctx context.Context) error {
	kadDHT, err := dht.New(ctx, t.host, dht.Mode(dht.ModeClient))
	if err != nil {
		return fmt.Errorf("transport: creating DHT: %w", err)
	}

	if err := kadDHT.Bootstrap(ctx); err != nil {
		return fmt.Errorf("transport: bootstrapping DHT: %w", err)
	}

	for _, addr := range dht.DefaultBootstrapPeers {
		pi, err := peer.AddrInfoFromP2pAddr(addr)
		if err != nil {
			continue
		}
		go func(pi peer.AddrInfo) {
			dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			_ = t.host.Connect(dialCtx, pi)
		}(*pi)
	}

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		discovery := drouting.NewRoutingDiscovery(kadDHT)
		dutil.Advertise(ctx, discovery, rendezvousNamespace)

		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				t.findDHTPeers(ctx, discovery)
			}
		}
	}()

	t.log.Info("DHT discovery enabled", zap.String("namespace", rendezvousNamespace))
	return nil
}

func (t *Transport) findDHTPeers(ctx context.Context, discovery *drouting.RoutingDiscovery) {
	findCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	peerCh, err := discovery.FindPeers(findCtx, rendezvousNamespace)
	if err != nil {
		return
	}
	for pi := range peerCh {
		if pi.ID == t.host.ID() || len(pi.Addrs) == 0 {
			continue
		}
		addrs := make([]string, 0, len(pi.Addrs))
		for _, a := range pi.Addrs {
			addrs = append(addrs, a.String())
		}
		t.emit(meshevent.Event{Kind: meshevent.KindPeerDiscovered, Peer: pi.ID, Addrs: addrs})
	}
}
