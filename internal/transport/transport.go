// Package transport builds the authenticated, multiplexed libp2p overlay:
// Noise-secured, Yamux-multiplexed connections, mDNS peer discovery on the
// LAN, an identify exchange, and a liveness ping. It is grounded on the
// libp2p host wiring in the teacher's internal/sync/p2p.go, generalized
// from point-to-point state sync to a node loop that consumes a single
// event stream.
package transport

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/libp2p/go-libp2p"
	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/event"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/p2p/discovery/mdns"
	libp2pping "github.com/libp2p/go-libp2p/p2p/protocol/ping"
	"github.com/multiformats/go-multiaddr"
	"go.uber.org/zap"

	"github.com/neviim/ghostmesh/internal/meshevent"
)

// ProtocolVersion is advertised during identify (spec.md §4.5). The remote
// side's version is passed along on the identify event; it is not compared
// against this value and a connection is never rejected over a mismatch.
const ProtocolVersion = "ghostmesh/1.0.0"

const serviceName = "ghostmesh-discovery"

const (
	pingInterval = 60 * time.Second
	pingTimeout  = 30 * time.Second
)

// Transport owns the libp2p host and the mDNS/identify/ping sub-behaviors
// described in spec.md §4.5.
type Transport struct {
	host   host.Host
	log    *zap.Logger
	events chan meshevent.Event

	mdnsService mdns.Service
	pingService *libp2pping.PingService

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	pingMu    sync.Mutex
	pingStops map[peer.ID]context.CancelFunc
}

// New creates a libp2p host bound to priv, listening on 0.0.0.0:port, with
// Noise transport security and Yamux multiplexing (libp2p's defaults).
func New(priv crypto.PrivKey, port int, log *zap.Logger) (*Transport, error) {
	addr, err := multiaddr.NewMultiaddr(fmt.Sprintf("/ip4/0.0.0.0/tcp/%d", port))
	if err != nil {
		return nil, fmt.Errorf("transport: building listen addr: %w", err)
	}

	h, err := libp2p.New(
		libp2p.Identity(priv),
		libp2p.ListenAddrs(addr),
		libp2p.ProtocolVersion(ProtocolVersion),
	)
	if err != nil {
		return nil, fmt.Errorf("transport: creating libp2p host: %w", err)
	}

	t := &Transport{
		host:      h,
		log:       log,
		events:    make(chan meshevent.Event, 64),
		pingStops: make(map[peer.ID]context.CancelFunc),
	}
	return t, nil
}

// Host returns the underlying libp2p host, for the gossip layer to build a
// pubsub router on top of.
func (t *Transport) Host() host.Host { return t.host }

// Events returns the channel the node loop selects on for transport
// activity: listen addresses, discovery, connection lifecycle, and
// identify completions.
func (t *Transport) Events() <-chan meshevent.Event { return t.events }

// Start begins mDNS discovery, connection-lifecycle notification, identify
// tracking, and the ping liveness check.
func (t *Transport) Start(ctx context.Context) error {
	t.ctx, t.cancel = context.WithCancel(ctx)

	for _, addr := range t.host.Addrs() {
		t.emit(meshevent.Event{Kind: meshevent.KindListenAddr, Addr: addr.String()})
	}

	t.host.Network().Notify(&notifiee{t: t})

	t.mdnsService = mdns.NewMdnsService(t.host, serviceName, &discoveryNotifee{t: t})
	if err := t.mdnsService.Start(); err != nil {
		return fmt.Errorf("transport: starting mDNS: %w", err)
	}

	t.pingService = libp2pping.NewPingService(t.host)

	sub, err := t.host.EventBus().Subscribe(new(event.EvtPeerIdentificationCompleted))
	if err != nil {
		return fmt.Errorf("transport: subscribing to identify events: %w", err)
	}
	t.wg.Add(1)
	go t.watchIdentify(sub)

	return nil
}

// Stop tears down mDNS, pending pings, and the host itself.
func (t *Transport) Stop() error {
	if t.cancel != nil {
		t.cancel()
	}
	if t.mdnsService != nil {
		t.mdnsService.Close()
	}
	t.pingMu.Lock()
	for _, stop := range t.pingStops {
		stop()
	}
	t.pingMu.Unlock()
	t.wg.Wait()
	return t.host.Close()
}

// Connect dials a discovered peer; the node loop is responsible for
// consulting and updating the pending-dials set around this call
// (spec.md §4.5: dial-storm suppression is the loop's job, not the
// transport's).
func (t *Transport) Connect(ctx context.Context, pi peer.AddrInfo) error {
	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return t.host.Connect(dialCtx, pi)
}

// LocalID returns the host's own Peer ID.
func (t *Transport) LocalID() peer.ID { return t.host.ID() }

// Port returns the TCP port the host actually bound. When the node was
// launched with -p 0 (spec.md §6: ephemeral), this is the port the OS
// assigned, not the literal 0 the CLI was given, so callers that need to
// derive a second port from it (the HTTP surface at node_port+1, spec.md
// §4.9) never land on an unintended low-numbered port.
func (t *Transport) Port() (int, error) {
	for _, addr := range t.host.Addrs() {
		if portStr, err := addr.ValueForProtocol(multiaddr.P_TCP); err == nil {
			port, err := strconv.Atoi(portStr)
			if err != nil {
				continue
			}
			return port, nil
		}
	}
	return 0, fmt.Errorf("transport: no listen address with a tcp component")
}

func (t *Transport) emit(e meshevent.Event) {
	select {
	case t.events <- e:
	case <-t.ctx.Done():
	}
}

func (t *Transport) watchIdentify(sub event.Subscription) {
	defer t.wg.Done()
	defer sub.Close()
	for {
		select {
		case raw, ok := <-sub.Out():
			if !ok {
				return
			}
			evt, ok := raw.(event.EvtPeerIdentificationCompleted)
			if !ok {
				continue
			}
			t.handleIdentify(evt)
		case <-t.ctx.Done():
			return
		}
	}
}

func (t *Transport) handleIdentify(evt event.EvtPeerIdentificationCompleted) {
	pubKey := t.host.Peerstore().PubKey(evt.Peer)
	var keyBytes []byte
	if pubKey != nil {
		if data, err := crypto.MarshalPublicKey(pubKey); err == nil {
			keyBytes = data
		}
	}

	listenAddrs := make([]string, 0, len(evt.ListenAddrs))
	for _, a := range evt.ListenAddrs {
		listenAddrs = append(listenAddrs, a.String())
	}

	t.emit(meshevent.Event{
		Kind:                    meshevent.KindIdentifyReceived,
		Peer:                    evt.Peer,
		IdentifyPublicKey:       keyBytes,
		IdentifyProtocolVersion: evt.ProtocolVersion,
		IdentifyListenAddrs:     listenAddrs,
	})

	t.startPing(evt.Peer)
}

// startPing launches a 60-second-interval, 30-second-timeout liveness
// check against p; persistent failure closes the connection (spec.md §4.5).
func (t *Transport) startPing(p peer.ID) {
	t.pingMu.Lock()
	if _, exists := t.pingStops[p]; exists {
		t.pingMu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(t.ctx)
	t.pingStops[p] = cancel
	t.pingMu.Unlock()

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		defer func() {
			t.pingMu.Lock()
			delete(t.pingStops, p)
			t.pingMu.Unlock()
		}()

		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()

		consecutiveFailures := 0
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				pingCtx, pingCancel := context.WithTimeout(ctx, pingTimeout)
				res := <-t.pingService.Ping(pingCtx, p)
				pingCancel()
				if res.Error != nil {
					consecutiveFailures++
					if consecutiveFailures >= 2 {
						t.log.Warn("ping failures exceeded threshold, closing connection", zap.String("peer", p.String()))
						t.host.Network().ClosePeer(p)
						return
					}
					continue
				}
				consecutiveFailures = 0
			}
		}
	}()
}

// notifiee bridges libp2p's connection-lifecycle notifications into mesh
// events (spec.md §4.7 item 3: Connection established/closed).
type notifiee struct{ t *Transport }

func (n *notifiee) Connected(_ network.Network, c network.Conn) {
	n.t.emit(meshevent.Event{Kind: meshevent.KindConnectionEstablished, Peer: c.RemotePeer()})
}

func (n *notifiee) Disconnected(_ network.Network, c network.Conn) {
	n.t.emit(meshevent.Event{Kind: meshevent.KindConnectionClosed, Peer: c.RemotePeer()})
}

func (n *notifiee) Listen(network.Network, multiaddr.Multiaddr)      {}
func (n *notifiee) ListenClose(network.Network, multiaddr.Multiaddr) {}

// discoveryNotifee bridges mDNS discovery callbacks into mesh events.
type discoveryNotifee struct{ t *Transport }

func (d *discoveryNotifee) HandlePeerFound(pi peer.AddrInfo) {
	if pi.ID == d.t.host.ID() {
		return
	}
	addrs := make([]string, 0, len(pi.Addrs))
	for _, a := range pi.Addrs {
		addrs = append(addrs, a.String())
	}
	d.t.emit(meshevent.Event{Kind: meshevent.KindPeerDiscovered, Peer: pi.ID, Addrs: addrs})
}
