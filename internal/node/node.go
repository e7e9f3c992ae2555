// Package node implements the central event loop that binds identity,
// CRDT log, persistent store, peer registry, overlay transport, and gossip
// together. It is grounded on the original Rust implementation's
// tokio::select! loop (original_source/src/p2p.rs) and on the teacher's
// goroutine-per-daemon pattern in cmd/vaultd/main.go, generalized into a
// single cooperative multiplexer (spec.md §4.7).
package node

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/libp2p/go-libp2p/core/peer"
	"go.uber.org/zap"

	"github.com/neviim/ghostmesh/internal/crdt"
	"github.com/neviim/ghostmesh/internal/dm"
	"github.com/neviim/ghostmesh/internal/gossip"
	"github.com/neviim/ghostmesh/internal/identity"
	"github.com/neviim/ghostmesh/internal/meshevent"
	"github.com/neviim/ghostmesh/internal/registry"
	"github.com/neviim/ghostmesh/internal/store"
	"github.com/neviim/ghostmesh/internal/transport"
)

// Node is the runtime object the CLI bootstraps and runs until the process
// exits.
type Node struct {
	Port int

	id        identity.Identity
	log       *crdt.GSet
	registry  *registry.Registry
	transport *transport.Transport
	gossip    *gossip.Router
	logger    *zap.Logger

	commands    chan Command
	dialResults chan meshevent.Event
}

// New wires together a node on the given port with the given persisted
// identity and CRDT log.
func New(port int, id identity.Identity, log *crdt.GSet, t *transport.Transport, g *gossip.Router, logger *zap.Logger) *Node {
	return &Node{
		Port:        port,
		id:          id,
		log:         log,
		registry:    registry.New(id.String(), log),
		transport:   t,
		gossip:      g,
		logger:      logger,
		commands:    make(chan Command, 32),
		dialResults: make(chan meshevent.Event, 32),
	}
}

// Registry exposes the node's peer registry, for the HTTP layer to read
// snapshots and telemetry from.
func (n *Node) Registry() *registry.Registry { return n.registry }

// Commands returns the channel the HTTP layer pushes Log/SendDm commands
// onto.
func (n *Node) Commands() chan<- Command { return n.commands }

// Run starts the three joined topics and enters the select loop over the
// command channel, stdin, and the unified transport/gossip event stream. It
// blocks until ctx is cancelled.
func (n *Node) Run(ctx context.Context, stdin io.Reader) error {
	for _, topic := range []string{gossip.TopicGlobal, gossip.TopicCRDT, gossip.TopicPrivate} {
		if err := n.gossip.Join(topic); err != nil {
			return fmt.Errorf("node: joining topic %s: %w", topic, err)
		}
	}

	lines := make(chan string)
	go scanLines(stdin, lines)

	transportEvents := n.transport.Events()
	gossipEvents := n.gossip.Events()

	for {
		select {
		case <-ctx.Done():
			return nil

		case cmd := <-n.commands:
			n.handleCommand(cmd)

		case line, ok := <-lines:
			if !ok {
				lines = nil
				continue
			}
			n.handleStdin(line)

		case evt := <-transportEvents:
			n.handleEvent(evt)

		case evt := <-gossipEvents:
			n.handleEvent(evt)

		case evt := <-n.dialResults:
			n.handleEvent(evt)
		}
	}
}

func scanLines(r io.Reader, out chan<- string) {
	defer close(out)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		out <- scanner.Text()
	}
}

func (n *Node) handleCommand(cmd Command) {
	switch cmd.Kind {
	case CommandLog:
		n.appendLog(cmd.Message)
	case CommandSendDM:
		n.sendDM(cmd.To, cmd.Content)
	}
}

func (n *Node) handleStdin(line string) {
	if !strings.HasPrefix(line, "/") {
		if err := n.gossip.Publish(gossip.TopicGlobal, []byte(line)); err != nil {
			n.logger.Error("publishing global message", zap.Error(err))
		}
		return
	}

	fields := strings.Fields(line)
	cmdName := fields[0]
	rest := strings.TrimSpace(strings.TrimPrefix(line, cmdName))

	switch cmdName {
	case "/peers":
		connected := n.registry.ConnectedPeers()
		known := n.registry.KnownPeers()
		fmt.Printf("Connected Peers: %d %v\n", len(connected), connected)
		fmt.Printf("Known Peers: %d %v\n", len(known), known)

	case "/log":
		n.appendLog(rest)

	case "/dm":
		parts := strings.SplitN(rest, " ", 2)
		if len(parts) != 2 {
			fmt.Println("usage: /dm <peer_id> <message>")
			return
		}
		n.sendDM(parts[0], parts[1])

	case "/show":
		fmt.Printf("%v\n", n.log.Sorted())

	default:
		fmt.Println("usage: /peers | /log <message> | /dm <peer_id> <message> | /show")
	}
}

func (n *Node) appendLog(message string) {
	n.log.Insert(message)
	if err := store.Save(n.Port, n.log); err != nil {
		n.logger.Error("persisting snapshot", zap.Error(err))
	}

	data, err := n.log.MarshalJSON()
	if err != nil {
		n.logger.Error("encoding CRDT payload", zap.Error(err))
		return
	}
	if err := n.gossip.Publish(gossip.TopicCRDT, data); err != nil {
		n.logger.Error("publishing CRDT payload", zap.Error(err))
	}
}

func (n *Node) sendDM(to, content string) {
	peerID, err := peer.Decode(to)
	if err != nil {
		fmt.Printf("invalid peer id %q: %v\n", to, err)
		return
	}

	if _, ok := n.registry.PublicKey(peerID.String()); !ok {
		fmt.Printf("no known public key for %s; cannot send DM\n", to)
		return
	}

	msg, err := dm.Encrypt(to, content)
	if err != nil {
		fmt.Printf("encryption failed: %v\n", err)
		return
	}

	data, err := msg.Encode()
	if err != nil {
		n.logger.Error("encoding DM", zap.Error(err))
		return
	}

	if err := n.gossip.Publish(gossip.TopicPrivate, data); err != nil {
		n.logger.Error("publishing DM", zap.Error(err))
		return
	}

	n.registry.Events().Publish(registry.NetworkEvent{
		Type: registry.EventMessageSent,
		Data: registry.MessageSentData{From: n.id.String(), To: to, Protocol: "private"},
	})
}

func (n *Node) handleEvent(evt meshevent.Event) {
	switch evt.Kind {
	case meshevent.KindListenAddr:
		n.logger.Info("listening", zap.String("addr", evt.Addr))

	case meshevent.KindPeerDiscovered:
		id := evt.Peer.String()
		n.registry.AddKnownPeer(id)
		if n.registry.IsConnected(id) || n.registry.IsDialing(id) {
			return
		}
		n.registry.MarkDialing(id)
		go n.dial(evt.Peer, evt.Addrs)

	case meshevent.KindDialFailed:
		n.registry.ClearDialing(evt.Peer.String())

	case meshevent.KindPeerExpired:
		n.registry.RemoveKnownPeer(evt.Peer.String())

	case meshevent.KindConnectionEstablished:
		id := evt.Peer.String()
		n.registry.AddPeer(id)
		n.registry.ClearDialing(id)
		n.registry.Events().Publish(registry.NetworkEvent{
			Type: registry.EventPeerConnected,
			Data: registry.PeerConnectedData{Peer: id},
		})

	case meshevent.KindConnectionClosed:
		id := evt.Peer.String()
		n.registry.RemovePeer(id)
		n.registry.ClearDialing(id)
		n.registry.Events().Publish(registry.NetworkEvent{
			Type: registry.EventPeerDisconnected,
			Data: registry.PeerDisconnectedData{Peer: id},
		})

	case meshevent.KindIdentifyReceived:
		n.registry.SetPublicKey(evt.Peer.String(), evt.IdentifyPublicKey)

	case meshevent.KindGossipMessage:
		n.handleGossipMessage(evt)

	case meshevent.KindSubscribed:
		n.logger.Info("subscribed", zap.String("topic", evt.Topic))

	case meshevent.KindUnsubscribed:
		n.logger.Info("unsubscribed", zap.String("topic", evt.Topic))
	}
}

// dial runs on its own goroutine, so it must never touch pendingDials
// directly — the set is single-owner, read and written only by the node
// loop (spec.md §5). Failures are reported back as a KindDialFailed event
// on n.dialResults, which the loop's select picks up and clears under its
// own sequencing, the same way a transport or gossip event would.
func (n *Node) dial(p peer.ID, addrs []string) {
	pi, err := buildAddrInfo(p, addrs)
	if err != nil {
		n.logger.Error("building addr info", zap.Error(err))
		n.dialResults <- meshevent.Event{Kind: meshevent.KindDialFailed, Peer: p}
		return
	}
	if err := n.transport.Connect(context.Background(), pi); err != nil {
		n.logger.Error("dial failed", zap.String("peer", p.String()), zap.Error(err))
		n.dialResults <- meshevent.Event{Kind: meshevent.KindDialFailed, Peer: p}
	}
	// On success, ClearDialing happens when the connection-established
	// event arrives (spec.md §4.5).
}

func (n *Node) handleGossipMessage(evt meshevent.Event) {
	switch evt.Topic {
	case gossip.TopicCRDT:
		incoming := crdt.New()
		if err := incoming.UnmarshalJSON(evt.Payload); err != nil {
			n.logger.Error("decoding CRDT payload", zap.Error(err))
			return
		}
		before := n.log.Len()
		n.log.Merge(incoming)
		if n.log.Len() == before {
			return
		}
		if err := store.Save(n.Port, n.log); err != nil {
			n.logger.Error("persisting merged snapshot", zap.Error(err))
		}
		n.registry.Events().Publish(registry.NetworkEvent{
			Type: registry.EventLogEntry,
			Data: registry.LogEntryData{From: evt.PropagationSource.String(), Content: "merged"},
		})

	case gossip.TopicPrivate:
		msg, err := dm.Decode(evt.Payload)
		if err != nil {
			n.logger.Error("decoding private message", zap.Error(err))
			return
		}
		if msg.To != n.id.String() {
			return
		}
		plaintext, err := dm.Decrypt(msg)
		if err != nil {
			n.logger.Error("decrypting private message", zap.Error(err))
			return
		}
		from := evt.PropagationSource.String()
		fmt.Printf("*** PRIVATE MESSAGE from %s: %s ***\n", from, plaintext)
		n.registry.AppendDM(from, plaintext, time.Now())
		n.registry.Events().Publish(registry.NetworkEvent{
			Type: registry.EventMessageReceived,
			Data: registry.MessageReceivedData{From: from, To: msg.To, Protocol: "private"},
		})

	case gossip.TopicGlobal:
		fmt.Printf("%s: %s\n", evt.PropagationSource.String(), string(evt.Payload))
		n.registry.Events().Publish(registry.NetworkEvent{
			Type: registry.EventMessageReceived,
			Data: registry.MessageReceivedData{From: evt.PropagationSource.String(), To: "", Protocol: "global"},
		})
	}
}
