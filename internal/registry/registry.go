// Package registry holds a node's runtime view of its peers: connection
// state, observed public keys, and the direct-message inbox. It also carries
// the bounded telemetry broadcast consumed by the WebSocket layer.
package registry

import (
	"sync"
	"time"

	"github.com/neviim/ghostmesh/internal/crdt"
)

// DM is an immutable, append-only direct-message inbox entry.
type DM struct {
	From      string `json:"from"`
	Content   string `json:"content"`
	Timestamp int64  `json:"timestamp"`
}

// State is the snapshot shape served by the HTTP layer: connected peers, the CRDT log, the DM inbox, and the local Peer
// ID (kept in every revision, resolving the reference's inconsistency).
type State struct {
	Peers       []string `json:"peers"`
	Log         []string `json:"log"`
	DMs         []DM     `json:"dms"`
	LocalPeerID string   `json:"local_peer_id"`
}

// Registry tracks connected peers, known public keys, the DM inbox, and the
// set of peers currently being dialed. Each field is independently
// lockable; Snapshot takes each lock in turn and copies.
type Registry struct {
	localPeerID string
	log         *crdt.GSet

	peersMu sync.RWMutex
	peers   map[string]struct{}

	knownMu sync.RWMutex
	known   map[string]struct{} // gossip-discovered peers, connected or not

	pubKeysMu sync.RWMutex
	pubKeys   map[string][]byte

	dmsMu sync.RWMutex
	dms   []DM

	// pendingDials is touched only by the node loop and needs no lock
	// (spec.md §5: single-owner, no concurrent access).
	pendingDials map[string]struct{}

	events *EventBus
}

// New creates a Registry bound to the given local Peer ID string and CRDT
// log. The log is the same instance the node loop mutates; Snapshot reads
// it under its own lock.
func New(localPeerID string, log *crdt.GSet) *Registry {
	return &Registry{
		localPeerID:  localPeerID,
		log:          log,
		peers:        make(map[string]struct{}),
		known:        make(map[string]struct{}),
		pubKeys:      make(map[string][]byte),
		pendingDials: make(map[string]struct{}),
		events:       NewEventBus(),
	}
}

// Events returns the registry's telemetry broadcast.
func (r *Registry) Events() *EventBus { return r.events }

// AddPeer records a connected peer.
func (r *Registry) AddPeer(id string) {
	r.peersMu.Lock()
	r.peers[id] = struct{}{}
	r.peersMu.Unlock()
}

// RemovePeer drops a peer's connected status. Its public key, if any,
// is retained (spec.md §3: advisory across reconnections).
func (r *Registry) RemovePeer(id string) {
	r.peersMu.Lock()
	delete(r.peers, id)
	r.peersMu.Unlock()
}

// ConnectedPeers returns the IDs of currently connected peers.
func (r *Registry) ConnectedPeers() []string {
	r.peersMu.RLock()
	defer r.peersMu.RUnlock()
	out := make([]string, 0, len(r.peers))
	for id := range r.peers {
		out = append(out, id)
	}
	return out
}

// IsConnected reports whether id is currently connected.
func (r *Registry) IsConnected(id string) bool {
	r.peersMu.RLock()
	defer r.peersMu.RUnlock()
	_, ok := r.peers[id]
	return ok
}

// AddKnownPeer records a gossip- or mDNS-discovered peer, connected or not.
func (r *Registry) AddKnownPeer(id string) {
	r.knownMu.Lock()
	r.known[id] = struct{}{}
	r.knownMu.Unlock()
}

// RemoveKnownPeer drops a peer from the known set, e.g. on mDNS expiry.
func (r *Registry) RemoveKnownPeer(id string) {
	r.knownMu.Lock()
	delete(r.known, id)
	r.knownMu.Unlock()
}

// KnownPeers returns every gossip-known peer ID, connected or not.
func (r *Registry) KnownPeers() []string {
	r.knownMu.RLock()
	defer r.knownMu.RUnlock()
	out := make([]string, 0, len(r.known))
	for id := range r.known {
		out = append(out, id)
	}
	return out
}

// SetPublicKey records id's public key as observed by an identify exchange.
func (r *Registry) SetPublicKey(id string, key []byte) {
	r.pubKeysMu.Lock()
	r.pubKeys[id] = key
	r.pubKeysMu.Unlock()
}

// PublicKey returns id's last-observed public key, if any.
func (r *Registry) PublicKey(id string) ([]byte, bool) {
	r.pubKeysMu.RLock()
	defer r.pubKeysMu.RUnlock()
	key, ok := r.pubKeys[id]
	return key, ok
}

// MarkDialing adds id to the pending-dials set. The caller must be the node
// loop; no lock is taken (spec.md §5).
func (r *Registry) MarkDialing(id string) { r.pendingDials[id] = struct{}{} }

// ClearDialing removes id from the pending-dials set, on success, failure,
// or connection close.
func (r *Registry) ClearDialing(id string) { delete(r.pendingDials, id) }

// IsDialing reports whether id currently has an outstanding dial.
func (r *Registry) IsDialing(id string) bool {
	_, ok := r.pendingDials[id]
	return ok
}

// AppendDM appends an immutable inbox entry, stamped with now in seconds
// since epoch (the node loop passes the current wall-clock time).
func (r *Registry) AppendDM(from, content string, now time.Time) DM {
	entry := DM{From: from, Content: content, Timestamp: now.Unix()}
	r.dmsMu.Lock()
	r.dms = append(r.dms, entry)
	r.dmsMu.Unlock()
	return entry
}

// DMs returns a copy of the DM inbox.
func (r *Registry) DMs() []DM {
	r.dmsMu.RLock()
	defer r.dmsMu.RUnlock()
	out := make([]DM, len(r.dms))
	copy(out, r.dms)
	return out
}

// Snapshot copies every field of the registry's state in turn, matching the
// shape served by GET /api/state.
func (r *Registry) Snapshot() State {
	return State{
		Peers:       r.ConnectedPeers(),
		Log:         r.log.Sorted(),
		DMs:         r.DMs(),
		LocalPeerID: r.localPeerID,
	}
}
