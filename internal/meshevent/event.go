// Package meshevent defines the event shape the overlay transport and the
// gossip layer both use to report activity into the node loop's single
// event source (spec.md §4.7 item 3).
package meshevent

import "github.com/libp2p/go-libp2p/core/peer"

type Kind string

const (
	KindListenAddr            Kind = "listen_addr"
	KindPeerDiscovered        Kind = "peer_discovered"
	KindPeerExpired           Kind = "peer_expired"
	KindConnectionEstablished Kind = "connection_established"
	KindConnectionClosed      Kind = "connection_closed"
	KindIdentifyReceived      Kind = "identify_received"
	KindGossipMessage         Kind = "gossip_message"
	KindSubscribed            Kind = "subscribed"
	KindUnsubscribed          Kind = "unsubscribed"
	KindDialFailed            Kind = "dial_failed"
)

// Event is a single occurrence on the transport or gossip layer. Only the
// fields relevant to Kind are populated.
type Event struct {
	Kind Kind

	Addr string // KindListenAddr

	Peer peer.ID // KindPeerDiscovered/Expired/ConnectionEstablished/Closed/IdentifyReceived/DialFailed
	Addrs []string // KindPeerDiscovered: multiaddrs to dial

	IdentifyPublicKey       []byte   // KindIdentifyReceived
	IdentifyProtocolVersion string   // KindIdentifyReceived
	IdentifyListenAddrs     []string // KindIdentifyReceived

	Topic            string  // KindGossipMessage/Subscribed/Unsubscribed
	PropagationSource peer.ID // KindGossipMessage
	Payload          []byte  // KindGossipMessage
}
