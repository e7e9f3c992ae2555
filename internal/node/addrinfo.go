package node

import (
	"fmt"

	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/multiformats/go-multiaddr"
)

// buildAddrInfo parses the multiaddr strings a discovery event carried into
// a peer.AddrInfo suitable for Transport.Connect.
func buildAddrInfo(p peer.ID, addrs []string) (peer.AddrInfo, error) {
	info := peer.AddrInfo{ID: p}
	for _, s := range addrs {
		ma, err := multiaddr.NewMultiaddr(s)
		if err != nil {
			continue
		}
		info.Addrs = append(info.Addrs, ma)
	}
	if len(info.Addrs) == 0 {
		return peer.AddrInfo{}, fmt.Errorf("no valid addresses for peer %s", p)
	}
	return info, nil
}
