// Package identity loads or mints the long-lived Ed25519 keypair that
// uniquely identifies a GhostMesh node on the mesh.
package identity

import (
	"fmt"
	"os"
	"path/filepath"

	libp2pcrypto "github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/peer"
)

const keyDir = ".key"

// Identity is a node's long-lived cryptographic identity.
type Identity struct {
	PrivateKey libp2pcrypto.PrivKey
	PublicKey  libp2pcrypto.PubKey
	PeerID     peer.ID
}

// String returns the canonical human-readable Peer ID.
func (id Identity) String() string {
	return id.PeerID.String()
}

// LoadOrCreate loads the identity persisted at .key/identity_<port>.key, or
// mints a fresh Ed25519 keypair and persists it there if the file is
// missing. Both the read and the write are fatal-at-startup failures per
// spec.md §4.1 — this function never falls back to an ephemeral identity.
func LoadOrCreate(port int) (Identity, error) {
	path := keyFilePath(port)

	if data, err := os.ReadFile(path); err == nil {
		priv, err := libp2pcrypto.UnmarshalPrivateKey(data)
		if err != nil {
			return Identity{}, fmt.Errorf("identity: corrupt key file %s: %w", path, err)
		}
		return fromPrivateKey(priv)
	} else if !os.IsNotExist(err) {
		return Identity{}, fmt.Errorf("identity: reading %s: %w", path, err)
	}

	priv, _, err := libp2pcrypto.GenerateEd25519Key(nil)
	if err != nil {
		return Identity{}, fmt.Errorf("identity: generating keypair: %w", err)
	}

	if err := persist(port, priv); err != nil {
		return Identity{}, err
	}

	return fromPrivateKey(priv)
}

func persist(port int, priv libp2pcrypto.PrivKey) error {
	if err := os.MkdirAll(keyDir, 0o700); err != nil {
		return fmt.Errorf("identity: creating %s: %w", keyDir, err)
	}

	data, err := libp2pcrypto.MarshalPrivateKey(priv)
	if err != nil {
		return fmt.Errorf("identity: encoding keypair: %w", err)
	}

	path := keyFilePath(port)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("identity: writing %s: %w", path, err)
	}
	return nil
}

func fromPrivateKey(priv libp2pcrypto.PrivKey) (Identity, error) {
	pub := priv.GetPublic()
	id, err := peer.IDFromPublicKey(pub)
	if err != nil {
		return Identity{}, fmt.Errorf("identity: deriving peer ID: %w", err)
	}
	return Identity{PrivateKey: priv, PublicKey: pub, PeerID: id}, nil
}

func keyFilePath(port int) string {
	return filepath.Join(keyDir, fmt.Sprintf("identity_%d.key", port))
}
