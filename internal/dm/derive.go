package dm

import (
	"crypto/ed25519"
	"crypto/sha512"
	"fmt"

	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/hkdf"
)

// DerivedKeyFunc computes a per-pair symmetric key and fresh nonce for a DM
// between two identities. It is the configuration hook spec.md §9 requires
// as the follow-up to the fixed-key prototype: Encrypt/Decrypt (dm.go) ignore
// it by default, but a node MAY opt in by calling EncryptDerived/
// DecryptDerived with Derive (or a compatible implementation) instead, once
// both ends support it.
type DerivedKeyFunc func(localPriv ed25519.PrivateKey, remotePub ed25519.PublicKey) (key, nonce []byte, err error)

// EncryptDerived seals plaintext for recipient using fn to compute a
// per-pair key and nonce instead of the fixed prototype pair. The resulting
// Message is wire-compatible with Encrypt's output — only the sender and
// recipient need to agree to use fn.
func EncryptDerived(fn DerivedKeyFunc, localPriv ed25519.PrivateKey, remotePub ed25519.PublicKey, recipient, plaintext string) (Message, error) {
	key, nonce, err := fn(localPriv, remotePub)
	if err != nil {
		return Message{}, fmt.Errorf("dm: deriving key: %w", err)
	}
	return EncryptWith(recipient, key, nonce, plaintext)
}

// DecryptDerived opens msg using fn to recompute the same per-pair key the
// sender used. The nonce is read from the wire, as with Decrypt.
func DecryptDerived(fn DerivedKeyFunc, localPriv ed25519.PrivateKey, remotePub ed25519.PublicKey, msg Message) (string, error) {
	key, _, err := fn(localPriv, remotePub)
	if err != nil {
		return "", fmt.Errorf("dm: deriving key: %w", err)
	}
	return DecryptWith(key, msg)
}

// Derive converts both Ed25519 identities to Montgomery (X25519) form, runs
// a Diffie-Hellman exchange, and stretches the shared secret through HKDF
// into a ChaCha20-Poly1305 key. A fresh random nonce is generated per call,
// closing the nonce-reuse hole the fixed-key prototype has (spec.md §9).
func Derive(localPriv ed25519.PrivateKey, remotePub ed25519.PublicKey) (key, nonce []byte, err error) {
	localX25519, err := ed25519PrivateToX25519(localPriv)
	if err != nil {
		return nil, nil, fmt.Errorf("dm: converting local key: %w", err)
	}
	remoteX25519, err := ed25519PublicToX25519(remotePub)
	if err != nil {
		return nil, nil, fmt.Errorf("dm: converting remote key: %w", err)
	}

	shared, err := curve25519.X25519(localX25519, remoteX25519)
	if err != nil {
		return nil, nil, fmt.Errorf("dm: X25519 exchange: %w", err)
	}

	kdf := hkdf.New(sha512.New, shared, nil, []byte("ghostmesh-dm-v1"))
	derived := make([]byte, 32)
	if _, err := kdf.Read(derived); err != nil {
		return nil, nil, fmt.Errorf("dm: deriving key: %w", err)
	}

	n, err := randomNonce()
	if err != nil {
		return nil, nil, fmt.Errorf("dm: generating nonce: %w", err)
	}
	return derived, n, nil
}

// ed25519PrivateToX25519 converts an Ed25519 signing key to its Montgomery
// (X25519) form by hashing the seed per RFC 8032 and clamping per RFC 7748.
func ed25519PrivateToX25519(priv ed25519.PrivateKey) ([]byte, error) {
	h := sha512.Sum512(priv.Seed())
	x := make([]byte, curve25519.ScalarSize)
	copy(x, h[:32])
	x[0] &= 248
	x[31] &= 127
	x[31] |= 64
	return x, nil
}

// ed25519PublicToX25519 converts an Ed25519 public key's Edwards point to
// its Montgomery u-coordinate.
func ed25519PublicToX25519(pub ed25519.PublicKey) ([]byte, error) {
	var edY, u [32]byte
	copy(edY[:], pub)
	// u = (1 + y) / (1 - y) over the field, computed via the standard
	// big-endian/little-endian edwards25519 birational map.
	if err := montgomeryUFromEdwardsY(edY, &u); err != nil {
		return nil, err
	}
	return u[:], nil
}
