// Package dm implements GhostMesh's direct-message wire format and its
// prototype encryption primitive.
//
// The reference node encrypts every DM with a hard-coded symmetric key and
// a reused nonce — not confidential against anyone who reads the binary.
// This package preserves that behavior exactly for interop (spec.md §4.8)
// while exposing a DerivedKeyFunc hook so a future revision can swap in a
// per-recipient key (see Derive, and spec.md §9's X25519 follow-up) without
// changing the wire shape.
package dm

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// fixedKey and fixedNonce are the prototype's hard-coded secret material.
// Every node ships with the same values, so this provides no confidentiality
// — it exists only to exercise the wire format until a keyed exchange lands.
var (
	fixedKey   = []byte("an example very very secret key.")
	fixedNonce = []byte("unique nonce")
)

// Message is the canonical wire shape for the private gossip topic. Field
// names and base64 encoding are fixed by spec.md §4.8 and MUST NOT change.
type Message struct {
	To         string `json:"to"`
	Ciphertext string `json:"ciphertext"`
	Nonce      string `json:"nonce"`
}

// Encrypt seals plaintext for recipient using the fixed prototype key and
// nonce, and returns the canonical wire message.
func Encrypt(recipient, plaintext string) (Message, error) {
	return EncryptWith(recipient, fixedKey, fixedNonce, plaintext)
}

// Decrypt opens a Message's ciphertext using the prototype fixed key. It
// trusts the nonce carried on the wire rather than assuming the fixed one,
// so the format is forward-compatible with a future per-message random
// nonce (see Derive).
func Decrypt(msg Message) (string, error) {
	return DecryptWith(fixedKey, msg)
}

// EncryptWith seals plaintext for recipient under an explicit key and
// nonce, rather than the hard-coded prototype pair. This is the entry point
// EncryptDerived (see derive.go) uses once a per-pair key has been derived;
// the wire shape produced is identical to Encrypt's.
func EncryptWith(recipient string, key, nonce []byte, plaintext string) (Message, error) {
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return Message{}, fmt.Errorf("dm: creating AEAD: %w", err)
	}

	ciphertext := aead.Seal(nil, nonce, []byte(plaintext), nil)
	return Message{
		To:         recipient,
		Ciphertext: base64.StdEncoding.EncodeToString(ciphertext),
		Nonce:      base64.StdEncoding.EncodeToString(nonce),
	}, nil
}

// DecryptWith opens msg's ciphertext under an explicit key, using the nonce
// carried on the wire (never the fixed prototype nonce), so it works for
// both Encrypt-produced and EncryptDerived-produced messages.
func DecryptWith(key []byte, msg Message) (string, error) {
	nonce, err := base64.StdEncoding.DecodeString(msg.Nonce)
	if err != nil {
		return "", fmt.Errorf("dm: decoding nonce: %w", err)
	}
	ciphertext, err := base64.StdEncoding.DecodeString(msg.Ciphertext)
	if err != nil {
		return "", fmt.Errorf("dm: decoding ciphertext: %w", err)
	}

	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return "", fmt.Errorf("dm: creating AEAD: %w", err)
	}

	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("dm: decryption failed: %w", err)
	}
	return string(plaintext), nil
}

// Encode marshals a Message for publication on the private gossip topic.
func (m Message) Encode() ([]byte, error) {
	return json.Marshal(m)
}

// Decode parses a Message received on the private gossip topic.
func Decode(data []byte) (Message, error) {
	var m Message
	err := json.Unmarshal(data, &m)
	return m, err
}

// randomNonce is retained for the Derive upgrade path (spec.md §9): once a
// per-pair key is in use, reusing fixedNonce would be catastrophic with an
// AEAD, so a fresh random nonce must accompany every message.
func randomNonce() ([]byte, error) {
	nonce := make([]byte, chacha20poly1305.NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	return nonce, nil
}
