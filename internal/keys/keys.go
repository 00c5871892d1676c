// Package keys produces key material for the auth exchange: random bytes,
// AEAD nonces and keys, and X25519 key pairs. The packet codec never looks
// inside auth data, so these are consumed by whoever builds auth bodies.
package keys

import (
	"crypto/rand"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/curve25519"
)

var ErrKeySize = errors.New("keys: wrong key size")

const (
	NonceSize        = chacha20poly1305.NonceSize // 12
	SymmetricKeySize = chacha20poly1305.KeySize   // 32
	PublicKeySize    = curve25519.PointSize       // 32
	PrivateKeySize   = curve25519.ScalarSize      // 32
)

// Random returns n bytes from the system CSPRNG.
func Random(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("keys: read random: %w", err)
	}
	return b, nil
}

// NewNonce returns a fresh AEAD nonce.
func NewNonce() ([]byte, error) {
	return Random(NonceSize)
}

// NewSymmetricKey returns a fresh ChaCha20-Poly1305 key.
func NewSymmetricKey() ([]byte, error) {
	return Random(SymmetricKeySize)
}

// KeyPair is an X25519 key pair.
type KeyPair struct {
	Public  []byte
	Private []byte
}

// NewKeyPair generates an X25519 key pair.
func NewKeyPair() (KeyPair, error) {
	priv, err := Random(PrivateKeySize)
	if err != nil {
		return KeyPair{}, err
	}
	pub, err := curve25519.X25519(priv, curve25519.Basepoint)
	if err != nil {
		return KeyPair{}, fmt.Errorf("keys: derive public key: %w", err)
	}
	return KeyPair{Public: pub, Private: priv}, nil
}

// SharedSecret runs X25519 between our private key and the peer's public key.
func (kp KeyPair) SharedSecret(peerPublic []byte) ([]byte, error) {
	if len(peerPublic) != PublicKeySize {
		return nil, fmt.Errorf("%w: public key is %d bytes, want %d", ErrKeySize, len(peerPublic), PublicKeySize)
	}
	secret, err := curve25519.X25519(kp.Private, peerPublic)
	if err != nil {
		return nil, fmt.Errorf("keys: x25519: %w", err)
	}
	return secret, nil
}
