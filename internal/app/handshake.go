package app

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/1ureka/rum3/internal/keys"
	"github.com/1ureka/rum3/internal/protocol"
)

// The greeting carries key material only; no traffic is encrypted with it.
//
//	client-hello: client public key
//	server-hello: server public key || nonce
//	client-ack:   empty
//	server-ack:   empty

// serverHello answers a client-hello and returns the agreed secret's fingerprint.
func serverHello(hello protocol.AuthBody) (protocol.AuthBody, string, error) {
	kp, err := keys.NewKeyPair()
	if err != nil {
		return protocol.AuthBody{}, "", err
	}
	secret, err := kp.SharedSecret(hello.Data)
	if err != nil {
		return protocol.AuthBody{}, "", err
	}
	nonce, err := keys.NewNonce()
	if err != nil {
		return protocol.AuthBody{}, "", err
	}

	data := make([]byte, 0, keys.PublicKeySize+keys.NonceSize)
	data = append(data, kp.Public...)
	data = append(data, nonce...)
	return protocol.AuthBody{Type: protocol.AuthServerHello, Data: data}, fingerprint(secret), nil
}

// clientSecret completes the client side from a server-hello.
func clientSecret(kp keys.KeyPair, hello protocol.AuthBody) (string, error) {
	if len(hello.Data) != keys.PublicKeySize+keys.NonceSize {
		return "", fmt.Errorf("%w: server hello of %d bytes", protocol.ErrInvalidAuth, len(hello.Data))
	}
	secret, err := kp.SharedSecret(hello.Data[:keys.PublicKeySize])
	if err != nil {
		return "", err
	}
	return fingerprint(secret), nil
}

// fingerprint is a short printable digest both ends can compare.
func fingerprint(secret []byte) string {
	sum := sha256.Sum256(secret)
	return hex.EncodeToString(sum[:6])
}
