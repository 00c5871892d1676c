package protocol

import (
	"bytes"
	"fmt"
)

// AuthType selects the handshake step an Auth payload belongs to.
type AuthType uint8

const (
	AuthClientHello AuthType = 0
	AuthServerHello AuthType = 1
	AuthClientAck   AuthType = 2
	AuthServerAck   AuthType = 3
)

func (t AuthType) String() string {
	switch t {
	case AuthClientHello:
		return "client-hello"
	case AuthServerHello:
		return "server-hello"
	case AuthClientAck:
		return "client-ack"
	case AuthServerAck:
		return "server-ack"
	default:
		return fmt.Sprintf("authtype(%d)", uint8(t))
	}
}

// AuthBody is the payload of a MsgAuth packet: one type byte followed by
// handshake data whose layout belongs to the handshake implementation.
type AuthBody struct {
	Type AuthType
	Data []byte
}

// EncodeAuth serializes an auth body.
func EncodeAuth(b AuthBody) []byte {
	buf := make([]byte, 1+len(b.Data))
	buf[0] = byte(b.Type)
	copy(buf[1:], b.Data)
	return buf
}

// DecodeAuth parses an auth body. The returned Data does not alias p.
func DecodeAuth(p []byte) (AuthBody, error) {
	if len(p) == 0 {
		return AuthBody{}, fmt.Errorf("%w: empty payload", ErrInvalidAuth)
	}
	t := AuthType(p[0])
	if t > AuthServerAck {
		return AuthBody{}, fmt.Errorf("%w: unknown auth type %d", ErrInvalidAuth, p[0])
	}
	return AuthBody{Type: t, Data: bytes.Clone(p[1:])}, nil
}

// NewAuthPacket wraps an auth body in a MsgAuth packet.
func NewAuthPacket(b AuthBody, sessionID uint64) *Packet {
	return NewTypedPacket(MsgAuth, EncodeAuth(b), sessionID)
}

// Auth decodes the packet payload as an auth body. Non-Auth packets fail
// with ErrInvalidAuth.
func (p *Packet) Auth() (AuthBody, error) {
	if p.Header.Type != MsgAuth {
		return AuthBody{}, fmt.Errorf("%w: packet type is %s", ErrInvalidAuth, p.Header.Type)
	}
	return DecodeAuth(p.Payload)
}
