// Package protocol defines the rum3 wire format: a fixed 64-byte header
// followed by an opaque payload, integrity-checked with CRC32.
package protocol

import "bytes"

// Packet is one header plus its payload. Packets are built once, either by
// NewPacket at send time or by Decode at receive time, and are not modified
// afterwards.
type Packet struct {
	Header  Header
	Payload []byte
}

// NewPacket builds a Call packet whose header is derived from payload.
func NewPacket(payload []byte, sessionID uint64) *Packet {
	return NewTypedPacket(MsgCall, payload, sessionID)
}

// NewTypedPacket builds a packet of the given message type. The payload is
// copied so the packet never aliases caller memory.
func NewTypedPacket(t MsgType, payload []byte, sessionID uint64) *Packet {
	h := NewHeader(payload, sessionID)
	h.Type = t
	return &Packet{Header: h, Payload: bytes.Clone(payload)}
}

// Len returns the encoded size of the packet.
func (p *Packet) Len() int {
	return HeaderSize + len(p.Payload)
}
