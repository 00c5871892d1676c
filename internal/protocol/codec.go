package protocol

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
)

// Encode serializes a Packet: header bytes immediately followed by the payload.
func Encode(pkt *Packet) []byte {
	buf := make([]byte, HeaderSize+len(pkt.Payload))
	putHeader(buf[:HeaderSize], pkt.Header)
	copy(buf[HeaderSize:], pkt.Payload)
	return buf
}

// Decode parses and validates a complete packet held in data.
//
// Checks run in a fixed order: header layout, magic, version, payload
// length, checksum.
func Decode(data []byte) (*Packet, error) {
	h, err := DecodeHeader(data)
	if err != nil {
		return nil, err
	}
	if h.Magic != Magic {
		return nil, fmt.Errorf("%w: %q", ErrInvalidMagic, h.Magic[:])
	}
	if h.Version != Version {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, h.Version)
	}

	if uint64(len(data)-HeaderSize) < uint64(h.PayloadLen) {
		return nil, fmt.Errorf("%w: declared %d payload bytes, have %d",
			ErrInvalidPayload, h.PayloadLen, len(data)-HeaderSize)
	}

	payload := bytes.Clone(data[HeaderSize : HeaderSize+int(h.PayloadLen)])
	if sum := crc32.ChecksumIEEE(payload); sum != h.Checksum {
		return nil, fmt.Errorf("%w: header %08x, payload %08x", ErrChecksumMismatch, h.Checksum, sum)
	}

	return &Packet{Header: h, Payload: payload}, nil
}

// ReadPacket reads exactly one packet from a byte stream: HeaderSize bytes,
// then exactly the declared payload length. A declared length above
// maxPayload fails with ErrInvalidPayload before anything is allocated.
// Read failures are returned as-is so callers can tell a closed stream
// from a malformed packet.
func ReadPacket(r io.Reader, maxPayload uint32) (*Packet, error) {
	var hdr [HeaderSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, err
	}

	n := binary.LittleEndian.Uint32(hdr[offPayloadLen:offSessionID])
	if n > maxPayload {
		return nil, fmt.Errorf("%w: payload length %d exceeds limit %d", ErrInvalidPayload, n, maxPayload)
	}

	buf := make([]byte, HeaderSize+int(n))
	copy(buf, hdr[:])
	if _, err := io.ReadFull(r, buf[HeaderSize:]); err != nil {
		return nil, err
	}
	return Decode(buf)
}
