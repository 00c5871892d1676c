package protocol

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"time"
)

// Wire constants.
const (
	HeaderSize = 64 // fixed, never negotiated
	Version    = 1  // the only supported protocol version
)

// Magic is the 4-byte tag every rum3 packet starts with.
var Magic = [4]byte{'r', 'u', 'm', '3'}

// Header field offsets. All multi-byte integers are little-endian.
const (
	offMagic      = 0
	offVersion    = 4
	offType       = 5
	offReserved   = 6
	offPayloadLen = 16
	offSessionID  = 20
	offTimestamp  = 28
	offChecksum   = 36
	offPadding    = 40
)

// MsgType identifies the kind of message a packet carries.
type MsgType uint8

const (
	MsgCall  MsgType = 0
	MsgReply MsgType = 1
	MsgError MsgType = 2
	MsgAuth  MsgType = 3
)

func (t MsgType) String() string {
	switch t {
	case MsgCall:
		return "call"
	case MsgReply:
		return "reply"
	case MsgError:
		return "error"
	case MsgAuth:
		return "auth"
	default:
		return fmt.Sprintf("msgtype(%d)", uint8(t))
	}
}

func (t MsgType) valid() bool { return t <= MsgAuth }

// Header is the fixed 64-byte packet header.
//
// SessionID is an application-level tag chosen by the sender. It is carried
// in-band and has nothing to do with the transport's connection routing key.
type Header struct {
	Magic      [4]byte
	Version    uint8
	Type       MsgType
	Reserved   [10]byte
	PayloadLen uint32
	SessionID  uint64
	Timestamp  uint64 // milliseconds since the Unix epoch
	Checksum   uint32 // CRC32 (IEEE) of the payload
	Padding    [24]byte
}

// NewHeader derives a Call header for payload, stamped with the current time.
func NewHeader(payload []byte, sessionID uint64) Header {
	return Header{
		Magic:      Magic,
		Version:    Version,
		Type:       MsgCall,
		PayloadLen: uint32(len(payload)),
		SessionID:  sessionID,
		Timestamp:  uint64(time.Now().UnixMilli()),
		Checksum:   crc32.ChecksumIEEE(payload),
	}
}

// Time returns the header timestamp as a time.Time.
func (h Header) Time() time.Time {
	return time.UnixMilli(int64(h.Timestamp))
}

// EncodeHeader serializes h into exactly HeaderSize bytes.
func EncodeHeader(h Header) []byte {
	buf := make([]byte, HeaderSize)
	putHeader(buf, h)
	return buf
}

func putHeader(buf []byte, h Header) {
	copy(buf[offMagic:offVersion], h.Magic[:])
	buf[offVersion] = h.Version
	buf[offType] = byte(h.Type)
	copy(buf[offReserved:offPayloadLen], h.Reserved[:])
	binary.LittleEndian.PutUint32(buf[offPayloadLen:offSessionID], h.PayloadLen)
	binary.LittleEndian.PutUint64(buf[offSessionID:offTimestamp], h.SessionID)
	binary.LittleEndian.PutUint64(buf[offTimestamp:offChecksum], h.Timestamp)
	binary.LittleEndian.PutUint32(buf[offChecksum:offPadding], h.Checksum)
	copy(buf[offPadding:HeaderSize], h.Padding[:])
}

// DecodeHeader parses the first HeaderSize bytes of b. It only checks that
// the buffer is long enough and that the message type is known; magic and
// version are validated by Decode.
func DecodeHeader(b []byte) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, fmt.Errorf("%w: need %d bytes, got %d", ErrInvalidHeader, HeaderSize, len(b))
	}

	t := MsgType(b[offType])
	if !t.valid() {
		return Header{}, fmt.Errorf("%w: unknown message type %d", ErrInvalidHeader, b[offType])
	}

	var h Header
	copy(h.Magic[:], b[offMagic:offVersion])
	h.Version = b[offVersion]
	h.Type = t
	copy(h.Reserved[:], b[offReserved:offPayloadLen])
	h.PayloadLen = binary.LittleEndian.Uint32(b[offPayloadLen:offSessionID])
	h.SessionID = binary.LittleEndian.Uint64(b[offSessionID:offTimestamp])
	h.Timestamp = binary.LittleEndian.Uint64(b[offTimestamp:offChecksum])
	h.Checksum = binary.LittleEndian.Uint32(b[offChecksum:offPadding])
	copy(h.Padding[:], b[offPadding:HeaderSize])
	return h, nil
}
