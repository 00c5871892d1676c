package transport

import (
	"bufio"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/1ureka/rum3/internal/protocol"
)

// Link is one physical connection that moves whole packets. ReadPacket is
// only called by the session reader and WritePacket only by the session
// writer, so implementations need no locking between the two directions.
type Link interface {
	ReadPacket() (*protocol.Packet, error)
	WritePacket(pkt *protocol.Packet) error
	Close() error
	RemoteAddr() net.Addr
}

// Acceptor yields inbound links for a Server. Accept must return an error
// matching net.ErrClosed once Close has been called.
type Acceptor interface {
	Accept() (Link, error)
	Close() error
	Addr() net.Addr
}

// DecodeMessage decodes one message-framed packet, as carried by WebSocket
// and DataChannel links. Oversized or malformed messages match ErrMsg.
func DecodeMessage(data []byte, maxPayload uint32) (*protocol.Packet, error) {
	if uint64(len(data)) > uint64(protocol.HeaderSize)+uint64(maxPayload) {
		return nil, readError(fmt.Errorf("%w: message of %d bytes exceeds limit", protocol.ErrInvalidPayload, len(data)))
	}
	pkt, err := protocol.Decode(data)
	if err != nil {
		return nil, readError(err)
	}
	return pkt, nil
}

// ---------------------------------------------------------------------------
// Stream links
// ---------------------------------------------------------------------------

// streamLink frames packets on a byte stream: 64 header bytes followed by
// exactly payload_len bytes.
type streamLink struct {
	conn         net.Conn
	reader       *bufio.Reader
	maxPayload   uint32
	writeTimeout time.Duration
	closeOnce    sync.Once
	closeErr     error
}

// NewStreamLink wraps a stream connection (TCP, pipe) as a Link.
func NewStreamLink(conn net.Conn, cfg Config) Link {
	cfg = cfg.WithDefaults()
	return &streamLink{
		conn:         conn,
		reader:       bufio.NewReaderSize(conn, 64*1024),
		maxPayload:   cfg.MaxPayload,
		writeTimeout: cfg.WriteTimeout,
	}
}

func (l *streamLink) ReadPacket() (*protocol.Packet, error) {
	pkt, err := protocol.ReadPacket(l.reader, l.maxPayload)
	if err != nil {
		return nil, readError(err)
	}
	return pkt, nil
}

func (l *streamLink) WritePacket(pkt *protocol.Packet) error {
	if l.writeTimeout > 0 {
		if err := l.conn.SetWriteDeadline(time.Now().Add(l.writeTimeout)); err != nil {
			return writeError(err)
		}
	}
	if _, err := l.conn.Write(protocol.Encode(pkt)); err != nil {
		return writeError(err)
	}
	return nil
}

func (l *streamLink) Close() error {
	l.closeOnce.Do(func() { l.closeErr = l.conn.Close() })
	return l.closeErr
}

func (l *streamLink) RemoteAddr() net.Addr {
	return l.conn.RemoteAddr()
}
