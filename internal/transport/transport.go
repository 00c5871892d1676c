// Package transport carries protocol packets between sessions. A session is
// one physical connection; every connection is served by exactly one reader
// goroutine and one writer goroutine, and all readers fan in to a single
// inbound queue drained by Receive.
package transport

import (
	"context"
	"iter"

	"github.com/google/uuid"

	"github.com/1ureka/rum3/internal/protocol"
)

// SessionID identifies one physical connection. It is assigned locally by the
// side that accepts or creates the connection and is never transmitted; it is
// unrelated to the session_id field carried in packet headers.
type SessionID = uuid.UUID

// NewSessionID returns a fresh random session id.
func NewSessionID() SessionID {
	return uuid.New()
}

// Inbound is a decoded packet tagged with the session it arrived on.
type Inbound struct {
	Session SessionID
	Packet  *protocol.Packet
}

// Transport is the capability shared by Client and Server.
type Transport interface {
	// Send hands pkt to the writer of session id. It blocks while that
	// session's queue is full. A nil error means the packet was queued, not
	// that the peer received it.
	Send(ctx context.Context, id SessionID, pkt *protocol.Packet) error

	// Receive returns the next inbound packet from any session. It returns
	// io.EOF once the transport is closed and every queued packet was taken.
	Receive(ctx context.Context) (Inbound, error)

	// Close shuts the transport down. It is safe to call more than once.
	Close() error
}

var (
	_ Transport = (*Client)(nil)
	_ Transport = (*Server)(nil)
)

// Messages exposes t.Receive as a sequence. The sequence ends at io.EOF, on
// the first receive error, or when ctx is done. Iterating it a second time
// continues where the first iteration stopped.
func Messages(ctx context.Context, t Transport) iter.Seq2[SessionID, *protocol.Packet] {
	return func(yield func(SessionID, *protocol.Packet) bool) {
		for {
			in, err := t.Receive(ctx)
			if err != nil {
				return
			}
			if !yield(in.Session, in.Packet) {
				return
			}
		}
	}
}
