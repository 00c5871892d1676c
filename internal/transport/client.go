package transport

import (
	"context"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/1ureka/rum3/internal/protocol"
	"github.com/1ureka/rum3/internal/util"
)

// Client is a Transport over exactly one link. It never reconnects: once the
// link fails the client is finished.
type Client struct {
	conn    *conn
	inbound chan Inbound

	wg        sync.WaitGroup
	closeOnce sync.Once
	done      chan struct{}
}

// NewClient starts serving link under a fresh session id.
func NewClient(link Link, cfg Config) *Client {
	cfg = cfg.WithDefaults()
	c := &Client{
		inbound: make(chan Inbound, cfg.FanInSize),
		done:    make(chan struct{}),
	}
	c.conn = newConn(NewSessionID(), link, cfg, c.inbound, nil)
	c.conn.start(&c.wg)

	go func() {
		c.wg.Wait()
		close(c.inbound)
		close(c.done)
	}()

	c.conn.logf(util.LevelInfo, "session %s connected to %s", c.conn.id, link.RemoteAddr())
	return c
}

// Session returns the id of the client's only session.
func (c *Client) Session() SessionID {
	return c.conn.id
}

// RemoteAddr returns the peer address of the link.
func (c *Client) RemoteAddr() net.Addr {
	return c.conn.link.RemoteAddr()
}

// Send queues pkt on the client's session. Any other id is unknown.
func (c *Client) Send(ctx context.Context, id SessionID, pkt *protocol.Packet) error {
	if id != c.conn.id {
		return fmt.Errorf("%w: %s", ErrConnectionNotFound, id)
	}
	return c.conn.enqueue(ctx, pkt)
}

// Receive returns the next packet from the peer, tagged with Session().
func (c *Client) Receive(ctx context.Context) (Inbound, error) {
	return receive(ctx, c.inbound)
}

// Close flushes queued packets, then closes the link. A flush that has not
// finished after Config.DrainTimeout is abandoned. Close does not wait for
// the goroutines to exit; see Done.
func (c *Client) Close() error {
	c.closeOnce.Do(c.conn.halt)
	return nil
}

// Done is closed once the reader and writer have both exited.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

func receive(ctx context.Context, inbound <-chan Inbound) (Inbound, error) {
	select {
	case in, ok := <-inbound:
		if !ok {
			return Inbound{}, io.EOF
		}
		return in, nil
	case <-ctx.Done():
		return Inbound{}, ctx.Err()
	}
}
