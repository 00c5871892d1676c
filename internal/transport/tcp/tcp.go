// Package tcp runs the transport over plain TCP streams.
package tcp

import (
	"context"
	"fmt"
	"net"

	"github.com/1ureka/rum3/internal/transport"
)

// Dial connects to addr and serves the connection as a single-session client.
func Dial(ctx context.Context, addr string, cfg transport.Config) (*transport.Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %w", transport.ErrIO, addr, err)
	}
	return transport.NewClient(transport.NewStreamLink(conn, cfg), cfg), nil
}

// Listen binds addr and serves every accepted connection as its own session.
// ctx only bounds the bind; use Close on the server to stop it.
func Listen(ctx context.Context, addr string, cfg transport.Config) (*transport.Server, error) {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("%w: listen %s: %w", transport.ErrIO, addr, err)
	}
	return transport.NewServer(&acceptor{ln: ln, cfg: cfg}, cfg), nil
}

// acceptor adapts a net.Listener to transport.Acceptor.
type acceptor struct {
	ln  net.Listener
	cfg transport.Config
}

func (a *acceptor) Accept() (transport.Link, error) {
	conn, err := a.ln.Accept()
	if err != nil {
		return nil, err
	}
	if tc, ok := conn.(*net.TCPConn); ok {
		_ = tc.SetNoDelay(true)
	}
	return transport.NewStreamLink(conn, a.cfg), nil
}

func (a *acceptor) Close() error   { return a.ln.Close() }
func (a *acceptor) Addr() net.Addr { return a.ln.Addr() }
