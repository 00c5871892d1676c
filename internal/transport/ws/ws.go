// Package ws runs the transport over WebSocket connections. Every packet
// travels as exactly one binary message.
package ws

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/1ureka/rum3/internal/protocol"
	"github.com/1ureka/rum3/internal/transport"
	"github.com/1ureka/rum3/internal/util"
)

// errTextMessage is returned for a text frame where a packet was expected.
var errTextMessage = errors.New("ws: text message where binary packet expected")

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Dial connects to a ws:// or wss:// URL and serves the connection as a
// single-session client.
func Dial(ctx context.Context, url string, cfg transport.Config) (*transport.Client, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %w", transport.ErrIO, url, err)
	}
	return transport.NewClient(newLink(conn, cfg), cfg), nil
}

// Listen serves HTTP on addr and upgrades requests for path. Every upgraded
// connection becomes one session of the returned server.
func Listen(ctx context.Context, addr, path string, cfg transport.Config) (*transport.Server, error) {
	cfg = cfg.WithDefaults()
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("%w: listen %s: %w", transport.ErrIO, addr, err)
	}

	a := &acceptor{
		ln:     ln,
		cfg:    cfg,
		links:  make(chan transport.Link),
		closed: make(chan struct{}),
	}

	mux := http.NewServeMux()
	mux.HandleFunc(path, a.handleWS)
	a.srv = &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		if err := a.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			cfg.Logger.Emit(util.LevelError, fmt.Sprintf("ws server stopped: %v", err))
		}
	}()

	return transport.NewServer(a, cfg), nil
}

// ---------------------------------------------------------------------------
// Acceptor
// ---------------------------------------------------------------------------

type acceptor struct {
	ln     net.Listener
	srv    *http.Server
	cfg    transport.Config
	links  chan transport.Link
	closed chan struct{}
	once   sync.Once
}

func (a *acceptor) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return // the upgrader already answered with an HTTP error
	}

	select {
	case a.links <- newLink(conn, a.cfg):
	case <-a.closed:
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server closing"))
		conn.Close()
	}
}

func (a *acceptor) Accept() (transport.Link, error) {
	select {
	case l := <-a.links:
		return l, nil
	case <-a.closed:
		return nil, net.ErrClosed
	}
}

// Close stops the HTTP server. Upgraded connections are hijacked and owned by
// their sessions, so they are not affected.
func (a *acceptor) Close() error {
	var err error
	a.once.Do(func() {
		close(a.closed)
		err = a.srv.Close()
	})
	return err
}

func (a *acceptor) Addr() net.Addr { return a.ln.Addr() }

// ---------------------------------------------------------------------------
// Link
// ---------------------------------------------------------------------------

type link struct {
	conn         *websocket.Conn
	maxPayload   uint32
	writeTimeout time.Duration
	closeOnce    sync.Once
	closeErr     error
}

func newLink(conn *websocket.Conn, cfg transport.Config) *link {
	cfg = cfg.WithDefaults()
	conn.SetReadLimit(int64(protocol.HeaderSize) + int64(cfg.MaxPayload))
	return &link{
		conn:         conn,
		maxPayload:   cfg.MaxPayload,
		writeTimeout: cfg.WriteTimeout,
	}
}

func (l *link) ReadPacket() (*protocol.Packet, error) {
	kind, data, err := l.conn.ReadMessage()
	if err != nil {
		if errors.Is(err, websocket.ErrReadLimit) {
			return nil, fmt.Errorf("%w: %w: %w", transport.ErrMsg, protocol.ErrInvalidPayload, err)
		}
		return nil, fmt.Errorf("%w: %w", transport.ErrReceive, err)
	}
	if kind != websocket.BinaryMessage {
		return nil, fmt.Errorf("%w: %w", transport.ErrMsg, errTextMessage)
	}
	return transport.DecodeMessage(data, l.maxPayload)
}

func (l *link) WritePacket(pkt *protocol.Packet) error {
	if l.writeTimeout > 0 {
		if err := l.conn.SetWriteDeadline(time.Now().Add(l.writeTimeout)); err != nil {
			return fmt.Errorf("%w: %w", transport.ErrIO, err)
		}
	}
	if err := l.conn.WriteMessage(websocket.BinaryMessage, protocol.Encode(pkt)); err != nil {
		return fmt.Errorf("%w: %w", transport.ErrIO, err)
	}
	return nil
}

// Close sends a close frame on a best-effort basis, then drops the socket.
func (l *link) Close() error {
	l.closeOnce.Do(func() {
		deadline := time.Now().Add(time.Second)
		l.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		l.closeErr = l.conn.Close()
	})
	return l.closeErr
}

func (l *link) RemoteAddr() net.Addr {
	return l.conn.RemoteAddr()
}
