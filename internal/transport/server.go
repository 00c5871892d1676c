package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/1ureka/rum3/internal/protocol"
	"github.com/1ureka/rum3/internal/util"
)

// acceptRetryDelay paces the listener after a transient Accept failure.
const acceptRetryDelay = 50 * time.Millisecond

// Server is a Transport over every link an Acceptor yields.
//
// Per session the lifecycle is: accepted (id assigned, registry insert),
// established (reader and writer running), terminating (either side failed
// or Close was called), terminated (writer exited, registry entry removed,
// link closed so the reader aborts).
type Server struct {
	acceptor Acceptor
	cfg      Config
	registry *registry
	inbound  chan Inbound

	ctx    context.Context
	cancel context.CancelFunc

	wg        sync.WaitGroup
	closeOnce sync.Once
	closeErr  error
	done      chan struct{}
}

// NewServer starts accepting links from acceptor immediately.
func NewServer(acceptor Acceptor, cfg Config) *Server {
	cfg = cfg.WithDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		acceptor: acceptor,
		cfg:      cfg,
		registry: newRegistry(),
		inbound:  make(chan Inbound, cfg.FanInSize),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}

	s.wg.Add(1)
	go s.listen()

	s.logf(util.LevelInfo, "listening on %s", acceptor.Addr())
	return s
}

// Addr returns the listening address.
func (s *Server) Addr() net.Addr {
	return s.acceptor.Addr()
}

// Sessions lists the ids that are currently reachable.
func (s *Server) Sessions() []SessionID {
	conns := s.registry.snapshot()
	ids := make([]SessionID, len(conns))
	for i, c := range conns {
		ids[i] = c.id
	}
	return ids
}

// Send queues pkt for session id. The registry lock is released before the
// (possibly blocking) enqueue.
func (s *Server) Send(ctx context.Context, id SessionID, pkt *protocol.Packet) error {
	c, ok := s.registry.lookup(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrConnectionNotFound, id)
	}
	return c.enqueue(ctx, pkt)
}

// Receive returns the next packet from any session.
func (s *Server) Receive(ctx context.Context) (Inbound, error) {
	return receive(ctx, s.inbound)
}

// Close stops accepting and asks every session to flush and close, each
// within Config.DrainTimeout. It returns without waiting for the sessions;
// Done reports when they are gone.
func (s *Server) Close() error {
	s.closeOnce.Do(func() {
		s.cancel()
		if err := s.acceptor.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			s.closeErr = fmt.Errorf("%w: %w", ErrClose, err)
		}
		for _, c := range s.registry.snapshot() {
			c.halt()
		}

		go func() {
			s.wg.Wait()
			close(s.inbound)
			close(s.done)
		}()
	})
	return s.closeErr
}

// Done is closed after Close once the listener and every session goroutine
// have exited.
func (s *Server) Done() <-chan struct{} {
	return s.done
}

// ---------------------------------------------------------------------------
// Listener
// ---------------------------------------------------------------------------

func (s *Server) listen() {
	defer s.wg.Done()

	for {
		link, err := s.acceptor.Accept()
		if err != nil {
			if s.ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				s.logf(util.LevelDebug, "listener stopped: %v", err)
				return
			}
			s.logf(util.LevelWarn, "accept failed: %v", err)
			select {
			case <-time.After(acceptRetryDelay):
				continue
			case <-s.ctx.Done():
				return
			}
		}

		s.serve(link)
	}
}

// serve registers link as a new session and starts its goroutine pair.
func (s *Server) serve(link Link) {
	id := NewSessionID()
	c := newConn(id, link, s.cfg, s.inbound, func() { s.registry.remove(id) })
	s.registry.insert(c)
	c.start(&s.wg)

	s.logf(util.LevelInfo, "session %s accepted from %s", id, link.RemoteAddr())

	// Close may have snapshotted the registry before the insert above.
	if s.ctx.Err() != nil {
		c.halt()
	}
}

func (s *Server) logf(level util.Level, format string, args ...any) {
	s.cfg.Logger.Emit(level, fmt.Sprintf(format, args...))
}
