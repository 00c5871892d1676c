package transport

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/1ureka/rum3/internal/protocol"
	"github.com/1ureka/rum3/internal/util"
)

// conn is one session: a link, its bounded outbound queue, and the
// reader/writer goroutine pair that serve it.
type conn struct {
	id    SessionID
	link  Link
	log   util.Emitter
	queue chan *protocol.Packet

	out    chan<- Inbound // shared fan-in queue
	onExit func()         // runs once the writer has stopped, before the link is closed

	stop     chan struct{} // closed to ask the writer to drain and exit
	stopOnce sync.Once
	dead     chan struct{} // closed after the writer exited and the link is closed

	drainTimeout time.Duration
	abort        *time.Timer // set by halt; drops the link if the drain stalls
}

func newConn(id SessionID, link Link, cfg Config, out chan<- Inbound, onExit func()) *conn {
	return &conn{
		id:     id,
		link:   link,
		log:    cfg.Logger,
		queue:  make(chan *protocol.Packet, cfg.QueueSize),
		out:    out,
		onExit: onExit,
		stop:   make(chan struct{}),
		dead:   make(chan struct{}),

		drainTimeout: cfg.DrainTimeout,
	}
}

// start launches the reader and writer. wg is released once per goroutine.
func (c *conn) start(wg *sync.WaitGroup) {
	util.Stats.AddConn()
	wg.Add(2)
	go func() {
		defer wg.Done()
		c.writeLoop()
	}()
	go func() {
		defer wg.Done()
		c.readLoop()
	}()
}

// halt asks the writer to flush what is already queued and then exit. A
// writer still stuck after drainTimeout has its link closed under it.
func (c *conn) halt() {
	c.stopOnce.Do(func() {
		close(c.stop)
		c.abort = time.AfterFunc(c.drainTimeout, c.abortDrain)
	})
}

func (c *conn) abortDrain() {
	select {
	case <-c.dead:
		return
	default:
	}
	c.logf(util.LevelWarn, "session %s: queue not flushed within %s, dropping link", c.id, c.drainTimeout)
	if err := c.link.Close(); err != nil {
		c.logf(util.LevelDebug, "session %s: close link: %v", c.id, err)
	}
}

func (c *conn) stopping() bool {
	select {
	case <-c.stop:
		return true
	default:
		return false
	}
}

// enqueue blocks until pkt is queued, the session stops, or ctx is done.
func (c *conn) enqueue(ctx context.Context, pkt *protocol.Packet) error {
	if pkt == nil {
		return fmt.Errorf("%w: nil packet", ErrSend)
	}
	if c.stopping() {
		return fmt.Errorf("%w: session %s is closed", ErrSend, c.id)
	}
	select {
	case c.queue <- pkt:
		// With stop closed both cases are ready; the drain may already be over.
		if c.stopping() {
			return fmt.Errorf("%w: session %s closed while queuing", ErrSend, c.id)
		}
		return nil
	case <-c.stop:
		return fmt.Errorf("%w: session %s is closed", ErrSend, c.id)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ---------------------------------------------------------------------------
// Writer
// ---------------------------------------------------------------------------

func (c *conn) writeLoop() {
	defer c.finish()

	for {
		select {
		case pkt := <-c.queue:
			if err := c.write(pkt); err != nil {
				c.logf(util.LevelWarn, "session %s: write failed: %v", c.id, err)
				return
			}
		case <-c.stop:
			c.drain()
			return
		}
	}
}

// drain writes whatever is still queued without waiting for more.
func (c *conn) drain() {
	for {
		select {
		case pkt := <-c.queue:
			if err := c.write(pkt); err != nil {
				c.logf(util.LevelDebug, "session %s: dropped queued packets on close: %v", c.id, err)
				return
			}
		default:
			return
		}
	}
}

func (c *conn) write(pkt *protocol.Packet) error {
	if err := c.link.WritePacket(pkt); err != nil {
		return err
	}
	util.Stats.AddSent(pkt.Len())
	return nil
}

// finish tears the session down after the writer stopped: no more sends are
// accepted, the registry forgets the session, and closing the link aborts a
// reader blocked on it.
func (c *conn) finish() {
	c.halt()
	c.abort.Stop()
	if c.onExit != nil {
		c.onExit()
	}
	if err := c.link.Close(); err != nil {
		c.logf(util.LevelDebug, "session %s: close link: %v", c.id, err)
	}
	close(c.dead)
	util.Stats.RemoveConn()
	c.logf(util.LevelDebug, "session %s closed", c.id)
}

// ---------------------------------------------------------------------------
// Reader
// ---------------------------------------------------------------------------

func (c *conn) readLoop() {
	// A dead reader leaves nothing to serve; the writer flushes and exits.
	defer c.halt()

	for {
		pkt, err := c.link.ReadPacket()
		if err != nil {
			c.readFailed(err)
			return
		}
		util.Stats.AddRecv(pkt.Len())

		select {
		case c.out <- Inbound{Session: c.id, Packet: pkt}:
		case <-c.dead:
			return
		}
	}
}

func (c *conn) readFailed(err error) {
	switch {
	case c.stopping():
		c.logf(util.LevelDebug, "session %s: reader stopped: %v", c.id, err)
	case errors.Is(err, ErrMsg):
		c.logf(util.LevelWarn, "session %s: malformed packet, dropping connection: %v", c.id, err)
	default:
		c.logf(util.LevelInfo, "session %s: peer gone: %v", c.id, err)
	}
}

func (c *conn) logf(level util.Level, format string, args ...any) {
	c.log.Emit(level, fmt.Sprintf(format, args...))
}
