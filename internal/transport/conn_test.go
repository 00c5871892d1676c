package transport

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/1ureka/rum3/internal/protocol"
	"github.com/1ureka/rum3/internal/util"
)

// memLink records written packets and blocks reads until closed.
type memLink struct {
	mu      sync.Mutex
	written []*protocol.Packet

	closed    chan struct{}
	closeOnce sync.Once
}

func newMemLink() *memLink {
	return &memLink{closed: make(chan struct{})}
}

func (l *memLink) ReadPacket() (*protocol.Packet, error) {
	<-l.closed
	return nil, net.ErrClosed
}

func (l *memLink) WritePacket(pkt *protocol.Packet) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.written = append(l.written, pkt)
	return nil
}

func (l *memLink) Close() error {
	l.closeOnce.Do(func() { close(l.closed) })
	return nil
}

func (l *memLink) RemoteAddr() net.Addr { return &net.UnixAddr{Name: "mem", Net: "unix"} }

func (l *memLink) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.written)
}

func TestEnqueueRacingHaltNeverLosesSilently(t *testing.T) {
	cfg := Config{Logger: util.Discard}.WithDefaults()

	for i := range 500 {
		link := newMemLink()
		c := newConn(NewSessionID(), link, cfg, make(chan Inbound, 1), nil)
		var wg sync.WaitGroup
		c.start(&wg)

		go c.halt()
		err := c.enqueue(context.Background(), protocol.NewPacket([]byte{1}, uint64(i)))

		wg.Wait()
		if err == nil && link.count() != 1 {
			t.Fatalf("iteration %d: enqueue reported success but the packet was never written", i)
		}
		if err != nil && !errors.Is(err, ErrSend) {
			t.Fatalf("iteration %d: got %v, want ErrSend", i, err)
		}
	}
}

// stuckLink never completes a write until it is closed.
type stuckLink struct {
	*memLink
}

func (l stuckLink) WritePacket(*protocol.Packet) error {
	<-l.closed
	return net.ErrClosed
}

func TestHaltDropsLinkWhenDrainStalls(t *testing.T) {
	cfg := Config{Logger: util.Discard, DrainTimeout: 30 * time.Millisecond}.WithDefaults()
	link := stuckLink{newMemLink()}

	exited := make(chan struct{})
	c := newConn(NewSessionID(), link, cfg, make(chan Inbound, 1), func() { close(exited) })
	var wg sync.WaitGroup
	c.start(&wg)

	for range 3 {
		if err := c.enqueue(context.Background(), protocol.NewPacket(nil, 0)); err != nil {
			t.Fatalf("enqueue failed: %v", err)
		}
	}
	c.halt()

	select {
	case <-c.dead:
	case <-time.After(2 * time.Second):
		t.Fatal("session still alive after the drain timeout")
	}
	select {
	case <-exited:
	default:
		t.Error("exit hook did not run")
	}
	wg.Wait()
}
