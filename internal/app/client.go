package app

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/1ureka/rum3/internal/config"
	"github.com/1ureka/rum3/internal/keys"
	"github.com/1ureka/rum3/internal/protocol"
	"github.com/1ureka/rum3/internal/transport"
	"github.com/1ureka/rum3/internal/util"
)

// replyGrace bounds how long the client waits for outstanding replies after
// its input ends.
const replyGrace = 5 * time.Second

// RunClient dials the configured transport, greets the server, then sends
// every line of in as a call and prints replies to out.
func RunClient(ctx context.Context, cfg *config.Config, in io.Reader, out io.Writer) error {
	c, err := Dial(ctx, cfg)
	if err != nil {
		return err
	}
	util.LogSuccess("connected to %s over %s", c.RemoteAddr(), cfg.Transport)

	return Ping(ctx, c, in, out, cfg.StatsInterval)
}

// Ping drives an open client: greeting, one call per input line, replies
// printed with their round-trip time. It closes c before returning.
func Ping(ctx context.Context, c *transport.Client, in io.Reader, out io.Writer, statsInterval time.Duration) error {
	kp, err := keys.NewKeyPair()
	if err != nil {
		c.Close()
		return err
	}

	p := &pinger{
		client: c,
		kp:     kp,
		out:    out,
		sent:   make(map[uint64]time.Time),
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer cancel()
		return p.receiveLoop(ctx)
	})
	g.Go(func() error {
		defer c.Close()
		return p.sendLoop(ctx, in)
	})
	g.Go(func() error {
		util.RunStatsReporter(ctx, statsInterval)
		return nil
	})
	return g.Wait()
}

type pinger struct {
	client *transport.Client
	kp     keys.KeyPair
	out    io.Writer

	outstanding sync.WaitGroup
	mu          sync.Mutex
	seq         uint64
	sent        map[uint64]time.Time // header session id → send time
}

func (p *pinger) send(ctx context.Context, pkt *protocol.Packet) error {
	p.outstanding.Add(1)
	if err := p.client.Send(ctx, p.client.Session(), pkt); err != nil {
		p.outstanding.Done()
		return err
	}
	return nil
}

func (p *pinger) sendCall(ctx context.Context, payload []byte) error {
	p.mu.Lock()
	p.seq++
	seq := p.seq
	p.sent[seq] = time.Now()
	p.mu.Unlock()

	return p.send(ctx, protocol.NewPacket(payload, seq))
}

// sendLoop greets the server, then sends lines until in ends, then waits for
// the outstanding replies.
func (p *pinger) sendLoop(ctx context.Context, in io.Reader) error {
	hello := protocol.AuthBody{Type: protocol.AuthClientHello, Data: p.kp.Public}
	if err := p.send(ctx, protocol.NewAuthPacket(hello, 0)); err != nil {
		return fmt.Errorf("send greeting: %w", err)
	}

	// The scanner cannot be interrupted, so it runs outside the group.
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case line, ok := <-lines:
			if !ok {
				p.awaitReplies(ctx)
				return nil
			}
			if line == "" {
				continue
			}
			if err := p.sendCall(ctx, []byte(line)); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("send call: %w", err)
			}
		case <-ctx.Done():
			return nil
		}
	}
}

func (p *pinger) awaitReplies(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		p.outstanding.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(replyGrace):
		util.LogWarning("gave up waiting for replies after %s", replyGrace)
	case <-ctx.Done():
	}
}

func (p *pinger) receiveLoop(ctx context.Context) error {
	for {
		in, err := p.client.Receive(ctx)
		if errors.Is(err, io.EOF) || ctx.Err() != nil {
			return nil
		}
		if err != nil {
			return err
		}
		if err := p.handle(ctx, in.Packet); err != nil {
			return err
		}
	}
}

func (p *pinger) handle(ctx context.Context, pkt *protocol.Packet) error {
	switch pkt.Header.Type {
	case protocol.MsgReply:
		p.mu.Lock()
		start, ok := p.sent[pkt.Header.SessionID]
		delete(p.sent, pkt.Header.SessionID)
		p.mu.Unlock()
		if !ok {
			util.LogDebug("reply for unknown call %d", pkt.Header.SessionID)
			return nil
		}
		fmt.Fprintf(p.out, "#%d %q %s\n", pkt.Header.SessionID, pkt.Payload, time.Since(start).Round(time.Microsecond))
		p.outstanding.Done()

	case protocol.MsgAuth:
		body, err := pkt.Auth()
		if err != nil {
			return err
		}
		switch body.Type {
		case protocol.AuthServerHello:
			fp, err := clientSecret(p.kp, body)
			if err != nil {
				return err
			}
			util.LogInfo("greeting complete, key fingerprint %s", fp)
			if err := p.send(ctx, protocol.NewAuthPacket(protocol.AuthBody{Type: protocol.AuthClientAck}, 0)); err != nil {
				return err
			}
			p.outstanding.Done()
		case protocol.AuthServerAck:
			util.LogDebug("server acknowledged greeting")
			p.outstanding.Done()
		}

	case protocol.MsgError:
		util.LogWarning("server error: %s", pkt.Payload)
	}
	return nil
}
