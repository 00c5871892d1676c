package app

import (
	"context"
	"errors"
	"io"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/1ureka/rum3/internal/config"
	"github.com/1ureka/rum3/internal/protocol"
	"github.com/1ureka/rum3/internal/transport"
	"github.com/1ureka/rum3/internal/util"
)

// replyTimeout bounds how long one session's full queue may hold up the
// echo loop before its reply is dropped.
var replyTimeout = 2 * time.Second

// RunServer opens the configured transport and echoes calls until ctx is
// cancelled or the transport ends.
func RunServer(ctx context.Context, cfg *config.Config) error {
	tr, err := Listen(ctx, cfg)
	if err != nil {
		return err
	}
	util.LogSuccess("%s server ready", cfg.Transport)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		// The transport ending stops the reporter too.
		defer cancel()
		defer tr.Close()
		return Serve(ctx, tr)
	})
	g.Go(func() error {
		util.RunStatsReporter(ctx, cfg.StatsInterval)
		return nil
	})
	return g.Wait()
}

// Serve answers every inbound packet on tr until ctx is done or tr is closed:
//
//	call  → reply with the same payload and header session id
//	auth  → greeting step (see handshake.go)
//	reply → ignored
//	error → logged
func Serve(ctx context.Context, tr transport.Transport) error {
	for {
		in, err := tr.Receive(ctx)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		resp := handle(in)
		if resp == nil {
			continue
		}
		if err := reply(ctx, tr, in.Session, resp); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			util.LogWarning("session %s: reply dropped: %v", in.Session, err)
		}
	}
}

func reply(ctx context.Context, tr transport.Transport, id transport.SessionID, pkt *protocol.Packet) error {
	ctx, cancel := context.WithTimeout(ctx, replyTimeout)
	defer cancel()
	return tr.Send(ctx, id, pkt)
}

func handle(in transport.Inbound) *protocol.Packet {
	pkt := in.Packet
	tag := pkt.Header.SessionID

	switch pkt.Header.Type {
	case protocol.MsgCall:
		return protocol.NewTypedPacket(protocol.MsgReply, pkt.Payload, tag)

	case protocol.MsgAuth:
		body, err := pkt.Auth()
		if err != nil {
			return protocol.NewTypedPacket(protocol.MsgError, []byte(err.Error()), tag)
		}
		switch body.Type {
		case protocol.AuthClientHello:
			resp, fp, err := serverHello(body)
			if err != nil {
				return protocol.NewTypedPacket(protocol.MsgError, []byte(err.Error()), tag)
			}
			util.LogInfo("session %s: greeting, key fingerprint %s", in.Session, fp)
			return protocol.NewAuthPacket(resp, tag)
		case protocol.AuthClientAck:
			return protocol.NewAuthPacket(protocol.AuthBody{Type: protocol.AuthServerAck}, tag)
		default:
			util.LogWarning("session %s: unexpected %s from client", in.Session, body.Type)
			return nil
		}

	case protocol.MsgError:
		util.LogWarning("session %s: peer error: %s", in.Session, pkt.Payload)
		return nil

	default:
		return nil
	}
}
