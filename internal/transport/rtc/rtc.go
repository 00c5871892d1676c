// Package rtc runs the transport over a WebRTC DataChannel. Peers find each
// other through a small WebSocket signaling server guarded by a PIN; once the
// DataChannel opens, the signaling socket is dropped and every packet travels
// as one DataChannel message.
package rtc

import (
	"context"
	"fmt"

	"github.com/gorilla/websocket"

	"github.com/1ureka/rum3/internal/transport"
	"github.com/1ureka/rum3/internal/util"
)

// Accept waits for one peer on sig, offers a connection and returns it as a
// single-session client once the DataChannel is open.
func Accept(ctx context.Context, sig *SignalServer, opts Options, cfg transport.Config) (*transport.Client, error) {
	cfg = cfg.WithDefaults()
	conn, err := sig.waitForPeer(ctx)
	if err != nil {
		return nil, fmt.Errorf("wait for peer: %w", err)
	}
	cfg.Logger.Emit(util.LevelDebug, fmt.Sprintf("signaling peer connected from %s", conn.RemoteAddr()))

	l, err := newLink(opts, cfg)
	if err != nil {
		conn.Close()
		return nil, err
	}

	s := newSignaler(l, conn)
	if err := s.sendOffer(); err != nil {
		conn.Close()
		l.Close()
		return nil, fmt.Errorf("%w: send offer: %w", transport.ErrIO, err)
	}
	if err := s.await(ctx); err != nil {
		l.Close()
		return nil, err
	}

	cfg.Logger.Emit(util.LevelDebug, "data channel open, signaling closed")
	return transport.NewClient(l, cfg), nil
}

// Dial joins the signaling server at url (PIN in the query), answers its
// offer and returns the connection once the DataChannel is open.
func Dial(ctx context.Context, url string, opts Options, cfg transport.Config) (*transport.Client, error) {
	cfg = cfg.WithDefaults()
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: connect to signal server: %w", transport.ErrIO, err)
	}

	l, err := newLink(opts, cfg)
	if err != nil {
		conn.Close()
		return nil, err
	}

	if err := newSignaler(l, conn).await(ctx); err != nil {
		l.Close()
		return nil, err
	}

	cfg.Logger.Emit(util.LevelDebug, "data channel open, signaling closed")
	return transport.NewClient(l, cfg), nil
}
