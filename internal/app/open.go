// Package app contains the top-level orchestration for the server and client roles.
package app

import (
	"context"
	"fmt"

	"github.com/pterm/pterm"

	"github.com/1ureka/rum3/internal/config"
	"github.com/1ureka/rum3/internal/transport"
	"github.com/1ureka/rum3/internal/transport/rtc"
	"github.com/1ureka/rum3/internal/transport/tcp"
	"github.com/1ureka/rum3/internal/transport/ws"
	"github.com/1ureka/rum3/internal/util"
)

// Listen opens the server side of the configured transport. For rtc it runs
// a signaling server and blocks until one peer has connected.
func Listen(ctx context.Context, cfg *config.Config) (transport.Transport, error) {
	tc := cfg.TransportConfig(util.Log)

	switch cfg.Transport {
	case config.KindTCP:
		s, err := tcp.Listen(ctx, cfg.Addr, tc)
		if err != nil {
			return nil, err
		}
		return s, nil

	case config.KindWS:
		s, err := ws.Listen(ctx, cfg.Addr, cfg.WSPath, tc)
		if err != nil {
			return nil, err
		}
		return s, nil

	case config.KindRTC:
		sig, err := rtc.NewSignalServer(cfg.Addr, tc.Logger)
		if err != nil {
			return nil, err
		}
		defer sig.Close()

		pterm.DefaultBox.WithTitle("WebSocket Signaling Server").Println(
			fmt.Sprintf("Addr : %s\nPIN  : %s\nURL  : %s", sig.Addr(), sig.PIN(), sig.URL()))
		util.LogInfo("waiting for a peer to join...")

		c, err := rtc.Accept(ctx, sig, cfg.RTCOptions(), tc)
		if err != nil {
			return nil, err
		}
		return c, nil

	default:
		return nil, fmt.Errorf("unknown transport %q", cfg.Transport)
	}
}

// Dial opens the client side of the configured transport.
func Dial(ctx context.Context, cfg *config.Config) (*transport.Client, error) {
	tc := cfg.TransportConfig(util.Log)

	switch cfg.Transport {
	case config.KindTCP:
		return tcp.Dial(ctx, cfg.Addr, tc)
	case config.KindWS:
		return ws.Dial(ctx, cfg.Addr, tc)
	case config.KindRTC:
		return rtc.Dial(ctx, cfg.Addr, cfg.RTCOptions(), tc)
	default:
		return nil, fmt.Errorf("unknown transport %q", cfg.Transport)
	}
}
