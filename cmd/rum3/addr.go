package main

import (
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/1ureka/rum3/internal/config"
)

// normalizeAddr validates raw for the role and transport in cfg. Clients of
// ws and rtc need a ws:// or wss:// URL; everything else is host:port.
func normalizeAddr(cfg *config.Config, raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("address is empty")
	}

	if cfg.Role == config.RoleServer || cfg.Transport == config.KindTCP {
		if _, _, err := net.SplitHostPort(raw); err != nil {
			return "", fmt.Errorf("want host:port: %w", err)
		}
		return raw, nil
	}

	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("invalid WebSocket URL: %s", raw)
	}
	switch u.Scheme {
	case "ws", "wss":
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}

	if cfg.Transport == config.KindWS && u.Path == "" {
		u.Path = cfg.WSPath
	}
	if cfg.Transport == config.KindRTC && u.Query().Get("pin") == "" {
		return "", fmt.Errorf("signaling URL has no pin parameter")
	}
	return u.String(), nil
}
