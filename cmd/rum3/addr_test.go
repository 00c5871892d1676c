package main

import (
	"testing"

	"github.com/1ureka/rum3/internal/config"
)

func TestNormalizeAddr(t *testing.T) {
	testCases := []struct {
		name    string
		role    config.Role
		kind    config.Kind
		raw     string
		want    string
		wantErr bool
	}{
		{"tcp server", config.RoleServer, config.KindTCP, " :7700 ", ":7700", false},
		{"tcp client", config.RoleClient, config.KindTCP, "10.0.0.1:7700", "10.0.0.1:7700", false},
		{"tcp missing port", config.RoleClient, config.KindTCP, "10.0.0.1", "", true},
		{"ws server", config.RoleServer, config.KindWS, "0.0.0.0:80", "0.0.0.0:80", false},
		{"ws client adds path", config.RoleClient, config.KindWS, "ws://example.com:7700", "ws://example.com:7700/rum3", false},
		{"ws client https", config.RoleClient, config.KindWS, "https://example.com/x", "wss://example.com/x", false},
		{"ws client bad scheme", config.RoleClient, config.KindWS, "ftp://example.com", "", true},
		{"rtc client", config.RoleClient, config.KindRTC, "wss://example.com/ws?pin=123456", "wss://example.com/ws?pin=123456", false},
		{"rtc client no pin", config.RoleClient, config.KindRTC, "wss://example.com/ws", "", true},
		{"empty", config.RoleClient, config.KindTCP, "  ", "", true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.Role = tc.role
			cfg.Transport = tc.kind

			got, err := normalizeAddr(cfg, tc.raw)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %q", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Errorf("got %q, want %q", got, tc.want)
			}
		})
	}
}
