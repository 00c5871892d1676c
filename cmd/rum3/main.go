// Rum3 CLI entry point.
//
// rum3 moves checksummed binary packets between peers over TCP, WebSocket or
// a WebRTC DataChannel. The server role echoes every call back as a reply;
// the client role sends each line of stdin as a call and prints the replies.
//
// It can be launched interactively (no -role) or non-interactively via flags
// and configuration (-config file, RUM3_* environment variables).
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/pterm/pterm"

	"github.com/1ureka/rum3/internal/app"
	"github.com/1ureka/rum3/internal/config"
	"github.com/1ureka/rum3/internal/util"
)

var version = "dev"

func main() {
	// Root context, cancelled on Ctrl+C.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	// CLI flags. Set flags win over the config file and environment.
	configPath := flag.String("config", "", "Path to a YAML/TOML/JSON config file")
	role := flag.String("role", "", "Role: server or client (prompted when empty)")
	kind := flag.String("transport", "", "Transport: tcp, ws or rtc")
	addr := flag.String("addr", "", "Listen address (server) or dial address/URL (client)")
	debugMode := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		util.LogError("failed to load config: %v", err)
		os.Exit(1)
	}
	if *role != "" {
		cfg.Role = config.Role(*role)
	}
	if *kind != "" {
		cfg.Transport = config.Kind(*kind)
	}
	if *addr != "" {
		cfg.Addr = *addr
	}
	if *debugMode {
		cfg.Log.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		util.LogError("%v", err)
		os.Exit(1)
	}

	util.InitLog(cfg.LogSettings())
	defer util.CloseLog()

	pterm.Info.Println(fmt.Sprintf("Rum3 — v%s", version))
	pterm.Println()

	if cfg.Role == "" {
		// No role anywhere → interactive mode.
		askInteractive(cfg)
	}

	if err := run(ctx, cfg); err != nil {
		util.LogError("%v", err)
		util.CloseLog()
		os.Exit(1)
	}

	util.LogInfo("successfully closed connection")
}

// ---------------------------------------------------------------------------
// Run modes
// ---------------------------------------------------------------------------

func run(ctx context.Context, cfg *config.Config) error {
	switch cfg.Role {
	case config.RoleServer:
		return app.RunServer(ctx, cfg)
	case config.RoleClient:
		return app.RunClient(ctx, cfg, os.Stdin, os.Stdout)
	default:
		return fmt.Errorf("invalid role %q: must be 'server' or 'client'", cfg.Role)
	}
}

// askInteractive fills role, transport and address from prompts.
func askInteractive(cfg *config.Config) {
	role, _ := pterm.DefaultInteractiveSelect.
		WithOptions([]string{"Server — Echo calls back to clients", "Client — Send calls to a server"}).
		WithDefaultText("Select your role").
		Show()
	pterm.Println()

	if strings.HasPrefix(role, "Server") {
		cfg.Role = config.RoleServer
	} else {
		cfg.Role = config.RoleClient
	}

	kind, _ := pterm.DefaultInteractiveSelect.
		WithOptions([]string{string(config.KindTCP), string(config.KindWS), string(config.KindRTC)}).
		WithDefaultOption(string(cfg.Transport)).
		WithDefaultText("Select a transport").
		Show()
	pterm.Println()
	cfg.Transport = config.Kind(kind)

	cfg.Addr = askAddr(cfg)
}

// askAddr prompts until the address is usable for the chosen role and transport.
func askAddr(cfg *config.Config) string {
	prompt := "Listen address (e.g. 127.0.0.1:7700)"
	if cfg.Role == config.RoleClient {
		switch cfg.Transport {
		case config.KindTCP:
			prompt = "Server address (e.g. 127.0.0.1:7700)"
		case config.KindWS:
			prompt = "WebSocket URL (e.g. ws://127.0.0.1:7700/rum3)"
		case config.KindRTC:
			prompt = "Signaling URL with PIN (e.g. ws://host:port/ws?pin=123456)"
		}
	}

	for {
		raw, _ := pterm.DefaultInteractiveTextInput.
			WithDefaultText(prompt).
			WithDefaultValue(defaultAddr(cfg)).
			Show()
		pterm.Println()

		v, err := normalizeAddr(cfg, raw)
		if err == nil {
			return v
		}
		util.LogWarning("invalid input: %v", err)
	}
}

// defaultAddr suggests the configured address when it fits the prompt.
func defaultAddr(cfg *config.Config) string {
	isURL := strings.Contains(cfg.Addr, "://")
	wantURL := cfg.Role == config.RoleClient && cfg.Transport != config.KindTCP
	if isURL == wantURL {
		return cfg.Addr
	}
	return ""
}
