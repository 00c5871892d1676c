// Package config loads the rum3 configuration from defaults, an optional
// YAML/TOML/JSON file and RUM3_* environment variables, in that order of
// increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/1ureka/rum3/internal/transport"
	"github.com/1ureka/rum3/internal/transport/rtc"
	"github.com/1ureka/rum3/internal/util"
)

// Role represents the process role (server or client).
type Role string

const (
	RoleServer Role = "server"
	RoleClient Role = "client"
)

// Kind selects the transport variant.
type Kind string

const (
	KindTCP Kind = "tcp"
	KindWS  Kind = "ws"
	KindRTC Kind = "rtc"
)

// Config is the root application configuration.
type Config struct {
	// Role is empty when the CLI should ask interactively.
	Role      Role `mapstructure:"role"`
	Transport Kind `mapstructure:"transport"`

	// Addr is the listen address for servers. Clients dial it: host:port for
	// tcp, a ws:// URL for ws and the signaling URL (PIN included) for rtc.
	Addr   string `mapstructure:"addr"`
	WSPath string `mapstructure:"ws_path"`

	QueueSize    int           `mapstructure:"queue_size"`
	MaxPayload   uint32        `mapstructure:"max_payload"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	DrainTimeout time.Duration `mapstructure:"drain_timeout"`

	ICEServers  []string `mapstructure:"ice_servers"`
	RTCLoopback bool     `mapstructure:"rtc_loopback"`

	StatsInterval time.Duration `mapstructure:"stats_interval"`

	Log LogConfig `mapstructure:"log"`
}

// LogConfig defines logger settings.
type LogConfig struct {
	// Level: debug, info, warn, error
	Level string `mapstructure:"level"`
	// File enables the rotating JSON log file when non-empty.
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// Default returns a Config populated with the built-in defaults.
func Default() *Config {
	return &Config{
		Transport:     KindTCP,
		Addr:          "127.0.0.1:7700",
		WSPath:        "/rum3",
		QueueSize:     transport.DefaultQueueSize,
		MaxPayload:    transport.DefaultMaxPayload,
		DrainTimeout:  transport.DefaultDrainTimeout,
		ICEServers:    rtc.DefaultICEServers,
		StatsInterval: 10 * time.Second,
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  50,
			MaxBackups: 3,
			MaxAgeDays: 28,
			Compress:   true,
		},
	}
}

// Load reads configuration from path (if non-empty), otherwise from
// RUM3_CONFIG or a rum3.{yaml,toml,json} in the usual places. A missing file
// is not an error. Environment variables use the prefix RUM3 with `.`
// replaced by `_`, e.g. RUM3_LOG_LEVEL=debug.
func Load(path string) (*Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetEnvPrefix("RUM3")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	// seed defaults so env-only configs work
	v.SetDefault("role", string(cfg.Role))
	v.SetDefault("transport", string(cfg.Transport))
	v.SetDefault("addr", cfg.Addr)
	v.SetDefault("ws_path", cfg.WSPath)
	v.SetDefault("queue_size", cfg.QueueSize)
	v.SetDefault("max_payload", cfg.MaxPayload)
	v.SetDefault("write_timeout", cfg.WriteTimeout)
	v.SetDefault("drain_timeout", cfg.DrainTimeout)
	v.SetDefault("ice_servers", cfg.ICEServers)
	v.SetDefault("rtc_loopback", cfg.RTCLoopback)
	v.SetDefault("stats_interval", cfg.StatsInterval)
	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.file", cfg.Log.File)
	v.SetDefault("log.max_size_mb", cfg.Log.MaxSizeMB)
	v.SetDefault("log.max_backups", cfg.Log.MaxBackups)
	v.SetDefault("log.max_age_days", cfg.Log.MaxAgeDays)
	v.SetDefault("log.compress", cfg.Log.Compress)

	if path == "" {
		path = os.Getenv("RUM3_CONFIG")
	}
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("rum3")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".rum3"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate normalizes the enumerations and rejects unusable values.
func (c *Config) Validate() error {
	c.Role = Role(strings.ToLower(strings.TrimSpace(string(c.Role))))
	c.Transport = Kind(strings.ToLower(strings.TrimSpace(string(c.Transport))))

	switch c.Role {
	case "", RoleServer, RoleClient:
	default:
		return fmt.Errorf("invalid role: %q (want server or client)", c.Role)
	}
	switch c.Transport {
	case KindTCP, KindWS, KindRTC:
	default:
		return fmt.Errorf("invalid transport: %q (want tcp, ws or rtc)", c.Transport)
	}
	if _, ok := util.ParseLevel(c.Log.Level); !ok {
		return fmt.Errorf("invalid log.level: %q", c.Log.Level)
	}
	if c.QueueSize <= 0 {
		return fmt.Errorf("invalid queue_size: %d", c.QueueSize)
	}
	if c.MaxPayload == 0 {
		return errors.New("invalid max_payload: 0")
	}
	if c.WriteTimeout < 0 {
		return fmt.Errorf("invalid write_timeout: %s", c.WriteTimeout)
	}
	if c.DrainTimeout <= 0 {
		return fmt.Errorf("invalid drain_timeout: %s", c.DrainTimeout)
	}
	if c.Transport == KindWS && !strings.HasPrefix(c.WSPath, "/") {
		return fmt.Errorf("invalid ws_path: %q (must start with /)", c.WSPath)
	}
	return nil
}

// TransportConfig returns the transport settings, logging through logger.
func (c *Config) TransportConfig(logger util.Emitter) transport.Config {
	return transport.Config{
		QueueSize:    c.QueueSize,
		MaxPayload:   c.MaxPayload,
		WriteTimeout: c.WriteTimeout,
		DrainTimeout: c.DrainTimeout,
		Logger:       logger,
	}
}

// RTCOptions returns the WebRTC settings.
func (c *Config) RTCOptions() rtc.Options {
	return rtc.Options{
		ICEServers: c.ICEServers,
		Loopback:   c.RTCLoopback,
	}
}

// LogSettings returns the logger settings.
func (c *Config) LogSettings() util.LogConfig {
	return util.LogConfig{
		Level:      c.Log.Level,
		File:       c.Log.File,
		MaxSizeMB:  c.Log.MaxSizeMB,
		MaxBackups: c.Log.MaxBackups,
		MaxAgeDays: c.Log.MaxAgeDays,
		Compress:   c.Log.Compress,
	}
}
