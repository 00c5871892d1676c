package transport

import (
	"time"

	"github.com/1ureka/rum3/internal/util"
)

const (
	DefaultQueueSize  = 100
	DefaultFanInSize  = 100
	DefaultMaxPayload = 16 << 20

	DefaultDrainTimeout = 5 * time.Second
)

// Config tunes a Client or Server. Zero fields take the defaults.
type Config struct {
	QueueSize    int           // outbound packets buffered per session
	FanInSize    int           // inbound packets buffered across all sessions
	MaxPayload   uint32        // largest payload a reader accepts
	WriteTimeout time.Duration // per-packet write deadline, 0 disables
	DrainTimeout time.Duration // how long Close waits for queued packets before dropping the link
	Logger       util.Emitter
}

// DefaultConfig returns the configuration used when none is given.
func DefaultConfig() Config {
	return Config{
		QueueSize:    DefaultQueueSize,
		FanInSize:    DefaultFanInSize,
		MaxPayload:   DefaultMaxPayload,
		DrainTimeout: DefaultDrainTimeout,
		Logger:       util.Log,
	}
}

// WithDefaults returns c with every zero field replaced by its default.
func (c Config) WithDefaults() Config {
	if c.QueueSize <= 0 {
		c.QueueSize = DefaultQueueSize
	}
	if c.FanInSize <= 0 {
		c.FanInSize = DefaultFanInSize
	}
	if c.MaxPayload == 0 {
		c.MaxPayload = DefaultMaxPayload
	}
	if c.DrainTimeout <= 0 {
		c.DrainTimeout = DefaultDrainTimeout
	}
	if c.Logger == nil {
		c.Logger = util.Log
	}
	return c
}
