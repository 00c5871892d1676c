// Package util provides the process-wide logger and traffic statistics.
package util

import (
	"fmt"
	"strings"
	"sync"

	"github.com/pterm/pterm"
	"gopkg.in/natefinch/lumberjack.v2"
)

func init() {
	pterm.DefaultLogger.ShowTime = true
	pterm.DefaultLogger.TimeFormat = "02 Jan 15:04:05"
	pterm.DefaultLogger.MaxWidth = 1000
}

// Level is a log severity.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return fmt.Sprintf("level(%d)", int(l))
	}
}

// ParseLevel maps a level name to a Level. Unknown names report false.
func ParseLevel(raw string) (Level, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return LevelDebug, true
	case "info", "":
		return LevelInfo, true
	case "warn", "warning":
		return LevelWarn, true
	case "error":
		return LevelError, true
	default:
		return LevelInfo, false
	}
}

func (l Level) pterm() pterm.LogLevel {
	switch l {
	case LevelDebug:
		return pterm.LogLevelDebug
	case LevelWarn:
		return pterm.LogLevelWarn
	case LevelError:
		return pterm.LogLevelError
	default:
		return pterm.LogLevelInfo
	}
}

// Emitter is the fire-and-forget logging capability handed to library code.
type Emitter interface {
	Emit(level Level, msg string)
}

// EmitterFunc adapts a function to Emitter.
type EmitterFunc func(level Level, msg string)

func (f EmitterFunc) Emit(level Level, msg string) { f(level, msg) }

var (
	// Log writes to the console and, after InitLog with a file, to the log file.
	Log Emitter = EmitterFunc(emit)

	// Discard drops everything.
	Discard Emitter = EmitterFunc(func(Level, string) {})
)

// LogConfig configures the process logger.
type LogConfig struct {
	Level      string
	File       string // empty disables the file sink
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

var (
	initOnce sync.Once

	fileMu     sync.RWMutex
	fileSink   *lumberjack.Logger
	fileLogger *pterm.Logger
)

// InitLog configures the process logger. Only the first call has any effect.
func InitLog(cfg LogConfig) {
	initOnce.Do(func() {
		level, ok := ParseLevel(cfg.Level)
		if !ok {
			pterm.DefaultLogger.Warn(fmt.Sprintf("unknown log level %q, using info", cfg.Level))
		}
		pterm.DefaultLogger.Level = level.pterm()

		if cfg.File == "" {
			return
		}
		sink := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    max(cfg.MaxSizeMB, 1),
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   cfg.Compress,
		}
		logger := pterm.DefaultLogger.
			WithWriter(sink).
			WithFormatter(pterm.LogFormatterJSON).
			WithLevel(level.pterm()).
			WithTime(true)

		fileMu.Lock()
		fileSink = sink
		fileLogger = logger
		fileMu.Unlock()
	})
}

// CloseLog flushes and closes the file sink, if any. Console output keeps
// working afterwards.
func CloseLog() error {
	fileMu.Lock()
	defer fileMu.Unlock()
	if fileSink == nil {
		return nil
	}
	err := fileSink.Close()
	fileSink = nil
	fileLogger = nil
	return err
}

func emit(level Level, msg string) {
	write(&pterm.DefaultLogger, level, msg)

	fileMu.RLock()
	defer fileMu.RUnlock()
	if fileLogger != nil {
		write(fileLogger, level, msg)
	}
}

func write(l *pterm.Logger, level Level, msg string) {
	switch level {
	case LevelDebug:
		l.Debug(msg)
	case LevelWarn:
		l.Warn(msg)
	case LevelError:
		l.Error(msg)
	default:
		l.Info(msg)
	}
}

// Leveled logging helpers for application code.

func LogDebug(format string, args ...interface{}) {
	emit(LevelDebug, fmt.Sprintf(format, args...))
}

func LogInfo(format string, args ...interface{}) {
	emit(LevelInfo, fmt.Sprintf(format, args...))
}

func LogSuccess(format string, args ...interface{}) {
	emit(LevelInfo, fmt.Sprintf(format, args...))
}

func LogWarning(format string, args ...interface{}) {
	emit(LevelWarn, fmt.Sprintf(format, args...))
}

func LogError(format string, args ...interface{}) {
	emit(LevelError, fmt.Sprintf(format, args...))
}
