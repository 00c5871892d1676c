package util

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestFormatBytesFixedWidth(t *testing.T) {
	testCases := []struct {
		in   float64
		want string
	}{
		{0, " 0.0   B"},
		{99, "99.0   B"},
		{1536, " 1.5 KiB"},
		{100 * 1024, " 0.1 MiB"},
	}

	for _, tc := range testCases {
		got := formatBytes(tc.in)
		if got != tc.want {
			t.Errorf("formatBytes(%v) = %q, want %q", tc.in, got, tc.want)
		}
		if len(got) != 8 {
			t.Errorf("formatBytes(%v) width = %d, want 8", tc.in, len(got))
		}
	}
}

func TestStatsCounters(t *testing.T) {
	s := &stats{}
	s.AddConn()
	s.AddConn()
	s.RemoveConn()
	s.AddSent(64)
	s.AddSent(70)
	s.AddRecv(10)

	if s.Open() != 1 {
		t.Errorf("Open() = %d, want 1", s.Open())
	}
	if s.PacketsSent.Load() != 2 || s.BytesSent.Load() != 134 {
		t.Errorf("sent: %d packets / %d bytes", s.PacketsSent.Load(), s.BytesSent.Load())
	}
	if s.PacketsRecv.Load() != 1 || s.BytesRecv.Load() != 10 {
		t.Errorf("recv: %d packets / %d bytes", s.PacketsRecv.Load(), s.BytesRecv.Load())
	}
}

func TestRunStatsReporterStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		RunStatsReporter(ctx, 5*time.Millisecond)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("reporter did not stop after cancel")
	}
}

func TestParseLevel(t *testing.T) {
	testCases := []struct {
		raw  string
		want Level
		ok   bool
	}{
		{"debug", LevelDebug, true},
		{" INFO ", LevelInfo, true},
		{"", LevelInfo, true},
		{"warning", LevelWarn, true},
		{"error", LevelError, true},
		{"verbose", LevelInfo, false},
	}

	for _, tc := range testCases {
		got, ok := ParseLevel(tc.raw)
		if got != tc.want || ok != tc.ok {
			t.Errorf("ParseLevel(%q) = %v, %v; want %v, %v", tc.raw, got, ok, tc.want, tc.ok)
		}
	}
}

// TestInitLogWritesFile checks the file sink end to end. InitLog only takes
// effect once per process, so this is the only test that calls it.
func TestInitLogWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rum3.log")
	InitLog(LogConfig{Level: "debug", File: path, MaxSizeMB: 1})

	Log.Emit(LevelWarn, "connection reset by peer")
	LogError("write failed: %s", "broken pipe")

	if err := CloseLog(); err != nil {
		t.Fatalf("CloseLog: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	for _, want := range []string{"connection reset by peer", "write failed: broken pipe"} {
		if !strings.Contains(string(data), want) {
			t.Errorf("log file missing %q:\n%s", want, data)
		}
	}

	if err := CloseLog(); err != nil {
		t.Errorf("second CloseLog: %v", err)
	}
}

func TestEmitterFunc(t *testing.T) {
	var got []string
	e := EmitterFunc(func(level Level, msg string) {
		got = append(got, level.String()+":"+msg)
	})
	e.Emit(LevelInfo, "hello")
	Discard.Emit(LevelError, "dropped")

	if len(got) != 1 || got[0] != "info:hello" {
		t.Errorf("got %v", got)
	}
}
