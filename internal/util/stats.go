package util

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"
)

// ──────────────────────────────────────────────────────────────────────────────
// Global stats singleton
// ──────────────────────────────────────────────────────────────────────────────

// Stats is the process-wide traffic/connection counter.
var Stats = &stats{}

type stats struct {
	TotalConns  atomic.Int64 // cumulative count of connections since process start
	ClosedConns atomic.Int64 // cumulative count of closed connections since process start
	BytesSent   atomic.Int64 // cumulative encoded packet bytes written to links
	BytesRecv   atomic.Int64 // cumulative encoded packet bytes read from links
	PacketsSent atomic.Int64
	PacketsRecv atomic.Int64
}

func (s *stats) AddConn()    { s.TotalConns.Add(1) }
func (s *stats) RemoveConn() { s.ClosedConns.Add(1) }

func (s *stats) AddSent(n int) {
	s.PacketsSent.Add(1)
	s.BytesSent.Add(int64(n))
}

func (s *stats) AddRecv(n int) {
	s.PacketsRecv.Add(1)
	s.BytesRecv.Add(int64(n))
}

// Open returns the number of connections currently alive.
func (s *stats) Open() int64 {
	return s.TotalConns.Load() - s.ClosedConns.Load()
}

// ──────────────────────────────────────────────────────────────────────────────
// Periodic reporter
// ──────────────────────────────────────────────────────────────────────────────

// RunStatsReporter logs traffic statistics every interval until ctx is
// cancelled. Quiet periods are not reported.
func RunStatsReporter(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	secs := interval.Seconds()
	var prevSent, prevRecv, prevTotal, prevClosed int64
	for {
		select {
		case <-ticker.C:
			total := Stats.TotalConns.Load()
			closed := Stats.ClosedConns.Load()
			sent := Stats.BytesSent.Load()
			recv := Stats.BytesRecv.Load()

			outS := float64(sent-prevSent) / secs
			inS := float64(recv-prevRecv) / secs
			upC := total - prevTotal
			downC := closed - prevClosed

			if upC > 0 || downC > 0 || inS > 10 || outS > 10 {
				emit(LevelInfo, formatStats(inS, outS, upC, downC, total-closed))
			}

			prevSent = sent
			prevRecv = recv
			prevTotal = total
			prevClosed = closed

		case <-ctx.Done():
			return
		}
	}
}

// byteUnits defines the units for formatting byte counts in a human-readable way.
var byteUnits = []string{"B", "KiB", "MiB", "GiB", "TiB", "PiB"}

// formatBytes formats a byte count into a human-readable string with fixed width (exactly 8 chars)
// for example: "99.0   B", " 1.5 KiB", " 0.1 MiB", "98.9 GiB", etc.
func formatBytes(b float64) string {
	unitIdx := 0

	// to prevent "100.0 KiB", which is 9 chars
	for b > 99 && unitIdx < 5 {
		b /= 1024
		unitIdx++
	}

	return fmt.Sprintf("%4.1f %3s", b, byteUnits[unitIdx])
}

// formatStats returns a formatted string of the current stats for display in the logger.
func formatStats(inS, outS float64, upC, downC, open int64) string {
	return fmt.Sprintf("In: %s/s | Out: %s/s | Conn: %2d↑ %2d↓ (%d open)",
		formatBytes(inS),
		formatBytes(outS),
		upC,
		downC,
		open,
	)
}
