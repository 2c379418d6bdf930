package stats

import (
	"time"
)

// StatsTicker is the part of time.Ticker the latching goroutine reads.
type StatsTicker interface {
	C() <-chan time.Time
	Stop()
}

// StatsTime is the clock behind latencies and latching.
type StatsTime interface {
	Now() time.Time
	Since(t time.Time) time.Duration
	NewTicker(d time.Duration) StatsTicker
}

type wallTicker struct{ t *time.Ticker }

func (w wallTicker) C() <-chan time.Time { return w.t.C }
func (w wallTicker) Stop()               { w.t.Stop() }

type wallClock struct{}

func (wallClock) Now() time.Time                        { return time.Now() }
func (wallClock) Since(t time.Time) time.Duration       { return time.Since(t) }
func (wallClock) NewTicker(d time.Duration) StatsTicker { return wallTicker{time.NewTicker(d)} }

func DefaultStatsTime() StatsTime { return wallClock{} }

// manualClock stands still. Every measurement takes elapsed, and its tickers fire
// only when the test sends on ticks.
type manualClock struct {
	now     time.Time
	elapsed time.Duration
	ticks   <-chan time.Time
}

func (c manualClock) Now() time.Time                      { return c.now }
func (c manualClock) Since(time.Time) time.Duration       { return c.elapsed }
func (c manualClock) NewTicker(time.Duration) StatsTicker { return manualTicker(c.ticks) }

type manualTicker <-chan time.Time

func (t manualTicker) C() <-chan time.Time { return t }
func (t manualTicker) Stop()               {}

func NewTestTime(now time.Time, elapsed time.Duration, ticks <-chan time.Time) StatsTime {
	return manualClock{now, elapsed, ticks}
}
