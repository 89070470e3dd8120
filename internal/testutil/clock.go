package testutil

import (
	"sync"
	"time"
)

// ManualTicker is a millisecond ticker that only moves when told to.
//
// It satisfies engine.Ticker, so tests control merge windows exactly.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type ManualTicker struct {
	mu  sync.Mutex
	now int64
}

// NewManualTicker creates a ticker reading start milliseconds.
func NewManualTicker(start int64) *ManualTicker {
	return &ManualTicker{now: start}
}

// Now returns the current tick in milliseconds.
func (t *ManualTicker) Now() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.now
}

// Advance moves the ticker forward by d, truncated to milliseconds.
// Negative durations are ignored; ticks never decrease.
func (t *ManualTicker) Advance(d time.Duration) int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if ms := d.Milliseconds(); ms > 0 {
		t.now += ms
	}
	return t.now
}

// Set jumps to ms if it is not behind the current tick.
func (t *ManualTicker) Set(ms int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if ms > t.now {
		t.now = ms
	}
}
