package engine

import (
	"sync/atomic"
	"time"
)

// Clock is the monotonic version counter.
//
// Versions only ever increase, so two distinct engine states never share a
// version. Reads are atomic so an external cache may poll Version from
// another goroutine; writes happen only on the engine's goroutine.
type Clock struct {
	seq atomic.Uint64
}

// NewClockAt creates a new clock starting at a specific value.
// The engine starts its version clock at 1.
func NewClockAt(start uint64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next increments the clock and returns the new value.
func (c *Clock) Next() uint64 {
	return c.seq.Add(1)
}

// Current returns the current value without incrementing.
func (c *Clock) Current() uint64 {
	return c.seq.Load()
}

// Ticker supplies the millisecond timestamps that gate merging.
// Only differences between ticks matter; the origin is arbitrary.
type Ticker interface {
	Now() int64
}

// WallTicker reads the monotonic wall clock relative to its creation.
type WallTicker struct {
	start time.Time
}

// NewWallTicker creates a ticker whose origin is now.
func NewWallTicker() *WallTicker {
	return &WallTicker{start: time.Now()}
}

// Now returns milliseconds elapsed since the ticker was created.
func (t *WallTicker) Now() int64 {
	return time.Since(t.start).Milliseconds()
}
