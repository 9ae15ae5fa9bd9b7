// Package fightclock implements the stopwatch that measures elapsed fight
// time. It advances only when Tick is called, by the wall-clock delta since
// the previous tick, so scheduler jitter between ticks never accumulates.
//
// Clock is not goroutine-safe. The engine loop is its only owner.
package fightclock

import "time"

// Clock is a start/stop/reset stopwatch measured in seconds.
type Clock struct {
	elapsed  float64
	running  bool
	lastTick time.Time
}

// Start marks the clock running and records now as the reference instant.
// Calling Start on a running clock does nothing.
func (c *Clock) Start(now time.Time) {
	if c.running {
		return
	}
	c.running = true
	c.lastTick = now
}

// Stop freezes the clock. Elapsed time is preserved.
func (c *Clock) Stop() {
	if !c.running {
		return
	}
	c.running = false
	c.lastTick = time.Time{}
}

// Reset stops the clock and zeroes elapsed time.
func (c *Clock) Reset() {
	c.Stop()
	c.elapsed = 0
}

// Tick advances elapsed time by now minus the previous tick. It is a no-op
// while stopped. A tick that goes backwards in time adds nothing but still
// moves the reference forward to now.
func (c *Clock) Tick(now time.Time) {
	if !c.running {
		return
	}
	delta := now.Sub(c.lastTick).Seconds()
	c.lastTick = now
	if delta <= 0 {
		return
	}
	c.elapsed += delta
}

// Elapsed returns the elapsed fight time in seconds. Never negative.
func (c *Clock) Elapsed() float64 {
	if c.elapsed < 0 {
		return 0
	}
	return c.elapsed
}

// Running reports whether the clock is advancing.
func (c *Clock) Running() bool { return c.running }
