// Package rate implements the per-series rate converter from §4.7 (C7):
// first-difference divided by elapsed seconds, with a counter-rollover
// mode for monotonically increasing values that wrap at some maximum.
package rate

import "time"

// Options configures one series' conversion.
type Options struct {
	Counter    bool
	CounterMax float64
	DropResets bool
}

// Converter holds the previous sample for one series. A zero Converter
// is ready to use; Reset returns it to that state at a series boundary.
type Converter struct {
	opts Options

	hasPrev bool
	prevT   time.Time
	prevV   float64
}

// New creates a Converter for a single series.
func New(opts Options) *Converter {
	return &Converter{opts: opts}
}

// Reset clears the previous sample, as required at every series
// boundary (§5: "both must be reset at a series boundary").
func (c *Converter) Reset() {
	c.hasPrev = false
}

// TryCalc feeds one sample and returns (rate, emit). queryStart gates
// plain-mode emission: the first in-range point needs a predecessor,
// which the query pipeline supplies by widening the window 1h
// upstream (§4.9 step 3).
func (c *Converter) TryCalc(t time.Time, v float64, queryStart time.Time) (float64, bool) {
	if !c.hasPrev {
		c.prevT, c.prevV = t, v
		c.hasPrev = true
		return 0, false
	}

	dt := t.Sub(c.prevT).Seconds()
	prevV := c.prevV
	c.prevT, c.prevV = t, v

	if dt <= 0 {
		return 0, false
	}

	if !c.opts.Counter {
		if t.Before(queryStart) {
			return 0, false
		}
		return (v - prevV) / dt, true
	}

	if v < prevV {
		if c.opts.DropResets {
			return 0, false
		}
		rate := (c.opts.CounterMax - prevV + v) / dt
		return rate, true
	}
	return (v - prevV) / dt, true
}
