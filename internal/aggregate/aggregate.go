// Package aggregate implements the streaming cross-series folds from §4.6
// (C6): mean, median, sum, count, min, max, first, last. Each is a tagged
// variant with exactly one behavior — Add/Result — per the design note in
// §9; none of them allocate beyond what median's lazy sort needs.
package aggregate

import "sort"

// Kind names one of the eight aggregator functions.
type Kind string

const (
	KindAvg    Kind = "avg"
	KindMean   Kind = "avg" // alias kept for readability at call sites
	KindMedian Kind = "median"
	KindSum    Kind = "sum"
	KindCount  Kind = "count"
	KindMin    Kind = "min"
	KindMax    Kind = "max"
	KindFirst  Kind = "first"
	KindLast   Kind = "last"
	KindNone   Kind = "none"
)

// Aggregator folds a stream of present-or-absent values into one result.
// Add is called once per input in arrival order; Result may be called
// repeatedly and must be idempotent (median sorts its buffer lazily on
// first call and reuses the sorted buffer afterward).
type Aggregator interface {
	// Add folds in a value. ok=false represents a null/absent input and
	// must be ignored by every aggregator except count, which still
	// ignores it for the purpose of the count itself — only present
	// values are counted.
	Add(value float64, ok bool)
	// Result returns the folded value, or false if no present value was
	// ever added.
	Result() (float64, bool)
}

// New constructs an Aggregator for kind. KindNone has no meaningful
// instance; callers must check for it before calling New (the query
// pipeline skips aggregation entirely when aggregator=none).
func New(kind Kind) Aggregator {
	switch kind {
	case KindMedian:
		return &medianAgg{}
	case KindSum:
		return &sumAgg{}
	case KindCount:
		return &countAgg{}
	case KindMin:
		return &minMaxAgg{isMin: true}
	case KindMax:
		return &minMaxAgg{isMin: false}
	case KindFirst:
		return &firstLastAgg{wantFirst: true}
	case KindLast:
		return &firstLastAgg{wantFirst: false}
	default: // avg/mean and anything unrecognized fall back to the mean
		return &meanAgg{}
	}
}

type meanAgg struct {
	sum   float64
	count int
}

func (a *meanAgg) Add(v float64, ok bool) {
	if !ok {
		return
	}
	a.sum += v
	a.count++
}

func (a *meanAgg) Result() (float64, bool) {
	if a.count == 0 {
		return 0, false
	}
	return a.sum / float64(a.count), true
}

type sumAgg struct {
	sum     float64
	present bool
}

func (a *sumAgg) Add(v float64, ok bool) {
	if !ok {
		return
	}
	a.sum += v
	a.present = true
}

func (a *sumAgg) Result() (float64, bool) { return a.sum, a.present }

type countAgg struct {
	n int
}

func (a *countAgg) Add(_ float64, ok bool) {
	if ok {
		a.n++
	}
}

func (a *countAgg) Result() (float64, bool) {
	if a.n == 0 {
		return 0, false
	}
	return float64(a.n), true
}

type minMaxAgg struct {
	isMin   bool
	value   float64
	present bool
}

func (a *minMaxAgg) Add(v float64, ok bool) {
	if !ok {
		return
	}
	if !a.present {
		a.value = v
		a.present = true
		return
	}
	if a.isMin && v < a.value {
		a.value = v
	} else if !a.isMin && v > a.value {
		a.value = v
	}
}

func (a *minMaxAgg) Result() (float64, bool) { return a.value, a.present }

type firstLastAgg struct {
	wantFirst bool
	value     float64
	present   bool
}

// Add relies on the caller feeding values in time-ascending order within
// a bucket (§5); first keeps the earliest, last keeps overwriting with
// the most recent.
func (a *firstLastAgg) Add(v float64, ok bool) {
	if !ok {
		return
	}
	if a.wantFirst {
		if !a.present {
			a.value = v
			a.present = true
		}
		return
	}
	a.value = v
	a.present = true
}

func (a *firstLastAgg) Result() (float64, bool) { return a.value, a.present }

// medianAgg buffers every present value and defers sorting to the first
// Result() call, per §4.6 ("median buffers and sorts lazily").
type medianAgg struct {
	values []float64
	sorted bool
}

func (a *medianAgg) Add(v float64, ok bool) {
	if !ok {
		return
	}
	a.values = append(a.values, v)
}

func (a *medianAgg) Result() (float64, bool) {
	if len(a.values) == 0 {
		return 0, false
	}
	if !a.sorted {
		sort.Float64s(a.values)
		a.sorted = true
	}
	n := len(a.values)
	if n%2 == 1 {
		return a.values[n/2], true
	}
	return (a.values[n/2-1] + a.values[n/2]) / 2, true
}
