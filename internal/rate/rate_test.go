package rate

import (
	"testing"
	"time"
)

func TestPlainRateFirstPointNoEmit(t *testing.T) {
	c := New(Options{})
	t0 := time.Unix(0, 0)
	_, emit := c.TryCalc(t0, 10, t0)
	if emit {
		t.Errorf("expected no emission on first point")
	}
}

func TestPlainRateEmitsDifferenceOverTime(t *testing.T) {
	c := New(Options{})
	t0 := time.Unix(1000, 0)
	t1 := time.Unix(1010, 0)
	queryStart := time.Unix(500, 0)

	c.TryCalc(t0, 5, queryStart)
	v, emit := c.TryCalc(t1, 15, queryStart)
	if !emit {
		t.Fatal("expected emission")
	}
	if got, want := v, 1.0; got != want {
		t.Errorf("expected rate %v, got %v", want, got)
	}
}

func TestPlainRateSuppressedBeforeQueryStart(t *testing.T) {
	c := New(Options{})
	t0 := time.Unix(1000, 0)
	t1 := time.Unix(1010, 0)
	queryStart := time.Unix(2000, 0) // after t1

	c.TryCalc(t0, 5, queryStart)
	_, emit := c.TryCalc(t1, 15, queryStart)
	if emit {
		t.Errorf("expected suppression when point precedes queryStart")
	}
}

func TestCounterRolloverComputesWrap(t *testing.T) {
	c := New(Options{Counter: true, CounterMax: 15})
	t0 := time.Unix(0, 0)
	t1 := time.Unix(1, 0)

	c.TryCalc(t0, 10, t0)
	v, emit := c.TryCalc(t1, 2, t0)
	if !emit {
		t.Fatal("expected emission on rollover")
	}
	want := (15.0 - 10 + 2) / 1
	if v != want {
		t.Errorf("expected rollover rate %v, got %v", want, v)
	}
}

func TestCounterDropResetsSuppressesRollover(t *testing.T) {
	c := New(Options{Counter: true, CounterMax: 15, DropResets: true})
	t0 := time.Unix(0, 0)
	t1 := time.Unix(1, 0)

	c.TryCalc(t0, 10, t0)
	_, emit := c.TryCalc(t1, 2, t0)
	if emit {
		t.Errorf("expected dropResets to suppress rollover emission")
	}
}

func TestCounterSequenceFromScenario(t *testing.T) {
	c := New(Options{Counter: true, CounterMax: 200})
	base := time.Unix(0, 0)
	samples := []struct {
		t time.Time
		v float64
	}{
		{base, 100},
		{base.Add(time.Minute), 150},
		{base.Add(2 * time.Minute), 20},
		{base.Add(3 * time.Minute), 60},
	}

	var rates []float64
	for _, s := range samples {
		if v, emit := c.TryCalc(s.t, s.v, base); emit {
			rates = append(rates, v)
		}
	}

	want := []float64{50.0 / 60, 70.0 / 60, 40.0 / 60}
	if len(rates) != len(want) {
		t.Fatalf("expected %d rates, got %d: %v", len(want), len(rates), rates)
	}
	for i := range want {
		if diff := rates[i] - want[i]; diff > 1e-9 || diff < -1e-9 {
			t.Errorf("rate[%d]: expected %v, got %v", i, want[i], rates[i])
		}
	}
}

func TestResetClearsPreviousSample(t *testing.T) {
	c := New(Options{})
	t0 := time.Unix(0, 0)
	c.TryCalc(t0, 10, t0)
	c.Reset()

	_, emit := c.TryCalc(t0.Add(time.Second), 20, t0)
	if emit {
		t.Errorf("expected no emission immediately after Reset (no predecessor)")
	}
}
