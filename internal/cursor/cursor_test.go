package cursor

import (
	"math"
	"math/rand"
	"sort"
	"testing"

	"github.com/verte-zerg/iblreplay/internal/quantile"
)

func TestHasFiredAndAdvance(t *testing.T) {
	c := New([]float64{0.5, 1.0})
	if c.HasFired(0.4) {
		t.Fatalf("event at 0.5 should not fire at 0.4")
	}
	if !c.HasFired(0.5) {
		t.Fatalf("event at 0.5 should fire at 0.5")
	}
	c.Advance()
	c.Advance()
	if !c.Exhausted() {
		t.Fatalf("expected exhausted cursor")
	}
	c.Advance()
	if c.Index() != 2 {
		t.Fatalf("advance past end must not move the cursor, got %d", c.Index())
	}
	if c.HasFired(100) {
		t.Fatalf("exhausted cursor must not fire")
	}
}

func TestDrainFiresEveryCrossingOnce(t *testing.T) {
	times := []float64{0.01, 0.02, 0.02, 0.5, 0.9, 1.7}
	c := New(times)
	var seen []int
	if n := c.Drain(0.6, func(i int) { seen = append(seen, i) }); n != 4 {
		t.Fatalf("expected 4 events in first drain, got %d", n)
	}
	if n := c.Drain(0.6, func(i int) { seen = append(seen, i) }); n != 0 {
		t.Fatalf("second drain at same time must not refire, got %d", n)
	}
	if n := c.Drain(10, func(i int) { seen = append(seen, i) }); n != 2 {
		t.Fatalf("expected 2 remaining events, got %d", n)
	}
	for i, idx := range seen {
		if idx != i {
			t.Fatalf("events out of order: %v", seen)
		}
	}
}

func TestDrainStepsOverNaN(t *testing.T) {
	nan := math.NaN()
	c := New([]float64{1, nan, nan, 3, nan})
	if n := c.Drain(2, nil); n != 1 {
		t.Fatalf("expected 1 event before NaN run, got %d", n)
	}
	if c.Index() != 1 {
		t.Fatalf("NaN run must wait for the next valid event, index %d", c.Index())
	}
	if n := c.Drain(3, nil); n != 1 {
		t.Fatalf("expected event at 3 after NaN run, got %d", n)
	}
	if c.Index() != 4 {
		t.Fatalf("expected index 4, got %d", c.Index())
	}
	c.Drain(100, nil)
	if c.Exhausted() {
		t.Fatalf("trailing NaN never fires")
	}
}

func TestFiredCountMatchesTimestampsAtOrBelow(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	times := make([]float64, 500)
	for i := range times {
		times[i] = rng.Float64() * 50
	}
	sort.Float64s(times)

	c := New(times)
	now := 0.0
	total := 0
	for now < 60 {
		now += rng.Float64() * 0.3
		total += c.Drain(now, nil)
		if total != countAtOrBelow(times, now) {
			t.Fatalf("at %.3f fired %d, expected %d", now, total, countAtOrBelow(times, now))
		}
	}
}

func TestSeekMatchesLinearScan(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	times := make([]float64, 2000)
	for i := range times {
		times[i] = rng.ExpFloat64() * 10
	}
	sort.Float64s(times)
	idx := quantile.Build(times)

	for _, target := range []float64{-1, 0, 0.001, 3.3, 10, 25.7, idx.Max, idx.Max + 5} {
		c := New(times)
		c.SeekTo(target, idx)
		if want := countAtOrBelow(times, target); c.Index() != want {
			t.Fatalf("seek to %v: got index %d, linear scan %d", target, c.Index(), want)
		}
	}
	for i := 0; i < 200; i++ {
		target := rng.Float64() * (idx.Max + 1)
		c := New(times)
		c.SeekTo(target, idx)
		if want := countAtOrBelow(times, target); c.Index() != want {
			t.Fatalf("seek to %v: got index %d, linear scan %d", target, c.Index(), want)
		}
	}
}

func TestSeekBackward(t *testing.T) {
	times := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	idx := quantile.Build(times)
	c := New(times)
	c.Drain(9.5, nil)
	c.SeekTo(2.5, idx)
	if c.Index() != 2 {
		t.Fatalf("expected index 2 after backward seek, got %d", c.Index())
	}
}

func countAtOrBelow(times []float64, t float64) int {
	n := 0
	for _, v := range times {
		if v <= t {
			n++
		}
	}
	return n
}
