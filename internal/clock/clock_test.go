package clock

import (
	"errors"
	"testing"
)

func TestAdvanceOnlyWhileRunning(t *testing.T) {
	c := New()
	if got := c.Advance(1); got != 0 {
		t.Fatalf("stopped clock advanced to %v", got)
	}
	if err := c.Play(); err != nil {
		t.Fatalf("play: %v", err)
	}
	c.Advance(0.5)
	c.Advance(-3)
	c.Advance(0)
	if c.Time() != 0.5 {
		t.Fatalf("expected 0.5, got %v", c.Time())
	}
	if err := c.Pause(); err != nil {
		t.Fatalf("pause: %v", err)
	}
	c.Advance(10)
	if c.Time() != 0.5 {
		t.Fatalf("paused clock advanced to %v", c.Time())
	}
	if err := c.Play(); err != nil {
		t.Fatalf("resume: %v", err)
	}
	c.Advance(0.25)
	if c.Time() != 0.75 {
		t.Fatalf("expected resume to keep time, got %v", c.Time())
	}
}

func TestTransitions(t *testing.T) {
	c := New()
	if err := c.Pause(); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("pause from stopped should fail, got %v", err)
	}
	if err := c.Play(); err != nil {
		t.Fatalf("play: %v", err)
	}
	if err := c.Play(); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("double play should fail, got %v", err)
	}
	c.Advance(3)
	c.Stop()
	first := *c
	c.Stop()
	if c.State() != Stopped || c.Time() != 0 || c.Time() != first.Time() || c.State() != first.State() {
		t.Fatalf("stop is not idempotent: %+v vs %+v", first, *c)
	}
}

func TestRateScalesAdvance(t *testing.T) {
	c := New()
	_ = c.Play()
	c.SpeedUp()
	c.Advance(1)
	if c.Time() != 2 {
		t.Fatalf("expected 2 at double rate, got %v", c.Time())
	}
	c.SlowDown()
	c.SlowDown()
	c.Advance(1)
	if c.Time() != 2.5 {
		t.Fatalf("expected 2.5 at half rate, got %v", c.Time())
	}
}

func TestRateClampAndNotify(t *testing.T) {
	c := New()
	var notified []float64
	c.OnRateChange(func(rate float64) { notified = append(notified, rate) })
	if err := c.SetRateBounds(0.25, 4); err != nil {
		t.Fatalf("bounds: %v", err)
	}
	for i := 0; i < 5; i++ {
		c.SpeedUp()
	}
	if c.Rate() != 4 {
		t.Fatalf("expected clamp at 4, got %v", c.Rate())
	}
	for i := 0; i < 10; i++ {
		c.SlowDown()
	}
	if c.Rate() != 0.25 {
		t.Fatalf("expected clamp at 0.25, got %v", c.Rate())
	}
	want := []float64{2, 4, 2, 1, 0.5, 0.25}
	if len(notified) != len(want) {
		t.Fatalf("expected %d notifications, got %v", len(want), notified)
	}
	for i := range want {
		if notified[i] != want[i] {
			t.Fatalf("notification %d: expected %v, got %v", i, want[i], notified[i])
		}
	}
	if err := c.SetRate(0); err == nil {
		t.Fatalf("expected error for zero rate")
	}
	if err := c.SetRateBounds(2, 1); err == nil {
		t.Fatalf("expected error for inverted bounds")
	}
}
