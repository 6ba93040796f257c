// Package clock owns replay task-time, playback rate and run state.
package clock

import (
	"errors"
	"fmt"
)

// State is the playback state of a Clock.
type State int

const (
	Stopped State = iota
	Running
	Paused
)

func (s State) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case Running:
		return "running"
	case Paused:
		return "paused"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// ErrInvalidTransition is returned for transitions the state machine forbids.
var ErrInvalidTransition = errors.New("invalid clock transition")

const (
	DefaultRate    = 1.0
	DefaultMinRate = 1.0 / 16
	DefaultMaxRate = 16.0
)

// Clock is the single source of truth for task-time. It is not safe for
// concurrent use; the host loop owns it.
type Clock struct {
	time    float64
	rate    float64
	minRate float64
	maxRate float64
	state   State

	onRate func(rate float64)
}

// New returns a stopped clock with rate 1 and the default rate bounds.
func New() *Clock {
	return &Clock{
		rate:    DefaultRate,
		minRate: DefaultMinRate,
		maxRate: DefaultMaxRate,
	}
}

// SetRateBounds sets the clamp range for SpeedUp and SlowDown.
func (c *Clock) SetRateBounds(minRate, maxRate float64) error {
	if minRate <= 0 || maxRate < minRate {
		return fmt.Errorf("invalid rate bounds [%v, %v]", minRate, maxRate)
	}
	c.minRate = minRate
	c.maxRate = maxRate
	c.setRate(c.rate)
	return nil
}

// OnRateChange registers fn to be called with the new rate after every
// change. Only one listener is kept.
func (c *Clock) OnRateChange(fn func(rate float64)) {
	c.onRate = fn
}

func (c *Clock) Time() float64 { return c.time }
func (c *Clock) Rate() float64 { return c.rate }
func (c *Clock) State() State  { return c.state }

// Play starts or resumes the clock.
func (c *Clock) Play() error {
	if c.state == Running {
		return fmt.Errorf("%w: already running", ErrInvalidTransition)
	}
	c.state = Running
	return nil
}

// Pause halts time advance, keeping task-time.
func (c *Clock) Pause() error {
	if c.state != Running {
		return fmt.Errorf("%w: pause from %s", ErrInvalidTransition, c.state)
	}
	c.state = Paused
	return nil
}

// Stop halts the clock and resets task-time to zero. It is valid from any
// state and idempotent.
func (c *Clock) Stop() {
	c.state = Stopped
	c.time = 0
}

// Advance moves task-time forward by dt*rate while running and returns the
// new time. Non-positive dt is ignored.
func (c *Clock) Advance(dt float64) float64 {
	if c.state != Running || !(dt > 0) {
		return c.time
	}
	c.time += dt * c.rate
	return c.time
}

// SetTime jumps task-time. Negative targets clamp to zero.
func (c *Clock) SetTime(t float64) {
	if !(t > 0) {
		t = 0
	}
	c.time = t
}

// SpeedUp doubles the playback rate, clamped to the upper bound.
func (c *Clock) SpeedUp() float64 {
	c.setRate(c.rate * 2)
	return c.rate
}

// SlowDown halves the playback rate, clamped to the lower bound.
func (c *Clock) SlowDown() float64 {
	c.setRate(c.rate / 2)
	return c.rate
}

// SetRate sets the playback rate, clamped to the bounds.
func (c *Clock) SetRate(rate float64) error {
	if !(rate > 0) {
		return fmt.Errorf("playback rate must be > 0, got %v", rate)
	}
	c.setRate(rate)
	return nil
}

func (c *Clock) setRate(rate float64) {
	if rate < c.minRate {
		rate = c.minRate
	}
	if rate > c.maxRate {
		rate = c.maxRate
	}
	changed := rate != c.rate
	c.rate = rate
	if changed && c.onRate != nil {
		c.onRate(rate)
	}
}
