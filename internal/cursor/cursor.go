// Package cursor provides forward-only cursors over sorted event times.
package cursor

import (
	"math"

	"github.com/verte-zerg/iblreplay/internal/quantile"
)

// Cursor is a forward-only position in a non-decreasing timestamp array.
// Index is the number of events consumed so far; it only moves backward on
// Reset or SeekTo.
type Cursor struct {
	times []float64
	index int
}

// New returns a cursor at the start of times. times is not copied.
func New(times []float64) *Cursor {
	return &Cursor{times: times}
}

// Index returns the position of the next unconsumed event.
func (c *Cursor) Index() int {
	return c.index
}

// Len returns the number of events in the channel.
func (c *Cursor) Len() int {
	return len(c.times)
}

// Exhausted reports whether every event has been consumed.
func (c *Cursor) Exhausted() bool {
	return c.index >= len(c.times)
}

// HasFired reports whether the next event's timestamp is <= now.
// An exhausted cursor never fires.
func (c *Cursor) HasFired(now float64) bool {
	if c.Exhausted() {
		return false
	}
	return c.times[c.index] <= now
}

// Advance consumes one event. It is a no-op once exhausted.
func (c *Cursor) Advance() {
	if c.Exhausted() {
		return
	}
	c.index++
}

// Reset moves the cursor back to the first event.
func (c *Cursor) Reset() {
	c.index = 0
}

// Drain consumes every event with timestamp <= now, calling fn with each
// consumed index, and returns how many events fired. NaN entries are stepped
// over silently once the next valid timestamp has fired.
func (c *Cursor) Drain(now float64, fn func(i int)) int {
	fired := 0
	for !c.Exhausted() {
		if math.IsNaN(c.times[c.index]) {
			if !c.skipInvalid(now) {
				break
			}
			continue
		}
		if !c.HasFired(now) {
			break
		}
		if fn != nil {
			fn(c.index)
		}
		fired++
		c.Advance()
	}
	return fired
}

// SeekTo repositions the cursor so that every event <= target counts as
// consumed. It starts from the nearest quantile checkpoint below target and
// scans forward, so it never rescans from zero unless target precedes the
// first checkpoint.
func (c *Cursor) SeekTo(target float64, idx quantile.Index) {
	c.index = idx.Seed(target)
	if c.index > len(c.times) {
		c.index = len(c.times)
	}
	for !c.Exhausted() {
		if math.IsNaN(c.times[c.index]) {
			if !c.skipInvalid(target) {
				return
			}
			continue
		}
		if c.times[c.index] > target {
			return
		}
		c.index++
	}
}

// skipInvalid advances past a run of NaN timestamps when the next valid
// timestamp is <= now.
func (c *Cursor) skipInvalid(now float64) bool {
	next := c.index
	for next < len(c.times) && math.IsNaN(c.times[next]) {
		next++
	}
	if next >= len(c.times) || c.times[next] > now {
		return false
	}
	c.index = next
	return true
}
