// Package model defines shared data structures.
package model

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Channel names as they appear in manifest URIs.
const (
	SpikeTimes     = "spikes.times"
	SpikeClusters  = "spikes.clusters"
	WheelPosition  = "wheel.position"
	WheelTimes     = "wheel.timestamps"
	GoCueTimes     = "goCue_times"
	FeedbackTimes  = "feedback_times"
	FeedbackType   = "feedbackType"
	ContrastLeft   = "contrastLeft"
	ContrastRight  = "contrastRight"
	LickTimes      = "lick.times"
	MaxProbeSlots  = 2
	NeuronPosScale = 1000.0
)

// ChannelNames lists every channel a manifest URI is matched against, in
// match order.
var ChannelNames = []string{
	SpikeTimes, SpikeClusters, WheelPosition, WheelTimes, GoCueTimes,
	FeedbackTimes, FeedbackType, ContrastLeft, ContrastRight, LickTimes,
}

// ProbeChannel returns the per-probe key for a spike channel, e.g.
// "spikes.times0".
func ProbeChannel(name string, probe int) string {
	return fmt.Sprintf("%s%d", name, probe)
}

// IsTimeChannel reports whether key holds event timestamps.
func IsTimeChannel(key string) bool {
	switch key {
	case WheelTimes, GoCueTimes, FeedbackTimes, LickTimes:
		return true
	}
	probe, ok := strings.CutPrefix(key, SpikeTimes)
	if !ok || probe == "" {
		return false
	}
	_, err := strconv.Atoi(probe)
	return err == nil
}

// Channel is an immutable numeric array loaded for a session.
type Channel struct {
	Name   string
	Values []float64
}

// Len returns the number of samples.
func (c Channel) Len() int {
	return len(c.Values)
}

// At returns the value at i; ok is false when i is out of range.
func (c Channel) At(i int) (float64, bool) {
	if i < 0 || i >= len(c.Values) {
		return 0, false
	}
	return c.Values[i], true
}

// Angle is a camera view.
type Angle int

const (
	AngleLeft Angle = iota
	AngleBody
	AngleRight
)

// Angles lists every camera view in load order.
var Angles = []Angle{AngleLeft, AngleBody, AngleRight}

func (a Angle) String() string {
	switch a {
	case AngleLeft:
		return "left"
	case AngleBody:
		return "body"
	case AngleRight:
		return "right"
	default:
		return fmt.Sprintf("angle(%d)", int(a))
	}
}

// VideoClip is a resolved video asset for one camera angle.
type VideoClip struct {
	Angle       Angle
	Path        string
	Size        int64
	StartOffset float64
}

// ClusterCoord is a neuron position in mlapdv space (micrometres).
type ClusterCoord struct {
	ML float64
	AP float64
	DV float64
}

// Trajectory is a probe insertion: entry point plus depth and angles.
type Trajectory struct {
	ML    float64
	AP    float64
	DV    float64
	Depth float64
	Theta float64
	Phi   float64
}

// Probe is one recording device resolved from a manifest.
type Probe struct {
	Slot       int
	Index      int
	PID        string
	Clusters   []ClusterCoord
	Trajectory Trajectory
}

// Session holds every channel loaded for one experiment id.
// It is read-only once returned by the loader.
type Session struct {
	EID      string
	Channels map[string]Channel
	Probes   []Probe
	Videos   map[Angle]VideoClip
	LoadedAt time.Time
}

// Channel returns the named channel; a missing channel is empty.
func (s *Session) Channel(key string) Channel {
	if s == nil {
		return Channel{Name: key}
	}
	ch, ok := s.Channels[key]
	if !ok {
		return Channel{Name: key}
	}
	return ch
}

// Duration returns the latest valid timestamp across all time channels.
func (s *Session) Duration() float64 {
	if s == nil {
		return 0
	}
	maxT := 0.0
	for key, ch := range s.Channels {
		if !IsTimeChannel(key) {
			continue
		}
		for i := len(ch.Values) - 1; i >= 0; i-- {
			v := ch.Values[i]
			if !math.IsNaN(v) {
				if v > maxT {
					maxT = v
				}
				break
			}
		}
	}
	return maxT
}

// RunStats captures a completed replay run.
type RunStats struct {
	RunID     string
	EID       string
	StartedAt time.Time
	EndedAt   time.Time
	TaskTime  float64
	Rate      float64
	Mode      string
	Counts    EventCounts
}

// EventCounts tallies fired events per channel family.
type EventCounts struct {
	Spikes       int
	WheelSamples int
	GoCues       int
	Feedbacks    int
	Rewards      int
	Licks        int
}

// Add accumulates o into c.
func (c *EventCounts) Add(o EventCounts) {
	c.Spikes += o.Spikes
	c.WheelSamples += o.WheelSamples
	c.GoCues += o.GoCues
	c.Feedbacks += o.Feedbacks
	c.Rewards += o.Rewards
	c.Licks += o.Licks
}

// RunAggregate summarizes stored runs for one session.
type RunAggregate struct {
	EID          string
	Runs         int
	LastEndedAt  time.Time
	MaxTaskTime  float64
	TotalSpikes  int
	TotalRewards int
}
