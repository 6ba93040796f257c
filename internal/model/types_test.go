package model

import (
	"math"
	"testing"
)

func TestSessionDurationSkipsTrailingNaN(t *testing.T) {
	s := &Session{Channels: map[string]Channel{
		WheelTimes:                     {Values: []float64{0, 1, 2, 3}},
		GoCueTimes:                     {Values: []float64{2, 40, math.NaN()}},
		ProbeChannel(SpikeTimes, 1):    {Values: []float64{0.1, 12}},
		ContrastLeft:                   {Values: []float64{1000}},
		ProbeChannel(SpikeClusters, 1): {Values: []float64{5000}},
	}}
	if got := s.Duration(); got != 40 {
		t.Fatalf("expected duration 40, got %v", got)
	}
}

func TestIsTimeChannel(t *testing.T) {
	for _, key := range []string{"spikes.times0", "spikes.times1", "spikes.times2", "spikes.times12", WheelTimes, LickTimes} {
		if !IsTimeChannel(key) {
			t.Fatalf("expected %s to be a time channel", key)
		}
	}
	for _, key := range []string{"spikes.clusters0", WheelPosition, FeedbackType, "spikes.times"} {
		if IsTimeChannel(key) {
			t.Fatalf("expected %s not to be a time channel", key)
		}
	}
}

func TestMissingChannelIsEmpty(t *testing.T) {
	var s *Session
	if s.Channel(LickTimes).Len() != 0 {
		t.Fatalf("expected empty channel on nil session")
	}
	if _, ok := (Channel{Values: []float64{1}}).At(1); ok {
		t.Fatalf("expected out of range")
	}
}
