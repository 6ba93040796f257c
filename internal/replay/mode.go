package replay

import (
	"fmt"
	"strings"
)

// DisplayMode selects how spikes reach the neuron surface.
type DisplayMode int

const (
	// ModeSpiking flags each neuron as it spikes.
	ModeSpiking DisplayMode = iota
	// ModeGrayscaleRate shows each neuron's running firing rate.
	ModeGrayscaleRate
	// ModeRegionRate shows the mean rate of each probe on all its neurons.
	ModeRegionRate
)

// DisplayModes lists every mode in cycle order.
var DisplayModes = []DisplayMode{ModeSpiking, ModeGrayscaleRate, ModeRegionRate}

func (m DisplayMode) String() string {
	switch m {
	case ModeSpiking:
		return "spiking"
	case ModeGrayscaleRate:
		return "grayscale"
	case ModeRegionRate:
		return "region"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ParseDisplayMode accepts the names printed by String.
func ParseDisplayMode(s string) (DisplayMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "spiking":
		return ModeSpiking, nil
	case "grayscale", "grayscalefr":
		return ModeGrayscaleRate, nil
	case "region", "byregionfr":
		return ModeRegionRate, nil
	default:
		return ModeSpiking, fmt.Errorf("unknown display mode %q", s)
	}
}

// spikeSink receives drained spikes and flushes neuron state once per tick.
type spikeSink interface {
	spike(p *probeState, neuron int)
	flush(e *Engine, now float64)
}

func newSpikeSink(mode DisplayMode) spikeSink {
	switch mode {
	case ModeGrayscaleRate:
		return &rateSink{}
	case ModeRegionRate:
		return &rateSink{byProbe: true}
	default:
		return spikingSink{}
	}
}

type spikingSink struct{}

func (spikingSink) spike(p *probeState, neuron int) {
	if neuron < 0 || neuron >= len(p.counts) {
		return
	}
	p.counts[neuron]++
	if h, ok := p.handle(neuron); ok {
		p.surface.SetSpikeState(h, 1)
	}
}

func (spikingSink) flush(*Engine, float64) {}

type rateSink struct {
	byProbe bool
}

func (r *rateSink) spike(p *probeState, neuron int) {
	if neuron < 0 || neuron >= len(p.counts) {
		return
	}
	p.counts[neuron]++
	p.dirty = true
}

func (r *rateSink) flush(e *Engine, now float64) {
	elapsed := now - e.rateStart
	if elapsed <= 0 {
		return
	}
	ceiling := e.opts.RateCeiling
	for _, p := range e.probes {
		if !p.dirty {
			continue
		}
		p.dirty = false
		if r.byProbe {
			total := 0
			for _, c := range p.counts {
				total += c
			}
			mean := 0.0
			if len(p.counts) > 0 {
				mean = float64(total) / float64(len(p.counts)) / elapsed
			}
			level := clamp01(mean / ceiling)
			for i := range p.counts {
				if h, ok := p.handle(i); ok {
					p.surface.SetSpikeState(h, level)
				}
			}
			continue
		}
		for i, c := range p.counts {
			if h, ok := p.handle(i); ok {
				p.surface.SetSpikeState(h, clamp01(float64(c)/elapsed/ceiling))
			}
		}
	}
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
