package tui

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/verte-zerg/iblreplay/internal/model"
	"github.com/verte-zerg/iblreplay/internal/replay"
)

const (
	maxEvents      = 200
	spikeDecay     = 0.6
	spikeThreshold = 0.05
	flashFrames    = 6
)

type stimulus struct {
	x, y     float64
	contrast float64
	scale    float64
	expireAt float64
	pending  bool
}

type neuron struct {
	pos   replay.Vec3
	color replay.Color
	slot  int
	state float64
}

type videoState struct {
	clips   map[model.Angle]model.VideoClip
	playing bool
	rate    float64
	pos     float64
}

// Event is one line of the event log.
type Event struct {
	TaskTime float64
	Text     string
}

// Display keeps the terminal's view of every replay surface. Task-time is
// pushed in by Advance; delayed removals are resolved against it.
type Display struct {
	now float64

	video   videoState
	stimuli map[replay.Handle]*stimulus
	next    replay.Handle

	neurons []neuron
	decay   bool

	wheelDeg float64
	probes   map[int]replay.ProbeVisual

	events     []Event
	toneFlash  int
	noiseFlash int
	dropFlash  int
	lickFlash  int
	clickFlash int
	drops      int
	licks      int
}

// NewDisplay returns an empty display. When decay is true spike states fade
// every frame, which suits the per-spike display mode.
func NewDisplay(decay bool) *Display {
	return &Display{
		video:   videoState{clips: map[model.Angle]model.VideoClip{}, rate: 1},
		stimuli: map[replay.Handle]*stimulus{},
		probes:  map[int]replay.ProbeVisual{},
		decay:   decay,
	}
}

// Surfaces exposes the display as every replay surface.
func (d *Display) Surfaces() replay.Surfaces {
	return replay.Surfaces{
		Video:    d,
		Stimulus: d,
		Audio:    d,
		Reward:   d,
		Neurons:  d,
		Wheel:    d,
		Probes:   d,
	}
}

// Advance moves the display to task-time now: delayed removals due by now
// are applied, flashes and spike states fade.
func (d *Display) Advance(now float64) {
	dt := now - d.now
	d.now = now
	if d.video.playing && dt > 0 {
		d.video.pos += dt
	}
	for h, s := range d.stimuli {
		if s.pending && s.expireAt <= now {
			delete(d.stimuli, h)
		}
	}
	if d.decay {
		for i := range d.neurons {
			d.neurons[i].state *= spikeDecay
			if d.neurons[i].state < spikeThreshold {
				d.neurons[i].state = 0
			}
		}
	}
	d.toneFlash = fade(d.toneFlash)
	d.noiseFlash = fade(d.noiseFlash)
	d.dropFlash = fade(d.dropFlash)
	d.lickFlash = fade(d.lickFlash)
	d.clickFlash = fade(d.clickFlash)
}

// Reset forgets neurons, stimuli and probes before another session is
// activated. The event log is kept.
func (d *Display) Reset() {
	d.now = 0
	d.video = videoState{clips: map[model.Angle]model.VideoClip{}, rate: d.video.rate}
	d.stimuli = map[replay.Handle]*stimulus{}
	d.neurons = nil
	d.probes = map[int]replay.ProbeVisual{}
	d.wheelDeg = 0
	d.drops = 0
	d.licks = 0
}

// Events returns the event log, oldest first.
func (d *Display) Events() []Event {
	return d.events
}

// LiveStimuli returns the stimuli currently drawn, ordered by handle.
func (d *Display) LiveStimuli() []replay.Handle {
	out := make([]replay.Handle, 0, len(d.stimuli))
	for h := range d.stimuli {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (d *Display) logEvent(format string, args ...any) {
	d.events = append(d.events, Event{TaskTime: d.now, Text: fmt.Sprintf(format, args...)})
	if len(d.events) > maxEvents {
		d.events = append(d.events[:0], d.events[len(d.events)-maxEvents:]...)
	}
}

func fade(n int) int {
	if n > 0 {
		return n - 1
	}
	return 0
}

// SetClip implements replay.VideoSurface.
func (d *Display) SetClip(angle model.Angle, clip model.VideoClip, startOffset float64) {
	clip.StartOffset = startOffset
	d.video.clips[angle] = clip
	d.video.playing = false
	d.video.pos = 0
}

// Play implements replay.VideoSurface.
func (d *Display) Play() {
	if len(d.video.clips) == 0 {
		return
	}
	d.video.playing = true
	d.logEvent("video playing")
}

// Stop implements replay.VideoSurface.
func (d *Display) Stop() {
	if !d.video.playing {
		return
	}
	d.video.playing = false
	d.logEvent("video stopped")
}

// SetPlaybackRate implements replay.VideoSurface.
func (d *Display) SetPlaybackRate(rate float64) {
	d.video.rate = rate
}

// Seek implements replay.VideoSurface.
func (d *Display) Seek(seconds float64) {
	if seconds < 0 {
		seconds = 0
	}
	d.video.pos = seconds
}

// CreateStimulus implements replay.StimulusSurface.
func (d *Display) CreateStimulus(replay.StimulusKind) replay.Handle {
	d.next++
	d.stimuli[d.next] = &stimulus{scale: 1}
	return d.next
}

// SetPositionDegrees implements replay.StimulusSurface.
func (d *Display) SetPositionDegrees(h replay.Handle, x, y float64) {
	if s, ok := d.stimuli[h]; ok {
		s.x, s.y = x, y
	}
}

// SetContrast implements replay.StimulusSurface.
func (d *Display) SetContrast(h replay.Handle, v float64) {
	if s, ok := d.stimuli[h]; ok {
		s.contrast = v
	}
}

// SetScale implements replay.StimulusSurface.
func (d *Display) SetScale(h replay.Handle, v float64) {
	if s, ok := d.stimuli[h]; ok {
		s.scale = v
	}
}

// DestroyAfterDelay implements replay.StimulusSurface. Unknown handles are
// ignored; a zero delay removes the stimulus now.
func (d *Display) DestroyAfterDelay(h replay.Handle, seconds float64) {
	s, ok := d.stimuli[h]
	if !ok {
		return
	}
	if seconds <= 0 {
		delete(d.stimuli, h)
		return
	}
	s.pending = true
	s.expireAt = d.now + seconds
}

// PlayGoTone implements replay.AudioSurface.
func (d *Display) PlayGoTone() {
	d.toneFlash = flashFrames
	d.logEvent("go cue")
}

// PlayWhiteNoise implements replay.AudioSurface.
func (d *Display) PlayWhiteNoise() {
	d.noiseFlash = flashFrames
	d.logEvent("error: white noise")
}

// PlaySpikeClick implements replay.AudioSurface.
func (d *Display) PlaySpikeClick() {
	d.clickFlash = flashFrames / 2
}

// Drop implements replay.RewardSurface.
func (d *Display) Drop() {
	d.drops++
	d.dropFlash = flashFrames
	d.logEvent("reward drop")
}

// Lick implements replay.RewardSurface.
func (d *Display) Lick() {
	d.licks++
	d.lickFlash = flashFrames
}

// AddNeurons implements replay.NeuronSurface.
func (d *Display) AddNeurons(positions []replay.Vec3, initial []replay.Color) []replay.NeuronHandle {
	out := make([]replay.NeuronHandle, len(positions))
	for i, pos := range positions {
		n := neuron{pos: pos, slot: -1}
		if i < len(initial) {
			n.color = initial[i]
			n.slot = slotForColor(initial[i])
		}
		out[i] = replay.NeuronHandle(len(d.neurons))
		d.neurons = append(d.neurons, n)
	}
	return out
}

// SetSpikeState implements replay.NeuronSurface.
func (d *Display) SetSpikeState(h replay.NeuronHandle, state float64) {
	i := int(h)
	if i < 0 || i >= len(d.neurons) {
		return
	}
	d.neurons[i].state = state
}

// SetWheelRotation implements replay.WheelSurface.
func (d *Display) SetWheelRotation(deg float64) {
	d.wheelDeg = deg
}

// ShowProbe implements replay.ProbeSurface.
func (d *Display) ShowProbe(slot int, v replay.ProbeVisual) {
	d.probes[slot] = v
	d.logEvent("probe%02d inserted, depth %.2f", slot, v.Depth)
}

// HideProbes implements replay.ProbeSurface.
func (d *Display) HideProbes() {
	if len(d.probes) == 0 {
		return
	}
	d.probes = map[int]replay.ProbeVisual{}
}

func slotForColor(c replay.Color) int {
	for i, pc := range replay.ProbeColors {
		if pc == c {
			return i
		}
	}
	return -1
}

func (d *Display) clipLabel(angle model.Angle) string {
	clip, ok := d.video.clips[angle]
	if !ok {
		return "-"
	}
	return filepath.Base(clip.Path)
}
