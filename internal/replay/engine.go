// Package replay drives a loaded session against task-time, firing every
// recorded event onto the display surfaces exactly once.
package replay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/verte-zerg/iblreplay/internal/clock"
	"github.com/verte-zerg/iblreplay/internal/cursor"
	"github.com/verte-zerg/iblreplay/internal/logging"
	"github.com/verte-zerg/iblreplay/internal/model"
	"github.com/verte-zerg/iblreplay/internal/quantile"
	"github.com/verte-zerg/iblreplay/internal/random"
)

var (
	// ErrNoSession is returned when playback is requested before Activate.
	ErrNoSession = errors.New("no active session")
	// ErrNotActive is returned for operations that need a started run.
	ErrNotActive = errors.New("replay is not running or paused")
)

const (
	// DefaultVideoOffset is the task-time at which the camera clips start.
	DefaultVideoOffset = 8.6326566
	// DefaultRateCeiling is the firing rate (Hz) shown at full intensity in
	// the rate display modes.
	DefaultRateCeiling = 50.0
	// SpikeClickDivisor scales the per-tick spike count into the click
	// probability.
	SpikeClickDivisor = 100.0
)

// ProbeColors are the initial neuron colours per probe slot.
var ProbeColors = []Color{
	{R: 0.42, G: 0.93, B: 1, A: 0.4},
	{R: 1, G: 0.78, B: 0.32, A: 0.4},
}

// Rand supplies uniform draws in [0, 1).
type Rand interface {
	Float64() float64
}

// Options configures an Engine.
type Options struct {
	VideoOffset float64
	Rate        float64
	MinRate     float64
	MaxRate     float64
	Mode        DisplayMode
	RateCeiling float64
	Rand        Rand
	Logger      *slog.Logger
}

// TickReport summarizes what one tick fired.
type TickReport struct {
	TaskTime     float64
	Spikes       int
	WheelSamples int
	GoCues       int
	Feedbacks    int
	Rewards      int
	Licks        int
	Stimuli      int
	Click        bool
	VideoStarted bool
}

// Counts converts the report into event counts.
func (r TickReport) Counts() model.EventCounts {
	return model.EventCounts{
		Spikes:       r.Spikes,
		WheelSamples: r.WheelSamples,
		GoCues:       r.GoCues,
		Feedbacks:    r.Feedbacks,
		Rewards:      r.Rewards,
		Licks:        r.Licks,
	}
}

// Stats is a snapshot of the current run.
type Stats struct {
	EID      string
	State    clock.State
	TaskTime float64
	Rate     float64
	Duration float64
	Counts   model.EventCounts
}

// WheelState is the wheel position after the last tick.
type WheelState struct {
	// Index is the last drained sample, -1 before the first one.
	Index    int
	Fraction float64
	Degrees  float64
}

type channelCursor struct {
	times []float64
	cur   *cursor.Cursor
	index quantile.Index
}

func newChannelCursor(times []float64) *channelCursor {
	return &channelCursor{times: times, cur: cursor.New(times)}
}

func (c *channelCursor) build() {
	c.index = quantile.Build(c.times)
	c.cur.Reset()
}

func (c *channelCursor) seek(t float64) {
	c.cur.SeekTo(t, c.index)
}

type probeState struct {
	probe    model.Probe
	spikes   *channelCursor
	clusters []float64
	neurons  []NeuronHandle
	counts   []int
	dirty    bool
	surface  NeuronSurface
}

func (p *probeState) handle(neuron int) (NeuronHandle, bool) {
	if neuron < 0 || neuron >= len(p.neurons) {
		return 0, false
	}
	return p.neurons[neuron], true
}

// Engine replays one session at a time. It is driven from a single host
// loop and is not safe for concurrent use.
type Engine struct {
	surfaces Surfaces
	opts     Options
	clock    *clock.Clock
	rand     Rand
	sink     spikeSink
	logger   *slog.Logger

	session      *model.Session
	needsSetup   bool
	neuronsAdded bool
	videoStarted bool
	rateStart    float64

	probes   []*probeState
	wheel    *channelCursor
	wheelPos []float64
	goCue    *channelCursor
	feedback *channelCursor
	lick     *channelCursor

	contrastLeft  []float64
	contrastRight []float64
	feedbackType  []float64

	stim      stimulusState
	wheelLast int
	wheelView WheelState
	counts    model.EventCounts
}

// New builds an engine bound to surfaces.
func New(surfaces Surfaces, opts Options) (*Engine, error) {
	if opts.VideoOffset == 0 {
		opts.VideoOffset = DefaultVideoOffset
	}
	if opts.RateCeiling <= 0 {
		opts.RateCeiling = DefaultRateCeiling
	}
	if opts.MinRate == 0 {
		opts.MinRate = clock.DefaultMinRate
	}
	if opts.MaxRate == 0 {
		opts.MaxRate = clock.DefaultMaxRate
	}
	if opts.Rate == 0 {
		opts.Rate = clock.DefaultRate
	}
	if opts.Rand == nil {
		opts.Rand = random.NewRandom()
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}

	e := &Engine{
		surfaces:  surfaces.withDefaults(),
		opts:      opts,
		clock:     clock.New(),
		rand:      opts.Rand,
		sink:      newSpikeSink(opts.Mode),
		logger:    opts.Logger,
		wheelLast: -1,
	}
	if err := e.clock.SetRateBounds(opts.MinRate, opts.MaxRate); err != nil {
		return nil, err
	}
	if err := e.clock.SetRate(opts.Rate); err != nil {
		return nil, err
	}
	e.clock.OnRateChange(func(rate float64) {
		e.surfaces.Video.SetPlaybackRate(rate)
		e.logger.Debug("playback rate changed", "rate", rate)
	})
	e.stim.reset()
	e.wheelView.Index = -1
	return e, nil
}

// Activate makes session the active session. A playing session is stopped
// first. The next tick after Play performs setup.
func (e *Engine) Activate(session *model.Session) error {
	if session == nil {
		return ErrNoSession
	}
	if e.session != nil {
		e.Stop()
	}
	e.session = session
	e.needsSetup = true
	e.neuronsAdded = false

	e.probes = e.probes[:0]
	for _, p := range session.Probes {
		e.probes = append(e.probes, &probeState{
			probe:    p,
			spikes:   newChannelCursor(session.Channel(model.ProbeChannel(model.SpikeTimes, p.Index)).Values),
			clusters: session.Channel(model.ProbeChannel(model.SpikeClusters, p.Index)).Values,
			counts:   make([]int, len(p.Clusters)),
			surface:  e.surfaces.Neurons,
		})
	}
	e.wheel = newChannelCursor(session.Channel(model.WheelTimes).Values)
	e.wheelPos = session.Channel(model.WheelPosition).Values
	e.goCue = newChannelCursor(session.Channel(model.GoCueTimes).Values)
	e.feedback = newChannelCursor(session.Channel(model.FeedbackTimes).Values)
	e.lick = newChannelCursor(session.Channel(model.LickTimes).Values)
	e.contrastLeft = session.Channel(model.ContrastLeft).Values
	e.contrastRight = session.Channel(model.ContrastRight).Values
	e.feedbackType = session.Channel(model.FeedbackType).Values

	for _, angle := range model.Angles {
		if clip, ok := session.Videos[angle]; ok {
			e.surfaces.Video.SetClip(angle, clip, clip.StartOffset)
		}
	}
	e.surfaces.Video.SetPlaybackRate(e.clock.Rate())
	e.logger.Info("session activated", "eid", session.EID, "probes", len(e.probes))
	return nil
}

// Session returns the active session, or nil.
func (e *Engine) Session() *model.Session {
	return e.session
}

// Play starts a stopped run or resumes a paused one.
func (e *Engine) Play() error {
	if e.session == nil {
		return ErrNoSession
	}
	resuming := e.clock.State() == clock.Paused
	if err := e.clock.Play(); err != nil {
		return err
	}
	if resuming && e.videoStarted {
		e.surfaces.Video.Seek(e.clock.Time() - e.opts.VideoOffset)
		e.surfaces.Video.Play()
	}
	return nil
}

// Pause halts task-time, keeping cursors and stimuli in place.
func (e *Engine) Pause() error {
	if e.session == nil {
		return ErrNoSession
	}
	if err := e.clock.Pause(); err != nil {
		return err
	}
	if e.videoStarted {
		e.surfaces.Video.Stop()
	}
	return nil
}

// Stop ends the run, removes all stimuli and probe visuals immediately, and
// resets task-time to zero. It is safe in every state.
func (e *Engine) Stop() {
	if e.clock.State() == clock.Stopped && e.needsSetup {
		return
	}
	e.clock.Stop()
	e.stim.clear(e.surfaces.Stimulus)
	if e.videoStarted {
		e.surfaces.Video.Stop()
	}
	e.videoStarted = false
	e.surfaces.Probes.HideProbes()
	e.resetCursors()
	e.needsSetup = true
}

// SpeedUp doubles the playback rate.
func (e *Engine) SpeedUp() float64 { return e.clock.SpeedUp() }

// SlowDown halves the playback rate.
func (e *Engine) SlowDown() float64 { return e.clock.SlowDown() }

// TaskTime returns the current task-time in seconds.
func (e *Engine) TaskTime() float64 { return e.clock.Time() }

// Rate returns the playback rate.
func (e *Engine) Rate() float64 { return e.clock.Rate() }

// State returns the clock state.
func (e *Engine) State() clock.State { return e.clock.State() }

// Mode returns the display mode chosen at construction.
func (e *Engine) Mode() DisplayMode { return e.opts.Mode }

// Wheel returns the wheel position after the last tick.
func (e *Engine) Wheel() WheelState { return e.wheelView }

// StimulusPositions returns the left/right stimulus azimuths in degrees and
// whether they are frozen.
func (e *Engine) StimulusPositions() (left, right float64, frozen bool) {
	return e.stim.posDeg[0], e.stim.posDeg[1], e.stim.frozen
}

// Stats returns a snapshot of the current run.
func (e *Engine) Stats() Stats {
	s := Stats{
		State:    e.clock.State(),
		TaskTime: e.clock.Time(),
		Rate:     e.clock.Rate(),
		Counts:   e.counts,
	}
	if e.session != nil {
		s.EID = e.session.EID
		s.Duration = e.session.Duration()
	}
	return s
}

// Seek jumps task-time to t. Cursors are seeded from their quantile
// indexes, stimuli are cleared, and events at or before t count as already
// played without firing.
func (e *Engine) Seek(t float64) error {
	if e.session == nil {
		return ErrNoSession
	}
	if e.clock.State() == clock.Stopped {
		return fmt.Errorf("%w: seek while %s", ErrNotActive, e.clock.State())
	}
	if e.needsSetup {
		e.setup()
	}
	if t < 0 {
		t = 0
	}
	if d := e.session.Duration(); t > d {
		t = d
	}

	e.stim.clear(e.surfaces.Stimulus)
	for _, p := range e.probes {
		p.spikes.seek(t)
		for i := range p.counts {
			p.counts[i] = 0
		}
		p.dirty = true
	}
	for _, c := range []*channelCursor{e.wheel, e.goCue, e.feedback, e.lick} {
		c.seek(t)
	}
	e.wheelLast = e.wheel.cur.Index() - 1
	e.clock.SetTime(t)
	e.rateStart = t
	e.updateWheel(t)

	wasStarted := e.videoStarted
	e.videoStarted = t >= e.opts.VideoOffset
	switch {
	case e.videoStarted:
		e.surfaces.Video.Seek(t - e.opts.VideoOffset)
		if e.clock.State() == clock.Running && !wasStarted {
			e.surfaces.Video.Play()
		}
	case wasStarted:
		e.surfaces.Video.Stop()
	}
	e.logger.Debug("seek", "eid", e.session.EID, "t", t)
	return nil
}

// Tick advances task-time by dt seconds of wall time and fires every event
// crossed. It is a no-op unless the engine is running.
func (e *Engine) Tick(dt float64) (TickReport, error) {
	if e.session == nil {
		return TickReport{}, ErrNoSession
	}
	if e.clock.State() != clock.Running {
		return TickReport{TaskTime: e.clock.Time()}, nil
	}
	if e.needsSetup {
		e.setup()
	}

	now := e.clock.Advance(dt)
	report := TickReport{TaskTime: now}

	if !e.videoStarted && now >= e.opts.VideoOffset {
		e.surfaces.Video.Play()
		e.videoStarted = true
		report.VideoStarted = true
		e.logger.Info("video started", "eid", e.session.EID, "t", now)
	}

	for _, p := range e.probes {
		report.Spikes += p.spikes.cur.Drain(now, func(i int) {
			e.sink.spike(p, clusterAt(p.clusters, i))
		})
	}
	e.sink.flush(e, now)
	if report.Spikes > 0 && e.rand.Float64() < float64(report.Spikes)/SpikeClickDivisor {
		e.surfaces.Audio.PlaySpikeClick()
		report.Click = true
	}

	report.WheelSamples = e.wheel.cur.Drain(now, e.wheelSample)
	e.updateWheel(now)

	report.GoCues = e.goCue.cur.Drain(now, func(i int) {
		e.surfaces.Audio.PlayGoTone()
		e.stim.show(e.surfaces.Stimulus, valueAt(e.contrastLeft, i), valueAt(e.contrastRight, i))
	})

	report.Feedbacks = e.feedback.cur.Drain(now, func(i int) {
		if valueAt(e.feedbackType, i) == 1 {
			e.surfaces.Reward.Drop()
			report.Rewards++
		} else {
			e.surfaces.Audio.PlayWhiteNoise()
		}
		e.stim.retire(e.surfaces.Stimulus, now)
	})

	report.Licks = e.lick.cur.Drain(now, func(int) {
		e.surfaces.Reward.Lick()
	})

	e.stim.expire(now)
	report.Stimuli = e.stim.live()
	e.counts.Add(report.Counts())
	e.logger.Log(context.Background(), logging.LevelTrace, "tick",
		"t", now, "dt", dt, "spikes", report.Spikes, "wheel", report.WheelSamples)
	return report, nil
}

// setup runs on the first tick of a run: indexes are built, cursors and
// stimuli reset, probes shown and neurons registered once per activation.
func (e *Engine) setup() {
	for _, p := range e.probes {
		p.spikes.build()
		for i := range p.counts {
			p.counts[i] = 0
		}
	}
	for _, c := range []*channelCursor{e.wheel, e.goCue, e.feedback, e.lick} {
		c.build()
	}
	e.resetCursors()
	e.stim.reset()
	e.clock.SetTime(0)
	e.counts = model.EventCounts{}
	e.videoStarted = false
	e.rateStart = 0

	for _, p := range e.probes {
		e.surfaces.Probes.ShowProbe(p.probe.Slot, ProbeVisualFor(p.probe.Trajectory))
	}
	if !e.neuronsAdded {
		e.addNeurons()
		e.neuronsAdded = true
	}
	e.needsSetup = false
	e.logger.Debug("replay setup", "eid", e.session.EID, "duration", e.session.Duration())
}

func (e *Engine) resetCursors() {
	for _, p := range e.probes {
		p.spikes.cur.Reset()
	}
	for _, c := range []*channelCursor{e.wheel, e.goCue, e.feedback, e.lick} {
		if c != nil {
			c.cur.Reset()
		}
	}
	e.wheelLast = -1
	e.wheelView = WheelState{Index: -1}
}

func (e *Engine) addNeurons() {
	var (
		positions []Vec3
		colors    []Color
	)
	for _, p := range e.probes {
		color := ProbeColors[p.probe.Slot%len(ProbeColors)]
		for _, c := range p.probe.Clusters {
			positions = append(positions, NeuronPosition(c))
			colors = append(colors, color)
		}
	}
	if len(positions) == 0 {
		return
	}
	handles := e.surfaces.Neurons.AddNeurons(positions, colors)
	offset := 0
	for _, p := range e.probes {
		n := len(p.probe.Clusters)
		end := offset + n
		if end > len(handles) {
			end = len(handles)
		}
		if offset < end {
			p.neurons = handles[offset:end]
		} else {
			p.neurons = nil
		}
		offset += n
	}
}

// wheelSample applies one drained wheel sample to the stimulus positions.
func (e *Engine) wheelSample(i int) {
	if i >= 1 {
		cur, prev := valueAt(e.wheelPos, i), valueAt(e.wheelPos, i-1)
		if !math.IsNaN(cur) && !math.IsNaN(prev) {
			e.stim.shift(e.surfaces.Stimulus, (cur-prev)*-WheelDegPerRad)
		}
	}
	e.wheelLast = i
}

// updateWheel interpolates the wheel angle between the last drained sample
// and the next one.
func (e *Engine) updateWheel(now float64) {
	view := WheelState{Index: e.wheelLast}
	if e.wheelLast < 0 {
		e.wheelView = view
		e.surfaces.Wheel.SetWheelRotation(0)
		return
	}
	pos := valueAt(e.wheelPos, e.wheelLast)
	next := e.wheelLast + 1
	if next < len(e.wheel.times) {
		t0, t1 := e.wheel.times[e.wheelLast], e.wheel.times[next]
		if t1 > t0 {
			view.Fraction = clamp01((now - t0) / (t1 - t0))
		}
		if p1 := valueAt(e.wheelPos, next); !math.IsNaN(p1) && !math.IsNaN(pos) {
			pos += (p1 - pos) * view.Fraction
		}
	}
	if math.IsNaN(pos) {
		pos = 0
	}
	view.Degrees = -radToDeg * pos
	e.wheelView = view
	e.surfaces.Wheel.SetWheelRotation(view.Degrees)
}

// NeuronPosition maps a cluster's mlapdv coordinates (µm) to display space.
func NeuronPosition(c model.ClusterCoord) Vec3 {
	return Vec3{c.ML / model.NeuronPosScale, c.AP / model.NeuronPosScale, c.DV / model.NeuronPosScale}
}

// ProbeVisualFor maps a probe trajectory to its display pose.
func ProbeVisualFor(t model.Trajectory) ProbeVisual {
	s := model.NeuronPosScale
	return ProbeVisual{
		Position: Vec3{-t.ML / s, -t.DV / s, t.AP / s},
		Depth:    t.Depth / s,
		Theta:    t.Theta,
		Phi:      t.Phi,
	}
}

func valueAt(values []float64, i int) float64 {
	if i < 0 || i >= len(values) {
		return math.NaN()
	}
	return values[i]
}

func clusterAt(clusters []float64, i int) int {
	v := valueAt(clusters, i)
	if math.IsNaN(v) {
		return -1
	}
	return int(v)
}
