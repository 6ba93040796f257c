package replay

import "github.com/verte-zerg/iblreplay/internal/model"

// Handle identifies a stimulus created on a StimulusSurface.
type Handle int

// NeuronHandle identifies a neuron created on a NeuronSurface.
type NeuronHandle int

// StimulusKind names the stimulus shape to create.
type StimulusKind string

const KindGabor StimulusKind = "gabor"

// Vec3 is a position in display space.
type Vec3 [3]float64

// Color is an RGBA colour with components in [0, 1].
type Color struct {
	R, G, B, A float64
}

// ProbeVisual is the display pose of one probe tip.
type ProbeVisual struct {
	Position Vec3
	Depth    float64
	Theta    float64
	Phi      float64
}

// VideoSurface plays the three camera clips in step with task-time.
type VideoSurface interface {
	SetClip(angle model.Angle, clip model.VideoClip, startOffset float64)
	Play()
	Stop()
	SetPlaybackRate(rate float64)
	Seek(seconds float64)
}

// StimulusSurface draws visual stimuli.
type StimulusSurface interface {
	CreateStimulus(kind StimulusKind) Handle
	SetPositionDegrees(h Handle, x, y float64)
	SetContrast(h Handle, v float64)
	SetScale(h Handle, v float64)
	// DestroyAfterDelay removes h after seconds of task-time. Unknown
	// handles are ignored.
	DestroyAfterDelay(h Handle, seconds float64)
}

// AudioSurface plays task sounds.
type AudioSurface interface {
	PlayGoTone()
	PlayWhiteNoise()
	PlaySpikeClick()
}

// RewardSurface shows reward delivery and licks.
type RewardSurface interface {
	Drop()
	Lick()
}

// NeuronSurface draws neurons and their spiking state.
type NeuronSurface interface {
	AddNeurons(positions []Vec3, initial []Color) []NeuronHandle
	SetSpikeState(h NeuronHandle, state float64)
}

// WheelSurface shows the wheel rotation in degrees.
type WheelSurface interface {
	SetWheelRotation(deg float64)
}

// ProbeSurface shows probe tips.
type ProbeSurface interface {
	ShowProbe(slot int, v ProbeVisual)
	HideProbes()
}

// Surfaces bundles every collaborator the engine drives. Nil members are
// replaced with no-ops.
type Surfaces struct {
	Video    VideoSurface
	Stimulus StimulusSurface
	Audio    AudioSurface
	Reward   RewardSurface
	Neurons  NeuronSurface
	Wheel    WheelSurface
	Probes   ProbeSurface
}

func (s Surfaces) withDefaults() Surfaces {
	if s.Video == nil {
		s.Video = nopVideo{}
	}
	if s.Stimulus == nil {
		s.Stimulus = &nopStimulus{}
	}
	if s.Audio == nil {
		s.Audio = nopAudio{}
	}
	if s.Reward == nil {
		s.Reward = nopReward{}
	}
	if s.Neurons == nil {
		s.Neurons = &nopNeurons{}
	}
	if s.Wheel == nil {
		s.Wheel = nopWheel{}
	}
	if s.Probes == nil {
		s.Probes = nopProbes{}
	}
	return s
}

type nopVideo struct{}

func (nopVideo) SetClip(model.Angle, model.VideoClip, float64) {}
func (nopVideo) Play()                                         {}
func (nopVideo) Stop()                                         {}
func (nopVideo) SetPlaybackRate(float64)                       {}
func (nopVideo) Seek(float64)                                  {}

type nopStimulus struct{ next Handle }

func (n *nopStimulus) CreateStimulus(StimulusKind) Handle {
	n.next++
	return n.next
}
func (*nopStimulus) SetPositionDegrees(Handle, float64, float64) {}
func (*nopStimulus) SetContrast(Handle, float64)                 {}
func (*nopStimulus) SetScale(Handle, float64)                    {}
func (*nopStimulus) DestroyAfterDelay(Handle, float64)           {}

type nopAudio struct{}

func (nopAudio) PlayGoTone()     {}
func (nopAudio) PlayWhiteNoise() {}
func (nopAudio) PlaySpikeClick() {}

type nopReward struct{}

func (nopReward) Drop() {}
func (nopReward) Lick() {}

type nopNeurons struct{ next NeuronHandle }

func (n *nopNeurons) AddNeurons(positions []Vec3, _ []Color) []NeuronHandle {
	out := make([]NeuronHandle, len(positions))
	for i := range out {
		out[i] = n.next
		n.next++
	}
	return out
}
func (*nopNeurons) SetSpikeState(NeuronHandle, float64) {}

type nopWheel struct{}

func (nopWheel) SetWheelRotation(float64) {}

type nopProbes struct{}

func (nopProbes) ShowProbe(int, ProbeVisual) {}
func (nopProbes) HideProbes()                {}
