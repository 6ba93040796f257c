package replay

import "math"

const (
	// StimulusAzimuth is the starting distance of each stimulus from centre.
	StimulusAzimuth = 20.0
	// StimulusBound is the outer edge of the stimulus travel range.
	StimulusBound = 40.0
	// StimulusScale is applied to every created stimulus.
	StimulusScale = 5.0
	// StimulusLinger is how long stimuli stay after feedback, in seconds.
	StimulusLinger = 1.0
)

const (
	// WheelDegPerRad converts wheel radians to stimulus degrees at 4 degrees
	// per mm of wheel travel.
	WheelDegPerRad = 196.0 / 2 / math.Pi * 4

	radToDeg = 180 / math.Pi
)

type pendingRemoval struct {
	handle   Handle
	removeAt float64
}

// stimulusState tracks the live left/right stimuli and their positions.
type stimulusState struct {
	left, right *Handle
	posDeg      [2]float64
	frozen      bool
	pending     []pendingRemoval
}

func (s *stimulusState) reset() {
	s.left, s.right = nil, nil
	s.posDeg = [2]float64{-StimulusAzimuth, StimulusAzimuth}
	s.frozen = true
	s.pending = nil
}

// shift moves un-frozen stimuli by delta degrees and freezes them once they
// leave their travel range.
func (s *stimulusState) shift(surface StimulusSurface, delta float64) {
	s.posDeg[0] += delta
	s.posDeg[1] += delta
	if s.left != nil && !s.frozen {
		surface.SetPositionDegrees(*s.left, s.posDeg[0], 0)
		if s.posDeg[0] > 0 || s.posDeg[0] < -StimulusBound {
			s.frozen = true
		}
	}
	if s.right != nil && !s.frozen {
		surface.SetPositionDegrees(*s.right, s.posDeg[1], 0)
		if s.posDeg[1] < 0 || s.posDeg[1] > StimulusBound {
			s.frozen = true
		}
	}
}

// show replaces any live stimuli with one per side whose contrast is > 0.
// NaN contrast shows nothing.
func (s *stimulusState) show(surface StimulusSurface, contrastLeft, contrastRight float64) int {
	s.destroyLive(surface)
	s.posDeg = [2]float64{-StimulusAzimuth, StimulusAzimuth}
	s.frozen = false
	created := 0
	if contrastLeft > 0 {
		h := newStimulus(surface, s.posDeg[0], contrastLeft)
		s.left = &h
		created++
	}
	if contrastRight > 0 {
		h := newStimulus(surface, s.posDeg[1], contrastRight)
		s.right = &h
		created++
	}
	return created
}

// retire freezes the stimuli and schedules their removal.
func (s *stimulusState) retire(surface StimulusSurface, now float64) {
	s.frozen = true
	for _, h := range []*Handle{s.left, s.right} {
		if h == nil {
			continue
		}
		surface.DestroyAfterDelay(*h, StimulusLinger)
		s.pending = append(s.pending, pendingRemoval{handle: *h, removeAt: now + StimulusLinger})
	}
	s.left, s.right = nil, nil
}

// expire forgets scheduled removals that the surface has carried out.
func (s *stimulusState) expire(now float64) {
	kept := s.pending[:0]
	for _, p := range s.pending {
		if p.removeAt > now {
			kept = append(kept, p)
		}
	}
	s.pending = kept
}

func (s *stimulusState) destroyLive(surface StimulusSurface) {
	for _, h := range []*Handle{s.left, s.right} {
		if h != nil {
			surface.DestroyAfterDelay(*h, 0)
		}
	}
	s.left, s.right = nil, nil
}

// clear removes everything now, including stimuli already scheduled for
// removal.
func (s *stimulusState) clear(surface StimulusSurface) {
	s.destroyLive(surface)
	for _, p := range s.pending {
		surface.DestroyAfterDelay(p.handle, 0)
	}
	s.reset()
}

// live reports how many stimuli are on screen or waiting for removal.
func (s *stimulusState) live() int {
	n := len(s.pending)
	if s.left != nil {
		n++
	}
	if s.right != nil {
		n++
	}
	return n
}

func newStimulus(surface StimulusSurface, x, contrast float64) Handle {
	h := surface.CreateStimulus(KindGabor)
	surface.SetScale(h, StimulusScale)
	surface.SetPositionDegrees(h, x, 0)
	surface.SetContrast(h, contrast)
	return h
}
