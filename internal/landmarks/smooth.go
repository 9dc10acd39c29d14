package landmarks

import "image"

// DefaultHoldFrames is how many consecutive missing frames the smoother will
// cover with the last known landmarks.
const DefaultHoldFrames = 3

// Smoother reduces landmark jitter by averaging each set with the previous
// one. It is a caller-side stage: analyzers never see anything but the set it
// returns. A Smoother is not safe for concurrent use.
type Smoother struct {
	holdFrames int
	prev       *Set
	missed     int
}

// NewSmoother creates a Smoother that holds the last set for up to holdFrames
// missing frames. Negative values are treated as zero.
func NewSmoother(holdFrames int) *Smoother {
	if holdFrames < 0 {
		holdFrames = 0
	}
	return &Smoother{holdFrames: holdFrames}
}

// Apply returns the smoothed landmarks for the current frame. A nil input
// returns the previous set while the hold budget lasts, then nil.
func (s *Smoother) Apply(current *Set) *Set {
	if current == nil {
		if s.prev == nil || s.missed >= s.holdFrames {
			s.prev = nil
			return nil
		}
		s.missed++
		held := *s.prev
		return &held
	}

	s.missed = 0
	if s.prev == nil {
		cp := *current
		s.prev = &cp
		out := *current
		return &out
	}

	out := &Set{}
	for i := range current.Points {
		a, b := current.Points[i], s.prev.Points[i]
		out.Points[i] = image.Pt((a.X+b.X)/2, (a.Y+b.Y)/2)
	}
	cp := *out
	s.prev = &cp
	return out
}

// Reset forgets the previous set.
func (s *Smoother) Reset() {
	s.prev = nil
	s.missed = 0
}
