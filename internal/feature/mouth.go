package feature

import (
	"image"
	"math"

	"github.com/golang/geo/r2"

	"github.com/ayusman/mukha/internal/landmarks"
)

// Mouth gap thresholds in pixels.
const (
	ClosedHeight     = 4
	HalfOpenHeight   = 12
	SaturationHeight = 20
)

// MouthState partitions the lip gap height.
type MouthState int

const (
	Closed MouthState = iota
	HalfOpen
	FullOpen
)

func (s MouthState) String() string {
	switch s {
	case Closed:
		return "closed"
	case HalfOpen:
		return "half-open"
	case FullOpen:
		return "full-open"
	default:
		return "unknown"
	}
}

// ClassifyMouth maps a gap height onto a state. Negative heights are
// treated by magnitude.
func ClassifyMouth(height float64) MouthState {
	height = math.Abs(height)
	switch {
	case height <= ClosedHeight:
		return Closed
	case height <= HalfOpenHeight:
		return HalfOpen
	default:
		return FullOpen
	}
}

// Mouth is the analysis of the inner lip gap in one frame.
type Mouth struct {
	upper, lower []image.Point
	upperMean    r2.Point
	lowerMean    r2.Point
	width        float64
	height       float64
	located      bool
}

// AnalyzeMouth measures the inner lip gap. A nil set yields a mouth with
// nothing located.
func AnalyzeMouth(lm *landmarks.Set, layout landmarks.Layout) *Mouth {
	m := &Mouth{}
	if lm == nil {
		return m
	}

	m.upper = lm.Select(layout.UpperInnerLip[:])
	m.lower = lm.Select(layout.LowerInnerLip[:])
	m.upperMean = mean(m.upper)
	m.lowerMean = mean(m.lower)
	m.height = math.Abs(m.upperMean.Y - m.lowerMean.Y)
	m.width = (span(m.upper) + span(m.lower)) / 2
	m.located = true
	return m
}

func mean(points []image.Point) r2.Point {
	var sum r2.Point
	for _, p := range points {
		sum = sum.Add(r2.Point{X: float64(p.X), Y: float64(p.Y)})
	}
	return sum.Mul(1 / float64(len(points)))
}

// span is the horizontal distance between the two lip corners.
func span(points []image.Point) float64 {
	return math.Abs(float64(points[len(points)-1].X - points[0].X))
}

// Located reports whether the mouth was measured.
func (m *Mouth) Located() bool {
	return m.located
}

// Height returns the lip gap height.
func (m *Mouth) Height() (float64, bool) {
	return m.height, m.located
}

// Width returns the mean horizontal span of the two inner lip lines.
func (m *Mouth) Width() (float64, bool) {
	return m.width, m.located
}

// Center returns the midpoint between the upper and lower lip means.
func (m *Mouth) Center() (r2.Point, bool) {
	if !m.located {
		return r2.Point{}, false
	}
	return landmarks.Midpoint(m.upperMean, m.lowerMean), true
}

// Rect returns the gap as a rectangle centred on the mouth centre.
func (m *Mouth) Rect() (image.Rectangle, bool) {
	c, ok := m.Center()
	if !ok {
		return image.Rectangle{}, false
	}
	return image.Rectangle{
		Min: landmarks.Round(r2.Point{X: c.X - m.width/2, Y: c.Y - m.height/2}),
		Max: landmarks.Round(r2.Point{X: c.X + m.width/2, Y: c.Y + m.height/2}),
	}, true
}

// Lips returns the upper and lower inner lip landmarks.
func (m *Mouth) Lips() (upper, lower []image.Point) {
	return m.upper, m.lower
}

// State returns the gap classification.
func (m *Mouth) State() (MouthState, bool) {
	if !m.located {
		return 0, false
	}
	return ClassifyMouth(m.height), true
}

// Openness returns the gap height normalized to [0, 1] against
// SaturationHeight.
func (m *Mouth) Openness() (float64, bool) {
	if !m.located {
		return 0, false
	}
	return math.Min(m.height/SaturationHeight, 1), true
}

func (m *Mouth) is(s MouthState) bool {
	got, ok := m.State()
	return ok && got == s
}

// IsClosed reports a located, closed mouth.
func (m *Mouth) IsClosed() bool { return m.is(Closed) }

// IsHalfOpen reports a located, half-open mouth.
func (m *Mouth) IsHalfOpen() bool { return m.is(HalfOpen) }

// IsFullOpen reports a located, fully open mouth.
func (m *Mouth) IsFullOpen() bool { return m.is(FullOpen) }
