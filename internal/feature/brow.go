// Package feature computes landmark-only facial signals: brow posture and
// mouth aperture.
package feature

import (
	"image"
	"math"

	"github.com/ayusman/mukha/internal/landmarks"
)

// Brow distance thresholds in pixels.
const (
	RaisedDistance   = 35
	FurrowedDistance = 28
)

// Posture classifies a brow by its distance from the eyelid.
type Posture int

const (
	Furrowed Posture = iota
	Neutral
	Raised
)

func (p Posture) String() string {
	switch p {
	case Furrowed:
		return "furrowed"
	case Neutral:
		return "neutral"
	case Raised:
		return "raised"
	default:
		return "unknown"
	}
}

// ClassifyBrow maps a brow distance onto a posture. Every distance has
// exactly one posture.
func ClassifyBrow(distance float64) Posture {
	switch {
	case distance > RaisedDistance:
		return Raised
	case distance > FurrowedDistance:
		return Neutral
	default:
		return Furrowed
	}
}

// Brow is the analysis of one eyebrow in one frame.
type Brow struct {
	Side landmarks.Side

	points    []image.Point
	position  image.Point
	reference image.Point
	distance  float64
	located   bool
}

// AnalyzeBrow measures the brow on side against its reference landmark.
// A nil set yields a brow with nothing located.
func AnalyzeBrow(lm *landmarks.Set, layout landmarks.Layout, side landmarks.Side) *Brow {
	b := &Brow{Side: side}
	if lm == nil || !side.Valid() {
		return b
	}

	indices, ref := layout.Brow(side)
	b.points = lm.Select(indices)
	b.position = b.points[len(b.points)/2]
	b.reference = lm.At(ref)
	b.distance = math.Abs(float64(b.position.Y - b.reference.Y))
	b.located = true
	return b
}

// Located reports whether the brow was measured.
func (b *Brow) Located() bool {
	return b.located
}

// Position returns the middle brow point.
func (b *Brow) Position() (image.Point, bool) {
	return b.position, b.located
}

// Reference returns the landmark the brow is measured against.
func (b *Brow) Reference() (image.Point, bool) {
	return b.reference, b.located
}

// Distance returns the vertical distance between the brow and its reference.
// It is never negative.
func (b *Brow) Distance() (float64, bool) {
	return b.distance, b.located
}

// Points returns the five brow landmarks, inner to outer as laid out.
func (b *Brow) Points() []image.Point {
	return b.points
}

// Posture returns the brow classification.
func (b *Brow) Posture() (Posture, bool) {
	if !b.located {
		return 0, false
	}
	return ClassifyBrow(b.distance), true
}

func (b *Brow) is(p Posture) bool {
	got, ok := b.Posture()
	return ok && got == p
}

// IsRaised reports a located, raised brow.
func (b *Brow) IsRaised() bool { return b.is(Raised) }

// IsNeutral reports a located, neutral brow.
func (b *Brow) IsNeutral() bool { return b.is(Neutral) }

// IsFurrowed reports a located, furrowed brow.
func (b *Brow) IsFurrowed() bool { return b.is(Furrowed) }
