package landmarks

import (
	"image"
	"math"
)

// FrontalFace returns a synthetic landmark set for a face looking straight at
// a 640x480 camera. Eyes are open, brows neutral and the mouth is closed.
// Feature positions follow the generic pose model scaled by 0.3 around the
// nose tip at (320, 255).
func FrontalFace() *Set {
	s := &Set{}

	// Jaw line: half ellipse from ear to ear through the chin at (320, 354).
	for i := JawStart; i <= JawEnd; i++ {
		theta := float64(i) / float64(JawEnd) * math.Pi
		s.Points[i] = image.Pt(
			int(math.Round(320-110*math.Cos(theta))),
			int(math.Round(200+154*math.Sin(theta))),
		)
	}

	// Brows, middle point 32px above the top eyelid.
	copy(s.Points[17:22], []image.Point{{245, 172}, {257, 167}, {270, 165}, {283, 167}, {295, 171}})
	copy(s.Points[22:27], []image.Point{{345, 171}, {357, 167}, {370, 165}, {383, 167}, {395, 172}})

	// Nose bridge and base.
	copy(s.Points[27:36], []image.Point{
		{320, 200}, {320, 215}, {320, 230}, {320, 245},
		{303, 252}, {311, 255}, {320, 255}, {329, 255}, {337, 252},
	})

	// Eyes: 40px wide, 14px tall.
	copy(s.Points[36:42], []image.Point{{253, 204}, {265, 197}, {281, 197}, {293, 204}, {281, 211}, {265, 211}})
	copy(s.Points[42:48], []image.Point{{347, 204}, {359, 197}, {375, 197}, {387, 204}, {375, 211}, {359, 211}})

	// Outer lips.
	copy(s.Points[48:60], []image.Point{
		{275, 300}, {289, 291}, {304, 287}, {320, 289}, {336, 287}, {351, 291},
		{365, 300}, {351, 312}, {336, 317}, {320, 318}, {304, 317}, {289, 312},
	})

	// Inner lips, nearly touching.
	copy(s.Points[60:68], []image.Point{
		{282, 300}, {300, 298}, {320, 298}, {340, 298},
		{358, 300}, {340, 302}, {320, 302}, {300, 302},
	})

	return s
}

// WithMouthGap returns a copy of s with the inner lips pulled apart so that
// the mean lip gap is gap pixels.
func (s *Set) WithMouthGap(gap int) *Set {
	out := *s
	// Corners 60 and 64 sit on the centre line; the three middle points of each
	// lip carry the full opening, scaled so that the five-point means differ by gap.
	offset := int(math.Round(float64(gap) * 5 / 6))
	for _, i := range []int{61, 62, 63} {
		out.Points[i].Y = 300 - offset
	}
	for _, i := range []int{65, 66, 67} {
		out.Points[i].Y = 300 + offset
	}
	return &out
}

// Translate returns a copy of s shifted by d.
func (s *Set) Translate(d image.Point) *Set {
	out := &Set{}
	for i, p := range s.Points {
		out.Points[i] = p.Add(d)
	}
	return out
}
