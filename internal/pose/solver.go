package pose

import (
	"math"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
)

// DefaultMaxReprojectionError is the RMS reprojection error, in pixels, above
// which a fit is reported as undetected. The generic model never fits a real
// face exactly, so the bound is loose.
const DefaultMaxReprojectionError = 40.0

const (
	maxIterations = 200
	maxDamping    = 1e12
)

// Solution is a rigid transform from model space into camera space.
type Solution struct {
	Rotation    r3.Vector // axis-angle, angle in [0, pi]
	Translation r3.Vector
	RMSError    float64 // pixels
}

// RotationMatrix returns the rotation as a matrix.
func (s Solution) RotationMatrix() Mat3 {
	return Rodrigues(s.Rotation)
}

// Euler returns the head orientation in degrees.
func (s Solution) Euler() EulerAngles {
	return Euler(s.RotationMatrix())
}

// Transform maps a model-space point into camera space.
func (s Solution) Transform(p r3.Vector) r3.Vector {
	return s.RotationMatrix().MulVec(p).Add(s.Translation)
}

// Solver fits a fixed 3D model to observed 2D landmarks (perspective-n-point)
// by Levenberg-Marquardt minimisation of the reprojection error.
type Solver struct {
	camera   CameraSpecs
	model    Model
	maxError float64
}

// NewSolver creates a Solver for one camera and model.
func NewSolver(camera CameraSpecs, model Model) *Solver {
	return &Solver{
		camera:   camera,
		model:    model,
		maxError: DefaultMaxReprojectionError,
	}
}

// SetMaxReprojectionError sets the RMS error bound in pixels.
// Values less than or equal to 0 are ignored.
func (s *Solver) SetMaxReprojectionError(px float64) {
	if px <= 0 {
		return
	}
	s.maxError = px
}

// Camera returns the camera the solver projects through.
func (s *Solver) Camera() CameraSpecs {
	return s.camera
}

// Solve estimates the pose for the observed image points, given in the same
// order as the model. ok is false when no start converges to a pose in front
// of the camera within the error bound.
func (s *Solver) Solve(observed [6]r2.Point) (Solution, bool) {
	for _, p := range observed {
		if math.IsNaN(p.X) || math.IsNaN(p.Y) || math.IsInf(p.X, 0) || math.IsInf(p.Y, 0) {
			return Solution{}, false
		}
	}

	var (
		best     [6]float64
		bestCost = math.Inf(1)
	)
	for _, start := range s.initialGuesses(observed) {
		x, cost, ok := s.refine(start, observed)
		if ok && cost < bestCost {
			best, bestCost = x, cost
		}
	}
	if math.IsInf(bestCost, 1) || math.IsNaN(bestCost) {
		return Solution{}, false
	}

	sol := Solution{
		Rotation:    canonicalRotation(r3.Vector{X: best[0], Y: best[1], Z: best[2]}),
		Translation: r3.Vector{X: best[3], Y: best[4], Z: best[5]},
		RMSError:    math.Sqrt(bestCost / float64(len(observed))),
	}
	if sol.RMSError > s.maxError {
		return sol, false
	}
	return sol, true
}

// initialGuesses returns the starting points for refinement: the camera's
// extrinsic guess when it lies in front of the camera, plus frontal and
// identity rotations with a translation estimated from the point spread.
func (s *Solver) initialGuesses(observed [6]r2.Point) [][6]float64 {
	var (
		modelCentroid r3.Vector
		imageCentroid r2.Point
	)
	for i := range observed {
		modelCentroid = modelCentroid.Add(s.model[i])
		imageCentroid = imageCentroid.Add(observed[i])
	}
	n := float64(len(observed))
	modelCentroid = modelCentroid.Mul(1 / n)
	imageCentroid = imageCentroid.Mul(1 / n)

	var modelSpread, imageSpread float64
	for i := range observed {
		d := s.model[i].Sub(modelCentroid)
		modelSpread += d.X*d.X + d.Y*d.Y
		imageSpread += observed[i].Sub(imageCentroid).Norm() * observed[i].Sub(imageCentroid).Norm()
	}
	if imageSpread < 1e-9 || s.camera.Focal <= 0 {
		return nil
	}

	depth := s.camera.Focal * math.Sqrt(modelSpread/imageSpread)
	target := r3.Vector{
		X: (imageCentroid.X - s.camera.Center.X) * depth / s.camera.Focal,
		Y: (imageCentroid.Y - s.camera.Center.Y) * depth / s.camera.Focal,
		Z: depth,
	}

	var guesses [][6]float64
	if s.camera.InitialTranslation.Z > 0 {
		guesses = append(guesses, pack(s.camera.InitialRotation, s.camera.InitialTranslation))
	}
	for _, rot := range []r3.Vector{
		s.camera.InitialRotation,
		{X: math.Pi},
		{},
	} {
		t := target.Sub(Rodrigues(rot).MulVec(modelCentroid))
		guesses = append(guesses, pack(rot, t))
	}
	return guesses
}

func pack(rot, trans r3.Vector) [6]float64 {
	return [6]float64{rot.X, rot.Y, rot.Z, trans.X, trans.Y, trans.Z}
}

// residuals returns the reprojection residuals (du, dv per point) for x.
// ok is false if any model point falls behind the camera.
func (s *Solver) residuals(x [6]float64, observed [6]r2.Point) ([12]float64, bool) {
	var r [12]float64
	R := Rodrigues(r3.Vector{X: x[0], Y: x[1], Z: x[2]})
	t := r3.Vector{X: x[3], Y: x[4], Z: x[5]}
	for i, m := range s.model {
		p, ok := s.camera.Project(R.MulVec(m).Add(t))
		if !ok {
			return r, false
		}
		r[2*i] = p.X - observed[i].X
		r[2*i+1] = p.Y - observed[i].Y
	}
	return r, true
}

func sumSquares(r [12]float64) float64 {
	var sum float64
	for _, v := range r {
		sum += v * v
	}
	return sum
}

// jacobian approximates d(residuals)/dx with central differences.
func (s *Solver) jacobian(x [6]float64, observed [6]r2.Point) ([12][6]float64, bool) {
	var J [12][6]float64
	for j := 0; j < 6; j++ {
		h := 1e-6 * math.Max(1, math.Abs(x[j]))
		plus, minus := x, x
		plus[j] += h
		minus[j] -= h
		rp, ok := s.residuals(plus, observed)
		if !ok {
			return J, false
		}
		rm, ok := s.residuals(minus, observed)
		if !ok {
			return J, false
		}
		for i := range rp {
			J[i][j] = (rp[i] - rm[i]) / (2 * h)
		}
	}
	return J, true
}

// refine runs Levenberg-Marquardt from x and returns the final parameters and
// squared error. ok is false when x itself is not a valid pose.
func (s *Solver) refine(x [6]float64, observed [6]r2.Point) ([6]float64, float64, bool) {
	r, ok := s.residuals(x, observed)
	if !ok {
		return x, 0, false
	}
	cost := sumSquares(r)
	lambda := 1e-3

	for iter := 0; iter < maxIterations && cost > 1e-20; iter++ {
		J, ok := s.jacobian(x, observed)
		if !ok {
			break
		}

		var (
			A [6][6]float64
			g [6]float64
		)
		for i := range r {
			for a := 0; a < 6; a++ {
				g[a] -= J[i][a] * r[i]
				for b := 0; b < 6; b++ {
					A[a][b] += J[i][a] * J[i][b]
				}
			}
		}

		improved, converged := false, false
		for lambda < maxDamping {
			M := A
			for a := 0; a < 6; a++ {
				M[a][a] += lambda * (A[a][a] + 1e-9)
			}
			delta, ok := solve6(M, g)
			if !ok {
				lambda *= 10
				continue
			}

			var next [6]float64
			var step float64
			for a := range x {
				next[a] = x[a] + delta[a]
				step += delta[a] * delta[a]
			}
			if rn, ok := s.residuals(next, observed); ok {
				if cn := sumSquares(rn); cn < cost {
					converged = math.Sqrt(step) < 1e-10 || (cost-cn)/cost < 1e-14
					x, r, cost = next, rn, cn
					lambda = math.Max(lambda/10, 1e-12)
					improved = true
					break
				}
			}
			lambda *= 10
		}
		if !improved || converged {
			break
		}
	}

	if math.IsNaN(cost) || math.IsInf(cost, 0) {
		return x, 0, false
	}
	return x, cost, true
}

// solve6 solves M x = b by Gaussian elimination with partial pivoting.
func solve6(M [6][6]float64, b [6]float64) ([6]float64, bool) {
	const n = 6
	for col := 0; col < n; col++ {
		pivot := col
		for row := col + 1; row < n; row++ {
			if math.Abs(M[row][col]) > math.Abs(M[pivot][col]) {
				pivot = row
			}
		}
		if math.Abs(M[pivot][col]) < 1e-15 {
			return b, false
		}
		M[col], M[pivot] = M[pivot], M[col]
		b[col], b[pivot] = b[pivot], b[col]

		for row := col + 1; row < n; row++ {
			f := M[row][col] / M[col][col]
			for k := col; k < n; k++ {
				M[row][k] -= f * M[col][k]
			}
			b[row] -= f * b[col]
		}
	}

	var x [6]float64
	for row := n - 1; row >= 0; row-- {
		sum := b[row]
		for k := row + 1; k < n; k++ {
			sum -= M[row][k] * x[k]
		}
		x[row] = sum / M[row][row]
	}
	return x, true
}
