package headpose

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Solver tuning. The Gauss-Newton iteration is damped (Levenberg style) so
// a locally singular normal matrix slows the step instead of diverging.
const (
	maxIterations   = 100
	stepTolerance   = 1e-9
	initialDamping  = 1e-3
	dampingGrowth   = 10.0
	dampingShrink   = 0.5
	maxAcceptRMSE   = 25.0 // pixels; beyond this the fit is meaningless
	jacobianStep    = 1e-6
	initialDistance = 1000.0 // millimetres from camera to face, starting guess
)

// Reported failure modes. Callers exclude the head signal for the frame on
// any of these; none of them is a pipeline error.
var (
	ErrDegenerateGeometry = errors.New("headpose: degenerate image points")
	ErrNoConvergence      = errors.New("headpose: solver did not converge")
)

// Quality grades a solved pose by its reprojection error, mirroring how the
// fit is judged for diagnostics. Poor poses are still returned; classifiers
// decide what to trust.
type Quality string

const (
	QualityExcellent Quality = "excellent"
	QualityGood      Quality = "good"
	QualityFair      Quality = "fair"
	QualityPoor      Quality = "poor"
)

// Reprojection RMSE grade thresholds, in pixels.
const (
	rmseExcellent = 1.0
	rmseGood      = 3.0
	rmseFair      = 8.0
)

// Pose is a solved head orientation. Angles are degrees; Translation is the
// model-origin position in camera coordinates (millimetres).
type Pose struct {
	Pitch       float64
	Yaw         float64
	Roll        float64
	Rotation    *mat.Dense
	Translation [3]float64
	RMSE        float64
	Iterations  int
}

// Quality grades the pose by reprojection RMSE.
func (p Pose) Quality() Quality {
	switch {
	case p.RMSE < rmseExcellent:
		return QualityExcellent
	case p.RMSE < rmseGood:
		return QualityGood
	case p.RMSE < rmseFair:
		return QualityFair
	default:
		return QualityPoor
	}
}

// Solve recovers the head pose from the six-point correspondence set under
// the given camera intrinsics. It minimises the reprojection residual over
// an axis-angle rotation and a translation using damped Gauss-Newton.
// Degenerate point sets and non-convergence are reported as errors so the
// caller can exclude the head signal for the frame.
func Solve(image [ModelPointCount]Point2, cam Camera) (Pose, error) {
	if cam.Focal <= 0 {
		return Pose{}, ErrDegenerateGeometry
	}
	if collinear(image[:]) {
		return Pose{}, ErrDegenerateGeometry
	}

	model := ReferenceModel()

	// Parameters: axis-angle rotation then translation. The model is
	// camera-aligned, so the identity rotation at a plausible distance is a
	// sound starting point for any near-frontal face.
	params := [6]float64{0, 0, 0, 0, 0, initialDistance}

	residual := func(p [6]float64) ([]float64, bool) {
		r := rotationFromAxisAngle(p[0], p[1], p[2])
		res := make([]float64, 2*ModelPointCount)
		for i, m := range model {
			x := r.At(0, 0)*m.X + r.At(0, 1)*m.Y + r.At(0, 2)*m.Z + p[3]
			y := r.At(1, 0)*m.X + r.At(1, 1)*m.Y + r.At(1, 2)*m.Z + p[4]
			z := r.At(2, 0)*m.X + r.At(2, 1)*m.Y + r.At(2, 2)*m.Z + p[5]
			if z <= 1e-6 {
				// Point behind the camera; this parameter vector is invalid.
				return nil, false
			}
			u := cam.Focal*x/z + cam.CX
			v := cam.Focal*y/z + cam.CY
			res[2*i] = u - image[i].X
			res[2*i+1] = v - image[i].Y
		}
		return res, true
	}

	res, ok := residual(params)
	if !ok {
		return Pose{}, ErrNoConvergence
	}
	cost := sumSquares(res)
	damping := initialDamping

	var iterations int
	for iterations = 0; iterations < maxIterations; iterations++ {
		jac := numericJacobian(residual, params)
		if jac == nil {
			return Pose{}, ErrNoConvergence
		}

		// Normal equations with Levenberg damping: (J'J + λI) δ = -J'r.
		var jtj mat.Dense
		jtj.Mul(jac.T(), jac)
		for i := 0; i < 6; i++ {
			jtj.Set(i, i, jtj.At(i, i)+damping)
		}
		rhs := mat.NewVecDense(6, nil)
		rhs.MulVec(jac.T(), mat.NewVecDense(len(res), negate(res)))

		var delta mat.VecDense
		if err := delta.SolveVec(&jtj, rhs); err != nil {
			damping *= dampingGrowth
			continue
		}

		var trial [6]float64
		for i := 0; i < 6; i++ {
			trial[i] = params[i] + delta.AtVec(i)
		}
		trialRes, ok := residual(trial)
		if !ok {
			damping *= dampingGrowth
			continue
		}
		trialCost := sumSquares(trialRes)

		if trialCost < cost {
			params = trial
			res = trialRes
			cost = trialCost
			damping *= dampingShrink
			if delta.Norm(2) < stepTolerance {
				break
			}
		} else {
			damping *= dampingGrowth
			if damping > 1e12 {
				break
			}
		}
	}

	rmse := math.Sqrt(cost / float64(2*ModelPointCount))
	if rmse > maxAcceptRMSE {
		return Pose{}, ErrNoConvergence
	}

	rotation := rotationFromAxisAngle(params[0], params[1], params[2])
	pitch, yaw, roll := EulerAngles(rotation)
	return Pose{
		Pitch:       pitch,
		Yaw:         yaw,
		Roll:        roll,
		Rotation:    rotation,
		Translation: [3]float64{params[3], params[4], params[5]},
		RMSE:        rmse,
		Iterations:  iterations,
	}, nil
}

// numericJacobian computes the residual Jacobian by forward differences.
// Returns nil if any perturbed parameter vector is invalid.
func numericJacobian(residual func([6]float64) ([]float64, bool), params [6]float64) *mat.Dense {
	base, ok := residual(params)
	if !ok {
		return nil
	}
	jac := mat.NewDense(len(base), 6, nil)
	for j := 0; j < 6; j++ {
		step := jacobianStep * math.Max(1.0, math.Abs(params[j]))
		perturbed := params
		perturbed[j] += step
		pres, ok := residual(perturbed)
		if !ok {
			return nil
		}
		for i := range base {
			jac.Set(i, j, (pres[i]-base[i])/step)
		}
	}
	return jac
}

// collinear reports whether the image points lie (almost) on a single line,
// which leaves the pose unconstrained. Judged by the smaller eigenvalue of
// the 2x2 point covariance.
func collinear(pts []Point2) bool {
	n := float64(len(pts))
	var mx, my float64
	for _, p := range pts {
		mx += p.X
		my += p.Y
	}
	mx /= n
	my /= n

	var sxx, syy, sxy float64
	for _, p := range pts {
		dx, dy := p.X-mx, p.Y-my
		sxx += dx * dx
		syy += dy * dy
		sxy += dx * dy
	}

	// Eigenvalues of [[sxx sxy][sxy syy]].
	trace := sxx + syy
	det := sxx*syy - sxy*sxy
	disc := math.Sqrt(math.Max(0, trace*trace/4-det))
	minEig := trace/2 - disc
	return minEig < 1e-3
}

func sumSquares(v []float64) float64 {
	var s float64
	for _, x := range v {
		s += x * x
	}
	return s
}

func negate(v []float64) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = -x
	}
	return out
}
