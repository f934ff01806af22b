package headpose

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/vigilia-data/fatigue.report/internal/geometry"
)

// rotationZYX builds R = Rz(roll)·Ry(yaw)·Rx(pitch), the composition the
// Euler extraction inverts. Angles in degrees.
func rotationZYX(pitch, yaw, roll float64) *mat.Dense {
	toRad := math.Pi / 180.0
	cx, sx := math.Cos(pitch*toRad), math.Sin(pitch*toRad)
	cy, sy := math.Cos(yaw*toRad), math.Sin(yaw*toRad)
	cz, sz := math.Cos(roll*toRad), math.Sin(roll*toRad)

	rx := mat.NewDense(3, 3, []float64{1, 0, 0, 0, cx, -sx, 0, sx, cx})
	ry := mat.NewDense(3, 3, []float64{cy, 0, sy, 0, 1, 0, -sy, 0, cy})
	rz := mat.NewDense(3, 3, []float64{cz, -sz, 0, sz, cz, 0, 0, 0, 1})

	var zy, zyx mat.Dense
	zy.Mul(rz, ry)
	zyx.Mul(&zy, rx)
	return &zyx
}

// project synthesizes the observed image points for a given rigid transform.
func project(r *mat.Dense, t [3]float64, cam Camera) [ModelPointCount]Point2 {
	var out [ModelPointCount]Point2
	for i, m := range ReferenceModel() {
		x := r.At(0, 0)*m.X + r.At(0, 1)*m.Y + r.At(0, 2)*m.Z + t[0]
		y := r.At(1, 0)*m.X + r.At(1, 1)*m.Y + r.At(1, 2)*m.Z + t[1]
		z := r.At(2, 0)*m.X + r.At(2, 1)*m.Y + r.At(2, 2)*m.Z + t[2]
		out[i] = Point2{cam.Focal*x/z + cam.CX, cam.Focal*y/z + cam.CY}
	}
	return out
}

func TestEulerAngles(t *testing.T) {
	t.Parallel()

	t.Run("identity is zero pitch yaw roll", func(t *testing.T) {
		t.Parallel()
		identity := mat.NewDense(3, 3, []float64{1, 0, 0, 0, 1, 0, 0, 0, 1})
		pitch, yaw, roll := EulerAngles(identity)
		assert.InDelta(t, 0.0, pitch, 1e-9)
		assert.InDelta(t, 0.0, yaw, 1e-9)
		assert.InDelta(t, 0.0, roll, 1e-9)
	})

	t.Run("roundtrip recovers generating angles", func(t *testing.T) {
		t.Parallel()
		cases := [][3]float64{
			{12, 0, 0},
			{0, -18, 0},
			{0, 0, 25},
			{15, -10, 5},
			{-20, 8, -12},
		}
		for _, c := range cases {
			pitch, yaw, roll := EulerAngles(rotationZYX(c[0], c[1], c[2]))
			assert.InDelta(t, c[0], pitch, 1e-6)
			assert.InDelta(t, c[1], yaw, 1e-6)
			assert.InDelta(t, c[2], roll, 1e-6)
		}
	})

	t.Run("gimbal lock uses alternate formula with zero roll", func(t *testing.T) {
		t.Parallel()
		pitch, yaw, roll := EulerAngles(rotationZYX(30, 90, 0))
		assert.InDelta(t, 90.0, yaw, 1e-6)
		assert.Zero(t, roll)
		// Pitch and roll are indistinguishable at the singularity; only the
		// combined angle is recoverable, folded into pitch by convention.
		assert.False(t, math.IsNaN(pitch))
	})
}

func TestSolve(t *testing.T) {
	t.Parallel()

	cam := NewCamera(640, 480)

	t.Run("recovers frontal pose", func(t *testing.T) {
		t.Parallel()
		r := rotationZYX(0, 0, 0)
		image := project(r, [3]float64{0, 0, 900}, cam)

		pose, err := Solve(image, cam)
		require.NoError(t, err)
		assert.InDelta(t, 0.0, pose.Pitch, 0.5)
		assert.InDelta(t, 0.0, pose.Yaw, 0.5)
		assert.InDelta(t, 0.0, pose.Roll, 0.5)
		assert.Less(t, pose.RMSE, 0.1)
		assert.Equal(t, QualityExcellent, pose.Quality())
	})

	t.Run("recovers tilted poses", func(t *testing.T) {
		t.Parallel()
		cases := [][3]float64{
			{18, 0, 0},  // nodding down
			{-15, 0, 0}, // looking up
			{0, 20, 0},  // turned
			{10, -8, 6}, // combined
		}
		for _, c := range cases {
			r := rotationZYX(c[0], c[1], c[2])
			image := project(r, [3]float64{25, -10, 950}, cam)

			pose, err := Solve(image, cam)
			require.NoError(t, err)
			assert.InDelta(t, c[0], pose.Pitch, 1.0, "pitch for %v", c)
			assert.InDelta(t, c[1], pose.Yaw, 1.0, "yaw for %v", c)
			assert.InDelta(t, c[2], pose.Roll, 1.0, "roll for %v", c)
		}
	})

	t.Run("collinear points are rejected", func(t *testing.T) {
		t.Parallel()
		var image [ModelPointCount]Point2
		for i := range image {
			image[i] = Point2{float64(i * 10), float64(i * 10)}
		}
		_, err := Solve(image, cam)
		assert.ErrorIs(t, err, ErrDegenerateGeometry)
	})

	t.Run("invalid camera is rejected", func(t *testing.T) {
		t.Parallel()
		image := project(rotationZYX(0, 0, 0), [3]float64{0, 0, 900}, cam)
		_, err := Solve(image, Camera{})
		assert.ErrorIs(t, err, ErrDegenerateGeometry)
	})
}

func TestImagePoints(t *testing.T) {
	t.Parallel()

	eye := func(x float64) []geometry.Point {
		pts := make([]geometry.Point, geometry.EyePointCount)
		for i := range pts {
			pts[i] = geometry.Point{X: x + float64(i), Y: 220}
		}
		return pts
	}
	mouth := make([]geometry.Point, geometry.MouthPointCount)
	for i := range mouth {
		mouth[i] = geometry.Point{X: 300 + float64(i*8), Y: 280}
	}

	regions := geometry.Regions{
		LeftEye:     eye(280),
		RightEye:    eye(345),
		Mouth:       mouth,
		Nose:        []geometry.Point{{X: 320, Y: 240}},
		FaceOutline: []geometry.Point{{X: 300, Y: 400}, {X: 340, Y: 400}, {X: 320, Y: 420}, {X: 320, Y: 450}},
	}

	pts, ok := ImagePoints(regions)
	require.True(t, ok)
	assert.Equal(t, Point2{320, 240}, pts[0], "nose tip")
	assert.Equal(t, Point2{320, 450}, pts[1], "chin is lowest outline point")
	assert.Equal(t, Point2{280, 220}, pts[2], "left eye outer corner")

	t.Run("missing region disables pose", func(t *testing.T) {
		t.Parallel()
		partial := regions
		partial.Nose = nil
		_, ok := ImagePoints(partial)
		assert.False(t, ok)
	})
}
