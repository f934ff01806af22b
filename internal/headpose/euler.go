package headpose

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// gimbalEpsilon bounds the norm of the rotation matrix's lower-left 2x2
// sub-block below which the standard three-angle extraction degenerates.
const gimbalEpsilon = 1e-6

// EulerAngles decomposes a rotation matrix into pitch, yaw and roll in
// degrees using the X-Y-Z extraction. Near gimbal lock (cos(yaw) ~ 0) the
// alternate two-angle formula is used and roll is reported as zero.
func EulerAngles(r *mat.Dense) (pitch, yaw, roll float64) {
	sy := math.Hypot(r.At(0, 0), r.At(1, 0))

	var x, y, z float64
	if sy >= gimbalEpsilon {
		x = math.Atan2(r.At(2, 1), r.At(2, 2))
		y = math.Atan2(-r.At(2, 0), sy)
		z = math.Atan2(r.At(1, 0), r.At(0, 0))
	} else {
		// Singular: pitch and roll share an axis; fold everything into pitch.
		x = math.Atan2(-r.At(1, 2), r.At(1, 1))
		y = math.Atan2(-r.At(2, 0), sy)
		z = 0
	}

	const degPerRad = 180.0 / math.Pi
	return x * degPerRad, y * degPerRad, z * degPerRad
}

// rotationFromAxisAngle builds a rotation matrix from an axis-angle vector
// (Rodrigues' formula). A near-zero vector yields the identity.
func rotationFromAxisAngle(rx, ry, rz float64) *mat.Dense {
	theta := math.Sqrt(rx*rx + ry*ry + rz*rz)
	r := mat.NewDense(3, 3, []float64{
		1, 0, 0,
		0, 1, 0,
		0, 0, 1,
	})
	if theta < 1e-12 {
		return r
	}

	kx, ky, kz := rx/theta, ry/theta, rz/theta
	c := math.Cos(theta)
	s := math.Sin(theta)
	v := 1 - c

	r.Set(0, 0, c+kx*kx*v)
	r.Set(0, 1, kx*ky*v-kz*s)
	r.Set(0, 2, kx*kz*v+ky*s)
	r.Set(1, 0, ky*kx*v+kz*s)
	r.Set(1, 1, c+ky*ky*v)
	r.Set(1, 2, ky*kz*v-kx*s)
	r.Set(2, 0, kz*kx*v-ky*s)
	r.Set(2, 1, kz*ky*v+kx*s)
	r.Set(2, 2, c+kz*kz*v)
	return r
}
