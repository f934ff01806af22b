// Package headpose recovers head orientation (pitch/yaw/roll) from six 2-D
// facial landmarks by solving the perspective pose problem against a
// canonical 3-D face model under an approximate pinhole camera.
package headpose

import "github.com/vigilia-data/fatigue.report/internal/geometry"

// Point3 is a point of the canonical face model, in millimetres.
type Point3 struct {
	X, Y, Z float64
}

// Point2 is an observed landmark on the image plane, in pixels.
type Point2 struct {
	X, Y float64
}

// ModelPointCount is the size of the 2-D/3-D correspondence set.
const ModelPointCount = 6

// ReferenceModel returns the canonical six-point face model expressed in
// camera-aligned coordinates (X right, Y down, Z away from the camera).
// Order matches ImagePoints: nose tip, chin, left eye outer corner, right
// eye outer corner, left mouth corner, right mouth corner.
func ReferenceModel() [ModelPointCount]Point3 {
	return [ModelPointCount]Point3{
		{0, 0, 0},          // nose tip, model origin
		{0, 330, 65},       // chin
		{-225, -170, 135},  // left eye outer corner
		{225, -170, 135},   // right eye outer corner
		{-150, 150, 125},   // left mouth corner
		{150, 150, 125},    // right mouth corner
	}
}

// Camera holds approximate pinhole intrinsics: focal length equal to the
// frame width, principal point at the frame centre, zero lens distortion.
type Camera struct {
	Focal float64
	CX    float64
	CY    float64
}

// NewCamera builds intrinsics for a frame of the given pixel dimensions.
func NewCamera(frameWidth, frameHeight int) Camera {
	return Camera{
		Focal: float64(frameWidth),
		CX:    float64(frameWidth) / 2,
		CY:    float64(frameHeight) / 2,
	}
}

// ImagePoints assembles the six-point correspondence set from extracted
// landmark regions: nose tip, estimated chin (lowest face-outline point),
// outer eye corners and mouth corners. Returns false when any required
// region is missing, which callers treat as "head signal unavailable".
func ImagePoints(regions geometry.Regions) ([ModelPointCount]Point2, bool) {
	var pts [ModelPointCount]Point2
	if !regions.HasPosePoints() {
		return pts, false
	}
	chin, ok := geometry.ChinPoint(regions.FaceOutline)
	if !ok {
		return pts, false
	}

	nose := regions.Nose[0]
	pts[0] = Point2{nose.X, nose.Y}
	pts[1] = Point2{chin.X, chin.Y}
	pts[2] = Point2{regions.LeftEye[0].X, regions.LeftEye[0].Y}
	pts[3] = Point2{regions.RightEye[3].X, regions.RightEye[3].Y}
	pts[4] = Point2{regions.Mouth[0].X, regions.Mouth[0].Y}
	pts[5] = Point2{regions.Mouth[3].X, regions.Mouth[3].Y}
	return pts, true
}
