// Package geometry provides the facial landmark data model and the pure
// per-frame signal extractors (eye and mouth aspect ratios) used by the
// fatigue detection pipeline. Everything in this package is stateless;
// stateful debouncing lives in internal/classify.
package geometry

import (
	"math"
	"time"
)

// Region identifies a labeled group of facial landmarks.
type Region string

const (
	// RegionLeftEye is the six-point left eye contour.
	RegionLeftEye Region = "left_eye"
	// RegionRightEye is the six-point right eye contour.
	RegionRightEye Region = "right_eye"
	// RegionMouth is the six-point mouth contour.
	RegionMouth Region = "mouth"
	// RegionNose holds at least the nose tip.
	RegionNose Region = "nose"
	// RegionFaceOutline holds jaw/face boundary points (at least four).
	RegionFaceOutline Region = "face_outline"
)

// Expected landmark counts per region. Eyes and mouth are fixed six-point
// contours; nose and face outline are minimums.
const (
	EyePointCount    = 6
	MouthPointCount  = 6
	MinNosePoints    = 1
	MinOutlinePoints = 4
)

// Point is a single landmark in image coordinates. Z carries the provider's
// relative depth estimate and is ignored by the aspect-ratio extractors.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// LabeledPoint is one landmark as emitted by the external landmark provider:
// a point tagged with its region and its ordinal within that region.
type LabeledPoint struct {
	Region Region  `json:"region"`
	Index  int     `json:"index"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Z      float64 `json:"z"`
}

// Regions groups the extracted landmark regions of one face. A nil slice
// means the provider did not report that region for this frame; callers
// treat the corresponding signal as unavailable rather than erroring.
type Regions struct {
	LeftEye     []Point `json:"left_eye,omitempty"`
	RightEye    []Point `json:"right_eye,omitempty"`
	Mouth       []Point `json:"mouth,omitempty"`
	Nose        []Point `json:"nose,omitempty"`
	FaceOutline []Point `json:"face_outline,omitempty"`
}

// LandmarkFrame is one frame's worth of labeled landmarks together with the
// frame geometry the pose solver needs for its camera intrinsics. Frames are
// immutable once built; the detection stage owns a frame for exactly one
// processing cycle.
type LandmarkFrame struct {
	Timestamp   time.Time `json:"timestamp"`
	FrameWidth  int       `json:"frame_width"`
	FrameHeight int       `json:"frame_height"`
	Regions     Regions   `json:"regions"`
}

// HasEyes reports whether both eye contours are complete.
func (r Regions) HasEyes() bool {
	return len(r.LeftEye) == EyePointCount && len(r.RightEye) == EyePointCount
}

// HasMouth reports whether the mouth contour is complete.
func (r Regions) HasMouth() bool {
	return len(r.Mouth) == MouthPointCount
}

// HasPosePoints reports whether the regions carry enough points for the
// head pose correspondence set (nose tip, chin estimate, eye corners,
// mouth corners).
func (r Regions) HasPosePoints() bool {
	return len(r.Nose) >= MinNosePoints &&
		len(r.FaceOutline) >= MinOutlinePoints &&
		r.HasEyes() && r.HasMouth()
}

// Empty reports whether no region was detected at all (no face in frame).
func (r Regions) Empty() bool {
	return len(r.LeftEye) == 0 && len(r.RightEye) == 0 && len(r.Mouth) == 0 &&
		len(r.Nose) == 0 && len(r.FaceOutline) == 0
}

// ExtractRegions groups a provider's labeled point list into Regions,
// ordering each region by landmark index. Regions with fewer points than
// their expected count are dropped entirely so downstream code never sees a
// partial contour.
func ExtractRegions(points []LabeledPoint) Regions {
	buckets := map[Region][]LabeledPoint{}
	for _, p := range points {
		buckets[p.Region] = append(buckets[p.Region], p)
	}

	take := func(region Region, minCount int) []Point {
		group := buckets[region]
		if len(group) < minCount {
			return nil
		}
		// Indices from the provider may arrive out of order.
		ordered := make([]Point, len(group))
		for i, lp := range sortByIndex(group) {
			ordered[i] = Point{X: lp.X, Y: lp.Y, Z: lp.Z}
		}
		return ordered
	}

	return Regions{
		LeftEye:     takeExact(take(RegionLeftEye, EyePointCount), EyePointCount),
		RightEye:    takeExact(take(RegionRightEye, EyePointCount), EyePointCount),
		Mouth:       takeExact(take(RegionMouth, MouthPointCount), MouthPointCount),
		Nose:        take(RegionNose, MinNosePoints),
		FaceOutline: take(RegionFaceOutline, MinOutlinePoints),
	}
}

// takeExact trims a fixed-size contour to its expected length, keeping the
// lowest-indexed points when the provider over-reports.
func takeExact(pts []Point, count int) []Point {
	if pts == nil {
		return nil
	}
	if len(pts) > count {
		return pts[:count]
	}
	return pts
}

// sortByIndex returns the group ordered by landmark index (insertion sort;
// groups are at most a handful of points).
func sortByIndex(group []LabeledPoint) []LabeledPoint {
	out := make([]LabeledPoint, len(group))
	copy(out, group)
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].Index < out[j-1].Index; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

// Dist returns the planar Euclidean distance between two landmarks. Depth is
// deliberately excluded: aspect ratios are defined on the image plane.
func Dist(a, b Point) float64 {
	dx := a.X - b.X
	dy := a.Y - b.Y
	return math.Sqrt(dx*dx + dy*dy)
}

// ChinPoint estimates the chin as the lowest point of the face outline
// (largest Y in image coordinates). Returns false if the outline is too
// short to trust.
func ChinPoint(outline []Point) (Point, bool) {
	if len(outline) < MinOutlinePoints {
		return Point{}, false
	}
	chin := outline[0]
	for _, p := range outline[1:] {
		if p.Y > chin.Y {
			chin = p
		}
	}
	return chin, true
}
