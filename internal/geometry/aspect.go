package geometry

// Eye aspect ratio point ordering within a six-point contour:
// p1 outer corner, p2/p3 upper lid, p4 inner corner, p5/p6 lower lid.
//
// EAR = (|p2-p6| + |p3-p5|) / (2 * |p1-p4|)
//
// Typical open-eye values sit around 0.25-0.30; a blink dips below 0.20.

// EAR weighting bounds: an eye whose ratio falls outside the plausible band
// is down-weighted when combining the two eyes, reducing the influence of a
// partially occluded or badly tracked contour.
const (
	plausibleEARMin  = 0.1
	plausibleEARMax  = 0.5
	outlierEyeWeight = 0.7
)

// EyeAspectRatio computes the EAR for a single six-point eye contour.
// Returns 0.0 for malformed contours or degenerate geometry (zero
// horizontal span) rather than dividing by zero.
func EyeAspectRatio(eye []Point) float64 {
	if len(eye) != EyePointCount {
		return 0.0
	}
	vertical1 := Dist(eye[1], eye[5])
	vertical2 := Dist(eye[2], eye[4])
	horizontal := Dist(eye[0], eye[3])
	if horizontal == 0 {
		return 0.0
	}
	return (vertical1 + vertical2) / (2.0 * horizontal)
}

// CombinedEyeAspectRatio combines both eyes into a single EAR. Eyes with
// implausible individual ratios are down-weighted; with two plausible eyes
// this degenerates to the plain mean. Returns 0.0 when either eye yields a
// non-positive ratio, which callers treat as "eye signal unavailable on a
// degenerate contour" rather than a closed eye.
func CombinedEyeAspectRatio(leftEye, rightEye []Point) float64 {
	left := EyeAspectRatio(leftEye)
	right := EyeAspectRatio(rightEye)
	if left <= 0 || right <= 0 {
		return 0.0
	}

	weightLeft := 1.0
	if left < plausibleEARMin || left > plausibleEARMax {
		weightLeft = outlierEyeWeight
	}
	weightRight := 1.0
	if right < plausibleEARMin || right > plausibleEARMax {
		weightRight = outlierEyeWeight
	}

	return (left*weightLeft + right*weightRight) / (weightLeft + weightRight)
}

// Mouth aspect ratio point ordering within a six-point contour:
// left corner, top-left lip, top-right lip, right corner, bottom-right lip,
// bottom-left lip.
//
// MAR = (|topLeft-bottomLeft| + |topRight-bottomRight|) / (2 * |left-right|)
//
// Closed or speaking mouths stay below ~0.4; a yawn exceeds ~0.6.

// MouthAspectRatio computes the MAR for a six-point mouth contour.
// Returns 0.0 for malformed contours or a zero-width mouth.
func MouthAspectRatio(mouth []Point) float64 {
	if len(mouth) != MouthPointCount {
		return 0.0
	}
	verticalLeft := Dist(mouth[1], mouth[5])
	verticalRight := Dist(mouth[2], mouth[4])
	horizontal := Dist(mouth[0], mouth[3])
	if horizontal == 0 {
		return 0.0
	}
	return (verticalLeft + verticalRight) / (2.0 * horizontal)
}
