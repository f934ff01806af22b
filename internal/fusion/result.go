package fusion

import (
	"encoding/json"
	"time"

	"github.com/vigilia-data/fatigue.report/internal/classify"
)

// PoseSample is the head orientation measured for one frame, degrees.
type PoseSample struct {
	Pitch float64 `json:"pitch"`
	Yaw   float64 `json:"yaw"`
	Roll  float64 `json:"roll"`
}

// Signals carries the per-frame scalar metrics handed to the engine. A
// false Has* flag marks that signal unavailable for the frame; the
// corresponding state is then the classifier's neutral value and the signal
// contributes no risk.
type Signals struct {
	EAR     float64
	HasEAR  bool
	MAR     float64
	HasMAR  bool
	Pose    PoseSample
	HasPose bool
}

// DetectionResult is the complete outcome of one fused frame. Created once
// per processed frame and read-only afterward.
type DetectionResult struct {
	Timestamp    time.Time   `json:"timestamp"`
	FaceDetected bool        `json:"face_detected"`
	EAR          float64     `json:"ear"`
	MAR          float64     `json:"mar"`
	Pose         *PoseSample `json:"pose,omitempty"`

	EyeState   classify.EyeState   `json:"-"`
	MouthState classify.MouthState `json:"-"`
	HeadState  classify.HeadState  `json:"-"`

	AlertLevel          AlertLevel   `json:"-"`
	FatigueState        FatigueState `json:"-"`
	Confidence          float64      `json:"confidence"`
	ContributingFactors []string     `json:"contributing_factors"`
	Recommendation      string       `json:"recommendation"`
}

// resultJSON mirrors DetectionResult with the enums rendered as their
// string names, which is what every export surface wants.
type resultJSON struct {
	Timestamp           time.Time   `json:"timestamp"`
	FaceDetected        bool        `json:"face_detected"`
	EAR                 float64     `json:"ear"`
	MAR                 float64     `json:"mar"`
	Pose                *PoseSample `json:"pose,omitempty"`
	EyeState            string      `json:"eye_state"`
	MouthState          string      `json:"mouth_state"`
	HeadState           string      `json:"head_state"`
	AlertLevel          string      `json:"alert_level"`
	FatigueState        string      `json:"fatigue_state"`
	Confidence          float64     `json:"confidence"`
	ContributingFactors []string    `json:"contributing_factors"`
	Recommendation      string      `json:"recommendation"`
}

// MarshalJSON renders the categorical fields by name.
func (r DetectionResult) MarshalJSON() ([]byte, error) {
	return json.Marshal(resultJSON{
		Timestamp:           r.Timestamp,
		FaceDetected:        r.FaceDetected,
		EAR:                 r.EAR,
		MAR:                 r.MAR,
		Pose:                r.Pose,
		EyeState:            r.EyeState.String(),
		MouthState:          r.MouthState.String(),
		HeadState:           r.HeadState.String(),
		AlertLevel:          r.AlertLevel.String(),
		FatigueState:        r.FatigueState.String(),
		Confidence:          r.Confidence,
		ContributingFactors: r.ContributingFactors,
		Recommendation:      r.Recommendation,
	})
}
