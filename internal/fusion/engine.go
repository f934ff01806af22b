package fusion

import (
	"time"

	"github.com/vigilia-data/fatigue.report/internal/classify"
)

// Engine applies the fusion rule and the critical-escalation timer. It is
// stateful across frames (the escalation timer) and, like the classifiers,
// owned by the detection stage; it is not safe for concurrent use.
type Engine struct {
	cfg classify.FusionConfig

	highSince     time.Time // zero unless the computed level has been HIGH continuously
	alertsRaised  int
	framesFused   int
	facesDetected int
}

// NewEngine builds an engine with the given tuning. The config is assumed
// validated.
func NewEngine(cfg classify.FusionConfig) *Engine {
	return &Engine{cfg: cfg}
}

// Fuse combines one frame's signal states into a DetectionResult.
//
// The computed level is HIGH when at least combination_threshold signals are
// high-risk, MEDIUM on one high-risk or two medium-risk signals, LOW on one
// medium-risk signal. A level of HIGH sustained for critical_duration is
// promoted to CRITICAL; any frame computing below HIGH clears the timer
// immediately, so escalation progress never survives a gap.
func (e *Engine) Fuse(sig Signals, eye classify.EyeState, mouth classify.MouthState, head classify.HeadState, now time.Time) DetectionResult {
	e.framesFused++
	if sig.HasEAR || sig.HasMAR || sig.HasPose {
		e.facesDetected++
	}

	var highRisk, mediumRisk int
	for _, r := range []classify.Risk{eye.Risk(), mouth.Risk(), head.Risk()} {
		switch r {
		case classify.RiskHigh:
			highRisk++
		case classify.RiskMedium:
			mediumRisk++
		}
	}

	var level AlertLevel
	switch {
	case highRisk >= e.cfg.CombinationThreshold:
		level = AlertHigh
	case highRisk >= 1 || mediumRisk >= 2:
		level = AlertMedium
	case mediumRisk >= 1:
		level = AlertLow
	default:
		level = AlertNone
	}

	if level == AlertHigh {
		if e.highSince.IsZero() {
			e.highSince = now
		}
		if now.Sub(e.highSince) >= time.Duration(e.cfg.CriticalDuration*float64(time.Second)) {
			level = AlertCritical
		}
	} else {
		e.highSince = time.Time{}
	}

	if level >= AlertHigh {
		e.alertsRaised++
	}

	confidence := confidenceBase(level) + 0.1*float64(highRisk)
	if confidence > 1.0 {
		confidence = 1.0
	}

	factors := []string{}
	if f, ok := eye.Factor(); ok {
		factors = append(factors, f)
	}
	if f, ok := mouth.Factor(); ok {
		factors = append(factors, f)
	}
	if f, ok := head.Factor(); ok {
		factors = append(factors, f)
	}

	result := DetectionResult{
		Timestamp:           now,
		FaceDetected:        sig.HasEAR || sig.HasMAR || sig.HasPose,
		EAR:                 sig.EAR,
		MAR:                 sig.MAR,
		EyeState:            eye,
		MouthState:          mouth,
		HeadState:           head,
		AlertLevel:          level,
		FatigueState:        fatigueFor(level),
		Confidence:          confidence,
		ContributingFactors: factors,
		Recommendation:      recommendationFor(level),
	}
	if sig.HasPose {
		pose := sig.Pose
		result.Pose = &pose
	}
	return result
}

// NoFace produces the neutral result for a frame with no usable landmarks.
// It still advances the engine so the escalation timer clears.
func (e *Engine) NoFace(now time.Time) DetectionResult {
	return e.Fuse(Signals{}, classify.EyeOpen, classify.MouthClosed, classify.HeadNormal, now)
}

// AlertsRaised returns how many HIGH or CRITICAL frames this session fused.
func (e *Engine) AlertsRaised() int { return e.alertsRaised }

// FramesFused returns the total frames fused this session.
func (e *Engine) FramesFused() int { return e.framesFused }

// FacesDetected returns how many fused frames carried at least one signal.
func (e *Engine) FacesDetected() int { return e.facesDetected }

// Reset clears all session state including the escalation timer.
func (e *Engine) Reset() {
	e.highSince = time.Time{}
	e.alertsRaised = 0
	e.framesFused = 0
	e.facesDetected = 0
}
