// Package fusion combines the three per-signal states into one graded alert
// with escalation, confidence scoring and a driver-facing recommendation.
package fusion

// AlertLevel is the fused severity for one frame. Levels are ordered;
// comparisons with < and > are meaningful.
type AlertLevel int

const (
	AlertNone AlertLevel = iota
	AlertLow
	AlertMedium
	AlertHigh
	AlertCritical
)

func (l AlertLevel) String() string {
	switch l {
	case AlertNone:
		return "NONE"
	case AlertLow:
		return "LOW"
	case AlertMedium:
		return "MEDIUM"
	case AlertHigh:
		return "HIGH"
	case AlertCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// FatigueState is the driver-facing description of an alert level.
type FatigueState int

const (
	Awake FatigueState = iota
	SlightlyTired
	ModeratelyTired
	SeverelyTired
	DangerouslyDrowsy
)

func (s FatigueState) String() string {
	switch s {
	case Awake:
		return "AWAKE"
	case SlightlyTired:
		return "SLIGHTLY_TIRED"
	case ModeratelyTired:
		return "MODERATELY_TIRED"
	case SeverelyTired:
		return "SEVERELY_TIRED"
	case DangerouslyDrowsy:
		return "DANGEROUSLY_DROWSY"
	default:
		return "UNKNOWN"
	}
}

// fatigueFor maps an alert level to its fatigue state, one to one.
func fatigueFor(level AlertLevel) FatigueState {
	switch level {
	case AlertLow:
		return SlightlyTired
	case AlertMedium:
		return ModeratelyTired
	case AlertHigh:
		return SeverelyTired
	case AlertCritical:
		return DangerouslyDrowsy
	default:
		return Awake
	}
}

// recommendationFor maps an alert level to its driver-facing advice.
func recommendationFor(level AlertLevel) string {
	switch level {
	case AlertLow:
		return "Slight fatigue detected - Stay alert"
	case AlertMedium:
		return "Moderate fatigue - Take a break soon"
	case AlertHigh:
		return "High fatigue detected - Consider taking a break"
	case AlertCritical:
		return "STOP DRIVING IMMEDIATELY - Find safe place to rest"
	default:
		return "Continue driving safely"
	}
}

// confidenceBase is the alert-level component of the confidence score.
func confidenceBase(level AlertLevel) float64 {
	switch level {
	case AlertLow:
		return 0.3
	case AlertMedium:
		return 0.6
	case AlertHigh:
		return 0.8
	case AlertCritical:
		return 1.0
	default:
		return 0.0
	}
}
