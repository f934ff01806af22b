// Package classify turns per-frame scalar metrics (EAR, MAR, head pitch)
// into categorical signal states using thresholds plus sustained-duration
// timers. Classifiers are stateful per session and are not safe for
// concurrent use; the detection stage owns them.
package classify

// Risk is the weight a signal state contributes to alert fusion.
type Risk int

const (
	RiskNone Risk = iota
	RiskMedium
	RiskHigh
)

// EyeState categorises the eye closure signal.
type EyeState int

const (
	EyeOpen EyeState = iota
	EyeBlinking
	EyeClosing
	EyeDrowsy
)

func (s EyeState) String() string {
	switch s {
	case EyeOpen:
		return "OPEN"
	case EyeBlinking:
		return "BLINKING"
	case EyeClosing:
		return "CLOSING"
	case EyeDrowsy:
		return "DROWSY"
	default:
		return "UNKNOWN"
	}
}

// Risk returns the fusion weight of the state. Only sustained closure is
// high-risk; a blink is normal behaviour.
func (s EyeState) Risk() Risk {
	switch s {
	case EyeDrowsy:
		return RiskHigh
	case EyeClosing:
		return RiskMedium
	default:
		return RiskNone
	}
}

// MouthState categorises the mouth opening signal. SlightlyOpen sits between
// speaking and yawning on the scale; the current rule set folds that band
// into MouthSpeaking and the constant exists for presentation layers that
// distinguish it.
type MouthState int

const (
	MouthClosed MouthState = iota
	MouthSpeaking
	MouthSlightlyOpen
	MouthWideOpen
	MouthYawning
)

func (s MouthState) String() string {
	switch s {
	case MouthClosed:
		return "CLOSED"
	case MouthSpeaking:
		return "SPEAKING"
	case MouthSlightlyOpen:
		return "SLIGHTLY_OPEN"
	case MouthWideOpen:
		return "WIDE_OPEN"
	case MouthYawning:
		return "YAWNING"
	default:
		return "UNKNOWN"
	}
}

// Risk returns the fusion weight of the state. A confirmed yawn is
// high-risk, a wide-open mouth that has not yet lasted long enough is
// medium-risk, speaking is normal behaviour.
func (s MouthState) Risk() Risk {
	switch s {
	case MouthYawning:
		return RiskHigh
	case MouthWideOpen:
		return RiskMedium
	default:
		return RiskNone
	}
}

// HeadState categorises the head tilt signal. HeadDown is the directional
// variant of Tilted kept for presentation layers; the rule set reports
// Tilted for any sustained pitch excursion regardless of sign.
type HeadState int

const (
	HeadNormal HeadState = iota
	HeadSlightlyTilted
	HeadTilted
	HeadDown
	HeadDownDrowsy
)

func (s HeadState) String() string {
	switch s {
	case HeadNormal:
		return "NORMAL"
	case HeadSlightlyTilted:
		return "SLIGHTLY_TILTED"
	case HeadTilted:
		return "TILTED"
	case HeadDown:
		return "HEAD_DOWN"
	case HeadDownDrowsy:
		return "HEAD_DOWN_DROWSY"
	default:
		return "UNKNOWN"
	}
}

// Risk returns the fusion weight of the state.
func (s HeadState) Risk() Risk {
	switch s {
	case HeadDownDrowsy:
		return RiskHigh
	case HeadTilted, HeadDown:
		return RiskMedium
	default:
		return RiskNone
	}
}

// Factor returns the human-readable contributing-factor text for a
// high-risk state, and ok=false for everything else.
func (s EyeState) Factor() (string, bool) {
	if s == EyeDrowsy {
		return "Eyes closed for extended period", true
	}
	return "", false
}

func (s MouthState) Factor() (string, bool) {
	if s == MouthYawning {
		return "Yawning detected", true
	}
	return "", false
}

func (s HeadState) Factor() (string, bool) {
	if s == HeadDownDrowsy {
		return "Head down for extended period", true
	}
	return "", false
}
