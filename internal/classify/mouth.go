package classify

import "time"

// MouthClassifier debounces the mouth aspect ratio into a MouthState. A
// yawn is only counted once the MAR drops back below the yawn threshold
// after having stayed above it for the configured duration.
type MouthClassifier struct {
	cfg MouthConfig

	yawnSince time.Time // zero when MAR is below the yawn threshold
	yawns     int
	state     MouthState
	history   *metricHistory
}

// NewMouthClassifier builds a classifier with the given tuning. The config
// is assumed validated.
func NewMouthClassifier(cfg MouthConfig) *MouthClassifier {
	return &MouthClassifier{cfg: cfg, history: newMetricHistory()}
}

// Observe ingests one frame's MAR at the given time and returns the updated
// state.
func (c *MouthClassifier) Observe(mar float64, now time.Time) MouthState {
	c.history.push(mar)

	if mar >= c.cfg.YawnThreshold {
		if c.yawnSince.IsZero() {
			c.yawnSince = now
		}
	} else if !c.yawnSince.IsZero() {
		// Mouth closed again; count the yawn only if it was sustained.
		if now.Sub(c.yawnSince) >= seconds(c.cfg.YawnDuration) {
			c.yawns++
		}
		c.yawnSince = time.Time{}
	}

	switch {
	case !c.yawnSince.IsZero() && now.Sub(c.yawnSince) >= seconds(c.cfg.YawnDuration):
		c.state = MouthYawning
	case mar >= c.cfg.YawnThreshold:
		c.state = MouthWideOpen
	case mar >= c.cfg.SpeakingThreshold:
		c.state = MouthSpeaking
	default:
		c.state = MouthClosed
	}
	return c.state
}

// State returns the most recently computed state.
func (c *MouthClassifier) State() MouthState { return c.state }

// Yawns returns the number of completed yawns this session.
func (c *MouthClassifier) Yawns() int { return c.yawns }

// Stats summarises the recent MAR samples.
func (c *MouthClassifier) Stats() Stats { return c.history.stats() }

// Reset clears all session state.
func (c *MouthClassifier) Reset() {
	c.yawnSince = time.Time{}
	c.yawns = 0
	c.state = MouthClosed
	c.history.reset()
}
