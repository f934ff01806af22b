package classify

import (
	"math"
	"time"
)

// HeadClassifier debounces the head pitch angle into a HeadState. The sign
// of the pitch is ignored; a sustained excursion in either direction is
// treated as nodding.
type HeadClassifier struct {
	cfg HeadConfig

	tiltedSince time.Time // zero when |pitch| is within the drowsy threshold
	state       HeadState
	history     *metricHistory
}

// NewHeadClassifier builds a classifier with the given tuning. The config
// is assumed validated.
func NewHeadClassifier(cfg HeadConfig) *HeadClassifier {
	return &HeadClassifier{cfg: cfg, history: newMetricHistory()}
}

// Observe ingests one frame's pitch (degrees) at the given time and returns
// the updated state.
func (c *HeadClassifier) Observe(pitch float64, now time.Time) HeadState {
	c.history.push(pitch)
	abs := math.Abs(pitch)

	if abs > c.cfg.DrowsyThreshold {
		if c.tiltedSince.IsZero() {
			c.tiltedSince = now
		}
	} else {
		c.tiltedSince = time.Time{}
	}

	switch {
	case !c.tiltedSince.IsZero() && now.Sub(c.tiltedSince) >= seconds(c.cfg.DrowsyDuration):
		c.state = HeadDownDrowsy
	case abs > c.cfg.DrowsyThreshold:
		c.state = HeadTilted
	case abs > c.cfg.NormalThreshold:
		c.state = HeadSlightlyTilted
	default:
		c.state = HeadNormal
	}
	return c.state
}

// State returns the most recently computed state.
func (c *HeadClassifier) State() HeadState { return c.state }

// Stats summarises the recent pitch samples.
func (c *HeadClassifier) Stats() Stats { return c.history.stats() }

// Reset clears all session state.
func (c *HeadClassifier) Reset() {
	c.tiltedSince = time.Time{}
	c.state = HeadNormal
	c.history.reset()
}
