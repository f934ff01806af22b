package classify

import "time"

// EyeClassifier debounces the eye aspect ratio into an EyeState. It tracks
// two independent conditions: a consecutive-frame counter below the blink
// threshold (blink detection) and a wall-clock timer below the drowsy
// threshold (sustained closure).
type EyeClassifier struct {
	cfg EyeConfig

	consecutiveFrames int
	closedSince       time.Time // zero when EAR is at or above the drowsy threshold
	blinks            int
	state             EyeState
	history           *metricHistory
}

// NewEyeClassifier builds a classifier with the given tuning. The config is
// assumed validated.
func NewEyeClassifier(cfg EyeConfig) *EyeClassifier {
	return &EyeClassifier{cfg: cfg, history: newMetricHistory()}
}

// Observe ingests one frame's EAR at the given time and returns the updated
// state. A three-sample moving average damps single-frame landmark jitter
// before thresholding.
func (c *EyeClassifier) Observe(ear float64, now time.Time) EyeState {
	c.history.push(ear)
	value := c.history.smoothed(ear)

	if value < c.cfg.BlinkThreshold {
		c.consecutiveFrames++
	} else {
		// Eyes reopened. A closure short enough to not be drowsiness but
		// long enough to clear the frame gate counts as a completed blink.
		if c.consecutiveFrames >= c.cfg.BlinkFrames {
			c.blinks++
		}
		c.consecutiveFrames = 0
	}

	if value < c.cfg.DrowsyThreshold {
		if c.closedSince.IsZero() {
			c.closedSince = now
		}
	} else {
		c.closedSince = time.Time{}
	}

	switch {
	case !c.closedSince.IsZero() && now.Sub(c.closedSince) >= seconds(c.cfg.DrowsyDuration):
		c.state = EyeDrowsy
	case value < c.cfg.DrowsyThreshold:
		c.state = EyeClosing
	case value < c.cfg.BlinkThreshold:
		c.state = EyeBlinking
	default:
		c.state = EyeOpen
	}
	return c.state
}

// State returns the most recently computed state.
func (c *EyeClassifier) State() EyeState { return c.state }

// Blinks returns the number of completed blinks this session.
func (c *EyeClassifier) Blinks() int { return c.blinks }

// Stats summarises the recent EAR samples.
func (c *EyeClassifier) Stats() Stats { return c.history.stats() }

// Reset clears all session state.
func (c *EyeClassifier) Reset() {
	c.consecutiveFrames = 0
	c.closedSince = time.Time{}
	c.blinks = 0
	c.state = EyeOpen
	c.history.reset()
}
