package fusion

import (
	"sync"
	"time"
)

// DefaultHistoryCapacity bounds the in-memory detection history.
const DefaultHistoryCapacity = 50

// History maintains a sliding window of detection results. The detection
// stage appends while export and query collaborators read concurrently, so
// all access goes through the mutex.
type History struct {
	mu       sync.Mutex
	results  []DetectionResult
	capacity int
	head     int // next write position
	size     int
}

// NewHistory creates a history buffer with the specified capacity.
func NewHistory(capacity int) *History {
	if capacity < 1 {
		capacity = DefaultHistoryCapacity
	}
	return &History{
		results:  make([]DetectionResult, capacity),
		capacity: capacity,
	}
}

// Add stores a result, overwriting the oldest when at capacity.
func (h *History) Add(result DetectionResult) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.results[h.head] = result
	h.head = (h.head + 1) % h.capacity
	if h.size < h.capacity {
		h.size++
	}
}

// Latest returns the most recently added result.
func (h *History) Latest() (DetectionResult, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.size == 0 {
		return DetectionResult{}, false
	}
	idx := (h.head - 1 + h.capacity) % h.capacity
	return h.results[idx], true
}

// Recent returns up to n results, oldest first.
func (h *History) Recent(n int) []DetectionResult {
	h.mu.Lock()
	defer h.mu.Unlock()
	if n > h.size {
		n = h.size
	}
	if n <= 0 {
		return nil
	}
	out := make([]DetectionResult, n)
	start := (h.head - n + h.capacity) % h.capacity
	for i := 0; i < n; i++ {
		out[i] = h.results[(start+i)%h.capacity]
	}
	return out
}

// Len returns the number of stored results.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.size
}

// Clear empties the buffer.
func (h *History) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.head = 0
	h.size = 0
}

// Summary aggregates the stored results within the given trailing window.
type Summary struct {
	Window            time.Duration  `json:"window"`
	Frames            int            `json:"frames"`
	FacesDetected     int            `json:"faces_detected"`
	AlertCounts       map[string]int `json:"alert_counts"`
	AverageConfidence float64        `json:"average_confidence"`
	HighRiskFrames    int            `json:"high_risk_frames"`
}

// Summarize reports alert distribution and mean confidence over results no
// older than window before now. A zero window covers the whole buffer.
func (h *History) Summarize(window time.Duration, now time.Time) Summary {
	h.mu.Lock()
	defer h.mu.Unlock()

	s := Summary{Window: window, AlertCounts: map[string]int{}}
	var confidenceSum float64
	for i := 0; i < h.size; i++ {
		idx := (h.head - 1 - i + h.capacity) % h.capacity
		r := h.results[idx]
		if window > 0 && now.Sub(r.Timestamp) > window {
			break // results are time-ordered; everything older is out too
		}
		s.Frames++
		if r.FaceDetected {
			s.FacesDetected++
		}
		s.AlertCounts[r.AlertLevel.String()]++
		confidenceSum += r.Confidence
		if r.AlertLevel >= AlertHigh {
			s.HighRiskFrames++
		}
	}
	if s.Frames > 0 {
		s.AverageConfidence = confidenceSum / float64(s.Frames)
	}
	return s
}
