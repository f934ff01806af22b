package pipeline

import (
	"sync"
	"sync/atomic"
	"time"
)

// processingWindow is how many detection cycle times feed the average.
const processingWindow = 50

// Metrics tracks pipeline throughput with thread-safe operations. Counters
// are diagnostic; nothing in the pipeline makes control-flow decisions from
// them.
type Metrics struct {
	totalFrames     atomic.Int64
	droppedFrames   atomic.Int64
	droppedResults  atomic.Int64
	facesDetected   atomic.Int64
	alertsTriggered atomic.Int64

	capture    rateWindow
	processing rateWindow
	display    rateWindow

	mu          sync.Mutex
	cycleTimes  []time.Duration
	cycleNext   int
	cycleFilled bool
}

// NewMetrics creates a Metrics instance.
func NewMetrics() *Metrics {
	return &Metrics{cycleTimes: make([]time.Duration, processingWindow)}
}

// AddFrame counts one captured frame and advances the capture rate window.
func (m *Metrics) AddFrame() {
	m.totalFrames.Add(1)
	m.capture.tick()
}

// AddDroppedFrame counts a frame discarded under backpressure.
func (m *Metrics) AddDroppedFrame() { m.droppedFrames.Add(1) }

// AddDroppedResult counts a result discarded because presentation lagged.
func (m *Metrics) AddDroppedResult() { m.droppedResults.Add(1) }

// AddFace counts a processed frame that carried at least one signal.
func (m *Metrics) AddFace() { m.facesDetected.Add(1) }

// AddAlert counts a HIGH or CRITICAL frame.
func (m *Metrics) AddAlert() { m.alertsTriggered.Add(1) }

// AddCycle records one detection cycle's duration and advances the
// processing rate window.
func (m *Metrics) AddCycle(d time.Duration) {
	m.processing.tick()
	m.mu.Lock()
	m.cycleTimes[m.cycleNext] = d
	m.cycleNext = (m.cycleNext + 1) % processingWindow
	if m.cycleNext == 0 {
		m.cycleFilled = true
	}
	m.mu.Unlock()
}

// AddDisplay advances the display rate window.
func (m *Metrics) AddDisplay() { m.display.tick() }

// avgCycle returns the mean of the retained cycle times.
func (m *Metrics) avgCycle() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := m.cycleNext
	if m.cycleFilled {
		n = processingWindow
	}
	if n == 0 {
		return 0
	}
	var sum time.Duration
	for i := 0; i < n; i++ {
		sum += m.cycleTimes[i]
	}
	return sum / time.Duration(n)
}

// Snapshot is a point-in-time copy of the metrics for presentation and the
// monitoring API.
type Snapshot struct {
	CaptureFPS        float64       `json:"capture_fps"`
	ProcessingFPS     float64       `json:"processing_fps"`
	DisplayFPS        float64       `json:"display_fps"`
	AvgProcessingTime time.Duration `json:"avg_processing_time_ns"`
	TotalFrames       int64         `json:"total_frames"`
	DroppedFrames     int64         `json:"dropped_frames"`
	DroppedResults    int64         `json:"dropped_results"`
	FacesDetected     int64         `json:"faces_detected"`
	AlertsTriggered   int64         `json:"alerts_triggered"`
}

// Snapshot captures the current metric values.
func (m *Metrics) Snapshot() Snapshot {
	return Snapshot{
		CaptureFPS:        m.capture.rate(),
		ProcessingFPS:     m.processing.rate(),
		DisplayFPS:        m.display.rate(),
		AvgProcessingTime: m.avgCycle(),
		TotalFrames:       m.totalFrames.Load(),
		DroppedFrames:     m.droppedFrames.Load(),
		DroppedResults:    m.droppedResults.Load(),
		FacesDetected:     m.facesDetected.Load(),
		AlertsTriggered:   m.alertsTriggered.Load(),
	}
}

// Reset zeroes every counter and window.
func (m *Metrics) Reset() {
	m.totalFrames.Store(0)
	m.droppedFrames.Store(0)
	m.droppedResults.Store(0)
	m.facesDetected.Store(0)
	m.alertsTriggered.Store(0)
	m.capture.reset()
	m.processing.reset()
	m.display.reset()
	m.mu.Lock()
	m.cycleNext = 0
	m.cycleFilled = false
	m.mu.Unlock()
}

// rateWindow computes an operations-per-second rate over one-second
// sliding windows. The published rate is the previous completed window's,
// so it updates once per second rather than jittering per call.
type rateWindow struct {
	mu          sync.Mutex
	windowStart time.Time
	count       int
	lastRate    float64
}

func (w *rateWindow) tick() {
	now := time.Now()
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.windowStart.IsZero() {
		w.windowStart = now
	}
	elapsed := now.Sub(w.windowStart)
	if elapsed >= time.Second {
		w.lastRate = float64(w.count) / elapsed.Seconds()
		w.windowStart = now
		w.count = 0
	}
	w.count++
}

func (w *rateWindow) rate() float64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastRate
}

func (w *rateWindow) reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.windowStart = time.Time{}
	w.count = 0
	w.lastRate = 0
}
