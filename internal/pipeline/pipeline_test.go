package pipeline

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vigilia-data/fatigue.report/internal/classify"
	"github.com/vigilia-data/fatigue.report/internal/fusion"
	"github.com/vigilia-data/fatigue.report/internal/geometry"
	"github.com/vigilia-data/fatigue.report/internal/landmark"
)

// facePoints builds a labeled point set with the given eye and mouth
// openness. Nose and outline are omitted so the head signal stays out of
// the way.
func facePoints(eyeOpening, mouthOpening float64) []geometry.LabeledPoint {
	var pts []geometry.LabeledPoint
	eye := func(region geometry.Region) {
		h := eyeOpening
		coords := [][2]float64{{0, 0}, {1, h}, {3, h}, {4, 0}, {3, -h}, {1, -h}}
		for i, c := range coords {
			pts = append(pts, geometry.LabeledPoint{Region: region, Index: i, X: c[0], Y: c[1]})
		}
	}
	eye(geometry.RegionLeftEye)
	eye(geometry.RegionRightEye)
	v := mouthOpening
	mouth := [][2]float64{{0, 0}, {2, v}, {6, v}, {8, 0}, {6, -v}, {2, -v}}
	for i, c := range mouth {
		pts = append(pts, geometry.LabeledPoint{Region: geometry.RegionMouth, Index: i, X: c[0], Y: c[1]})
	}
	return pts
}

// fakeSource replays a fixed frame as fast as it is polled.
type fakeSource struct {
	mu     sync.Mutex
	polled int
	start  time.Time
}

func (s *fakeSource) Poll() (landmark.Frame, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.start.IsZero() {
		s.start = time.Now()
	}
	s.polled++
	return landmark.Frame{
		Timestamp: s.start.Add(time.Duration(s.polled) * 33 * time.Millisecond),
		Width:     640,
		Height:    480,
	}, true
}

// fakeProvider returns canned points, optionally sleeping to simulate a
// slow detector.
type fakeProvider struct {
	points []geometry.LabeledPoint
	delay  time.Duration
	err    error
}

func (p *fakeProvider) Detect(landmark.Frame) ([]geometry.LabeledPoint, error) {
	if p.delay > 0 {
		time.Sleep(p.delay)
	}
	return p.points, p.err
}

// collectPresenter records every presented result.
type collectPresenter struct {
	mu      sync.Mutex
	results []fusion.DetectionResult
}

func (c *collectPresenter) Present(r fusion.DetectionResult, _ Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.results = append(c.results, r)
}

func (c *collectPresenter) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.results)
}

type collectSink struct {
	mu          sync.Mutex
	transitions []fusion.AlertLevel
}

func (s *collectSink) Notify(r fusion.DetectionResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transitions = append(s.transitions, r.AlertLevel)
}

func newTestPipeline(t *testing.T, opts Options) *Pipeline {
	t.Helper()
	if opts.Config.FrameQueueSize == 0 {
		opts.Config = DefaultConfig()
		opts.Config.QueueWait = 5 * time.Millisecond
	}
	if opts.Session == nil {
		opts.Session = NewSession(classify.DefaultConfig())
	}
	p, err := New(opts)
	require.NoError(t, err)
	return p
}

func TestPipelineProcessesFrames(t *testing.T) {
	t.Parallel()

	presenter := &collectPresenter{}
	p := newTestPipeline(t, Options{
		Source:    &fakeSource{},
		Provider:  &fakeProvider{points: facePoints(0.6, 0.5)},
		Presenter: presenter,
	})
	require.NoError(t, p.Start())
	defer p.Stop()

	require.Eventually(t, func() bool { return presenter.count() >= 5 },
		3*time.Second, 10*time.Millisecond)

	snap := p.Metrics().Snapshot()
	assert.Greater(t, snap.TotalFrames, int64(0))
	assert.Greater(t, snap.FacesDetected, int64(0))

	latest, ok := p.Session().History().Latest()
	require.True(t, ok)
	assert.True(t, latest.FaceDetected)
	assert.InDelta(t, 0.3, latest.EAR, 0.01)
	assert.Equal(t, classify.EyeOpen, latest.EyeState)
}

func TestPipelineBackpressure(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.FrameQueueSize = 4
	cfg.CaptureFPS = 200
	cfg.QueueWait = 5 * time.Millisecond
	p := newTestPipeline(t, Options{
		Config: cfg,
		Source: &fakeSource{},
		// Detector far slower than the capture rate.
		Provider: &fakeProvider{points: facePoints(0.6, 0.5), delay: 50 * time.Millisecond},
	})
	require.NoError(t, p.Start())

	require.Eventually(t, func() bool {
		return p.Metrics().Snapshot().DroppedFrames > 0
	}, 3*time.Second, 10*time.Millisecond, "saturated queue must drop frames")

	assert.LessOrEqual(t, len(p.frames), cfg.FrameQueueSize)

	before := p.Metrics().Snapshot().DroppedFrames
	time.Sleep(100 * time.Millisecond)
	after := p.Metrics().Snapshot().DroppedFrames
	assert.GreaterOrEqual(t, after, before, "dropped count only grows")

	done := make(chan struct{})
	go func() {
		p.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("pipeline did not stop promptly under backpressure")
	}
}

func TestPipelineProviderErrorsAreSkipped(t *testing.T) {
	t.Parallel()

	p := newTestPipeline(t, Options{
		Source:   &fakeSource{},
		Provider: &fakeProvider{err: errors.New("stream hiccup")},
	})
	require.NoError(t, p.Start())
	defer p.Stop()

	require.Eventually(t, func() bool {
		return p.Metrics().Snapshot().TotalFrames > 3
	}, 3*time.Second, 10*time.Millisecond)

	// Failed detections produce no results at all.
	assert.Zero(t, p.Session().History().Len())
}

func TestPipelineCommands(t *testing.T) {
	t.Parallel()

	t.Run("reset starts a fresh session", func(t *testing.T) {
		t.Parallel()
		p := newTestPipeline(t, Options{
			Source:   &fakeSource{},
			Provider: &fakeProvider{points: facePoints(0.6, 0.5)},
		})
		require.NoError(t, p.Start())
		defer p.Stop()

		before := p.Session().ID()
		p.Command(CommandReset)
		require.Eventually(t, func() bool { return p.Session().ID() != before },
			2*time.Second, 10*time.Millisecond)
	})

	t.Run("quit stops all stages", func(t *testing.T) {
		t.Parallel()
		p := newTestPipeline(t, Options{
			Source:   &fakeSource{},
			Provider: &fakeProvider{points: facePoints(0.6, 0.5)},
		})
		require.NoError(t, p.Start())
		p.Command(CommandQuit)

		done := make(chan struct{})
		go func() {
			p.Wait()
			close(done)
		}()
		select {
		case <-done:
			assert.False(t, p.Running())
		case <-time.After(2 * time.Second):
			t.Fatal("stages did not exit after quit")
		}
	})

	t.Run("snapshot writes the latest result", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		cfg := DefaultConfig()
		cfg.QueueWait = 5 * time.Millisecond
		cfg.SnapshotDir = dir
		p := newTestPipeline(t, Options{
			Config:   cfg,
			Source:   &fakeSource{},
			Provider: &fakeProvider{points: facePoints(0.6, 0.5)},
		})
		require.NoError(t, p.Start())
		defer p.Stop()

		require.Eventually(t, func() bool { return p.Session().History().Len() > 0 },
			2*time.Second, 10*time.Millisecond)
		p.Command(CommandSnapshot)

		require.Eventually(t, func() bool {
			entries, err := os.ReadDir(dir)
			return err == nil && len(entries) == 1
		}, 2*time.Second, 10*time.Millisecond)

		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		data, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
		require.NoError(t, err)
		assert.Contains(t, string(data), "alert_level")
	})
}

func TestPipelineAlertSinkSeesTransitionsOnly(t *testing.T) {
	t.Parallel()

	sink := &collectSink{}
	// Closing eyes plus a wide-open mouth: the level climbs from MEDIUM to
	// HIGH once both duration timers fire, then to CRITICAL.
	p := newTestPipeline(t, Options{
		Source:    &fakeSource{},
		Provider:  &fakeProvider{points: facePoints(0.1, 6.0)},
		AlertSink: sink,
	})
	require.NoError(t, p.Start())
	defer p.Stop()

	require.Eventually(t, func() bool {
		sink.mu.Lock()
		defer sink.mu.Unlock()
		return len(sink.transitions) >= 1
	}, 3*time.Second, 10*time.Millisecond)

	sink.mu.Lock()
	defer sink.mu.Unlock()
	for i := 1; i < len(sink.transitions); i++ {
		assert.NotEqual(t, sink.transitions[i-1], sink.transitions[i],
			"sink only sees level changes")
	}
}

func TestPipelineValidation(t *testing.T) {
	t.Parallel()

	session := NewSession(classify.DefaultConfig())
	src := &fakeSource{}
	prov := &fakeProvider{}

	_, err := New(Options{Config: DefaultConfig(), Provider: prov, Session: session})
	assert.Error(t, err, "missing source")
	_, err = New(Options{Config: DefaultConfig(), Source: src, Session: session})
	assert.Error(t, err, "missing provider")
	_, err = New(Options{Config: DefaultConfig(), Source: src, Provider: prov})
	assert.Error(t, err, "missing session")

	bad := DefaultConfig()
	bad.FrameQueueSize = 0
	_, err = New(Options{Config: bad, Source: src, Provider: prov, Session: session})
	assert.Error(t, err)
}
