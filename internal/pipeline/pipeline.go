// Package pipeline runs the three-stage fatigue detection loop:
// acquisition pulls frames from the camera source at a throttled rate,
// detection extracts landmarks and fuses signal states, presentation
// delivers results to the UI collaborator. Stages are connected by bounded
// channels and poll a shared stop flag, so shutdown is observed within one
// queue-wait interval everywhere.
package pipeline

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vigilia-data/fatigue.report/internal/fusion"
	"github.com/vigilia-data/fatigue.report/internal/landmark"
	"github.com/vigilia-data/fatigue.report/internal/security"
)

// Config holds the pipeline's queue and pacing parameters.
type Config struct {
	FrameQueueSize  int           // bounded frame queue, drop-oldest (default 8)
	ResultQueueSize int           // bounded result queue, drop-newest (default 3)
	QueueWait       time.Duration // per-stage queue poll timeout (default 50ms)
	CaptureFPS      int           // acquisition throttle (default 30)
	SnapshotDir     string        // where snapshot commands write JSON (default ".")
}

// DefaultConfig returns the baseline pipeline tuning.
func DefaultConfig() Config {
	return Config{
		FrameQueueSize:  8,
		ResultQueueSize: 3,
		QueueWait:       50 * time.Millisecond,
		CaptureFPS:      30,
		SnapshotDir:     ".",
	}
}

// Validate checks the tuning once at construction.
func (c Config) Validate() error {
	if c.FrameQueueSize < 1 {
		return fmt.Errorf("frame queue size must be >= 1, got %d", c.FrameQueueSize)
	}
	if c.ResultQueueSize < 1 {
		return fmt.Errorf("result queue size must be >= 1, got %d", c.ResultQueueSize)
	}
	if c.QueueWait <= 0 {
		return fmt.Errorf("queue wait must be positive, got %v", c.QueueWait)
	}
	if c.CaptureFPS < 1 {
		return fmt.Errorf("capture fps must be >= 1, got %d", c.CaptureFPS)
	}
	return nil
}

// Command is a control instruction issued by the presentation collaborator.
type Command int

const (
	CommandQuit Command = iota
	CommandReset
	CommandSnapshot
)

// Presenter receives each displayed result along with current metrics.
// Called from the presentation goroutine; implementations must not block
// for long.
type Presenter interface {
	Present(result fusion.DetectionResult, metrics Snapshot)
}

// AlertSink receives alert level transitions. Implementations are expected
// to apply their own cooldown or debounce before producing audible output.
type AlertSink interface {
	Notify(result fusion.DetectionResult)
}

// Recorder receives every detection result for append-only persistence,
// including results the presentation stage drops. Called from the detection
// goroutine; failures are logged and do not stall the pipeline.
type Recorder interface {
	Record(sessionID string, result fusion.DetectionResult) error
}

// Options wires a Pipeline's collaborators. Source, Provider and Session
// are required; Presenter, AlertSink and Metrics are optional.
type Options struct {
	Config    Config
	Source    landmark.Source
	Provider  landmark.Provider
	Session   *Session
	Presenter Presenter
	AlertSink AlertSink
	Recorder  Recorder
	Metrics   *Metrics
}

// Pipeline owns the three stage goroutines and their queues.
type Pipeline struct {
	cfg       Config
	source    landmark.Source
	provider  landmark.Provider
	session   *Session
	presenter Presenter
	sink      AlertSink
	recorder  Recorder
	metrics   *Metrics

	frames   chan landmark.Frame
	results  chan fusion.DetectionResult
	commands chan Command

	running   atomic.Bool
	wg        sync.WaitGroup
	lastLevel fusion.AlertLevel // detection-stage local, for sink transitions
}

// New builds a pipeline from validated options.
func New(opts Options) (*Pipeline, error) {
	if err := opts.Config.Validate(); err != nil {
		return nil, err
	}
	if opts.Source == nil {
		return nil, errors.New("pipeline: frame source is required")
	}
	if opts.Provider == nil {
		return nil, errors.New("pipeline: landmark provider is required")
	}
	if opts.Session == nil {
		return nil, errors.New("pipeline: session is required")
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = NewMetrics()
	}
	return &Pipeline{
		cfg:       opts.Config,
		source:    opts.Source,
		provider:  opts.Provider,
		session:   opts.Session,
		presenter: opts.Presenter,
		sink:      opts.AlertSink,
		recorder:  opts.Recorder,
		metrics:   metrics,
		frames:    make(chan landmark.Frame, opts.Config.FrameQueueSize),
		results:   make(chan fusion.DetectionResult, opts.Config.ResultQueueSize),
		commands:  make(chan Command, 4),
	}, nil
}

// SetPresenter installs the presentation collaborator. Must be called
// before Start; the presenter is read without locking afterwards.
func (p *Pipeline) SetPresenter(pr Presenter) { p.presenter = pr }

// Session returns the pipeline's session.
func (p *Pipeline) Session() *Session { return p.session }

// Metrics returns the pipeline's metrics.
func (p *Pipeline) Metrics() *Metrics { return p.metrics }

// Start launches the three stage goroutines. Returns an error if the
// pipeline is already running.
func (p *Pipeline) Start() error {
	if !p.running.CompareAndSwap(false, true) {
		return errors.New("pipeline: already running")
	}
	Opsf("pipeline starting: session=%s capture=%dfps", p.session.ID(), p.cfg.CaptureFPS)
	p.wg.Add(3)
	go p.acquireLoop()
	go p.detectLoop()
	go p.presentLoop()
	return nil
}

// Stop signals all stages and waits for them to exit. Safe to call more
// than once.
func (p *Pipeline) Stop() {
	if p.running.CompareAndSwap(true, false) {
		Opsf("pipeline stopping: session=%s", p.session.ID())
	}
	p.wg.Wait()
}

// Wait blocks until all stages have exited, without initiating shutdown.
// Useful after a quit command.
func (p *Pipeline) Wait() { p.wg.Wait() }

// Running reports whether the stages are active.
func (p *Pipeline) Running() bool { return p.running.Load() }

// Command enqueues a control instruction. Commands are handled by the
// detection stage within one queue-wait interval; the queue is small and a
// flooded queue drops the command.
func (p *Pipeline) Command(cmd Command) {
	select {
	case p.commands <- cmd:
	default:
		Opsf("command queue full, dropping command %d", cmd)
	}
}

// acquireLoop pulls frames from the source at the configured rate and
// pushes them into the frame queue, dropping the oldest queued frame under
// backpressure so end-to-end latency stays bounded.
func (p *Pipeline) acquireLoop() {
	defer p.wg.Done()
	interval := time.Second / time.Duration(p.cfg.CaptureFPS)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for p.running.Load() {
		<-ticker.C
		frame, ok := p.source.Poll()
		if !ok {
			continue
		}
		p.metrics.AddFrame()
		p.pushFrame(frame)
	}
	Diagf("acquisition stage exited")
}

func (p *Pipeline) pushFrame(frame landmark.Frame) {
	select {
	case p.frames <- frame:
		return
	default:
	}
	// Queue full: evict the oldest frame, then retry once. A concurrent
	// consumer may have drained the queue in between, so both selects stay
	// non-blocking.
	select {
	case <-p.frames:
		p.metrics.AddDroppedFrame()
	default:
	}
	select {
	case p.frames <- frame:
	default:
		p.metrics.AddDroppedFrame()
	}
}

// detectLoop pops one frame at a time, runs the detection cycle and
// publishes the result. It also services control commands.
func (p *Pipeline) detectLoop() {
	defer p.wg.Done()
	for p.running.Load() {
		p.drainCommands()
		select {
		case frame := <-p.frames:
			p.detect(frame)
		case <-time.After(p.cfg.QueueWait):
		}
	}
	Diagf("detection stage exited")
}

// detect processes a single frame. Any panic while computing one frame's
// result is recovered and logged; a single bad frame must never terminate
// the pipeline.
func (p *Pipeline) detect(frame landmark.Frame) {
	defer func() {
		if r := recover(); r != nil {
			Opsf("detection fault recovered: %v", r)
		}
	}()

	start := time.Now()
	points, err := p.provider.Detect(frame)
	if err != nil {
		Diagf("landmark provider error: %v", err)
		return
	}

	result := p.session.Process(points, frame.Width, frame.Height, frame.Timestamp)
	p.metrics.AddCycle(time.Since(start))
	if result.FaceDetected {
		p.metrics.AddFace()
	}
	if result.AlertLevel >= fusion.AlertHigh {
		p.metrics.AddAlert()
	}
	Tracef("frame processed: ear=%.3f mar=%.3f level=%s", result.EAR, result.MAR, result.AlertLevel)

	if p.sink != nil && result.AlertLevel != p.lastLevel {
		p.sink.Notify(result)
	}
	p.lastLevel = result.AlertLevel

	if p.recorder != nil {
		if err := p.recorder.Record(p.session.ID(), result); err != nil {
			Diagf("recorder error: %v", err)
		}
	}

	// Drop the result if presentation is behind; the UI shows the next one.
	select {
	case p.results <- result:
	default:
		p.metrics.AddDroppedResult()
	}
}

func (p *Pipeline) drainCommands() {
	for {
		select {
		case cmd := <-p.commands:
			p.handleCommand(cmd)
		default:
			return
		}
	}
}

func (p *Pipeline) handleCommand(cmd Command) {
	switch cmd {
	case CommandQuit:
		Opsf("quit command received")
		p.running.Store(false)
	case CommandReset:
		p.session.Reset()
		p.metrics.Reset()
		p.lastLevel = fusion.AlertNone
		Opsf("session reset: session=%s", p.session.ID())
	case CommandSnapshot:
		if err := p.writeSnapshot(); err != nil {
			Opsf("snapshot failed: %v", err)
		}
	}
}

// writeSnapshot dumps the latest result to a timestamped JSON file.
func (p *Pipeline) writeSnapshot() error {
	result, ok := p.session.History().Latest()
	if !ok {
		return errors.New("no result to snapshot")
	}
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	path := filepath.Join(p.cfg.SnapshotDir,
		fmt.Sprintf("snapshot-%s.json", time.Now().Format("20060102-150405")))
	if err := security.ValidatePathWithinDirectory(path, p.cfg.SnapshotDir); err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return err
	}
	Diagf("snapshot written: %s", path)
	return nil
}

// presentLoop consumes results and hands them to the presenter.
func (p *Pipeline) presentLoop() {
	defer p.wg.Done()
	for p.running.Load() {
		select {
		case result := <-p.results:
			p.metrics.AddDisplay()
			if p.presenter != nil {
				p.presenter.Present(result, p.metrics.Snapshot())
			}
		case <-time.After(p.cfg.QueueWait):
		}
	}
	Diagf("presentation stage exited")
}
