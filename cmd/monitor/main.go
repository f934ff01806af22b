// Command monitor runs the fatigue detection service: it consumes landmark
// frames from a detector sidecar (or a recorded replay), runs the detection
// pipeline, persists history to SQLite and serves the monitoring HTTP API.
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vigilia-data/fatigue.report/internal/api"
	"github.com/vigilia-data/fatigue.report/internal/classify"
	"github.com/vigilia-data/fatigue.report/internal/config"
	"github.com/vigilia-data/fatigue.report/internal/fusion"
	"github.com/vigilia-data/fatigue.report/internal/landmark"
	"github.com/vigilia-data/fatigue.report/internal/monitoring"
	"github.com/vigilia-data/fatigue.report/internal/pipeline"
	"github.com/vigilia-data/fatigue.report/internal/storage/sqlite"
	"github.com/vigilia-data/fatigue.report/internal/version"
)

var (
	listen  = flag.String("listen", "", "Listen address (overrides FATIGUE_LISTEN_ADDR)")
	replay  = flag.String("replay", "", "JSONL landmark capture to play back (overrides FATIGUE_REPLAY_PATH)")
	verbose = flag.Bool("verbose", false, "Enable per-frame trace logging")
)

// alertCooldown suppresses repeated console alerts for the same or lower
// level inside this window.
const alertCooldown = 5 * time.Second

// consoleAlerter prints alert transitions to the service log, rate limited
// so a flapping level does not flood the console.
type consoleAlerter struct {
	lastLevel fusion.AlertLevel
	lastAt    time.Time
}

func (a *consoleAlerter) Notify(result fusion.DetectionResult) {
	now := time.Now()
	if result.AlertLevel <= a.lastLevel && now.Sub(a.lastAt) < alertCooldown {
		a.lastLevel = result.AlertLevel
		return
	}
	a.lastLevel = result.AlertLevel
	a.lastAt = now
	monitoring.Logf("ALERT %s (%s, confidence %.2f): %s",
		result.AlertLevel, result.FatigueState, result.Confidence, result.Recommendation)
}

func main() {
	flag.Parse()
	if err := run(); err != nil {
		monitoring.Logf("fatal: %v", err)
		os.Exit(1)
	}
}

func run() error {
	monitoring.Logf("fatigue monitor %s", version.String())

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if *listen != "" {
		cfg.ListenAddr = *listen
	}
	if *replay != "" {
		cfg.ReplayPath = *replay
	}
	if *verbose {
		cfg.Verbose = true
	}

	writers := pipeline.LogWriters{Ops: os.Stderr, Diag: os.Stderr}
	if cfg.Verbose {
		writers.Trace = os.Stderr
	}
	pipeline.SetLogWriters(writers)

	tuning, err := loadTuning(cfg)
	if err != nil {
		return err
	}

	source, provider, err := openFrontend(cfg)
	if err != nil {
		return err
	}

	opts := pipeline.Options{
		Config:    pipelineConfig(cfg),
		Source:    source,
		Provider:  provider,
		Session:   pipeline.NewSession(tuning),
		AlertSink: &consoleAlerter{},
	}

	var store *sqlite.Store
	if cfg.DBPath != "" {
		store, err = sqlite.Open(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("open history store: %w", err)
		}
		defer store.Close()
		opts.Recorder = store
	}

	pipe, err := pipeline.New(opts)
	if err != nil {
		return err
	}

	server := api.NewServer(api.Config{Address: cfg.ListenAddr}, pipe, store)
	// The server doubles as the presenter so websocket clients see every
	// displayed frame.
	pipe.SetPresenter(server)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := pipe.Start(); err != nil {
		return err
	}
	monitoring.Logf("pipeline started, session %s", pipe.Session().ID())

	go func() {
		<-ctx.Done()
		monitoring.Logf("shutting down pipeline")
		pipe.Stop()
	}()
	if sr, ok := source.(*landmark.StreamReader); ok {
		go func() {
			<-sr.Done()
			monitoring.Logf("detector stream closed: %v", sr.Err())
			stop()
		}()
	}

	if err := server.Start(ctx); err != nil {
		return err
	}
	pipe.Wait()
	monitoring.Logf("session %s finished", pipe.Session().ID())
	return nil
}

func loadTuning(cfg config.Config) (classify.Config, error) {
	if cfg.TuningPath != "" {
		tuning, err := classify.LoadConfig(cfg.TuningPath)
		if err != nil {
			return classify.Config{}, fmt.Errorf("load tuning: %w", err)
		}
		monitoring.Logf("loaded tuning from %s", cfg.TuningPath)
		return tuning, nil
	}
	tuning, err := classify.PresetConfig(cfg.Preset)
	if err != nil {
		return classify.Config{}, err
	}
	monitoring.Logf("using %q tuning preset", cfg.Preset)
	return tuning, nil
}

// openFrontend picks the frame source and landmark provider: a recorded
// replay when configured, otherwise the detector sidecar's unix socket.
func openFrontend(cfg config.Config) (landmark.Source, landmark.Provider, error) {
	if cfg.ReplayPath != "" {
		rp, err := landmark.NewReplay(cfg.ReplayPath, cfg.ReplayLoop)
		if err != nil {
			return nil, nil, err
		}
		monitoring.Logf("replaying %d frames from %s", rp.Len(), cfg.ReplayPath)
		return rp, rp, nil
	}

	conn, err := net.Dial("unix", cfg.StreamSocket)
	if err != nil {
		return nil, nil, fmt.Errorf("connect detector stream: %w", err)
	}
	monitoring.Logf("connected to detector stream at %s", cfg.StreamSocket)
	sr := landmark.NewStreamReader(conn)
	return sr, sr, nil
}

func pipelineConfig(cfg config.Config) pipeline.Config {
	pc := pipeline.DefaultConfig()
	pc.CaptureFPS = cfg.CaptureFPS
	pc.SnapshotDir = cfg.SnapshotDir
	return pc
}
