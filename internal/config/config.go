// Package config loads the monitor's runtime configuration from the
// environment, with an optional .env file for development setups.
// Classifier tuning has its own JSON loader in internal/classify; this
// package only covers process-level wiring.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/vigilia-data/fatigue.report/internal/monitoring"
)

// Config is the monitor process configuration.
type Config struct {
	// ListenAddr is the monitoring HTTP server address.
	ListenAddr string
	// DBPath is the SQLite history database. Empty disables persistence.
	DBPath string
	// Preset selects a named classifier tuning (default, sensitive,
	// conservative). Ignored when TuningPath is set.
	Preset string
	// TuningPath points at a JSON tuning file overriding the preset.
	TuningPath string
	// ReplayPath plays back a recorded JSONL landmark session instead of
	// reading the live detector stream.
	ReplayPath string
	// ReplayLoop restarts the replay when it ends.
	ReplayLoop bool
	// StreamSocket is the unix socket the detector sidecar streams CBOR
	// landmark messages over.
	StreamSocket string
	// SnapshotDir receives snapshot command output.
	SnapshotDir string
	// CaptureFPS throttles the acquisition stage.
	CaptureFPS int
	// Verbose enables the per-frame trace log stream.
	Verbose bool
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first when present.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		monitoring.Logf("skipping .env file: %v", err)
	}

	cfg := Config{
		ListenAddr:   getEnv("FATIGUE_LISTEN_ADDR", ":8080"),
		DBPath:       getEnv("FATIGUE_DB_PATH", "fatigue_history.db"),
		Preset:       getEnv("FATIGUE_PRESET", "default"),
		TuningPath:   getEnv("FATIGUE_TUNING_PATH", ""),
		ReplayPath:   getEnv("FATIGUE_REPLAY_PATH", ""),
		ReplayLoop:   getEnvBool("FATIGUE_REPLAY_LOOP", false),
		StreamSocket: getEnv("FATIGUE_STREAM_SOCKET", "/tmp/fatigue-landmarks.sock"),
		SnapshotDir:  getEnv("FATIGUE_SNAPSHOT_DIR", "."),
		CaptureFPS:   getEnvInt("FATIGUE_CAPTURE_FPS", 30),
		Verbose:      getEnvBool("FATIGUE_VERBOSE", false),
	}

	if cfg.CaptureFPS < 1 || cfg.CaptureFPS > 120 {
		return Config{}, fmt.Errorf("FATIGUE_CAPTURE_FPS must be in [1, 120], got %d", cfg.CaptureFPS)
	}
	if cfg.ReplayPath == "" && cfg.StreamSocket == "" {
		return Config{}, fmt.Errorf("either FATIGUE_REPLAY_PATH or FATIGUE_STREAM_SOCKET must be set")
	}
	return cfg, nil
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
		monitoring.Logf("ignoring non-integer %s=%q", key, v)
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			return parsed
		}
		monitoring.Logf("ignoring non-boolean %s=%q", key, v)
	}
	return defaultVal
}
