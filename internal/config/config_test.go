package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, "fatigue_history.db", cfg.DBPath)
	assert.Equal(t, "default", cfg.Preset)
	assert.Equal(t, 30, cfg.CaptureFPS)
	assert.False(t, cfg.Verbose)
	assert.NotEmpty(t, cfg.StreamSocket)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("FATIGUE_LISTEN_ADDR", "127.0.0.1:9999")
	t.Setenv("FATIGUE_PRESET", "sensitive")
	t.Setenv("FATIGUE_REPLAY_PATH", "session.jsonl")
	t.Setenv("FATIGUE_REPLAY_LOOP", "true")
	t.Setenv("FATIGUE_CAPTURE_FPS", "15")
	t.Setenv("FATIGUE_VERBOSE", "1")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9999", cfg.ListenAddr)
	assert.Equal(t, "sensitive", cfg.Preset)
	assert.Equal(t, "session.jsonl", cfg.ReplayPath)
	assert.True(t, cfg.ReplayLoop)
	assert.Equal(t, 15, cfg.CaptureFPS)
	assert.True(t, cfg.Verbose)
}

func TestLoadIgnoresMalformedValues(t *testing.T) {
	t.Setenv("FATIGUE_CAPTURE_FPS", "fast")
	t.Setenv("FATIGUE_REPLAY_LOOP", "sometimes")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 30, cfg.CaptureFPS)
	assert.False(t, cfg.ReplayLoop)
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("FATIGUE_CAPTURE_FPS", "500")
	_, err := Load()
	assert.ErrorContains(t, err, "FATIGUE_CAPTURE_FPS")

	t.Setenv("FATIGUE_CAPTURE_FPS", "30")
	t.Setenv("FATIGUE_STREAM_SOCKET", "")
	// Empty values fall back to defaults, so clearing the socket alone
	// still yields a runnable configuration.
	cfg, err := Load()
	require.NoError(t, err)
	assert.NotEmpty(t, cfg.StreamSocket)
}
