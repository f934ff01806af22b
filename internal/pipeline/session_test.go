package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vigilia-data/fatigue.report/internal/classify"
	"github.com/vigilia-data/fatigue.report/internal/fusion"
	"github.com/vigilia-data/fatigue.report/internal/geometry"
)

func TestSessionProcess(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

	t.Run("empty point set is a neutral no face result", func(t *testing.T) {
		t.Parallel()
		s := NewSession(classify.DefaultConfig())
		r := s.Process(nil, 640, 480, base)
		assert.False(t, r.FaceDetected)
		assert.Equal(t, fusion.AlertNone, r.AlertLevel)
		assert.Equal(t, 1, s.History().Len())
	})

	t.Run("missing mouth leaves the mouth signal out", func(t *testing.T) {
		t.Parallel()
		s := NewSession(classify.DefaultConfig())
		pts := facePoints(0.6, 0.5)
		// Strip the mouth region entirely.
		var eyesOnly []geometry.LabeledPoint
		for _, p := range pts {
			if p.Region != geometry.RegionMouth {
				eyesOnly = append(eyesOnly, p)
			}
		}
		r := s.Process(eyesOnly, 640, 480, base)
		assert.True(t, r.FaceDetected)
		assert.Equal(t, classify.MouthClosed, r.MouthState)
		assert.Zero(t, r.MAR)
	})

	t.Run("sustained closure drives the session to an alert", func(t *testing.T) {
		t.Parallel()
		s := NewSession(classify.DefaultConfig())
		var last fusion.DetectionResult
		// Closed eyes and yawning mouth for four seconds of frames.
		for ms := 0; ms <= 4500; ms += 100 {
			last = s.Process(facePoints(0.1, 6.0), 640, 480, base.Add(time.Duration(ms)*time.Millisecond))
		}
		assert.Equal(t, fusion.AlertCritical, last.AlertLevel)
		assert.Equal(t, classify.EyeDrowsy, last.EyeState)
		assert.Equal(t, classify.MouthYawning, last.MouthState)

		stats := s.Stats()
		assert.NotZero(t, stats.FramesFused)
		assert.NotZero(t, stats.AlertsRaised)
		assert.NotZero(t, stats.EyeStats.Samples)
	})

	t.Run("reset issues a new identifier and clears history", func(t *testing.T) {
		t.Parallel()
		s := NewSession(classify.DefaultConfig())
		s.Process(facePoints(0.6, 0.5), 640, 480, base)
		require.Equal(t, 1, s.History().Len())

		before := s.ID()
		s.Reset()
		assert.NotEqual(t, before, s.ID())
		assert.Zero(t, s.History().Len())
		assert.Zero(t, s.Stats().FramesFused)
	})
}
