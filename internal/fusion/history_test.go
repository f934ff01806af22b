package fusion

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resultAt(offset time.Duration, level AlertLevel) DetectionResult {
	return DetectionResult{
		Timestamp:    at(offset),
		FaceDetected: true,
		AlertLevel:   level,
		FatigueState: fatigueFor(level),
		Confidence:   confidenceBase(level),
	}
}

func TestHistory(t *testing.T) {
	t.Parallel()

	t.Run("latest on empty reports absent", func(t *testing.T) {
		t.Parallel()
		h := NewHistory(10)
		_, ok := h.Latest()
		assert.False(t, ok)
		assert.Nil(t, h.Recent(5))
	})

	t.Run("recent returns oldest first", func(t *testing.T) {
		t.Parallel()
		h := NewHistory(10)
		for i := 0; i < 5; i++ {
			h.Add(resultAt(time.Duration(i)*time.Second, AlertNone))
		}
		recent := h.Recent(3)
		require.Len(t, recent, 3)
		assert.Equal(t, at(2*time.Second), recent[0].Timestamp)
		assert.Equal(t, at(4*time.Second), recent[2].Timestamp)

		latest, ok := h.Latest()
		require.True(t, ok)
		assert.Equal(t, at(4*time.Second), latest.Timestamp)
	})

	t.Run("overwrites oldest at capacity", func(t *testing.T) {
		t.Parallel()
		h := NewHistory(3)
		for i := 0; i < 7; i++ {
			h.Add(resultAt(time.Duration(i)*time.Second, AlertNone))
		}
		assert.Equal(t, 3, h.Len())
		recent := h.Recent(3)
		assert.Equal(t, at(4*time.Second), recent[0].Timestamp)
		assert.Equal(t, at(6*time.Second), recent[2].Timestamp)
	})

	t.Run("clear empties the buffer", func(t *testing.T) {
		t.Parallel()
		h := NewHistory(3)
		h.Add(resultAt(0, AlertNone))
		h.Clear()
		assert.Zero(t, h.Len())
	})

	t.Run("concurrent append and read", func(t *testing.T) {
		t.Parallel()
		h := NewHistory(16)
		var wg sync.WaitGroup
		for w := 0; w < 4; w++ {
			wg.Add(2)
			go func() {
				defer wg.Done()
				for i := 0; i < 200; i++ {
					h.Add(resultAt(time.Duration(i)*time.Millisecond, AlertLow))
				}
			}()
			go func() {
				defer wg.Done()
				for i := 0; i < 200; i++ {
					h.Recent(8)
					h.Latest()
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, 16, h.Len())
	})
}

func TestSummarize(t *testing.T) {
	t.Parallel()

	h := NewHistory(50)
	h.Add(resultAt(0, AlertNone))
	h.Add(resultAt(1*time.Second, AlertLow))
	h.Add(resultAt(2*time.Second, AlertHigh))
	h.Add(resultAt(3*time.Second, AlertCritical))

	t.Run("zero window covers everything", func(t *testing.T) {
		t.Parallel()
		s := h.Summarize(0, at(3*time.Second))
		assert.Equal(t, 4, s.Frames)
		assert.Equal(t, 2, s.HighRiskFrames)
		assert.Equal(t, 1, s.AlertCounts["CRITICAL"])
		assert.Equal(t, 1, s.AlertCounts["NONE"])
		assert.InDelta(t, (0.0+0.3+0.8+1.0)/4, s.AverageConfidence, 1e-9)
	})

	t.Run("window excludes older results", func(t *testing.T) {
		t.Parallel()
		s := h.Summarize(1500*time.Millisecond, at(3*time.Second))
		assert.Equal(t, 2, s.Frames)
		assert.Equal(t, 2, s.HighRiskFrames)
		assert.Zero(t, s.AlertCounts["NONE"])
	})
}

func TestDetectionResultJSON(t *testing.T) {
	t.Parallel()

	r := resultAt(0, AlertHigh)
	r.Pose = &PoseSample{Pitch: 18.5, Yaw: -2.0, Roll: 1.1}
	r.ContributingFactors = []string{"Yawning detected"}
	r.Recommendation = recommendationFor(AlertHigh)

	data, err := json.Marshal(r)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "HIGH", decoded["alert_level"])
	assert.Equal(t, "SEVERELY_TIRED", decoded["fatigue_state"])
	assert.Equal(t, "OPEN", decoded["eye_state"])
	pose, ok := decoded["pose"].(map[string]any)
	require.True(t, ok)
	assert.InDelta(t, 18.5, pose["pitch"].(float64), 1e-9)
}
