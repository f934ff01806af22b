package report

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vigilia-data/fatigue.report/internal/fusion"
	"github.com/vigilia-data/fatigue.report/internal/pipeline"
)

func sampleData() Data {
	base := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	levels := []fusion.AlertLevel{
		fusion.AlertNone, fusion.AlertLow, fusion.AlertMedium,
		fusion.AlertHigh, fusion.AlertHigh, fusion.AlertCritical,
	}
	results := make([]fusion.DetectionResult, len(levels))
	for i, level := range levels {
		results[i] = fusion.DetectionResult{
			Timestamp:    base.Add(time.Duration(i) * 100 * time.Millisecond),
			FaceDetected: true,
			EAR:          0.3 - float64(i)*0.03,
			MAR:          0.4 + float64(i)*0.1,
			AlertLevel:   level,
		}
	}
	return Data{
		Stats: pipeline.Stats{
			ID:           "a2b9",
			Blinks:       3,
			Yawns:        1,
			AlertsRaised: 2,
			Uptime:       42 * time.Second,
		},
		Results: results,
	}
}

func TestWriteRendersAllCharts(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, sampleData()))

	html := buf.String()
	assert.Contains(t, html, "Eye and Mouth Aspect Ratios")
	assert.Contains(t, html, "Alert Level Timeline")
	assert.Contains(t, html, "Alert Distribution")
	assert.Contains(t, html, "session=a2b9 frames=6 blinks=3 yawns=1 alerts=2")
	assert.Contains(t, html, "CRITICAL")
}

func TestWriteEmptySession(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, Data{Stats: pipeline.Stats{ID: "empty"}}))
	assert.Contains(t, buf.String(), "Alert Distribution")
}

func TestWriteToFile(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "session.html")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, Write(f, sampleData()))
	require.NoError(t, f.Close())

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), "<html>")
}
