// Package sqlite persists detection results and alert records for the
// history/persistence sink. The store is append-only; queries serve the
// monitoring API and session reports.
package sqlite

import (
	"database/sql"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/vigilia-data/fatigue.report/internal/fusion"
)

// Store wraps the history database. *sql.DB is safe for concurrent use, so
// the detection stage appends while API handlers query.
type Store struct {
	db *sql.DB
}

// Open creates or opens the history database at path. Use ":memory:" for
// tests.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS detections (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			timestamp TIMESTAMP NOT NULL,
			face_detected BOOLEAN NOT NULL,
			ear DOUBLE NOT NULL,
			mar DOUBLE NOT NULL,
			pitch DOUBLE,
			eye_state TEXT NOT NULL,
			mouth_state TEXT NOT NULL,
			head_state TEXT NOT NULL,
			alert_level TEXT NOT NULL,
			fatigue_state TEXT NOT NULL,
			confidence DOUBLE NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_detections_session
			ON detections(session_id, timestamp);
		CREATE TABLE IF NOT EXISTS alerts (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			timestamp TIMESTAMP NOT NULL,
			alert_level TEXT NOT NULL,
			fatigue_state TEXT NOT NULL,
			confidence DOUBLE NOT NULL,
			factors TEXT NOT NULL,
			recommendation TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_alerts_session
			ON alerts(session_id, timestamp);
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create history schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the database.
func (s *Store) Close() error { return s.db.Close() }

// AppendDetection stores one detection result for the given session. HIGH
// and CRITICAL results additionally produce an alert record.
func (s *Store) AppendDetection(sessionID string, r fusion.DetectionResult) error {
	var pitch any
	if r.Pose != nil {
		pitch = r.Pose.Pitch
	}
	_, err := s.db.Exec(`
		INSERT INTO detections
			(id, session_id, timestamp, face_detected, ear, mar, pitch,
			 eye_state, mouth_state, head_state, alert_level, fatigue_state, confidence)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.New().String(), sessionID, r.Timestamp, r.FaceDetected, r.EAR, r.MAR, pitch,
		r.EyeState.String(), r.MouthState.String(), r.HeadState.String(),
		r.AlertLevel.String(), r.FatigueState.String(), r.Confidence)
	if err != nil {
		return fmt.Errorf("append detection: %w", err)
	}

	if r.AlertLevel >= fusion.AlertHigh {
		factors, err := json.Marshal(r.ContributingFactors)
		if err != nil {
			return fmt.Errorf("encode factors: %w", err)
		}
		_, err = s.db.Exec(`
			INSERT INTO alerts
				(id, session_id, timestamp, alert_level, fatigue_state,
				 confidence, factors, recommendation)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			uuid.New().String(), sessionID, r.Timestamp, r.AlertLevel.String(),
			r.FatigueState.String(), r.Confidence, string(factors), r.Recommendation)
		if err != nil {
			return fmt.Errorf("append alert: %w", err)
		}
	}
	return nil
}

// AlertRecord is one persisted alert row.
type AlertRecord struct {
	ID             string    `json:"id"`
	SessionID      string    `json:"session_id"`
	Timestamp      time.Time `json:"timestamp"`
	AlertLevel     string    `json:"alert_level"`
	FatigueState   string    `json:"fatigue_state"`
	Confidence     float64   `json:"confidence"`
	Factors        []string  `json:"factors"`
	Recommendation string    `json:"recommendation"`
}

// RecentAlerts returns up to limit alerts for the session, newest first.
func (s *Store) RecentAlerts(sessionID string, limit int) ([]AlertRecord, error) {
	rows, err := s.db.Query(`
		SELECT id, session_id, timestamp, alert_level, fatigue_state,
		       confidence, factors, recommendation
		FROM alerts WHERE session_id = ?
		ORDER BY timestamp DESC LIMIT ?`, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("query alerts: %w", err)
	}
	defer rows.Close()

	var records []AlertRecord
	for rows.Next() {
		var rec AlertRecord
		var factors string
		if err := rows.Scan(&rec.ID, &rec.SessionID, &rec.Timestamp, &rec.AlertLevel,
			&rec.FatigueState, &rec.Confidence, &factors, &rec.Recommendation); err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}
		if err := json.Unmarshal([]byte(factors), &rec.Factors); err != nil {
			return nil, fmt.Errorf("decode factors: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// DetectionRecord is one persisted detection row.
type DetectionRecord struct {
	ID           string    `json:"id"`
	SessionID    string    `json:"session_id"`
	Timestamp    time.Time `json:"timestamp"`
	FaceDetected bool      `json:"face_detected"`
	EAR          float64   `json:"ear"`
	MAR          float64   `json:"mar"`
	Pitch        *float64  `json:"pitch,omitempty"`
	EyeState     string    `json:"eye_state"`
	MouthState   string    `json:"mouth_state"`
	HeadState    string    `json:"head_state"`
	AlertLevel   string    `json:"alert_level"`
	FatigueState string    `json:"fatigue_state"`
	Confidence   float64   `json:"confidence"`
}

// RecentDetections returns up to limit detections for the session, newest
// first.
func (s *Store) RecentDetections(sessionID string, limit int) ([]DetectionRecord, error) {
	rows, err := s.db.Query(`
		SELECT id, session_id, timestamp, face_detected, ear, mar, pitch,
		       eye_state, mouth_state, head_state, alert_level, fatigue_state, confidence
		FROM detections WHERE session_id = ?
		ORDER BY timestamp DESC LIMIT ?`, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("query detections: %w", err)
	}
	defer rows.Close()

	var records []DetectionRecord
	for rows.Next() {
		var rec DetectionRecord
		if err := rows.Scan(&rec.ID, &rec.SessionID, &rec.Timestamp, &rec.FaceDetected,
			&rec.EAR, &rec.MAR, &rec.Pitch, &rec.EyeState, &rec.MouthState,
			&rec.HeadState, &rec.AlertLevel, &rec.FatigueState, &rec.Confidence); err != nil {
			return nil, fmt.Errorf("scan detection: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Record implements the pipeline's persistence hook.
func (s *Store) Record(sessionID string, r fusion.DetectionResult) error {
	return s.AppendDetection(sessionID, r)
}

// SessionSummary aggregates a session's persisted rows.
type SessionSummary struct {
	SessionID     string         `json:"session_id"`
	Detections    int            `json:"detections"`
	FacesDetected int            `json:"faces_detected"`
	AlertCounts   map[string]int `json:"alert_counts"`
	AvgConfidence float64        `json:"avg_confidence"`
	SeverityScore float64        `json:"severity_score"`
}

// severityWeights scores alert levels for the session severity metric.
var severityWeights = map[string]float64{
	"LOW":      1,
	"MEDIUM":   2,
	"HIGH":     4,
	"CRITICAL": 8,
}

// Summarize aggregates all detections stored for the session. The severity
// score is the level-weighted alert count normalised by total detections.
func (s *Store) Summarize(sessionID string) (SessionSummary, error) {
	rows, err := s.db.Query(`
		SELECT alert_level, COUNT(*), SUM(face_detected), AVG(confidence)
		FROM detections WHERE session_id = ?
		GROUP BY alert_level`, sessionID)
	if err != nil {
		return SessionSummary{}, fmt.Errorf("query summary: %w", err)
	}
	defer rows.Close()

	summary := SessionSummary{SessionID: sessionID, AlertCounts: map[string]int{}}
	var confidenceWeighted float64
	var weighted float64
	for rows.Next() {
		var level string
		var count, faces int
		var avgConfidence float64
		if err := rows.Scan(&level, &count, &faces, &avgConfidence); err != nil {
			return SessionSummary{}, fmt.Errorf("scan summary: %w", err)
		}
		summary.AlertCounts[level] = count
		summary.Detections += count
		summary.FacesDetected += faces
		confidenceWeighted += avgConfidence * float64(count)
		weighted += severityWeights[level] * float64(count)
	}
	if err := rows.Err(); err != nil {
		return SessionSummary{}, err
	}
	if summary.Detections > 0 {
		summary.AvgConfidence = confidenceWeighted / float64(summary.Detections)
		summary.SeverityScore = weighted / float64(summary.Detections)
	}
	return summary, nil
}

// ExportJSON writes the session's alert records to w as a JSON array.
func (s *Store) ExportJSON(w io.Writer, sessionID string, limit int) error {
	records, err := s.RecentAlerts(sessionID, limit)
	if err != nil {
		return err
	}
	if records == nil {
		records = []AlertRecord{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(records)
}

// ExportCSV writes the session's alert records to w as CSV.
func (s *Store) ExportCSV(w io.Writer, sessionID string, limit int) error {
	records, err := s.RecentAlerts(sessionID, limit)
	if err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"id", "session_id", "timestamp", "alert_level",
		"fatigue_state", "confidence", "factors", "recommendation"}); err != nil {
		return err
	}
	for _, rec := range records {
		factors, err := json.Marshal(rec.Factors)
		if err != nil {
			return err
		}
		if err := cw.Write([]string{
			rec.ID, rec.SessionID, rec.Timestamp.Format(time.RFC3339Nano),
			rec.AlertLevel, rec.FatigueState,
			strconv.FormatFloat(rec.Confidence, 'f', -1, 64),
			string(factors), rec.Recommendation,
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
