package pipeline

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vigilia-data/fatigue.report/internal/classify"
	"github.com/vigilia-data/fatigue.report/internal/fusion"
	"github.com/vigilia-data/fatigue.report/internal/geometry"
	"github.com/vigilia-data/fatigue.report/internal/headpose"
)

// Session owns all per-session detection state: the three classifiers, the
// fusion engine and the in-memory result history. The detection stage
// mutates it while export and query collaborators read concurrently, so all
// access goes through the session mutex.
type Session struct {
	mu sync.Mutex

	id        string
	startedAt time.Time
	cfg       classify.Config

	eyes    *classify.EyeClassifier
	mouth   *classify.MouthClassifier
	head    *classify.HeadClassifier
	engine  *fusion.Engine
	history *fusion.History
}

// NewSession builds a session with the given validated tuning.
func NewSession(cfg classify.Config) *Session {
	return &Session{
		id:        uuid.New().String(),
		startedAt: time.Now(),
		cfg:       cfg,
		eyes:      classify.NewEyeClassifier(cfg.Eye),
		mouth:     classify.NewMouthClassifier(cfg.Mouth),
		head:      classify.NewHeadClassifier(cfg.Head),
		engine:    fusion.NewEngine(cfg.Fusion),
		history:   fusion.NewHistory(fusion.DefaultHistoryCapacity),
	}
}

// ID returns the session identifier.
func (s *Session) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

// History exposes the session's detection history for query collaborators.
func (s *Session) History() *fusion.History { return s.history }

// Process runs one frame's landmark points through extraction,
// classification and fusion, records the result in the history and returns
// it. Missing regions leave their signal out of fusion; an empty point set
// produces the neutral no-face result.
func (s *Session) Process(points []geometry.LabeledPoint, width, height int, now time.Time) fusion.DetectionResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	regions := geometry.ExtractRegions(points)
	if regions.Empty() {
		result := s.engine.NoFace(now)
		s.history.Add(result)
		return result
	}

	var sig fusion.Signals
	eyeState := classify.EyeOpen
	mouthState := classify.MouthClosed
	headState := classify.HeadNormal

	if regions.HasEyes() {
		sig.EAR = geometry.CombinedEyeAspectRatio(regions.LeftEye, regions.RightEye)
		sig.HasEAR = true
		eyeState = s.eyes.Observe(sig.EAR, now)
	}
	if regions.HasMouth() {
		sig.MAR = geometry.MouthAspectRatio(regions.Mouth)
		sig.HasMAR = true
		mouthState = s.mouth.Observe(sig.MAR, now)
	}
	if pts, ok := headpose.ImagePoints(regions); ok {
		pose, err := headpose.Solve(pts, headpose.NewCamera(width, height))
		if err == nil {
			sig.Pose = fusion.PoseSample{Pitch: pose.Pitch, Yaw: pose.Yaw, Roll: pose.Roll}
			sig.HasPose = true
			headState = s.head.Observe(pose.Pitch, now)
		} else {
			Tracef("pose unavailable: %v", err)
		}
	}

	result := s.engine.Fuse(sig, eyeState, mouthState, headState, now)
	s.history.Add(result)
	return result
}

// Stats is a point-in-time summary of the session.
type Stats struct {
	ID            string         `json:"id"`
	StartedAt     time.Time      `json:"started_at"`
	Uptime        time.Duration  `json:"uptime_ns"`
	Blinks        int            `json:"blinks"`
	Yawns         int            `json:"yawns"`
	FramesFused   int            `json:"frames_fused"`
	FacesDetected int            `json:"faces_detected"`
	AlertsRaised  int            `json:"alerts_raised"`
	EyeStats      classify.Stats `json:"eye_stats"`
	MouthStats    classify.Stats `json:"mouth_stats"`
	HeadStats     classify.Stats `json:"head_stats"`
}

// Stats summarises the session so far.
func (s *Session) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		ID:            s.id,
		StartedAt:     s.startedAt,
		Uptime:        time.Since(s.startedAt),
		Blinks:        s.eyes.Blinks(),
		Yawns:         s.mouth.Yawns(),
		FramesFused:   s.engine.FramesFused(),
		FacesDetected: s.engine.FacesDetected(),
		AlertsRaised:  s.engine.AlertsRaised(),
		EyeStats:      s.eyes.Stats(),
		MouthStats:    s.mouth.Stats(),
		HeadStats:     s.head.Stats(),
	}
}

// Reset starts a fresh session in place: new identifier, cleared
// classifiers, engine and history.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.id = uuid.New().String()
	s.startedAt = time.Now()
	s.eyes.Reset()
	s.mouth.Reset()
	s.head.Reset()
	s.engine.Reset()
	s.history.Clear()
}
