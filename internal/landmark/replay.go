package landmark

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/vigilia-data/fatigue.report/internal/geometry"
)

// replayRecord is one line of a JSONL capture: a point set with its offset
// from the start of the recording.
type replayRecord struct {
	OffsetMS int64                   `json:"offset_ms"`
	Width    int                     `json:"width"`
	Height   int                     `json:"height"`
	Points   []geometry.LabeledPoint `json:"points"`
}

// Replay plays back a recorded landmark session from a JSONL file. Like
// StreamReader it serves as both Source and Provider, which lets the full
// pipeline run without a camera or detector attached. Each Poll returns
// the next recorded frame with its timestamp rebased onto the replay start
// time; when Loop is set the recording restarts at the end.
type Replay struct {
	records []replayRecord
	loop    bool

	mu    sync.Mutex
	next  int
	base  time.Time
	cycle time.Duration // one full pass, used to advance timestamps on loop
	pass  int
}

// NewReplay loads a JSONL capture from path.
func NewReplay(path string, loop bool) (*Replay, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open replay: %w", err)
	}
	defer f.Close()
	return NewReplayReader(f, loop)
}

// NewReplayReader loads a JSONL capture from r.
func NewReplayReader(r io.Reader, loop bool) (*Replay, error) {
	var records []replayRecord
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		var rec replayRecord
		if err := json.Unmarshal([]byte(text), &rec); err != nil {
			return nil, fmt.Errorf("replay line %d: %w", line, err)
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read replay: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("replay contains no frames")
	}

	cycle := time.Duration(records[len(records)-1].OffsetMS)*time.Millisecond + time.Second/30
	return &Replay{
		records: records,
		loop:    loop,
		base:    time.Now(),
		cycle:   cycle,
	}, nil
}

// Len returns the number of recorded frames.
func (p *Replay) Len() int { return len(p.records) }

// Poll returns the next recorded frame. The point set travels through
// Frame.Image as JSON, mirroring how the live stream carries CBOR.
func (p *Replay) Poll() (Frame, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.next >= len(p.records) {
		if !p.loop {
			return Frame{}, false
		}
		p.next = 0
		p.pass++
	}
	rec := p.records[p.next]
	p.next++

	payload, err := json.Marshal(rec.Points)
	if err != nil {
		return Frame{}, false
	}
	ts := p.base.
		Add(time.Duration(p.pass) * p.cycle).
		Add(time.Duration(rec.OffsetMS) * time.Millisecond)
	return Frame{
		Timestamp: ts,
		Width:     rec.Width,
		Height:    rec.Height,
		Image:     payload,
	}, true
}

// Detect decodes the JSON point payload carried by a polled frame.
func (p *Replay) Detect(frame Frame) ([]geometry.LabeledPoint, error) {
	if len(frame.Image) == 0 {
		return nil, nil
	}
	var points []geometry.LabeledPoint
	if err := json.Unmarshal(frame.Image, &points); err != nil {
		return nil, fmt.Errorf("decode replay payload: %w", err)
	}
	return points, nil
}
