package landmark

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/vigilia-data/fatigue.report/internal/geometry"
	"github.com/vigilia-data/fatigue.report/internal/monitoring"
)

// streamMessage is one detector sidecar message. The sidecar runs the
// actual landmark model and streams CBOR-encoded point sets over a pipe or
// socket. Points stays raw so the payload can ride through Frame.Image
// without a decode/re-encode round trip.
type streamMessage struct {
	TimestampMS int64           `cbor:"ts_ms"`
	Width       int             `cbor:"width"`
	Height      int             `cbor:"height"`
	Points      cbor.RawMessage `cbor:"points"`
}

// wirePoint is the sidecar's point encoding, matching geometry.LabeledPoint.
type wirePoint struct {
	Region string  `cbor:"region"`
	Index  int     `cbor:"index"`
	X      float64 `cbor:"x"`
	Y      float64 `cbor:"y"`
	Z      float64 `cbor:"z"`
}

// StreamReader consumes a CBOR stream of landmark messages from a detector
// sidecar. It implements both Source and Provider: the reader goroutine
// keeps only the newest unread message, Poll hands it to the acquisition
// stage, and Detect decodes the point payload in the detection stage.
type StreamReader struct {
	mu     sync.Mutex
	latest *Frame
	err    error
	closed bool

	done chan struct{}
}

// NewStreamReader starts consuming messages from r. The reader goroutine
// exits when r reaches EOF or fails; Err reports the terminal error.
func NewStreamReader(r io.Reader) *StreamReader {
	s := &StreamReader{done: make(chan struct{})}
	go s.readLoop(r)
	return s
}

func (s *StreamReader) readLoop(r io.Reader) {
	defer close(s.done)
	dec := cbor.NewDecoder(r)
	for {
		var msg streamMessage
		if err := dec.Decode(&msg); err != nil {
			s.mu.Lock()
			s.closed = true
			if err != io.EOF {
				s.err = fmt.Errorf("landmark stream: %w", err)
				monitoring.Logf("landmark stream ended: %v", err)
			}
			s.mu.Unlock()
			return
		}
		frame := Frame{
			Timestamp: time.UnixMilli(msg.TimestampMS),
			Width:     msg.Width,
			Height:    msg.Height,
			Image:     msg.Points,
		}
		s.mu.Lock()
		// Keep only the newest unread message; the pipeline has its own
		// bounded queue and stale landmark sets are worthless.
		s.latest = &frame
		s.mu.Unlock()
	}
}

// Poll returns the newest unread frame, if any.
func (s *StreamReader) Poll() (Frame, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.latest == nil {
		return Frame{}, false
	}
	frame := *s.latest
	s.latest = nil
	return frame, true
}

// Detect decodes the CBOR point payload carried by a polled frame.
func (s *StreamReader) Detect(frame Frame) ([]geometry.LabeledPoint, error) {
	if len(frame.Image) == 0 {
		return nil, nil
	}
	var wire []wirePoint
	if err := cbor.Unmarshal(frame.Image, &wire); err != nil {
		return nil, fmt.Errorf("decode landmark payload: %w", err)
	}
	points := make([]geometry.LabeledPoint, len(wire))
	for i, p := range wire {
		points[i] = geometry.LabeledPoint{
			Region: geometry.Region(p.Region),
			Index:  p.Index,
			X:      p.X,
			Y:      p.Y,
			Z:      p.Z,
		}
	}
	return points, nil
}

// Closed reports whether the underlying stream has ended.
func (s *StreamReader) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Err returns the terminal stream error, nil for a clean EOF.
func (s *StreamReader) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Done is closed when the reader goroutine exits.
func (s *StreamReader) Done() <-chan struct{} { return s.done }
