// Package landmark defines the boundary to the external facial landmark
// detector: the raw frame handed to it and the labeled point set it
// returns. Two concrete providers are included, a CBOR stream reader fed by
// a detector sidecar and a JSONL replay reader for simulation and tests.
package landmark

import (
	"time"

	"github.com/vigilia-data/fatigue.report/internal/geometry"
)

// Frame is one captured camera frame. Image is an opaque payload owned by
// the provider; the engine never interprets it.
type Frame struct {
	Timestamp time.Time
	Width     int
	Height    int
	Image     []byte
}

// Source supplies frames to the acquisition stage. Poll must not block; it
// returns ok=false when no new frame is available.
type Source interface {
	Poll() (Frame, bool)
}

// Provider turns a frame into a labeled landmark point set. An empty slice
// means no face was found, which is a normal outcome, not an error. Errors
// are reserved for provider-level faults (stream broken, decode failure);
// the detection stage logs them and moves on to the next frame.
type Provider interface {
	Detect(frame Frame) ([]geometry.LabeledPoint, error)
}

// ProviderFunc adapts a plain function to the Provider interface.
type ProviderFunc func(frame Frame) ([]geometry.LabeledPoint, error)

func (f ProviderFunc) Detect(frame Frame) ([]geometry.LabeledPoint, error) { return f(frame) }
