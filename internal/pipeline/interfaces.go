package pipeline

import (
	"context"
	"image"
	"io"
)

// FrameSource yields decoded frames of one video in decode order
type FrameSource interface {
	// Next returns the next decoded frame.
	// It returns io.EOF once the stream is exhausted; any other error means
	// the stream was truncated and no further frames are available.
	Next() (image.Image, error)

	// Close releases the decoder and any underlying process or file
	Close() error
}

// SourceOpener opens a video file for sequential decoding
type SourceOpener interface {
	// Open returns a FrameSource positioned at the first frame.
	// An error means the source cannot be opened or decoded at all.
	Open(ctx context.Context, path string) (FrameSource, error)
}

// PreviewStore persists preview images for later reporting
type PreviewStore interface {
	// Save encodes img under name and returns its storage path
	Save(ctx context.Context, name string, img image.Image) (string, error)

	// Open returns the encoded image stored at path
	Open(ctx context.Context, path string) (io.ReadCloser, error)
}

// Detector is the shared scoring capability of all detectors.
// Heuristic implementations never fail; model-backed ones may.
type Detector interface {
	// Name returns the detector identifier (e.g., "spatial", "temporal", "global")
	Name() string

	// Score returns the real-likelihood of the given frames plus diagnostics
	Score(ctx context.Context, frames []*PreprocessedFrame) (DetectorScore, error)
}

// DetectorRegistry manages available detectors
type DetectorRegistry interface {
	// Register adds a detector to the registry
	Register(detector Detector) error

	// Get returns a detector by name
	Get(name string) (Detector, bool)

	// Names returns registered detector names, sorted
	Names() []string
}

// DetectorSet binds a detector to each scoring role of the pipeline
type DetectorSet struct {
	Spatial  Detector // Scores previewed frames individually
	Temporal Detector // Scores the full sequence for frame-to-frame change
	Global   Detector // Scores the full sequence for brightness consistency
}
