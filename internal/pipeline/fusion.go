package pipeline

import (
	"fmt"
	"math"
)

// DecisionThreshold is the fused score a video must exceed to be labelled REAL
const DecisionThreshold = 0.5

// Weights is the immutable weight profile of a FusionEngine
type Weights struct {
	Spatial  float64 `json:"spatial"`
	Temporal float64 `json:"temporal"`
	Global   float64 `json:"global"`
}

// DefaultWeights returns the standard profile: spatial 0.4, temporal 0.3, global 0.3
func DefaultWeights() Weights {
	return Weights{Spatial: 0.4, Temporal: 0.3, Global: 0.3}
}

// Validate checks the weights are non-negative and sum to 1
func (w Weights) Validate() error {
	if w.Spatial < 0 || w.Temporal < 0 || w.Global < 0 {
		return fmt.Errorf("fusion weights must be non-negative: %+v", w)
	}
	sum := w.Spatial + w.Temporal + w.Global
	if math.Abs(sum-1.0) > 1e-9 {
		return fmt.Errorf("fusion weights must sum to 1.0, got %.6f", sum)
	}
	return nil
}

// Verdict is the outcome of fusing the three detector scores
type Verdict struct {
	Score      float64 // Fused real-likelihood [0-1]
	Label      Label
	Confidence float64 // Percentage, rounded to 2 decimals
}

// FusionEngine combines detector scores with a fixed weight profile
type FusionEngine struct {
	weights Weights
}

// NewFusionEngine creates an engine bound to the given weights
func NewFusionEngine(weights Weights) (*FusionEngine, error) {
	if err := weights.Validate(); err != nil {
		return nil, err
	}
	return &FusionEngine{weights: weights}, nil
}

// Weights returns the engine's weight profile
func (e *FusionEngine) Weights() Weights {
	return e.weights
}

// Fuse computes the weighted score, label and confidence.
// spatial is the mean spatial score over previewed frames.
func (e *FusionEngine) Fuse(spatial, temporal, global float64) Verdict {
	fused := clamp(
		e.weights.Spatial*spatial+e.weights.Temporal*temporal+e.weights.Global*global,
		0, 1,
	)

	label := LabelFake
	confidence := 1.0 - fused
	if fused > DecisionThreshold {
		label = LabelReal
		confidence = fused
	}

	return Verdict{
		Score:      fused,
		Label:      label,
		Confidence: round(confidence*100, 2),
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
