package detectors

import (
	"context"

	"veritas/internal/pipeline"
)

const (
	globalBase      = 0.7
	globalGain      = 5.0
	GlobalName      = "global"
	globalMethodTag = "global-consistency"
)

// GlobalConsistencyDetector scores a sequence by how much per-frame brightness drifts
type GlobalConsistencyDetector struct{}

// NewGlobalConsistencyDetector creates a global consistency detector
func NewGlobalConsistencyDetector() *GlobalConsistencyDetector {
	return &GlobalConsistencyDetector{}
}

// Name returns the detector identifier
func (d *GlobalConsistencyDetector) Name() string {
	return GlobalName
}

// Score maps the standard deviation of per-frame means to clamp(0.7 - std*5).
// An empty sequence gives a neutral 0.5.
func (d *GlobalConsistencyDetector) Score(ctx context.Context, frames []*pipeline.PreprocessedFrame) (pipeline.DetectorScore, error) {
	if len(frames) == 0 {
		return pipeline.DetectorScore{
			Method: globalMethodTag,
			Score:  neutralScore,
			Diagnostics: map[string]interface{}{
				"method": globalMethodTag,
				"error":  "no frames",
			},
		}, nil
	}

	means := make([]float64, len(frames))
	for i, f := range frames {
		means[i] = f.Mean()
	}
	dispersion := stddev(means)

	return pipeline.DetectorScore{
		Method: globalMethodTag,
		Score:  clamp(globalBase-dispersion*globalGain, 0, 1),
		Diagnostics: map[string]interface{}{
			"method":          globalMethodTag,
			"consistency_std": dispersion,
		},
	}, nil
}

var _ pipeline.Detector = (*GlobalConsistencyDetector)(nil)
