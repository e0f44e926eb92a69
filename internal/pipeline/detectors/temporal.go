package detectors

import (
	"context"

	"veritas/internal/pipeline"
)

const (
	temporalBase      = 0.4
	temporalGain      = 20.0
	TemporalName      = "temporal"
	temporalMethodTag = "temporal-difference"
)

// TemporalDetector scores a sequence by the mean absolute change between consecutive frames
type TemporalDetector struct{}

// NewTemporalDetector creates a temporal detector
func NewTemporalDetector() *TemporalDetector {
	return &TemporalDetector{}
}

// Name returns the detector identifier
func (d *TemporalDetector) Name() string {
	return TemporalName
}

// Score averages the per-pair mean absolute difference and maps it to
// clamp(0.4 + avg*20). Fewer than two frames give a neutral 0.5.
func (d *TemporalDetector) Score(ctx context.Context, frames []*pipeline.PreprocessedFrame) (pipeline.DetectorScore, error) {
	if len(frames) < 2 {
		return pipeline.DetectorScore{
			Method: temporalMethodTag,
			Score:  neutralScore,
			Diagnostics: map[string]interface{}{
				"method": temporalMethodTag,
				"error":  "insufficient frames",
			},
		}, nil
	}

	diffs := make([]float64, 0, len(frames)-1)
	for i := 0; i+1 < len(frames); i++ {
		diffs = append(diffs, meanAbsDiff(frames[i+1].Pix, frames[i].Pix))
	}
	avg := mean(diffs)

	return pipeline.DetectorScore{
		Method: temporalMethodTag,
		Score:  clamp(temporalBase+avg*temporalGain, 0, 1),
		Diagnostics: map[string]interface{}{
			"method":         temporalMethodTag,
			"avg_difference": avg,
			"pairs":          len(diffs),
		},
	}, nil
}

var _ pipeline.Detector = (*TemporalDetector)(nil)
