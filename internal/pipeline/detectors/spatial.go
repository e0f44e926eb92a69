package detectors

import (
	"context"

	"veritas/internal/pipeline"
)

// Spatial score mapping and status thresholds
const (
	spatialBase      = 0.3
	spatialGain      = 10.0
	normalAbove      = 0.6
	suspiciousBelow  = 0.4
	neutralScore     = 0.5
	SpatialName      = "spatial"
	spatialMethodTag = "spatial-variance"
)

// SpatialDetector scores single frames by their pixel variance.
// Low variance reads as flat, synthetic content.
type SpatialDetector struct{}

// NewSpatialDetector creates a spatial detector
func NewSpatialDetector() *SpatialDetector {
	return &SpatialDetector{}
}

// Name returns the detector identifier
func (d *SpatialDetector) Name() string {
	return SpatialName
}

// ScoreFrame scores one frame: clamp(0.3 + variance*10) with its status
func (d *SpatialDetector) ScoreFrame(frame *pipeline.PreprocessedFrame) pipeline.FrameScore {
	v := variance(frame.Pix)
	score := clamp(spatialBase+v*spatialGain, 0, 1)
	return pipeline.FrameScore{
		Score:    score,
		Status:   StatusFor(score),
		Variance: v,
	}
}

// Score scores each frame and returns their mean.
// With no frames the score is a neutral 0.5.
func (d *SpatialDetector) Score(ctx context.Context, frames []*pipeline.PreprocessedFrame) (pipeline.DetectorScore, error) {
	result := pipeline.DetectorScore{
		Method:      spatialMethodTag,
		Score:       neutralScore,
		Diagnostics: map[string]interface{}{"method": spatialMethodTag},
		Frames:      make([]pipeline.FrameScore, 0, len(frames)),
	}
	if len(frames) == 0 {
		result.Diagnostics["error"] = "no frames"
		return result, nil
	}

	scores := make([]float64, 0, len(frames))
	for _, f := range frames {
		fs := d.ScoreFrame(f)
		result.Frames = append(result.Frames, fs)
		scores = append(scores, fs.Score)
	}
	result.Score = mean(scores)
	result.Diagnostics["frames_scored"] = len(frames)
	return result, nil
}

// StatusFor maps a spatial score to its status.
// Scores of exactly 0.4 or 0.6 are neutral.
func StatusFor(score float64) pipeline.FrameStatus {
	switch {
	case score > normalAbove:
		return pipeline.FrameStatusNormal
	case score < suspiciousBelow:
		return pipeline.FrameStatusSuspicious
	default:
		return pipeline.FrameStatusNeutral
	}
}

var _ pipeline.Detector = (*SpatialDetector)(nil)
