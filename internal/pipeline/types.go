package pipeline

import (
	"encoding/json"
	"image"
	"time"
)

// Label is the final classification of an analyzed video
type Label string

const (
	// LabelReal - the fused real-likelihood is above the decision threshold
	LabelReal Label = "REAL"
	// LabelFake - the fused real-likelihood is at or below the decision threshold
	LabelFake Label = "FAKE"
)

// FrameStatus is the per-frame verdict derived from the spatial score
type FrameStatus string

const (
	FrameStatusNormal     FrameStatus = "normal"
	FrameStatusSuspicious FrameStatus = "suspicious"
	FrameStatusNeutral    FrameStatus = "neutral"
)

// Stage names the linear states an analysis moves through
type Stage string

const (
	StageStarted         Stage = "started"
	StageFramesExtracted Stage = "frames_extracted"
	StagePreprocessed    Stage = "preprocessed"
	StageScored          Stage = "scored"
	StageFused           Stage = "fused"
	StageResultAssembled Stage = "result_assembled"
	StageFailed          Stage = "failed"
)

// MsgFailedToExtractFrames is the failure message returned when sampling yields nothing
const MsgFailedToExtractFrames = "Failed to extract frames."

// RawFrame is a decoded frame picked by the sampler
type RawFrame struct {
	Index int         // Decode-order index in the source
	Image image.Image // Decoded pixels, 8 bits per channel
}

// PreprocessedFrame is a fixed-size RGB frame scaled to [0, 1].
// Pix holds Width*Height*3 values in R, G, B order, row-major.
type PreprocessedFrame struct {
	Width  int
	Height int
	Pix    []float32
}

// Len returns the number of values in the frame
func (f *PreprocessedFrame) Len() int {
	return len(f.Pix)
}

// Mean returns the mean of all pixel/channel values
func (f *PreprocessedFrame) Mean() float64 {
	if len(f.Pix) == 0 {
		return 0
	}
	var sum float64
	for _, v := range f.Pix {
		sum += float64(v)
	}
	return sum / float64(len(f.Pix))
}

// FrameScore is the spatial verdict for a single frame
type FrameScore struct {
	Score    float64     `json:"score"`
	Status   FrameStatus `json:"status"`
	Variance float64     `json:"color_variance"`
}

// DetectorScore is the output of a detector pass
type DetectorScore struct {
	Method      string                 `json:"method"`
	Score       float64                `json:"score"`            // Real-likelihood [0-1]
	Diagnostics map[string]interface{} `json:"diagnostics"`      // Reporting only
	Frames      []FrameScore           `json:"frames,omitempty"` // Per-frame breakdown (spatial only)
}

// FramePreview is a persisted sampled frame annotated with its spatial verdict
type FramePreview struct {
	Path     string      `json:"path"`
	Status   FrameStatus `json:"status"`
	Variance float64     `json:"color_variance"`
}

// Details carries each detector's rounded score and diagnostics
type Details struct {
	SpatialScoreReal  float64                `json:"spatial_score_real"`
	TemporalScoreReal float64                `json:"temporal_score_real"`
	GlobalScoreReal   float64                `json:"global_score_real"`
	FusedScoreReal    float64                `json:"fused_score_real"`
	TemporalDetails   map[string]interface{} `json:"temporal_details"`
	GlobalDetails     map[string]interface{} `json:"global_details"`
}

// AnalysisResult is the terminal output of one analysis call.
// Failed results only carry Success=false and Message.
type AnalysisResult struct {
	Success        bool           `json:"success"`
	Message        string         `json:"message,omitempty"`
	Classification Label          `json:"classification"`
	Confidence     float64        `json:"confidence"`      // Percentage (50-100]
	FramesAnalyzed int            `json:"frames_analyzed"` // Number of sampled frames
	ProcessingTime float64        `json:"processing_time"` // Seconds, 2 decimals
	Filename       string         `json:"filename"`
	FramePreviews  []FramePreview `json:"frame_previews"`
	Details        *Details       `json:"details"`

	// Set by the result store
	ResultID  string     `json:"result_id,omitempty"`
	OwnerID   string     `json:"owner_id,omitempty"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

type failedResultJSON struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// MarshalJSON emits the full result shape on success and only
// success/message on failure
func (r AnalysisResult) MarshalJSON() ([]byte, error) {
	if !r.Success {
		return json.Marshal(failedResultJSON{Success: false, Message: r.Message})
	}
	type plain AnalysisResult
	out := plain(r)
	if out.FramePreviews == nil {
		out.FramePreviews = []FramePreview{}
	}
	return json.Marshal(out)
}

// Failed builds an unsuccessful result with a human-readable message
func Failed(message string) *AnalysisResult {
	return &AnalysisResult{Success: false, Message: message}
}
