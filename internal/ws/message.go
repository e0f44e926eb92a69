package ws

import (
	"time"

	"veritas/internal/pipeline"
)

// ResultMessage announces a completed analysis to its owner's subscribers
type ResultMessage struct {
	Type           string         `json:"type"` // "analysis_result"
	OwnerID        string         `json:"owner_id"`
	ResultID       string         `json:"result_id"`
	Timestamp      time.Time      `json:"timestamp"`
	Filename       string         `json:"filename"`
	Classification pipeline.Label `json:"classification"`
	Confidence     float64        `json:"confidence"`
	FramesAnalyzed int            `json:"frames_analyzed"`
}

// NewResultMessage builds the notification for a stored result
func NewResultMessage(result *pipeline.AnalysisResult) *ResultMessage {
	ts := time.Now()
	if result.Timestamp != nil {
		ts = *result.Timestamp
	}
	return &ResultMessage{
		Type:           "analysis_result",
		OwnerID:        result.OwnerID,
		ResultID:       result.ResultID,
		Timestamp:      ts,
		Filename:       result.Filename,
		Classification: result.Classification,
		Confidence:     result.Confidence,
		FramesAnalyzed: result.FramesAnalyzed,
	}
}
