package services

import (
	"context"
	"fmt"
	"time"

	"veritas/internal/pipeline"
)

// ResultCounter reports how many results are stored
type ResultCounter interface {
	CountResults(ctx context.Context) (int, error)
}

// DetectorLister lists registered detectors
type DetectorLister interface {
	Names() []string
}

// ClientCounter reports connected live-feed clients
type ClientCounter interface {
	ClientCount() int
}

// SystemStatus summarizes the running service
type SystemStatus struct {
	Status           string           `json:"status"`
	UptimeSeconds    float64          `json:"uptime_seconds"`
	StoredResults    int              `json:"stored_results"`
	Detectors        []string         `json:"detectors"`
	Weights          pipeline.Weights `json:"weights"`
	Sampling         SamplingStatus   `json:"sampling"`
	SupportedFormats []string         `json:"supported_formats"`
	MaxUploadBytes   int64            `json:"max_upload_bytes"`
	LiveClients      int              `json:"live_clients"`
}

// SamplingStatus echoes the effective sampler settings
type SamplingStatus struct {
	Stride       int `json:"stride"`
	MaxFrames    int `json:"max_frames"`
	PreviewLimit int `json:"preview_limit"`
}

// PipelineInfo exposes the pipeline's fixed configuration
type PipelineInfo interface {
	Weights() pipeline.Weights
	SamplerConfig() pipeline.SamplerConfig
}

// SystemService reports overall service status
type SystemService struct {
	results   ResultCounter
	detectors DetectorLister
	pipeline  PipelineInfo
	analysis  *AnalysisService
	clients   ClientCounter
	startTime time.Time
}

// NewSystemService creates a new system service; clients may be nil
func NewSystemService(results ResultCounter, detectors DetectorLister, info PipelineInfo, analysis *AnalysisService, clients ClientCounter) *SystemService {
	return &SystemService{
		results:   results,
		detectors: detectors,
		pipeline:  info,
		analysis:  analysis,
		clients:   clients,
		startTime: time.Now(),
	}
}

// Status returns the overall system status
func (s *SystemService) Status(ctx context.Context) (*SystemStatus, error) {
	count, err := s.results.CountResults(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count results: %w", err)
	}

	sampler := s.pipeline.SamplerConfig()
	status := &SystemStatus{
		Status:        "running",
		UptimeSeconds: time.Since(s.startTime).Seconds(),
		StoredResults: count,
		Detectors:     s.detectors.Names(),
		Weights:       s.pipeline.Weights(),
		Sampling: SamplingStatus{
			Stride:       sampler.Stride,
			MaxFrames:    sampler.MaxFrames,
			PreviewLimit: sampler.PreviewLimit,
		},
	}
	if s.analysis != nil {
		status.SupportedFormats = s.analysis.SupportedFormats()
		status.MaxUploadBytes = s.analysis.MaxUploadBytes()
	}
	if s.clients != nil {
		status.LiveClients = s.clients.ClientCount()
	}
	return status, nil
}
