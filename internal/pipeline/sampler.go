package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"veritas/internal/metrics"
)

// Sampling defaults
const (
	DefaultStride       = 5
	DefaultMaxFrames    = 20
	DefaultPreviewLimit = 5
)

// SamplerConfig controls which decoded frames are kept.
// Non-positive fields fall back to the defaults.
type SamplerConfig struct {
	Stride       int // Keep every Nth decoded frame
	MaxFrames    int // Cap on kept frames
	PreviewLimit int // Number of leading kept frames persisted as previews
}

// DefaultSamplerConfig returns stride 5, 20 frames, 5 previews
func DefaultSamplerConfig() SamplerConfig {
	return SamplerConfig{
		Stride:       DefaultStride,
		MaxFrames:    DefaultMaxFrames,
		PreviewLimit: DefaultPreviewLimit,
	}
}

func (c SamplerConfig) withDefaults() SamplerConfig {
	if c.Stride <= 0 {
		c.Stride = DefaultStride
	}
	if c.MaxFrames <= 0 {
		c.MaxFrames = DefaultMaxFrames
	}
	if c.PreviewLimit <= 0 {
		c.PreviewLimit = DefaultPreviewLimit
	}
	return c
}

// SampleResult holds the kept frames and the preview path of each preview slot.
// PreviewPaths[i] belongs to Frames[i]; an empty path means the write failed.
type SampleResult struct {
	Frames       []RawFrame
	PreviewPaths []string
}

// FrameSampler decodes a video sequentially and keeps a bounded, strided subset
type FrameSampler struct {
	opener SourceOpener
	store  PreviewStore
	config SamplerConfig
	logger *zap.Logger
}

// NewFrameSampler creates a sampler reading through opener and writing previews to store
func NewFrameSampler(opener SourceOpener, store PreviewStore, config SamplerConfig, logger *zap.Logger) *FrameSampler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FrameSampler{
		opener: opener,
		store:  store,
		config: config.withDefaults(),
		logger: logger.With(zap.String("component", "frame-sampler")),
	}
}

// Config returns the effective sampling configuration
func (s *FrameSampler) Config() SamplerConfig {
	return s.config
}

// Sample decodes videoPath from the start and keeps frames whose decode index
// is a multiple of the stride, until MaxFrames are kept or the stream ends.
// An unopenable source yields an empty result. Truncated streams yield what
// was decoded before the failure.
func (s *FrameSampler) Sample(ctx context.Context, videoPath string) *SampleResult {
	result := &SampleResult{}

	source, err := s.opener.Open(ctx, videoPath)
	if err != nil {
		s.logger.Error("could not open video", zap.String("path", videoPath), zap.Error(err))
		return result
	}
	defer func() {
		if err := source.Close(); err != nil {
			s.logger.Debug("closing video source", zap.String("path", videoPath), zap.Error(err))
		}
	}()

	decodeIndex := 0
	for len(result.Frames) < s.config.MaxFrames {
		img, err := source.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			s.logger.Warn("decode stopped mid-stream",
				zap.String("path", videoPath),
				zap.Int("decoded", decodeIndex),
				zap.Error(err),
			)
			break
		}

		if decodeIndex%s.config.Stride == 0 {
			slot := len(result.Frames)
			result.Frames = append(result.Frames, RawFrame{Index: decodeIndex, Image: img})
			if slot < s.config.PreviewLimit {
				result.PreviewPaths = append(result.PreviewPaths, s.persistPreview(ctx, img, slot))
			}
		}
		decodeIndex++
	}

	metrics.FramesSampledTotal.Add(float64(len(result.Frames)))
	s.logger.Info("frames sampled",
		zap.String("path", videoPath),
		zap.Int("decoded", decodeIndex),
		zap.Int("sampled", len(result.Frames)),
		zap.Int("previews", len(result.PreviewPaths)),
	)
	return result
}

// persistPreview writes a preview and returns its path, or "" if the write failed
func (s *FrameSampler) persistPreview(ctx context.Context, img image.Image, slot int) string {
	if s.store == nil {
		return ""
	}
	name := previewName(slot)
	path, err := s.store.Save(ctx, name, img)
	if err != nil {
		metrics.PreviewWriteFailuresTotal.Inc()
		s.logger.Warn("preview write failed", zap.String("name", name), zap.Error(err))
		return ""
	}
	return path
}

// previewName returns frame_<8 random hex>_<slot>.jpg
func previewName(slot int) string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return fmt.Sprintf("frame_%s_%d.jpg", id[:8], slot)
}
