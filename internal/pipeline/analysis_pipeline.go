package pipeline

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"veritas/internal/metrics"
)

var tracer = otel.Tracer("veritas/pipeline")

// PipelineConfig tunes one AnalysisPipeline
type PipelineConfig struct {
	Sampler     SamplerConfig
	TargetSize  int     // Edge length frames are resized to
	Weights     Weights // Fusion weight profile
	Parallelism int     // Max concurrent preprocess workers, <= 0 means GOMAXPROCS
	KeepSource  bool    // Leave the input file in place after analysis
}

// DefaultPipelineConfig returns the standard sampling, 224x224 frames and 0.4/0.3/0.3 fusion
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		Sampler:    DefaultSamplerConfig(),
		TargetSize: DefaultTargetSize,
		Weights:    DefaultWeights(),
	}
}

// AnalysisPipeline runs sample, preprocess, score, fuse and assemble for one video at a time.
// It holds no per-call state and is safe for concurrent use.
type AnalysisPipeline struct {
	config       PipelineConfig
	sampler      *FrameSampler
	preprocessor *FramePreprocessor
	detectors    DetectorSet
	fusion       *FusionEngine
	logger       *zap.Logger
}

// NewAnalysisPipeline wires a pipeline from its collaborators
func NewAnalysisPipeline(
	opener SourceOpener,
	store PreviewStore,
	detectors DetectorSet,
	config PipelineConfig,
	logger *zap.Logger,
) (*AnalysisPipeline, error) {
	if opener == nil {
		return nil, fmt.Errorf("source opener cannot be nil")
	}
	if detectors.Spatial == nil || detectors.Temporal == nil || detectors.Global == nil {
		return nil, fmt.Errorf("detector set is incomplete")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	fusion, err := NewFusionEngine(config.Weights)
	if err != nil {
		return nil, fmt.Errorf("failed to create fusion engine: %w", err)
	}

	return &AnalysisPipeline{
		config:       config,
		sampler:      NewFrameSampler(opener, store, config.Sampler, logger),
		preprocessor: NewFramePreprocessor(config.TargetSize, config.TargetSize),
		detectors:    detectors,
		fusion:       fusion,
		logger:       logger.With(zap.String("component", "analysis-pipeline")),
	}, nil
}

// Weights returns the fusion profile in use
func (p *AnalysisPipeline) Weights() Weights {
	return p.fusion.Weights()
}

// SamplerConfig returns the effective sampling configuration
func (p *AnalysisPipeline) SamplerConfig() SamplerConfig {
	return p.sampler.Config()
}

// Analyze classifies the video at videoPath. It always returns a result:
// processing failures are reported through Success=false and Message.
// Unless KeepSource is set the file is removed before returning, on every path.
func (p *AnalysisPipeline) Analyze(ctx context.Context, videoPath, filename string) *AnalysisResult {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "pipeline.Analyze", trace.WithAttributes(
		attribute.String("video.filename", filename),
	))
	defer span.End()

	metrics.ActiveAnalyses.Inc()
	defer metrics.ActiveAnalyses.Dec()

	defer p.releaseSource(videoPath)

	log := p.logger.With(zap.String("filename", filename))
	log.Info("analysis started", zap.String("stage", string(StageStarted)))

	result, err := p.run(ctx, videoPath, filename, start, log)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		metrics.AnalysesTotal.WithLabelValues("failed").Inc()
		log.Warn("analysis failed", zap.String("stage", string(StageFailed)), zap.Error(err))
		return result
	}

	span.SetAttributes(
		attribute.String("analysis.classification", string(result.Classification)),
		attribute.Float64("analysis.confidence", result.Confidence),
		attribute.Int("analysis.frames", result.FramesAnalyzed),
	)
	metrics.AnalysesTotal.WithLabelValues("succeeded").Inc()
	metrics.ClassificationsTotal.WithLabelValues(string(result.Classification)).Inc()
	log.Info("analysis completed",
		zap.String("stage", string(StageResultAssembled)),
		zap.String("classification", string(result.Classification)),
		zap.Float64("confidence", result.Confidence),
		zap.Int("frames", result.FramesAnalyzed),
		zap.Float64("seconds", result.ProcessingTime),
	)
	return result
}

// run returns a non-nil result alongside any error so Analyze can report it directly
func (p *AnalysisPipeline) run(ctx context.Context, videoPath, filename string, start time.Time, log *zap.Logger) (*AnalysisResult, error) {
	stageStart := time.Now()
	sample := p.sampler.Sample(ctx, videoPath)
	observeStage(StageFramesExtracted, stageStart)
	if len(sample.Frames) == 0 {
		return Failed(MsgFailedToExtractFrames), fmt.Errorf("no frames sampled from %s", filename)
	}
	log.Debug("stage reached", zap.String("stage", string(StageFramesExtracted)), zap.Int("frames", len(sample.Frames)))

	stageStart = time.Now()
	frames, err := p.preprocessAll(ctx, sample.Frames)
	observeStage(StagePreprocessed, stageStart)
	if err != nil {
		return Failed(fmt.Sprintf("Preprocessing failed: %v", err)), err
	}
	log.Debug("stage reached", zap.String("stage", string(StagePreprocessed)))

	stageStart = time.Now()
	scores, err := p.score(ctx, frames, len(sample.PreviewPaths))
	observeStage(StageScored, stageStart)
	if err != nil {
		return Failed(fmt.Sprintf("Scoring failed: %v", err)), err
	}
	log.Debug("stage reached", zap.String("stage", string(StageScored)))

	verdict := p.fusion.Fuse(scores.spatial.Score, scores.temporal.Score, scores.global.Score)
	log.Debug("stage reached", zap.String("stage", string(StageFused)), zap.Float64("fused", verdict.Score))

	previews := make([]FramePreview, len(sample.PreviewPaths))
	for i, path := range sample.PreviewPaths {
		fs := scores.spatial.Frames[i]
		previews[i] = FramePreview{Path: path, Status: fs.Status, Variance: fs.Variance}
	}

	return &AnalysisResult{
		Success:        true,
		Classification: verdict.Label,
		Confidence:     verdict.Confidence,
		FramesAnalyzed: len(sample.Frames),
		ProcessingTime: round(time.Since(start).Seconds(), 2),
		Filename:       filename,
		FramePreviews:  previews,
		Details: &Details{
			SpatialScoreReal:  round(scores.spatial.Score, 3),
			TemporalScoreReal: round(scores.temporal.Score, 3),
			GlobalScoreReal:   round(scores.global.Score, 3),
			FusedScoreReal:    round(verdict.Score, 3),
			TemporalDetails:   scores.temporal.Diagnostics,
			GlobalDetails:     scores.global.Diagnostics,
		},
	}, nil
}

// preprocessAll normalizes frames concurrently, keeping sample order
func (p *AnalysisPipeline) preprocessAll(ctx context.Context, raw []RawFrame) ([]*PreprocessedFrame, error) {
	out := make([]*PreprocessedFrame, len(raw))
	g, ctx := errgroup.WithContext(ctx)
	limit := p.config.Parallelism
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}
	g.SetLimit(limit)
	for i := range raw {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			out[i] = p.preprocessor.Preprocess(raw[i].Image)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

type detectorScores struct {
	spatial  DetectorScore
	temporal DetectorScore
	global   DetectorScore
}

// score runs the three detectors concurrently. The spatial detector sees only
// the previewed frames; temporal and global see every sampled frame.
func (p *AnalysisPipeline) score(ctx context.Context, frames []*PreprocessedFrame, previews int) (*detectorScores, error) {
	var s detectorScores
	g, ctx := errgroup.WithContext(ctx)

	run := func(d Detector, input []*PreprocessedFrame, dst *DetectorScore) {
		g.Go(func() error {
			ctx, span := tracer.Start(ctx, "detector."+d.Name())
			defer span.End()
			res, err := d.Score(ctx, input)
			if err != nil {
				span.RecordError(err)
				return fmt.Errorf("%s detector: %w", d.Name(), err)
			}
			*dst = res
			return nil
		})
	}

	run(p.detectors.Spatial, frames[:previews], &s.spatial)
	run(p.detectors.Temporal, frames, &s.temporal)
	run(p.detectors.Global, frames, &s.global)

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if len(s.spatial.Frames) < previews {
		return nil, fmt.Errorf("%s detector returned %d frame scores for %d previews",
			p.detectors.Spatial.Name(), len(s.spatial.Frames), previews)
	}
	return &s, nil
}

// releaseSource removes the analyzed file unless configured to keep it
func (p *AnalysisPipeline) releaseSource(videoPath string) {
	if p.config.KeepSource {
		return
	}
	if err := os.Remove(videoPath); err != nil && !os.IsNotExist(err) {
		metrics.CleanupFailuresTotal.Inc()
		p.logger.Warn("failed to remove analyzed video", zap.String("path", videoPath), zap.Error(err))
	}
}

func observeStage(stage Stage, start time.Time) {
	metrics.StageDuration.WithLabelValues(string(stage)).Observe(time.Since(start).Seconds())
}
