package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"veritas/internal/database"
	"veritas/internal/overlay"
	"veritas/internal/pipeline"
)

// Analyzer runs the detection pipeline on a stored video
type Analyzer interface {
	Analyze(ctx context.Context, videoPath, filename string) *pipeline.AnalysisResult
}

// ResultRepository persists successful analyses
type ResultRepository interface {
	SaveResult(ctx context.Context, result *pipeline.AnalysisResult) error
	GetResult(ctx context.Context, id string) (*pipeline.AnalysisResult, error)
	ListResultsByOwner(ctx context.Context, ownerID string, limit int) ([]*pipeline.AnalysisResult, error)
	ListResults(ctx context.Context, limit int) ([]*pipeline.AnalysisResult, error)
	ListSummaries(ctx context.Context, ownerID string, limit int) ([]*database.ResultSummary, error)
	DeleteResult(ctx context.Context, id string) (bool, error)
}

// ResultPublisher announces stored results
type ResultPublisher interface {
	Publish(result *pipeline.AnalysisResult)
}

// AnalysisConfig holds request-layer limits
type AnalysisConfig struct {
	UploadDir         string
	AllowedExtensions []string
	MaxUploadBytes    int64
}

// AnalysisService validates uploads, runs analyses and serves stored results
type AnalysisService struct {
	analyzer  Analyzer
	repo      ResultRepository
	previews  pipeline.PreviewStore
	publisher ResultPublisher
	config    AnalysisConfig
	allowed   map[string]bool
	logger    *zap.Logger
	now       func() time.Time
}

// NewAnalysisService creates the upload directory and returns the service
func NewAnalysisService(
	analyzer Analyzer,
	repo ResultRepository,
	previews pipeline.PreviewStore,
	publisher ResultPublisher,
	config AnalysisConfig,
	logger *zap.Logger,
) (*AnalysisService, error) {
	if analyzer == nil || repo == nil {
		return nil, fmt.Errorf("analyzer and repository are required")
	}
	if len(config.AllowedExtensions) == 0 {
		return nil, fmt.Errorf("at least one allowed extension is required")
	}
	if err := os.MkdirAll(config.UploadDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	allowed := make(map[string]bool, len(config.AllowedExtensions))
	for _, ext := range config.AllowedExtensions {
		allowed[strings.ToLower(ext)] = true
	}

	return &AnalysisService{
		analyzer:  analyzer,
		repo:      repo,
		previews:  previews,
		publisher: publisher,
		config:    config,
		allowed:   allowed,
		logger:    logger.With(zap.String("component", "analysis-service")),
		now:       time.Now,
	}, nil
}

// SupportedFormats returns the allowed extensions in configured order
func (s *AnalysisService) SupportedFormats() []string {
	return append([]string(nil), s.config.AllowedExtensions...)
}

// MaxUploadBytes returns the upload size limit
func (s *AnalysisService) MaxUploadBytes() int64 {
	return s.config.MaxUploadBytes
}

// Validate checks that filename is present and carries an allowed extension
func (s *AnalysisService) Validate(filename string) error {
	if strings.TrimSpace(filename) == "" {
		return ErrNoFile
	}
	if ext := extension(filename); !s.allowed[ext] {
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	return nil
}

// UnsupportedFormatMessage is the user-facing hint listing the allowed formats
func (s *AnalysisService) UnsupportedFormatMessage() string {
	return fmt.Sprintf("Unsupported format. Please use %s.", strings.Join(s.config.AllowedExtensions, ", "))
}

// Submit stores the upload, analyzes it and persists a successful result.
// The upload is removed before Submit returns. A failed analysis is returned
// as a result with Success=false and a nil error.
func (s *AnalysisService) Submit(ctx context.Context, ownerID, filename string, body io.Reader) (*pipeline.AnalysisResult, error) {
	if err := s.Validate(filename); err != nil {
		return nil, err
	}

	name := SecureFilename(filename)
	if extension(name) == "" {
		name = "video." + extension(filename)
	}
	uploadPath := filepath.Join(s.config.UploadDir, strings.ReplaceAll(uuid.NewString(), "-", "")+"_"+name)

	log := s.logger.With(zap.String("owner", ownerID), zap.String("filename", name))

	if err := s.saveUpload(uploadPath, body); err != nil {
		return nil, err
	}
	defer func() {
		if err := os.Remove(uploadPath); err != nil && !os.IsNotExist(err) {
			log.Warn("failed to remove upload", zap.String("path", uploadPath), zap.Error(err))
		}
	}()

	log.Info("video received for analysis", zap.String("path", uploadPath))
	result := s.analyzer.Analyze(ctx, uploadPath, name)
	if !result.Success {
		log.Warn("analysis unsuccessful", zap.String("message", result.Message))
		return result, nil
	}

	ts := s.now().UTC()
	result.ResultID = uuid.NewString()
	result.OwnerID = ownerID
	result.Timestamp = &ts

	if err := s.repo.SaveResult(ctx, result); err != nil {
		return nil, fmt.Errorf("failed to store result: %w", err)
	}
	log.Info("result stored", zap.String("result_id", result.ResultID))

	if s.publisher != nil {
		s.publisher.Publish(result)
	}
	return result, nil
}

// saveUpload copies body to path, rejecting it once it exceeds the size limit
func (s *AnalysisService) saveUpload(path string, body io.Reader) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create upload: %w", err)
	}

	limit := s.config.MaxUploadBytes
	n, copyErr := io.Copy(f, io.LimitReader(body, limit+1))
	closeErr := f.Close()

	switch {
	case copyErr != nil:
		os.Remove(path)
		return fmt.Errorf("failed to save upload: %w", copyErr)
	case n > limit:
		os.Remove(path)
		return fmt.Errorf("%w: limit is %d bytes", ErrFileTooLarge, limit)
	case closeErr != nil:
		os.Remove(path)
		return fmt.Errorf("failed to save upload: %w", closeErr)
	}
	return nil
}

// Get returns a stored result by ID
func (s *AnalysisService) Get(ctx context.Context, id string) (*pipeline.AnalysisResult, error) {
	result, err := s.repo.GetResult(ctx, id)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, fmt.Errorf("result %q: %w", id, ErrNotFound)
	}
	return result, nil
}

// ListByOwner returns an owner's results, newest first
func (s *AnalysisService) ListByOwner(ctx context.Context, ownerID string) ([]*pipeline.AnalysisResult, error) {
	return s.repo.ListResultsByOwner(ctx, ownerID, 0)
}

// ListAll returns every stored result, newest first
func (s *AnalysisService) ListAll(ctx context.Context) ([]*pipeline.AnalysisResult, error) {
	return s.repo.ListResults(ctx, 0)
}

// Summaries returns listing rows without previews or details, newest first.
// An empty ownerID lists every owner.
func (s *AnalysisService) Summaries(ctx context.Context, ownerID string) ([]*database.ResultSummary, error) {
	return s.repo.ListSummaries(ctx, ownerID, 0)
}

// Delete removes one of ownerID's results. Results of other owners are
// reported as not found.
func (s *AnalysisService) Delete(ctx context.Context, ownerID, id string) error {
	result, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if result.OwnerID != ownerID {
		return fmt.Errorf("result %q: %w", id, ErrNotFound)
	}

	deleted, err := s.repo.DeleteResult(ctx, id)
	if err != nil {
		return err
	}
	if !deleted {
		return fmt.Errorf("result %q: %w", id, ErrNotFound)
	}
	s.logger.Info("result deleted", zap.String("owner", ownerID), zap.String("result_id", id))
	return nil
}

// Preview returns the index-th preview of a result as an annotated JPEG
func (s *AnalysisService) Preview(ctx context.Context, id string, index int) ([]byte, error) {
	result, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= len(result.FramePreviews) {
		return nil, fmt.Errorf("preview %d of %q: %w", index, id, ErrNotFound)
	}
	preview := result.FramePreviews[index]
	if preview.Path == "" || s.previews == nil {
		return nil, fmt.Errorf("preview %d of %q was not persisted: %w", index, id, ErrNotFound)
	}

	rc, err := s.previews.Open(ctx, preview.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("preview %d of %q: %w", index, id, ErrNotFound)
		}
		return nil, err
	}
	defer rc.Close()

	return overlay.Annotate(rc, preview)
}
