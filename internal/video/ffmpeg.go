package video

import (
	"bufio"
	"context"
	"fmt"
	"image"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"

	"go.uber.org/zap"

	"veritas/internal/pipeline"
)

// FFmpegOpener decodes videos by piping ffmpeg rawvideo output
type FFmpegOpener struct {
	ffmpegPath  string
	ffprobePath string
	logger      *zap.Logger
}

// NewFFmpegOpener creates an opener using the given binaries; empty paths use $PATH lookup
func NewFFmpegOpener(ffmpegPath, ffprobePath string, logger *zap.Logger) *FFmpegOpener {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FFmpegOpener{
		ffmpegPath:  ffmpegPath,
		ffprobePath: ffprobePath,
		logger:      logger.With(zap.String("component", "ffmpeg-opener")),
	}
}

// Open probes the file and starts an ffmpeg decoder emitting frames in decode order
func (o *FFmpegOpener) Open(ctx context.Context, path string) (pipeline.FrameSource, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("failed to stat video: %w", err)
	}

	info, err := Probe(ctx, o.ffprobePath, path)
	if err != nil {
		return nil, fmt.Errorf("failed to probe video: %w", err)
	}

	// ffmpeg autorotates by default, so frames arrive at the display size in info
	cmd := exec.CommandContext(ctx, o.ffmpegPath,
		"-v", "error",
		"-i", path,
		"-f", "rawvideo",
		"-pix_fmt", "rgb24",
		"-",
	)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	src := &ffmpegSource{
		cmd:    cmd,
		reader: NewRawFrameReader(stdout, info.Width, info.Height),
	}

	// Drain stderr so ffmpeg never blocks on it; decoder errors surface as truncation
	src.stderrDone.Add(1)
	go func() {
		defer src.stderrDone.Done()
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line != "" {
				o.logger.Debug("ffmpeg", zap.String("path", path), zap.String("stderr", line))
			}
		}
	}()

	o.logger.Debug("decoder started",
		zap.String("path", path),
		zap.Int("width", info.Width),
		zap.Int("height", info.Height),
		zap.Int("rotation", info.Rotation),
		zap.Float64("duration", info.Duration),
	)
	return src, nil
}

type ffmpegSource struct {
	cmd        *exec.Cmd
	reader     *RawFrameReader
	stderrDone sync.WaitGroup
	closeOnce  sync.Once
	closeErr   error
}

func (s *ffmpegSource) Next() (image.Image, error) {
	return s.reader.Next()
}

// Close stops ffmpeg if still running and reaps the process
func (s *ffmpegSource) Close() error {
	s.closeOnce.Do(func() {
		if s.cmd.Process != nil {
			_ = s.cmd.Process.Kill()
		}
		// Unblock the reader side so Wait can return
		if rc, ok := s.reader.r.(io.Closer); ok {
			_ = rc.Close()
		}
		s.stderrDone.Wait()
		if err := s.cmd.Wait(); err != nil && !isKilled(err) {
			s.closeErr = err
		}
	})
	return s.closeErr
}

func isKilled(err error) bool {
	exitErr, ok := err.(*exec.ExitError)
	if !ok {
		return false
	}
	return !exitErr.Exited()
}

var _ pipeline.SourceOpener = (*FFmpegOpener)(nil)
