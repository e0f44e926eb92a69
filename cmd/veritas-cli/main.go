package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"veritas/internal/config"
	"veritas/internal/logging"
	"veritas/internal/pipeline"
	"veritas/internal/pipeline/detectors"
	"veritas/internal/storage"
	"veritas/internal/video"
)

func main() {
	var (
		videoF   = flag.String("video", "", "Path of the video to analyze")
		framesF  = flag.String("frames", "", "Directory for frame previews (default: VERITAS_FRAMES_DIR)")
		serverF  = flag.String("server", "", "Upload to a running server instead of analyzing locally (e.g. http://localhost:5000)")
		ownerF   = flag.String("owner", "", "Owner ID sent with remote uploads")
		timeoutF = flag.Int("timeout", 300, "Maximum number of seconds to wait for a remote response")
		verboseF = flag.Bool("verbose", false, "Print debug logs and HTTP traffic")
	)
	flag.Usage = usage
	flag.Parse()

	if *videoF == "" {
		usage()
		os.Exit(1)
	}

	var (
		data []byte
		err  error
	)
	if *serverF != "" {
		data, err = uploadRemote(*serverF, *videoF, *ownerF, time.Duration(*timeoutF)*time.Second, *verboseF)
	} else {
		data, err = analyzeLocal(*videoF, *framesF, *verboseF)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
	fmt.Println(string(data))
}

// analyzeLocal runs the pipeline in-process on a temporary copy of the video,
// since the pipeline removes its input once the analysis ends.
func analyzeLocal(videoPath, framesDir string, verbose bool) ([]byte, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if framesDir == "" {
		framesDir = cfg.FramesDir
	}

	level := "warn"
	if verbose {
		level = "debug"
	}
	logger, err := logging.New(level, "console")
	if err != nil {
		return nil, err
	}
	defer logger.Sync()

	store, err := storage.NewLocalPreviewStore(framesDir)
	if err != nil {
		return nil, err
	}
	set, err := detectors.NewDefaultRegistry().DefaultDetectorSet()
	if err != nil {
		return nil, err
	}
	p, err := pipeline.NewAnalysisPipeline(
		video.NewFFmpegOpener(cfg.FFmpegPath, cfg.FFprobePath, logger),
		store, set, cfg.PipelineConfig(), logger,
	)
	if err != nil {
		return nil, err
	}

	tmp, err := copyToTemp(videoPath)
	if err != nil {
		return nil, err
	}
	defer os.Remove(tmp)

	result := p.Analyze(context.Background(), tmp, filepath.Base(videoPath))
	logger.Debug("analysis finished", zap.Bool("success", result.Success))
	return json.MarshalIndent(result, "", "  ")
}

func copyToTemp(path string) (string, error) {
	src, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open video: %w", err)
	}
	defer src.Close()

	dst, err := os.CreateTemp("", "veritas-*"+filepath.Ext(path))
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(dst.Name())
		return "", fmt.Errorf("failed to copy video: %w", err)
	}
	if err := dst.Close(); err != nil {
		os.Remove(dst.Name())
		return "", err
	}
	return dst.Name(), nil
}

func usage() {
	fmt.Fprintf(os.Stderr, `%s analyzes a video and prints the JSON verdict.

Usage:
    %s -video PATH [-frames DIR] [-server URL [-owner ID]] [-verbose]

Flags:
`, os.Args[0], filepath.Base(os.Args[0]))
	flag.PrintDefaults()
	fmt.Fprintf(os.Stderr, `
Examples:
    %[1]s -video clip.mp4
    %[1]s -video clip.mp4 -server http://localhost:5000 -owner alice
`, filepath.Base(os.Args[0]))
}
