package config

import (
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"

	"veritas/internal/pipeline"
)

// Preview store backends
const (
	PreviewBackendLocal = "local"
	PreviewBackendMinIO = "minio"
)

type Config struct {
	HTTPHost string `env:"VERITAS_HTTP_HOST" envDefault:"0.0.0.0"`
	HTTPPort int    `env:"VERITAS_HTTP_PORT" envDefault:"5000"`
	GRPCPort int    `env:"VERITAS_GRPC_PORT" envDefault:"0"`

	UploadDir         string   `env:"VERITAS_UPLOAD_DIR"          envDefault:"uploads"`
	FramesDir         string   `env:"VERITAS_FRAMES_DIR"          envDefault:"static/frames"`
	AllowedExtensions []string `env:"VERITAS_ALLOWED_EXTENSIONS"  envDefault:"mp4,avi,mov" envSeparator:","`
	MaxUploadBytes    int64    `env:"VERITAS_MAX_UPLOAD_BYTES"    envDefault:"104857600"`

	SampleStride   int     `env:"VERITAS_SAMPLE_STRIDE"   envDefault:"5"`
	MaxFrames      int     `env:"VERITAS_MAX_FRAMES"      envDefault:"20"`
	PreviewLimit   int     `env:"VERITAS_PREVIEW_LIMIT"   envDefault:"5"`
	TargetSize     int     `env:"VERITAS_TARGET_SIZE"     envDefault:"224"`
	SpatialWeight  float64 `env:"VERITAS_WEIGHT_SPATIAL"  envDefault:"0.4"`
	TemporalWeight float64 `env:"VERITAS_WEIGHT_TEMPORAL" envDefault:"0.3"`
	GlobalWeight   float64 `env:"VERITAS_WEIGHT_GLOBAL"   envDefault:"0.3"`

	FFmpegPath  string `env:"VERITAS_FFMPEG_PATH"  envDefault:"ffmpeg"`
	FFprobePath string `env:"VERITAS_FFPROBE_PATH" envDefault:"ffprobe"`

	DatabaseDSN string `env:"VERITAS_DATABASE_DSN" envDefault:":memory:"`

	PreviewBackend string `env:"VERITAS_PREVIEW_BACKEND" envDefault:"local"`
	MinIOEndpoint  string `env:"MINIO_ENDPOINT"          envDefault:"minio:9000"`
	MinIOAccessKey string `env:"MINIO_ACCESS_KEY"        envDefault:"minioadmin"`
	MinIOSecretKey string `env:"MINIO_SECRET_KEY"        envDefault:"minioadmin"`
	MinIOUseSSL    bool   `env:"MINIO_USE_SSL"           envDefault:"false"`
	MinIOBucket    string `env:"MINIO_PREVIEW_BUCKET"    envDefault:"previews"`

	OTLPEndpoint string `env:"OTLP_ENDPOINT"      envDefault:""`
	LogLevel     string `env:"LOG_LEVEL"          envDefault:"info"`
	LogFormat    string `env:"LOG_FORMAT"         envDefault:"json"`
}

// Load parses the environment into a Config and validates it
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	cfg.AllowedExtensions = normalizeExtensions(cfg.AllowedExtensions)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges that env tags cannot express
func (c *Config) Validate() error {
	if c.HTTPPort <= 0 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid http port %d", c.HTTPPort)
	}
	if c.GRPCPort < 0 || c.GRPCPort > 65535 {
		return fmt.Errorf("invalid grpc port %d", c.GRPCPort)
	}
	if len(c.AllowedExtensions) == 0 {
		return fmt.Errorf("at least one allowed extension is required")
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("max upload bytes must be positive")
	}
	if c.SampleStride <= 0 || c.MaxFrames <= 0 || c.PreviewLimit <= 0 || c.TargetSize <= 0 {
		return fmt.Errorf("invalid sampling settings: stride=%d max_frames=%d preview_limit=%d target_size=%d",
			c.SampleStride, c.MaxFrames, c.PreviewLimit, c.TargetSize)
	}
	if err := c.Weights().Validate(); err != nil {
		return err
	}
	switch c.PreviewBackend {
	case PreviewBackendLocal, PreviewBackendMinIO:
	default:
		return fmt.Errorf("unknown preview backend %q", c.PreviewBackend)
	}
	return nil
}

// Weights returns the configured fusion profile
func (c *Config) Weights() pipeline.Weights {
	return pipeline.Weights{
		Spatial:  c.SpatialWeight,
		Temporal: c.TemporalWeight,
		Global:   c.GlobalWeight,
	}
}

// PipelineConfig maps the settings onto the analysis pipeline
func (c *Config) PipelineConfig() pipeline.PipelineConfig {
	return pipeline.PipelineConfig{
		Sampler: pipeline.SamplerConfig{
			Stride:       c.SampleStride,
			MaxFrames:    c.MaxFrames,
			PreviewLimit: c.PreviewLimit,
		},
		TargetSize: c.TargetSize,
		Weights:    c.Weights(),
	}
}

// HTTPAddr returns host:port for the HTTP listener
func (c *Config) HTTPAddr() string {
	return fmt.Sprintf("%s:%d", c.HTTPHost, c.HTTPPort)
}

func normalizeExtensions(exts []string) []string {
	out := make([]string, 0, len(exts))
	for _, e := range exts {
		e = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(e), "."))
		if e != "" {
			out = append(out, e)
		}
	}
	return out
}
