package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPreviewName(t *testing.T) {
	assert.Regexp(t, `^frame_[0-9a-f]{8}_3\.jpg$`, previewName(3))
	assert.NotEqual(t, previewName(0), previewName(0))
}

func TestSamplerConfig_WithDefaults(t *testing.T) {
	tests := []struct {
		name string
		in   SamplerConfig
		want SamplerConfig
	}{
		{"zero value", SamplerConfig{}, DefaultSamplerConfig()},
		{"negative", SamplerConfig{Stride: -1, MaxFrames: -1, PreviewLimit: -1}, DefaultSamplerConfig()},
		{"explicit", SamplerConfig{Stride: 2, MaxFrames: 8, PreviewLimit: 3}, SamplerConfig{Stride: 2, MaxFrames: 8, PreviewLimit: 3}},
		{"zero previews only", SamplerConfig{Stride: 2, MaxFrames: 8}, SamplerConfig{Stride: 2, MaxFrames: 8, PreviewLimit: DefaultPreviewLimit}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.in.withDefaults())
		})
	}
}
