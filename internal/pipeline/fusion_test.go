package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFusionEngine_Fuse(t *testing.T) {
	engine, err := NewFusionEngine(DefaultWeights())
	require.NoError(t, err)

	tests := []struct {
		name                      string
		spatial, temporal, global float64
		wantLabel                 Label
		wantConfidence            float64
	}{
		{"constant colour", 0.3, 0.4, 0.7, LabelFake, 55.0},
		{"exactly threshold is fake", 0.5, 0.5, 0.5, LabelFake, 50.0},
		{"all real", 1, 1, 1, LabelReal, 100.0},
		{"all fake", 0, 0, 0, LabelFake, 100.0},
		{"mixed real", 0.9, 0.6, 0.5, LabelReal, 69.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := engine.Fuse(tt.spatial, tt.temporal, tt.global)
			assert.Equal(t, tt.wantLabel, v.Label)
			assert.InDelta(t, tt.wantConfidence, v.Confidence, 1e-9)
			assert.GreaterOrEqual(t, v.Confidence, 50.0)
			assert.LessOrEqual(t, v.Confidence, 100.0)
		})
	}
}

func TestFusionEngine_ClampsOutOfRangeScores(t *testing.T) {
	engine, err := NewFusionEngine(DefaultWeights())
	require.NoError(t, err)

	v := engine.Fuse(3, 3, 3)
	assert.Equal(t, 1.0, v.Score)
	assert.Equal(t, 100.0, v.Confidence)
}

func TestWeights_Validate(t *testing.T) {
	assert.NoError(t, DefaultWeights().Validate())
	assert.Error(t, Weights{Spatial: 0.5, Temporal: 0.5, Global: 0.5}.Validate())
	assert.Error(t, Weights{Spatial: -0.2, Temporal: 0.6, Global: 0.6}.Validate())

	_, err := NewFusionEngine(Weights{})
	assert.Error(t, err)
}
