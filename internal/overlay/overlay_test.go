package overlay

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"veritas/internal/pipeline"
)

func grayJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, color.RGBA{128, 128, 128, 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 95}))
	return buf.Bytes()
}

func TestAnnotate_DrawsStatusBorder(t *testing.T) {
	out, err := Annotate(bytes.NewReader(grayJPEG(t, 160, 120)), pipeline.FramePreview{
		Status:   pipeline.FrameStatusSuspicious,
		Variance: 0.0012,
	})
	require.NoError(t, err)

	img, err := jpeg.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, 160, img.Bounds().Dx())

	// bottom-right border pixel should be red-dominant after re-encoding
	r, g, b, _ := img.At(158, 118).RGBA()
	assert.Greater(t, r>>8, uint32(150))
	assert.Less(t, g>>8, uint32(80))
	assert.Less(t, b>>8, uint32(80))
}

func TestAnnotate_RejectsNonJPEG(t *testing.T) {
	_, err := Annotate(bytes.NewReader([]byte("not an image")), pipeline.FramePreview{})
	assert.Error(t, err)
}

func TestStatusColor(t *testing.T) {
	assert.Equal(t, color.RGBA{0, 200, 0, 255}, StatusColor(pipeline.FrameStatusNormal))
	assert.Equal(t, color.RGBA{220, 0, 0, 255}, StatusColor(pipeline.FrameStatusSuspicious))
	assert.Equal(t, color.RGBA{255, 165, 0, 255}, StatusColor(pipeline.FrameStatusNeutral))
}
