package video

import (
	"bytes"
	"context"
	"errors"
	"image"
	"io"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestRawFrameReader_ReadsFramesInOrder(t *testing.T) {
	// two 2x1 frames
	data := []byte{
		10, 20, 30, 40, 50, 60,
		70, 80, 90, 100, 110, 120,
	}
	r := NewRawFrameReader(bytes.NewReader(data), 2, 1)

	img, err := r.Next()
	require.NoError(t, err)
	rgba := img.(*image.RGBA)
	assert.Equal(t, []uint8{10, 20, 30, 255, 40, 50, 60, 255}, rgba.Pix)

	img, err = r.Next()
	require.NoError(t, err)
	assert.Equal(t, uint8(70), img.(*image.RGBA).Pix[0])

	_, err = r.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestRawFrameReader_Truncated(t *testing.T) {
	r := NewRawFrameReader(bytes.NewReader([]byte{1, 2, 3, 4, 5, 6, 7, 8}), 2, 1)

	_, err := r.Next()
	require.NoError(t, err)

	_, err = r.Next()
	assert.True(t, errors.Is(err, ErrTruncated))
}

func TestParseProbe(t *testing.T) {
	info, err := parseProbe([]byte(`{"streams":[{"width":640,"height":480}],"format":{"duration":"3.500000"}}`))
	require.NoError(t, err)
	assert.Equal(t, 640, info.Width)
	assert.Equal(t, 480, info.Height)
	assert.InDelta(t, 3.5, info.Duration, 1e-9)

	_, err = parseProbe([]byte(`{"streams":[],"format":{}}`))
	assert.Error(t, err)

	_, err = parseProbe([]byte(`{"streams":[{"width":0,"height":0}]}`))
	assert.Error(t, err)

	_, err = parseProbe([]byte(`not json`))
	assert.Error(t, err)
}

func TestRotatedStreamInfoSwapsDimensions(t *testing.T) {
	cases := []struct {
		name     string
		json     string
		width    int
		height   int
		rotation int
	}{
		{"display matrix -90", `{"streams":[{"width":1920,"height":1080,"side_data_list":[{"side_data_type":"Display Matrix","rotation":-90}]}]}`, 1080, 1920, 270},
		{"display matrix 90", `{"streams":[{"width":1920,"height":1080,"side_data_list":[{"side_data_type":"Display Matrix","rotation":90}]}]}`, 1080, 1920, 90},
		{"display matrix 180", `{"streams":[{"width":1920,"height":1080,"side_data_list":[{"side_data_type":"Display Matrix","rotation":180}]}]}`, 1920, 1080, 180},
		{"legacy rotate tag", `{"streams":[{"width":640,"height":480,"tags":{"rotate":"90"}}]}`, 480, 640, 90},
		{"side data wins over tag", `{"streams":[{"width":640,"height":480,"tags":{"rotate":"90"},"side_data_list":[{"side_data_type":"Display Matrix","rotation":0}]}]}`, 640, 480, 0},
		{"unrelated side data", `{"streams":[{"width":640,"height":480,"side_data_list":[{"side_data_type":"Stereo 3D"}]}]}`, 640, 480, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			info, err := parseProbe([]byte(tc.json))
			require.NoError(t, err)
			assert.Equal(t, tc.width, info.Width)
			assert.Equal(t, tc.height, info.Height)
			assert.Equal(t, tc.rotation, info.Rotation)
		})
	}
}

func TestFFmpegOpener_MissingFile(t *testing.T) {
	o := NewFFmpegOpener("", "", zaptest.NewLogger(t))
	_, err := o.Open(context.Background(), filepath.Join(t.TempDir(), "missing.mp4"))
	assert.Error(t, err)
}

func TestFFmpegOpener_DecodesGeneratedVideo(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping ffmpeg test in short mode")
	}
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not available")
	}
	if _, err := exec.LookPath("ffprobe"); err != nil {
		t.Skip("ffprobe not available")
	}

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "clip.mp4")
	gen := exec.CommandContext(ctx, "ffmpeg", "-v", "error",
		"-f", "lavfi", "-i", "testsrc=size=64x48:rate=10:duration=1",
		"-pix_fmt", "yuv420p", "-y", path)
	require.NoError(t, gen.Run())

	src, err := NewFFmpegOpener("", "", zaptest.NewLogger(t)).Open(ctx, path)
	require.NoError(t, err)

	count := 0
	for {
		img, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		assert.Equal(t, 64, img.Bounds().Dx())
		assert.Equal(t, 48, img.Bounds().Dy())
		count++
	}
	assert.Equal(t, 10, count)
	assert.NoError(t, src.Close())
}

func TestFFmpegOpener_CloseBeforeEnd(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping ffmpeg test in short mode")
	}
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not available")
	}
	if _, err := exec.LookPath("ffprobe"); err != nil {
		t.Skip("ffprobe not available")
	}

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "long.mp4")
	gen := exec.CommandContext(ctx, "ffmpeg", "-v", "error",
		"-f", "lavfi", "-i", "testsrc=size=32x32:rate=25:duration=4",
		"-pix_fmt", "yuv420p", "-y", path)
	require.NoError(t, gen.Run())

	src, err := NewFFmpegOpener("", "", zaptest.NewLogger(t)).Open(ctx, path)
	require.NoError(t, err)

	_, err = src.Next()
	require.NoError(t, err)
	assert.NoError(t, src.Close())
	assert.NoError(t, src.Close(), "close is idempotent")
}
