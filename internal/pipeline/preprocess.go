package pipeline

import (
	"image"

	"golang.org/x/image/draw"
)

// DefaultTargetSize is the edge length frames are resized to before scoring
const DefaultTargetSize = 224

// FramePreprocessor normalizes raw frames into fixed-size RGB float arrays
type FramePreprocessor struct {
	width  int
	height int
	scaler draw.Scaler
}

// NewFramePreprocessor creates a preprocessor resizing to width x height with bilinear resampling
func NewFramePreprocessor(width, height int) *FramePreprocessor {
	if width <= 0 {
		width = DefaultTargetSize
	}
	if height <= 0 {
		height = DefaultTargetSize
	}
	return &FramePreprocessor{
		width:  width,
		height: height,
		scaler: draw.BiLinear,
	}
}

// Preprocess resizes the frame, emits RGB order and scales samples to [0, 1].
// It holds no state between calls, so equal inputs give bit-identical outputs.
func (p *FramePreprocessor) Preprocess(frame image.Image) *PreprocessedFrame {
	dst := image.NewRGBA(image.Rect(0, 0, p.width, p.height))
	p.scaler.Scale(dst, dst.Bounds(), frame, frame.Bounds(), draw.Src, nil)

	out := &PreprocessedFrame{
		Width:  p.width,
		Height: p.height,
		Pix:    make([]float32, p.width*p.height*3),
	}

	i := 0
	for y := 0; y < p.height; y++ {
		row := dst.Pix[y*dst.Stride : y*dst.Stride+p.width*4]
		for x := 0; x < p.width; x++ {
			px := row[x*4 : x*4+4]
			out.Pix[i] = float32(px[0]) / 255.0
			out.Pix[i+1] = float32(px[1]) / 255.0
			out.Pix[i+2] = float32(px[2]) / 255.0
			i += 3
		}
	}
	return out
}

// Size returns the target dimensions
func (p *FramePreprocessor) Size() (int, int) {
	return p.width, p.height
}
