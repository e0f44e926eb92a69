package overlay

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"io"
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"veritas/internal/pipeline"
)

const (
	borderThickness = 4
	encodeQuality   = 90
)

// StatusColor returns the frame border colour for a spatial status
func StatusColor(status pipeline.FrameStatus) color.RGBA {
	switch status {
	case pipeline.FrameStatusNormal:
		return color.RGBA{0, 200, 0, 255} // Green
	case pipeline.FrameStatusSuspicious:
		return color.RGBA{220, 0, 0, 255} // Red
	default:
		return color.RGBA{255, 165, 0, 255} // Orange
	}
}

// Annotate decodes a JPEG preview, frames it in its status colour with a
// status/variance caption and re-encodes it
func Annotate(r io.Reader, preview pipeline.FramePreview) ([]byte, error) {
	img, err := jpeg.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("decode preview: %w", err)
	}

	bounds := img.Bounds()
	rgba := image.NewRGBA(bounds)
	draw.Draw(rgba, bounds, img, bounds.Min, draw.Src)

	c := StatusColor(preview.Status)
	drawBox(rgba, bounds.Min.X, bounds.Min.Y, bounds.Dx()-1, bounds.Dy()-1, c, borderThickness)
	label := fmt.Sprintf("%s var=%.4f", strings.ToUpper(string(preview.Status)), preview.Variance)
	drawLabel(rgba, bounds.Min.X+borderThickness+2, bounds.Min.Y+borderThickness+2, label, c)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, rgba, &jpeg.Options{Quality: encodeQuality}); err != nil {
		return nil, fmt.Errorf("encode preview: %w", err)
	}
	return buf.Bytes(), nil
}

// drawBox draws a rectangle outline on the image
func drawBox(img *image.RGBA, x, y, w, h int, c color.RGBA, thickness int) {
	bounds := img.Bounds()

	for t := 0; t < thickness; t++ {
		for i := x; i <= x+w && i < bounds.Max.X; i++ {
			if i < bounds.Min.X {
				continue
			}
			if y+t >= bounds.Min.Y && y+t < bounds.Max.Y {
				img.SetRGBA(i, y+t, c)
			}
			if y+h-t >= bounds.Min.Y && y+h-t < bounds.Max.Y {
				img.SetRGBA(i, y+h-t, c)
			}
		}
		for j := y; j <= y+h && j < bounds.Max.Y; j++ {
			if j < bounds.Min.Y {
				continue
			}
			if x+t >= bounds.Min.X && x+t < bounds.Max.X {
				img.SetRGBA(x+t, j, c)
			}
			if x+w-t >= bounds.Min.X && x+w-t < bounds.Max.X {
				img.SetRGBA(x+w-t, j, c)
			}
		}
	}
}

// drawLabel draws text with a dark background at x, y (top-left)
func drawLabel(img *image.RGBA, x, y int, label string, c color.RGBA) {
	bounds := img.Bounds()

	bgColor := color.RGBA{0, 0, 0, 180}
	textWidth := len(label) * 7
	for dy := -2; dy < 12; dy++ {
		for dx := -2; dx < textWidth+2; dx++ {
			px, py := x+dx, y+dy
			if image.Pt(px, py).In(bounds) {
				img.SetRGBA(px, py, bgColor)
			}
		}
	}

	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: basicfont.Face7x13,
		Dot:  fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y + 10)},
	}
	d.DrawString(label)
}
