package video

import (
	"errors"
	"fmt"
	"image"
	"io"
)

// ErrTruncated is returned when the stream ends partway through a frame
var ErrTruncated = errors.New("video stream truncated")

// RawFrameReader decodes packed rgb24 frames of fixed dimensions from r
type RawFrameReader struct {
	r      io.Reader
	width  int
	height int
	buf    []byte
}

// NewRawFrameReader creates a reader for width x height rgb24 frames
func NewRawFrameReader(r io.Reader, width, height int) *RawFrameReader {
	return &RawFrameReader{
		r:      r,
		width:  width,
		height: height,
		buf:    make([]byte, width*height*3),
	}
}

// Next returns the next frame, io.EOF at a clean frame boundary,
// or ErrTruncated if the stream stops mid-frame
func (fr *RawFrameReader) Next() (image.Image, error) {
	_, err := io.ReadFull(fr.r, fr.buf)
	switch {
	case errors.Is(err, io.EOF):
		return nil, io.EOF
	case errors.Is(err, io.ErrUnexpectedEOF):
		return nil, ErrTruncated
	case err != nil:
		return nil, fmt.Errorf("read frame: %w", err)
	}

	img := image.NewRGBA(image.Rect(0, 0, fr.width, fr.height))
	for i, j := 0, 0; i < len(fr.buf); i, j = i+3, j+4 {
		img.Pix[j] = fr.buf[i]
		img.Pix[j+1] = fr.buf[i+1]
		img.Pix[j+2] = fr.buf[i+2]
		img.Pix[j+3] = 0xFF
	}
	return img, nil
}
