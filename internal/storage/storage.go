package storage

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
)

// PreviewQuality is the JPEG quality used for persisted previews
const PreviewQuality = 95

// ErrInvalidPath is returned when a preview path escapes the store
var ErrInvalidPath = errors.New("invalid preview path")

func encodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: PreviewQuality}); err != nil {
		return nil, fmt.Errorf("encode preview: %w", err)
	}
	return buf.Bytes(), nil
}
