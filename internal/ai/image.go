package ai

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

const defaultMaxImageSize = 800

// ResizeImage re-encodes a photo as JPEG so that neither edge exceeds maxSize,
// keeping the aspect ratio. maxSize <= 0 uses the default of 800px.
func ResizeImage(data []byte, maxSize int) ([]byte, error) {
	if maxSize <= 0 {
		maxSize = defaultMaxImageSize
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width == 0 || height == 0 {
		return nil, fmt.Errorf("image has no pixels (%dx%d)", width, height)
	}

	out := img
	if width > maxSize || height > maxSize {
		newWidth, newHeight := fitWithin(width, height, maxSize)
		resized := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))
		draw.CatmullRom.Scale(resized, resized.Bounds(), img, bounds, draw.Over, nil)
		out = resized
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, out, &jpeg.Options{Quality: 85}); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), nil
}

// fitWithin scales width x height so the longer edge equals maxSize.
func fitWithin(width, height, maxSize int) (int, int) {
	if width > height {
		return maxSize, max(1, int(float64(height)*float64(maxSize)/float64(width)))
	}
	return max(1, int(float64(width)*float64(maxSize)/float64(height))), maxSize
}
