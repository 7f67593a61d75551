package ocr

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// DefaultMaxSide bounds the longer side of a page image
const DefaultMaxSide = 4000

// Preprocess decodes an image, converts it to grayscale, downscales it so
// the longer side is at most maxSide (DefaultMaxSide when zero) and
// re-encodes it as PNG
func Preprocess(data []byte, maxSide int) (Image, error) {
	if maxSide <= 0 {
		maxSide = DefaultMaxSide
	}

	src, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return Image{}, fmt.Errorf("decode image: %w", err)
	}

	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return Image{}, fmt.Errorf("decode image: empty %s image", format)
	}

	tw, th := w, h
	if longest := max(w, h); longest > maxSide {
		scale := float64(maxSide) / float64(longest)
		tw = max(1, int(float64(w)*scale))
		th = max(1, int(float64(h)*scale))
	}

	gray := image.NewGray(image.Rect(0, 0, tw, th))
	if tw == w && th == h {
		draw.Draw(gray, gray.Bounds(), src, b.Min, draw.Src)
	} else {
		draw.CatmullRom.Scale(gray, gray.Bounds(), src, b, draw.Src, nil)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, gray); err != nil {
		return Image{}, fmt.Errorf("encode image: %w", err)
	}
	return Image{Data: buf.Bytes(), Format: "png", Width: tw, Height: th}, nil
}
