package ocr

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"
)

// Defaults applied when an Input leaves a field zero
const (
	DefaultMaxPages = 5
	DefaultDPI      = 200
)

// Input is one uploaded document, an image or a PDF
type Input struct {
	Data     []byte
	Filename string
	MaxPages int // pages rasterized from a PDF
	DPI      int // PDF rasterization resolution
	MaxSide  int // images are downscaled beyond this many pixels
}

func (in Input) maxPages() int {
	if in.MaxPages > 0 {
		return in.MaxPages
	}
	return DefaultMaxPages
}

func (in Input) dpi() int {
	if in.DPI > 0 {
		return in.DPI
	}
	return DefaultDPI
}

// IsPDF reports whether data is a PDF, by magic or by extension
func IsPDF(data []byte, filename string) bool {
	if bytes.HasPrefix(data, []byte("%PDF")) {
		return true
	}
	return strings.EqualFold(filepath.Ext(filename), ".pdf")
}

// Pages turns the input into preprocessed page images. PDFs go through
// the rasterizer first; a nil rasterizer makes PDF input an error.
func Pages(ctx context.Context, in Input, rasterizer Rasterizer) ([]Image, error) {
	if len(in.Data) == 0 {
		return nil, fmt.Errorf("empty input %q", in.Filename)
	}

	if !IsPDF(in.Data, in.Filename) {
		img, err := Preprocess(in.Data, in.MaxSide)
		if err != nil {
			return nil, fmt.Errorf("prepare %q: %w", in.Filename, err)
		}
		return []Image{img}, nil
	}

	if rasterizer == nil {
		return nil, fmt.Errorf("prepare %q: no PDF rasterizer configured", in.Filename)
	}
	raw, err := rasterizer.Rasterize(ctx, in.Data, in.maxPages(), in.dpi())
	if err != nil {
		return nil, fmt.Errorf("rasterize %q: %w", in.Filename, err)
	}
	pages := make([]Image, 0, len(raw))
	for i, page := range raw {
		img, err := Preprocess(page.Data, in.MaxSide)
		if err != nil {
			return nil, fmt.Errorf("prepare %q page %d: %w", in.Filename, i+1, err)
		}
		img.Page = i
		pages = append(pages, img)
	}
	if len(pages) == 0 {
		return nil, fmt.Errorf("rasterize %q: no pages", in.Filename)
	}
	return pages, nil
}
