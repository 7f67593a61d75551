package ocr

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/rs/zerolog/log"
)

// PDFError is a PDF that cannot be read; retrying will not help
type PDFError struct {
	Message string
	Err     error // parser failure, when there is one
}

func (e *PDFError) Error() string {
	switch {
	case e.Err == nil:
		return e.Message
	case e.Message == "":
		return e.Err.Error()
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *PDFError) Unwrap() error {
	return e.Err
}

func openPDF(data []byte) (*pdf.Reader, error) {
	if !bytes.HasPrefix(data, []byte("%PDF")) {
		head := data
		if len(head) > 20 {
			head = head[:20]
		}
		return nil, &PDFError{Message: fmt.Sprintf("not a valid PDF file - content starts with: %q", string(head))}
	}
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, &PDFError{Message: "failed to parse PDF", Err: err}
	}
	return reader, nil
}

// PageCount returns the number of pages in a PDF
func PageCount(data []byte) (int, error) {
	reader, err := openPDF(data)
	if err != nil {
		return 0, err
	}
	return reader.NumPage(), nil
}

// TextLayer returns the embedded text of the first maxPages pages. Scans
// carry no text layer and return an empty string.
func TextLayer(data []byte, maxPages int) (string, error) {
	reader, err := openPDF(data)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		if maxPages > 0 && i > maxPages {
			break
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			log.Debug().Int("page", i).Err(err).Msg("Skipping unreadable PDF page")
			continue
		}
		b.WriteString(text)
		b.WriteString("\n\n")
	}
	return strings.TrimSpace(b.String()), nil
}

// Rasterizer renders PDF pages to images
type Rasterizer interface {
	Rasterize(ctx context.Context, data []byte, maxPages, dpi int) ([]Image, error)
}

// PDFToPPM rasterizes with poppler's pdftoppm binary
type PDFToPPM struct {
	Binary  string // defaults to pdftoppm on PATH
	TempDir string // defaults to the system temp dir
}

func (p *PDFToPPM) binary() string {
	if p.Binary != "" {
		return p.Binary
	}
	return "pdftoppm"
}

// Available reports whether the binary can be found
func (p *PDFToPPM) Available() error {
	if _, err := exec.LookPath(p.binary()); err != nil {
		return fmt.Errorf("%w: %s not found", ErrEngineUnavailable, p.binary())
	}
	return nil
}

// Rasterize writes data to a scratch directory and renders the first
// maxPages pages as PNG at dpi
func (p *PDFToPPM) Rasterize(ctx context.Context, data []byte, maxPages, dpi int) ([]Image, error) {
	if _, err := openPDF(data); err != nil {
		return nil, err
	}

	dir, err := os.MkdirTemp(p.TempDir, "caia-pdf-*")
	if err != nil {
		return nil, fmt.Errorf("create scratch dir: %w", err)
	}
	defer os.RemoveAll(dir)

	src := filepath.Join(dir, "input.pdf")
	if err := os.WriteFile(src, data, 0o600); err != nil {
		return nil, fmt.Errorf("write scratch pdf: %w", err)
	}

	prefix := filepath.Join(dir, "page")
	args := []string{"-png", "-r", strconv.Itoa(dpi), "-f", "1"}
	if maxPages > 0 {
		args = append(args, "-l", strconv.Itoa(maxPages))
	}
	args = append(args, src, prefix)

	cmd := exec.CommandContext(ctx, p.binary(), args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%s failed: %w: %s", p.binary(), err, strings.TrimSpace(stderr.String()))
	}

	files, err := filepath.Glob(prefix + "-*.png")
	if err != nil {
		return nil, err
	}
	// page-1.png, page-2.png ... zero-padded once there are ten or more pages
	sort.Slice(files, func(i, j int) bool {
		return pageNumber(files[i]) < pageNumber(files[j])
	})

	images := make([]Image, 0, len(files))
	for i, f := range files {
		b, err := os.ReadFile(f)
		if err != nil {
			return nil, fmt.Errorf("read rendered page: %w", err)
		}
		images = append(images, Image{Data: b, Format: "png", Page: i})
	}

	log.Debug().
		Int("pages", len(images)).
		Int("dpi", dpi).
		Msg("PDF rasterized")
	return images, nil
}

func pageNumber(path string) int {
	base := strings.TrimSuffix(filepath.Base(path), ".png")
	i := strings.LastIndex(base, "-")
	n, err := strconv.Atoi(base[i+1:])
	if err != nil {
		return 0
	}
	return n
}
