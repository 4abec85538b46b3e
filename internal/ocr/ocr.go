// Package ocr wraps an optional text-recognition engine. Absence of an
// engine is a normal state: the pipeline carries a nil Engine and skips
// enrichment.
package ocr

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"strings"

	"github.com/otiai10/gosseract/v2"
)

// Engine recognizes text in an image crop. An empty string means no text.
type Engine interface {
	Recognize(ctx context.Context, img image.Image) (string, error)
}

// Tesseract recognizes Russian and English text via the tesseract C library.
type Tesseract struct {
	// Languages passed to tesseract, e.g. ["rus", "eng"].
	Languages []string
}

// NewTesseract returns an engine with the default rus+eng hints.
func NewTesseract() *Tesseract {
	return &Tesseract{Languages: []string{"rus", "eng"}}
}

// Recognize runs OCR over the crop. The client is per-call; gosseract
// clients are not safe for concurrent use.
func (t *Tesseract) Recognize(ctx context.Context, img image.Image) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("failed to encode crop: %w", err)
	}

	client := gosseract.NewClient()
	defer client.Close()

	if len(t.Languages) > 0 {
		if err := client.SetLanguage(t.Languages...); err != nil {
			return "", fmt.Errorf("failed to set languages: %w", err)
		}
	}
	if err := client.SetImageFromBytes(buf.Bytes()); err != nil {
		return "", fmt.Errorf("failed to set image: %w", err)
	}

	text, err := client.Text()
	if err != nil {
		return "", fmt.Errorf("ocr failed: %w", err)
	}
	return strings.TrimSpace(text), nil
}
