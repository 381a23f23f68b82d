// Package tesseract runs Tesseract OCR over ECG images through gosseract.
package tesseract

import (
	"bytes"
	"context"
	"fmt"
	"image"

	"github.com/anthonynsimon/bild/imgio"
	"github.com/otiai10/gosseract/v2"

	"github.com/ironsheep/ecg-analyzer-mcp/internal/ocr"
)

// DefaultLanguage is used when a Reader has no language set.
const DefaultLanguage = "eng"

// Reader extracts strip annotations with Tesseract.
//
// A Reader holds no Tesseract state between calls; each ReadStrip opens and
// closes its own client, so one Reader may be shared across goroutines.
type Reader struct {
	Language string
}

// NewReader returns a reader for the given Tesseract language code.
func NewReader(language string) *Reader {
	if language == "" {
		language = DefaultLanguage
	}
	return &Reader{Language: language}
}

// ReadStrip recognizes the text in img and parses its annotations.
//
// The image is handed to Tesseract as PNG bytes, so no temporary file is
// written. If word-level boxes cannot be extracted, the text is still
// parsed and Confidence is left at 0.
//
// Tesseract cannot be interrupted; ctx is only checked before the work
// starts.
func (r *Reader) ReadStrip(ctx context.Context, img image.Image) (*ocr.StripInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := imgio.PNGEncoder()(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode image for OCR: %w", err)
	}

	client := gosseract.NewClient()
	defer client.Close()

	lang := r.Language
	if lang == "" {
		lang = DefaultLanguage
	}
	if err := client.SetLanguage(lang); err != nil {
		return nil, fmt.Errorf("failed to set language: %w", err)
	}
	if err := client.SetImageFromBytes(buf.Bytes()); err != nil {
		return nil, fmt.Errorf("failed to set image: %w", err)
	}

	text, err := client.Text()
	if err != nil {
		return nil, fmt.Errorf("OCR failed: %w", err)
	}

	info := ocr.ParseStripText(text)

	boxes, err := client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return info, nil
	}
	var sum float64
	var n int
	for _, box := range boxes {
		if box.Word == "" {
			continue
		}
		sum += float64(box.Confidence) / 100.0
		n++
	}
	if n > 0 {
		info.Confidence = sum / float64(n)
	}

	return info, nil
}

// Version reports the linked Tesseract version.
func Version() string {
	client := gosseract.NewClient()
	defer client.Close()
	return client.Version()
}
