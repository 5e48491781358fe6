package extractor

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/kirillkom/document-intelligence/internal/core/ports"
)

var ErrUnsupportedFormat = errors.New("unsupported document format")

type extractFunc func(raw []byte) (string, error)

// Extractor turns uploaded bytes into plain text, choosing a decoder by file
// extension.
type Extractor struct {
	byExt map[string]extractFunc
}

var _ ports.TextExtractor = (*Extractor)(nil)

func New() *Extractor {
	return &Extractor{byExt: map[string]extractFunc{
		".txt":      extractPlainText,
		".md":       extractPlainText,
		".markdown": extractPlainText,
		".csv":      extractPlainText,
		".json":     extractPlainText,
		".log":      extractPlainText,
		".pdf":      extractPDF,
		".xlsx":     extractXLSX,
		".html":     extractHTML,
		".htm":      extractHTML,
	}}
}

func (e *Extractor) Extract(ctx context.Context, filename string, raw []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	ext := strings.ToLower(filepath.Ext(filename))
	fn, ok := e.byExt[ext]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	text, err := fn(raw)
	if err != nil {
		return "", fmt.Errorf("extract %s: %w", filename, err)
	}
	return strings.TrimSpace(text), nil
}

// Supports reports whether filename has an extension the extractor can decode.
func (e *Extractor) Supports(filename string) bool {
	_, ok := e.byExt[strings.ToLower(filepath.Ext(filename))]
	return ok
}
