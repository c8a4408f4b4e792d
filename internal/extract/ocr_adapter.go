package extract

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"

	"github.com/joseph-ayodele/referral-intake/constants"
	"github.com/joseph-ayodele/referral-intake/internal/ocr"
)

// Prefixes of degraded extraction text. Callers show these to the user verbatim.
const (
	ErrorPrefix       = "Error: "
	UnsupportedPrefix = "Unsupported file format: "
)

// Engine is the part of *ocr.Extractor the adapter needs.
type Engine interface {
	Extract(ctx context.Context, path string) (ocr.ExtractionResult, error)
}

type OCRAdapter struct {
	e      Engine
	logger *slog.Logger
}

func NewOCRAdapter(e Engine, logger *slog.Logger) *OCRAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &OCRAdapter{e: e, logger: logger}
}

// Extract runs the OCR engine and folds any failure into the returned text.
func (a *OCRAdapter) Extract(ctx context.Context, path string) TextExtractionResult {
	r, err := a.e.Extract(ctx, path)
	out := TextExtractionResult{
		Text:       r.Text,
		Pages:      r.Pages,
		SourceType: r.SourceType,
		Method:     r.Method,
		Language:   r.Language,
		Duration:   r.Duration,
		Warnings:   r.Warnings,
		Confidence: r.Confidence,
	}
	if err == nil {
		return out
	}

	out.Confidence = 0
	if errors.Is(err, ocr.ErrUnsupportedFormat) {
		ext := constants.NormalizeExt(filepath.Ext(path))
		out.Text = UnsupportedPrefix
		if ext != "" {
			out.Text += "." + ext
		}
		out.Method = constants.MethodUnsupported
		a.logger.Info("extract.unsupported", "ext", ext)
		return out
	}
	out.Text = ErrorPrefix + err.Error()
	out.Method = constants.MethodError
	a.logger.Warn("extract.degraded", "ext", constants.NormalizeExt(filepath.Ext(path)), "error", err)
	return out
}
