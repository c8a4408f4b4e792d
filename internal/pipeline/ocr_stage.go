package pipeline

import (
	"context"
	"log/slog"

	"github.com/joseph-ayodele/referral-intake/internal/extract"
)

type OCRStage struct {
	TextExtractor extract.TextExtractor
	Observer      Observer
	Logger        *slog.Logger
}

func NewOCRStage(tx extract.TextExtractor, obs Observer, logger *slog.Logger) *OCRStage {
	if logger == nil {
		logger = slog.Default()
	}
	if obs == nil {
		obs = nopObserver{}
	}
	return &OCRStage{TextExtractor: tx, Observer: obs, Logger: logger}
}

// Run extracts text from the file at path. It never fails; a degraded result
// carries an error or unsupported-format message as its text.
func (p *OCRStage) Run(ctx context.Context, path string) extract.TextExtractionResult {
	res := p.TextExtractor.Extract(ctx, path)
	p.Observer.ObserveText(string(res.Method), res.Pages, res.Duration)

	if res.Degraded() {
		p.Logger.Warn("pipeline.ocr.degraded", "method", res.Method, "elapsed_ms", res.Duration.Milliseconds())
		return res
	}
	p.Logger.Info("pipeline.ocr.ok",
		"method", res.Method,
		"pages", res.Pages,
		"bytes", len(res.Text),
		"confidence", res.Confidence,
		"warnings", len(res.Warnings),
		"elapsed_ms", res.Duration.Milliseconds(),
	)
	return res
}
