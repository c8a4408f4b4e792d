package extract

import (
	"context"
	"time"

	"github.com/joseph-ayodele/referral-intake/constants"
)

// TextExtractor is Stage 1: file -> text. It never fails; problems surface as
// degraded text (see TextExtractionResult.Degraded).
type TextExtractor interface {
	Extract(ctx context.Context, path string) TextExtractionResult
}

type TextExtractionResult struct {
	Text       string
	Pages      int
	SourceType string           // "PDF" | "IMAGE" | ""
	Method     constants.Method // pdf-text | pdf-ocr | image-ocr | unsupported | error
	Language   string
	Duration   time.Duration
	Warnings   []string
	Confidence float32
}

// Degraded reports whether Text is an error or unsupported-format message rather than document content.
func (r TextExtractionResult) Degraded() bool {
	return r.Method == constants.MethodError || r.Method == constants.MethodUnsupported
}
