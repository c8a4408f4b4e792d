package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"mime"
	"path/filepath"
	"strings"
	"time"

	"github.com/joseph-ayodele/referral-intake/internal/common"
	"github.com/joseph-ayodele/referral-intake/internal/entity"
	"github.com/joseph-ayodele/referral-intake/internal/llm"
	"github.com/joseph-ayodele/referral-intake/internal/scratch"
)

// Options control one Process call.
type Options struct {
	UseRemote bool
}

// Processor coordinates OCR (text extract) then field parsing for a single document.
type Processor struct {
	Logger  *slog.Logger
	Scratch *scratch.Store
	OCR     *OCRStage
	Parse   *ParseStage

	MaxUploadBytes int64
	observer       Observer
}

func NewProcessor(logger *slog.Logger, store *scratch.Store, ocr *OCRStage, parse *ParseStage, maxUploadBytes int64, obs Observer) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	if obs == nil {
		obs = nopObserver{}
	}
	return &Processor{Logger: logger, Scratch: store, OCR: ocr, Parse: parse, MaxUploadBytes: maxUploadBytes, observer: obs}
}

// Process writes the upload to scratch space, runs both stages and removes the
// scratch copy before returning. Only caller-level problems (no file, unreadable
// upload, scratch failure) are returned as errors.
func (p *Processor) Process(ctx context.Context, doc entity.Document, opts Options) (entity.ExtractionResult, error) {
	if doc.Body == nil || strings.TrimSpace(doc.FileName) == "" {
		return entity.ExtractionResult{}, common.InvalidInputError("a file is required")
	}
	if p.Scratch == nil {
		return entity.ExtractionResult{}, common.NewAppError(common.CodeInternal, "scratch storage not configured", common.ErrInternal)
	}

	f, err := p.Scratch.Save(doc.FileName, doc.Body, p.MaxUploadBytes)
	if err != nil {
		if errors.Is(err, scratch.ErrTooLarge) {
			return entity.ExtractionResult{}, common.NewAppError(common.CodeTooLarge, err.Error(), common.ErrTooLarge)
		}
		return entity.ExtractionResult{}, common.StorageError("save upload", err)
	}
	defer f.Remove()
	p.observer.ObserveUpload(f.Size)

	res := p.run(ctx, f.Path, opts)
	res.FileName = doc.FileName
	if ct := strings.TrimSpace(doc.ContentType); ct != "" && ct != "application/octet-stream" {
		res.FileType = ct
	}
	return res, nil
}

// ProcessPath runs both stages on a file that already exists on disk (CLI use).
func (p *Processor) ProcessPath(ctx context.Context, path string, opts Options) (entity.ExtractionResult, error) {
	if strings.TrimSpace(path) == "" {
		return entity.ExtractionResult{}, common.InvalidInputError("a file path is required")
	}
	res := p.run(ctx, path, opts)
	res.FileName = filepath.Base(path)
	return res, nil
}

func (p *Processor) run(ctx context.Context, path string, opts Options) entity.ExtractionResult {
	start := time.Now()
	logger := common.LoggerFromContext(ctx, p.Logger)

	text := p.OCR.Run(ctx, path)

	// No remote call on an error string or an unsupported file.
	useRemote := opts.UseRemote && !text.Degraded()
	fields := p.Parse.Run(ctx, llm.ExtractRequest{Text: text.Text, FileName: filepath.Base(path)}, useRemote)

	res := entity.ExtractionResult{
		ExtractedText: text.Text,
		FileType:      FileType(path),
		Fields:        fields,
		Method:        text.Method,
		Pages:         text.Pages,
		Warnings:      text.Warnings,
		DurationMS:    time.Since(start).Milliseconds(),
	}
	logger.Info("pipeline.process.ok",
		"method", res.Method,
		"pages", res.Pages,
		"ai_used", fields.AIUsed,
		"found", fields.FoundCount(),
		"elapsed_ms", res.DurationMS,
	)
	return res
}

// FileType returns the MIME type for a path's extension.
func FileType(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".tif", ".tiff":
		return "image/tiff"
	case ".bmp":
		return "image/bmp"
	}
	if mt := mime.TypeByExtension(ext); mt != "" {
		return strings.SplitN(mt, ";", 2)[0]
	}
	return "application/octet-stream"
}
