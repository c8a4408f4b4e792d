package ocr

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/joseph-ayodele/referral-intake/constants"
)

// ErrUnsupportedFormat is returned for extensions outside constants.AllowedExtensions.
var ErrUnsupportedFormat = errors.New("unsupported file format")

type Config struct {
	Pdftoppm  string // binary name or absolute path; if empty -> "pdftoppm"
	Pdfinfo   string // binary name or absolute path; if empty -> "pdfinfo"
	Tesseract string // binary name or absolute path; if empty -> "tesseract"

	TesseractLang string // default "eng"
	TessdataDir   string
	DPI           int // rasterization DPI for scanned PDFs, default 300
	MaxPages      int // 0 = no limit

	TempDir   string // parent of per-document raster dirs; "" = os.TempDir()
	Normalize bool   // collapse whitespace noise in OCR output
}

type ExtractionResult struct {
	Text       string
	Pages      int
	SourceType string           // constants.PDF | constants.IMAGE
	Method     constants.Method // pdf-text | pdf-ocr | image-ocr
	Language   string
	Duration   time.Duration
	Warnings   []string
	Confidence float32 // heuristic OCR quality, 0..1
}

type Extractor struct {
	cfg    Config
	runner Runner
	pdf    PDFReader
	logger *slog.Logger
}

func NewExtractor(cfg Config, logger *slog.Logger) *Extractor {
	return NewExtractorWithRunner(cfg, execRunner{}, logger)
}

// NewExtractorWithRunner is NewExtractor with a custom command runner (tests, sandboxes).
func NewExtractorWithRunner(cfg Config, runner Runner, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	if cfg.Pdfinfo == "" {
		cfg.Pdfinfo = "pdfinfo"
	}
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	if cfg.TesseractLang == "" {
		cfg.TesseractLang = "eng"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 300
	}
	if runner == nil {
		runner = execRunner{}
	}
	return &Extractor{cfg: cfg, runner: runner, pdf: textLayerReader{}, logger: logger}
}

// Extract picks a strategy based on file extension.
func (e *Extractor) Extract(ctx context.Context, path string) (ExtractionResult, error) {
	start := time.Now()
	ext := constants.NormalizeExt(filepath.Ext(path))
	e.logger.Debug("starting ocr extraction", "method", "auto", "ext", ext)

	var (
		res ExtractionResult
		err error
	)
	switch constants.MapExtToFormat(ext) {
	case constants.PDF:
		res, err = e.extractPDF(ctx, path)
	case constants.IMAGE:
		res, err = e.extractImage(ctx, path)
	default:
		e.logger.Warn("unsupported ocr extension", "extension", ext)
		return ExtractionResult{}, fmt.Errorf("%w: .%s", ErrUnsupportedFormat, ext)
	}
	res.Duration = time.Since(start)
	if err != nil {
		e.logger.Error("ocr extraction failed", "ext", ext, "error", err, "elapsed_ms", res.Duration.Milliseconds())
		return res, err
	}
	if e.cfg.Normalize {
		res.Text = Normalize(res.Text)
	}
	res.Confidence = heuristicConfidence(res.Text)
	e.logger.Info("ocr extraction ok",
		"ext", ext,
		"method", res.Method,
		"pages", res.Pages,
		"bytes", len(res.Text),
		"warnings", len(res.Warnings),
		"elapsed_ms", res.Duration.Milliseconds(),
	)
	return res, nil
}

// writePageMarker appends the 1-based page separator used in every multi-page rendering.
func writePageMarker(b *strings.Builder, page int) {
	fmt.Fprintf(b, "\n\n=== PAGE %d ===\n\n", page)
}
