// Package app wires configuration into the pipeline components every binary shares.
package app

import (
	"fmt"
	"log/slog"

	"github.com/joseph-ayodele/referral-intake/internal/common"
	"github.com/joseph-ayodele/referral-intake/internal/export"
	"github.com/joseph-ayodele/referral-intake/internal/extract"
	"github.com/joseph-ayodele/referral-intake/internal/llm"
	"github.com/joseph-ayodele/referral-intake/internal/llm/openai"
	"github.com/joseph-ayodele/referral-intake/internal/metrics"
	"github.com/joseph-ayodele/referral-intake/internal/ocr"
	"github.com/joseph-ayodele/referral-intake/internal/pipeline"
	"github.com/joseph-ayodele/referral-intake/internal/resilience"
	"github.com/joseph-ayodele/referral-intake/internal/scratch"
)

type App struct {
	Processor *pipeline.Processor
	Exporter  *export.Service
	Scratch   *scratch.Store
	Executor  *resilience.Executor
}

// New builds the processor from cfg. m may be nil (CLI use).
func New(cfg *common.Config, logger *slog.Logger, m *metrics.Metrics) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var obs pipeline.Observer
	if m != nil {
		obs = m
	}

	store, err := scratch.New(cfg.Scratch.Dir, logger)
	if err != nil {
		return nil, fmt.Errorf("scratch: %w", err)
	}

	exec := resilience.NewExecutor(cfg.Breaker, logger)
	if m != nil {
		exec.OnStateChange(m.BreakerStateChanged)
	}

	var remote llm.FieldStrategy
	if cfg.LLM.Enabled {
		client := openai.NewClient(openai.Config{
			APIKey:       cfg.LLM.APIKey,
			BaseURL:      cfg.LLM.BaseURL,
			Model:        cfg.LLM.Model,
			Temperature:  cfg.LLM.Temperature,
			Timeout:      cfg.LLM.Timeout,
			StrictSchema: cfg.LLM.StrictSchema,
		}, exec, logger)
		if client.Available() {
			logger.Info("app.llm.ready", "strategy", client.Name())
		} else {
			logger.Warn("app.llm.no_credential", "fallback", "pattern")
		}
		remote = client
	} else {
		logger.Info("app.llm.disabled", "fallback", "pattern")
	}

	ocrStage := pipeline.NewOCRStage(NewTextExtractor(cfg.OCR, logger), obs, logger)
	parseStage := pipeline.NewParseStage(logger, remote, nil, obs)

	return &App{
		Processor: pipeline.NewProcessor(logger, store, ocrStage, parseStage, cfg.Server.MaxUploadBytes, obs),
		Exporter:  export.NewService(logger),
		Scratch:   store,
		Executor:  exec,
	}, nil
}

// NewTextExtractor builds the OCR engine and its never-failing adapter.
func NewTextExtractor(cfg common.OCRConfig, logger *slog.Logger) *extract.OCRAdapter {
	engine := ocr.NewExtractor(ocr.Config{
		Pdftoppm:      cfg.Pdftoppm,
		Pdfinfo:       cfg.Pdfinfo,
		Tesseract:     cfg.Tesseract,
		TesseractLang: cfg.Lang,
		TessdataDir:   cfg.TessdataDir,
		DPI:           cfg.DPI,
		MaxPages:      cfg.MaxPages,
		TempDir:       cfg.TempDir,
		Normalize:     cfg.Normalize,
	}, logger)
	return extract.NewOCRAdapter(engine, logger)
}

// AIAvailable reports whether a remote strategy with a credential is wired.
func (a *App) AIAvailable() bool {
	return a.Processor.Parse.RemoteAvailable()
}
