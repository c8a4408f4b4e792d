package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/joseph-ayodele/referral-intake/internal/app"
	"github.com/joseph-ayodele/referral-intake/internal/async"
	"github.com/joseph-ayodele/referral-intake/internal/common"
	"github.com/joseph-ayodele/referral-intake/internal/entity"
	"github.com/joseph-ayodele/referral-intake/internal/ingest"
	"github.com/joseph-ayodele/referral-intake/internal/pipeline"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	var (
		configPath = flag.String("config", os.Getenv("CONFIG_FILE"), "optional YAML config file")
		noAI       = flag.Bool("no-ai", false, "skip the remote model and use pattern matching only")
		xlsxOut    = flag.String("xlsx", "", "also write an XLSX workbook to this path")
		workers    = flag.Int("workers", 2, "documents processed concurrently")
		hidden     = flag.Bool("hidden", false, "include hidden files when walking directories")
	)
	flag.Parse()

	if flag.NArg() == 0 {
		printError("usage: referral-extract [-no-ai] [-xlsx out.xlsx] [-workers n] <file|dir>...\n")
		os.Exit(2)
	}

	cfg, err := common.LoadConfig(*configPath)
	if err != nil {
		printError("Error: config: %v\n", err)
		os.Exit(1)
	}
	logger := common.NewLoggerTo(os.Stderr, "referral-extract", cfg.Log.Level)

	a, err := app.New(cfg, logger, nil)
	if err != nil {
		logger.Error("wire app", "error", err)
		os.Exit(1)
	}

	files, skipped, stats, err := ingest.Collect(flag.Args(), !*hidden)
	if err != nil {
		logger.Error("collect files", "error", err)
		os.Exit(1)
	}
	for _, s := range skipped {
		logger.Error("skip file", "path", s.Path, "error", s.Err)
	}
	logger.Info("files collected", "scanned", stats.Scanned, "matched", stats.Matched, "failed", stats.Failed)

	// Each file is its own single-document run; a failure never affects its neighbours.
	outcomes := async.ProcessAll(context.Background(), a.Processor, files,
		pipeline.Options{UseRemote: !*noAI}, logger, async.WithWorkers(*workers))

	results := make([]entity.ExtractionResult, 0, len(outcomes))
	failures := len(skipped)
	for _, o := range outcomes {
		if o.Err != nil {
			failures++
			continue
		}
		results = append(results, o.Result)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(results); err != nil {
		logger.Error("write json", "error", err)
		os.Exit(1)
	}

	if *xlsxOut != "" {
		buf, err := a.Exporter.ReferralsXLSX(results)
		if err != nil {
			logger.Error("render xlsx", "error", err)
			os.Exit(1)
		}
		if err := os.WriteFile(*xlsxOut, buf.Bytes(), 0o644); err != nil {
			logger.Error("write xlsx", "path", *xlsxOut, "error", err)
			os.Exit(1)
		}
		logger.Info("xlsx written", "path", *xlsxOut, "rows", len(results))
	}

	if failures > 0 {
		os.Exit(1)
	}
}
