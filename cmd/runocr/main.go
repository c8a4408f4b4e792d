package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joseph-ayodele/referral-intake/internal/app"
	"github.com/joseph-ayodele/referral-intake/internal/common"
)

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_FILE"), "optional YAML config file")
	timeout := flag.Duration("timeout", 5*time.Minute, "overall OCR timeout")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: runocr [-config file] <pdf|image>")
		os.Exit(2)
	}
	path := flag.Arg(0)

	cfg, err := common.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	// Logs go to stderr so stdout carries only the text.
	logger := common.NewLoggerTo(os.Stderr, "runocr", cfg.Log.Level)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	res := app.NewTextExtractor(cfg.OCR, logger).Extract(ctx, path)
	if res.Degraded() {
		logger.Error("text extraction failed", "method", res.Method, "duration_ms", res.Duration.Milliseconds())
		fmt.Println(res.Text)
		os.Exit(1)
	}

	logger.Info("text extraction OK",
		"method", res.Method,
		"pages", res.Pages,
		"bytes", len(res.Text),
		"warnings", len(res.Warnings),
		"duration_ms", res.Duration.Milliseconds(),
	)
	fmt.Println(res.Text)
}
