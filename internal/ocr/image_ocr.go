package ocr

import (
	"context"
	"fmt"
	"strings"

	"github.com/joseph-ayodele/referral-intake/constants"
)

func (e *Extractor) extractImage(ctx context.Context, path string) (ExtractionResult, error) {
	txt, warn, err := e.tesseractOCR(ctx, path)
	if err != nil {
		return ExtractionResult{SourceType: constants.IMAGE, Method: constants.MethodImageOCR, Warnings: warn}, err
	}
	return ExtractionResult{
		Text:       txt,
		Pages:      1,
		SourceType: constants.IMAGE,
		Method:     constants.MethodImageOCR,
		Language:   e.cfg.TesseractLang,
		Warnings:   warn,
	}, nil
}

func (e *Extractor) tesseractOCR(ctx context.Context, path string) (string, []string, error) {
	args := []string{path, "stdout", "-l", e.cfg.TesseractLang}
	if e.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", e.cfg.TessdataDir)
	}

	// tesseract <file> stdout -l <lang>
	out, errb, err := e.runner.Run(ctx, e.cfg.Tesseract, e.logger, args...)
	if err != nil {
		msg := strings.TrimSpace(truncate(string(errb), 512))
		if msg == "" {
			return "", nil, fmt.Errorf("tesseract: %w", err)
		}
		return "", []string{msg}, fmt.Errorf("tesseract: %w: %s", err, msg)
	}
	return string(out), nil, nil
}
