package ocr

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joseph-ayodele/referral-intake/constants"
)

// extractPDF reads the text layer first and rasterizes every page through OCR
// when that layer is empty.
func (e *Extractor) extractPDF(ctx context.Context, path string) (ExtractionResult, error) {
	res := ExtractionResult{SourceType: constants.PDF}

	pages, warns, err := e.pdf.PageTexts(path)
	res.Warnings = append(res.Warnings, warns...)
	if err == nil {
		text, ok := joinTextLayer(pages)
		if ok {
			res.Text = text
			res.Pages = len(pages)
			res.Method = constants.MethodPDFText
			return res, nil
		}
		e.logger.Info("ocr.pdf.fallback", "pages", len(pages), "reason", "empty text layer")
	} else {
		e.logger.Warn("ocr.pdf.fallback", "reason", "text layer unreadable", "error", err)
		res.Warnings = append(res.Warnings, err.Error())
	}

	count := len(pages)
	if err != nil {
		n, infoErr := e.pdfInfoPages(ctx, path)
		if infoErr != nil {
			return res, fmt.Errorf("open pdf: %w", errors.Join(err, infoErr))
		}
		count = n
	}
	if count == 0 {
		return res, errors.New("pdf has no pages")
	}

	text, ocrWarns, err := e.pdfToOCR(ctx, path, count)
	res.Warnings = append(res.Warnings, ocrWarns...)
	res.Method = constants.MethodPDFOCR
	res.Language = e.cfg.TesseractLang
	if err != nil {
		return res, err
	}
	res.Text = text
	res.Pages = count
	return res, nil
}

// joinTextLayer concatenates page texts, marking pages only when there is more than one.
// ok is false when every page is blank.
func joinTextLayer(pages []string) (string, bool) {
	var b strings.Builder
	blank := true
	for i, p := range pages {
		if strings.TrimSpace(p) != "" {
			blank = false
		}
		if len(pages) > 1 {
			writePageMarker(&b, i+1)
		}
		b.WriteString(p)
	}
	if blank {
		return "", false
	}
	return b.String(), true
}

// pdfToOCR renders each page at cfg.DPI and runs OCR on it. Markers are always emitted here
// so OCR output keeps page boundaries even for single-page scans.
func (e *Extractor) pdfToOCR(ctx context.Context, path string, pages int) (string, []string, error) {
	tmpDir, err := os.MkdirTemp(e.cfg.TempDir, "referral-pp-*")
	if err != nil {
		return "", nil, fmt.Errorf("create raster dir: %w", err)
	}
	defer func(dir string) {
		if err := os.RemoveAll(dir); err != nil {
			e.logger.Warn("failed to remove raster dir", "dir", dir, "error", err)
		}
	}(tmpDir)

	var warns []string
	if e.cfg.MaxPages > 0 && pages > e.cfg.MaxPages {
		warns = append(warns, fmt.Sprintf("only the first %d of %d pages were rasterized", e.cfg.MaxPages, pages))
		pages = e.cfg.MaxPages
	}

	var b strings.Builder
	var lastErr error
	recognized := 0
	for n := 1; n <= pages; n++ {
		if err := ctx.Err(); err != nil {
			return "", warns, err
		}
		e.logger.Debug("ocr.pdf.page", "page", n, "pages", pages)
		txt, err := e.ocrPage(ctx, path, tmpDir, n)
		if err != nil {
			warns = append(warns, fmt.Sprintf("page %d: %v", n, err))
			lastErr = err
			continue
		}
		recognized++
		writePageMarker(&b, n)
		b.WriteString(txt)
	}
	if recognized == 0 {
		return "", warns, fmt.Errorf("no page could be rasterized and recognized: %w", lastErr)
	}
	return b.String(), warns, nil
}

// ocrPage renders one page to a PNG and recognizes it. The PNG is removed on every return path.
func (e *Extractor) ocrPage(ctx context.Context, pdfPath, dir string, page int) (string, error) {
	prefix := filepath.Join(dir, fmt.Sprintf("page-%d", page))
	img := prefix + ".png"
	defer e.removeArtifact(img)

	p := strconv.Itoa(page)
	// pdftoppm -r 300 -png -f n -l n -singlefile <in.pdf> <tmp/page-n>
	_, errb, err := e.runner.Run(ctx, e.cfg.Pdftoppm, e.logger,
		"-r", strconv.Itoa(e.cfg.DPI), "-png", "-f", p, "-l", p, "-singlefile", pdfPath, prefix)
	if err != nil {
		return "", fmt.Errorf("pdftoppm: %w: %s", err, strings.TrimSpace(truncate(string(errb), 512)))
	}
	if _, err := os.Stat(img); err != nil {
		return "", fmt.Errorf("pdftoppm produced no image: %w", err)
	}

	txt, _, err := e.tesseractOCR(ctx, img)
	if err != nil {
		return "", err
	}
	return txt, nil
}

func (e *Extractor) removeArtifact(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		e.logger.Warn("failed to remove raster image", "file", path, "error", err)
	}
}
