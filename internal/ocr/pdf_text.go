package ocr

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/ledongthuc/pdf"
)

// PDFReader reads the embedded text layer of a PDF, one entry per page.
// Per-page decode problems are reported as warnings; err means the file could not be opened.
type PDFReader interface {
	PageTexts(path string) (pages []string, warnings []string, err error)
}

type textLayerReader struct{}

func (textLayerReader) PageTexts(path string) ([]string, []string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	n := r.NumPage()
	pages := make([]string, 0, n)
	var warns []string
	for i := 1; i <= n; i++ {
		txt, err := pageText(r, i)
		if err != nil {
			warns = append(warns, fmt.Sprintf("page %d: %v", i, err))
		}
		pages = append(pages, txt)
	}
	return pages, warns, nil
}

// pageText recovers from panics inside the pdf package, which it raises on some
// malformed content streams.
func pageText(r *pdf.Reader, i int) (txt string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			txt, err = "", fmt.Errorf("decode text layer: %v", rec)
		}
	}()
	p := r.Page(i)
	if p.V.IsNull() {
		return "", nil
	}
	return p.GetPlainText(nil)
}

var rePdfinfoPages = regexp.MustCompile(`(?m)^Pages:\s+(\d+)`)

// pdfInfoPages asks poppler for the page count when the text-layer reader cannot open the file.
func (e *Extractor) pdfInfoPages(ctx context.Context, path string) (int, error) {
	out, errb, err := e.runner.Run(ctx, e.cfg.Pdfinfo, e.logger, path)
	if err != nil {
		return 0, fmt.Errorf("pdfinfo: %w: %s", err, strings.TrimSpace(truncate(string(errb), 512)))
	}
	m := rePdfinfoPages.FindSubmatch(out)
	if m == nil {
		return 0, fmt.Errorf("pdfinfo: no page count in output")
	}
	n, err := strconv.Atoi(string(m[1]))
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("pdfinfo: invalid page count %q", m[1])
	}
	return n, nil
}
