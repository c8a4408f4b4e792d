package export

import (
	"bytes"
	"io"
	"log/slog"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/referral-intake/constants"
	"github.com/joseph-ayodele/referral-intake/internal/entity"
)

func TestReferralsXLSX(t *testing.T) {
	fs := entity.NewFieldSet()
	fs.PatientName = "Jane Doe"
	fs.DateOfBirth = "01/02/1980"
	fs.Confidence = constants.ConfidenceMedium
	fs.AIUsed = true

	results := []entity.ExtractionResult{
		{
			ExtractedText: "Patient: Jane Doe",
			FileName:      "referral.pdf",
			FileType:      "application/pdf",
			Fields:        fs,
			Method:        constants.MethodPDFOCR,
			Pages:         2,
			Warnings:      []string{"page 2: no text"},
		},
		{
			FileName: "fax.png",
			FileType: "image/png",
			Fields:   entity.NewFieldSet(),
			Method:   constants.MethodImageOCR,
			Pages:    1,
		},
	}

	svc := NewService(slog.New(slog.NewTextHandler(io.Discard, nil)))
	buf, err := svc.ReferralsXLSX(results)
	if err != nil {
		t.Fatalf("ReferralsXLSX: %v", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(SheetName)
	if err != nil {
		t.Fatalf("get rows: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected header + 2 rows, got %d", len(rows))
	}

	headers := Headers()
	if len(rows[0]) != len(headers) || rows[0][0] != "File Name" || rows[0][4] != "Patient Name" {
		t.Fatalf("unexpected header row %v", rows[0])
	}

	first := rows[1]
	if first[0] != "referral.pdf" || first[2] != string(constants.MethodPDFOCR) || first[3] != "2" {
		t.Fatalf("unexpected first row %v", first)
	}
	if first[4] != "Jane Doe" || first[5] != "01/02/1980" || first[6] != constants.NotFound {
		t.Fatalf("unexpected field cells %v", first[4:12])
	}
	if first[12] != "medium" || first[13] != "TRUE" || first[15] != "page 2: no text" {
		t.Fatalf("unexpected trailing cells %v", first[12:])
	}

	second := rows[2]
	if second[4] != constants.NotFound || second[12] != "low" || second[13] != "FALSE" {
		t.Fatalf("unexpected second row %v", second)
	}
}

func TestReferralsXLSXEmpty(t *testing.T) {
	buf, err := NewService(nil).ReferralsXLSX(nil)
	if err != nil {
		t.Fatal(err)
	}
	f, err := excelize.OpenReader(buf)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	rows, _ := f.GetRows(SheetName)
	if len(rows) != 1 {
		t.Fatalf("expected header only, got %d rows", len(rows))
	}
}
