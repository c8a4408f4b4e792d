package export

import (
	"bytes"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/referral-intake/constants"
	"github.com/joseph-ayodele/referral-intake/internal/entity"
)

// SheetName is the worksheet holding one row per referral.
const SheetName = "Referrals"

// Field columns follow constants.FieldNames order.
var fieldHeaders = map[string]string{
	constants.FieldPatientName:       "Patient Name",
	constants.FieldDateOfBirth:       "Date of Birth",
	constants.FieldPhoneNumber:       "Phone Number",
	constants.FieldEmailAddress:      "Email Address",
	constants.FieldInsurance:         "Insurance",
	constants.FieldReferringProvider: "Referring Provider",
	constants.FieldReferralReason:    "Referral Reason",
	constants.FieldNotesComments:     "Notes/Comments",
}

// Headers returns the column titles in sheet order.
func Headers() []string {
	h := []string{"File Name", "File Type", "Method", "Pages"}
	for _, name := range constants.FieldNames() {
		h = append(h, fieldHeaders[name])
	}
	return append(h, "Confidence", "AI Used", "Extraction Notes", "Warnings")
}

// Service renders extraction results as an XLSX workbook.
type Service struct {
	logger *slog.Logger
}

func NewService(logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{logger: logger}
}

// ReferralsXLSX returns a workbook with a header row and one row per result.
// Extracted text is not written; the sheet carries fields only.
func (s *Service) ReferralsXLSX(results []entity.ExtractionResult) (*bytes.Buffer, error) {
	start := time.Now()

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return nil, fmt.Errorf("xlsx sheet: %w", err)
	}

	headers := Headers()
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(SheetName, cell, h); err != nil {
			return nil, fmt.Errorf("xlsx header: %w", err)
		}
	}
	if style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err == nil {
		last, _ := excelize.CoordinatesToCellName(len(headers), 1)
		_ = f.SetCellStyle(SheetName, "A1", last, style)
	}

	for i, r := range results {
		row := i + 2
		write := func(col int, v any) error {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			return f.SetCellValue(SheetName, cell, v)
		}

		values := []any{r.FileName, r.FileType, string(r.Method), r.Pages}
		for _, name := range constants.FieldNames() {
			v, _ := r.Fields.Get(name)
			values = append(values, v)
		}
		values = append(values,
			string(r.Fields.Confidence),
			r.Fields.AIUsed,
			r.Fields.ExtractionNotes,
			strings.Join(r.Warnings, "; "),
		)
		for col, v := range values {
			if err := write(col+1, v); err != nil {
				return nil, fmt.Errorf("xlsx row %d: %w", row, err)
			}
		}
	}

	_ = f.SetColWidth(SheetName, "A", "A", 32) // file name
	_ = f.SetColWidth(SheetName, "B", "D", 16)
	_ = f.SetColWidth(SheetName, "E", "L", 24) // fields
	_ = f.SetColWidth(SheetName, "M", "N", 12)
	_ = f.SetColWidth(SheetName, "O", "P", 60)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"rows", len(results),
		"bytes", buf.Len(),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf, nil
}
