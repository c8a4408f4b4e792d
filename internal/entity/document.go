package entity

import (
	"io"

	"github.com/joseph-ayodele/referral-intake/constants"
)

// Document is an uploaded referral for the duration of one request.
type Document struct {
	FileName    string
	ContentType string
	Body        io.Reader
}

// ExtractionResult is the response handed to the presentation layer.
type ExtractionResult struct {
	ExtractedText string   `json:"extracted_text"`
	FileName      string   `json:"file_name"`
	FileType      string   `json:"file_type"`
	Fields        FieldSet `json:"fields"`

	Method     constants.Method `json:"method"`
	Pages      int              `json:"pages"`
	Warnings   []string         `json:"warnings,omitempty"`
	DurationMS int64            `json:"duration_ms"`
}
