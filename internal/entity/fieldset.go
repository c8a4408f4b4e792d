package entity

import (
	"strings"

	"github.com/joseph-ayodele/referral-intake/constants"
)

// FieldSet is the fixed-schema record extracted from a referral document.
// Every field carries either a value or constants.NotFound, never "".
type FieldSet struct {
	PatientName       string `json:"patient_name"`
	DateOfBirth       string `json:"date_of_birth"`
	PhoneNumber       string `json:"phone_number"`
	EmailAddress      string `json:"email_address"`
	Insurance         string `json:"insurance"`
	ReferringProvider string `json:"referring_provider"`
	ReferralReason    string `json:"referral_reason"`
	NotesComments     string `json:"notes_comments"`

	Confidence      constants.Confidence `json:"confidence"`
	ExtractionNotes string               `json:"extraction_notes"`
	AIUsed          bool                 `json:"ai_used"`
}

// NewFieldSet returns a FieldSet with every field set to the sentinel and low confidence.
func NewFieldSet() FieldSet {
	fs := FieldSet{Confidence: constants.ConfidenceLow}
	for _, name := range constants.FieldNames() {
		fs.Set(name, constants.NotFound)
	}
	return fs
}

// Get returns the value of a field by its schema name.
func (f *FieldSet) Get(name string) (string, bool) {
	p := f.field(name)
	if p == nil {
		return "", false
	}
	return *p, true
}

// Set assigns a field by its schema name. Unknown names are ignored.
func (f *FieldSet) Set(name, value string) bool {
	p := f.field(name)
	if p == nil {
		return false
	}
	*p = value
	return true
}

func (f *FieldSet) field(name string) *string {
	switch name {
	case constants.FieldPatientName:
		return &f.PatientName
	case constants.FieldDateOfBirth:
		return &f.DateOfBirth
	case constants.FieldPhoneNumber:
		return &f.PhoneNumber
	case constants.FieldEmailAddress:
		return &f.EmailAddress
	case constants.FieldInsurance:
		return &f.Insurance
	case constants.FieldReferringProvider:
		return &f.ReferringProvider
	case constants.FieldReferralReason:
		return &f.ReferralReason
	case constants.FieldNotesComments:
		return &f.NotesComments
	}
	return nil
}

// Normalize trims every field, replaces blanks with the sentinel and
// forces an unknown confidence down to low.
func (f *FieldSet) Normalize() {
	for _, name := range constants.FieldNames() {
		v, _ := f.Get(name)
		v = strings.TrimSpace(v)
		if v == "" {
			v = constants.NotFound
		}
		f.Set(name, v)
	}
	switch f.Confidence {
	case constants.ConfidenceHigh, constants.ConfidenceMedium, constants.ConfidenceLow:
	default:
		f.Confidence = constants.ConfidenceLow
	}
	f.ExtractionNotes = strings.TrimSpace(f.ExtractionNotes)
}

// FoundCount returns how many of the eight fields hold a real value.
func (f *FieldSet) FoundCount() int {
	n := 0
	for _, name := range constants.FieldNames() {
		if v, _ := f.Get(name); IsFound(v) {
			n++
		}
	}
	return n
}

// IsFound reports whether v is an extracted value rather than blank or the sentinel.
func IsFound(v string) bool {
	v = strings.TrimSpace(v)
	return v != "" && v != constants.NotFound
}
