package llm

import (
	"context"
	"encoding/json"
	"log/slog"
	"regexp"
	"strings"

	"github.com/joseph-ayodele/referral-intake/constants"
	"github.com/joseph-ayodele/referral-intake/internal/entity"
)

// PatternNote is attached to every FieldSet produced without the remote model.
const PatternNote = "Basic pattern matching used (no AI). Results may be incomplete. Configure OPENAI_API_KEY for better extraction."

// Label patterns are line-bound: `[^\S\n]` is horizontal whitespace and captures never
// cross a newline, so a value cannot run into the next label.
var fieldPatterns = []struct {
	field string
	re    *regexp.Regexp
}{
	{constants.FieldPatientName, regexp.MustCompile(`(?i)(?:patient|name):[^\S\n]*([A-Za-z][A-Za-z \t,]*)`)},
	{constants.FieldDateOfBirth, regexp.MustCompile(`(?i)(?:dob|date of birth|birth date):[^\S\n]*(\d{1,2}[-/]\d{1,2}[-/]\d{2,4})`)},
	{constants.FieldPhoneNumber, regexp.MustCompile(`(?i)(?:phone|tel|telephone):[^\S\n]*(\(?\d[\d \t\-().]*)`)},
	{constants.FieldEmailAddress, regexp.MustCompile(`([a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,})`)},
	{constants.FieldInsurance, regexp.MustCompile(`(?i)(?:insurance|carrier|plan):[^\S\n]*([A-Za-z0-9][A-Za-z0-9 \t]*)`)},
	{constants.FieldReferringProvider, regexp.MustCompile(`(?i)(?:referring|provider|physician|doctor|dr\.):[^\S\n]*([A-Za-z][A-Za-z \t,.]*)`)},
	{constants.FieldReferralReason, regexp.MustCompile(`(?i)(?:reason|diagnosis|complaint):[^\S\n]*([A-Za-z][A-Za-z \t,.]*)`)},
	{constants.FieldNotesComments, regexp.MustCompile(`(?i)(?:notes|comments|remarks):[^\S\n]*([A-Za-z][A-Za-z \t,.]*)`)},
}

// PatternExtractor is the deterministic fallback strategy. It needs no network or
// credential and is always available.
type PatternExtractor struct {
	logger *slog.Logger
}

func NewPatternExtractor(logger *slog.Logger) *PatternExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &PatternExtractor{logger: logger}
}

func (p *PatternExtractor) Name() string { return "pattern" }

func (p *PatternExtractor) Available() bool { return true }

// ExtractFields takes the first capture of each field pattern, trimmed, or the sentinel.
// It never returns an error.
func (p *PatternExtractor) ExtractFields(_ context.Context, req ExtractRequest) (entity.FieldSet, []byte, error) {
	fs := ExtractWithPatterns(req.Text)
	raw, _ := json.Marshal(fs)
	p.logger.Info("llm.pattern.ok", "found", fs.FoundCount(), "text_len", len(req.Text))
	return fs, raw, nil
}

// ExtractWithPatterns applies the field patterns to text.
func ExtractWithPatterns(text string) entity.FieldSet {
	fs := entity.NewFieldSet()
	for _, fp := range fieldPatterns {
		fs.Set(fp.field, firstCapture(fp.re, text))
	}
	fs.Confidence = constants.ConfidenceLow
	fs.ExtractionNotes = PatternNote
	fs.AIUsed = false
	fs.Normalize()
	return fs
}

func firstCapture(re *regexp.Regexp, text string) string {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return constants.NotFound
	}
	v := strings.TrimSpace(m[1])
	if v == "" {
		return constants.NotFound
	}
	return v
}
