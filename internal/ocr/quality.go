package ocr

import (
	"regexp"
	"strings"
)

var (
	reDate  = regexp.MustCompile(`\b\d{1,2}[-/]\d{1,2}[-/]\d{2,4}\b`)
	rePhone = regexp.MustCompile(`\(?\b\d{3}\)?[-. ]?\d{3}[-. ]\d{4}\b`)
	reEmail = regexp.MustCompile(`[a-z0-9._%+-]+@[a-z0-9.-]+\.[a-z]{2,}`)
	reLabel = regexp.MustCompile(`\b(patient|dob|date of birth|insurance|referr(al|ing)|diagnosis)\b`)
)

// heuristicConfidence scores decoded text by the referral artifacts it contains.
// It is a rough 0..1 OCR-quality signal for operators, not a field confidence.
func heuristicConfidence(txt string) float32 {
	txtL := strings.ToLower(txt)
	score := float32(0.2) // base
	if reDate.MatchString(txtL) {
		score += 0.2
	}
	if rePhone.MatchString(txtL) {
		score += 0.15
	}
	if reEmail.MatchString(txtL) {
		score += 0.1
	}
	if reLabel.MatchString(txtL) {
		score += 0.15
	}
	if len(strings.TrimSpace(txt)) > 200 {
		score += 0.1
	} // enough content
	if strings.TrimSpace(txt) == "" {
		score = 0
	}
	if score > 1.0 {
		score = 1.0
	}
	return score
}
