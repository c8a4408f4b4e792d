package ocr

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"crlf and tabs", "Patient:\tJane\r\nDOB:  01/02/1980\r\n", "Patient: Jane\nDOB: 01/02/1980"},
		{"form rules dropped", "Insurance: Aetna\n-----\nNotes: none", "Insurance: Aetna\n\nNotes: none"},
		{"blank runs collapsed", "a\n\n\n\n\nb", "a\n\nb"},
		{"markers kept", "\n\n=== PAGE 1 ===\n\nx", "=== PAGE 1 ===\n\nx"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.in); got != tt.want {
				t.Fatalf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestHeuristicConfidence(t *testing.T) {
	if got := heuristicConfidence("   "); got != 0 {
		t.Fatalf("blank text should score 0, got %v", got)
	}
	rich := "Patient DOB 01/02/1980 phone (555) 123-4567 jane.doe@example.com"
	if heuristicConfidence(rich) <= heuristicConfidence("lorem ipsum") {
		t.Fatal("referral artifacts should raise the score")
	}
}
