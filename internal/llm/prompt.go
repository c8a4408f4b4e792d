package llm

import (
	"strings"

	"github.com/joseph-ayodele/referral-intake/constants"
)

// FieldDescriptions explains each referral field to the model, in display order.
var FieldDescriptions = []struct {
	Name        string
	Label       string
	Description string
}{
	{constants.FieldPatientName, "Patient name", "Full name of the patient"},
	{constants.FieldDateOfBirth, "Date of birth", "Patient's date of birth (format: MM/DD/YYYY or any date format found)"},
	{constants.FieldPhoneNumber, "Phone number", "Patient's phone number"},
	{constants.FieldEmailAddress, "Email address", "Patient's email address"},
	{constants.FieldInsurance, "Insurance", "Insurance provider or insurance information"},
	{constants.FieldReferringProvider, "Referring provider", "Name of the referring doctor or provider"},
	{constants.FieldReferralReason, "Referral reason", "Reason for the referral or chief complaint"},
	{constants.FieldNotesComments, "Notes comments", "Any additional notes, comments, or special instructions"},
}

// BuildSystemPrompt defines the extraction rules, confidence rubric and output shape.
func BuildSystemPrompt() string {
	parts := []string{
		"You are an expert medical document processing assistant that extracts patient information from referral documents, fax forms and medical records.",
		"Analyze the provided text carefully and extract ALL available information for each field.",

		// strategy
		"EXTRACTION STRATEGY:",
		"1. Read the ENTIRE document before extracting.",
		"2. Look for information in tables, forms, headers and body text.",
		"3. Check every section; a field may appear in more than one place.",
		"4. For referrals look in patient information, provider, diagnosis and notes sections.",
		"5. Extract partial information when complete data is not available (e.g. only a first name).",

		// per-field guidance
		"FIELD-SPECIFIC INSTRUCTIONS:",
		"- patient_name: look for \"Patient Name\", \"Name\" or the patient information section. Verify spelling.",
		"- date_of_birth: look for \"DOB\", \"Date of Birth\", \"Birth Date\" or \"Born\". Preserve the format found in the document.",
		"- phone_number: look for \"Phone\", \"Tel\", \"Telephone\", \"Contact\" or shapes like (XXX) XXX-XXXX.",
		"- email_address: look for email shapes (text@domain.com) anywhere in the document.",
		"- insurance: look for \"Insurance\", \"Payer\", \"Coverage\", \"Plan\", \"Primary Insurance\". Extract the plan name (e.g. \"SELF PAY\", \"Blue Cross\").",
		"- referring_provider: look for \"Referring Provider\", \"From Provider\", \"Sent by\" or signatures with credentials (MD, DO, NP, PA, FNP-C). " +
			"The name may appear several times; use the clearest, most complete occurrence and cross-check it against the signature.",
		"- referral_reason: look for \"Diagnosis\", \"Reason for Referral\", \"Chief Complaint\" or ICD-10 codes. Extract the main condition.",
		"- notes_comments: ONLY text under a heading labeled \"Notes\", \"Comments\", \"Special Instructions\", \"Additional Information\" or \"Remarks\". " +
			"Never use insurance, secondary insurance or authorization text. If no such section exists, return \"" + constants.NotFound + "\".",

		// rules
		"RULES:",
		"Text may be garbled by OCR; extract what you can. Correct common OCR confusions (l vs I, 0 vs O, dropped letters) by comparing repeated occurrences.",
		"Return \"" + constants.NotFound + "\" only when the information is truly absent or illegible. Never return null or an empty string.",
		"Extract only the requested fields, nothing else (data minimization).",
		"If you inferred a value from poor-quality text, say so in extraction_notes.",

		// confidence
		"CONFIDENCE: \"high\" when all or most fields were found in clear text; \"medium\" when some fields were found or text quality is moderate; " +
			"\"low\" when very few fields were found or the text is heavily garbled.",

		// output
		"Return ONLY a JSON object with exactly these keys: " + strings.Join(outputKeys(), ", ") + ". " +
			"Each field value is a string. confidence is one of high, medium, low. extraction_notes is a brief note about what was found, OCR quality or extraction challenges.",
	}
	return strings.Join(parts, "\n")
}

// BuildUserPrompt lists the fields and embeds the document text.
func BuildUserPrompt(req ExtractRequest) string {
	var b strings.Builder
	b.WriteString("Extract the following information from this medical referral document:\n\n")
	for _, f := range FieldDescriptions {
		b.WriteString("- ")
		b.WriteString(f.Label)
		b.WriteString(": ")
		b.WriteString(f.Description)
		b.WriteString("\n")
	}

	b.WriteString("\nCRITICAL INSTRUCTIONS FOR THIS DOCUMENT:\n")
	b.WriteString("1. Provider names may contain OCR errors. Look for the name in headers, signatures and \"From Provider\" sections and use the clearest version.\n")
	b.WriteString("2. Notes/Comments come ONLY from actual \"Notes\" or \"Comments\" sections. Lines like \"Secondary Insurance: None recorded\" or \"Authorization: SELF PAY\" are NOT notes.\n")
	b.WriteString("3. Double-check spelling by finding the name in multiple places in the document.\n")

	if name := strings.TrimSpace(req.FileName); name != "" {
		b.WriteString("\nFilename: ")
		b.WriteString(name)
		b.WriteString("\n")
	}
	b.WriteString("\nDocument text (may contain OCR errors):\n\"\"\"\n")
	b.WriteString(req.Text)
	b.WriteString("\n\"\"\"\n\nProvide the extracted information in JSON format.")
	return b.String()
}

// outputKeys is every key the model must return.
func outputKeys() []string {
	return append(constants.FieldNames(), keyConfidence, keyExtractionNotes)
}

const (
	keyConfidence      = "confidence"
	keyExtractionNotes = "extraction_notes"
)
