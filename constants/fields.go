package constants

// NotFound is the sentinel for a field that could not be extracted.
const NotFound = "Not found"

// Field names of the fixed referral schema, in display order.
const (
	FieldPatientName       = "patient_name"
	FieldDateOfBirth       = "date_of_birth"
	FieldPhoneNumber       = "phone_number"
	FieldEmailAddress      = "email_address"
	FieldInsurance         = "insurance"
	FieldReferringProvider = "referring_provider"
	FieldReferralReason    = "referral_reason"
	FieldNotesComments     = "notes_comments"
)

var allFields = []string{
	FieldPatientName,
	FieldDateOfBirth,
	FieldPhoneNumber,
	FieldEmailAddress,
	FieldInsurance,
	FieldReferringProvider,
	FieldReferralReason,
	FieldNotesComments,
}

// FieldNames returns a copy of the eight referral field names in display order.
func FieldNames() []string {
	out := make([]string, len(allFields))
	copy(out, allFields)
	return out
}

// Confidence is the coarse extraction quality reported with every FieldSet.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// ConfidenceLevels returns the allowed confidence values.
func ConfidenceLevels() []string {
	return []string{string(ConfidenceHigh), string(ConfidenceMedium), string(ConfidenceLow)}
}
