package llm

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"maps"
	"strings"

	"github.com/joseph-ayodele/referral-intake/constants"
)

// synonyms the model tends to use instead of our keys, in priority order.
var synonyms = [][2]string{
	{"name", constants.FieldPatientName},
	{"patient", constants.FieldPatientName},
	{"dob", constants.FieldDateOfBirth},
	{"birth_date", constants.FieldDateOfBirth},
	{"phone", constants.FieldPhoneNumber},
	{"email", constants.FieldEmailAddress},
	{"insurance_provider", constants.FieldInsurance},
	{"provider", constants.FieldReferringProvider},
	{"referring_physician", constants.FieldReferringProvider},
	{"reason", constants.FieldReferralReason},
	{"diagnosis", constants.FieldReferralReason},
	{"notes", constants.FieldNotesComments},
	{"comments", constants.FieldNotesComments},
}

// NormalizeAndSanitizeJSON
// - Renames known synonyms (dob -> date_of_birth)
// - Coerces scalar values to strings; null/empty -> "Not found"
// - Lowercases confidence
// - Removes unknown keys (strict additionalProperties = false friendliness)
func NormalizeAndSanitizeJSON(raw []byte, logger *slog.Logger) ([]byte, []string, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, nil, fmt.Errorf("sanitize: decode: %w", err)
	}
	if m == nil {
		return nil, nil, fmt.Errorf("sanitize: response is not a JSON object")
	}

	dropped := make([]string, 0, 8)

	// 1) rename synonyms to our schema
	for _, syn := range synonyms {
		from, to := syn[0], syn[1]
		if v, ok := m[from]; ok {
			// don't overwrite existing value if already present
			if _, exists := m[to]; !exists {
				m[to] = v
			}
			delete(m, from)
			dropped = append(dropped, from+"->"+to)
		}
	}

	// 2) coerce field values; the sentinel replaces anything unusable
	for _, k := range constants.FieldNames() {
		v, ok := m[k]
		if !ok {
			continue
		}
		switch t := v.(type) {
		case string:
			s := strings.TrimSpace(t)
			if s == "" || strings.EqualFold(s, "null") {
				m[k] = constants.NotFound
				dropped = append(dropped, k+"(empty)")
			} else {
				m[k] = s
			}
		case float64, bool:
			m[k] = fmt.Sprint(t)
		case nil:
			m[k] = constants.NotFound
			dropped = append(dropped, k+"(null)")
		default:
			m[k] = constants.NotFound
			dropped = append(dropped, k+"(type)")
		}
	}

	// 3) confidence / notes
	if v, ok := m[keyConfidence].(string); ok {
		m[keyConfidence] = strings.ToLower(strings.TrimSpace(v))
	}
	if v, ok := m[keyExtractionNotes]; ok {
		switch t := v.(type) {
		case string:
			m[keyExtractionNotes] = strings.TrimSpace(t)
		case nil:
			m[keyExtractionNotes] = ""
		default:
			m[keyExtractionNotes] = fmt.Sprint(t)
		}
	}

	// 4) remove unknown keys
	allowed := make(map[string]struct{}, 10)
	for _, k := range outputKeys() {
		allowed[k] = struct{}{}
	}
	for k := range maps.Clone(m) {
		if _, ok := allowed[k]; !ok {
			delete(m, k)
			dropped = append(dropped, k+"(unknown)")
		}
	}

	out, err := json.Marshal(m)
	if err != nil {
		return nil, dropped, fmt.Errorf("sanitize: encode: %w", err)
	}
	if len(dropped) > 0 {
		logger.Warn("llm.extract.normalize_sanitize", "dropped", dropped)
	}
	return out, dropped, nil
}
