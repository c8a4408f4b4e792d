package llm

import (
	"encoding/json"
	"errors"
	"slices"

	"github.com/joseph-ayodele/referral-intake/constants"
)

// ErrNoFields means a response carried none of the referral fields at all.
var ErrNoFields = errors.New("response contains no referral fields")

// FillMissingFields is the lenient last step after NormalizeAndSanitizeJSON: absent fields
// become the sentinel, an unknown confidence becomes low and missing notes become "".
// A document with none of the eight fields is rejected rather than padded.
func FillMissingFields(doc []byte) ([]byte, []string, error) {
	var m map[string]any
	if err := json.Unmarshal(doc, &m); err != nil {
		return nil, nil, err
	}
	if m == nil {
		return nil, nil, ErrNoFields
	}

	var filled []string
	present := 0
	for _, k := range constants.FieldNames() {
		if _, ok := m[k]; ok {
			present++
			continue
		}
		m[k] = constants.NotFound
		filled = append(filled, k)
	}
	if present == 0 {
		return nil, filled, ErrNoFields
	}

	if c, _ := m[keyConfidence].(string); !slices.Contains(constants.ConfidenceLevels(), c) {
		m[keyConfidence] = string(constants.ConfidenceLow)
		filled = append(filled, keyConfidence)
	}
	if _, ok := m[keyExtractionNotes].(string); !ok {
		m[keyExtractionNotes] = ""
		filled = append(filled, keyExtractionNotes)
	}

	b, err := json.Marshal(m)
	if err != nil {
		return nil, nil, err
	}
	return b, filled, nil
}
