package llm

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/joseph-ayodele/referral-intake/constants"
)

// BuildReferralJSONSchema returns the JSON-Schema of a model response as a generic map.
// We pass it to the model as a constraint and also use it locally to validate.
func BuildReferralJSONSchema() map[string]any {
	props := map[string]any{}
	for _, name := range constants.FieldNames() {
		props[name] = map[string]any{"type": "string", "minLength": 1}
	}
	props[keyConfidence] = map[string]any{
		"type": "string",
		"enum": constants.ConfidenceLevels(),
	}
	props[keyExtractionNotes] = map[string]any{"type": "string"}

	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties":           props,
		"required":             outputKeys(),
	}
}

// ValidateJSONAgainstSchema validates "data" against "schemaMap".
func ValidateJSONAgainstSchema(schemaMap map[string]any, data []byte) error {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(b)); err != nil {
		return fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("schema.json")
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("json does not match schema: %w", err)
	}
	return nil
}

func mustJSON(v any) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

// SchemaMessage renders the schema for inclusion in a prompt.
func SchemaMessage(schema map[string]any) string {
	return "JSON Schema:\n" + mustJSON(schema)
}
