package extract

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// BuildResultJSONSchema returns the JSON-Schema a response body must satisfy.
// Only the outer shape is enforced; the metric mappings stay untrusted and are
// defaulted later during normalization.
func BuildResultJSONSchema(maxPeriods int) map[string]any {
	s := map[string]any{
		"type": "object",
		"propertyNames": map[string]any{
			"type":      "string",
			"maxLength": 256,
		},
	}
	if maxPeriods > 0 {
		s["maxProperties"] = maxPeriods
	}
	return s
}

// CompileSchema compiles schemaMap into a reusable validator.
func CompileSchema(schemaMap map[string]any) (*jsonschema.Schema, error) {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("result.json", bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("result.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return schema, nil
}

// ValidateResult checks a parsed result against a compiled schema.
func ValidateResult(schema *jsonschema.Schema, r Result) error {
	if schema == nil {
		return nil
	}
	// the validator switches on the unnamed map type
	if err := schema.Validate(map[string]any(r)); err != nil {
		return fmt.Errorf("json does not match schema: %w", err)
	}
	return nil
}
