package tools

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/invopop/jsonschema"
	kjsonschema "github.com/kaptinlin/jsonschema"
)

// inputValidator checks tool input against the definition's compiled input
// schema. A schema that fails to compile is reported on every call.
type inputValidator struct {
	schema *kjsonschema.Schema
	err    error
}

func compileInput(s *jsonschema.Schema) *inputValidator {
	if s == nil {
		return &inputValidator{}
	}
	b, err := json.Marshal(s)
	if err != nil {
		return &inputValidator{err: fmt.Errorf("failed to compile input schema: %w", err)}
	}
	compiled, err := kjsonschema.NewCompiler().Compile(b)
	if err != nil {
		return &inputValidator{err: fmt.Errorf("failed to compile input schema: %w", err)}
	}
	return &inputValidator{schema: compiled}
}

// check requires a JSON object that satisfies the schema, if any.
func (v *inputValidator) check(input json.RawMessage) error {
	if len(input) == 0 {
		input = json.RawMessage("{}")
	}
	var obj map[string]any
	if err := json.Unmarshal(input, &obj); err != nil || obj == nil {
		return &InputError{Err: errors.New("input must be a JSON object")}
	}
	if v == nil {
		return nil
	}
	if v.err != nil {
		return v.err
	}
	if v.schema == nil {
		return nil
	}
	result := v.schema.Validate(obj)
	if result.Valid {
		return nil
	}
	msgs := make([]string, 0, len(result.Errors))
	for _, e := range result.Errors {
		msgs = append(msgs, e.Error())
	}
	slices.Sort(msgs)
	return &InputError{Err: fmt.Errorf("schema validation failed: %s", strings.Join(msgs, "; "))}
}
