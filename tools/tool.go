package tools

import (
	"context"
	"encoding/json"

	"github.com/invopop/jsonschema"
)

// ToolFunc runs a tool with its raw JSON input and returns a JSON-safe result.
type ToolFunc func(ctx context.Context, input json.RawMessage) (string, error)

type ToolDefinition struct {
	Name        string
	Description string
	InputSchema *jsonschema.Schema
	Function    ToolFunc
}

// GenerateSchema reflects T into an inline object schema.
func GenerateSchema[T any]() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var v T
	s := reflector.Reflect(v)
	s.Version = ""
	s.ID = ""
	return s
}

// Typed adapts a function over a decoded input struct into a ToolDefinition.
// The result is JSON-encoded.
func Typed[In, Out any](name, description string, fn func(ctx context.Context, in In) (Out, error)) ToolDefinition {
	return ToolDefinition{
		Name:        name,
		Description: description,
		InputSchema: GenerateSchema[In](),
		Function: func(ctx context.Context, raw json.RawMessage) (string, error) {
			var in In
			if err := json.Unmarshal(raw, &in); err != nil {
				return "", &InputError{Err: err}
			}
			out, err := fn(ctx, in)
			if err != nil {
				return "", err
			}
			b, err := json.Marshal(out)
			if err != nil {
				return "", err
			}
			return string(b), nil
		},
	}
}

// InputError reports tool input that does not decode or fails validation.
type InputError struct {
	Err error
}

func (e *InputError) Error() string { return "invalid tool input: " + e.Err.Error() }
func (e *InputError) Unwrap() error { return e.Err }
