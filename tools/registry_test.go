package tools_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/petasbytes/turnkit/tools"
)

type addInput struct {
	A int `json:"a" jsonschema_description:"First addend."`
	B int `json:"b" jsonschema_description:"Second addend."`
}

type addOutput struct {
	Sum int `json:"sum"`
}

func addTool() tools.ToolDefinition {
	return tools.Typed("add", "Add two integers.", func(_ context.Context, in addInput) (addOutput, error) {
		return addOutput{Sum: in.A + in.B}, nil
	})
}

func TestGenerateSchema(t *testing.T) {
	s := tools.GenerateSchema[addInput]()
	require.NotNil(t, s)
	assert.Equal(t, "object", s.Type)
	require.NotNil(t, s.Properties)
	a, ok := s.Properties.Get("a")
	require.True(t, ok)
	assert.Equal(t, "integer", a.Type)
	assert.Equal(t, "First addend.", a.Description)
	assert.ElementsMatch(t, []string{"a", "b"}, s.Required)
}

func TestRegistry_Lookup(t *testing.T) {
	r := tools.NewRegistry(addTool())
	_, ok := r.Lookup("add")
	assert.True(t, ok)
	_, ok = r.Lookup("missing")
	assert.False(t, ok)

	var nilReg *tools.Registry
	_, ok = nilReg.Lookup("add")
	assert.False(t, ok)
	assert.Empty(t, nilReg.Definitions())
}

func TestRegistry_DefinitionsSorted(t *testing.T) {
	noop := func(context.Context, json.RawMessage) (string, error) { return "{}", nil }
	r := tools.NewRegistry(
		tools.ToolDefinition{Name: "zeta", Function: noop},
		tools.ToolDefinition{Name: "alpha", Function: noop},
	)
	require.NoError(t, r.Register(tools.ToolDefinition{Name: "mid", Function: noop}))
	var names []string
	for _, d := range r.Definitions() {
		names = append(names, d.Name)
	}
	assert.Equal(t, []string{"alpha", "mid", "zeta"}, names)
	assert.Equal(t, 3, r.Len())

	assert.Error(t, r.Register(tools.ToolDefinition{Name: " "}))
	assert.Error(t, r.Register(tools.ToolDefinition{Name: "nofn"}))
}

func TestRegistry_Execute(t *testing.T) {
	ctx := context.Background()
	r := tools.NewRegistry(
		addTool(),
		tools.ToolDefinition{Name: "fails", Function: func(context.Context, json.RawMessage) (string, error) {
			return "", errors.New("disk on fire")
		}},
		tools.ToolDefinition{Name: "panics", Function: func(context.Context, json.RawMessage) (string, error) {
			panic("oops")
		}},
	)

	t.Run("Should return the tool output", func(t *testing.T) {
		res := r.Execute(ctx, "add", json.RawMessage(`{"a":2,"b":3}`))
		assert.False(t, res.IsError)
		assert.JSONEq(t, `{"sum":5}`, res.Content)
	})

	tests := []struct {
		name, tool, input, errSub string
	}{
		{"unknown tool", "missing", `{}`, "tool not found"},
		{"non-object input", "add", `[1,2]`, "JSON object"},
		{"missing required input", "add", `{"a":1}`, "schema validation failed"},
		{"undecodable input", "add", `{"a":"x","b":1}`, "invalid tool input"},
		{"tool error", "fails", `{}`, "disk on fire"},
		{"tool panic", "panics", `{}`, "oops"},
	}
	for _, tt := range tests {
		t.Run("Should capture "+tt.name, func(t *testing.T) {
			res := r.Execute(ctx, tt.tool, json.RawMessage(tt.input))
			assert.True(t, res.IsError)
			assert.Error(t, res.Err)
			assert.Contains(t, gjson.Get(res.Content, "error").String(), tt.errSub)
			assert.Equal(t, tt.tool, gjson.Get(res.Content, "toolName").String())
		})
	}

	t.Run("Should treat empty input as an empty object", func(t *testing.T) {
		noArgs := tools.NewRegistry(tools.ToolDefinition{Name: "ping", Function: func(context.Context, json.RawMessage) (string, error) {
			return `"pong"`, nil
		}})
		res := noArgs.Execute(ctx, "ping", nil)
		assert.False(t, res.IsError)
		assert.Equal(t, `"pong"`, res.Content)
	})
}

func TestRegistry_ExecuteValidatesAgainstSchema(t *testing.T) {
	type countInput struct {
		N    int    `json:"n" jsonschema:"required"`
		Mode string `json:"mode,omitempty" jsonschema:"enum=fast,enum=slow"`
	}
	called := 0
	r := tools.NewRegistry(tools.Typed("count", "Count to n.", func(_ context.Context, in countInput) (string, error) {
		called++
		return "ok", nil
	}))
	ctx := context.Background()

	tests := []struct {
		name, input string
	}{
		{"wrong-typed property", `{"n":"not-a-number"}`},
		{"extra property", `{"n":1,"extra":true}`},
		{"wrong type and extra property", `{"n":"not-a-number","extra":true}`},
		{"value outside enum", `{"n":1,"mode":"sideways"}`},
		{"missing required property", `{"mode":"fast"}`},
	}
	for _, tt := range tests {
		t.Run("Should reject "+tt.name, func(t *testing.T) {
			res := r.Execute(ctx, "count", json.RawMessage(tt.input))
			require.True(t, res.IsError, res.Content)
			var inErr *tools.InputError
			assert.ErrorAs(t, res.Err, &inErr)
			assert.Contains(t, gjson.Get(res.Content, "error").String(), "schema validation failed")
		})
	}
	assert.Zero(t, called, "invalid input must not reach the tool")

	t.Run("Should accept conforming input", func(t *testing.T) {
		res := r.Execute(ctx, "count", json.RawMessage(`{"n":3,"mode":"slow"}`))
		require.False(t, res.IsError, res.Content)
		assert.Equal(t, `"ok"`, res.Content)
		assert.Equal(t, 1, called)
	})
}
