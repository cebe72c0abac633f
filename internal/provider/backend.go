// Package provider adapts text-generation backends to one request/response
// shape used by the generation loop.
package provider

import (
	"context"
	"encoding/json"

	"github.com/petasbytes/turnkit/message"
	"github.com/petasbytes/turnkit/schema"
	"github.com/petasbytes/turnkit/tools"
)

// Backend generates one reply for an ordered message list.
type Backend interface {
	Generate(ctx context.Context, req *Request) (*Response, error)
}

// Params are optional sampling controls. Nil means backend default.
type Params struct {
	Temperature *float64
	TopP        *float64
	MaxTokens   *int
}

type Request struct {
	Messages []message.Message
	Tools    []tools.ToolDefinition
	Params   Params
	// Output, when set, asks for a structured reply of this shape.
	Output *schema.Node
}

type ToolCall struct {
	ID    string
	Name  string
	Input json.RawMessage
}

type Usage struct {
	InputTokens  int64
	OutputTokens int64
}

type Response struct {
	Text string
	// Structured is the JSON value found in Text when Output was requested.
	Structured json.RawMessage
	ToolCalls  []ToolCall
	StopReason string
	Usage      Usage
}

// BackendFunc lets a plain function serve as a Backend.
type BackendFunc func(ctx context.Context, req *Request) (*Response, error)

func (f BackendFunc) Generate(ctx context.Context, req *Request) (*Response, error) {
	return f(ctx, req)
}
