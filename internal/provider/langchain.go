package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"

	"github.com/petasbytes/turnkit/message"
	"github.com/petasbytes/turnkit/tools"
)

// LangChain serves requests through any langchaingo model.
type LangChain struct {
	Model llms.Model
}

func NewLangChain(model llms.Model) *LangChain { return &LangChain{Model: model} }

func (l *LangChain) Generate(ctx context.Context, req *Request) (*Response, error) {
	msgs := make([]llms.MessageContent, 0, len(req.Messages))
	for _, m := range req.Messages {
		msgs = append(msgs, langchainMessages(m)...)
	}

	var opts []llms.CallOption
	if req.Params.Temperature != nil {
		opts = append(opts, llms.WithTemperature(*req.Params.Temperature))
	}
	if req.Params.TopP != nil {
		opts = append(opts, llms.WithTopP(*req.Params.TopP))
	}
	if req.Params.MaxTokens != nil {
		opts = append(opts, llms.WithMaxTokens(*req.Params.MaxTokens))
	}
	if lt := langchainTools(req.Tools); len(lt) > 0 {
		opts = append(opts, llms.WithTools(lt))
	} else if req.Output != nil {
		opts = append(opts, llms.WithJSONMode())
	}

	out, err := l.Model.GenerateContent(ctx, msgs, opts...)
	if err != nil {
		return nil, fmt.Errorf("langchain: %w", err)
	}
	if out == nil || len(out.Choices) == 0 {
		return nil, errors.New("langchain: empty response")
	}
	choice := out.Choices[0]
	resp := &Response{Text: choice.Content, StopReason: choice.StopReason}
	for _, tc := range choice.ToolCalls {
		if tc.FunctionCall == nil {
			continue
		}
		args := tc.FunctionCall.Arguments
		if strings.TrimSpace(args) == "" {
			args = "{}"
		}
		resp.ToolCalls = append(resp.ToolCalls, ToolCall{ID: tc.ID, Name: tc.FunctionCall.Name, Input: []byte(args)})
	}
	return withStructured(req, resp)
}

func langchainTools(defs []tools.ToolDefinition) []llms.Tool {
	out := make([]llms.Tool, 0, len(defs))
	for _, d := range defs {
		fd := &llms.FunctionDefinition{Name: d.Name, Description: d.Description}
		if d.InputSchema != nil {
			fd.Parameters = d.InputSchema
		}
		out = append(out, llms.Tool{Type: "function", Function: fd})
	}
	return out
}

// langchainMessages converts m, splitting tool results into one message each
// since chat APIs answer every tool call with its own tool message.
func langchainMessages(m message.Message) []llms.MessageContent {
	if m.Role != message.RoleTool || !m.Content.IsMulti() {
		if mc, ok := langchainMessage(m); ok {
			return []llms.MessageContent{mc}
		}
		return nil
	}
	out := make([]llms.MessageContent, 0, len(m.Content.Parts))
	for _, p := range m.Content.Parts {
		if part, ok := langchainPart(p); ok {
			out = append(out, llms.MessageContent{Role: llms.ChatMessageTypeTool, Parts: []llms.ContentPart{part}})
		}
	}
	return out
}

func langchainMessage(m message.Message) (llms.MessageContent, bool) {
	mc := llms.MessageContent{Role: langchainRole(m.Role)}
	if !m.Content.IsMulti() {
		if m.Content.Text == "" {
			return mc, false
		}
		mc.Parts = []llms.ContentPart{llms.TextContent{Text: m.Content.Text}}
		return mc, true
	}
	for _, p := range m.Content.Parts {
		if part, ok := langchainPart(p); ok {
			mc.Parts = append(mc.Parts, part)
		}
	}
	return mc, len(mc.Parts) > 0
}

func langchainRole(r message.Role) llms.ChatMessageType {
	switch r {
	case message.RoleSystem:
		return llms.ChatMessageTypeSystem
	case message.RoleAssistant:
		return llms.ChatMessageTypeAI
	case message.RoleTool:
		return llms.ChatMessageTypeTool
	}
	return llms.ChatMessageTypeHuman
}

func langchainPart(p message.Part) (llms.ContentPart, bool) {
	switch p.Type {
	case message.PartText:
		return llms.TextContent{Text: p.Text}, p.Text != ""
	case message.PartImage, message.PartFile:
		if len(p.Data) > 0 {
			return llms.BinaryContent{MIMEType: p.MediaType, Data: p.Data}, true
		}
		if p.URL == "" {
			return nil, false
		}
		if p.Type == message.PartImage {
			return llms.ImageURLContent{URL: p.URL}, true
		}
		return llms.TextContent{Text: fmt.Sprintf("[attachment %s (%s): %s]", p.Filename, p.MediaType, p.URL)}, true
	case message.PartToolCall:
		return llms.ToolCall{
			ID:           p.ToolCallID,
			Type:         "function",
			FunctionCall: &llms.FunctionCall{Name: p.ToolName, Arguments: string(p.Input)},
		}, true
	case message.PartToolResult:
		return llms.ToolCallResponse{ToolCallID: p.ToolCallID, Name: p.ToolName, Content: p.Text}, true
	}
	return nil, false
}
