package provider

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/petasbytes/turnkit/message"
	"github.com/petasbytes/turnkit/tools"
)

const DefaultModel = anthropic.ModelClaude3_7SonnetLatest
const APIVersion = "2023-06-01"

// DefaultMaxTokens caps replies when a call does not set MaxTokens.
const DefaultMaxTokens = 1024

// NewAnthropicClient returns a client using the API key from the env.
func NewAnthropicClient(opts ...option.RequestOption) *anthropic.Client {
	c := anthropic.NewClient(opts...)
	return &c
}

// Anthropic serves requests through the Messages API.
type Anthropic struct {
	Client    *anthropic.Client
	Model     anthropic.Model
	MaxTokens int64
}

func NewAnthropic(client *anthropic.Client, model string) *Anthropic {
	m := anthropic.Model(model)
	if model == "" {
		m = DefaultModel
	}
	return &Anthropic{Client: client, Model: m, MaxTokens: DefaultMaxTokens}
}

func (a *Anthropic) Generate(ctx context.Context, req *Request) (*Response, error) {
	params := anthropic.MessageNewParams{
		Model:     a.Model,
		MaxTokens: a.MaxTokens,
	}
	if params.MaxTokens <= 0 {
		params.MaxTokens = DefaultMaxTokens
	}
	if req.Params.MaxTokens != nil {
		params.MaxTokens = int64(*req.Params.MaxTokens)
	}
	if req.Params.Temperature != nil {
		params.Temperature = anthropic.Float(*req.Params.Temperature)
	}
	if req.Params.TopP != nil {
		params.TopP = anthropic.Float(*req.Params.TopP)
	}

	for _, m := range req.Messages {
		switch m.Role {
		case message.RoleSystem:
			if s := m.Content.PlainText(); s != "" {
				params.System = append(params.System, anthropic.TextBlockParam{Text: s})
			}
		case message.RoleAssistant:
			if blocks := anthropicBlocks(m.Content); len(blocks) > 0 {
				params.Messages = append(params.Messages, anthropic.NewAssistantMessage(blocks...))
			}
		default:
			// User and tool messages both travel as user turns.
			if blocks := anthropicBlocks(m.Content); len(blocks) > 0 {
				params.Messages = append(params.Messages, anthropic.NewUserMessage(blocks...))
			}
		}
	}
	params.Tools = anthropicTools(req.Tools)

	msg, err := a.Client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("anthropic: %w", err)
	}

	resp := &Response{
		StopReason: string(msg.StopReason),
		Usage:      Usage{InputTokens: msg.Usage.InputTokens, OutputTokens: msg.Usage.OutputTokens},
	}
	var text strings.Builder
	for _, block := range msg.Content {
		switch v := block.AsAny().(type) {
		case anthropic.TextBlock:
			text.WriteString(v.Text)
		case anthropic.ToolUseBlock:
			// Pass raw JSON input through to the tool implementation
			resp.ToolCalls = append(resp.ToolCalls, ToolCall{
				ID:    v.ID,
				Name:  v.Name,
				Input: json.RawMessage(v.JSON.Input.Raw()),
			})
		}
	}
	resp.Text = text.String()
	return withStructured(req, resp)
}

func anthropicTools(defs []tools.ToolDefinition) []anthropic.ToolUnionParam {
	if len(defs) == 0 {
		return nil
	}
	out := make([]anthropic.ToolUnionParam, 0, len(defs))
	for _, t := range defs {
		var schema anthropic.ToolInputSchemaParam
		if t.InputSchema != nil {
			schema.Properties = t.InputSchema.Properties
			schema.Required = t.InputSchema.Required
		}
		out = append(out, anthropic.ToolUnionParam{OfTool: &anthropic.ToolParam{
			Name:        t.Name,
			Description: anthropic.String(t.Description),
			InputSchema: schema,
		}})
	}
	return out
}

func anthropicBlocks(c message.Content) []anthropic.ContentBlockParamUnion {
	if !c.IsMulti() {
		if c.Text == "" {
			return nil
		}
		return []anthropic.ContentBlockParamUnion{anthropic.NewTextBlock(c.Text)}
	}
	out := make([]anthropic.ContentBlockParamUnion, 0, len(c.Parts))
	for _, p := range c.Parts {
		if b, ok := anthropicBlock(p); ok {
			out = append(out, b)
		}
	}
	return out
}

func anthropicBlock(p message.Part) (anthropic.ContentBlockParamUnion, bool) {
	switch p.Type {
	case message.PartText:
		return anthropic.NewTextBlock(p.Text), p.Text != ""
	case message.PartImage:
		if len(p.Data) > 0 {
			return anthropic.NewImageBlockBase64(p.MediaType, base64.StdEncoding.EncodeToString(p.Data)), true
		}
		if mt, data, ok := parseDataURI(p.URL); ok {
			return anthropic.NewImageBlockBase64(mt, data), true
		}
		return anthropic.NewImageBlock(anthropic.URLImageSourceParam{URL: p.URL}), p.URL != ""
	case message.PartFile:
		return anthropicDocument(p)
	case message.PartToolCall:
		input := p.Input
		if len(input) == 0 {
			input = json.RawMessage("{}")
		}
		return anthropic.ContentBlockParamUnion{OfToolUse: &anthropic.ToolUseBlockParam{
			ID:    p.ToolCallID,
			Name:  p.ToolName,
			Input: input,
		}}, true
	case message.PartToolResult:
		return anthropic.NewToolResultBlock(p.ToolCallID, p.Text, p.IsError), true
	}
	return anthropic.ContentBlockParamUnion{}, false
}

func anthropicDocument(p message.Part) (anthropic.ContentBlockParamUnion, bool) {
	var b anthropic.ContentBlockParamUnion
	isPDF := p.MediaType == "application/pdf"
	switch {
	case len(p.Data) > 0 && isPDF:
		b = anthropic.NewDocumentBlock(anthropic.Base64PDFSourceParam{Data: base64.StdEncoding.EncodeToString(p.Data)})
	case len(p.Data) > 0 && strings.HasPrefix(p.MediaType, "text/"):
		b = anthropic.NewDocumentBlock(anthropic.PlainTextSourceParam{Data: string(p.Data)})
	case p.URL != "" && isPDF:
		b = anthropic.NewDocumentBlock(anthropic.URLPDFSourceParam{URL: p.URL})
	case p.URL != "":
		return anthropic.NewTextBlock(fmt.Sprintf("[attachment %s (%s): %s]", p.Filename, p.MediaType, p.URL)), true
	case len(p.Data) > 0:
		return anthropic.NewTextBlock(fmt.Sprintf("[attachment %s (%s), %d bytes not supported]", p.Filename, p.MediaType, len(p.Data))), true
	default:
		return b, false
	}
	if p.Filename != "" && b.OfDocument != nil {
		b.OfDocument.Title = anthropic.String(p.Filename)
	}
	return b, true
}

// parseDataURI splits a base64 data URI into media type and payload.
func parseDataURI(s string) (mediaType, data string, ok bool) {
	rest, found := strings.CutPrefix(s, "data:")
	if !found {
		return "", "", false
	}
	meta, payload, found := strings.Cut(rest, ",")
	if !found {
		return "", "", false
	}
	mediaType, isBase64 := strings.CutSuffix(meta, ";base64")
	if !isBase64 || mediaType == "" {
		return "", "", false
	}
	return mediaType, payload, true
}

func withStructured(req *Request, resp *Response) (*Response, error) {
	if req.Output == nil || len(resp.ToolCalls) > 0 {
		return resp, nil
	}
	raw, err := ExtractJSON(resp.Text)
	if err != nil {
		return nil, err
	}
	resp.Structured = raw
	return resp, nil
}
