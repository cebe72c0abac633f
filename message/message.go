// Package message defines the turn records exchanged with generation backends
// and kept in conversation memory.
//
// A Message carries either plain text or a multi-part payload. Parts cover
// text, images, files and the transient tool call/result blocks produced by
// the generation loop; only text content is ever persisted to memory.
package message

import (
	"bytes"
	"encoding/json"
	"slices"
)

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant, RoleTool:
		return true
	}
	return false
}

type PartType string

const (
	PartText       PartType = "text"
	PartImage      PartType = "image"
	PartFile       PartType = "file"
	PartToolCall   PartType = "tool_call"
	PartToolResult PartType = "tool_result"
)

// Part is one element of a multi-part payload. Which fields are meaningful
// depends on Type:
//   - text: Text
//   - image: Data or URL, MediaType
//   - file: Data, URL or Text, MediaType, Filename
//   - tool_call: ToolCallID, ToolName, Input
//   - tool_result: ToolCallID, ToolName, Text, IsError
type Part struct {
	Type       PartType        `json:"type"`
	Text       string          `json:"text,omitempty"`
	Data       []byte          `json:"data,omitempty"`
	URL        string          `json:"url,omitempty"`
	MediaType  string          `json:"mediaType,omitempty"`
	Filename   string          `json:"filename,omitempty"`
	ToolCallID string          `json:"toolCallId,omitempty"`
	ToolName   string          `json:"toolName,omitempty"`
	Input      json.RawMessage `json:"input,omitempty"`
	IsError    bool            `json:"isError,omitempty"`
}

func TextPart(s string) Part { return Part{Type: PartText, Text: s} }

func (p Part) clone() Part {
	p.Data = bytes.Clone(p.Data)
	p.Input = bytes.Clone(p.Input)
	return p
}

// Content is either plain text (Parts == nil) or a multi-part payload.
type Content struct {
	Text  string
	Parts []Part
}

func Text(s string) Content { return Content{Text: s} }

func Multi(parts ...Part) Content { return Content{Parts: parts} }

// IsMulti reports whether the content is a multi-part payload.
func (c Content) IsMulti() bool { return c.Parts != nil }

// PlainText returns the text content, joining text parts of a multi-part
// payload with newlines.
func (c Content) PlainText() string {
	if !c.IsMulti() {
		return c.Text
	}
	var buf bytes.Buffer
	for _, p := range c.Parts {
		if p.Type != PartText || p.Text == "" {
			continue
		}
		if buf.Len() > 0 {
			buf.WriteByte('\n')
		}
		buf.WriteString(p.Text)
	}
	return buf.String()
}

// Clone returns a deep copy that shares no mutable state with c.
func (c Content) Clone() Content {
	if c.Parts == nil {
		return c
	}
	parts := make([]Part, len(c.Parts))
	for i, p := range c.Parts {
		parts[i] = p.clone()
	}
	return Content{Text: c.Text, Parts: parts}
}

// MarshalJSON encodes text content as a JSON string and multi-part content as
// an array of parts.
func (c Content) MarshalJSON() ([]byte, error) {
	if c.IsMulti() {
		return json.Marshal(c.Parts)
	}
	return json.Marshal(c.Text)
}

func (c *Content) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '[' {
		var parts []Part
		if err := json.Unmarshal(b, &parts); err != nil {
			return err
		}
		if parts == nil {
			parts = []Part{}
		}
		*c = Content{Parts: parts}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	*c = Content{Text: s}
	return nil
}

// Message is a single turn record.
type Message struct {
	Role    Role    `json:"role"`
	Content Content `json:"content"`
}

func User(s string) Message      { return Message{Role: RoleUser, Content: Text(s)} }
func Assistant(s string) Message { return Message{Role: RoleAssistant, Content: Text(s)} }
func System(s string) Message    { return Message{Role: RoleSystem, Content: Text(s)} }

func (m Message) Clone() Message {
	m.Content = m.Content.Clone()
	return m
}

// CloneAll deep-copies a message slice. A nil input yields an empty, non-nil slice.
func CloneAll(msgs []Message) []Message {
	out := make([]Message, len(msgs))
	for i, m := range msgs {
		out[i] = m.Clone()
	}
	return out
}

// Equal reports whether two messages carry the same role and content.
func Equal(a, b Message) bool {
	if a.Role != b.Role || a.Content.Text != b.Content.Text || a.Content.IsMulti() != b.Content.IsMulti() {
		return false
	}
	return slices.EqualFunc(a.Content.Parts, b.Content.Parts, func(x, y Part) bool {
		return x.Type == y.Type && x.Text == y.Text && bytes.Equal(x.Data, y.Data) &&
			x.URL == y.URL && x.MediaType == y.MediaType && x.Filename == y.Filename &&
			x.ToolCallID == y.ToolCallID && x.ToolName == y.ToolName &&
			bytes.Equal(x.Input, y.Input) && x.IsError == y.IsError
	})
}
