// Package compose builds the outbound message list for one turn. The
// enriched turn goes to the backend; only the raw input is ever persisted.
package compose

import (
	"strings"

	"github.com/petasbytes/turnkit/message"
	"github.com/petasbytes/turnkit/schema"
)

const hintPrefix = "Respond only with JSON matching this shape: "

// Input is everything a turn is built from. Context, SchemaHint and
// Attachments may be empty.
type Input struct {
	Raw         string
	Context     string
	SchemaHint  string
	Attachments []message.Part
}

// Turn is a composed turn.
type Turn struct {
	// Messages is the memory snapshot followed by the enriched user turn.
	Messages []message.Message
	// Persist is the record written to memory once generation succeeds.
	Persist message.Message
	// Effective is the enriched input text.
	Effective string
}

// Hint renders the instruction for an expected output shape, or "" for nil.
func Hint(n *schema.Node) string {
	if n == nil {
		return ""
	}
	return hintPrefix + schema.Describe(n)
}

// EffectiveInput prefixes raw with the context section and the hint.
func EffectiveInput(raw, context, hint string) string {
	body := raw
	if context != "" {
		var b strings.Builder
		b.WriteString("Context:\n")
		b.WriteString(context)
		b.WriteString("\n\nUser message:\n")
		b.WriteString(raw)
		body = b.String()
	}
	if hint != "" {
		return hint + "\n\n" + body
	}
	return body
}

// Compose builds the turn from a memory snapshot. The snapshot is copied, so
// callers may pass a slice they do not own exclusively.
func Compose(snapshot []message.Message, in Input) Turn {
	effective := EffectiveInput(in.Raw, in.Context, in.SchemaHint)

	content := message.Text(effective)
	if len(in.Attachments) > 0 {
		parts := make([]message.Part, 0, len(in.Attachments)+1)
		parts = append(parts, message.TextPart(effective))
		parts = append(parts, in.Attachments...)
		content = message.Multi(parts...)
	}

	msgs := make([]message.Message, 0, len(snapshot)+1)
	msgs = append(msgs, message.CloneAll(snapshot)...)
	msgs = append(msgs, message.Message{Role: message.RoleUser, Content: content})

	return Turn{
		Messages:  msgs,
		Persist:   message.User(in.Raw),
		Effective: effective,
	}
}
