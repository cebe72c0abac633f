// Package metrics derives size features from turn payloads so telemetry can
// describe a turn without recording what was said.
package metrics

import (
	"strings"
	"unicode/utf8"

	"github.com/petasbytes/turnkit/message"
)

type Features struct {
	Bytes int
	Runes int
	Words int
	Lines int
}

// CountFeatures measures s. Words split on Unicode whitespace; an empty
// string has zero lines and every '\n' starts a new one.
func CountFeatures(s string) Features {
	f := Features{
		Bytes: len(s),
		Runes: utf8.RuneCountInString(s),
		Words: len(strings.Fields(s)),
	}
	if s != "" {
		f.Lines = 1 + strings.Count(s, "\n")
	}
	return f
}

// Sub returns the component-wise difference f - o.
func (f Features) Sub(o Features) Features {
	return Features{
		Bytes: f.Bytes - o.Bytes,
		Runes: f.Runes - o.Runes,
		Words: f.Words - o.Words,
		Lines: f.Lines - o.Lines,
	}
}

func (f Features) Fields() map[string]any {
	return map[string]any{
		"bytes": f.Bytes,
		"runes": f.Runes,
		"words": f.Words,
		"lines": f.Lines,
	}
}

// Payload summarises an outbound message body.
type Payload struct {
	Text        Features
	Parts       int
	Images      int
	Files       int
	InlineBytes int
	Remote      int
}

// CountPayload measures the text of c and tallies its attachment parts.
// Plain content counts as a single part.
func CountPayload(c message.Content) Payload {
	if !c.IsMulti() {
		return Payload{Text: CountFeatures(c.Text), Parts: 1}
	}
	p := Payload{Parts: len(c.Parts)}
	var text []string
	for _, part := range c.Parts {
		switch part.Type {
		case message.PartText:
			text = append(text, part.Text)
			continue
		case message.PartImage:
			p.Images++
		case message.PartFile:
			p.Files++
		default:
			continue
		}
		p.InlineBytes += len(part.Data)
		if part.URL != "" {
			p.Remote++
		}
	}
	p.Text = CountFeatures(strings.Join(text, "\n"))
	return p
}

func (p Payload) Fields() map[string]any {
	return map[string]any{
		"text":         p.Text.Fields(),
		"parts":        p.Parts,
		"images":       p.Images,
		"files":        p.Files,
		"inline_bytes": p.InlineBytes,
		"remote":       p.Remote,
	}
}
