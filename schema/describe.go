package schema

import (
	"encoding/json"
	"slices"
	"strings"
)

// MaxUnwrapHops bounds wrapper stripping so malformed cyclic descriptors terminate.
const MaxUnwrapHops = 20

// maxDepth bounds rendering of self-referencing composite trees.
const maxDepth = 32

// Unwrap strips transparent wrapper kinds from n, at most MaxUnwrapHops
// times. Pipelines continue with their input side when present.
func Unwrap(n *Node) *Node {
	for i := 0; i < MaxUnwrapHops && n != nil; i++ {
		switch NormalizeKind(n.Kind) {
		case KindOptional, KindNullable, KindDefault, KindBranded, KindReadonly, KindCatch, KindEffects:
			n = n.Inner
		case KindPipeline:
			if n.In != nil {
				n = n.In
			} else {
				n = n.Out
			}
		default:
			return n
		}
	}
	return n
}

// Describe renders n as a single-line type signature. Unrecognised or
// malformed nodes render as "unknown".
func Describe(n *Node) string {
	var b strings.Builder
	describe(&b, n, 0)
	return b.String()
}

func describe(b *strings.Builder, n *Node, depth int) {
	n = Unwrap(n)
	if n == nil || depth > maxDepth {
		b.WriteString(string(KindUnknown))
		return
	}
	switch NormalizeKind(n.Kind) {
	case KindString, KindNumber, KindBoolean, KindNull:
		b.WriteString(string(NormalizeKind(n.Kind)))
	case KindLiteral:
		if len(n.Values) > 0 {
			writeQuotedList(b, n.Values, string(KindUnknown))
			return
		}
		q, ok := quote(n.Value)
		if !ok {
			q = string(KindUnknown)
		}
		b.WriteString(q)
	case KindEnum:
		writeQuotedList(b, n.Values, string(KindEnum))
	case KindArray:
		describe(b, n.Element, depth+1)
		b.WriteString("[]")
	case KindObject:
		describeObject(b, n, depth)
	case KindUnion:
		if len(n.Options) == 0 {
			b.WriteString(string(KindUnknown))
			return
		}
		for i, opt := range n.Options {
			if i > 0 {
				b.WriteString(" | ")
			}
			describe(b, opt, depth+1)
		}
	default:
		b.WriteString(string(KindUnknown))
	}
}

func describeObject(b *strings.Builder, n *Node, depth int) {
	fields := n.ObjectFields()
	if len(fields) == 0 {
		b.WriteString("{}")
		return
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	b.WriteString("{ ")
	for i, k := range keys {
		if i > 0 {
			b.WriteString(", ")
		}
		q, _ := quote(k)
		b.WriteString(q)
		b.WriteString(": ")
		describe(b, fields[k], depth+1)
	}
	b.WriteString(" }")
}

// writeQuotedList renders values as a pipe-separated list of quoted values,
// or fallback when the list is empty or any value cannot be encoded.
func writeQuotedList(b *strings.Builder, values []any, fallback string) {
	if len(values) == 0 {
		b.WriteString(fallback)
		return
	}
	parts := make([]string, len(values))
	for i, v := range values {
		q, ok := quote(v)
		if !ok {
			b.WriteString(fallback)
			return
		}
		parts[i] = q
	}
	b.WriteString(strings.Join(parts, " | "))
}

// quote renders v as a JSON string. Non-string values are quoted by their
// JSON text, so Enum(1, 2) renders as "1" | "2".
func quote(v any) (string, bool) {
	out, err := json.Marshal(v)
	if err != nil {
		return "", false
	}
	if _, isString := v.(string); isString {
		return string(out), true
	}
	out, err = json.Marshal(string(out))
	if err != nil {
		return "", false
	}
	return string(out), true
}
