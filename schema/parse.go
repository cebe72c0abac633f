package schema

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
)

// Parse decodes a descriptor document into a Node tree. Two document
// dialects are accepted:
//
//	legacy:  {"typeName": "optional", "innerType": {...}}
//	current: {"type": "optional", "inner": {...}}
//
// Legacy documents name the wrapped node "innerType" (or "schema" for
// effects) and the array item "type"; current documents use "inner" and
// "element", and may list enum members as an "entries" mapping. Both use
// "in"/"out", "shape", "options", "values" and "value". Children may also be
// *Node values. Missing or malformed fields degrade to unknown nodes.
func Parse(doc map[string]any) *Node {
	return parseDoc(doc, 0)
}

// ParseJSON decodes a JSON descriptor document.
func ParseJSON(data []byte) (*Node, error) {
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode descriptor: %w", err)
	}
	return Parse(doc), nil
}

func parseDoc(doc map[string]any, depth int) *Node {
	if doc == nil || depth > maxDepth {
		return Unknown()
	}
	legacy := false
	tag, _ := doc["typeName"].(string)
	if tag != "" {
		legacy = true
	} else {
		tag, _ = doc["type"].(string)
	}
	kind := NormalizeKind(Kind(tag))
	n := &Node{Kind: kind}
	child := func(keys ...string) *Node {
		for _, k := range keys {
			if v, ok := doc[k]; ok {
				return parseChild(v, depth+1)
			}
		}
		return nil
	}

	switch kind {
	case KindOptional, KindNullable, KindDefault, KindBranded, KindReadonly, KindCatch, KindEffects:
		if legacy {
			n.Inner = child("innerType", "schema", "inner")
		} else {
			n.Inner = child("inner", "innerType", "schema")
		}
		n.DefaultValue = doc["defaultValue"]
	case KindPipeline:
		n.In = child("in")
		n.Out = child("out")
	case KindArray:
		if legacy {
			n.Element = child("type", "element")
		} else {
			n.Element = child("element", "items")
		}
	case KindObject:
		parseShape(n, doc["shape"], depth)
	case KindUnion:
		if opts, ok := doc["options"].([]any); ok {
			for _, o := range opts {
				n.Options = append(n.Options, parseChild(o, depth+1))
			}
		}
	case KindLiteral:
		if vs, ok := doc["values"].([]any); ok && len(vs) > 1 {
			n.Values = vs
		} else if ok && len(vs) == 1 {
			n.Value = vs[0]
		} else {
			n.Value = doc["value"]
		}
	case KindEnum:
		n.Values = enumValues(doc)
	}
	return n
}

func parseChild(v any, depth int) *Node {
	switch c := v.(type) {
	case *Node:
		return c
	case map[string]any:
		return parseDoc(c, depth)
	default:
		return Unknown()
	}
}

func parseShape(n *Node, raw any, depth int) {
	switch s := raw.(type) {
	case map[string]any:
		n.Fields = make(map[string]*Node, len(s))
		for k, v := range s {
			n.Fields[k] = parseChild(v, depth+1)
		}
	case map[string]*Node:
		n.Fields = s
	case func() map[string]any:
		n.Shape = func() map[string]*Node {
			fields := make(map[string]*Node)
			for k, v := range s() {
				fields[k] = parseChild(v, depth+1)
			}
			return fields
		}
	case func() map[string]*Node:
		n.Shape = s
	}
}

// enumValues returns the enum members, or nil when they are not enumerable.
// An "entries" mapping yields its values ordered by key.
func enumValues(doc map[string]any) []any {
	switch vs := doc["values"].(type) {
	case []any:
		return vs
	case []string:
		out := make([]any, len(vs))
		for i, v := range vs {
			out[i] = v
		}
		return out
	}
	if entries, ok := doc["entries"].(map[string]any); ok && len(entries) > 0 {
		out := make([]any, 0, len(entries))
		for _, k := range slices.Sorted(maps.Keys(entries)) {
			out = append(out, entries[k])
		}
		return out
	}
	return nil
}
