package schema

import (
	"reflect"
	"strings"

	"github.com/invopop/jsonschema"
)

// For reflects T into a descriptor tree via its JSON Schema.
func For[T any]() *Node {
	r := jsonschema.Reflector{DoNotReference: true}
	return FromJSONSchema(r.ReflectFromType(reflect.TypeFor[T]()))
}

// FromJSONSchema converts a JSON Schema into a descriptor tree. Properties
// not listed as required become optional fields; local "#/$defs/..." and
// "#/definitions/..." references resolve against the root schema.
func FromJSONSchema(s *jsonschema.Schema) *Node {
	c := converter{root: s}
	return c.convert(s, 0)
}

type converter struct {
	root *jsonschema.Schema
}

func (c converter) convert(s *jsonschema.Schema, depth int) *Node {
	if s == nil || depth > maxDepth {
		return Unknown()
	}
	if s.Ref != "" {
		return c.convert(c.lookup(s.Ref), depth+1)
	}
	if s.Const != nil {
		return Literal(s.Const)
	}
	if len(s.Enum) > 0 {
		return Enum(s.Enum...)
	}
	if alts := append(append([]*jsonschema.Schema{}, s.AnyOf...), s.OneOf...); len(alts) > 0 {
		opts := make([]*Node, len(alts))
		for i, a := range alts {
			opts[i] = c.convert(a, depth+1)
		}
		return Union(opts...)
	}
	switch s.Type {
	case "string":
		return String()
	case "number", "integer":
		return Number()
	case "boolean":
		return Boolean()
	case "null":
		return Null()
	case "array":
		return Array(c.convert(s.Items, depth+1))
	case "object", "":
		if s.Properties == nil || s.Properties.Len() == 0 {
			if s.Type == "" {
				return Unknown()
			}
			return Object(nil)
		}
		required := make(map[string]bool, len(s.Required))
		for _, r := range s.Required {
			required[r] = true
		}
		fields := make(map[string]*Node, s.Properties.Len())
		for pair := s.Properties.Oldest(); pair != nil; pair = pair.Next() {
			field := c.convert(pair.Value, depth+1)
			if !required[pair.Key] {
				field = Optional(field)
			}
			fields[pair.Key] = field
		}
		return Object(fields)
	default:
		return Unknown()
	}
}

func (c converter) lookup(ref string) *jsonschema.Schema {
	if c.root == nil {
		return nil
	}
	for _, prefix := range []string{"#/$defs/", "#/definitions/"} {
		if name, ok := strings.CutPrefix(ref, prefix); ok {
			return c.root.Definitions[name]
		}
	}
	if ref == "#" {
		return c.root
	}
	return nil
}
