// Package schema describes expected output shapes and renders them as short,
// single-line type signatures used as advisory hints for a generation backend.
//
// A Node is a tagged variant: its Kind tag selects which fields matter.
// Descriptor trees can come from several encodings (see Parse and
// FromJSONSchema) whose tag spellings differ across versions; NormalizeKind
// maps every known spelling onto one canonical Kind and everything else onto
// KindUnknown, so rendering never depends on the concrete encoding.
package schema

import "strings"

type Kind string

// Primitive kinds.
const (
	KindString  Kind = "string"
	KindNumber  Kind = "number"
	KindBoolean Kind = "boolean"
	KindNull    Kind = "null"
	KindLiteral Kind = "literal"
	KindEnum    Kind = "enum"
	KindUnknown Kind = "unknown"
)

// Composite kinds.
const (
	KindArray  Kind = "array"
	KindObject Kind = "object"
	KindUnion  Kind = "union"
)

// Transparent wrapper kinds. They never appear in a rendered signature.
const (
	KindOptional Kind = "optional"
	KindNullable Kind = "nullable"
	KindDefault  Kind = "default"
	KindBranded  Kind = "branded"
	KindReadonly Kind = "readonly"
	KindCatch    Kind = "catch"
	KindEffects  Kind = "effects"
	KindPipeline Kind = "pipeline"
)

// kindAliases maps squashed tag spellings (lowercase, no '_' or '-') across
// descriptor versions to canonical kinds.
var kindAliases = map[string]Kind{
	"string": KindString, "str": KindString,
	"number": KindNumber, "integer": KindNumber, "int": KindNumber, "float": KindNumber,
	"double": KindNumber, "bigint": KindNumber,
	"boolean": KindBoolean, "bool": KindBoolean,
	"null": KindNull, "nil": KindNull,
	"literal": KindLiteral, "const": KindLiteral,
	"enum": KindEnum, "nativeenum": KindEnum,
	"unknown": KindUnknown, "any": KindUnknown,
	"array": KindArray, "list": KindArray,
	"object": KindObject,
	"union": KindUnion, "discriminatedunion": KindUnion,
	"optional": KindOptional,
	"nullable": KindNullable,
	"default": KindDefault, "defaulted": KindDefault, "prefault": KindDefault,
	"branded": KindBranded, "brand": KindBranded,
	"readonly": KindReadonly,
	"catch": KindCatch, "fallback": KindCatch,
	"effects": KindEffects, "effect": KindEffects, "transform": KindEffects,
	"pipeline": KindPipeline, "pipe": KindPipeline,
}

// NormalizeKind returns the canonical kind for any known tag spelling, or
// KindUnknown. Older documents prefix every tag with "Zod" (ZodOptional,
// ZodString); the prefix is ignored.
func NormalizeKind(tag Kind) Kind {
	squashed := strings.Map(func(r rune) rune {
		if r == '_' || r == '-' || r == ' ' {
			return -1
		}
		return r
	}, strings.ToLower(string(tag)))
	if k, ok := kindAliases[squashed]; ok {
		return k
	}
	if k, ok := kindAliases[strings.TrimPrefix(squashed, "zod")]; ok {
		return k
	}
	return KindUnknown
}

// IsWrapper reports whether k (in any spelling) is a transparent wrapper kind.
func IsWrapper(k Kind) bool {
	switch NormalizeKind(k) {
	case KindOptional, KindNullable, KindDefault, KindBranded, KindReadonly,
		KindCatch, KindEffects, KindPipeline:
		return true
	}
	return false
}

// Node is one element of a type descriptor tree.
type Node struct {
	Kind Kind

	// Inner is the wrapped node of every wrapper kind except pipeline.
	Inner *Node
	// In and Out are the two sides of a pipeline.
	In  *Node
	Out *Node

	// Element is the item node of an array.
	Element *Node

	// Fields holds object fields. Shape, when set and Fields is nil, computes
	// them on demand.
	Fields map[string]*Node
	Shape  func() map[string]*Node

	// Options lists union alternatives.
	Options []*Node

	// Value is a literal's value; Values lists enum members or the values of
	// a multi-valued literal.
	Value  any
	Values []any

	// DefaultValue is informational for default nodes.
	DefaultValue any
}

func String() *Node  { return &Node{Kind: KindString} }
func Number() *Node  { return &Node{Kind: KindNumber} }
func Boolean() *Node { return &Node{Kind: KindBoolean} }
func Null() *Node    { return &Node{Kind: KindNull} }
func Unknown() *Node { return &Node{Kind: KindUnknown} }

func Literal(v any) *Node { return &Node{Kind: KindLiteral, Value: v} }

func Enum(values ...any) *Node { return &Node{Kind: KindEnum, Values: values} }

func Array(element *Node) *Node { return &Node{Kind: KindArray, Element: element} }

func Object(fields map[string]*Node) *Node { return &Node{Kind: KindObject, Fields: fields} }

// LazyObject defers field construction until the shape is first needed.
func LazyObject(shape func() map[string]*Node) *Node {
	return &Node{Kind: KindObject, Shape: shape}
}

func Union(options ...*Node) *Node { return &Node{Kind: KindUnion, Options: options} }

func Optional(n *Node) *Node { return &Node{Kind: KindOptional, Inner: n} }
func Nullable(n *Node) *Node { return &Node{Kind: KindNullable, Inner: n} }
func Branded(n *Node) *Node  { return &Node{Kind: KindBranded, Inner: n} }
func Readonly(n *Node) *Node { return &Node{Kind: KindReadonly, Inner: n} }
func Catch(n *Node) *Node    { return &Node{Kind: KindCatch, Inner: n} }
func Effects(n *Node) *Node  { return &Node{Kind: KindEffects, Inner: n} }

func Default(n *Node, v any) *Node {
	return &Node{Kind: KindDefault, Inner: n, DefaultValue: v}
}

func Pipeline(in, out *Node) *Node { return &Node{Kind: KindPipeline, In: in, Out: out} }

// ObjectFields returns the object's fields, realising a lazy shape if needed.
// A panicking shape provider yields no fields.
func (n *Node) ObjectFields() (fields map[string]*Node) {
	if n == nil {
		return nil
	}
	if n.Fields != nil || n.Shape == nil {
		return n.Fields
	}
	defer func() {
		if recover() != nil {
			fields = nil
		}
	}()
	return n.Shape()
}
