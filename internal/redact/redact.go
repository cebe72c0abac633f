// Package redact renders ephemeral turn context as size-bounded text with
// sensitive values removed.
package redact

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/big"
	"reflect"
	"strings"
	"unicode/utf8"
)

const (
	// Marker replaces the value of any sensitive-looking key.
	Marker = "[REDACTED]"
	// Circular replaces a map or slice that is reachable from itself.
	Circular = "[Circular]"
	// Unserializable replaces values JSON cannot represent.
	Unserializable = "[Unserializable]"

	// DefaultLimit is the maximum rendered length, in characters.
	DefaultLimit = 4000
	// TruncationMarker is appended when the rendered text is cut at the limit.
	TruncationMarker = "\n...[truncated]"
)

// ErrNotPlainObject is returned for non-nil input that is not a string-keyed map.
var ErrNotPlainObject = errors.New("context must be a plain key-value mapping")

var sensitiveTokens = []string{"password", "token", "secret", "apikey", "api_key"}

// IsSensitiveKey reports whether a key's lowercase form contains one of the
// sensitive tokens.
func IsSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, tok := range sensitiveTokens {
		if strings.Contains(lower, tok) {
			return true
		}
	}
	return false
}

// Context renders v with DefaultLimit.
func Context(v any) (string, error) {
	return ContextWithLimit(v, DefaultLimit)
}

// ContextWithLimit renders v as indented JSON with sensitive values replaced
// by Marker, truncated to limit characters. A non-positive limit selects
// DefaultLimit.
//
// nil input renders as "". Input that is not a string-keyed map fails with
// ErrNotPlainObject. If conversion fails outright the result is "" and no
// error is returned.
func ContextWithLimit(v any, limit int) (string, error) {
	if err := CheckPlain(v); err != nil {
		return "", err
	}
	if v == nil {
		return "", nil
	}
	rv := reflect.ValueOf(v)
	if rv.IsNil() {
		return "", nil
	}
	w := walker{onPath: make(map[visit]bool)}
	clean, err := w.value(rv)
	if err != nil {
		return "", nil
	}
	b, err := json.MarshalIndent(clean, "", "  ")
	if err != nil {
		return "", nil
	}
	return Truncate(string(b), limit), nil
}

// CheckPlain returns ErrNotPlainObject unless v is nil or a string-keyed map.
func CheckPlain(v any) error {
	if v == nil {
		return nil
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
		return fmt.Errorf("%w: got %T", ErrNotPlainObject, v)
	}
	return nil
}

// Truncate cuts s to limit runes and appends TruncationMarker when it was longer.
func Truncate(s string, limit int) string {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	n := 0
	for i := range s {
		if n == limit {
			return s[:i] + TruncationMarker
		}
		n++
	}
	return s
}

type visit struct {
	ptr uintptr
	len int
}

// walker builds a JSON-safe copy of a value. onPath holds the maps and
// slices on the current descent path, so shared but acyclic references are
// rendered in full.
type walker struct {
	onPath map[visit]bool
}

var marshalerType = reflect.TypeFor[json.Marshaler]()

func (w *walker) value(rv reflect.Value) (any, error) {
	if !rv.IsValid() {
		return nil, nil
	}
	if (rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface) && rv.IsNil() {
		return nil, nil
	}
	switch x := rv.Interface().(type) {
	case *big.Int:
		return x.String(), nil
	case big.Int:
		return x.String(), nil
	case *big.Float:
		return x.String(), nil
	case json.Number, json.RawMessage:
		return x, nil
	}
	if rv.Kind() != reflect.Map && rv.Kind() != reflect.Slice && rv.Type().Implements(marshalerType) {
		return w.viaJSON(rv.Interface())
	}

	switch rv.Kind() {
	case reflect.Interface, reflect.Pointer:
		if rv.Kind() == reflect.Pointer && rv.Elem().Kind() == reflect.Struct {
			return w.viaJSON(rv.Interface())
		}
		return w.value(rv.Elem())
	case reflect.Map:
		return w.mapValue(rv)
	case reflect.Slice:
		if rv.IsNil() {
			return nil, nil
		}
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return rv.Bytes(), nil
		}
		v := visit{ptr: uintptr(rv.UnsafePointer()), len: rv.Len()}
		if w.onPath[v] {
			return Circular, nil
		}
		w.onPath[v] = true
		defer delete(w.onPath, v)
		return w.listValue(rv)
	case reflect.Array:
		return w.listValue(rv)
	case reflect.Struct:
		return w.viaJSON(rv.Interface())
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return Unserializable, nil
		}
		return f, nil
	case reflect.Chan, reflect.Func, reflect.Complex64, reflect.Complex128, reflect.UnsafePointer:
		return Unserializable, nil
	default:
		return rv.Interface(), nil
	}
}

func (w *walker) mapValue(rv reflect.Value) (any, error) {
	if rv.IsNil() {
		return nil, nil
	}
	v := visit{ptr: uintptr(rv.UnsafePointer())}
	if w.onPath[v] {
		return Circular, nil
	}
	w.onPath[v] = true
	defer delete(w.onPath, v)

	out := make(map[string]any, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		key := fmt.Sprint(iter.Key().Interface())
		if IsSensitiveKey(key) {
			out[key] = Marker
			continue
		}
		val, err := w.value(iter.Value())
		if err != nil {
			return nil, err
		}
		out[key] = val
	}
	return out, nil
}

func (w *walker) listValue(rv reflect.Value) (any, error) {
	out := make([]any, rv.Len())
	for i := range out {
		val, err := w.value(rv.Index(i))
		if err != nil {
			return nil, err
		}
		out[i] = val
	}
	return out, nil
}

// viaJSON normalises structs and custom marshalers through their JSON form so
// field names are redacted the same way map keys are. Values JSON rejects
// become Unserializable; marshaler failures abort the whole render.
func (w *walker) viaJSON(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		var typeErr *json.UnsupportedTypeError
		var valErr *json.UnsupportedValueError
		if errors.As(err, &typeErr) || errors.As(err, &valErr) {
			return Unserializable, nil
		}
		return nil, err
	}
	var decoded any
	if err := json.Unmarshal(b, &decoded); err != nil {
		return nil, err
	}
	return w.value(reflect.ValueOf(decoded))
}
