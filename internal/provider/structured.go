package provider

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/tidwall/gjson"
)

// ErrNoStructured is returned when a reply holds no JSON value.
var ErrNoStructured = errors.New("reply contains no JSON value")

// ExtractJSON finds the JSON value in a model reply. The whole reply, a
// fenced code block, and then the widest valid object or array starting at
// the first brace are tried in that order.
func ExtractJSON(text string) (json.RawMessage, error) {
	s := strings.TrimSpace(text)
	if s != "" && gjson.Valid(s) {
		return json.RawMessage(s), nil
	}
	if fenced, ok := fencedBlock(s); ok && gjson.Valid(fenced) {
		return json.RawMessage(fenced), nil
	}
	start := strings.IndexAny(s, "{[")
	for start >= 0 {
		if raw, ok := widestValid(s[start:]); ok {
			return json.RawMessage(raw), nil
		}
		next := strings.IndexAny(s[start+1:], "{[")
		if next < 0 {
			break
		}
		start += next + 1
	}
	return nil, ErrNoStructured
}

func fencedBlock(s string) (string, bool) {
	open := strings.Index(s, "```")
	if open < 0 {
		return "", false
	}
	rest := s[open+3:]
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
		rest = rest[nl+1:]
	}
	end := strings.Index(rest, "```")
	if end < 0 {
		return "", false
	}
	return strings.TrimSpace(rest[:end]), true
}

func widestValid(s string) (string, bool) {
	for end := len(s); end > 0; end-- {
		c := s[end-1]
		if c != '}' && c != ']' {
			continue
		}
		if gjson.Valid(s[:end]) {
			return s[:end], true
		}
	}
	return "", false
}
