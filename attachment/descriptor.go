// Package attachment models per-call binary attachments and resolves their
// sources into message parts.
package attachment

import (
	"errors"
	"fmt"
	"net/url"
	"sync"

	"github.com/go-playground/validator/v10"
)

type Kind string

const (
	KindImage Kind = "image"
	KindFile  Kind = "file"
)

type sourceKind int

const (
	sourceNone sourceKind = iota
	sourceText
	sourceURL
	sourceBytes
)

// Source is where an attachment's content comes from: textual (a local path,
// a URI or an inline data URI), a parsed URL, or raw bytes.
type Source struct {
	kind sourceKind
	text string
	data []byte
}

// Text returns a textual source. Local file paths are read at resolve time;
// anything else passes through as a reference.
func Text(s string) Source { return Source{kind: sourceText, text: s} }

// URL returns a remote reference source. It is never resolved locally.
func URL(u *url.URL) Source {
	if u == nil {
		return Source{}
	}
	return Source{kind: sourceURL, text: u.String()}
}

// Bytes returns an inline source. The slice is not copied.
func Bytes(b []byte) Source { return Source{kind: sourceBytes, data: b} }

// IsZero reports whether no source was set.
func (s Source) IsZero() bool {
	switch s.kind {
	case sourceText, sourceURL:
		return s.text == ""
	case sourceBytes:
		return len(s.data) == 0
	}
	return true
}

func (s Source) String() string {
	switch s.kind {
	case sourceBytes:
		return fmt.Sprintf("<%d bytes>", len(s.data))
	case sourceNone:
		return "<none>"
	}
	return s.text
}

// Descriptor describes one attachment. Image attachments need a source and
// may carry a media type; file attachments need a source and a media type
// and may carry a filename.
type Descriptor struct {
	Kind      Kind   `validate:"required,oneof=image file"`
	Source    Source `validate:"-"`
	MediaType string `validate:"required_if=Kind file"`
	Filename  string
}

func Image(src Source, mediaType string) Descriptor {
	return Descriptor{Kind: KindImage, Source: src, MediaType: mediaType}
}

func File(src Source, mediaType, filename string) Descriptor {
	return Descriptor{Kind: KindFile, Source: src, MediaType: mediaType, Filename: filename}
}

// ErrInvalid matches every ValidationError.
var ErrInvalid = errors.New("invalid attachment")

type ValidationError struct {
	Index  int
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("attachment %d: %s: %s", e.Index, e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrInvalid }

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Validate checks every descriptor and returns the first problem found.
func Validate(ds []Descriptor) error {
	for i, d := range ds {
		if err := getValidator().Struct(d); err != nil {
			var verrs validator.ValidationErrors
			if errors.As(err, &verrs) && len(verrs) > 0 {
				return &ValidationError{Index: i, Field: verrs[0].Field(), Reason: reason(verrs[0])}
			}
			return fmt.Errorf("attachment %d: %w", i, err)
		}
		if d.Source.IsZero() {
			return &ValidationError{Index: i, Field: "Source", Reason: "source is required"}
		}
	}
	return nil
}

func reason(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "required_if":
		return "is required for file attachments"
	case "oneof":
		return fmt.Sprintf("must be one of [%s], got %q", fe.Param(), fe.Value())
	}
	return "failed " + fe.Tag()
}
