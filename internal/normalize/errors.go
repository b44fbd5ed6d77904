package normalize

import (
	"errors"
	"fmt"
)

// Sentinels matched by the typed errors below through errors.Is.
var (
	ErrParse         = errors.New("malformed JSON payload")
	ErrInvalidField  = errors.New("invalid nested field")
	ErrTypeCoercion  = errors.New("type coercion failed")
	ErrMissingColumn = errors.New("missing column")
	ErrShape         = errors.New("unexpected JSON shape")
)

// ParseError reports JSON-like text that could not be decoded.
type ParseError struct {
	Offset int // byte offset of the problem, -1 when unknown
	Msg    string
}

func (e *ParseError) Error() string {
	if e.Offset >= 0 {
		return fmt.Sprintf("parse JSON at offset %d: %s", e.Offset, e.Msg)
	}
	return "parse JSON: " + e.Msg
}

func (e *ParseError) Is(target error) bool { return target == ErrParse }

// InvalidFieldError reports a nested lookup for a subkey the shape does not
// define, or a nested value missing the subkey.
type InvalidFieldError struct {
	Field  string
	Subkey string
	Shape  Shape
}

func (e *InvalidFieldError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid %s subkey %q", e.Shape, e.Subkey)
	}
	return fmt.Sprintf("field %q: invalid %s subkey %q", e.Field, e.Shape, e.Subkey)
}

func (e *InvalidFieldError) Is(target error) bool { return target == ErrInvalidField }

// TypeCoercionError reports a cell that cannot be converted to the numeric
// type a column requires.
type TypeCoercionError struct {
	Column string
	Row    int
	Want   string
	Value  string
}

func (e *TypeCoercionError) Error() string {
	if e.Row < 0 {
		return fmt.Sprintf("column %q: cannot convert %q to %s", e.Column, e.Value, e.Want)
	}
	return fmt.Sprintf("column %q row %d: cannot convert %q to %s", e.Column, e.Row, e.Value, e.Want)
}

func (e *TypeCoercionError) Is(target error) bool { return target == ErrTypeCoercion }

// MissingColumnError reports a reshaping step that needs a column the payload
// did not provide.
type MissingColumnError struct {
	Column string
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("missing required column %q", e.Column)
}

func (e *MissingColumnError) Is(target error) bool { return target == ErrMissingColumn }

// ShapeError reports a value of the wrong JSON kind, such as a scalar where a
// list of records was expected.
type ShapeError struct {
	Want string
	Got  string
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("expected %s, got %s", e.Want, e.Got)
}

func (e *ShapeError) Is(target error) bool { return target == ErrShape }
