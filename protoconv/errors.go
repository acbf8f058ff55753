package protoconv

import (
	"errors"
	"fmt"
	"strings"

	"google.golang.org/protobuf/reflect/protoreflect"
)

// Sentinel errors that classify conversion failures. All errors returned by
// this package wrap one of these, so they can be tested with errors.Is.
var (
	// ErrSchemaMismatch indicates a value whose shape does not match what the
	// schema expects, such as a scalar where a message (mapping) is expected.
	ErrSchemaMismatch = errors.New("schema mismatch")
	// ErrInvalidEnumLabel indicates a string that is not the name of any value
	// of the field's enum type.
	ErrInvalidEnumLabel = errors.New("invalid enum label")
	// ErrUnknownEnumNumber indicates a stored enum number for which the enum
	// type has no name.
	ErrUnknownEnumNumber = errors.New("unknown enum number")
	// ErrElementType indicates an element of a repeated enum field that is not
	// a string label.
	ErrElementType = errors.New("invalid element type")
	// ErrUnsupportedFieldType indicates a field whose type has no entry in the
	// cast table.
	ErrUnsupportedFieldType = errors.New("unsupported field type")
	// ErrInvalidValue indicates a scalar that cannot be cast to the field's
	// type, for example a non-numeric string for an integer field or a value
	// that overflows a 32-bit field.
	ErrInvalidValue = errors.New("invalid value")
	// ErrMaxDepth indicates that messages are nested deeper than allowed.
	ErrMaxDepth = errors.New("maximum nesting depth exceeded")
)

// FieldError describes a conversion failure. It identifies where the
// failure occurred, the field and type involved, and the offending value.
type FieldError struct {
	// Path is the location of the offending value, relative to the message
	// or node passed to the top-level call.
	Path Path
	// Field is the full name of the field involved. It is empty when the
	// error concerns the top-level message.
	Field protoreflect.FullName
	// TypeName names the scalar, enum, or message type involved.
	TypeName string
	// Value is the offending value: the input node value on import or the
	// stored value on export.
	Value any
	// Err is one of the sentinel errors defined in this package.
	Err error
	// Detail is a human-readable description of the problem.
	Detail string
}

func (e *FieldError) Error() string {
	var b strings.Builder
	if len(e.Path) > 0 {
		b.WriteString(e.Path.String())
		b.WriteString(": ")
	}
	b.WriteString(e.Err.Error())
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	if e.Field != "" {
		_, _ = fmt.Fprintf(&b, " (field %s", e.Field)
		if e.TypeName != "" {
			_, _ = fmt.Fprintf(&b, " of type %s", e.TypeName)
		}
		b.WriteString(")")
	}
	return b.String()
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

// describeValue formats an offending value for an error message, without
// dumping arbitrarily large collections.
func describeValue(v any) string {
	switch v := v.(type) {
	case nil:
		return "null"
	case string:
		return fmt.Sprintf("%q", v)
	case []byte:
		return fmt.Sprintf("bytes(len=%d)", len(v))
	case map[string]any:
		return fmt.Sprintf("mapping(len=%d)", len(v))
	case []any:
		return fmt.Sprintf("sequence(len=%d)", len(v))
	default:
		return fmt.Sprintf("%v (%T)", v, v)
	}
}
