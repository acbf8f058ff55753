// Package protomessage contains helpers for inspecting the populated
// contents of protobuf messages.
package protomessage

import (
	"sort"

	"google.golang.org/protobuf/reflect/protoreflect"
)

// FieldValue is one populated field of a message.
type FieldValue struct {
	Field protoreflect.FieldDescriptor
	Value protoreflect.Value
}

// ListFields returns the populated fields of the given message, ordered by
// field number. A field is populated if msg.Has reports true for it: for
// fields without explicit presence, that excludes zero values and empty
// lists and maps. Extensions are included.
func ListFields(msg protoreflect.Message) []FieldValue {
	var fields []FieldValue
	msg.Range(func(fd protoreflect.FieldDescriptor, val protoreflect.Value) bool {
		fields = append(fields, FieldValue{Field: fd, Value: val})
		return true
	})
	sort.Slice(fields, func(i, j int) bool {
		return fields[i].Field.Number() < fields[j].Field.Number()
	})
	return fields
}

// IsEmpty returns true if the given message has no populated fields and no
// unrecognized data.
func IsEmpty(msg protoreflect.Message) bool {
	if len(msg.GetUnknown()) > 0 {
		return false
	}
	empty := true
	msg.Range(func(protoreflect.FieldDescriptor, protoreflect.Value) bool {
		empty = false
		return false
	})
	return empty
}
