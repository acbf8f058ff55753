package protoschema

import (
	"google.golang.org/protobuf/reflect/protoreflect"
)

// EnumTable translates between the symbolic labels and the numbers of one
// enum type. Enums that allow aliases may map several labels to the same
// number; Label then reports the first declared one.
type EnumTable struct {
	desc protoreflect.EnumDescriptor
}

// NewEnumTable returns the table for the given enum.
func NewEnumTable(ed protoreflect.EnumDescriptor) *EnumTable {
	return &EnumTable{desc: ed}
}

// Name returns the full name of the enum type.
func (t *EnumTable) Name() protoreflect.FullName {
	return t.desc.FullName()
}

// Descriptor returns the underlying enum descriptor.
func (t *EnumTable) Descriptor() protoreflect.EnumDescriptor {
	return t.desc
}

// Number returns the number for the given label.
func (t *EnumTable) Number(label string) (protoreflect.EnumNumber, bool) {
	evd := t.desc.Values().ByName(protoreflect.Name(label))
	if evd == nil {
		return 0, false
	}
	return evd.Number(), true
}

// Label returns the label for the given number.
func (t *EnumTable) Label(num protoreflect.EnumNumber) (string, bool) {
	evd := t.desc.Values().ByNumber(num)
	if evd == nil {
		return "", false
	}
	return string(evd.Name()), true
}

// ZeroLabel returns the label used for an enum field that was never set:
// the label of number zero. Closed enums are not required to declare zero,
// in which case the first declared value is the implicit default.
func (t *EnumTable) ZeroLabel() string {
	if label, ok := t.Label(0); ok {
		return label
	}
	vals := t.desc.Values()
	if vals.Len() == 0 {
		return ""
	}
	return string(vals.Get(0).Name())
}
