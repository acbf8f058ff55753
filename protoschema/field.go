package protoschema

import (
	"fmt"

	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
)

// Label indicates whether a field holds one value, an ordered sequence of
// values, or a key-value map.
type Label int

const (
	Singular Label = iota
	Repeated
	Map
)

func (l Label) String() string {
	switch l {
	case Singular:
		return "singular"
	case Repeated:
		return "repeated"
	case Map:
		return "map"
	default:
		return fmt.Sprintf("Label(%d)", int(l))
	}
}

// LabelOf returns the label of the given field. Map fields are reported as
// Map even though the protobuf runtime also considers them lists of entries.
func LabelOf(fd protoreflect.FieldDescriptor) Label {
	switch {
	case fd.IsMap():
		return Map
	case fd.IsList():
		return Repeated
	default:
		return Singular
	}
}

// ScalarType is the closed set of protobuf scalar types. The zero value,
// InvalidScalar, is used for fields that are not scalars.
type ScalarType int

const (
	InvalidScalar ScalarType = iota
	Bool
	Bytes
	Double
	Fixed32
	Fixed64
	Float
	Int32
	Int64
	SFixed32
	SFixed64
	SInt32
	SInt64
	String
	UInt32
	UInt64
)

var scalarNames = [...]string{
	InvalidScalar: "invalid",
	Bool:          "bool",
	Bytes:         "bytes",
	Double:        "double",
	Fixed32:       "fixed32",
	Fixed64:       "fixed64",
	Float:         "float",
	Int32:         "int32",
	Int64:         "int64",
	SFixed32:      "sfixed32",
	SFixed64:      "sfixed64",
	SInt32:        "sint32",
	SInt64:        "sint64",
	String:        "string",
	UInt32:        "uint32",
	UInt64:        "uint64",
}

func (t ScalarType) String() string {
	if t >= 0 && int(t) < len(scalarNames) {
		return scalarNames[t]
	}
	return fmt.Sprintf("ScalarType(%d)", int(t))
}

// ScalarTypeOf maps a protoreflect kind to its scalar type. It returns
// InvalidScalar for enum, message, and group kinds.
func ScalarTypeOf(kind protoreflect.Kind) ScalarType {
	switch kind {
	case protoreflect.BoolKind:
		return Bool
	case protoreflect.BytesKind:
		return Bytes
	case protoreflect.DoubleKind:
		return Double
	case protoreflect.Fixed32Kind:
		return Fixed32
	case protoreflect.Fixed64Kind:
		return Fixed64
	case protoreflect.FloatKind:
		return Float
	case protoreflect.Int32Kind:
		return Int32
	case protoreflect.Int64Kind:
		return Int64
	case protoreflect.Sfixed32Kind:
		return SFixed32
	case protoreflect.Sfixed64Kind:
		return SFixed64
	case protoreflect.Sint32Kind:
		return SInt32
	case protoreflect.Sint64Kind:
		return SInt64
	case protoreflect.StringKind:
		return String
	case protoreflect.Uint32Kind:
		return UInt32
	case protoreflect.Uint64Kind:
		return UInt64
	default:
		return InvalidScalar
	}
}

// Zero returns the canonical Go representation of the scalar type's
// zero value. It returns nil for InvalidScalar.
func (t ScalarType) Zero() any {
	switch t {
	case Bool:
		return false
	case Bytes:
		return []byte{}
	case Double:
		return float64(0)
	case Float:
		return float32(0)
	case Int32, SInt32, SFixed32:
		return int32(0)
	case Int64, SInt64, SFixed64:
		return int64(0)
	case UInt32, Fixed32:
		return uint32(0)
	case UInt64, Fixed64:
		return uint64(0)
	case String:
		return ""
	default:
		return nil
	}
}

// FieldType tags what kind of value a field holds.
type FieldType int

const (
	UnsupportedType FieldType = iota
	TypeScalar
	TypeEnum
	TypeMessage
)

func (t FieldType) String() string {
	switch t {
	case TypeScalar:
		return "scalar"
	case TypeEnum:
		return "enum"
	case TypeMessage:
		return "message"
	default:
		return "unsupported"
	}
}

// Field is a read-only view of one declared field of a message type. It is
// resolved once from a protoreflect.FieldDescriptor so that conversion code
// can dispatch on Type and Label instead of inspecting values at runtime.
type Field struct {
	Desc protoreflect.FieldDescriptor
	Name string
	Type FieldType
	// Scalar is only set when Type is TypeScalar.
	Scalar ScalarType
	Label  Label
	// Enum is only set when Type is TypeEnum.
	Enum *EnumTable
	// Message is only set when Type is TypeMessage. For map fields, it is
	// the synthetic map entry type.
	Message protoreflect.MessageDescriptor
	// MapKey and MapValue are only set when Label is Map.
	MapKey   *Field
	MapValue *Field
}

// FieldOf builds the view for the given field descriptor.
func FieldOf(fd protoreflect.FieldDescriptor) Field {
	f := Field{
		Desc:  fd,
		Name:  string(fd.Name()),
		Label: LabelOf(fd),
	}
	switch kind := fd.Kind(); kind {
	case protoreflect.EnumKind:
		f.Type = TypeEnum
		f.Enum = NewEnumTable(fd.Enum())
	case protoreflect.MessageKind, protoreflect.GroupKind:
		f.Type = TypeMessage
		f.Message = fd.Message()
	default:
		if st := ScalarTypeOf(kind); st != InvalidScalar {
			f.Type = TypeScalar
			f.Scalar = st
		}
	}
	if f.Label == Map {
		key, val := FieldOf(fd.MapKey()), FieldOf(fd.MapValue())
		f.MapKey, f.MapValue = &key, &val
	}
	return f
}

// TypeName describes the field's type for error messages: the scalar type
// name, or the full name of the enum or message type.
func (f Field) TypeName() string {
	switch f.Type {
	case TypeScalar:
		return f.Scalar.String()
	case TypeEnum:
		return string(f.Enum.Name())
	case TypeMessage:
		if f.Label == Map {
			return fmt.Sprintf("map<%s, %s>", f.MapKey.TypeName(), f.MapValue.TypeName())
		}
		return string(f.Message.FullName())
	default:
		return f.Desc.Kind().String()
	}
}

// DefaultString returns the field's declared default value the way it is
// written in .proto source, or the empty string if it has none. Only proto2
// and editions fields can declare defaults.
func (f Field) DefaultString() string {
	if !f.Desc.HasDefault() {
		return ""
	}
	return protodesc.ToFieldDescriptorProto(f.Desc).GetDefaultValue()
}

// Describe returns views of all fields declared by the given message, in
// declaration order.
func Describe(md protoreflect.MessageDescriptor) []Field {
	fields := md.Fields()
	result := make([]Field, fields.Len())
	for i := range result {
		result[i] = FieldOf(fields.Get(i))
	}
	return result
}

// Lookup finds the field of the given message with the given proto name.
func Lookup(md protoreflect.MessageDescriptor, name string) (Field, bool) {
	fd := md.Fields().ByName(protoreflect.Name(name))
	if fd == nil {
		return Field{}, false
	}
	return FieldOf(fd), true
}
