package protoconv

import (
	"strconv"
	"strings"

	"google.golang.org/protobuf/reflect/protoreflect"
)

// Path identifies a location inside a message or node. The types of values
// in the slice are protoreflect.Name (a field), int (an index into a list
// field), or protoreflect.MapKey (an entry in a map field).
type Path []any

// String renders the path in a familiar notation, such as
// "str_to_message_map["where_from"].lst_longs[1]".
func (p Path) String() string {
	var b strings.Builder
	for _, step := range p {
		switch step := step.(type) {
		case protoreflect.Name:
			if b.Len() > 0 {
				b.WriteByte('.')
			}
			b.WriteString(string(step))
		case int:
			b.WriteByte('[')
			b.WriteString(strconv.Itoa(step))
			b.WriteByte(']')
		case protoreflect.MapKey:
			b.WriteByte('[')
			if s, ok := step.Interface().(string); ok {
				b.WriteString(strconv.Quote(s))
			} else {
				b.WriteString(step.String())
			}
			b.WriteByte(']')
		}
	}
	return b.String()
}

func (p Path) clone() Path {
	if len(p) == 0 {
		return nil
	}
	return append(Path(nil), p...)
}
