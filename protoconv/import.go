package protoconv

import (
	"fmt"

	"go.uber.org/zap"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"

	"github.com/jhump/protodict/protomessage"
	"github.com/jhump/protodict/protoschema"
)

// DefaultMaxDepth is the nesting limit used when an options struct does not
// specify one.
const DefaultMaxDepth = 10000

// ImportOptions configures how nodes are written into messages. The zero
// value is ready to use.
type ImportOptions struct {
	// MaxDepth limits how deeply messages may be nested. If zero,
	// DefaultMaxDepth is used.
	MaxDepth int
	// Logger receives debug entries for skipped keys and values. If nil,
	// nothing is logged.
	Logger *zap.Logger
}

// Populate writes the contents of node into msg using default options.
func Populate(node map[string]any, msg proto.Message) error {
	return ImportOptions{}.Populate(node, msg)
}

// Populate writes the contents of node into msg.
//
// Keys that do not name a field of the message are ignored, as are values
// that are "falsy": nil, false, zero numbers, and empty strings, sequences,
// and mappings. Repeated fields are appended to and map entries are merged
// into existing ones, so populating a message that already has data
// combines the two. On error, msg may be partially populated.
func (o ImportOptions) Populate(node map[string]any, msg proto.Message) error {
	if msg == nil {
		return &FieldError{Err: ErrSchemaMismatch, Detail: "target message is nil"}
	}
	return o.PopulateMessage(node, msg.ProtoReflect())
}

// PopulateMessage is like Populate but accepts a reflective message.
func (o ImportOptions) PopulateMessage(node map[string]any, msg protoreflect.Message) error {
	if msg == nil || !msg.IsValid() {
		return &FieldError{Err: ErrSchemaMismatch, Detail: "target message is nil or read-only"}
	}
	im := &importer{log: o.Logger, maxDepth: o.MaxDepth}
	if im.log == nil {
		im.log = zap.NewNop()
	}
	if im.maxDepth <= 0 {
		im.maxDepth = DefaultMaxDepth
	}
	return im.populate(node, msg, 0)
}

type importer struct {
	log      *zap.Logger
	maxDepth int
	path     Path
}

func (im *importer) push(step any) {
	im.path = append(im.path, step)
}

func (im *importer) pop() {
	im.path = im.path[:len(im.path)-1]
}

func (im *importer) fail(f *protoschema.Field, value any, sentinel error, format string, args ...any) error {
	err := &FieldError{
		Path:   im.path.clone(),
		Value:  value,
		Err:    sentinel,
		Detail: fmt.Sprintf(format, args...),
	}
	if f != nil {
		err.Field = f.Desc.FullName()
		err.TypeName = f.TypeName()
	}
	return err
}

func (im *importer) populate(node any, msg protoreflect.Message, depth int) error {
	md := msg.Descriptor()
	if depth > im.maxDepth {
		return im.fail(nil, nil, ErrMaxDepth, "message %s is nested more than %d levels deep", md.FullName(), im.maxDepth)
	}
	isMap, err := rangeMapping(node, func(k, v any) error {
		key, ok := k.(string)
		if !ok {
			im.debug("ignoring non-string key", zap.String("message", string(md.FullName())), zap.Any("key", k))
			return nil
		}
		fd := md.Fields().ByName(protoreflect.Name(key))
		if fd == nil {
			im.debug("ignoring unknown key", zap.String("message", string(md.FullName())), zap.String("key", key))
			return nil
		}
		if isFalsy(v) {
			return nil
		}
		im.push(fd.Name())
		defer im.pop()
		f := protoschema.FieldOf(fd)
		return im.populateField(msg, &f, v, depth)
	})
	if err != nil {
		return err
	}
	if !isMap {
		return im.fail(nil, node, ErrSchemaMismatch, "expecting a mapping for message %s, got %s", md.FullName(), describeValue(node))
	}
	return nil
}

func (im *importer) debug(msg string, fields ...zap.Field) {
	if ce := im.log.Check(zap.DebugLevel, msg); ce != nil {
		ce.Write(append(fields, zap.Stringer("path", im.path.clone()))...)
	}
}

func (im *importer) populateField(msg protoreflect.Message, f *protoschema.Field, v any, depth int) error {
	switch f.Label {
	case protoschema.Map:
		if !isMapping(v) {
			return im.fail(f, v, ErrSchemaMismatch, "expecting a mapping, got %s", describeValue(v))
		}
		return im.populateMap(msg.Mutable(f.Desc).Map(), f, v, depth)
	case protoschema.Repeated:
		return im.populateList(msg, f, v, depth)
	}

	switch f.Type {
	case protoschema.TypeMessage:
		return im.populateSubMessage(msg, f, v, depth)
	case protoschema.TypeEnum:
		val, err := im.enumValue(f, f.Enum, v)
		if err != nil {
			return err
		}
		msg.Set(f.Desc, val)
		return nil
	case protoschema.TypeScalar:
		val, err := im.scalarValue(f, f.Scalar, v)
		if err != nil {
			return err
		}
		msg.Set(f.Desc, val)
		return nil
	default:
		return im.fail(f, v, ErrUnsupportedFieldType, "cannot import field of kind %v", f.Desc.Kind())
	}
}

// populateSubMessage fills a singular message field. An existing value is
// populated in place. Otherwise a new message is populated and then stored,
// unless it ended up empty.
func (im *importer) populateSubMessage(msg protoreflect.Message, f *protoschema.Field, v any, depth int) error {
	if msg.Has(f.Desc) {
		return im.populate(v, msg.Mutable(f.Desc).Message(), depth+1)
	}
	sub := msg.NewField(f.Desc).Message()
	if err := im.populate(v, sub, depth+1); err != nil {
		return err
	}
	if !protomessage.IsEmpty(sub) {
		msg.Set(f.Desc, protoreflect.ValueOfMessage(sub))
	}
	return nil
}

func (im *importer) populateList(msg protoreflect.Message, f *protoschema.Field, v any, depth int) error {
	var list protoreflect.List
	isSeq, err := rangeSequence(v, func(i int, elem any) error {
		if list == nil {
			list = msg.Mutable(f.Desc).List()
		}
		im.push(i)
		defer im.pop()
		switch f.Type {
		case protoschema.TypeMessage:
			sub := list.NewElement().Message()
			if elem != nil {
				if err := im.populate(elem, sub, depth+1); err != nil {
					return err
				}
			}
			list.Append(protoreflect.ValueOfMessage(sub))
		case protoschema.TypeEnum:
			label, ok := elem.(string)
			if !ok {
				return im.fail(f, elem, ErrElementType, "elements of repeated enum fields must be labels, got %s", describeValue(elem))
			}
			num, ok := f.Enum.Number(label)
			if !ok {
				return im.fail(f, elem, ErrInvalidEnumLabel, "%q is not a value of %s", label, f.Enum.Name())
			}
			list.Append(protoreflect.ValueOfEnum(num))
		case protoschema.TypeScalar:
			val, err := im.scalarValue(f, f.Scalar, elem)
			if err != nil {
				return err
			}
			list.Append(val)
		default:
			return im.fail(f, elem, ErrUnsupportedFieldType, "cannot import field of kind %v", f.Desc.Kind())
		}
		return nil
	})
	if err != nil {
		return err
	}
	if !isSeq {
		return im.fail(f, v, ErrSchemaMismatch, "expecting a sequence, got %s", describeValue(v))
	}
	return nil
}

// populateMap writes every entry of the node into the map field. Entries
// are never skipped: a nil value stores the zero value for scalars and an
// empty message for messages. Message values are merged into any existing
// entry for the same key.
func (im *importer) populateMap(mp protoreflect.Map, f *protoschema.Field, v any, depth int) error {
	valField := f.MapValue
	_, err := rangeMapping(v, func(k, val any) error {
		key, err := castScalar(f.MapKey.Scalar, k)
		if err != nil {
			return im.fail(f, k, ErrInvalidValue, "invalid map key: %v", err)
		}
		mk := key.MapKey()
		im.push(mk)
		defer im.pop()
		switch valField.Type {
		case protoschema.TypeMessage:
			fresh := mp.NewValue().Message()
			if val != nil {
				if err := im.populate(val, fresh, depth+1); err != nil {
					return err
				}
			}
			proto.Merge(mp.Mutable(mk).Message().Interface(), fresh.Interface())
		case protoschema.TypeEnum:
			if val == nil {
				mp.Set(mk, protoreflect.ValueOfEnum(0))
				return nil
			}
			ev, err := im.enumValue(f, valField.Enum, val)
			if err != nil {
				return err
			}
			mp.Set(mk, ev)
		case protoschema.TypeScalar:
			if val == nil {
				val = valField.Scalar.Zero()
			}
			sv, err := im.scalarValue(f, valField.Scalar, val)
			if err != nil {
				return err
			}
			mp.Set(mk, sv)
		default:
			return im.fail(f, val, ErrUnsupportedFieldType, "cannot import map value of kind %v", valField.Desc.Kind())
		}
		return nil
	})
	return err
}

// enumValue accepts a label or, for compatibility with numeric encodings,
// an integer. Errors are reported against field f.
func (im *importer) enumValue(f *protoschema.Field, enum *protoschema.EnumTable, v any) (protoreflect.Value, error) {
	if label, ok := v.(string); ok {
		num, ok := enum.Number(label)
		if !ok {
			return protoreflect.Value{}, im.fail(f, v, ErrInvalidEnumLabel, "%q is not a value of %s", label, enum.Name())
		}
		return protoreflect.ValueOfEnum(num), nil
	}
	num, err := castScalar(protoschema.Int32, v)
	if err != nil {
		return protoreflect.Value{}, im.fail(f, v, ErrInvalidValue, "%v", err)
	}
	return protoreflect.ValueOfEnum(protoreflect.EnumNumber(num.Int())), nil
}

func (im *importer) scalarValue(f *protoschema.Field, st protoschema.ScalarType, v any) (protoreflect.Value, error) {
	val, err := castScalar(st, v)
	if err != nil {
		return protoreflect.Value{}, im.fail(f, v, ErrInvalidValue, "%v", err)
	}
	return val, nil
}
