package protoconv

import (
	"fmt"

	"go.uber.org/zap"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"

	"github.com/jhump/protodict/protomessage"
	"github.com/jhump/protodict/protoschema"
)

// ExportOptions configures how messages are rendered as nodes. The zero
// value is ready to use.
type ExportOptions struct {
	// MaxDepth limits how deeply messages may be nested. If zero,
	// DefaultMaxDepth is used.
	MaxDepth int
	// Logger receives debug entries for skipped extension fields. If nil,
	// nothing is logged.
	Logger *zap.Logger
	// RawBytes renders bytes fields as []byte instead of base64 strings.
	RawBytes bool
	// StringMapKeys renders every map field as map[string]any, formatting
	// non-string keys in decimal (or "true"/"false"). Otherwise only maps
	// with string keys use map[string]any and the rest use map[any]any.
	StringMapKeys bool
}

// Export renders msg as a node using default options.
func Export(msg proto.Message) (map[string]any, error) {
	return ExportOptions{}.Export(msg)
}

// Export renders msg as a node. The result has an entry for every field
// declared by the message type. Fields that are not set hold a default:
// an empty sequence for repeated fields, an empty mapping for map fields,
// nil for message fields, the label of enum number zero (or the first
// declared value of a closed enum without zero), and the scalar's zero value.
// Defaults declared in proto2 files are not used. The result shares no memory
// with msg.
func (o ExportOptions) Export(msg proto.Message) (map[string]any, error) {
	if msg == nil {
		return nil, &FieldError{Err: ErrSchemaMismatch, Detail: "message is nil"}
	}
	return o.ExportMessage(msg.ProtoReflect())
}

// ExportMessage is like Export but accepts a reflective message.
func (o ExportOptions) ExportMessage(msg protoreflect.Message) (map[string]any, error) {
	if msg == nil {
		return nil, &FieldError{Err: ErrSchemaMismatch, Detail: "message is nil"}
	}
	ex := &exporter{opts: o, log: o.Logger, maxDepth: o.MaxDepth}
	if ex.log == nil {
		ex.log = zap.NewNop()
	}
	if ex.maxDepth <= 0 {
		ex.maxDepth = DefaultMaxDepth
	}
	return ex.export(msg, 0)
}

type exporter struct {
	opts     ExportOptions
	log      *zap.Logger
	maxDepth int
	path     Path
}

func (ex *exporter) fail(f *protoschema.Field, value any, sentinel error, format string, args ...any) error {
	return &FieldError{
		Path:     ex.path.clone(),
		Field:    f.Desc.FullName(),
		TypeName: f.TypeName(),
		Value:    value,
		Err:      sentinel,
		Detail:   fmt.Sprintf(format, args...),
	}
}

func (ex *exporter) export(msg protoreflect.Message, depth int) (map[string]any, error) {
	md := msg.Descriptor()
	if depth > ex.maxDepth {
		return nil, &FieldError{
			Path:   ex.path.clone(),
			Err:    ErrMaxDepth,
			Detail: fmt.Sprintf("message %s is nested more than %d levels deep", md.FullName(), ex.maxDepth),
		}
	}
	fields := protoschema.Describe(md)
	result := make(map[string]any, len(fields))
	for i := range fields {
		def, err := ex.defaultValue(&fields[i])
		if err != nil {
			return nil, err
		}
		result[fields[i].Name] = def
	}
	for _, fv := range protomessage.ListFields(msg) {
		if fv.Field.IsExtension() {
			if ce := ex.log.Check(zap.DebugLevel, "skipping extension field"); ce != nil {
				ce.Write(zap.String("extension", string(fv.Field.FullName())), zap.Stringer("path", ex.path.clone()))
			}
			continue
		}
		f := protoschema.FieldOf(fv.Field)
		ex.path = append(ex.path, fv.Field.Name())
		val, err := ex.fieldValue(&f, fv.Value, depth)
		ex.path = ex.path[:len(ex.path)-1]
		if err != nil {
			return nil, err
		}
		result[f.Name] = val
	}
	return result, nil
}

func (ex *exporter) defaultValue(f *protoschema.Field) (any, error) {
	switch f.Label {
	case protoschema.Map:
		return ex.newMapNode(f, 0), nil
	case protoschema.Repeated:
		return []any{}, nil
	}
	switch f.Type {
	case protoschema.TypeEnum:
		return f.Enum.ZeroLabel(), nil
	case protoschema.TypeMessage:
		return nil, nil
	case protoschema.TypeScalar:
		if z, ok := zeroScalar(f.Scalar, ex.opts.RawBytes); ok {
			return z, nil
		}
	}
	return nil, ex.fail(f, nil, ErrUnsupportedFieldType, "cannot export field of kind %v", f.Desc.Kind())
}

func (ex *exporter) fieldValue(f *protoschema.Field, v protoreflect.Value, depth int) (any, error) {
	switch f.Label {
	case protoschema.Map:
		return ex.mapValue(f, v.Map(), depth)
	case protoschema.Repeated:
		list := v.List()
		result := make([]any, list.Len())
		for i := range result {
			ex.path = append(ex.path, i)
			elem, err := ex.elementValue(f, f, list.Get(i), depth)
			ex.path = ex.path[:len(ex.path)-1]
			if err != nil {
				return nil, err
			}
			result[i] = elem
		}
		return result, nil
	default:
		return ex.elementValue(f, f, v, depth)
	}
}

// elementValue converts a single value whose type is described by typ.
// Errors are reported against field f.
func (ex *exporter) elementValue(f, typ *protoschema.Field, v protoreflect.Value, depth int) (any, error) {
	switch typ.Type {
	case protoschema.TypeMessage:
		return ex.export(v.Message(), depth+1)
	case protoschema.TypeEnum:
		label, ok := typ.Enum.Label(v.Enum())
		if !ok {
			return nil, ex.fail(f, int32(v.Enum()), ErrUnknownEnumNumber, "%d is not a value of %s", v.Enum(), typ.Enum.Name())
		}
		return label, nil
	case protoschema.TypeScalar:
		if val, ok := readScalar(typ.Scalar, v, ex.opts.RawBytes); ok {
			return val, nil
		}
	}
	return nil, ex.fail(f, v.Interface(), ErrUnsupportedFieldType, "cannot export field of kind %v", typ.Desc.Kind())
}

func (ex *exporter) stringKeys(f *protoschema.Field) bool {
	return ex.opts.StringMapKeys || f.MapKey.Scalar == protoschema.String
}

func (ex *exporter) newMapNode(f *protoschema.Field, size int) any {
	if ex.stringKeys(f) {
		return make(map[string]any, size)
	}
	return make(map[any]any, size)
}

func (ex *exporter) mapValue(f *protoschema.Field, mp protoreflect.Map, depth int) (any, error) {
	stringKeys := ex.stringKeys(f)
	strMap := map[string]any{}
	anyMap := map[any]any{}
	var err error
	mp.Range(func(k protoreflect.MapKey, v protoreflect.Value) bool {
		ex.path = append(ex.path, k)
		defer func() { ex.path = ex.path[:len(ex.path)-1] }()
		var val any
		val, err = ex.elementValue(f, f.MapValue, v, depth)
		if err != nil {
			return false
		}
		key, _ := readScalar(f.MapKey.Scalar, k.Value(), false)
		if stringKeys {
			strMap[fmt.Sprint(key)] = val
		} else {
			anyMap[key] = val
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	if stringKeys {
		return strMap, nil
	}
	return anyMap, nil
}
