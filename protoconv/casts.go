package protoconv

import (
	"encoding/base64"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"

	"google.golang.org/protobuf/reflect/protoreflect"

	"github.com/jhump/protodict/protoschema"
)

// number is implemented by the arbitrary-precision number types produced
// by JSON decoders configured to preserve numbers, such as json.Number.
type number interface {
	String() string
	Int64() (int64, error)
	Float64() (float64, error)
}

// castScalar converts a node value into a protoreflect value suitable for a
// field of the given scalar type.
func castScalar(st protoschema.ScalarType, v any) (protoreflect.Value, error) {
	switch st {
	case protoschema.Bool:
		b, err := toBool(v)
		if err != nil {
			return protoreflect.Value{}, err
		}
		return protoreflect.ValueOfBool(b), nil
	case protoschema.Bytes:
		b, err := toBytes(v)
		if err != nil {
			return protoreflect.Value{}, err
		}
		return protoreflect.ValueOfBytes(b), nil
	case protoschema.Double:
		f, err := toFloat64(v)
		if err != nil {
			return protoreflect.Value{}, err
		}
		return protoreflect.ValueOfFloat64(f), nil
	case protoschema.Float:
		f, err := toFloat64(v)
		if err != nil {
			return protoreflect.Value{}, err
		}
		if !math.IsInf(f, 0) && !math.IsNaN(f) && math.Abs(f) > math.MaxFloat32 {
			return protoreflect.Value{}, fmt.Errorf("%v overflows float", f)
		}
		return protoreflect.ValueOfFloat32(float32(f)), nil
	case protoschema.Int32, protoschema.SInt32, protoschema.SFixed32:
		i, err := toInt64(v)
		if err != nil {
			return protoreflect.Value{}, err
		}
		if i < math.MinInt32 || i > math.MaxInt32 {
			return protoreflect.Value{}, fmt.Errorf("%d overflows %v", i, st)
		}
		return protoreflect.ValueOfInt32(int32(i)), nil
	case protoschema.Int64, protoschema.SInt64, protoschema.SFixed64:
		i, err := toInt64(v)
		if err != nil {
			return protoreflect.Value{}, err
		}
		return protoreflect.ValueOfInt64(i), nil
	case protoschema.UInt32, protoschema.Fixed32:
		u, err := toUint64(v)
		if err != nil {
			return protoreflect.Value{}, err
		}
		if u > math.MaxUint32 {
			return protoreflect.Value{}, fmt.Errorf("%d overflows %v", u, st)
		}
		return protoreflect.ValueOfUint32(uint32(u)), nil
	case protoschema.UInt64, protoschema.Fixed64:
		u, err := toUint64(v)
		if err != nil {
			return protoreflect.Value{}, err
		}
		return protoreflect.ValueOfUint64(u), nil
	case protoschema.String:
		s, err := toString(v)
		if err != nil {
			return protoreflect.Value{}, err
		}
		return protoreflect.ValueOfString(s), nil
	default:
		return protoreflect.Value{}, fmt.Errorf("no cast for scalar type %v", st)
	}
}

// readScalar converts a stored field value into its node representation.
// Bytes are rendered as standard base64 unless rawBytes is true.
func readScalar(st protoschema.ScalarType, v protoreflect.Value, rawBytes bool) (any, bool) {
	switch st {
	case protoschema.Bool:
		return v.Bool(), true
	case protoschema.Bytes:
		if rawBytes {
			return append([]byte{}, v.Bytes()...), true
		}
		return base64.StdEncoding.EncodeToString(v.Bytes()), true
	case protoschema.Double:
		return v.Float(), true
	case protoschema.Float:
		return float32(v.Float()), true
	case protoschema.Int32, protoschema.SInt32, protoschema.SFixed32:
		return int32(v.Int()), true
	case protoschema.Int64, protoschema.SInt64, protoschema.SFixed64:
		return v.Int(), true
	case protoschema.UInt32, protoschema.Fixed32:
		return uint32(v.Uint()), true
	case protoschema.UInt64, protoschema.Fixed64:
		return v.Uint(), true
	case protoschema.String:
		return v.String(), true
	default:
		return nil, false
	}
}

// zeroScalar returns the node representation of the scalar type's zero
// value, consistent with readScalar.
func zeroScalar(st protoschema.ScalarType, rawBytes bool) (any, bool) {
	if st == protoschema.Bytes && !rawBytes {
		return "", true
	}
	z := st.Zero()
	return z, z != nil
}

func toInt64(value any) (int64, error) {
	switch v := value.(type) {
	case int:
		return int64(v), nil
	case int8:
		return int64(v), nil
	case int16:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int64:
		return v, nil
	case uint:
		return uintToInt64(uint64(v))
	case uint8:
		return int64(v), nil
	case uint16:
		return int64(v), nil
	case uint32:
		return int64(v), nil
	case uint64:
		return uintToInt64(v)
	case float32:
		return floatToInt64(float64(v))
	case float64:
		return floatToInt64(v)
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("cannot convert %q to an integer", v)
		}
		return i, nil
	case number:
		if i, err := v.Int64(); err == nil {
			return i, nil
		}
		f, err := v.Float64()
		if err != nil {
			return 0, fmt.Errorf("cannot convert %s to an integer", v.String())
		}
		return floatToInt64(f)
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return uintToInt64(rv.Uint())
	case reflect.Float32, reflect.Float64:
		return floatToInt64(rv.Float())
	case reflect.String:
		return toInt64(rv.String())
	}
	return 0, fmt.Errorf("cannot convert %T to an integer", value)
}

func uintToInt64(u uint64) (int64, error) {
	if u > math.MaxInt64 {
		return 0, fmt.Errorf("%d overflows int64", u)
	}
	return int64(u), nil
}

func floatToInt64(f float64) (int64, error) {
	if math.Trunc(f) != f {
		return 0, fmt.Errorf("%v is not an integer", f)
	}
	// float64(math.MaxInt64) rounds up to 2^63
	if f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, fmt.Errorf("%v overflows int64", f)
	}
	return int64(f), nil
}

func toUint64(value any) (uint64, error) {
	switch v := value.(type) {
	case uint:
		return uint64(v), nil
	case uint8:
		return uint64(v), nil
	case uint16:
		return uint64(v), nil
	case uint32:
		return uint64(v), nil
	case uint64:
		return v, nil
	case float32:
		return floatToUint64(float64(v))
	case float64:
		return floatToUint64(v)
	case string:
		u, err := strconv.ParseUint(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("cannot convert %q to an unsigned integer", v)
		}
		return u, nil
	case number:
		if u, err := strconv.ParseUint(v.String(), 10, 64); err == nil {
			return u, nil
		}
		f, err := v.Float64()
		if err != nil {
			return 0, fmt.Errorf("cannot convert %s to an unsigned integer", v.String())
		}
		return floatToUint64(f)
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return rv.Uint(), nil
	case reflect.Float32, reflect.Float64:
		return floatToUint64(rv.Float())
	case reflect.String:
		return toUint64(rv.String())
	}
	// signed integers and bools
	i, err := toInt64(value)
	if err != nil {
		return 0, fmt.Errorf("cannot convert %T to an unsigned integer", value)
	}
	if i < 0 {
		return 0, fmt.Errorf("%d is negative", i)
	}
	return uint64(i), nil
}

func floatToUint64(f float64) (uint64, error) {
	if math.Trunc(f) != f {
		return 0, fmt.Errorf("%v is not an integer", f)
	}
	if f < 0 {
		return 0, fmt.Errorf("%v is negative", f)
	}
	// float64(math.MaxUint64) rounds up to 2^64
	if f >= math.MaxUint64 {
		return 0, fmt.Errorf("%v overflows uint64", f)
	}
	return uint64(f), nil
}

func toFloat64(value any) (float64, error) {
	switch v := value.(type) {
	case float32:
		return float64(v), nil
	case float64:
		return v, nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, fmt.Errorf("cannot convert %q to a number", v)
		}
		return f, nil
	case number:
		f, err := v.Float64()
		if err != nil {
			return 0, fmt.Errorf("cannot convert %s to a number", v.String())
		}
		return f, nil
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return float64(rv.Uint()), nil
	case reflect.Float32, reflect.Float64:
		return rv.Float(), nil
	case reflect.Bool:
		if rv.Bool() {
			return 1, nil
		}
		return 0, nil
	case reflect.String:
		return toFloat64(rv.String())
	}
	return 0, fmt.Errorf("cannot convert %T to a number", value)
}

func toBool(value any) (bool, error) {
	switch v := value.(type) {
	case bool:
		return v, nil
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return false, fmt.Errorf("cannot convert %q to a bool", v)
		}
		return b, nil
	case number:
		f, err := v.Float64()
		if err != nil {
			return false, fmt.Errorf("cannot convert %s to a bool", v.String())
		}
		return f != 0, nil
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Bool:
		return rv.Bool(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int() != 0, nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return rv.Uint() != 0, nil
	case reflect.Float32, reflect.Float64:
		return rv.Float() != 0, nil
	case reflect.String:
		return toBool(rv.String())
	}
	return false, fmt.Errorf("cannot convert %T to a bool", value)
}

func toString(value any) (string, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	case bool:
		return strconv.FormatBool(v), nil
	case float32:
		return strconv.FormatFloat(float64(v), 'g', -1, 32), nil
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64), nil
	case number:
		return v.String(), nil
	case fmt.Stringer:
		return v.String(), nil
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.String:
		return rv.String(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return strconv.FormatUint(rv.Uint(), 10), nil
	case reflect.Bool:
		return strconv.FormatBool(rv.Bool()), nil
	}
	return "", fmt.Errorf("cannot convert %T to a string", value)
}

var base64Encodings = []*base64.Encoding{
	base64.StdEncoding,
	base64.URLEncoding,
	base64.RawStdEncoding,
	base64.RawURLEncoding,
}

// toBytes accepts raw bytes or a string. Strings are decoded as base64 when
// they are valid in any common alphabet and used verbatim otherwise.
func toBytes(value any) ([]byte, error) {
	switch v := value.(type) {
	case []byte:
		return append([]byte{}, v...), nil
	case string:
		for _, enc := range base64Encodings {
			if b, err := enc.DecodeString(v); err == nil {
				return b, nil
			}
		}
		return []byte(v), nil
	}
	rv := reflect.ValueOf(value)
	if rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() == reflect.Uint8 {
		return append([]byte{}, rv.Bytes()...), nil
	}
	if rv.Kind() == reflect.String {
		return toBytes(rv.String())
	}
	return nil, fmt.Errorf("cannot convert %T to bytes", value)
}

// isFalsy reports whether a node value counts as "not provided". Such
// values are skipped on import, so they leave the field unset.
func isFalsy(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case bool:
		return !v
	case string:
		return v == ""
	case []byte:
		return len(v) == 0
	case []any:
		return len(v) == 0
	case map[string]any:
		return len(v) == 0
	case map[any]any:
		return len(v) == 0
	case number:
		f, err := v.Float64()
		return err == nil && f == 0
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Bool:
		return !rv.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int() == 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return rv.Uint() == 0
	case reflect.Float32, reflect.Float64:
		return rv.Float() == 0
	case reflect.String, reflect.Slice, reflect.Map, reflect.Array:
		return rv.Len() == 0
	case reflect.Pointer, reflect.Interface:
		return rv.IsNil()
	}
	return false
}
