package protoconv_test

import (
	"errors"
	"math"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/known/timestamppb"

	"github.com/jhump/protodict/internal/testprotos"
	"github.com/jhump/protodict/protoconv"
	"github.com/jhump/protodict/protomessage"
)

func TestPopulate(t *testing.T) {
	node := map[string]any{
		"a_str":    "hello",
		"an_int":   42,
		"an_enum":  "second",
		"lst_ints": []any{1, 2, 3},
		"int_to_lst_ints_map": map[any]any{
			1: map[string]any{"lst_ints": []any{10, 20}},
		},
		"str_to_message_map": map[string]any{
			"where_from": map[string]any{"a_str": "there", "a_long": 7, "lst_longs": []any{1, 2}},
		},
	}
	msg := testprotos.New(t, mainMessage)
	require.NoError(t, protoconv.Populate(node, msg))

	expected := parse(t, mainMessage, `
		a_str: "hello"
		an_int: 42
		an_enum: second
		lst_ints: [1, 2, 3]
		int_to_lst_ints_map { key: 1 value { lst_ints: [10, 20] } }
		str_to_message_map { key: "where_from" value { a_str: "there" a_long: 7 lst_longs: [1, 2] } }
	`)
	requireProtoEqual(t, expected, msg)
}

func TestPopulate_IgnoresUnknownKeys(t *testing.T) {
	msg := testprotos.New(t, mainMessage)
	err := protoconv.Populate(map[string]any{"a_str": "abc", "new_int": 123}, msg)
	require.NoError(t, err)
	requireProtoEqual(t, parse(t, mainMessage, `a_str: "abc"`), msg)
	require.Empty(t, msg.ProtoReflect().GetUnknown())
}

func TestPopulate_SkipsFalsyValues(t *testing.T) {
	msg := testprotos.New(t, mainMessage)
	err := protoconv.Populate(map[string]any{
		"a_str":               "",
		"an_int":              0,
		"an_enum":             nil,
		"lst_ints":            []any{},
		"int_to_lst_ints_map": map[any]any{},
		"str_to_message_map":  map[string]any{},
	}, msg)
	require.NoError(t, err)
	require.True(t, protomessage.IsEmpty(msg.ProtoReflect()))

	// a falsy value does not clear a field that is already set
	msg = parse(t, mainMessage, `lst_ints: [1, 2]`)
	require.NoError(t, protoconv.Populate(map[string]any{"lst_ints": []any{}}, msg))
	requireProtoEqual(t, parse(t, mainMessage, `lst_ints: [1, 2]`), msg)
}

func TestPopulate_Enums(t *testing.T) {
	msg := testprotos.New(t, mainMessage)
	require.NoError(t, protoconv.Populate(map[string]any{"an_enum": "second"}, msg))
	require.Equal(t, protoreflect.EnumNumber(1), msg.ProtoReflect().Get(field(msg, "an_enum")).Enum())

	// numbers are accepted too
	require.NoError(t, protoconv.Populate(map[string]any{"an_enum": 2.0}, msg))
	require.Equal(t, protoreflect.EnumNumber(2), msg.ProtoReflect().Get(field(msg, "an_enum")).Enum())

	err := protoconv.Populate(map[string]any{"an_enum": "fourth"}, msg)
	require.ErrorIs(t, err, protoconv.ErrInvalidEnumLabel)
	var fieldErr *protoconv.FieldError
	require.ErrorAs(t, err, &fieldErr)
	require.Equal(t, protoreflect.FullName("protodict.test.MainMessage.an_enum"), fieldErr.Field)
	require.Equal(t, "protodict.test.SomeEnum", fieldErr.TypeName)
	require.Equal(t, "fourth", fieldErr.Value)
	require.Equal(t, "an_enum", fieldErr.Path.String())
}

func TestPopulate_RepeatedEnums(t *testing.T) {
	msg := testprotos.New(t, collections)
	err := protoconv.Populate(map[string]any{"colors": []any{"COLOR_RED", "COLOR_BLUE"}}, msg)
	require.NoError(t, err)
	requireProtoEqual(t, parse(t, collections, `colors: [COLOR_RED, COLOR_BLUE]`), msg)

	err = protoconv.Populate(map[string]any{"colors": []any{"COLOR_RED", 1}}, testprotos.New(t, collections))
	require.ErrorIs(t, err, protoconv.ErrElementType)
	var fieldErr *protoconv.FieldError
	require.ErrorAs(t, err, &fieldErr)
	require.Equal(t, "colors[1]", fieldErr.Path.String())
	require.Equal(t, 1, fieldErr.Value)

	err = protoconv.Populate(map[string]any{"colors": []any{"PURPLE"}}, testprotos.New(t, collections))
	require.ErrorIs(t, err, protoconv.ErrInvalidEnumLabel)
}

func TestPopulate_RepeatedMessages(t *testing.T) {
	msg := testprotos.New(t, collections)
	err := protoconv.Populate(map[string]any{
		"subs": []any{
			map[string]any{"a_str": "a"},
			nil,
			map[string]any{"a_long": 3},
		},
	}, msg)
	require.NoError(t, err)
	requireProtoEqual(t, parse(t, collections, `subs { a_str: "a" } subs { } subs { a_long: 3 }`), msg)

	// appends to existing elements
	require.NoError(t, protoconv.Populate(map[string]any{"subs": []any{map[string]any{"a_str": "b"}}}, msg))
	require.Equal(t, 4, msg.ProtoReflect().Get(field(msg, "subs")).List().Len())
}

func TestPopulate_Scalars(t *testing.T) {
	msg := testprotos.New(t, scalars)
	err := protoconv.Populate(map[string]any{
		"a_bool":     "true",
		"a_bytes":    "AQID",
		"a_double":   "1.5",
		"a_fixed32":  7.0,
		"a_fixed64":  json.Number("18446744073709551615"),
		"a_float":    2.5,
		"an_int32":   int64(-3),
		"an_int64":   "-9000000000",
		"a_sfixed32": uint8(4),
		"a_sfixed64": -5,
		"a_sint32":   -6,
		"a_sint64":   float32(-7),
		"a_string":   12,
		"a_uint32":   "8",
		"a_uint64":   uint(9),
	}, msg)
	require.NoError(t, err)
	expected := parse(t, scalars, `
		a_bool: true
		a_bytes: "\001\002\003"
		a_double: 1.5
		a_fixed32: 7
		a_fixed64: 18446744073709551615
		a_float: 2.5
		an_int32: -3
		an_int64: -9000000000
		a_sfixed32: 4
		a_sfixed64: -5
		a_sint32: -6
		a_sint64: -7
		a_string: "12"
		a_uint32: 8
		a_uint64: 9
	`)
	requireProtoEqual(t, expected, msg)
}

func TestPopulate_InvalidScalars(t *testing.T) {
	testCases := []struct {
		name  string
		node  map[string]any
		path  string
		field protoreflect.FullName
	}{
		{
			name:  "not a number",
			node:  map[string]any{"an_int32": "abc"},
			path:  "an_int32",
			field: "protodict.test.Scalars.an_int32",
		},
		{
			name: "int32 overflow",
			node: map[string]any{"an_int32": int64(1) << 40},
			path: "an_int32",
		},
		{
			name: "negative unsigned",
			node: map[string]any{"a_uint32": -1},
			path: "a_uint32",
		},
		{
			name: "float overflow",
			node: map[string]any{"a_float": math.MaxFloat64},
			path: "a_float",
		},
		{
			name: "fractional integer",
			node: map[string]any{"an_int64": 1.5},
			path: "an_int64",
		},
		{
			name: "bad bool",
			node: map[string]any{"a_bool": "maybe"},
			path: "a_bool",
		},
		{
			name: "sequence for string",
			node: map[string]any{"a_string": []any{"a"}},
			path: "a_string",
		},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			err := protoconv.Populate(testCase.node, testprotos.New(t, scalars))
			require.ErrorIs(t, err, protoconv.ErrInvalidValue)
			var fieldErr *protoconv.FieldError
			require.ErrorAs(t, err, &fieldErr)
			require.Equal(t, testCase.path, fieldErr.Path.String())
			if testCase.field != "" {
				require.Equal(t, testCase.field, fieldErr.Field)
			}
		})
	}
}

func TestPopulate_SchemaMismatch(t *testing.T) {
	testCases := []struct {
		name string
		node map[string]any
		path string
	}{
		{
			name: "scalar for map",
			node: map[string]any{"labels": "oops"},
			path: "labels",
		},
		{
			name: "scalar for repeated",
			node: map[string]any{"names": "oops"},
			path: "names",
		},
		{
			name: "scalar for message",
			node: map[string]any{"scalars": "oops"},
			path: "scalars",
		},
		{
			name: "scalar for message element",
			node: map[string]any{"subs": []any{map[string]any{}, 5}},
			path: "subs[1]",
		},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			err := protoconv.Populate(testCase.node, testprotos.New(t, collections))
			require.ErrorIs(t, err, protoconv.ErrSchemaMismatch)
			var fieldErr *protoconv.FieldError
			require.ErrorAs(t, err, &fieldErr)
			require.Equal(t, testCase.path, fieldErr.Path.String())
		})
	}

	require.ErrorIs(t, protoconv.Populate(map[string]any{}, nil), protoconv.ErrSchemaMismatch)
}

func TestPopulate_Maps(t *testing.T) {
	msg := testprotos.New(t, collections)
	err := protoconv.Populate(map[string]any{
		"labels":       map[string]any{"a": "x", "b": nil},
		"colors_by_id": map[any]any{"5": "COLOR_RED", uint64(6): 2},
		"flags":        map[any]any{true: "AQI="},
	}, msg)
	require.NoError(t, err)
	expected := parse(t, collections, `
		labels { key: "a" value: "x" }
		labels { key: "b" value: "" }
		colors_by_id { key: 5 value: COLOR_RED }
		colors_by_id { key: 6 value: COLOR_GREEN }
		flags { key: true value: "\001\002" }
	`)
	requireProtoEqual(t, expected, msg)

	err = protoconv.Populate(map[string]any{"colors_by_id": map[string]any{"abc": "COLOR_RED"}}, msg)
	require.ErrorIs(t, err, protoconv.ErrInvalidValue)

	err = protoconv.Populate(map[string]any{"colors_by_id": map[string]any{"7": "PURPLE"}}, msg)
	require.ErrorIs(t, err, protoconv.ErrInvalidEnumLabel)
	var fieldErr *protoconv.FieldError
	require.ErrorAs(t, err, &fieldErr)
	require.Equal(t, "colors_by_id[7]", fieldErr.Path.String())
	require.Equal(t, protoreflect.FullName("protodict.test.Collections.colors_by_id"), fieldErr.Field)
}

func TestPopulate_MapMessagesMerge(t *testing.T) {
	msg := parse(t, mainMessage, `
		str_to_message_map { key: "where_from" value { a_str: "there" a_long: 7 } }
		str_to_message_map { key: "other" value { a_str: "o" } }
	`)
	err := protoconv.Populate(map[string]any{
		"str_to_message_map": map[string]any{
			"where_from": map[string]any{"a_long": 8, "lst_longs": []any{1, 2}},
			"new":        map[string]any{},
		},
	}, msg)
	require.NoError(t, err)
	expected := parse(t, mainMessage, `
		str_to_message_map { key: "where_from" value { a_str: "there" a_long: 8 lst_longs: [1, 2] } }
		str_to_message_map { key: "other" value { a_str: "o" } }
		str_to_message_map { key: "new" value { } }
	`)
	requireProtoEqual(t, expected, msg)

	err = protoconv.Populate(map[string]any{
		"str_to_message_map": map[string]any{
			"where_from": map[string]any{"lst_longs": []any{"x"}},
		},
	}, msg)
	var fieldErr *protoconv.FieldError
	require.ErrorAs(t, err, &fieldErr)
	require.Equal(t, `str_to_message_map["where_from"].lst_longs[0]`, fieldErr.Path.String())
}

func TestPopulate_SubMessages(t *testing.T) {
	msg := parse(t, collections, `scalars { a_string: "x" }`)
	require.NoError(t, protoconv.Populate(map[string]any{"scalars": map[string]any{"an_int32": 3}}, msg))
	requireProtoEqual(t, parse(t, collections, `scalars { a_string: "x" an_int32: 3 }`), msg)

	// a sub-message with nothing recognized is left unset
	msg = testprotos.New(t, collections)
	require.NoError(t, protoconv.Populate(map[string]any{"tree": map[string]any{"unknown": 1}}, msg))
	require.False(t, msg.ProtoReflect().Has(field(msg, "tree")))

	// generated well-known types work as fields and as targets
	msg = testprotos.New(t, legacy)
	require.NoError(t, protoconv.Populate(map[string]any{"level": "HIGH", "count": 0, "created": map[string]any{"seconds": 10}}, msg))
	requireProtoEqual(t, parse(t, legacy, `level: HIGH created { seconds: 10 }`), msg)
	require.False(t, msg.ProtoReflect().Has(field(msg, "count")))

	ts := &timestamppb.Timestamp{}
	require.NoError(t, protoconv.Populate(map[string]any{"seconds": "99", "nanos": 5}, ts))
	require.Equal(t, int64(99), ts.Seconds)
	require.Equal(t, int32(5), ts.Nanos)
}

func TestPopulate_Oneof(t *testing.T) {
	msg := testprotos.New(t, collections)
	require.NoError(t, protoconv.Populate(map[string]any{"choice_name": "n"}, msg))
	requireProtoEqual(t, parse(t, collections, `choice_name: "n"`), msg)

	// keys are processed in sorted order, so the last member wins
	require.NoError(t, protoconv.Populate(map[string]any{
		"choice_name": "m",
		"choice_sub":  map[string]any{"a_str": "s"},
	}, msg))
	requireProtoEqual(t, parse(t, collections, `choice_sub { a_str: "s" }`), msg)
}

func TestPopulate_MaxDepth(t *testing.T) {
	node := map[string]any{
		"left": map[string]any{
			"left": map[string]any{
				"left": map[string]any{"name": "leaf"},
			},
		},
	}
	err := protoconv.ImportOptions{MaxDepth: 2}.Populate(node, testprotos.New(t, tree))
	require.ErrorIs(t, err, protoconv.ErrMaxDepth)
	var fieldErr *protoconv.FieldError
	require.ErrorAs(t, err, &fieldErr)
	require.Equal(t, "left.left.left", fieldErr.Path.String())

	msg := testprotos.New(t, tree)
	require.NoError(t, protoconv.ImportOptions{MaxDepth: 3}.Populate(node, msg))
	requireProtoEqual(t, parse(t, tree, `left { left { left { name: "leaf" } } }`), msg)
}

func TestPopulate_LogsSkippedKeys(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	opts := protoconv.ImportOptions{Logger: zap.New(core)}
	node := map[string]any{
		"str_to_message_map": map[string]any{
			"k": map[string]any{"new_int": 1},
		},
	}
	require.NoError(t, opts.Populate(node, testprotos.New(t, mainMessage)))

	entries := logs.FilterMessage("ignoring unknown key").All()
	require.Len(t, entries, 1)
	ctx := entries[0].ContextMap()
	require.Equal(t, "new_int", ctx["key"])
	require.Equal(t, "protodict.test.SubMessage", ctx["message"])
	require.Equal(t, `str_to_message_map["k"]`, ctx["path"])
}

func TestFieldError(t *testing.T) {
	err := protoconv.Populate(map[string]any{"an_enum": "fourth"}, testprotos.New(t, mainMessage))
	require.EqualError(t, err, `an_enum: invalid enum label: "fourth" is not a value of protodict.test.SomeEnum (field protodict.test.MainMessage.an_enum of type protodict.test.SomeEnum)`)
	require.True(t, errors.Is(err, protoconv.ErrInvalidEnumLabel))
	require.False(t, errors.Is(err, protoconv.ErrInvalidValue))
}
