package protoconv

import (
	"fmt"
	"reflect"
	"sort"
)

// rangeMapping calls fn for every entry of a mapping node, in a stable key
// order. It returns false without calling fn if v is not a mapping.
//
// Decoders produce map[string]any (JSON) or map[any]any (YAML, msgpack), but
// any Go map is accepted.
func rangeMapping(v any, fn func(key, val any) error) (bool, error) {
	switch m := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if err := fn(k, m[k]); err != nil {
				return true, err
			}
		}
		return true, nil
	case map[any]any:
		keys := make([]any, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sortKeys(keys)
		for _, k := range keys {
			if err := fn(k, m[k]); err != nil {
				return true, err
			}
		}
		return true, nil
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Map {
		return false, nil
	}
	keys := make([]any, 0, rv.Len())
	vals := make(map[any]any, rv.Len())
	for iter := rv.MapRange(); iter.Next(); {
		k := iter.Key().Interface()
		keys = append(keys, k)
		vals[k] = iter.Value().Interface()
	}
	sortKeys(keys)
	for _, k := range keys {
		if err := fn(k, vals[k]); err != nil {
			return true, err
		}
	}
	return true, nil
}

func sortKeys(keys []any) {
	strs := make([]string, len(keys))
	for i, k := range keys {
		strs[i] = fmt.Sprint(k)
	}
	sort.Sort(keySorter{keys: keys, strs: strs})
}

type keySorter struct {
	keys []any
	strs []string
}

func (s keySorter) Len() int           { return len(s.keys) }
func (s keySorter) Less(i, j int) bool { return s.strs[i] < s.strs[j] }
func (s keySorter) Swap(i, j int) {
	s.keys[i], s.keys[j] = s.keys[j], s.keys[i]
	s.strs[i], s.strs[j] = s.strs[j], s.strs[i]
}

// rangeSequence calls fn for every element of a sequence node. It returns
// false without calling fn if v is not a sequence. Byte slices and strings
// are not sequences.
func rangeSequence(v any, fn func(i int, elem any) error) (bool, error) {
	switch s := v.(type) {
	case []any:
		for i, elem := range s {
			if err := fn(i, elem); err != nil {
				return true, err
			}
		}
		return true, nil
	case []byte:
		return false, nil
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return false, nil
	}
	if rv.Type().Elem().Kind() == reflect.Uint8 {
		return false, nil
	}
	for i := 0; i < rv.Len(); i++ {
		if err := fn(i, rv.Index(i).Interface()); err != nil {
			return true, err
		}
	}
	return true, nil
}

func isMapping(v any) bool {
	switch v.(type) {
	case map[string]any, map[any]any:
		return true
	}
	return reflect.ValueOf(v).Kind() == reflect.Map
}
