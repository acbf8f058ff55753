package codec

import (
	"errors"
	"fmt"
	"io"

	"github.com/goccy/go-json"
	"github.com/vmihailenco/msgpack/v5"
	"gopkg.in/yaml.v3"
)

// ErrNotMapping is returned when a node document is not a mapping with
// string keys.
var ErrNotMapping = errors.New("document is not a mapping")

// NodeDecoder reads a stream of node documents.
type NodeDecoder struct {
	format Format
	decode func(any) error
	count  int
}

// NewNodeDecoder returns a decoder that reads documents in the given format
// from r. The format must be a node format.
func NewNodeDecoder(format Format, r io.Reader) (*NodeDecoder, error) {
	d := &NodeDecoder{format: format}
	switch format {
	case FormatJSON:
		dec := json.NewDecoder(r)
		dec.UseNumber()
		d.decode = dec.Decode
	case FormatYAML:
		d.decode = yaml.NewDecoder(r).Decode
	case FormatMsgpack:
		dec := msgpack.NewDecoder(r)
		dec.SetMapDecoder(decodeMsgpackMap)
		d.decode = dec.Decode
	default:
		return nil, fmt.Errorf("%w: %v is not a node format", ErrUnknownFormat, format)
	}
	return d, nil
}

// Decode returns the next document. Empty (null) documents are skipped. It
// returns io.EOF when the stream is exhausted.
func (d *NodeDecoder) Decode() (map[string]any, error) {
	for {
		var v any
		if err := d.decode(&v); err != nil {
			if errors.Is(err, io.EOF) {
				return nil, err
			}
			return nil, fmt.Errorf("%v document %d: %w", d.format, d.count, err)
		}
		d.count++
		if v == nil {
			continue
		}
		node, ok := stringKeyed(v)
		if !ok {
			return nil, fmt.Errorf("%v document %d: %w (got %T)", d.format, d.count-1, ErrNotMapping, v)
		}
		return node, nil
	}
}

// DecodeAll reads all remaining documents.
func (d *NodeDecoder) DecodeAll() ([]map[string]any, error) {
	var nodes []map[string]any
	for {
		node, err := d.Decode()
		if errors.Is(err, io.EOF) {
			return nodes, nil
		}
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, node)
	}
}

// decodeMsgpackMap decodes maps with keys of any type, producing the same
// shapes as the YAML decoder: map[string]any when all keys are strings and
// map[any]any otherwise.
func decodeMsgpackMap(dec *msgpack.Decoder) (any, error) {
	m, err := dec.DecodeUntypedMap()
	if err != nil || m == nil {
		return nil, err
	}
	if node, ok := stringKeyed(m); ok {
		return node, nil
	}
	return m, nil
}

func stringKeyed(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case map[any]any:
		node := make(map[string]any, len(m))
		for k, val := range m {
			s, ok := k.(string)
			if !ok {
				return nil, false
			}
			node[s] = val
		}
		return node, true
	default:
		return nil, false
	}
}

// NodeEncoder writes a stream of node documents.
type NodeEncoder struct {
	encode func(any) error
	close  func() error
}

// NewNodeEncoder returns an encoder that writes documents in the given
// format to w. The format must be a node format. Callers must call Close
// when done.
//
// JSON cannot represent mappings with non-string keys, so such keys are
// written in their default string formatting.
func NewNodeEncoder(format Format, w io.Writer) (*NodeEncoder, error) {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		return &NodeEncoder{
			encode: func(v any) error { return enc.Encode(jsonCompatible(v)) },
		}, nil
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		return &NodeEncoder{encode: enc.Encode, close: enc.Close}, nil
	case FormatMsgpack:
		enc := msgpack.NewEncoder(w)
		enc.SetSortMapKeys(true)
		return &NodeEncoder{encode: enc.Encode}, nil
	default:
		return nil, fmt.Errorf("%w: %v is not a node format", ErrUnknownFormat, format)
	}
}

// Encode writes one document.
func (e *NodeEncoder) Encode(node map[string]any) error {
	return e.encode(node)
}

// Close flushes any buffered output. It does not close the underlying
// writer.
func (e *NodeEncoder) Close() error {
	if e.close == nil {
		return nil
	}
	return e.close()
}

// EncodeNode writes a single document in the given format to w.
func EncodeNode(w io.Writer, format Format, node map[string]any) error {
	enc, err := NewNodeEncoder(format, w)
	if err != nil {
		return err
	}
	if err := enc.Encode(node); err != nil {
		return err
	}
	return enc.Close()
}

func jsonCompatible(v any) any {
	switch v := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, val := range v {
			out[k] = jsonCompatible(val)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(v))
		for k, val := range v {
			out[fmt.Sprint(k)] = jsonCompatible(val)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, val := range v {
			out[i] = jsonCompatible(val)
		}
		return out
	default:
		return v
	}
}
