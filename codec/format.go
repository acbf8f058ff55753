// Package codec reads and writes the serialized forms handled by protodict:
// untyped node documents (JSON, YAML, and msgpack) on one side and protobuf
// messages (binary, text, and protojson) on the other.
//
// Node documents are decoded into the representation accepted by the
// protoconv package. Numbers in JSON documents are decoded as json.Number so
// that 64-bit integers survive without loss of precision.
package codec

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownFormat is returned when a format name is not recognized or when
// a format is used for the wrong kind of document, such as a message format
// passed to NewNodeDecoder.
var ErrUnknownFormat = errors.New("unknown format")

// Format identifies a serialization format.
type Format int

const (
	// FormatJSON is a stream of JSON objects.
	FormatJSON Format = iota + 1
	// FormatYAML is a stream of YAML documents, separated by "---".
	FormatYAML
	// FormatMsgpack is a stream of msgpack maps.
	FormatMsgpack
	// FormatBinary is a stream of protobuf messages in the binary format,
	// each prefixed with its size as a varint.
	FormatBinary
	// FormatText is a single message in the protobuf text format.
	FormatText
	// FormatProtoJSON is a stream of messages in the canonical JSON mapping
	// for protobuf.
	FormatProtoJSON
)

var formatNames = map[Format]string{
	FormatJSON:      "json",
	FormatYAML:      "yaml",
	FormatMsgpack:   "msgpack",
	FormatBinary:    "binary",
	FormatText:      "text",
	FormatProtoJSON: "protojson",
}

var formatAliases = map[string]Format{
	"yml":      FormatYAML,
	"mpk":      FormatMsgpack,
	"bin":      FormatBinary,
	"pb":       FormatBinary,
	"txtpb":    FormatText,
	"textpb":   FormatText,
	"prototxt": FormatText,
}

func (f Format) String() string {
	if name, ok := formatNames[f]; ok {
		return name
	}
	return fmt.Sprintf("Format(%d)", int(f))
}

// IsNode reports whether the format holds untyped node documents.
func (f Format) IsNode() bool {
	return f == FormatJSON || f == FormatYAML || f == FormatMsgpack
}

// IsMessage reports whether the format holds protobuf messages.
func (f Format) IsMessage() bool {
	return f == FormatBinary || f == FormatText || f == FormatProtoJSON
}

// ParseFormat returns the format with the given name. Names are case
// insensitive, and common file extensions (like "yml" or "pb") are accepted
// as aliases.
func ParseFormat(name string) (Format, error) {
	name = strings.ToLower(strings.TrimPrefix(name, "."))
	for f, n := range formatNames {
		if n == name {
			return f, nil
		}
	}
	if f, ok := formatAliases[name]; ok {
		return f, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownFormat, name)
}
