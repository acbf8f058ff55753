package codec

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/goccy/go-json"
	"google.golang.org/protobuf/encoding/protodelim"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/encoding/prototext"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoregistry"
)

// ErrSingleMessage is returned when writing a second message to a stream in
// a format that can only hold one, such as FormatText.
var ErrSingleMessage = errors.New("format holds a single message")

// Resolver finds message and extension types. It is used to decode
// google.protobuf.Any values and extensions. A *protoregistry.Types is a
// Resolver.
type Resolver interface {
	protoregistry.MessageTypeResolver
	protoregistry.ExtensionTypeResolver
}

func resolverOrGlobal(res Resolver) Resolver {
	if res == nil {
		return protoregistry.GlobalTypes
	}
	return res
}

// MarshalMessage serializes a single message in the given format. Binary
// output is not size-delimited.
func MarshalMessage(format Format, msg proto.Message) ([]byte, error) {
	switch format {
	case FormatBinary:
		return proto.MarshalOptions{Deterministic: true}.Marshal(msg)
	case FormatText:
		return prototext.MarshalOptions{Multiline: true}.Marshal(msg)
	case FormatProtoJSON:
		return protojson.MarshalOptions{}.Marshal(msg)
	default:
		return nil, fmt.Errorf("%w: %v is not a message format", ErrUnknownFormat, format)
	}
}

// UnmarshalMessage parses a single message in the given format into msg.
// Binary input must not be size-delimited. If res is nil, the global
// registry is used to resolve Any values and extensions.
func UnmarshalMessage(format Format, data []byte, msg proto.Message, res Resolver) error {
	res = resolverOrGlobal(res)
	switch format {
	case FormatBinary:
		return proto.UnmarshalOptions{Resolver: res}.Unmarshal(data, msg)
	case FormatText:
		return prototext.UnmarshalOptions{Resolver: res}.Unmarshal(data, msg)
	case FormatProtoJSON:
		return protojson.UnmarshalOptions{Resolver: res}.Unmarshal(data, msg)
	default:
		return fmt.Errorf("%w: %v is not a message format", ErrUnknownFormat, format)
	}
}

// MessageDecoder reads a stream of messages.
type MessageDecoder struct {
	format Format
	res    Resolver
	buf    *bufio.Reader
	json   *json.Decoder
	done   bool
}

// NewMessageDecoder returns a decoder that reads messages in the given
// format from r. Binary streams consist of size-delimited messages and
// protojson streams of concatenated JSON objects. A text stream holds one
// message. If res is nil, the global registry is used to resolve Any values
// and extensions.
func NewMessageDecoder(format Format, r io.Reader, res Resolver) (*MessageDecoder, error) {
	d := &MessageDecoder{format: format, res: resolverOrGlobal(res)}
	switch format {
	case FormatBinary, FormatText:
		d.buf = bufio.NewReader(r)
	case FormatProtoJSON:
		d.json = json.NewDecoder(r)
	default:
		return nil, fmt.Errorf("%w: %v is not a message format", ErrUnknownFormat, format)
	}
	return d, nil
}

// Decode reads the next message into msg, which is reset first. It returns
// io.EOF when the stream is exhausted.
func (d *MessageDecoder) Decode(msg proto.Message) error {
	if d.done {
		return io.EOF
	}
	proto.Reset(msg)
	switch d.format {
	case FormatBinary:
		opts := protodelim.UnmarshalOptions{UnmarshalOptions: proto.UnmarshalOptions{Resolver: d.res}}
		return opts.UnmarshalFrom(d.buf, msg)
	case FormatText:
		d.done = true
		data, err := io.ReadAll(d.buf)
		if err != nil {
			return err
		}
		if len(bytes.TrimSpace(data)) == 0 {
			return io.EOF
		}
		return prototext.UnmarshalOptions{Resolver: d.res}.Unmarshal(data, msg)
	default:
		var raw json.RawMessage
		if err := d.json.Decode(&raw); err != nil {
			return err
		}
		return protojson.UnmarshalOptions{Resolver: d.res}.Unmarshal(raw, msg)
	}
}

// MessageEncoder writes a stream of messages in a format that
// MessageDecoder can read back.
type MessageEncoder struct {
	format Format
	w      io.Writer
	count  int
}

// NewMessageEncoder returns an encoder that writes messages in the given
// format to w.
func NewMessageEncoder(format Format, w io.Writer) (*MessageEncoder, error) {
	if !format.IsMessage() {
		return nil, fmt.Errorf("%w: %v is not a message format", ErrUnknownFormat, format)
	}
	return &MessageEncoder{format: format, w: w}, nil
}

// Encode writes one message.
func (e *MessageEncoder) Encode(msg proto.Message) error {
	e.count++
	switch e.format {
	case FormatBinary:
		_, err := protodelim.MarshalOptions{MarshalOptions: proto.MarshalOptions{Deterministic: true}}.MarshalTo(e.w, msg)
		return err
	case FormatText:
		if e.count > 1 {
			return fmt.Errorf("%w: %v", ErrSingleMessage, e.format)
		}
	}
	data, err := MarshalMessage(e.format, msg)
	if err != nil {
		return err
	}
	if len(data) == 0 || data[len(data)-1] != '\n' {
		data = append(data, '\n')
	}
	_, err = e.w.Write(data)
	return err
}
