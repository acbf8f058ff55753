package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"go.uber.org/zap"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"

	"github.com/jhump/protodict/codec"
	"github.com/jhump/protodict/protoconv"
	"github.com/jhump/protodict/protoschema"
)

// env is the state shared by a command once flags are parsed.
type env struct {
	cfg    *config
	inputs []string
	log    *zap.Logger
	reg    *protoschema.Registry
	in     io.Reader
	out    io.Writer
}

func setup(ctx context.Context, name string, args []string, in io.Reader, out io.Writer, bind func(*flag.FlagSet, *config)) (*env, error) {
	cfg, inputs, err := parseFlags(name, args, bind)
	if err != nil {
		return nil, err
	}
	log, err := newLogger(cfg.Verbose)
	if err != nil {
		return nil, err
	}
	reg, err := loadRegistry(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	return &env{cfg: cfg, inputs: inputs, log: log, reg: reg, in: in, out: out}, nil
}

func (e *env) messageType() (protoreflect.FullName, error) {
	if e.cfg.Type == "" {
		return "", fmt.Errorf("%w: -type is required", errUsage)
	}
	name := protoreflect.FullName(e.cfg.Type)
	if _, err := e.reg.MessageDescriptor(name); err != nil {
		return "", err
	}
	return name, nil
}

func (e *env) formats(isIn, isOut func(codec.Format) bool) (in, out codec.Format, err error) {
	if in, err = codec.ParseFormat(e.cfg.InFormat); err != nil {
		return 0, 0, fmt.Errorf("%w: -in-format: %v", errUsage, err)
	}
	if !isIn(in) {
		return 0, 0, fmt.Errorf("%w: -in-format %v is not supported by this command", errUsage, in)
	}
	if out, err = codec.ParseFormat(e.cfg.OutFormat); err != nil {
		return 0, 0, fmt.Errorf("%w: -out-format: %v", errUsage, err)
	}
	if !isOut(out) {
		return 0, 0, fmt.Errorf("%w: -out-format %v is not supported by this command", errUsage, out)
	}
	return in, out, nil
}

// eachInput calls fn with every named input file, or with stdin if none were
// named.
func (e *env) eachInput(fn func(r io.Reader) error) error {
	if len(e.inputs) == 0 {
		return fn(e.in)
	}
	for _, path := range e.inputs {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		err = fn(f)
		_ = f.Close()
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
	}
	return nil
}

// output returns the destination for results. The returned func must be
// called to flush and close it.
func (e *env) output() (io.Writer, func() error, error) {
	if e.cfg.Output == "" {
		return e.out, func() error { return nil }, nil
	}
	f, err := os.Create(e.cfg.Output)
	if err != nil {
		return nil, nil, err
	}
	return f, f.Close, nil
}

func importCmd(ctx context.Context, args []string, in io.Reader, out io.Writer) error {
	e, err := setup(ctx, "import", args, in, out, func(fs *flag.FlagSet, cfg *config) {
		bindFlags(fs, cfg, "json", "protojson")
		fs.IntVar(&cfg.Concurrency, "j", cfg.Concurrency, "number of documents to convert concurrently (0 for GOMAXPROCS)")
	})
	if err != nil {
		return err
	}
	defer func() {
		_ = e.log.Sync()
	}()
	name, err := e.messageType()
	if err != nil {
		return err
	}
	inFormat, outFormat, err := e.formats(codec.Format.IsNode, codec.Format.IsMessage)
	if err != nil {
		return err
	}

	var nodes []map[string]any
	err = e.eachInput(func(r io.Reader) error {
		dec, err := codec.NewNodeDecoder(inFormat, r)
		if err != nil {
			return err
		}
		docs, err := dec.DecodeAll()
		nodes = append(nodes, docs...)
		return err
	})
	if err != nil {
		return err
	}
	e.log.Debug("read documents", zap.Int("count", len(nodes)), zap.Stringer("format", inFormat))

	batch := protoconv.BatchOptions{
		Concurrency: e.cfg.Concurrency,
		Import:      protoconv.ImportOptions{MaxDepth: e.cfg.MaxDepth, Logger: e.log},
	}
	prototype, err := e.reg.NewMessage(name)
	if err != nil {
		return err
	}
	msgType := prototype.ProtoReflect().Type()
	msgs, err := batch.PopulateAll(ctx, nodes, func() proto.Message {
		return msgType.New().Interface()
	})
	if err != nil {
		return err
	}

	w, closeOut, err := e.output()
	if err != nil {
		return err
	}
	enc, err := codec.NewMessageEncoder(outFormat, w)
	if err != nil {
		_ = closeOut()
		return err
	}
	for i, msg := range msgs {
		if err := enc.Encode(msg); err != nil {
			_ = closeOut()
			return fmt.Errorf("message %d: %w", i, err)
		}
	}
	return closeOut()
}

func exportCmd(ctx context.Context, args []string, in io.Reader, out io.Writer) error {
	e, err := setup(ctx, "export", args, in, out, func(fs *flag.FlagSet, cfg *config) {
		bindFlags(fs, cfg, "binary", "json")
		fs.BoolVar(&cfg.RawBytes, "raw-bytes", cfg.RawBytes, "write bytes fields as raw bytes instead of base64 strings")
		fs.BoolVar(&cfg.StringMapKeys, "string-keys", cfg.StringMapKeys, "write all map keys as strings")
	})
	if err != nil {
		return err
	}
	defer func() {
		_ = e.log.Sync()
	}()
	name, err := e.messageType()
	if err != nil {
		return err
	}
	inFormat, outFormat, err := e.formats(codec.Format.IsMessage, codec.Format.IsNode)
	if err != nil {
		return err
	}

	opts := protoconv.ExportOptions{
		MaxDepth:      e.cfg.MaxDepth,
		Logger:        e.log,
		RawBytes:      e.cfg.RawBytes,
		StringMapKeys: e.cfg.StringMapKeys || outFormat == codec.FormatJSON,
	}
	w, closeOut, err := e.output()
	if err != nil {
		return err
	}
	enc, err := codec.NewNodeEncoder(outFormat, w)
	if err != nil {
		_ = closeOut()
		return err
	}

	var count int
	err = e.eachInput(func(r io.Reader) error {
		dec, err := codec.NewMessageDecoder(inFormat, r, e.reg.Types())
		if err != nil {
			return err
		}
		for {
			if err := ctx.Err(); err != nil {
				return err
			}
			msg, err := e.reg.NewMessage(name)
			if err != nil {
				return err
			}
			if err := dec.Decode(msg); err != nil {
				if errors.Is(err, io.EOF) {
					return nil
				}
				return fmt.Errorf("message %d: %w", count, err)
			}
			node, err := opts.Export(msg)
			if err != nil {
				return fmt.Errorf("message %d: %w", count, err)
			}
			if err := enc.Encode(node); err != nil {
				return err
			}
			count++
		}
	})
	if err == nil {
		err = enc.Close()
	}
	if closeErr := closeOut(); err == nil {
		err = closeErr
	}
	e.log.Debug("exported messages", zap.Int("count", count), zap.Stringer("format", outFormat))
	return err
}

func describeCmd(ctx context.Context, args []string, in io.Reader, out io.Writer) error {
	e, err := setup(ctx, "describe", args, in, out, func(fs *flag.FlagSet, cfg *config) {
		bindFlags(fs, cfg, "", "")
	})
	if err != nil {
		return err
	}
	defer func() {
		_ = e.log.Sync()
	}()
	w, closeOut, err := e.output()
	if err != nil {
		return err
	}
	if e.cfg.Type == "" {
		for _, name := range e.reg.MessageNames() {
			fmt.Fprintln(w, name)
		}
		return closeOut()
	}
	name, err := e.messageType()
	if err != nil {
		_ = closeOut()
		return err
	}
	md, err := e.reg.MessageDescriptor(name)
	if err != nil {
		_ = closeOut()
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "%s\n", md.FullName())
	for _, f := range protoschema.Describe(md) {
		var def string
		if d := f.DefaultString(); d != "" {
			def = fmt.Sprintf("[default = %s]", d)
		}
		fmt.Fprintf(tw, "  %d\t%s\t%s\t%s\t%s\n", f.Desc.Number(), f.Name, f.Label, f.TypeName(), def)
	}
	if err := tw.Flush(); err != nil {
		_ = closeOut()
		return err
	}
	return closeOut()
}
