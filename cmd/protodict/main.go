// Command protodict converts protobuf messages to and from untyped documents
// (JSON, YAML, or msgpack), using schemas loaded from .proto sources, a
// protoset file, or a server that supports gRPC reflection.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
)

const usageText = `protodict converts between protobuf messages and untyped documents.

Usage:
  protodict import   -type NAME [schema flags] [-in-format json|yaml|msgpack] [-out-format binary|text|protojson] [files...]
  protodict export   -type NAME [schema flags] [-in-format binary|text|protojson] [-out-format json|yaml|msgpack] [files...]
  protodict describe [-type NAME] [schema flags]

Schema flags (at most one source; generated types linked into the binary are
used if none is given):
  -proto FILE[,FILE...]  compile .proto sources, with -I for import paths
  -protoset FILE         load a serialized FileDescriptorSet
  -reflect HOST:PORT     fetch descriptors from a gRPC reflection service

Input is read from the named files, or stdin if there are none. Output is
written to stdout unless -o is given. Flag defaults may be supplied in a YAML
file with -config. Run "protodict <command> -h" for all flags.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usageText)
		os.Exit(2)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var cmd func(context.Context, []string, io.Reader, io.Writer) error
	switch sub := os.Args[1]; sub {
	case "import":
		cmd = importCmd
	case "export":
		cmd = exportCmd
	case "describe":
		cmd = describeCmd
	case "help", "-h", "-help", "--help":
		fmt.Fprint(os.Stdout, usageText)
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", sub, usageText)
		os.Exit(2)
	}

	err := cmd(ctx, os.Args[2:], os.Stdin, os.Stdout)
	switch {
	case err == nil:
	case errors.Is(err, flag.ErrHelp):
		os.Exit(0)
	case errors.Is(err, errUsage):
		fmt.Fprintf(os.Stderr, "protodict %s: %v\n", os.Args[1], err)
		os.Exit(2)
	default:
		fmt.Fprintf(os.Stderr, "protodict %s: %v\n", os.Args[1], err)
		os.Exit(1)
	}
}
