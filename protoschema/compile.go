package protoschema

import (
	"context"
	"io"
	"os"

	"github.com/bufbuild/protocompile"
)

// CompileOptions controls how .proto source files are located when
// compiling them with Compile.
type CompileOptions struct {
	// ImportPaths are the directories searched for the files to compile and
	// for their imports. If empty, paths are relative to the current working
	// directory (or are keys of Sources).
	ImportPaths []string
	// Sources, if non-nil, supplies file contents keyed by path instead of
	// reading them from the file system.
	Sources map[string]string
}

// Compile parses and links the given .proto files using default options.
// See CompileOptions.Compile.
func Compile(ctx context.Context, paths ...string) (*Registry, error) {
	return CompileOptions{}.Compile(ctx, paths...)
}

// Compile parses and links the given .proto files and returns a registry
// containing them and all of their dependencies. The standard imports
// (google/protobuf/*.proto) are always available, even when they are not
// present in the import paths.
func (o CompileOptions) Compile(ctx context.Context, paths ...string) (*Registry, error) {
	accessor := func(path string) (io.ReadCloser, error) {
		return os.Open(path)
	}
	if o.Sources != nil {
		accessor = protocompile.SourceAccessorFromMap(o.Sources)
	}
	compiler := protocompile.Compiler{
		Resolver: protocompile.WithStandardImports(&protocompile.SourceResolver{
			ImportPaths: o.ImportPaths,
			Accessor:    accessor,
		}),
	}
	files, err := compiler.Compile(ctx, paths...)
	if err != nil {
		return nil, err
	}
	reg := NewRegistry()
	for _, fd := range files {
		if err := reg.RegisterFile(fd); err != nil {
			return nil, err
		}
	}
	return reg, nil
}
