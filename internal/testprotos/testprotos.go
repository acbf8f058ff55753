// Package testprotos compiles the .proto files in this directory for use in
// tests. Messages are dynamic; there is no generated code.
package testprotos

import (
	"context"
	"embed"
	"io/fs"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"

	"github.com/jhump/protodict/protoschema"
)

// Files with test schemas.
const (
	SampleFile = "sample.proto"
	LegacyFile = "legacy.proto"
)

//go:embed *.proto
var protos embed.FS

var load = sync.OnceValues(func() (*protoschema.Registry, error) {
	srcs, err := Sources()
	if err != nil {
		return nil, err
	}
	return protoschema.CompileOptions{Sources: srcs}.Compile(context.Background(), SampleFile, LegacyFile)
})

// Sources returns the contents of the test .proto files keyed by name.
func Sources() (map[string]string, error) {
	srcs := map[string]string{}
	err := fs.WalkDir(protos, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		data, err := protos.ReadFile(path)
		if err != nil {
			return err
		}
		srcs[path] = string(data)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return srcs, nil
}

// Registry returns a registry with all test files. The files are compiled
// once and shared by all callers.
func Registry(t testing.TB) *protoschema.Registry {
	t.Helper()
	reg, err := load()
	require.NoError(t, err)
	return reg
}

// New returns a new, empty message of the named type, which must be
// defined in one of the test files.
func New(t testing.TB, name protoreflect.FullName) proto.Message {
	t.Helper()
	msg, err := Registry(t).NewMessage(name)
	require.NoError(t, err)
	return msg
}
