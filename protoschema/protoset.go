package protoschema

import (
	"fmt"
	"io"
	"os"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/types/descriptorpb"
)

// LoadProtoset reads the compiled descriptor set at the given path, such as
// one produced by "protoc --include_imports --descriptor_set_out=...".
func LoadProtoset(path string) (*Registry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = f.Close()
	}()
	reg, err := ReadProtoset(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return reg, nil
}

// ReadProtoset reads a descriptor set, in the protobuf binary format, from
// the given reader.
func ReadProtoset(r io.Reader) (*Registry, error) {
	bb, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	var fds descriptorpb.FileDescriptorSet
	if err := proto.Unmarshal(bb, &fds); err != nil {
		return nil, err
	}
	return FromFileDescriptorSet(&fds)
}

// FromFileDescriptorSet returns a registry with all files in the given set.
// The set must be self-contained: every import must also be in the set.
func FromFileDescriptorSet(fds *descriptorpb.FileDescriptorSet) (*Registry, error) {
	files, err := protodesc.NewFiles(fds)
	if err != nil {
		return nil, err
	}
	reg := NewRegistry()
	for _, fdProto := range fds.File {
		fd, err := files.FindFileByPath(fdProto.GetName())
		if err != nil {
			return nil, err
		}
		if err := reg.RegisterFile(fd); err != nil {
			return nil, err
		}
	}
	return reg, nil
}
