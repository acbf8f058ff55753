package protoschema

import (
	"context"
	"errors"
	"fmt"
	"io"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	refv1 "google.golang.org/grpc/reflection/grpc_reflection_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/descriptorpb"
)

// ErrSymbolNotFound is returned by FromServerReflection when the server does
// not know about a requested symbol or file.
var ErrSymbolNotFound = errors.New("not found by server reflection")

// FromServerReflection downloads, using the gRPC server reflection service
// (grpc.reflection.v1), the files that define the given symbols along with
// all of their transitive dependencies, and returns a registry with them.
func FromServerReflection(ctx context.Context, conn grpc.ClientConnInterface, symbols ...protoreflect.FullName) (*Registry, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stream, err := refv1.NewServerReflectionClient(conn).ServerReflectionInfo(ctx)
	if err != nil {
		return nil, err
	}
	f := &reflectionFetcher{
		stream: stream,
		protos: map[string]*descriptorpb.FileDescriptorProto{},
	}
	for _, sym := range symbols {
		err := f.fetch(&refv1.ServerReflectionRequest{
			MessageRequest: &refv1.ServerReflectionRequest_FileContainingSymbol{
				FileContainingSymbol: string(sym),
			},
		})
		if err != nil {
			return nil, fmt.Errorf("symbol %s: %w", sym, err)
		}
	}
	if err := f.fetchMissingDeps(); err != nil {
		return nil, err
	}
	_ = stream.CloseSend()

	fds := &descriptorpb.FileDescriptorSet{File: make([]*descriptorpb.FileDescriptorProto, 0, len(f.order))}
	for _, name := range f.order {
		fds.File = append(fds.File, f.protos[name])
	}
	return FromFileDescriptorSet(fds)
}

type reflectionFetcher struct {
	stream refv1.ServerReflection_ServerReflectionInfoClient
	protos map[string]*descriptorpb.FileDescriptorProto
	order  []string
}

func (f *reflectionFetcher) fetch(req *refv1.ServerReflectionRequest) error {
	if err := f.stream.Send(req); err != nil {
		if err == io.EOF {
			// if send returns EOF, must call Recv to get real underlying error
			_, err = f.stream.Recv()
		}
		return err
	}
	resp, err := f.stream.Recv()
	if err != nil {
		return err
	}
	if errResp := resp.GetErrorResponse(); errResp != nil {
		if codes.Code(errResp.ErrorCode) == codes.NotFound {
			return fmt.Errorf("%s: %w", errResp.ErrorMessage, ErrSymbolNotFound)
		}
		return status.Errorf(codes.Code(errResp.ErrorCode), "%s", errResp.ErrorMessage)
	}
	fdResp := resp.GetFileDescriptorResponse()
	if fdResp == nil {
		return errors.New("protocol error: response was missing file descriptors")
	}
	// Response contains the requested file, but also any transitive deps not
	// already sent on this stream.
	for _, fdBytes := range fdResp.FileDescriptorProto {
		fd := &descriptorpb.FileDescriptorProto{}
		if err := proto.Unmarshal(fdBytes, fd); err != nil {
			return err
		}
		if _, ok := f.protos[fd.GetName()]; ok {
			continue
		}
		f.protos[fd.GetName()] = fd
		f.order = append(f.order, fd.GetName())
	}
	return nil
}

func (f *reflectionFetcher) fetchMissingDeps() error {
	// f.order grows while we iterate, so newly fetched files are checked too
	for i := 0; i < len(f.order); i++ {
		for _, dep := range f.protos[f.order[i]].GetDependency() {
			if _, ok := f.protos[dep]; ok {
				continue
			}
			err := f.fetch(&refv1.ServerReflectionRequest{
				MessageRequest: &refv1.ServerReflectionRequest_FileByFilename{
					FileByFilename: dep,
				},
			})
			if err != nil {
				return fmt.Errorf("file %q: %w", dep, err)
			}
			if _, ok := f.protos[dep]; !ok {
				return fmt.Errorf("file %q: server response did not include it: %w", dep, ErrSymbolNotFound)
			}
		}
	}
	return nil
}
