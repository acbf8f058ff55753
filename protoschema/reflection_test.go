package protoschema_test

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/reflection"
	"google.golang.org/protobuf/reflect/protoreflect"
	_ "google.golang.org/protobuf/types/known/apipb"

	"github.com/jhump/protodict/protoschema"
)

func reflectionClient(t *testing.T) *grpc.ClientConn {
	t.Helper()
	svr := grpc.NewServer()
	reflection.Register(svr)
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() {
		_ = svr.Serve(l)
	}()
	t.Cleanup(svr.Stop)

	cc, err := grpc.NewClient(l.Addr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = cc.Close()
	})
	return cc
}

func TestFromServerReflection(t *testing.T) {
	cc := reflectionClient(t)
	ctx := context.Background()

	// api.proto imports other files, which must be fetched as well
	reg, err := protoschema.FromServerReflection(ctx, cc, "google.protobuf.Api", "grpc.reflection.v1.ServerReflectionRequest")
	require.NoError(t, err)
	for _, path := range []string{
		"google/protobuf/api.proto",
		"google/protobuf/source_context.proto",
		"google/protobuf/type.proto",
		"google/protobuf/any.proto",
		"grpc/reflection/v1/reflection.proto",
	} {
		_, err := reg.FindFileByPath(path)
		require.NoError(t, err, path)
	}
	msg, err := reg.NewMessage("google.protobuf.Method")
	require.NoError(t, err)
	require.Equal(t, protoreflect.FullName("google.protobuf.Method"), msg.ProtoReflect().Descriptor().FullName())

	_, err = protoschema.FromServerReflection(ctx, cc, "foo.bar.DoesNotExist")
	require.ErrorIs(t, err, protoschema.ErrSymbolNotFound)
	require.ErrorContains(t, err, "symbol foo.bar.DoesNotExist")
}
