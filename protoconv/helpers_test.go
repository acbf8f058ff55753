package protoconv_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/prototext"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/testing/protocmp"

	"github.com/jhump/protodict/internal/testprotos"
)

const (
	mainMessage = protoreflect.FullName("protodict.test.MainMessage")
	collections = protoreflect.FullName("protodict.test.Collections")
	scalars     = protoreflect.FullName("protodict.test.Scalars")
	tree        = protoreflect.FullName("protodict.test.Tree")
	legacy      = protoreflect.FullName("protodict.test.legacy.Legacy")
)

// parse returns a message of the named type, populated from the given
// text format.
func parse(t *testing.T, name protoreflect.FullName, text string) proto.Message {
	t.Helper()
	msg := testprotos.New(t, name)
	require.NoError(t, prototext.Unmarshal([]byte(text), msg))
	return msg
}

func requireProtoEqual(t *testing.T, want, got proto.Message) {
	t.Helper()
	diff := cmp.Diff(want, got, protocmp.Transform())
	require.Empty(t, diff)
}

func field(msg proto.Message, name protoreflect.Name) protoreflect.FieldDescriptor {
	return msg.ProtoReflect().Descriptor().Fields().ByName(name)
}
