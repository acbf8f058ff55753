package protoconv_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"

	"github.com/jhump/protodict/internal/testprotos"
	"github.com/jhump/protodict/protoconv"
)

func TestBatch(t *testing.T) {
	nodes := make([]map[string]any, 50)
	for i := range nodes {
		nodes[i] = map[string]any{"a_str": fmt.Sprintf("doc-%d", i), "an_int": i}
	}
	newMsg := func() proto.Message {
		return testprotos.New(t, mainMessage)
	}
	opts := protoconv.BatchOptions{Concurrency: 4}

	msgs, err := opts.PopulateAll(context.Background(), nodes, newMsg)
	require.NoError(t, err)
	require.Len(t, msgs, len(nodes))
	for i, msg := range msgs {
		requireProtoEqual(t, parse(t, mainMessage, fmt.Sprintf(`a_str: "doc-%d" an_int: %d`, i, i)), msg)
	}

	exported, err := opts.ExportAll(context.Background(), msgs)
	require.NoError(t, err)
	require.Len(t, exported, len(msgs))
	for i, node := range exported {
		require.Equal(t, fmt.Sprintf("doc-%d", i), node["a_str"])
		require.Equal(t, int32(i), node["an_int"])
	}
}

func TestBatch_Errors(t *testing.T) {
	nodes := []map[string]any{
		{"an_enum": "first"},
		{"an_enum": "fourth"},
		{"an_enum": "second"},
	}
	newMsg := func() proto.Message {
		return testprotos.New(t, mainMessage)
	}
	_, err := protoconv.BatchOptions{Concurrency: 1}.PopulateAll(context.Background(), nodes, newMsg)
	require.ErrorIs(t, err, protoconv.ErrInvalidEnumLabel)
	require.ErrorContains(t, err, "document 1: an_enum:")

	_, err = protoconv.BatchOptions{}.ExportAll(context.Background(), []proto.Message{testprotos.New(t, mainMessage), nil})
	require.ErrorIs(t, err, protoconv.ErrSchemaMismatch)
	require.ErrorContains(t, err, "document 1:")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = protoconv.BatchOptions{}.PopulateAll(ctx, nodes[:1], newMsg)
	require.ErrorIs(t, err, context.Canceled)
}
