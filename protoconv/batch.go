package protoconv

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"
	"google.golang.org/protobuf/proto"
)

// BatchOptions configures conversion of many documents at once.
type BatchOptions struct {
	// Concurrency limits how many documents are converted at the same time.
	// If zero or negative, runtime.GOMAXPROCS(0) is used.
	Concurrency int
	Import      ImportOptions
	Export      ExportOptions
}

func (o BatchOptions) limit() int {
	if o.Concurrency > 0 {
		return o.Concurrency
	}
	return runtime.GOMAXPROCS(0)
}

// PopulateAll populates one new message, created by newMsg, per node. The
// returned slice is in the same order as nodes. Conversion stops at the
// first failure, whose error identifies the offending document by index.
func (o BatchOptions) PopulateAll(ctx context.Context, nodes []map[string]any, newMsg func() proto.Message) ([]proto.Message, error) {
	results := make([]proto.Message, len(nodes))
	grp, ctx := errgroup.WithContext(ctx)
	grp.SetLimit(o.limit())
	for i, node := range nodes {
		grp.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			msg := newMsg()
			if err := o.Import.Populate(node, msg); err != nil {
				return fmt.Errorf("document %d: %w", i, err)
			}
			results[i] = msg
			return nil
		})
	}
	if err := grp.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// ExportAll exports every message. The returned slice is in the same order
// as msgs. Conversion stops at the first failure, whose error identifies
// the offending document by index.
func (o BatchOptions) ExportAll(ctx context.Context, msgs []proto.Message) ([]map[string]any, error) {
	results := make([]map[string]any, len(msgs))
	grp, ctx := errgroup.WithContext(ctx)
	grp.SetLimit(o.limit())
	for i, msg := range msgs {
		grp.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			node, err := o.Export.Export(msg)
			if err != nil {
				return fmt.Errorf("document %d: %w", i, err)
			}
			results[i] = node
			return nil
		})
	}
	if err := grp.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
