package journal

import (
	"context"

	"github.com/hazyhaar/pagewright/mutation"
)

// BatchFunc is called for each batch.
type BatchFunc func(ctx context.Context, batch mutation.Batch) error

// Callback delivers batches in-process with no serialisation.
type Callback struct {
	fn BatchFunc
}

// NewCallback creates a Callback sink. fn may be nil.
func NewCallback(fn BatchFunc) *Callback { return &Callback{fn: fn} }

func (c *Callback) Send(ctx context.Context, batch mutation.Batch) error {
	if c.fn != nil {
		return c.fn(ctx, batch)
	}
	return nil
}

func (c *Callback) Close() error { return nil }
