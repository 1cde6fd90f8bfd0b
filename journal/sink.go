// Package journal delivers mutation batches from an editor engine to
// output backends: JSON lines, in-process callbacks, webhooks and a
// websocket hub feeding live previews.
package journal

import (
	"context"
	"log/slog"

	"github.com/hazyhaar/pagewright/mutation"
)

// Sink is the output interface for mutation batches.
type Sink interface {
	Send(ctx context.Context, batch mutation.Batch) error
	Close() error
}

// Listener adapts a sink to an engine listener. Delivery errors are
// logged; the engine never blocks on them.
func Listener(ctx context.Context, s Sink, logger *slog.Logger) mutation.Listener {
	if logger == nil {
		logger = slog.Default()
	}
	return func(b mutation.Batch) {
		if err := s.Send(ctx, b); err != nil {
			logger.Warn("journal: send batch failed", "batch", b.ID, "error", err)
		}
	}
}

type envelope struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}
