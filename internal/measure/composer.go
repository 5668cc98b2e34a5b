package measure

import (
	"context"

	"github.com/checker-network/arweave/internal/metrics"
	"github.com/checker-network/arweave/pkg/types"
)

type Pinger interface {
	Ping(ctx context.Context, node types.Node) types.PingResult
}

type Retriever interface {
	Retrieve(ctx context.Context, node types.Node) types.RetrievalResult
}

// Composer runs both probes against one node and joins their results.
type Composer struct {
	pinger    Pinger
	retriever Retriever
	metrics   metrics.ProbeRecorder
}

type Option func(*Composer)

func WithMetrics(rec metrics.ProbeRecorder) Option {
	return func(c *Composer) {
		if rec != nil {
			c.metrics = rec
		}
	}
}

func NewComposer(pinger Pinger, retriever Retriever, opts ...Option) *Composer {
	c := &Composer{
		pinger:    pinger,
		retriever: retriever,
		metrics:   metrics.NoopProbeRecorder{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compose probes liveness, then retrieval, never both at once.
func (c *Composer) Compose(ctx context.Context, node types.Node) types.Measurement {
	ping := c.pinger.Ping(ctx, node)
	c.metrics.ObserveProbe("ping", ping.Outcome, ping.TTFB)

	retrieval := c.retriever.Retrieve(ctx, node)
	c.metrics.ObserveProbe("retrieval", retrieval.Outcome, retrieval.Duration)

	return types.Measurement{
		Node:      node,
		Ping:      ping,
		Retrieval: retrieval,
	}
}
