// Package scheduler drives the two long-running activities of the checker:
// periodic directory refreshes and the measurement loop. They share state
// only through the registry.
package scheduler

import (
	"context"
	"time"

	"github.com/checker-network/arweave/pkg/types"
)

// NodeSource lists the gateway nodes currently known to the directory.
type NodeSource interface {
	FetchNodes(ctx context.Context) (types.NodeSet, error)
}

type Composer interface {
	Compose(ctx context.Context, node types.Node) types.Measurement
}

type Submitter interface {
	Submit(ctx context.Context, m types.Measurement, requestID string) error
}

// RefreshObserver is told about every directory fetch, typically a health.Checker.
type RefreshObserver interface {
	ObserveRefresh(ts time.Time, err error)
}

// CycleObserver is told about every finished measurement cycle.
type CycleObserver interface {
	ObserveCycle(ts time.Time, submitErr error)
}

type noopObserver struct{}

func (noopObserver) ObserveRefresh(time.Time, error) {}
func (noopObserver) ObserveCycle(time.Time, error)   {}
