package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/checker-network/arweave/internal/metrics"
	"github.com/checker-network/arweave/internal/registry"
)

const DefaultRefreshInterval = 10 * time.Minute

// Refresher periodically replaces the registry's node set with a fresh
// directory listing. A failed fetch leaves the current set in place.
type Refresher struct {
	source   NodeSource
	registry *registry.Registry
	interval time.Duration

	now     func() time.Time
	logger  *zap.Logger
	metrics metrics.RefreshRecorder
	health  RefreshObserver
}

type RefresherOption func(*Refresher)

func WithRefreshNow(now func() time.Time) RefresherOption {
	return func(r *Refresher) {
		if now != nil {
			r.now = now
		}
	}
}

func WithRefreshLogger(logger *zap.Logger) RefresherOption {
	return func(r *Refresher) {
		if logger != nil {
			r.logger = logger
		}
	}
}

func WithRefreshMetrics(rec metrics.RefreshRecorder) RefresherOption {
	return func(r *Refresher) {
		if rec != nil {
			r.metrics = rec
		}
	}
}

func WithRefreshHealth(obs RefreshObserver) RefresherOption {
	return func(r *Refresher) {
		if obs != nil {
			r.health = obs
		}
	}
}

func NewRefresher(source NodeSource, reg *registry.Registry, interval time.Duration, opts ...RefresherOption) *Refresher {
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	r := &Refresher{
		source:   source,
		registry: reg,
		interval: interval,
		now:      time.Now,
		logger:   zap.NewNop(),
		metrics:  metrics.NoopRefreshRecorder{},
		health:   noopObserver{},
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.Named("refresher")
	return r
}

// RefreshOnce performs a single fetch and, on success, swaps the registry.
func (r *Refresher) RefreshOnce(ctx context.Context) error {
	nodes, err := r.source.FetchNodes(ctx)
	ts := r.now()
	if err != nil {
		r.metrics.ObserveRefresh(ts, 0, err)
		r.health.ObserveRefresh(ts, err)
		r.logger.Warn("directory refresh failed, keeping current node set",
			zap.Error(err), zap.Int("nodes", len(r.registry.Nodes())))
		return err
	}

	if !r.registry.Replace(nodes) {
		r.logger.Warn("directory returned no nodes, keeping current node set")
	}
	current := len(r.registry.Nodes())
	r.metrics.ObserveRefresh(ts, current, nil)
	r.health.ObserveRefresh(ts, nil)
	r.logger.Info("node set refreshed", zap.Int("nodes", current))
	return nil
}

// Run refreshes once per interval until ctx is cancelled. The first refresh
// happens one interval after Run is called.
func (r *Refresher) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			_ = r.RefreshOnce(ctx)
		}
	}
}
