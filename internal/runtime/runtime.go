package runtime

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/checker-network/arweave/internal/health"
	"github.com/checker-network/arweave/internal/metrics"
	"github.com/checker-network/arweave/internal/registry"
	"github.com/checker-network/arweave/internal/scheduler"
)

type Option func(*config)

type config struct {
	refreshInterval     time.Duration
	measurementInterval time.Duration
	metricsStore        *metrics.Store
	checker             *health.Checker
	logger              *zap.Logger
	registry            *registry.Registry
	refresherOpts       []scheduler.RefresherOption
	measurerOpts        []scheduler.MeasurerOption
}

func WithRefreshInterval(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.refreshInterval = d
		}
	}
}

func WithMeasurementInterval(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.measurementInterval = d
		}
	}
}

func WithMetricsStore(store *metrics.Store) Option {
	return func(c *config) {
		c.metricsStore = store
	}
}

func WithHealthChecker(checker *health.Checker) Option {
	return func(c *config) {
		c.checker = checker
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

func WithRegistry(reg *registry.Registry) Option {
	return func(c *config) {
		c.registry = reg
	}
}

func WithRefresherOptions(opts ...scheduler.RefresherOption) Option {
	return func(c *config) {
		c.refresherOpts = append(c.refresherOpts, opts...)
	}
}

func WithMeasurerOptions(opts ...scheduler.MeasurerOption) Option {
	return func(c *config) {
		c.measurerOpts = append(c.measurerOpts, opts...)
	}
}

// Runtime wires the registry, the refresh activity and the measurement loop.
type Runtime struct {
	registry  *registry.Registry
	refresher *scheduler.Refresher
	measurer  *scheduler.Measurer
	logger    *zap.Logger
}

func New(source scheduler.NodeSource, composer scheduler.Composer, submitter scheduler.Submitter, opts ...Option) *Runtime {
	cfg := config{
		refreshInterval:     scheduler.DefaultRefreshInterval,
		measurementInterval: scheduler.DefaultMeasurementInterval,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = zap.NewNop()
	}
	if cfg.registry == nil {
		cfg.registry = registry.New()
	}

	refresherOpts := []scheduler.RefresherOption{scheduler.WithRefreshLogger(cfg.logger)}
	measurerOpts := []scheduler.MeasurerOption{scheduler.WithLogger(cfg.logger)}
	if cfg.metricsStore != nil {
		refresherOpts = append(refresherOpts, scheduler.WithRefreshMetrics(cfg.metricsStore))
		measurerOpts = append(measurerOpts, scheduler.WithMetrics(cfg.metricsStore))
	}
	if cfg.checker != nil {
		refresherOpts = append(refresherOpts, scheduler.WithRefreshHealth(cfg.checker))
		measurerOpts = append(measurerOpts, scheduler.WithHealth(cfg.checker))
	}
	refresherOpts = append(refresherOpts, cfg.refresherOpts...)
	measurerOpts = append(measurerOpts, cfg.measurerOpts...)

	return &Runtime{
		registry:  cfg.registry,
		refresher: scheduler.NewRefresher(source, cfg.registry, cfg.refreshInterval, refresherOpts...),
		measurer:  scheduler.NewMeasurer(cfg.registry, composer, submitter, cfg.measurementInterval, measurerOpts...),
		logger:    cfg.logger.Named("runtime"),
	}
}

// Start performs the initial directory fetch, then launches the refresh and
// measurement activities. A failed initial fetch is logged and the checker
// proceeds with the bootstrap node alone. The returned func blocks until both
// activities have stopped after ctx is cancelled.
func (r *Runtime) Start(ctx context.Context) func() {
	if err := r.refresher.RefreshOnce(ctx); err != nil {
		r.logger.Warn("initial directory fetch failed, starting with bootstrap node only", zap.Error(err))
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return r.refresher.Run(gctx) })
	g.Go(func() error { return r.measurer.Run(gctx) })

	return func() {
		_ = g.Wait()
	}
}

func (r *Runtime) Registry() *registry.Registry {
	return r.registry
}

func (r *Runtime) Measurer() *scheduler.Measurer {
	return r.measurer
}
