package scheduler

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/checker-network/arweave/internal/metrics"
	"github.com/checker-network/arweave/internal/registry"
	"github.com/checker-network/arweave/pkg/types"
)

const DefaultMeasurementInterval = time.Minute

// Measurer runs one measurement cycle at a time: pick a node, probe it,
// submit the result, sleep.
type Measurer struct {
	registry  *registry.Registry
	composer  Composer
	submitter Submitter
	interval  time.Duration

	now     func() time.Time
	rand    *rand.Rand
	newID   func() string
	logger  *zap.Logger
	metrics metrics.CycleRecorder
	health  CycleObserver
}

type MeasurerOption func(*Measurer)

func WithNow(now func() time.Time) MeasurerOption {
	return func(m *Measurer) {
		if now != nil {
			m.now = now
		}
	}
}

// WithRand fixes the source used to pick nodes. The Measurer is the only
// user of r.
func WithRand(r *rand.Rand) MeasurerOption {
	return func(m *Measurer) {
		m.rand = r
	}
}

func WithIDGenerator(newID func() string) MeasurerOption {
	return func(m *Measurer) {
		if newID != nil {
			m.newID = newID
		}
	}
}

func WithLogger(logger *zap.Logger) MeasurerOption {
	return func(m *Measurer) {
		if logger != nil {
			m.logger = logger
		}
	}
}

func WithMetrics(rec metrics.CycleRecorder) MeasurerOption {
	return func(m *Measurer) {
		if rec != nil {
			m.metrics = rec
		}
	}
}

func WithHealth(obs CycleObserver) MeasurerOption {
	return func(m *Measurer) {
		if obs != nil {
			m.health = obs
		}
	}
}

func NewMeasurer(reg *registry.Registry, composer Composer, submitter Submitter, interval time.Duration, opts ...MeasurerOption) *Measurer {
	if interval <= 0 {
		interval = DefaultMeasurementInterval
	}
	m := &Measurer{
		registry:  reg,
		composer:  composer,
		submitter: submitter,
		interval:  interval,
		now:       time.Now,
		newID:     uuid.NewString,
		logger:    zap.NewNop(),
		metrics:   metrics.NoopCycleRecorder{},
		health:    noopObserver{},
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.Named("measurer")
	return m
}

// Cycle measures one randomly picked node and submits the result. The node
// set is read once at the start, so a concurrent refresh never affects a
// cycle in progress. The returned error is the submission error, if any; a
// cycle interrupted by ctx is not submitted.
func (m *Measurer) Cycle(ctx context.Context) (types.Measurement, error) {
	node, ok := m.registry.Nodes().Pick(m.rand)
	if !ok {
		node = types.BootstrapNode
	}
	id := m.newID()
	logger := m.logger.With(zap.String("cycle_id", id))
	logger.Debug("measuring node", zap.Stringer("node", node))

	measurement := m.composer.Compose(ctx, node)
	if err := ctx.Err(); err != nil {
		return measurement, err
	}
	logger.Info("measurement", zap.Any("measurement", measurement))

	err := m.submitter.Submit(ctx, measurement, id)
	if err != nil {
		logger.Warn("measurement dropped", zap.Error(err))
	}
	m.metrics.IncCycles()
	m.metrics.ObserveSubmission(err)
	m.health.ObserveCycle(m.now(), err)
	return measurement, err
}

// Run loops cycles until ctx is cancelled. The first cycle starts
// immediately; the interval is slept after each cycle.
func (m *Measurer) Run(ctx context.Context) error {
	for {
		_, _ = m.Cycle(ctx)
		if ctx.Err() != nil {
			return nil
		}

		timer := time.NewTimer(m.interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}
}
