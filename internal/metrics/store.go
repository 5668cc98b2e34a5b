package metrics

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/checker-network/arweave/pkg/types"
)

const namespace = "arweave_checker"

// Store owns a private Prometheus registry with the checker's collectors.
type Store struct {
	registry *prometheus.Registry

	probeOutcomes    *prometheus.CounterVec
	probeDuration    *prometheus.HistogramVec
	abandoned        prometheus.Counter
	cycles           prometheus.Counter
	submissions      *prometheus.CounterVec
	refreshes        *prometheus.CounterVec
	nodes            prometheus.Gauge
	lastRefresh      prometheus.Gauge
	ready            prometheus.Gauge
	readyTransitions *prometheus.CounterVec
	buildInfo        *prometheus.GaugeVec

	readyState atomic.Int64
}

// NewStore constructs a Store with every collector registered.
func NewStore() *Store {
	s := &Store{
		registry: prometheus.NewRegistry(),
		probeOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "probe_outcomes_total",
			Help:      "Probe results by probe kind and outcome.",
		}, []string{"probe", "outcome"}),
		probeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "probe_duration_seconds",
			Help:      "Elapsed time of successful probes.",
			// 10ms .. ~20s
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		}, []string{"probe"}),
		abandoned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retrievals_abandoned_total",
			Help:      "Retrieval downloads still running after their deadline fired.",
		}),
		cycles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "Completed measurement cycles.",
		}),
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submissions_total",
			Help:      "Measurement submissions by result.",
		}, []string{"result"}),
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "directory_refreshes_total",
			Help:      "Node directory fetches by result.",
		}, []string{"result"}),
		nodes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "nodes",
			Help:      "Size of the node set currently sampled from.",
		}),
		lastRefresh: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_refresh_timestamp_seconds",
			Help:      "Unix time of the last successful directory fetch.",
		}),
		ready: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ready",
			Help:      "Whether the checker considers itself ready (1=ready).",
		}),
		readyTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ready_transitions_total",
			Help:      "Readiness state transitions by resulting state.",
		}, []string{"state"}),
		buildInfo: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "build_info",
			Help:      "Build info (constant 1, labeled by version).",
		}, []string{"version"}),
	}

	startTime := time.Now()
	uptime := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "uptime_seconds",
		Help:      "Process uptime in seconds.",
	}, func() float64 { return time.Since(startTime).Seconds() })

	s.registry.MustRegister(
		s.probeOutcomes, s.probeDuration, s.abandoned, s.cycles, s.submissions,
		s.refreshes, s.nodes, s.lastRefresh, s.ready, s.readyTransitions, s.buildInfo, uptime,
	)
	return s
}

// Registry exposes the underlying registry, mainly for tests.
func (s *Store) Registry() *prometheus.Registry {
	return s.registry
}

// SetBuildInfo should be called once at startup.
func (s *Store) SetBuildInfo(version string) {
	s.buildInfo.WithLabelValues(version).Set(1)
}

func (s *Store) ObserveProbe(probe string, outcome types.Outcome, elapsed time.Duration) {
	s.probeOutcomes.WithLabelValues(probe, outcome.String()).Inc()
	if outcome == types.OutcomeSuccess {
		s.probeDuration.WithLabelValues(probe).Observe(elapsed.Seconds())
	}
}

func (s *Store) IncAbandonedRetrievals() {
	s.abandoned.Inc()
}

func (s *Store) IncCycles() {
	s.cycles.Inc()
}

func (s *Store) ObserveSubmission(err error) {
	s.submissions.WithLabelValues(resultLabel(err)).Inc()
}

func (s *Store) ObserveRefresh(ts time.Time, nodes int, err error) {
	s.refreshes.WithLabelValues(resultLabel(err)).Inc()
	if err != nil {
		return
	}
	s.nodes.Set(float64(nodes))
	s.lastRefresh.Set(float64(ts.Unix()))
}

// ObserveReadiness records the latest readiness evaluation, counting transitions.
func (s *Store) ObserveReadiness(ready bool) {
	next := int64(0)
	if ready {
		next = 1
	}
	prev := s.readyState.Swap(next)
	s.ready.Set(float64(next))
	if prev == next {
		return
	}
	if ready {
		s.readyTransitions.WithLabelValues("ready").Inc()
	} else {
		s.readyTransitions.WithLabelValues("not_ready").Inc()
	}
}

func resultLabel(err error) string {
	if err != nil {
		return "failed"
	}
	return "ok"
}

// NewHTTPHandler returns an http.Handler serving the store in Prometheus format.
func NewHTTPHandler(store *Store) http.Handler {
	return promhttp.HandlerFor(store.registry, promhttp.HandlerOpts{})
}

var (
	_ ProbeRecorder   = (*Store)(nil)
	_ CycleRecorder   = (*Store)(nil)
	_ RefreshRecorder = (*Store)(nil)
)
