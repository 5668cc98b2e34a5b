package metrics

import (
	"time"

	"github.com/checker-network/arweave/pkg/types"
)

type ProbeRecorder interface {
	ObserveProbe(probe string, outcome types.Outcome, elapsed time.Duration)
	IncAbandonedRetrievals()
}

type NoopProbeRecorder struct{}

func (NoopProbeRecorder) ObserveProbe(probe string, outcome types.Outcome, elapsed time.Duration) {}
func (NoopProbeRecorder) IncAbandonedRetrievals()                                                {}

type CycleRecorder interface {
	IncCycles()
	ObserveSubmission(err error)
}

type NoopCycleRecorder struct{}

func (NoopCycleRecorder) IncCycles()                  {}
func (NoopCycleRecorder) ObserveSubmission(err error) {}

type RefreshRecorder interface {
	ObserveRefresh(ts time.Time, nodes int, err error)
}

type NoopRefreshRecorder struct{}

func (NoopRefreshRecorder) ObserveRefresh(ts time.Time, nodes int, err error) {}
