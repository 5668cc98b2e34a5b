package health

import (
	"fmt"
	"sync"
	"time"
)

const staleFactor = 3

// ReadinessRecorder receives every readiness evaluation.
type ReadinessRecorder interface {
	ObserveReadiness(ready bool)
}

// Checker evaluates readiness conditions for the checker.
type Checker struct {
	recorder     ReadinessRecorder
	refreshStale time.Duration
	cycleStale   time.Duration

	mu          sync.RWMutex
	lastRefresh time.Time
	refreshErr  string
	lastCycle   time.Time
	submitErr   string
}

// NewChecker constructs a readiness checker. A refresh or cycle older than
// three of its intervals counts as stale. recorder may be nil.
func NewChecker(recorder ReadinessRecorder, refreshInterval, measurementInterval time.Duration) *Checker {
	return &Checker{
		recorder:     recorder,
		refreshStale: staleFactor * refreshInterval,
		cycleStale:   staleFactor * measurementInterval,
	}
}

// ObserveRefresh records the outcome of a directory fetch.
func (c *Checker) ObserveRefresh(ts time.Time, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.refreshErr = err.Error()
		return
	}
	c.lastRefresh = ts
	c.refreshErr = ""
}

// ObserveCycle records a finished measurement cycle and its submission result.
func (c *Checker) ObserveCycle(ts time.Time, submitErr error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastCycle = ts
	if submitErr != nil {
		c.submitErr = submitErr.Error()
		return
	}
	c.submitErr = ""
}

// Ready evaluates all readiness conditions and returns the overall status and reasons for failure.
func (c *Checker) Ready(now time.Time) (bool, []string) {
	c.mu.RLock()
	lastRefresh := c.lastRefresh
	refreshErr := c.refreshErr
	lastCycle := c.lastCycle
	submitErr := c.submitErr
	c.mu.RUnlock()

	reasons := make([]string, 0, 3)

	switch {
	case lastRefresh.IsZero():
		if refreshErr != "" {
			reasons = append(reasons, fmt.Sprintf("directory never fetched: %s", refreshErr))
		} else {
			reasons = append(reasons, "directory never fetched")
		}
	case c.refreshStale > 0 && now.Sub(lastRefresh) > c.refreshStale:
		reasons = append(reasons, fmt.Sprintf("directory refresh stale (%s)", now.Sub(lastRefresh).Round(time.Second)))
	}

	switch {
	case lastCycle.IsZero():
		reasons = append(reasons, "no measurement cycle completed")
	case c.cycleStale > 0 && now.Sub(lastCycle) > c.cycleStale:
		reasons = append(reasons, fmt.Sprintf("measurement cycle stale (%s)", now.Sub(lastCycle).Round(time.Second)))
	}

	if submitErr != "" {
		reasons = append(reasons, fmt.Sprintf("last submission failed: %s", submitErr))
	}

	ready := len(reasons) == 0
	if c.recorder != nil {
		c.recorder.ObserveReadiness(ready)
	}
	if !ready {
		return false, reasons
	}
	return true, nil
}
