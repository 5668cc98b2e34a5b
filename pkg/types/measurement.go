package types

import (
	"encoding/json"
	"time"
)

// Outcome tags the result of a single probe.
type Outcome int

const (
	// OutcomeFailure covers every non-timeout failure: refused connections,
	// DNS and TLS errors, non-success statuses.
	OutcomeFailure Outcome = iota
	// OutcomeTimeout means the probe exceeded its deadline.
	OutcomeTimeout
	// OutcomeSuccess means the node answered within the deadline.
	OutcomeSuccess
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeTimeout:
		return "timeout"
	default:
		return "failure"
	}
}

// PingResult is the outcome of a liveness probe. TTFB is only meaningful for
// OutcomeSuccess.
type PingResult struct {
	Outcome Outcome
	TTFB    time.Duration
}

// RetrievalResult is the outcome of a retrieval probe for one transaction.
// Duration is only meaningful for OutcomeSuccess.
type RetrievalResult struct {
	TxID     string
	Outcome  Outcome
	Duration time.Duration
}

// Measurement combines both probes of one node in one cycle.
type Measurement struct {
	Node      Node            `json:"node"`
	Ping      PingResult      `json:"ping"`
	Retrieval RetrievalResult `json:"retrieval"`
}

type pingWire struct {
	Alive   bool   `json:"alive"`
	Timeout *bool  `json:"timeout"`
	TTFBMs  *int64 `json:"ttfbMs"`
}

type retrievalWire struct {
	TxID       string `json:"txId"`
	Alive      bool   `json:"alive"`
	Timeout    *bool  `json:"timeout"`
	DurationMs *int64 `json:"durationMs"`
}

// Alive reports whether the probe succeeded.
func (r PingResult) Alive() bool { return r.Outcome == OutcomeSuccess }

// Alive reports whether the retrieval succeeded.
func (r RetrievalResult) Alive() bool { return r.Outcome == OutcomeSuccess }

// MarshalJSON renders the collector's wire shape: timeout is true or null and
// ttfbMs is set only on success.
func (r PingResult) MarshalJSON() ([]byte, error) {
	alive, timeout, ms := wireFields(r.Outcome, r.TTFB)
	return json.Marshal(pingWire{Alive: alive, Timeout: timeout, TTFBMs: ms})
}

// MarshalJSON renders the collector's wire shape for a retrieval attempt.
func (r RetrievalResult) MarshalJSON() ([]byte, error) {
	alive, timeout, ms := wireFields(r.Outcome, r.Duration)
	return json.Marshal(retrievalWire{TxID: r.TxID, Alive: alive, Timeout: timeout, DurationMs: ms})
}

func wireFields(o Outcome, d time.Duration) (bool, *bool, *int64) {
	switch o {
	case OutcomeSuccess:
		ms := d.Milliseconds()
		if ms < 0 {
			ms = 0
		}
		return true, nil, &ms
	case OutcomeTimeout:
		timeout := true
		return false, &timeout, nil
	default:
		return false, nil, nil
	}
}
