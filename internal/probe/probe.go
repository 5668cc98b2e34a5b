// Package probe measures a single gateway node. Probes never return errors:
// every failure mode is folded into the result's Outcome.
package probe

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/checker-network/arweave/pkg/types"
)

// DefaultTimeout bounds both the liveness and the retrieval probe.
const DefaultTimeout = 10 * time.Second

// classify maps a failed probe to an outcome. Only the probe's own deadline
// counts as a timeout; cancellation of the parent context is a failure.
func classify(ctx context.Context) types.Outcome {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return types.OutcomeTimeout
	}
	return types.OutcomeFailure
}

// NewHTTPClient returns the client used for liveness probes. It has no
// client-wide timeout and opens a fresh connection per request.
func NewHTTPClient() *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DisableKeepAlives = true
	return &http.Client{Transport: transport}
}
