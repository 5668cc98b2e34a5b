package probe

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/checker-network/arweave/pkg/types"
)

const maxPingDrain = 64 << 10

// Pinger checks that a node answers a GET on its root path.
type Pinger struct {
	client  *http.Client
	timeout time.Duration
	now     func() time.Time
}

type PingerOption func(*Pinger)

func WithPingClient(client *http.Client) PingerOption {
	return func(p *Pinger) {
		if client != nil {
			p.client = client
		}
	}
}

func WithPingTimeout(d time.Duration) PingerOption {
	return func(p *Pinger) {
		if d > 0 {
			p.timeout = d
		}
	}
}

func WithPingNow(now func() time.Time) PingerOption {
	return func(p *Pinger) {
		if now != nil {
			p.now = now
		}
	}
}

func NewPinger(opts ...PingerOption) *Pinger {
	p := &Pinger{
		client:  NewHTTPClient(),
		timeout: DefaultTimeout,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Ping issues one GET against the node root. TTFB is measured up to the
// point where the status line and headers have been received.
func (p *Pinger) Ping(ctx context.Context, node types.Node) types.PingResult {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, node.URL()+"/", nil)
	if err != nil {
		return types.PingResult{Outcome: types.OutcomeFailure}
	}

	start := p.now()
	resp, err := p.client.Do(req)
	if err != nil {
		return types.PingResult{Outcome: classify(ctx)}
	}
	ttfb := p.now().Sub(start)
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxPingDrain))
	resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return types.PingResult{Outcome: types.OutcomeFailure}
	}
	if ttfb < 0 {
		ttfb = 0
	}
	return types.PingResult{Outcome: types.OutcomeSuccess, TTFB: ttfb}
}
