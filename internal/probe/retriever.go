package probe

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/checker-network/arweave/internal/metrics"
	"github.com/checker-network/arweave/pkg/types"
)

// Downloader fetches and reassembles the data of one transaction from a node.
// Implementations should abort when ctx is done, but the Retriever does not
// rely on it.
type Downloader interface {
	Download(ctx context.Context, node types.Node, txID string) ([]byte, error)
}

// DownloaderFunc adapts a function to the Downloader interface.
type DownloaderFunc func(ctx context.Context, node types.Node, txID string) ([]byte, error)

func (f DownloaderFunc) Download(ctx context.Context, node types.Node, txID string) ([]byte, error) {
	return f(ctx, node, txID)
}

// DefaultAbandonGrace is how long a download may keep running after its
// deadline before it counts as abandoned.
const DefaultAbandonGrace = time.Second

// Retriever checks that a node can serve one of a fixed pool of transactions.
type Retriever struct {
	downloader Downloader
	txIDs      []string
	timeout    time.Duration
	grace      time.Duration
	now        func() time.Time
	metrics    metrics.ProbeRecorder
	logger     *zap.Logger

	randMu sync.Mutex
	rand   *rand.Rand

	// watchers tracks downloads still being waited on after their deadline.
	watchers sync.WaitGroup
}

type RetrieverOption func(*Retriever)

func WithRetrieveTimeout(d time.Duration) RetrieverOption {
	return func(r *Retriever) {
		if d > 0 {
			r.timeout = d
		}
	}
}

func WithAbandonGrace(d time.Duration) RetrieverOption {
	return func(r *Retriever) {
		if d > 0 {
			r.grace = d
		}
	}
}

func WithRetrieveNow(now func() time.Time) RetrieverOption {
	return func(r *Retriever) {
		if now != nil {
			r.now = now
		}
	}
}

func WithRetrieveRand(rnd *rand.Rand) RetrieverOption {
	return func(r *Retriever) {
		r.rand = rnd
	}
}

func WithRetrieveMetrics(rec metrics.ProbeRecorder) RetrieverOption {
	return func(r *Retriever) {
		if rec != nil {
			r.metrics = rec
		}
	}
}

func WithRetrieveLogger(logger *zap.Logger) RetrieverOption {
	return func(r *Retriever) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRetriever returns a Retriever drawing from txIDs. The pool must not be
// empty.
func NewRetriever(downloader Downloader, txIDs []string, opts ...RetrieverOption) *Retriever {
	r := &Retriever{
		downloader: downloader,
		txIDs:      append([]string(nil), txIDs...),
		timeout:    DefaultTimeout,
		grace:      DefaultAbandonGrace,
		now:        time.Now,
		metrics:    metrics.NoopProbeRecorder{},
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Retrieve downloads one randomly chosen transaction from node. The deadline
// is enforced here rather than trusted to the downloader: when it fires the
// probe stops waiting and reports a timeout, even if the download goroutine
// is still running. The download keeps the cancelled context, so cooperative
// downloaders stop too; one that does not is counted as abandoned.
func (r *Retriever) Retrieve(ctx context.Context, node types.Node) types.RetrievalResult {
	txID := r.pickTxID()
	result := types.RetrievalResult{TxID: txID, Outcome: types.OutcomeFailure}
	if txID == "" || r.downloader == nil {
		return result
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	done := make(chan error, 1)
	start := r.now()
	go func() {
		_, err := r.downloader.Download(ctx, node, txID)
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			result.Outcome = classify(ctx)
			return result
		}
		result.Outcome = types.OutcomeSuccess
		result.Duration = r.now().Sub(start)
		if result.Duration < 0 {
			result.Duration = 0
		}
		return result
	case <-ctx.Done():
		result.Outcome = classify(ctx)
		r.watchers.Add(1)
		go r.watchCancelled(done, ctx.Err(), node, txID)
		return result
	}
}

// watchCancelled waits for a download whose context is done. It is abandoned
// when it outlives the grace period or returns without reporting cause.
func (r *Retriever) watchCancelled(done <-chan error, cause error, node types.Node, txID string) {
	defer r.watchers.Done()

	timer := time.NewTimer(r.grace)
	defer timer.Stop()

	select {
	case err := <-done:
		if err != nil && errors.Is(err, cause) {
			return
		}
	case <-timer.C:
	}
	r.metrics.IncAbandonedRetrievals()
	r.logger.Debug("retrieval abandoned", zap.Stringer("node", node), zap.String("tx_id", txID))
}

func (r *Retriever) pickTxID() string {
	if len(r.txIDs) == 0 {
		return ""
	}
	if r.rand == nil {
		return r.txIDs[rand.IntN(len(r.txIDs))]
	}
	r.randMu.Lock()
	defer r.randMu.Unlock()
	return r.txIDs[r.rand.IntN(len(r.txIDs))]
}
