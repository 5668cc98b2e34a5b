package probe

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync/atomic"
	"testing"
	"time"

	"github.com/checker-network/arweave/pkg/types"
)

type abandonCounter struct {
	count atomic.Int32
}

func (c *abandonCounter) ObserveProbe(string, types.Outcome, time.Duration) {}
func (c *abandonCounter) IncAbandonedRetrievals()                         { c.count.Add(1) }

var testNode = types.Node{Host: "gw.example", Port: 443, Protocol: types.ProtocolHTTPS}

func TestRetrieveSuccessReportsDuration(t *testing.T) {
	var gotTx string
	downloader := DownloaderFunc(func(ctx context.Context, node types.Node, txID string) ([]byte, error) {
		gotTx = txID
		if node != testNode {
			t.Errorf("unexpected node %v", node)
		}
		return []byte("payload"), nil
	})

	r := NewRetriever(downloader, []string{"tx-a"}, WithRetrieveNow(steppingClock(time.Unix(0, 0), 250*time.Millisecond)))
	res := r.Retrieve(context.Background(), testNode)

	if res.Outcome != types.OutcomeSuccess {
		t.Fatalf("expected success got %s", res.Outcome)
	}
	if res.TxID != "tx-a" || gotTx != "tx-a" {
		t.Fatalf("unexpected tx id %q / %q", res.TxID, gotTx)
	}
	if res.Duration != 250*time.Millisecond {
		t.Fatalf("expected 250ms got %s", res.Duration)
	}
}

func TestRetrieveErrorIsFailure(t *testing.T) {
	downloader := DownloaderFunc(func(ctx context.Context, node types.Node, txID string) ([]byte, error) {
		return nil, errors.New("chunk 3 missing")
	})

	res := NewRetriever(downloader, []string{"tx-a"}).Retrieve(context.Background(), testNode)
	if res.Outcome != types.OutcomeFailure {
		t.Fatalf("expected failure got %s", res.Outcome)
	}
	if res.TxID != "tx-a" {
		t.Fatalf("failure must still name the transaction, got %q", res.TxID)
	}
}

func TestRetrieveTimeoutAbandonsNonCooperativeDownload(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	downloader := DownloaderFunc(func(ctx context.Context, node types.Node, txID string) ([]byte, error) {
		<-release
		return []byte("late"), nil
	})

	counter := &abandonCounter{}
	r := NewRetriever(downloader, []string{"tx-a"},
		WithRetrieveTimeout(30*time.Millisecond),
		WithAbandonGrace(10*time.Millisecond),
		WithRetrieveMetrics(counter),
	)

	started := time.Now()
	res := r.Retrieve(context.Background(), testNode)
	if res.Outcome != types.OutcomeTimeout {
		t.Fatalf("expected timeout got %s", res.Outcome)
	}
	if res.Alive() || res.Duration != 0 {
		t.Fatalf("timeout must carry no duration: %+v", res)
	}
	if time.Since(started) > time.Second {
		t.Fatalf("retriever kept waiting past its deadline")
	}
	r.watchers.Wait()
	if counter.count.Load() != 1 {
		t.Fatalf("expected abandoned download to be counted")
	}
}

func TestRetrieveCooperativeDownloadSeesCancellation(t *testing.T) {
	cancelled := make(chan struct{})
	downloader := DownloaderFunc(func(ctx context.Context, node types.Node, txID string) ([]byte, error) {
		<-ctx.Done()
		close(cancelled)
		return nil, ctx.Err()
	})

	counter := &abandonCounter{}
	r := NewRetriever(downloader, []string{"tx-a"},
		WithRetrieveTimeout(20*time.Millisecond),
		WithRetrieveMetrics(counter),
	)
	res := r.Retrieve(context.Background(), testNode)
	if res.Outcome != types.OutcomeTimeout {
		t.Fatalf("expected timeout got %s", res.Outcome)
	}
	select {
	case <-cancelled:
	case <-time.After(time.Second):
		t.Fatalf("downloader context was never cancelled")
	}
	r.watchers.Wait()
	if n := counter.count.Load(); n != 0 {
		t.Fatalf("download that honoured cancellation counted as abandoned %d times", n)
	}
}

func TestRetrieveLateSuccessAfterDeadlineIsAbandoned(t *testing.T) {
	downloader := DownloaderFunc(func(ctx context.Context, node types.Node, txID string) ([]byte, error) {
		<-ctx.Done()
		return []byte("ignored cancellation"), nil
	})

	counter := &abandonCounter{}
	r := NewRetriever(downloader, []string{"tx-a"},
		WithRetrieveTimeout(20*time.Millisecond),
		WithRetrieveMetrics(counter),
	)
	if res := r.Retrieve(context.Background(), testNode); res.Outcome != types.OutcomeTimeout {
		t.Fatalf("expected timeout got %s", res.Outcome)
	}
	r.watchers.Wait()
	if counter.count.Load() != 1 {
		t.Fatalf("download ignoring its context should be counted as abandoned")
	}
}

func TestRetrieveParentCancelIsFailure(t *testing.T) {
	started := make(chan struct{})
	downloader := DownloaderFunc(func(ctx context.Context, node types.Node, txID string) ([]byte, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()

	counter := &abandonCounter{}
	r := NewRetriever(downloader, []string{"tx-a"},
		WithRetrieveTimeout(5*time.Second),
		WithRetrieveMetrics(counter),
	)
	res := r.Retrieve(ctx, testNode)
	if res.Outcome != types.OutcomeFailure {
		t.Fatalf("parent cancellation must be a failure, got %s", res.Outcome)
	}
	if res.Alive() || res.Duration != 0 {
		t.Fatalf("failure must carry no duration: %+v", res)
	}
	r.watchers.Wait()
	if n := counter.count.Load(); n != 0 {
		t.Fatalf("cancelled download counted as abandoned %d times", n)
	}
}

func TestRetrievePicksFromPool(t *testing.T) {
	pool := []string{"tx-1", "tx-2", "tx-3", "tx-4", "tx-5"}
	downloader := DownloaderFunc(func(ctx context.Context, node types.Node, txID string) ([]byte, error) {
		return nil, nil
	})
	r := NewRetriever(downloader, pool, WithRetrieveRand(rand.New(rand.NewPCG(7, 7))))

	seen := map[string]int{}
	for i := 0; i < 500; i++ {
		seen[r.Retrieve(context.Background(), testNode).TxID]++
	}
	if len(seen) != len(pool) {
		t.Fatalf("expected every pool entry to be drawn, got %v", seen)
	}
}

func TestRetrieveEmptyPoolIsFailure(t *testing.T) {
	res := NewRetriever(nil, nil).Retrieve(context.Background(), testNode)
	if res.Outcome != types.OutcomeFailure {
		t.Fatalf("expected failure got %s", res.Outcome)
	}
}
