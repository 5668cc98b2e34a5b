package probe

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/checker-network/arweave/pkg/types"
)

func nodeFor(t *testing.T, rawURL string) types.Node {
	t.Helper()
	u, err := url.Parse(rawURL)
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	port, err := strconv.Atoi(u.Port())
	if err != nil {
		t.Fatalf("parse port: %v", err)
	}
	return types.Node{Host: u.Hostname(), Port: port, Protocol: types.Protocol(u.Scheme)}
}

func steppingClock(start time.Time, step time.Duration) func() time.Time {
	current := start
	return func() time.Time {
		now := current
		current = current.Add(step)
		return now
	}
}

func TestPingSuccessReportsTTFB(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("gateway"))
	}))
	defer server.Close()

	p := NewPinger(WithPingNow(steppingClock(time.Unix(0, 0), 42*time.Millisecond)))
	res := p.Ping(context.Background(), nodeFor(t, server.URL))

	if res.Outcome != types.OutcomeSuccess {
		t.Fatalf("expected success got %s", res.Outcome)
	}
	if res.TTFB != 42*time.Millisecond {
		t.Fatalf("expected ttfb 42ms got %s", res.TTFB)
	}
}

func TestPingNonSuccessStatusIsFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	res := NewPinger().Ping(context.Background(), nodeFor(t, server.URL))
	if res.Outcome != types.OutcomeFailure {
		t.Fatalf("expected failure got %s", res.Outcome)
	}
	if res.Alive() || res.TTFB != 0 {
		t.Fatalf("failure must carry no ttfb: %+v", res)
	}
}

func TestPingDeadlineIsTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	p := NewPinger(WithPingTimeout(50 * time.Millisecond))
	started := time.Now()
	res := p.Ping(context.Background(), nodeFor(t, server.URL))

	if res.Outcome != types.OutcomeTimeout {
		t.Fatalf("expected timeout got %s", res.Outcome)
	}
	if res.Alive() {
		t.Fatalf("timeout must not be alive")
	}
	if elapsed := time.Since(started); elapsed > 2*time.Second {
		t.Fatalf("probe did not honour its deadline, took %s", elapsed)
	}
}

func TestPingConnectionRefusedIsFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().(*net.TCPAddr)
	ln.Close()

	node := types.Node{Host: "127.0.0.1", Port: addr.Port, Protocol: types.ProtocolHTTP}
	res := NewPinger(WithPingTimeout(time.Second)).Ping(context.Background(), node)
	if res.Outcome != types.OutcomeFailure {
		t.Fatalf("expected failure got %s", res.Outcome)
	}
}

func TestPingParentCancelIsFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	res := NewPinger(WithPingTimeout(5*time.Second)).Ping(ctx, nodeFor(t, server.URL))
	if res.Outcome != types.OutcomeFailure {
		t.Fatalf("expected failure on parent cancel got %s", res.Outcome)
	}
}
