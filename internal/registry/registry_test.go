package registry

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/checker-network/arweave/pkg/types"
)

func TestNewSeedsBootstrap(t *testing.T) {
	r := New()
	snap := r.Snapshot()
	assert.Equal(t, types.NodeSet{types.BootstrapNode}, snap.Nodes)
	assert.False(t, snap.Refreshed)
}

func TestReplaceSwapsWholeSet(t *testing.T) {
	current := time.Unix(100, 0)
	r := New(WithNow(func() time.Time { return current }))

	next := types.NodeSet{types.BootstrapNode, {Host: "1.2.3.4", Port: 1984, Protocol: types.ProtocolHTTP}}
	current = current.Add(time.Minute)
	require.True(t, r.Replace(next))

	snap := r.Snapshot()
	assert.Equal(t, next, snap.Nodes)
	assert.True(t, snap.Refreshed)
	assert.Equal(t, time.Unix(160, 0), snap.UpdatedAt)

	next[1].Host = "mutated"
	assert.Equal(t, "1.2.3.4", r.Nodes()[1].Host, "registry must own its copy")
}

func TestReplaceIgnoresEmptySet(t *testing.T) {
	r := New()
	before := r.Snapshot()
	assert.False(t, r.Replace(nil))
	assert.Equal(t, before, r.Snapshot())
}

func TestSnapshotConsistentUnderConcurrentReplace(t *testing.T) {
	r := New()
	small := types.NodeSet{types.BootstrapNode}
	large := types.NodeSet{types.BootstrapNode, {Host: "a", Port: 443, Protocol: types.ProtocolHTTPS}, {Host: "b", Port: 443, Protocol: types.ProtocolHTTPS}}

	var wg sync.WaitGroup
	stop := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			default:
			}
			if i%2 == 0 {
				r.Replace(large)
			} else {
				r.Replace(small)
			}
		}
	}()

	for i := 0; i < 10000; i++ {
		nodes := r.Nodes()
		switch len(nodes) {
		case 1:
			assert.Equal(t, small, nodes)
		case 3:
			assert.Equal(t, large, nodes)
		default:
			t.Fatalf("observed mixed node set of length %d", len(nodes))
		}
	}
	close(stop)
	wg.Wait()
}
