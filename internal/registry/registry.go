package registry

import (
	"sync/atomic"
	"time"

	"github.com/checker-network/arweave/pkg/types"
)

// Snapshot is one immutable generation of the registry.
type Snapshot struct {
	Nodes     types.NodeSet
	UpdatedAt time.Time
	// Refreshed is false while the registry still holds its initial
	// bootstrap-only set.
	Refreshed bool
}

// Registry holds the current NodeSet. Writers replace the whole set with a
// single pointer swap; readers never block.
type Registry struct {
	current atomic.Pointer[Snapshot]
	now     func() time.Time
}

type Option func(*Registry)

func WithNow(now func() time.Time) Option {
	return func(r *Registry) {
		if now != nil {
			r.now = now
		}
	}
}

// New returns a registry seeded with the bootstrap node only.
func New(opts ...Option) *Registry {
	r := &Registry{now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	r.current.Store(&Snapshot{
		Nodes:     types.NodeSet{types.BootstrapNode},
		UpdatedAt: r.now(),
	})
	return r
}

// Snapshot returns the current generation. The returned NodeSet is shared and
// must be treated as read-only.
func (r *Registry) Snapshot() Snapshot {
	return *r.current.Load()
}

// Nodes is shorthand for Snapshot().Nodes.
func (r *Registry) Nodes() types.NodeSet {
	return r.current.Load().Nodes
}

// Replace installs a copy of nodes as the new generation. An empty set is
// ignored so the registry can never become empty; the return value reports
// whether the swap happened.
func (r *Registry) Replace(nodes types.NodeSet) bool {
	if len(nodes) == 0 {
		return false
	}
	r.current.Store(&Snapshot{
		Nodes:     nodes.Clone(),
		UpdatedAt: r.now(),
		Refreshed: true,
	})
	return true
}
