// Package discovery implements service discovery (spec sec 4.2): the
// Registry contract nodes heartbeat into, the ServerInfoCenter snapshot
// every node queries for routing decisions, and the Mesh Manager poll
// loop that reconciles the mesh's live connections against the registry.
//
// The spec explicitly scopes concrete registry backends (Redis, etcd,
// Consul) out (sec 1 "Non-goals"); this package provides the contract
// plus an in-memory implementation suitable for a single-process test
// harness or an all-in-one deployment.
package discovery

import (
	"context"
	"sync"

	"github.com/ulala-x/playhouse/serverinfo"
)

// Registry is the contract every concrete backend must satisfy (spec
// sec 4.2). UpdateServerInfoAsync both publishes the caller's own
// heartbeat and returns the full current snapshot of every known server,
// mirroring the "publish-and-pull" shape the spec describes for the
// poll loop.
type Registry interface {
	UpdateServerInfoAsync(ctx context.Context, self serverinfo.ServerInfo) ([]serverinfo.ServerInfo, error)
	Close() error
}

// InMemoryRegistry is a process-local Registry, useful for tests and for
// an all-in-one deployment where every node runs in the same binary.
type InMemoryRegistry struct {
	mu      sync.Mutex
	servers map[string]serverinfo.ServerInfo
}

// NewInMemoryRegistry builds an empty in-memory registry.
func NewInMemoryRegistry() *InMemoryRegistry {
	return &InMemoryRegistry{servers: make(map[string]serverinfo.ServerInfo)}
}

// UpdateServerInfoAsync upserts self and returns a snapshot of all known servers.
func (r *InMemoryRegistry) UpdateServerInfoAsync(ctx context.Context, self serverinfo.ServerInfo) ([]serverinfo.ServerInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.servers[string(self.Nid)] = self

	out := make([]serverinfo.ServerInfo, 0, len(r.servers))
	for _, s := range r.servers {
		out = append(out, s)
	}
	return out, nil
}

// Close is a no-op for the in-memory registry.
func (r *InMemoryRegistry) Close() error { return nil }
