package discovery

import (
	"sync"
	"sync/atomic"

	"github.com/ulala-x/playhouse/constants"
	"github.com/ulala-x/playhouse/nid"
	"github.com/ulala-x/playhouse/serverinfo"
)

// ServerInfoCenter is the read-mostly snapshot every node queries to
// route outgoing requests (spec sec 4.2 "ISystemPanel"). Updates swap in
// a new immutable slice/map pair under a mutex; reads take an atomic
// pointer load so query methods never block behind a poll-loop update.
type ServerInfoCenter struct {
	mu  sync.Mutex
	ptr atomic.Pointer[snapshot]

	rr map[uint16]*uint32 // per-serviceId round-robin cursor
	rrMu sync.Mutex
}

type snapshot struct {
	byNid     map[nid.NID]serverinfo.ServerInfo
	byService map[uint16][]serverinfo.ServerInfo
}

// NewServerInfoCenter builds an empty center.
func NewServerInfoCenter() *ServerInfoCenter {
	c := &ServerInfoCenter{rr: make(map[uint16]*uint32)}
	c.ptr.Store(&snapshot{
		byNid:     make(map[nid.NID]serverinfo.ServerInfo),
		byService: make(map[uint16][]serverinfo.ServerInfo),
	})
	return c
}

// Replace atomically swaps in a freshly merged view of the mesh (spec
// sec 4.2 poll loop: "each poll replaces the center's view wholesale").
func (c *ServerInfoCenter) Replace(servers []serverinfo.ServerInfo) {
	byNid := make(map[nid.NID]serverinfo.ServerInfo, len(servers))
	byService := make(map[uint16][]serverinfo.ServerInfo)
	for _, s := range servers {
		byNid[s.Nid] = s
		byService[s.ServiceId] = append(byService[s.ServiceId], s)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ptr.Store(&snapshot{byNid: byNid, byService: byService})
}

// GetServerInfoByNid looks up one node by its exact NID.
func (c *ServerInfoCenter) GetServerInfoByNid(n nid.NID) (serverinfo.ServerInfo, bool) {
	s := c.ptr.Load()
	info, ok := s.byNid[n]
	return info, ok
}

// GetServerInfoBy round-robins across every Running server of serviceId
// (spec sec 4.2: "requestToApi/requestToStage without an explicit target
// picks the next peer of that service in round-robin order, skipping any
// whose effective state is not Running").
func (c *ServerInfoCenter) GetServerInfoBy(serviceId uint16) (serverinfo.ServerInfo, bool) {
	s := c.ptr.Load()
	servers := s.byService[serviceId]
	if len(servers) == 0 {
		return serverinfo.ServerInfo{}, false
	}

	c.rrMu.Lock()
	cursor, ok := c.rr[serviceId]
	if !ok {
		var zero uint32
		cursor = &zero
		c.rr[serviceId] = cursor
	}
	c.rrMu.Unlock()

	for i := 0; i < len(servers); i++ {
		idx := atomic.AddUint32(cursor, 1) - 1
		candidate := servers[int(idx)%len(servers)]
		if candidate.State == constants.ServerRunning {
			return candidate, true
		}
	}
	return serverinfo.ServerInfo{}, false
}

// GetServers returns every known server (spec sec 4.2 "getServers").
func (c *ServerInfoCenter) GetServers() []serverinfo.ServerInfo {
	s := c.ptr.Load()
	out := make([]serverinfo.ServerInfo, 0, len(s.byNid))
	for _, v := range s.byNid {
		out = append(out, v)
	}
	return out
}
