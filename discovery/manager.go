package discovery

import (
	"context"
	"sync"
	"time"

	"github.com/ulala-x/playhouse/constants"
	"github.com/ulala-x/playhouse/logger"
	"github.com/ulala-x/playhouse/nid"
	"github.com/ulala-x/playhouse/serverinfo"
)

// MeshConnector is the subset of mesh.Transport the Manager drives.
// Defined here rather than imported to avoid a mesh<->discovery import
// cycle (mesh packets are routed using discovery's ServerInfoCenter).
type MeshConnector interface {
	Connect(peer nid.NID, endpoint string) error
	Disconnect(peer nid.NID, endpoint string) error
}

// Manager runs the periodic poll loop (spec sec 4.2): publish this
// node's own heartbeat, pull the full registry snapshot, merge it into
// the ServerInfoCenter, and reconcile the mesh transport's live
// connections against which peers are newly Running vs. now Disable.
type Manager struct {
	self     serverinfo.ServerInfo
	registry Registry
	center   *ServerInfoCenter
	mesh     MeshConnector
	staleBound time.Duration

	mu      sync.Mutex
	wasUp   map[nid.NID]bool

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewManager builds a Manager for self; Start sets the polling period.
func NewManager(self serverinfo.ServerInfo, registry Registry, center *ServerInfoCenter, meshConn MeshConnector, staleBound time.Duration) *Manager {
	return &Manager{
		self:       self,
		registry:   registry,
		center:     center,
		mesh:       meshConn,
		staleBound: staleBound,
		wasUp:      make(map[nid.NID]bool),
	}
}

// Start launches the poll loop at period, connecting to every peer
// already Running at startup. The node's own entry is never connected
// through the mesh; sends addressed to this node are delivered locally
// by sender.ISender instead.
func (m *Manager) Start(period time.Duration) {
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.poll(ctx)
		t := time.NewTicker(period)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				m.poll(ctx)
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (m *Manager) poll(ctx context.Context) {
	now := time.Now()
	m.self.LastUpdateMillis = now.UnixMilli()

	servers, err := m.registry.UpdateServerInfoAsync(ctx, m.self)
	if err != nil {
		logger.Log.Warnf("discovery: registry poll failed: %v", err)
		return
	}

	for i := range servers {
		servers[i].State = servers[i].EffectiveState(now, m.staleBound)
	}
	m.center.Replace(servers)
	m.reconcile(now, servers)
}

// reconcile connects newly-Running peers and disconnects peers whose
// effective state has gone Disable since the last poll (spec sec 4.2
// "merge algorithm": mark-stale-as-Disable, connect newly-Running,
// disconnect Disabled).
func (m *Manager) reconcile(now time.Time, servers []serverinfo.ServerInfo) {
	m.mu.Lock()
	defer m.mu.Unlock()

	seen := make(map[nid.NID]bool, len(servers))
	for _, s := range servers {
		if s.Nid == m.self.Nid {
			continue
		}
		seen[s.Nid] = true
		up := s.EffectiveState(now, m.staleBound) == constants.ServerRunning
		wasUp := m.wasUp[s.Nid]

		switch {
		case up && !wasUp:
			if err := m.mesh.Connect(s.Nid, s.BindEndpoint); err != nil {
				logger.Log.Warnf("discovery: connect %s failed: %v", s.Nid, err)
				continue
			}
			m.wasUp[s.Nid] = true
		case !up && wasUp:
			if err := m.mesh.Disconnect(s.Nid, s.BindEndpoint); err != nil {
				logger.Log.Warnf("discovery: disconnect %s failed: %v", s.Nid, err)
			}
			m.wasUp[s.Nid] = false
		}
	}

	for n, wasUp := range m.wasUp {
		if wasUp && !seen[n] {
			m.wasUp[n] = false
		}
	}
}

// Stop halts the poll loop.
func (m *Manager) Stop() {
	if m.cancel != nil {
		m.cancel()
		m.wg.Wait()
	}
}
