package discovery

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ulala-x/playhouse/constants"
	"github.com/ulala-x/playhouse/nid"
	"github.com/ulala-x/playhouse/serverinfo"
)

type fakeMesh struct {
	mu          sync.Mutex
	connected   map[nid.NID]bool
	connectErr  error
}

func newFakeMesh() *fakeMesh { return &fakeMesh{connected: make(map[nid.NID]bool)} }

func (f *fakeMesh) Connect(peer nid.NID, endpoint string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.connectErr != nil {
		return f.connectErr
	}
	f.connected[peer] = true
	return nil
}

func (f *fakeMesh) Disconnect(peer nid.NID, endpoint string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected[peer] = false
	return nil
}

func (f *fakeMesh) isConnected(peer nid.NID) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected[peer]
}

func TestManagerConnectsNewlyRunningPeer(t *testing.T) {
	registry := NewInMemoryRegistry()
	peer := serverinfo.ServerInfo{
		Nid: nid.Of(1, 2), ServiceId: 1, ServerId: 2,
		State: constants.ServerRunning, BindEndpoint: "tcp://peer:9000",
		LastUpdateMillis: time.Now().UnixMilli(),
	}
	_, err := registry.UpdateServerInfoAsync(context.Background(), peer)
	require.NoError(t, err)

	self := serverinfo.ServerInfo{Nid: nid.Of(1, 1), ServiceId: 1, ServerId: 1, State: constants.ServerRunning}
	center := NewServerInfoCenter()
	mesh := newFakeMesh()
	m := NewManager(self, registry, center, mesh, time.Minute)

	m.poll(context.Background())

	assert.True(t, mesh.isConnected(peer.Nid))
	info, ok := center.GetServerInfoByNid(peer.Nid)
	require.True(t, ok)
	assert.Equal(t, peer.ServerId, info.ServerId)
}

func TestManagerDisconnectsPeerGoneStale(t *testing.T) {
	registry := NewInMemoryRegistry()
	self := serverinfo.ServerInfo{Nid: nid.Of(1, 1), ServiceId: 1, ServerId: 1, State: constants.ServerRunning}
	center := NewServerInfoCenter()
	mesh := newFakeMesh()
	m := NewManager(self, registry, center, mesh, 10*time.Millisecond)

	staleNid := nid.Of(1, 2)
	stalePeer := serverinfo.ServerInfo{
		Nid: staleNid, ServiceId: 1, ServerId: 2,
		State: constants.ServerRunning, BindEndpoint: "tcp://peer:9000",
		LastUpdateMillis: time.Now().UnixMilli(),
	}
	_, err := registry.UpdateServerInfoAsync(context.Background(), stalePeer)
	require.NoError(t, err)

	m.poll(context.Background())
	require.True(t, mesh.isConnected(staleNid))

	time.Sleep(20 * time.Millisecond)
	m.poll(context.Background())

	assert.False(t, mesh.isConnected(staleNid), "a peer whose heartbeat has gone stale must be disconnected")
}

func TestManagerNeverConnectsItself(t *testing.T) {
	registry := NewInMemoryRegistry()
	self := serverinfo.ServerInfo{Nid: nid.Of(1, 1), ServiceId: 1, ServerId: 1, State: constants.ServerRunning}
	center := NewServerInfoCenter()
	mesh := newFakeMesh()
	m := NewManager(self, registry, center, mesh, time.Minute)

	m.poll(context.Background())

	assert.False(t, mesh.isConnected(self.Nid))
}
