package discovery

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ulala-x/playhouse/constants"
	"github.com/ulala-x/playhouse/nid"
	"github.com/ulala-x/playhouse/serverinfo"
)

func server(serviceId uint16, serverId uint32, state constants.ServerState) serverinfo.ServerInfo {
	return serverinfo.ServerInfo{
		Nid: nid.Of(serviceId, serverId), ServiceId: serviceId, ServerId: serverId, State: state,
	}
}

func TestGetServerInfoByNidFindsExactMatch(t *testing.T) {
	c := NewServerInfoCenter()
	c.Replace([]serverinfo.ServerInfo{server(1, 1, constants.ServerRunning)})

	info, ok := c.GetServerInfoByNid(nid.Of(1, 1))
	require.True(t, ok)
	assert.Equal(t, uint32(1), info.ServerId)

	_, ok = c.GetServerInfoByNid(nid.Of(1, 99))
	assert.False(t, ok)
}

func TestGetServerInfoByRoundRobinsAcrossRunningPeers(t *testing.T) {
	c := NewServerInfoCenter()
	c.Replace([]serverinfo.ServerInfo{
		server(2, 1, constants.ServerRunning),
		server(2, 2, constants.ServerRunning),
		server(2, 3, constants.ServerRunning),
	})

	seen := make(map[uint32]int)
	for i := 0; i < 9; i++ {
		info, ok := c.GetServerInfoBy(2)
		require.True(t, ok)
		seen[info.ServerId]++
	}
	assert.Equal(t, 3, len(seen))
	for _, n := range seen {
		assert.Equal(t, 3, n)
	}
}

func TestGetServerInfoBySkipsDisabledPeers(t *testing.T) {
	c := NewServerInfoCenter()
	c.Replace([]serverinfo.ServerInfo{
		server(2, 1, constants.ServerDisable),
		server(2, 2, constants.ServerRunning),
	})

	for i := 0; i < 5; i++ {
		info, ok := c.GetServerInfoBy(2)
		require.True(t, ok)
		assert.Equal(t, uint32(2), info.ServerId)
	}
}

func TestGetServerInfoByReturnsFalseWhenAllDisabled(t *testing.T) {
	c := NewServerInfoCenter()
	c.Replace([]serverinfo.ServerInfo{
		server(2, 1, constants.ServerDisable),
		server(2, 2, constants.ServerDisable),
	})

	_, ok := c.GetServerInfoBy(2)
	assert.False(t, ok)
}

func TestGetServerInfoByUnknownServiceReturnsFalse(t *testing.T) {
	c := NewServerInfoCenter()
	_, ok := c.GetServerInfoBy(99)
	assert.False(t, ok)
}

func TestReplaceWhollyReplacesPriorView(t *testing.T) {
	c := NewServerInfoCenter()
	c.Replace([]serverinfo.ServerInfo{server(1, 1, constants.ServerRunning)})
	c.Replace([]serverinfo.ServerInfo{server(1, 2, constants.ServerRunning)})

	_, ok := c.GetServerInfoByNid(nid.Of(1, 1))
	assert.False(t, ok, "a node absent from the latest Replace must disappear, not linger")

	_, ok = c.GetServerInfoByNid(nid.Of(1, 2))
	assert.True(t, ok)
}

func TestGetServersReturnsEveryKnownNode(t *testing.T) {
	c := NewServerInfoCenter()
	c.Replace([]serverinfo.ServerInfo{
		server(1, 1, constants.ServerRunning),
		server(2, 1, constants.ServerRunning),
	})
	assert.Len(t, c.GetServers(), 2)
}
