// Package serverinfo holds the ServerInfo record (spec sec 3.1) the
// discovery layer heartbeats through the registry.
package serverinfo

import (
	"time"

	"github.com/ulala-x/playhouse/constants"
	"github.com/ulala-x/playhouse/nid"
)

// ServerInfo is a heartbeat-refreshed snapshot of one mesh node.
type ServerInfo struct {
	BindEndpoint    string
	Nid             nid.NID
	ServiceId       uint16
	ServerId        uint32
	ServiceType     constants.ServiceType
	State           constants.ServerState
	ActorCount      int32
	LastUpdateMillis int64
}

// IsStale reports whether LastUpdateMillis is older than staleBound as of now.
func (s ServerInfo) IsStale(now time.Time, staleBound time.Duration) bool {
	age := now.Sub(time.UnixMilli(s.LastUpdateMillis))
	return age > staleBound
}

// EffectiveState is State, downgraded to Disable if the heartbeat has
// gone stale (spec sec 3.1: "an info whose lastUpdate is older than a
// configurable staleness bound is treated as Disable").
func (s ServerInfo) EffectiveState(now time.Time, staleBound time.Duration) constants.ServerState {
	if s.State == constants.ServerDisable {
		return constants.ServerDisable
	}
	if s.IsStale(now, staleBound) {
		return constants.ServerDisable
	}
	return s.State
}
