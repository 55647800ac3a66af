package constants

import "time"

// Reserved client-frame msgIds (spec §6.1).
const (
	HeartBeatMsgID = "@Heart@Beat@"
	DebugMsgID     = "@Debug@"
	TimeoutMsgID   = "@Timeout@"
)

// Bootstrap defaults (spec §6.4).
const (
	DefaultIdleTimeout      = 30 * time.Second
	DefaultHeartBeatInterval = 10 * time.Second
	DefaultRequestTimeout   = 30 * time.Second
	DefaultSendHighWatermark = 1_000_000
	DefaultServerStale      = 10 * time.Second
	DefaultDiscoveryPeriod  = 3 * time.Second
	DefaultIOPoolSize       = 100
	DefaultClientOutboxHighWaterBytes = 64 * 1024
)

// DefaultAuthenticateMsgId is the msgId a Connected-state client-edge
// session accepts by default besides the heartbeat (spec sec 4.9.4); its
// first frame is translated into a JoinStageReq. Overridable per node
// via node.Builder.WithAuthenticateMsgId (spec sec 6.4 is silent on a
// name for this knob — see DESIGN.md Open Question decision).
const DefaultAuthenticateMsgId = "Authenticate"

// LZ4 compression threshold for server->client frames (spec §4.9.3).
const CompressionThresholdBytes = 256

// MaxClientBodySize is the hard cap on a client frame's bodySize field (spec §4.9.2).
const MaxClientBodySize = 2 * 1024 * 1024

// Agent/session status, mirrored from the teacher's connection lifecycle naming.
const (
	StatusStart  int32 = iota // socket accepted, not yet authenticated
	StatusWorking             // authenticated, joined a Stage
	StatusClosed              // torn down
)

// ServiceType distinguishes the two node kinds this spec names (spec §3.1).
type ServiceType uint8

const (
	ServiceTypePlay ServiceType = iota
	ServiceTypeAPI
)

func (t ServiceType) String() string {
	if t == ServiceTypeAPI {
		return "Api"
	}
	return "Play"
}

// ServerState is the heartbeat-refreshed liveness of a ServerInfo entry (spec §3.1).
type ServerState uint8

const (
	ServerRunning ServerState = iota
	ServerPause
	ServerDisable
)

func (s ServerState) String() string {
	switch s {
	case ServerRunning:
		return "Running"
	case ServerPause:
		return "Pause"
	default:
		return "Disable"
	}
}
