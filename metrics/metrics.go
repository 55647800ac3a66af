// Package metrics reports the same kind of operational gauges the
// teacher's agent.go pushes through its metrics.Reporter abstraction
// (ReportNumberOfConnectedClients, ChannelCapacity) — here backed
// directly by github.com/prometheus/client_golang, the one metrics
// backend this project carries (see DESIGN.md for the reporters the
// teacher used instead).
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// ConnectedClients is the number of live client-edge sessions, labeled
	// by the node's nid.
	ConnectedClients = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "playhouse",
		Name:      "connected_clients",
		Help:      "Number of currently connected client sessions.",
	}, []string{"nid"})

	// ChannelCapacity tracks free capacity in a bounded outbound channel
	// (agent outbound buffer, Stage post queue), labeled by channel name.
	ChannelCapacity = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "playhouse",
		Name:      "channel_capacity",
		Help:      "Remaining free capacity of a bounded internal channel.",
	}, []string{"channel"})

	// StageCount is the number of live Stages on a Play node.
	StageCount = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "playhouse",
		Name:      "stage_count",
		Help:      "Number of Stages currently hosted by this Play node.",
	}, []string{"nid"})

	// PendingRequests is the current size of a node's RequestCache.
	PendingRequests = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "playhouse",
		Name:      "pending_requests",
		Help:      "Number of outstanding requestToX calls awaiting a reply or timeout.",
	}, []string{"nid"})
)

func init() {
	prometheus.MustRegister(ConnectedClients, ChannelCapacity, StageCount, PendingRequests)
}

// ReportChannelCapacity is the direct analogue of the teacher's
// reportChannelSize helper in agent.go.
func ReportChannelCapacity(channel string, free int) {
	ChannelCapacity.WithLabelValues(channel).Set(float64(free))
}
