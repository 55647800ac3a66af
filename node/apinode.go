package node

import (
	"time"

	"github.com/ulala-x/playhouse/api"
	"github.com/ulala-x/playhouse/constants"
	"github.com/ulala-x/playhouse/discovery"
	"github.com/ulala-x/playhouse/logger"
	"github.com/ulala-x/playhouse/mesh"
	"github.com/ulala-x/playhouse/nid"
	"github.com/ulala-x/playhouse/requestcache"
	"github.com/ulala-x/playhouse/route"
	"github.com/ulala-x/playhouse/sender"
	"github.com/ulala-x/playhouse/serverinfo"
	"github.com/ulala-x/playhouse/system"
)

// ApiNode is a fully wired API node (spec sec 4.11, 6.4): mesh
// transport, discovery, the base and API sender facades, and the
// System/API Dispatchers. An API node never hosts a Stage and never
// accepts client sockets — Play nodes own both.
type ApiNode struct {
	opts Options
	self nid.NID

	transport *mesh.Transport
	registry  discovery.Registry
	center    *discovery.ServerInfoCenter
	manager   *discovery.Manager
	cache     *requestcache.RequestCache

	base    *sender.ISender
	apiDisp *api.Dispatcher
	sysDisp *system.Dispatcher
	entry   *dispatchEntry
}

// NewAPINode assembles an ApiNode from opts and registry, registering no
// handlers yet — call Register/RegisterSystem before Start.
func NewAPINode(opts Options, registry discovery.Registry) (*ApiNode, error) {
	self := nid.Of(opts.ServiceId, opts.ServerId)

	cache := requestcache.New(string(self), opts.RequestTimeout)
	center := discovery.NewServerInfoCenter()

	n := &ApiNode{
		opts:     opts,
		self:     self,
		registry: registry,
		center:   center,
		cache:    cache,
	}

	n.base = &sender.ISender{Self: self, Center: center, Cache: cache, Local: n.dispatchLocal}

	transport, err := mesh.New(self, opts.BindEndpoint, n.dispatchRemote)
	if err != nil {
		return nil, err
	}
	n.transport = transport
	n.base.Transport = transport

	n.manager = discovery.NewManager(serverinfo.ServerInfo{
		BindEndpoint: opts.BindEndpoint, Nid: self, ServiceId: opts.ServiceId,
		ServerId: opts.ServerId, ServiceType: constants.ServiceTypeAPI, State: constants.ServerRunning,
	}, registry, center, transport, opts.ServerStale)

	n.apiDisp = api.NewDispatcher(n.base)
	n.sysDisp = system.NewDispatcher(n.base)
	n.entry = newDispatchEntry(n.base, cache, n.sysDisp, nil, n.apiDisp, nil)
	n.base.Local = n.entry.Dispatch

	cache.Start(time.Second)
	n.manager.Start(opts.DiscoveryPeriod)

	return n, nil
}

// Register binds msgId to handler (spec sec 6.3 "API controller list").
func (n *ApiNode) Register(msgId string, handler api.Handler) {
	n.apiDisp.Register(msgId, handler)
}

// RegisterSystem binds a system (isSystem) msgId to handler (spec sec 6.3).
func (n *ApiNode) RegisterSystem(msgId string, handler system.Handler) {
	n.sysDisp.Register(msgId, handler)
}

func (n *ApiNode) dispatchLocal(pkt *route.RoutePacket) { n.entry.Dispatch(pkt) }

func (n *ApiNode) dispatchRemote(from nid.NID, pkt *route.RoutePacket) { n.entry.Dispatch(pkt) }

// Start logs node readiness. An API node has no listening edge of its
// own beyond the mesh router bound in NewAPINode.
func (n *ApiNode) Start() error {
	logger.Log.Infof("apinode: %s started (bind=%s)", n.self, n.opts.BindEndpoint)
	return nil
}

// Stop gracefully tears down the node (spec sec 5): stop discovery
// polling, fail all pending requests, close the mesh transport.
func (n *ApiNode) Stop() {
	n.manager.Stop()
	n.cache.Stop()
	_ = n.transport.Close()
	_ = n.registry.Close()
}
