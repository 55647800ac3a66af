package node

import (
	"fmt"
	"time"

	"github.com/ulala-x/playhouse/client"
	"github.com/ulala-x/playhouse/constants"
	"github.com/ulala-x/playhouse/discovery"
	"github.com/ulala-x/playhouse/logger"
	"github.com/ulala-x/playhouse/mesh"
	"github.com/ulala-x/playhouse/nid"
	"github.com/ulala-x/playhouse/offload"
	"github.com/ulala-x/playhouse/requestcache"
	"github.com/ulala-x/playhouse/route"
	"github.com/ulala-x/playhouse/sender"
	"github.com/ulala-x/playhouse/serverinfo"
	"github.com/ulala-x/playhouse/stage"
	"github.com/ulala-x/playhouse/stageid"
	"github.com/ulala-x/playhouse/system"
	"github.com/ulala-x/playhouse/timer"
)

// PlayNode is a fully wired Play node (spec sec 4, 5): mesh transport,
// discovery, the four sender facades, Timer/Offload Services, the
// PlayDispatcher, and (if configured) the client TCP/WebSocket edges.
type PlayNode struct {
	opts Options
	self nid.NID

	transport *mesh.Transport
	registry  discovery.Registry
	center    *discovery.ServerInfoCenter
	manager   *discovery.Manager
	cache     *requestcache.RequestCache

	base    *sender.ISender
	timers  *timer.Service
	async   *offload.Service
	play    *stage.PlayDispatcher
	sysDisp *system.Dispatcher
	entry   *dispatchEntry

	stageIds *stageid.Generator

	tcp *client.TCPServer
	ws  *client.WSServer

	sessions *sessionTable
}

// NewPlayNode assembles a PlayNode from opts and registry, registering
// no Stage types yet — call Register before Start.
func NewPlayNode(opts Options, registry discovery.Registry) (*PlayNode, error) {
	self := nid.Of(opts.ServiceId, opts.ServerId)

	gen, err := stageid.NewGenerator(opts.ServerId)
	if err != nil {
		return nil, fmt.Errorf("node: %w", err)
	}

	cache := requestcache.New(string(self), opts.RequestTimeout)
	center := discovery.NewServerInfoCenter()

	n := &PlayNode{
		opts:     opts,
		self:     self,
		registry: registry,
		center:   center,
		cache:    cache,
		stageIds: gen,
		sessions: newSessionTable(),
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
		ServerId: opts.ServerId, ServiceType: constants.ServiceTypePlay, State: constants.ServerRunning,
	}, registry, center, transport, opts.ServerStale)

	// timers/async close over n.play rather than taking it as a
	// constructor argument: PlayDispatcher itself needs both services at
	// construction time, so the lookup closures are bound to n first and
	// resolve n.play lazily at call time, once it exists.
	n.timers = timer.NewService(func(stageId int64) (timer.StagePoster, bool) { return n.play.Get(stageId) })
	n.async = offload.NewService(opts.IOPoolSize, func(stageId int64) (offload.StagePoster, bool) { return n.play.Get(stageId) })
	n.play = stage.NewPlayDispatcher(string(self), opts.StageQueueSize, n.base, n.timers, n.async)

	n.sysDisp = system.NewDispatcher(n.base)
	n.entry = newDispatchEntry(n.base, cache, n.sysDisp, n.play, nil, n.sessions)
	n.base.Local = n.entry.Dispatch

	cache.Start(time.Second)
	n.manager.Start(opts.DiscoveryPeriod)

	return n, nil
}

// Register binds stageType to factory (spec sec 4.6.2, 6.3 "Stage
// factory map").
func (n *PlayNode) Register(stageType string, factory stage.Factory) {
	n.play.Register(stageType, factory)
}

// RegisterSystem binds a system (isSystem) msgId to handler (spec sec 6.3).
func (n *PlayNode) RegisterSystem(msgId string, handler system.Handler) {
	n.sysDisp.Register(msgId, handler)
}

// NextStageId allocates a new StageId for this node (spec sec 3.1).
func (n *PlayNode) NextStageId() (int64, error) { return n.stageIds.Next() }

// dispatchLocal is the Local hook wired into n.base (ISender.deliver):
// a "remote" send whose target happens to equal this node's own nid is
// delivered directly (spec sec 4.5).
func (n *PlayNode) dispatchLocal(pkt *route.RoutePacket) { n.entry.Dispatch(pkt) }

// dispatchRemote is the Mesh Transport's receive handler.
func (n *PlayNode) dispatchRemote(from nid.NID, pkt *route.RoutePacket) { n.entry.Dispatch(pkt) }

// Start launches the client TCP/WebSocket edges, if configured (spec
// sec 4.9.1, 6.4).
func (n *PlayNode) Start() error {
	if n.opts.ClientTcpEndpoint != "" {
		tcp, err := client.ListenTCP(n.opts.ClientTcpEndpoint, n.onAcceptSession)
		if err != nil {
			return err
		}
		n.tcp = tcp
	}
	if n.opts.ClientWsEndpoint != "" {
		ws, err := client.ListenWS(n.opts.ClientWsEndpoint, "/ws", n.onAcceptSession)
		if err != nil {
			return err
		}
		n.ws = ws
	}
	logger.Log.Infof("playnode: %s started (tcp=%s ws=%s)", n.self, n.opts.ClientTcpEndpoint, n.opts.ClientWsEndpoint)
	return nil
}

func (n *PlayNode) onAcceptSession(s *client.Session) {
	sid := n.sessions.nextSid()
	n.sessions.put(sid, s)
	s.BindWithRateLimiter(sid, n.self, n.opts.ClientOutboxSize, n.opts.HeartBeatInterval, n.opts.IdleTimeout,
		n.opts.AuthenticateMsgId,
		func(sid int64, pkt *route.ClientPacket) { n.onInboundFrame(sid, s, pkt) },
		func(sid int64) { n.onSessionClosed(sid) },
		n.opts.RateLimiter,
	)
}

// onInboundFrame routes a decoded client frame (spec sec 4.9.4): a
// not-yet-joined session's first frame is synthesized into a
// JoinStageReq/ReconnectNotice rather than posted straight to the Stage,
// since the Stage is what actually knows whether this is a fresh join or
// a resume (route.SplitResumeAccountId). Everything after that goes
// straight through, now carrying the accountId the join bound.
func (n *PlayNode) onInboundFrame(sid int64, s *client.Session, pkt *route.ClientPacket) {
	if !s.IsAuthenticated() {
		n.handleAuthenticate(sid, s, pkt)
		return
	}
	_, accountId, _ := n.sessions.meta(sid)
	h := pkt.ToRouteHeader(uint32(n.opts.ServiceId))
	rh := route.RouteHeader{Header: h, Sid: sid, AccountId: accountId}
	n.entry.Dispatch(&route.RoutePacket{Header: rh, Payload: route.NewPayload(pkt.Payload)})
}

// handleAuthenticate synthesizes the JoinStageReq for a session's first
// accepted frame (spec sec 4.8.2, 4.9.4) and, once the Stage resolves it
// (fresh join or resumed reconnect, route.SplitResumeAccountId), unlocks
// the session and pushes the JoinStageRes frame the client is waiting on.
// A failure closes the session outright: there is no half-joined state.
func (n *PlayNode) handleAuthenticate(sid int64, s *client.Session, pkt *route.ClientPacket) {
	stageId := pkt.StageId
	n.base.RequestJoinStage(n.self, stageId, sid, route.NewPayload(pkt.Payload), n.opts.RequestTimeout,
		func(code constants.ErrorCode, reply *route.RoutePacket) {
			var body []byte
			if code == constants.Success && reply != nil {
				accountId, _ := route.DecodeAccountId(reply.Payload.Bytes())
				n.sessions.markJoined(sid, stageId, accountId)
				s.MarkAuthenticated()
			}
			out, err := client.EncodeOutbound(route.MsgJoinStageRes, pkt.MsgSeq, stageId, code, body)
			if err != nil {
				logger.Log.Errorf("playnode: encoding JoinStageRes for sid=%d failed: %v", sid, err)
				return
			}
			if err := s.PushFrame(out); err != nil {
				logger.Log.Debugf("playnode: pushing JoinStageRes to sid=%d failed: %v", sid, err)
				return
			}
			if code != constants.Success {
				_ = s.Close()
			}
		},
	)
}

// onSessionClosed routes a DisconnectNotice to the Stage a session had
// joined, if any (spec sec 4.8.4, 4.9.5 "idle-close/onClose must not
// silently drop a joined actor's connected flag").
func (n *PlayNode) onSessionClosed(sid int64) {
	stageId, accountId, joined := n.sessions.meta(sid)
	n.sessions.remove(sid)
	if joined {
		n.base.NotifyDisconnect(n.self, stageId, accountId)
	}
}

// Stop gracefully tears down the node (spec sec 5): stop accepting new
// client sockets, stop discovery polling, fail all pending requests,
// close the mesh transport.
func (n *PlayNode) Stop() {
	if n.tcp != nil {
		_ = n.tcp.Close()
	}
	if n.ws != nil {
		_ = n.ws.Close()
	}
	n.manager.Stop()
	n.cache.Stop()
	_ = n.transport.Close()
	_ = n.registry.Close()
}
