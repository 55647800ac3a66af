// Package sender implements the four sender facades (spec sec 4.5):
// ISender (base reply/send/request operations shared everywhere),
// IApiSender (stage lifecycle requests available to API handlers),
// IStageSender (timer/offload/client-push operations available inside a
// Stage), and IActorSender (the per-actor view layered on IStageSender).
package sender

import (
	"context"
	"time"

	pcontext "github.com/ulala-x/playhouse/context"
	"github.com/ulala-x/playhouse/constants"
	"github.com/ulala-x/playhouse/discovery"
	"github.com/ulala-x/playhouse/logger"
	"github.com/ulala-x/playhouse/mesh"
	"github.com/ulala-x/playhouse/nid"
	"github.com/ulala-x/playhouse/requestcache"
	"github.com/ulala-x/playhouse/route"
)

// Dispatch is the minimal local-delivery hook senders use when the
// target server info resolves to this very node (spec sec 4.5: "sends
// addressed to self are delivered directly, never looped through the
// transport").
type Dispatch func(pkt *route.RoutePacket)

// ISender is the base facade every dispatch context is handed (spec sec
// 4.5). currentHeader is read from the context.Context the caller is
// invoked with, never from a process-global, so concurrent Stages never
// cross-contaminate each other's "current request" state.
type ISender struct {
	Self     nid.NID
	Center   *discovery.ServerInfoCenter
	Transport *mesh.Transport
	Cache    *requestcache.RequestCache
	Local    Dispatch
}

// currentHeader reads the RouteHeader the running turn was invoked
// with, bound into ctx by the Stage/API dispatch loop at the start of
// the turn (spec sec 4.5 "reply/sendTo* always address relative to the
// header currently in scope").
func (s *ISender) currentHeader(ctx context.Context) *route.RouteHeader {
	h := pcontext.CurrentHeader(ctx)
	rh, _ := h.(*route.RouteHeader)
	return rh
}

func (s *ISender) deliver(target nid.NID, pkt *route.RoutePacket) {
	if target == s.Self {
		// A real mesh hop always fills in From from the ZeroMQ identity
		// frame (mesh.Transport.receiveLoop); a self-addressed send must
		// do the same so a reply/SendToClient built from this packet's
		// header can still address back to the node that sent it, even
		// though it never touched the transport (spec sec 4.1, 9).
		pkt.Header.From = string(s.Self)
		s.Local(pkt)
		return
	}
	if err := s.Transport.Send(target, pkt); err != nil {
		logger.Log.Errorf("sender: send to %s failed: %v", target, err)
	}
}

// Reply sends errorCode/payload back to the requester of the packet
// currently in scope (spec sec 4.5 "reply").
func (s *ISender) Reply(ctx context.Context, errorCode constants.ErrorCode, payload *route.Payload) {
	src := s.currentHeader(ctx)
	if src == nil {
		logger.Log.Warnf("sender: reply called with no current header in scope")
		return
	}
	pkt := route.ReplyOf(uint32(src.ServiceId), src, errorCode, payload)
	target := nid.NID(src.From)
	s.deliver(target, pkt)
}

// ReplyCreateStage replies to a CreateStageReq/GetOrCreateStageReq with
// its own dedicated msgId (CreateStageRes/GetOrCreateStageRes) and the
// isCreated signal (spec sec 4.5.2, 4.6.2), rather than going through
// the generic Reply, which would echo the request's own msgId back
// unchanged.
func (s *ISender) ReplyCreateStage(ctx context.Context, resMsgId string, errorCode constants.ErrorCode, payload *route.Payload, isCreated bool) {
	src := s.currentHeader(ctx)
	if src == nil {
		logger.Log.Warnf("sender: replyCreateStage called with no current header in scope")
		return
	}
	pkt := route.ReplyOf(uint32(src.ServiceId), src, errorCode, payload)
	pkt.Header.MsgId = resMsgId
	pkt.Header.IsCreated = isCreated
	target := nid.NID(src.From)
	s.deliver(target, pkt)
}

// SendToApi fire-and-forgets pkt to one instance of an API node,
// selected round-robin (spec sec 4.5 "sendToApi").
func (s *ISender) SendToApi(serviceId uint16, msgId string, payload route.Payload) {
	info, ok := s.Center.GetServerInfoBy(serviceId)
	if !ok {
		logger.Log.Warnf("sender: sendToApi: no Running server for serviceId=%d", serviceId)
		return
	}
	pkt := route.ApiOf(msgId, payload, false, false)
	s.deliver(info.Nid, pkt)
}

// SendToStage fire-and-forgets pkt to stageId, routed through the Play
// node that owns it (spec sec 4.5 "sendToStage"). nodeNid identifies
// which Play node owns stageId; the caller obtains this from a prior
// CreateStageRes/GetOrCreateStageRes.
func (s *ISender) SendToStage(nodeNid nid.NID, stageId int64, accountId int64, msgId string, payload route.Payload) {
	pkt := route.StageOf(stageId, accountId, msgId, payload, false, false)
	s.deliver(nodeNid, pkt)
}

// SendToSystem fire-and-forgets a system (isSystem=true) packet to target.
func (s *ISender) SendToSystem(target nid.NID, msgId string, payload route.Payload) {
	pkt := route.Of(msgId, payload)
	pkt.Header.IsSystem = true
	s.deliver(target, pkt)
}

// RequestToApi sends pkt to one API instance and resolves onComplete
// exactly once, with the reply or with RequestTimeout/ShuttingDown (spec
// sec 4.4, 4.5 "requestToApi").
func (s *ISender) RequestToApi(serviceId uint16, msgId string, payload route.Payload, timeout time.Duration, onComplete func(constants.ErrorCode, *route.RoutePacket)) {
	info, ok := s.Center.GetServerInfoBy(serviceId)
	if !ok {
		onComplete(constants.NoServer, nil)
		return
	}
	s.request(info.Nid, route.ApiOf(msgId, payload, false, true), timeout, onComplete)
}

// RequestToStage sends pkt to the Play node owning stageId and resolves
// onComplete exactly once (spec sec 4.4, 4.5 "requestToStage").
func (s *ISender) RequestToStage(nodeNid nid.NID, stageId int64, accountId int64, msgId string, payload route.Payload, timeout time.Duration, onComplete func(constants.ErrorCode, *route.RoutePacket)) {
	s.request(nodeNid, route.StageOf(stageId, accountId, msgId, payload, false, true), timeout, onComplete)
}

// RequestToSystem sends an isSystem request and resolves onComplete exactly once.
func (s *ISender) RequestToSystem(target nid.NID, msgId string, payload route.Payload, timeout time.Duration, onComplete func(constants.ErrorCode, *route.RoutePacket)) {
	pkt := route.Of(msgId, payload)
	pkt.Header.IsSystem = true
	pkt.Header.IsBackend = true
	s.request(target, pkt, timeout, onComplete)
}

// RequestJoinStage synthesizes a JoinStageReq for sid's first
// authenticate frame and resolves onComplete exactly once with the
// Stage's JoinStageRes/AuthenticationFailed/JoinStageFailed (spec sec
// 4.8.2, 4.9.4). nodeNid is always this node's own nid today: the client
// edge only ever targets the Stage hosted on the Play node the client
// itself connected to.
func (s *ISender) RequestJoinStage(nodeNid nid.NID, stageId int64, sid int64, payload route.Payload, timeout time.Duration, onComplete func(constants.ErrorCode, *route.RoutePacket)) {
	s.request(nodeNid, route.JoinStageOf(stageId, sid, payload), timeout, onComplete)
}

// RequestReconnect synthesizes a ReconnectNotice for an accountId
// already joined on stageId (spec sec 4.8.3), for a host application
// that resolves a resume request out of band (e.g. an API node) and
// wants to rebind the session without going through the client-edge
// authenticate path.
func (s *ISender) RequestReconnect(nodeNid nid.NID, stageId, accountId, sid int64, authPayload route.Payload, timeout time.Duration, onComplete func(constants.ErrorCode, *route.RoutePacket)) {
	s.request(nodeNid, route.ReconnectOf(stageId, accountId, sid, authPayload), timeout, onComplete)
}

// NotifyDisconnect fire-and-forgets a DisconnectNotice for accountId on
// stageId (spec sec 4.8.4, 4.9.5): the actor stays joined, only its
// connected flag flips, so the client edge routes this instead of a
// LeaveStage whenever a socket is lost without an explicit leave.
func (s *ISender) NotifyDisconnect(nodeNid nid.NID, stageId int64, accountId int64) {
	pkt := route.StageOf(stageId, accountId, route.MsgDisconnectNotice, route.EmptyPayload(), true, false)
	s.deliver(nodeNid, pkt)
}

func (s *ISender) request(target nid.NID, pkt *route.RoutePacket, timeout time.Duration, onComplete func(constants.ErrorCode, *route.RoutePacket)) {
	if timeout <= 0 {
		timeout = s.Cache.DefaultTimeout()
	}
	seq := s.Cache.NextSeq()
	pkt.Header.MsgSeq = seq
	pkt.Header.ServiceId = uint32(s.Self.ServiceId())

	s.Cache.Put(seq, requestcache.NewPendingReply(time.Now().Add(timeout), onComplete))
	s.deliver(target, pkt)
}
