package node

import (
	"context"

	"github.com/ulala-x/playhouse/api"
	"github.com/ulala-x/playhouse/constants"
	pcontext "github.com/ulala-x/playhouse/context"
	"github.com/ulala-x/playhouse/logger"
	"github.com/ulala-x/playhouse/requestcache"
	"github.com/ulala-x/playhouse/route"
	"github.com/ulala-x/playhouse/sender"
	"github.com/ulala-x/playhouse/stage"
	"github.com/ulala-x/playhouse/system"
)

// dispatchEntry is the single point every inbound mesh packet (and every
// locally self-addressed send) passes through (spec sec 4.10): replies
// to outstanding requests go to the RequestCache, isSystem packets to
// the System Dispatcher, client-targeted pushes to the owning session,
// CreateStageReq/GetOrCreateStageReq to dispatchCreate, Play-targeted
// packets (carrying a stageId) to the PlayDispatcher, everything else to
// the API Dispatcher.
type dispatchEntry struct {
	base     *sender.ISender
	cache    *requestcache.RequestCache
	system   *system.Dispatcher
	play     *stage.PlayDispatcher
	apiDisp  *api.Dispatcher
	sessions *sessionTable
}

func newDispatchEntry(base *sender.ISender, cache *requestcache.RequestCache, sys *system.Dispatcher, play *stage.PlayDispatcher, apiDisp *api.Dispatcher, sessions *sessionTable) *dispatchEntry {
	return &dispatchEntry{base: base, cache: cache, system: sys, play: play, apiDisp: apiDisp, sessions: sessions}
}

// dispatchCreate handles CreateStageReq/GetOrCreateStageReq (spec sec
// 4.6.2), which unlike every other Play-targeted packet must be routed
// before a Stage exists to post it into. The reply carries its own
// dedicated msgId (CreateStageRes/GetOrCreateStageRes) plus the
// isCreated signal (spec sec 4.5.2), rather than echoing the request's
// own msgId back via the generic Reply.
func (e *dispatchEntry) dispatchCreate(pkt *route.RoutePacket) {
	ctx := pcontext.WithCurrentHeader(context.Background(), &pkt.Header)

	var payload route.Payload
	var code constants.ErrorCode
	var resMsgId string
	var isCreated bool
	if pkt.Header.MsgId == route.MsgCreateStage {
		resMsgId = route.MsgCreateStageRes
		payload, code = e.play.CreateStage(ctx, pkt.Header.StageId, pkt.Header.StageType, pkt)
		isCreated = code == constants.Success
	} else {
		resMsgId = route.MsgGetOrCreateStageRes
		payload, code, isCreated = e.play.GetOrCreateStage(ctx, pkt.Header.StageId, pkt.Header.StageType, pkt)
	}
	if pkt.Header.MsgSeq != 0 {
		e.base.ReplyCreateStage(ctx, resMsgId, code, &payload, isCreated)
	}
}

// Dispatch implements sender.Dispatch and is also the Mesh Transport's
// receive handler (spec sec 4.10).
func (e *dispatchEntry) Dispatch(pkt *route.RoutePacket) {
	h := &pkt.Header

	if h.IsBackend && h.IsReply {
		e.cache.OnReply(pkt)
		return
	}

	if h.IsSystem {
		ctx := pcontext.WithCurrentHeader(context.Background(), &pkt.Header)
		e.system.Dispatch(ctx, pkt)
		return
	}

	if h.IsToClient {
		if e.sessions == nil {
			logger.Log.Warnf("dispatch: client-targeted packet on a node with no client edge, sid=%d", h.Sid)
			return
		}
		sess, ok := e.sessions.get(h.Sid)
		if !ok {
			logger.Log.Debugf("dispatch: client-targeted packet for unknown sid=%d, dropping", h.Sid)
			return
		}
		if err := sess.PushFrame(pkt.Payload.Bytes()); err != nil {
			logger.Log.Debugf("dispatch: push to sid=%d failed: %v", h.Sid, err)
		}
		return
	}

	if h.MsgId == route.MsgCreateStage || h.MsgId == route.MsgGetOrCreateStage {
		if e.play == nil {
			logger.Log.Warnf("dispatch: stage-create packet on a non-Play node, msgId=%s", h.MsgId)
			return
		}
		e.dispatchCreate(pkt)
		return
	}

	if h.StageId != 0 {
		if e.play == nil {
			logger.Log.Warnf("dispatch: play-targeted packet on a non-Play node, msgId=%s", h.MsgId)
			return
		}
		if code := e.play.Dispatch(pkt); code != constants.Success {
			logger.Log.Debugf("dispatch: play dispatch for stageId=%d: %s", h.StageId, code)
		}
		return
	}

	if e.apiDisp == nil {
		logger.Log.Warnf("dispatch: api-targeted packet on a node with no API Dispatcher, msgId=%s", h.MsgId)
		return
	}
	ctx := pcontext.WithCurrentHeader(context.Background(), &pkt.Header)
	e.apiDisp.Dispatch(ctx, pkt)
}
