package client

import (
	"context"
	"io"
	"net"
	"sync/atomic"
	"time"

	"github.com/ulala-x/playhouse/agent"
	"github.com/ulala-x/playhouse/constants"
	"github.com/ulala-x/playhouse/logger"
	"github.com/ulala-x/playhouse/nid"
	"github.com/ulala-x/playhouse/route"
)

// InboundHandler is how the bootstrap code wires a Session's decoded
// ClientPackets into the rest of the node (usually: translate to a
// RoutePacket via ToRouteHeader and Post it onto the owning Stage, or
// hand it to the API Dispatcher for a pre-JoinStage request).
type InboundHandler func(sid int64, pkt *route.ClientPacket)

// socket is the minimal contract both a raw net.Conn (TCP) and wsConn
// (WebSocket) satisfy: a byte stream ReadFrame can read from and
// agent.Conn can write to.
type socket interface {
	io.Reader
	io.Writer
	io.Closer
	RemoteAddr() net.Addr
}

// RateLimiter is the optional hook consulted before a decoded client
// frame is handed to the rest of the node (spec sec 6.3 "Rate-limit hook
// (optional): a predicate consulted before client frames are dispatched;
// returning false closes the session"). msgId is the frame's msgId; the
// heartbeat frame never reaches this hook since it is filtered out
// first.
type RateLimiter func(sid int64, msgId string) bool

// sessionState is the Connected->Authenticated->Closed machine spec sec
// 4.9.4 gates every inbound frame through: in Connected, only the
// configured authenticate msgId (or the heartbeat) is accepted; anything
// else closes the session outright.
type sessionState int32

const (
	sessionConnected sessionState = iota
	sessionAuthenticated
	sessionClosed
)

// Session binds one raw client socket (TCP or WebSocket) to an *agent.Agent
// outbound writer and a read loop that decodes frames and feeds
// InboundHandler (spec sec 4.9.4).
type Session struct {
	Sid     int64
	rawConn socket
	agent   *agent.Agent

	authenticateMsgId string
	state             int32 // atomic sessionState

	onInbound   InboundHandler
	onClose     func(sid int64)
	rateLimiter RateLimiter
}

// Bind finishes constructing the session: builds the outbound Agent and
// starts the read loop. Called once by node bootstrap right after
// accept, with the node's own nid (metrics label) and configured
// timeouts (spec sec 6.4). authenticateMsgId is the one msgId a
// Connected-state session accepts besides the heartbeat (spec sec
// 4.9.4); rateLimiter may be nil, meaning no limit.
func (s *Session) Bind(sid int64, self nid.NID, outboxSize int, heartbeatInterval, idleTimeout time.Duration, authenticateMsgId string, onInbound InboundHandler, onClose func(sid int64)) {
	s.BindWithRateLimiter(sid, self, outboxSize, heartbeatInterval, idleTimeout, authenticateMsgId, onInbound, onClose, nil)
}

// BindWithRateLimiter is Bind plus an optional rate-limit hook (spec sec
// 6.3).
func (s *Session) BindWithRateLimiter(sid int64, self nid.NID, outboxSize int, heartbeatInterval, idleTimeout time.Duration, authenticateMsgId string, onInbound InboundHandler, onClose func(sid int64), rateLimiter RateLimiter) {
	s.Sid = sid
	s.authenticateMsgId = authenticateMsgId
	s.onInbound = onInbound
	s.onClose = onClose
	s.rateLimiter = rateLimiter
	atomic.StoreInt32(&s.state, int32(sessionConnected))
	s.agent = agent.New(s.rawConn, string(self), outboxSize, heartbeatInterval, idleTimeout)
	s.agent.Serve()
	go s.readLoop()
}

// MarkAuthenticated transitions the session out of Connected once its
// synthesized JoinStageReq succeeds (spec sec 4.9.4), unlocking every
// other msgId. It also raises the agent's status to StatusWorking (spec
// sec 6.1 status naming).
func (s *Session) MarkAuthenticated() {
	atomic.StoreInt32(&s.state, int32(sessionAuthenticated))
	s.agent.SetStatus(constants.StatusWorking)
}

// IsAuthenticated reports whether this session has left the Connected
// state.
func (s *Session) IsAuthenticated() bool {
	return atomic.LoadInt32(&s.state) == int32(sessionAuthenticated)
}

func (s *Session) readLoop() {
	for {
		frame, err := ReadFrame(s.rawConn)
		if err != nil {
			if err != io.EOF {
				logger.Log.Debugf("client: session %d read error: %v", s.Sid, err)
			}
			s.closeAndNotify()
			return
		}
		s.agent.SetLastAt()

		if frame.MsgId == constants.HeartBeatMsgID {
			// Echoed straight back rather than merely dropped (spec sec
			// 4.9.5): the client's own heartbeat is itself evidence of
			// liveness, and the round trip lets the client measure RTT.
			if err := s.agent.PushFrame(agent.HeartbeatFrame()); err != nil {
				s.closeAndNotify()
				return
			}
			continue
		}

		connected := atomic.LoadInt32(&s.state) == int32(sessionConnected)
		if connected && frame.MsgId != s.authenticateMsgId {
			logger.Log.Warnf("client: session %d sent msgId=%s before authenticating, closing", s.Sid, frame.MsgId)
			s.closeAndNotify()
			return
		}

		if s.rateLimiter != nil && !s.rateLimiter(s.Sid, frame.MsgId) {
			logger.Log.Warnf("client: session %d exceeded rate limit on msgId=%s, closing", s.Sid, frame.MsgId)
			s.closeAndNotify()
			return
		}

		pkt := frame.ToClientPacket()
		if s.onInbound != nil {
			s.onInbound(s.Sid, pkt)
		}
	}
}

func (s *Session) closeAndNotify() {
	_ = s.agent.Close()
	if s.onClose != nil {
		s.onClose(s.Sid)
	}
}

// PushFrame implements the outbound side for a sender.StageSender.SendToClient
// call that resolves to this session.
func (s *Session) PushFrame(frame []byte) error {
	return s.agent.PushFrame(frame)
}

// PushOutbound encodes and pushes an application payload as a
// server->client frame, compressing it if warranted (spec sec 4.9.3).
func (s *Session) PushOutbound(ctx context.Context, msgId string, msgSeq uint16, stageId int64, errorCode constants.ErrorCode, body []byte) error {
	frame, err := EncodeOutbound(msgId, msgSeq, stageId, errorCode, body)
	if err != nil {
		return err
	}
	return s.PushFrame(frame)
}

// Close tears down the session's Agent and socket. The read loop's own
// error branch will observe the resulting I/O error and run onClose;
// callers that need onClose to fire synchronously should not rely on
// that and should arrange their own bookkeeping before calling Close.
func (s *Session) Close() error {
	if s.agent == nil {
		return s.rawConn.Close()
	}
	return s.agent.Close()
}
