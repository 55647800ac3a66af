// Package stage implements the Stage runtime (spec sec 4.6): a
// single-consumer event loop per game room/match, a FIFO post queue
// feeding it, and the PlayDispatcher that routes inbound RoutePackets to
// the right Stage by stageId.
package stage

import (
	"context"
	stderrors "errors"
	"sync"
	"sync/atomic"

	"github.com/ulala-x/playhouse/actor"
	"github.com/ulala-x/playhouse/constants"
	pcontext "github.com/ulala-x/playhouse/context"
	"github.com/ulala-x/playhouse/errors"
	"github.com/ulala-x/playhouse/logger"
	"github.com/ulala-x/playhouse/nid"
	"github.com/ulala-x/playhouse/route"
	"github.com/ulala-x/playhouse/sender"
)

// IStage is the user-supplied logic bound to one Stage instance (spec
// sec 4.6.1, 4.8.2). onDispatch is called once per turn; which overload
// fires is decided by Stage.dispatch per spec sec 4.6.3's routing
// algorithm.
type IStage interface {
	OnCreate(ctx context.Context, pkt *route.RoutePacket) (route.Payload, error)
	OnDispatch(ctx context.Context, pkt *route.RoutePacket)
	OnDispatchActor(ctx context.Context, a *actor.Actor, pkt *route.RoutePacket)
	OnDestroy(ctx context.Context)

	// NewActor builds the per-player IActor for a freshly joining
	// accountId (spec sec 4.8.2 step 2, "the Stage's Actor factory"). as
	// is the actor's own sender, already carrying Sid/SessionNid, so
	// OnCreate/OnAuthenticate can reach it (e.g. to stash it for later
	// use, or to set AccountId from OnAuthenticate) without waiting for
	// actor.New's return value.
	NewActor(ctx context.Context, as *sender.ActorSender) actor.IActor
	OnJoinStage(ctx context.Context, a *actor.Actor) bool
	OnPostJoinStage(ctx context.Context, a *actor.Actor)
	OnConnectionChanged(ctx context.Context, a *actor.Actor, connected bool)
}

// Stage is one running game-room instance: a FIFO post queue drained by
// exactly one goroutine at a time (spec sec 4.6.1 "single-consumer
// discipline"), enforced with a CAS running flag rather than a mutex so
// Post from any goroutine never blocks waiting for the consumer.
type Stage struct {
	StageId   int64
	StageType string
	impl      IStage
	base      *sender.ISender
	timers    sender.TimerPoster
	async     sender.AsyncOffloader
	closer    sender.StageCloser

	queue   chan *route.RoutePacket
	running int32 // 0 idle, 1 a goroutine owns the queue

	closed int32

	actorsMu sync.RWMutex
	actors   map[int64]*actor.Actor
}

// New builds a Stage bound to impl, with a post queue sized queueSize.
// base/timers/async/closer are the shared node-level services this
// Stage's turns reach out through (spec sec 4.5).
func New(stageId int64, stageType string, impl IStage, queueSize int, base *sender.ISender, timers sender.TimerPoster, async sender.AsyncOffloader, closer sender.StageCloser) *Stage {
	if queueSize <= 0 {
		queueSize = 1024
	}
	return &Stage{
		StageId:   stageId,
		StageType: stageType,
		impl:      impl,
		base:      base,
		timers:    timers,
		async:     async,
		closer:    closer,
		queue:     make(chan *route.RoutePacket, queueSize),
		actors:    make(map[int64]*actor.Actor),
	}
}

// stageSender builds this Stage's IStageSender.
func (s *Stage) stageSender() *sender.StageSender {
	return &sender.StageSender{ISender: s.base, StageId: s.StageId, Timers: s.timers, Async: s.async, Closer: s.closer}
}

// Post enqueues pkt for this Stage's turn loop. Never blocks the caller
// on user code: if the post queue itself is full, Post blocks only on
// channel backpressure, never on a running turn (spec sec 4.6.1).
func (s *Stage) Post(pkt *route.RoutePacket) {
	if atomic.LoadInt32(&s.closed) == 1 {
		logger.Log.Debugf("stage: post to destroyed stage %d dropped", s.StageId)
		return
	}
	s.queue <- pkt
	s.pump()
}

// pump starts a consumer goroutine iff one is not already running,
// using a CAS so at most one goroutine ever drains the queue (spec sec
// 4.6.1: "a Stage processes exactly one packet at a time").
func (s *Stage) pump() {
	if !atomic.CompareAndSwapInt32(&s.running, 0, 1) {
		return
	}
	go s.drain()
}

func (s *Stage) drain() {
	for {
		select {
		case pkt := <-s.queue:
			s.runTurn(pkt)
		default:
			atomic.StoreInt32(&s.running, 0)
			// Re-check: a Post between the channel read failing and the
			// flag clearing must not be left stranded in the queue with
			// no consumer. The flag is reclaimed before any packet is
			// taken, so a packet is never put back behind later ones.
			if len(s.queue) == 0 || !atomic.CompareAndSwapInt32(&s.running, 0, 1) {
				return
			}
		}
	}
}

func (s *Stage) runTurn(pkt *route.RoutePacket) {
	ctx := pcontext.WithCurrentHeader(context.Background(), &pkt.Header)

	defer func() {
		if r := recover(); r != nil {
			logger.Log.Errorf("stage %d: turn panicked on msgId=%s: %v", s.StageId, pkt.Header.MsgId, r)
			if pkt.Header.MsgSeq != 0 {
				code := constants.UncheckedContentsError
				if err, ok := r.(error); ok {
					var pe *errors.Error
					if stderrors.As(err, &pe) {
						code = pe.Code
					}
				}
				s.base.Reply(ctx, code, nil)
			}
		}
	}()

	if constants.Debug && constants.LogCanPrint(pkt.Header.MsgId) {
		logger.Log.Debugf("stage %d: turn msgId=%s accountId=%d", s.StageId, pkt.Header.MsgId, pkt.Header.AccountId)
	}

	s.dispatch(ctx, pkt)
}

// dispatch implements the routing algorithm (spec sec 4.6.3): base
// framework commands first, then actor-scoped dispatch if accountId is
// non-zero, else the Stage-wide dispatch.
func (s *Stage) dispatch(ctx context.Context, pkt *route.RoutePacket) {
	if pkt.Header.IsBase {
		s.dispatchBase(ctx, pkt)
		return
	}
	if pkt.Header.AccountId != 0 {
		a, ok := s.getActor(pkt.Header.AccountId)
		if !ok {
			logger.Log.Warnf("stage %d: dispatch for unknown accountId=%d", s.StageId, pkt.Header.AccountId)
			return
		}
		s.impl.OnDispatchActor(ctx, a, pkt)
		return
	}
	s.impl.OnDispatch(ctx, pkt)
}

func (s *Stage) dispatchBase(ctx context.Context, pkt *route.RoutePacket) {
	switch pkt.Header.MsgId {
	case route.MsgTimerFire:
		if cmd, ok := pkt.Internal.(route.TimerCommand); ok && cmd.Callback != nil {
			cmd.Callback()
		}
	case route.MsgAsyncPostBack:
		if cmd, ok := pkt.Internal.(route.AsyncPostCommand); ok && cmd.Post != nil {
			cmd.Post(cmd.PreResult, cmd.PreErr)
		}
	case route.MsgJoinStage:
		s.handleJoinStage(ctx, pkt)
	case route.MsgReconnectNotice:
		s.handleReconnect(ctx, pkt)
	case route.MsgDisconnectNotice:
		s.handleDisconnect(ctx, pkt)
	case "__LeaveStage":
		if cmd, ok := pkt.Internal.(leaveCommand); ok {
			s.doLeave(ctx, cmd.accountId)
		}
	default:
		s.impl.OnDispatch(ctx, pkt)
	}
}

func (s *Stage) getActor(accountId int64) (*actor.Actor, bool) {
	s.actorsMu.RLock()
	defer s.actorsMu.RUnlock()
	a, ok := s.actors[accountId]
	return a, ok
}

// handleJoinStage runs the ten-step authenticate-join sequence (spec sec
// 4.8.2) and replies JoinStageRes/AuthenticationFailed/JoinStageFailed.
//
// The client edge always synthesizes a JoinStageReq for the first
// authenticate frame on a socket (spec sec 4.9.4), whether the player is
// joining fresh or resuming a session that dropped without leaving. The
// payload's leading accountId prefix (route.SplitResumeAccountId, spec
// sec 4.8.3 "Open Question: reconnect detection") tells this handler
// which case it is: a nonzero prefix naming an accountId still present
// in s.actors is a reconnect and reuses actor.Reconnect instead of
// running OnCreate/OnJoinStage again.
func (s *Stage) handleJoinStage(ctx context.Context, pkt *route.RoutePacket) {
	resumeAccountId, authPayload := route.SplitResumeAccountId(pkt.Payload)

	if resumeAccountId != 0 {
		if a, ok := s.getActor(resumeAccountId); ok {
			a.Sender.SessionNid = nid.NID(pkt.Header.From)
			actor.Reconnect(ctx, a, pkt.Header.Sid, authPayload, s.impl.OnConnectionChanged)
			s.base.Reply(ctx, constants.Success, payloadPtr(route.NewPayload(route.EncodeAccountId(resumeAccountId))))
			return
		}
	}

	as := &sender.ActorSender{StageSender: s.stageSender(), Sid: pkt.Header.Sid, SessionNid: nid.NID(pkt.Header.From)}
	a := actor.New(s.impl.NewActor(ctx, as), as)

	result := actor.Join(ctx, a, authPayload, joinHook{s: s})
	switch result {
	case actor.JoinAuthenticationFailed:
		s.base.Reply(ctx, constants.AuthenticationFailed, nil)
		return
	case actor.JoinStageRejected:
		s.base.Reply(ctx, constants.JoinStageFailed, nil)
		return
	}

	s.actorsMu.Lock()
	s.actors[as.AccountId] = a
	s.actorsMu.Unlock()

	s.base.Reply(ctx, constants.Success, payloadPtr(route.NewPayload(route.EncodeAccountId(as.AccountId))))
}

func payloadPtr(p route.Payload) *route.Payload { return &p }

type joinHook struct{ s *Stage }

func (h joinHook) OnJoinStage(ctx context.Context, a *actor.Actor) bool {
	return h.s.impl.OnJoinStage(ctx, a)
}
func (h joinHook) OnPostJoinStage(ctx context.Context, a *actor.Actor) {
	h.s.impl.OnPostJoinStage(ctx, a)
}

// handleReconnect applies spec sec 4.8.3: rebinds an existing Actor's
// session coordinates and re-runs only step 4 of authenticate. This is
// the path a host application takes to migrate an already-joined
// accountId onto a new sid out of band (sender.ISender.RequestReconnect)
// — the client-edge authenticate flow instead goes through
// handleJoinStage's own resumeAccountId branch, which reuses this same
// actor.Reconnect call.
func (s *Stage) handleReconnect(ctx context.Context, pkt *route.RoutePacket) {
	a, ok := s.getActor(pkt.Header.AccountId)
	if !ok {
		logger.Log.Warnf("stage %d: reconnect for unknown accountId=%d", s.StageId, pkt.Header.AccountId)
		return
	}
	a.Sender.SessionNid = nid.NID(pkt.Header.From)
	actor.Reconnect(ctx, a, pkt.Header.Sid, pkt.Payload, s.impl.OnConnectionChanged)
	s.base.Reply(ctx, constants.Success, nil)
}

// handleDisconnect applies spec sec 4.8.4: the Actor stays in
// stage.actors, only its connected flag flips.
func (s *Stage) handleDisconnect(ctx context.Context, pkt *route.RoutePacket) {
	a, ok := s.getActor(pkt.Header.AccountId)
	if !ok {
		return
	}
	actor.Disconnect(ctx, a, s.impl.OnConnectionChanged)
}

// LeaveStage implements sender.LeaveStageHandler (spec sec 4.8.5): it is
// invoked asynchronously by posting a removal onto this Stage's own
// queue so the actual map mutation still runs serialized with every
// other turn.
func (s *Stage) LeaveStage(stageId int64, accountId int64) {
	s.Post(&route.RoutePacket{
		Header:   route.RouteHeader{Header: route.Header{MsgId: "__LeaveStage", StageId: stageId}, IsBase: true, AccountId: accountId},
		Internal: leaveCommand{accountId: accountId},
	})
}

type leaveCommand struct{ accountId int64 }

// doLeave implements spec sec 4.8.5 step 1 (map removal) plus steps 2-3
// via actor.Leave.
func (s *Stage) doLeave(ctx context.Context, accountId int64) {
	s.actorsMu.Lock()
	a, ok := s.actors[accountId]
	delete(s.actors, accountId)
	s.actorsMu.Unlock()
	if !ok {
		return
	}
	actor.Leave(ctx, a)
}

// Destroy cancels every timer this Stage still owns, runs OnDestroy, and
// marks the Stage closed so further Posts are dropped (spec sec 4.6.4,
// 4.7.1).
func (s *Stage) Destroy(ctx context.Context) {
	atomic.StoreInt32(&s.closed, 1)
	if s.timers != nil {
		s.timers.CancelAll(s.StageId)
	}
	s.impl.OnDestroy(ctx)
}
