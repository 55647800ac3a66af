package sender

import (
	"github.com/google/uuid"

	"github.com/ulala-x/playhouse/nid"
	"github.com/ulala-x/playhouse/route"
)

// TimerPoster is the hook the Timer Service exposes to StageSender
// (spec sec 4.7.1). Defined locally to avoid a sender<->timer import
// cycle (the timer service itself needs ISender to post TimerFire
// packets back into a Stage).
type TimerPoster interface {
	Post(stageId int64, cmd route.TimerCommand)
	CancelAll(stageId int64)
}

// AsyncOffloader is the hook the Offload Service exposes to StageSender
// (spec sec 4.7.2), kept local for the same reason as TimerPoster.
type AsyncOffloader interface {
	Compute(stageId int64, fn func() (interface{}, error), post func(interface{}, error))
	IO(stageId int64, fn func() (interface{}, error), post func(interface{}, error))
}

// StageCloser is the hook the PlayDispatcher exposes to StageSender so a
// Stage can request its own teardown (spec sec 4.6.4).
type StageCloser interface {
	RequestClose(stageId int64)
}

// StageSender is IStageSender (spec sec 4.5.3): the operations available
// to code running inside a Stage's turn.
type StageSender struct {
	*ISender
	StageId int64
	Timers  TimerPoster
	Async   AsyncOffloader
	Closer  StageCloser
}

// StartRepeatTimer schedules cmd.Callback every period, forever, until
// CancelTimer (spec sec 4.7.1). Returns the generated timerId.
func (s *StageSender) StartRepeatTimer(initialDelayMs, periodMs int64, callback func()) string {
	id := uuid.NewString()
	s.Timers.Post(s.StageId, route.TimerCommand{
		Op: route.TimerRepeat, TimerId: id,
		InitialDelay: initialDelayMs, Period: periodMs, Callback: callback,
	})
	return id
}

// StartCountTimer schedules cmd.Callback every period, count times total
// (spec sec 4.7.1). Returns the generated timerId.
func (s *StageSender) StartCountTimer(initialDelayMs, periodMs int64, count int, callback func()) string {
	id := uuid.NewString()
	s.Timers.Post(s.StageId, route.TimerCommand{
		Op: route.TimerCount, TimerId: id,
		InitialDelay: initialDelayMs, Period: periodMs, Count: count, Callback: callback,
	})
	return id
}

// CancelTimer stops a previously scheduled timer (spec sec 4.7.1); a
// cancel for an unknown/already-fired timerId is a silent no-op.
func (s *StageSender) CancelTimer(timerId string) {
	s.Timers.Post(s.StageId, route.TimerCommand{Op: route.TimerCancel, TimerId: timerId})
}

// AsyncCompute runs fn on the Compute pool, posting its result back into
// this Stage's turn (spec sec 4.7.2).
func (s *StageSender) AsyncCompute(fn func() (interface{}, error), post func(interface{}, error)) {
	s.Async.Compute(s.StageId, fn, post)
}

// AsyncIO runs fn on the IO pool, posting its result back into this
// Stage's turn (spec sec 4.7.2).
func (s *StageSender) AsyncIO(fn func() (interface{}, error), post func(interface{}, error)) {
	s.Async.IO(s.StageId, fn, post)
}

// CloseStage tears this Stage down through its StageCloser (spec sec
// 4.6.4). Every timer this Stage still owns is cancelled first, so none
// of them fire into the now-gone Stage (spec sec 4.7.1). With the
// PlayDispatcher as closer the teardown happens immediately, inside the
// current turn, not after it completes.
func (s *StageSender) CloseStage() {
	s.Timers.CancelAll(s.StageId)
	s.Closer.RequestClose(s.StageId)
}

// SendToClient pushes an already-encoded client frame to sid on the
// client-edge node identified by sessionNid (spec sec 4.5.3, 4.9.4). A
// joined actor's session is not necessarily owned by this Stage's own
// node — sessionNid is the node that accepted the socket, captured off
// the mesh identity of the packet that carried the join/reconnect (spec
// sec 4.1, 9).
func (s *StageSender) SendToClient(sessionNid nid.NID, sid int64, frame []byte) {
	pkt := route.ClientOf(uint32(s.Self.ServiceId()), sid, s.StageId, frame)
	s.deliver(sessionNid, pkt)
}
