// Package timer implements the Timer Service (spec sec 4.7.1): per-Stage
// repeat/count timers whose fire events are posted back into the owning
// Stage's single-consumer turn queue rather than invoked directly from a
// background goroutine, so timer callbacks run with the same
// serialization guarantee as any other Stage dispatch.
package timer

import (
	"sync"
	"time"

	"github.com/ulala-x/playhouse/logger"
	"github.com/ulala-x/playhouse/route"
)

// StagePoster is the Stage-side hook the Service posts TimerFire packets
// through (spec sec 4.6.1 post queue).
type StagePoster interface {
	Post(pkt *route.RoutePacket)
}

type entry struct {
	stageId  int64
	cmd      route.TimerCommand
	timer    *time.Timer
	fireCount int
	cancelled bool
}

// Service is one node's Timer Service, tracking every live timer across
// every Stage that node hosts.
type Service struct {
	mu      sync.Mutex
	timers  map[string]*entry
	lookup  func(stageId int64) (StagePoster, bool)
}

// NewService builds a Service. lookup resolves a stageId to the live
// Stage's post queue at fire time, so a timer whose Stage has since been
// destroyed fires into nothing instead of panicking (spec sec 4.7.1:
// "a timer outliving its Stage is silently dropped at the next fire").
func NewService(lookup func(stageId int64) (StagePoster, bool)) *Service {
	return &Service{timers: make(map[string]*entry), lookup: lookup}
}

// Post registers or cancels a timer command from a StageSender call
// (spec sec 4.5.3/4.7.1). TimerRepeat and TimerCount schedule a new
// entry; TimerCancel stops and removes an existing one.
func (s *Service) Post(stageId int64, cmd route.TimerCommand) {
	switch cmd.Op {
	case route.TimerCancel:
		s.cancel(cmd.TimerId)
	default:
		s.schedule(stageId, cmd)
	}
}

func (s *Service) schedule(stageId int64, cmd route.TimerCommand) {
	e := &entry{stageId: stageId, cmd: cmd}

	s.mu.Lock()
	s.timers[cmd.TimerId] = e
	s.mu.Unlock()

	e.timer = time.AfterFunc(time.Duration(cmd.InitialDelay)*time.Millisecond, func() {
		s.fire(cmd.TimerId)
	})
}

func (s *Service) fire(timerId string) {
	s.mu.Lock()
	e, ok := s.timers[timerId]
	if !ok || e.cancelled {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	// The owning Stage is checked before this timer is re-armed: a
	// repeat timer whose Stage was destroyed must be dropped here, not
	// rescheduled forever against a lookup that will never succeed
	// again (spec sec 4.7.1).
	poster, ok := s.lookup(e.stageId)
	if !ok {
		s.mu.Lock()
		delete(s.timers, timerId)
		s.mu.Unlock()
		logger.Log.Debugf("timer: stage %d gone, dropping fire for %s", e.stageId, timerId)
		return
	}

	s.mu.Lock()
	e.fireCount++
	done := e.cmd.Op == route.TimerCount && e.fireCount >= e.cmd.Count
	if !done {
		e.timer = time.AfterFunc(time.Duration(e.cmd.Period)*time.Millisecond, func() {
			s.fire(timerId)
		})
	} else {
		delete(s.timers, timerId)
	}
	s.mu.Unlock()

	poster.Post(route.TimerOf(e.stageId, route.TimerCommand{
		Op: route.TimerRepeat, TimerId: timerId, Callback: e.cmd.Callback,
	}))
}

// cancel stops a live timer. Cancelling an unknown or already-fired
// timerId is a silent no-op (spec sec 4.7.1).
func (s *Service) cancel(timerId string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.timers[timerId]
	if !ok {
		return
	}
	e.cancelled = true
	if e.timer != nil {
		e.timer.Stop()
	}
	delete(s.timers, timerId)
}

// CancelAll stops every timer owned by stageId (spec sec 4.6.4: a
// destroyed Stage's outstanding timers are cancelled, never left to fire
// into a dead Stage).
func (s *Service) CancelAll(stageId int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, e := range s.timers {
		if e.stageId == stageId {
			e.cancelled = true
			if e.timer != nil {
				e.timer.Stop()
			}
			delete(s.timers, id)
		}
	}
}
