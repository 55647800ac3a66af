// Package offload implements the Offload Service (spec sec 4.7.2):
// bounded Compute and IO worker pools that run blocking/CPU-bound work
// off a Stage's single-consumer turn and post the result back as an
// AsyncPostBack packet, so the continuation still runs serialized with
// every other turn on that Stage.
package offload

import (
	"runtime"

	"github.com/ulala-x/playhouse/logger"
	"github.com/ulala-x/playhouse/route"
)

// StagePoster is the Stage-side hook the Service posts results through.
type StagePoster interface {
	Post(pkt *route.RoutePacket)
}

type job struct {
	stageId int64
	fn      func() (interface{}, error)
	post    func(interface{}, error)
}

// Service runs two worker pools: Compute sized to GOMAXPROCS (spec sec
// 4.7.2 "one worker per logical CPU"), and IO sized per config (spec sec
// 6.4 ioPoolSize, default 100).
type Service struct {
	computeQueue chan job
	ioQueue      chan job
	lookup       func(stageId int64) (StagePoster, bool)
}

// NewService starts the Compute and IO pools. lookup resolves a stageId
// to its live Stage at post-back time, matching the Timer Service's
// drop-if-gone discipline (spec sec 4.7.2).
func NewService(ioPoolSize int, lookup func(stageId int64) (StagePoster, bool)) *Service {
	if ioPoolSize <= 0 {
		ioPoolSize = 100
	}
	computeSize := runtime.GOMAXPROCS(0)

	s := &Service{
		computeQueue: make(chan job, 4096),
		ioQueue:      make(chan job, 4096),
		lookup:       lookup,
	}

	for i := 0; i < computeSize; i++ {
		go s.worker(s.computeQueue)
	}
	for i := 0; i < ioPoolSize; i++ {
		go s.worker(s.ioQueue)
	}

	return s
}

func (s *Service) worker(queue chan job) {
	for j := range queue {
		result, err := safeCall(j.fn)
		poster, ok := s.lookup(j.stageId)
		if !ok {
			logger.Log.Debugf("offload: stage %d gone, dropping post-back", j.stageId)
			continue
		}
		poster.Post(route.AsyncPostOf(j.stageId, route.AsyncPostCommand{
			Post: j.post, PreResult: result, PreErr: err,
		}))
	}
}

func safeCall(fn func() (interface{}, error)) (result interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Log.Errorf("offload: task panicked: %v", r)
			err = panicError{r}
		}
	}()
	return fn()
}

type panicError struct{ v interface{} }

func (p panicError) Error() string { return "offload: task panicked" }

// Compute submits fn to the Compute pool (spec sec 4.7.2 asyncCompute).
func (s *Service) Compute(stageId int64, fn func() (interface{}, error), post func(interface{}, error)) {
	s.computeQueue <- job{stageId: stageId, fn: fn, post: post}
}

// IO submits fn to the IO pool (spec sec 4.7.2 asyncIO).
func (s *Service) IO(stageId int64, fn func() (interface{}, error), post func(interface{}, error)) {
	s.ioQueue <- job{stageId: stageId, fn: fn, post: post}
}
