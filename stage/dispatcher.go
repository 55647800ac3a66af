package stage

import (
	"context"
	"sync"

	"github.com/ulala-x/playhouse/constants"
	"github.com/ulala-x/playhouse/logger"
	"github.com/ulala-x/playhouse/metrics"
	"github.com/ulala-x/playhouse/route"
	"github.com/ulala-x/playhouse/sender"
)

// Factory builds a fresh IStage instance for a CreateStageReq/
// GetOrCreateStageReq of the given stageType (spec sec 4.6.2).
type Factory func(stageId int64) IStage

// PlayDispatcher owns every live Stage on one Play node and routes
// inbound RoutePackets to the right one by stageId (spec sec 4.6.2,
// 4.6.3). It also implements sender.StageCloser and the Timer/Offload
// Services' stage lookup, since it is the single point that knows which
// Stages are currently alive.
type PlayDispatcher struct {
	nid  string
	base *sender.ISender
	timers sender.TimerPoster
	async  sender.AsyncOffloader

	mu        sync.RWMutex
	stages    map[int64]*Stage
	factories map[string]Factory

	queueSize int
}

// NewPlayDispatcher builds an empty dispatcher for the node identified
// by nid. base/timers/async are the shared node-level services every
// Stage this dispatcher creates will be wired to.
func NewPlayDispatcher(nid string, queueSize int, base *sender.ISender, timers sender.TimerPoster, async sender.AsyncOffloader) *PlayDispatcher {
	return &PlayDispatcher{
		nid:       nid,
		base:      base,
		timers:    timers,
		async:     async,
		stages:    make(map[int64]*Stage),
		factories: make(map[string]Factory),
		queueSize: queueSize,
	}
}

// Register binds a stageType name to the Factory that builds it (spec
// sec 4.6.2: CreateStageReq/GetOrCreateStageReq carry a stageType the
// dispatcher must already know).
func (d *PlayDispatcher) Register(stageType string, factory Factory) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.factories[stageType] = factory
}

// CreateStage builds and registers a brand new Stage, failing if stageId
// is already taken (spec sec 4.6.2 CreateStageReq).
func (d *PlayDispatcher) CreateStage(ctx context.Context, stageId int64, stageType string, pkt *route.RoutePacket) (route.Payload, constants.ErrorCode) {
	d.mu.Lock()
	if _, exists := d.stages[stageId]; exists {
		d.mu.Unlock()
		return route.EmptyPayload(), constants.SystemError
	}
	factory, ok := d.factories[stageType]
	if !ok {
		d.mu.Unlock()
		return route.EmptyPayload(), constants.NotRegisteredMessage
	}
	impl := factory(stageId)
	s := New(stageId, stageType, impl, d.queueSize, d.base, d.timers, d.async, d)
	d.stages[stageId] = s
	d.mu.Unlock()

	metrics.StageCount.WithLabelValues(d.nid).Set(float64(d.count()))

	payload, err := impl.OnCreate(ctx, pkt)
	if err != nil {
		logger.Log.Warnf("stage %d: onCreate failed: %v", stageId, err)
		d.removeStage(stageId)
		return route.EmptyPayload(), constants.SystemError
	}
	return payload, constants.Success
}

// GetOrCreateStage returns the existing Stage for stageId, creating one
// via stageType's factory if absent (spec sec 4.6.2 GetOrCreateStageReq).
// isCreated tells the caller which happened, so a reply can carry that
// signal back across the mesh (spec sec 4.5.2, 4.6.2).
func (d *PlayDispatcher) GetOrCreateStage(ctx context.Context, stageId int64, stageType string, pkt *route.RoutePacket) (payload route.Payload, code constants.ErrorCode, isCreated bool) {
	d.mu.RLock()
	_, exists := d.stages[stageId]
	d.mu.RUnlock()
	if exists {
		return route.EmptyPayload(), constants.Success, false
	}
	payload, code = d.CreateStage(ctx, stageId, stageType, pkt)
	return payload, code, code == constants.Success
}

// Get returns the live Stage for stageId, if any (spec sec 4.6.3
// routing: "NoStage is returned if the targeted Play node has no Stage
// for the header's stageId").
func (d *PlayDispatcher) Get(stageId int64) (*Stage, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	s, ok := d.stages[stageId]
	return s, ok
}

// Dispatch routes pkt to its target Stage's post queue (spec sec 4.6.3).
func (d *PlayDispatcher) Dispatch(pkt *route.RoutePacket) constants.ErrorCode {
	s, ok := d.Get(pkt.Header.StageId)
	if !ok {
		return constants.NoStage
	}
	s.Post(pkt)
	return constants.Success
}

// RequestClose implements sender.StageCloser: destroys stageId at once
// and removes it from the dispatcher, so later Posts are dropped (spec
// sec 4.6.4). The teardown is not queued behind the current turn: when
// called from inside a turn, OnDestroy runs before that turn returns.
func (d *PlayDispatcher) RequestClose(stageId int64) {
	s, ok := d.Get(stageId)
	if !ok {
		return
	}
	s.Destroy(context.Background())
	d.removeStage(stageId)
}

func (d *PlayDispatcher) removeStage(stageId int64) {
	d.mu.Lock()
	delete(d.stages, stageId)
	d.mu.Unlock()
	metrics.StageCount.WithLabelValues(d.nid).Set(float64(d.count()))
}

func (d *PlayDispatcher) count() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.stages)
}
