package node

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ulala-x/playhouse/actor"
	"github.com/ulala-x/playhouse/api"
	"github.com/ulala-x/playhouse/constants"
	"github.com/ulala-x/playhouse/nid"
	"github.com/ulala-x/playhouse/requestcache"
	"github.com/ulala-x/playhouse/route"
	"github.com/ulala-x/playhouse/sender"
	"github.com/ulala-x/playhouse/stage"
	"github.com/ulala-x/playhouse/system"
)

type noopStage struct{}

func (noopStage) OnCreate(ctx context.Context, pkt *route.RoutePacket) (route.Payload, error) {
	return route.EmptyPayload(), nil
}
func (noopStage) OnDispatch(ctx context.Context, pkt *route.RoutePacket)                      {}
func (noopStage) OnDispatchActor(ctx context.Context, a *actor.Actor, pkt *route.RoutePacket)  {}
func (noopStage) OnDestroy(ctx context.Context)                                                {}
func (noopStage) NewActor(ctx context.Context, as *sender.ActorSender) actor.IActor            { return nil }
func (noopStage) OnJoinStage(ctx context.Context, a *actor.Actor) bool                          { return true }
func (noopStage) OnPostJoinStage(ctx context.Context, a *actor.Actor)                           {}
func (noopStage) OnConnectionChanged(ctx context.Context, a *actor.Actor, connected bool)       {}

type recordingLocal struct {
	mu   sync.Mutex
	sent []*route.RoutePacket
}

func (r *recordingLocal) dispatch(pkt *route.RoutePacket) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, pkt)
}

func (r *recordingLocal) last() *route.RoutePacket {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.sent) == 0 {
		return nil
	}
	return r.sent[len(r.sent)-1]
}

func newTestEntry(t *testing.T) (*dispatchEntry, *recordingLocal, *requestcache.RequestCache) {
	t.Helper()
	self := nid.Of(1, 1)
	rec := &recordingLocal{}
	base := &sender.ISender{Self: self, Local: rec.dispatch}

	cache := requestcache.New(string(self), 100*time.Millisecond)
	sys := system.NewDispatcher(base)
	play := stage.NewPlayDispatcher(string(self), 64, base, nil, nil)
	play.Register("room", func(stageId int64) stage.IStage { return noopStage{} })
	apiDisp := api.NewDispatcher(base)
	sessions := newSessionTable()

	return newDispatchEntry(base, cache, sys, play, apiDisp, sessions), rec, cache
}

func TestDispatchRoutesReplyPacketsToRequestCache(t *testing.T) {
	e, _, cache := newTestEntry(t)
	seq := cache.NextSeq()

	done := make(chan constants.ErrorCode, 1)
	cache.Put(seq, requestcache.NewPendingReply(time.Now().Add(time.Minute), func(code constants.ErrorCode, pkt *route.RoutePacket) {
		done <- code
	}))

	pkt := &route.RoutePacket{Header: route.RouteHeader{
		Header:    route.Header{MsgSeq: seq, ErrorCode: constants.Success},
		IsBackend: true, IsReply: true,
	}}
	e.Dispatch(pkt)

	select {
	case code := <-done:
		assert.Equal(t, constants.Success, code)
	case <-time.After(time.Second):
		t.Fatal("reply packet never reached the request cache")
	}
}

func TestDispatchRoutesSystemPacketsToSystemDispatcher(t *testing.T) {
	self := nid.Of(1, 1)
	rec := &recordingLocal{}
	base := &sender.ISender{Self: self, Local: rec.dispatch}
	cache := requestcache.New(string(self), time.Second)
	sys := system.NewDispatcher(base)
	var invoked bool
	sys.Register("Ping", func(ctx context.Context, s *sender.ISender, payload route.Payload) (route.Payload, constants.ErrorCode) {
		invoked = true
		return route.EmptyPayload(), constants.Success
	})
	play := stage.NewPlayDispatcher(string(self), 64, base, nil, nil)
	entry := newDispatchEntry(base, cache, sys, play, nil, nil)

	pkt := &route.RoutePacket{Header: route.RouteHeader{
		Header:   route.Header{MsgId: "Ping", MsgSeq: 0},
		IsSystem: true,
		From:     string(self),
	}}
	entry.Dispatch(pkt)

	assert.True(t, invoked)
}

func TestDispatchCreateStageCreatesAndRepliesSuccess(t *testing.T) {
	e, rec, _ := newTestEntry(t)

	pkt := &route.RoutePacket{Header: route.RouteHeader{
		Header: route.Header{MsgId: route.MsgCreateStage, MsgSeq: 9, StageId: 55, StageType: "room"},
		From:   string(nid.Of(1, 1)),
	}}
	e.Dispatch(pkt)

	reply := rec.last()
	require.NotNil(t, reply)
	assert.Equal(t, constants.Success, reply.Header.ErrorCode)
	assert.Equal(t, route.MsgCreateStageRes, reply.Header.MsgId)
	assert.True(t, reply.Header.IsCreated)
}

func TestDispatchCreateStageOnNonPlayNodeLogsAndDrops(t *testing.T) {
	self := nid.Of(2, 1)
	rec := &recordingLocal{}
	base := &sender.ISender{Self: self, Local: rec.dispatch}
	cache := requestcache.New(string(self), time.Second)
	sys := system.NewDispatcher(base)
	entry := newDispatchEntry(base, cache, sys, nil, api.NewDispatcher(base), nil)

	pkt := &route.RoutePacket{Header: route.RouteHeader{
		Header: route.Header{MsgId: route.MsgCreateStage, StageId: 1, StageType: "room"},
	}}
	assert.NotPanics(t, func() { entry.Dispatch(pkt) })
	assert.Nil(t, rec.last())
}

func TestDispatchStageTargetedPacketReachesTheStage(t *testing.T) {
	e, _, _ := newTestEntry(t)

	createPkt := &route.RoutePacket{Header: route.RouteHeader{
		Header: route.Header{MsgId: route.MsgCreateStage, StageId: 1, StageType: "room"},
		From:   string(nid.Of(1, 1)),
	}}
	e.Dispatch(createPkt)

	pkt := &route.RoutePacket{Header: route.RouteHeader{Header: route.Header{MsgId: "Tick", StageId: 1}}}
	assert.NotPanics(t, func() { e.Dispatch(pkt) })
}

func TestDispatchStageTargetedPacketForUnknownStageIsDroppedSilently(t *testing.T) {
	e, _, _ := newTestEntry(t)
	pkt := &route.RoutePacket{Header: route.RouteHeader{Header: route.Header{MsgId: "Tick", StageId: 999}}}
	assert.NotPanics(t, func() { e.Dispatch(pkt) })
}

func TestDispatchFallsBackToApiDispatcherForBareMsgId(t *testing.T) {
	self := nid.Of(2, 1)
	rec := &recordingLocal{}
	base := &sender.ISender{Self: self, Local: rec.dispatch}
	cache := requestcache.New(string(self), time.Second)
	sys := system.NewDispatcher(base)
	apiDisp := api.NewDispatcher(base)
	var invoked bool
	apiDisp.Register("Lookup", func(ctx context.Context, s *sender.ApiSender, payload route.Payload) (route.Payload, constants.ErrorCode) {
		invoked = true
		return route.EmptyPayload(), constants.Success
	})
	entry := newDispatchEntry(base, cache, sys, nil, apiDisp, nil)

	pkt := &route.RoutePacket{Header: route.RouteHeader{
		Header: route.Header{MsgId: "Lookup", MsgSeq: 0},
		From:   string(self),
	}}
	entry.Dispatch(pkt)

	assert.True(t, invoked)
}

func TestDispatchToClientPushesToTheResolvedSession(t *testing.T) {
	e, _, _ := newTestEntry(t)

	sess, conn := acceptSessionPair(t)
	sid := int64(1)
	e.sessions.put(sid, sess)

	pkt := &route.RoutePacket{Header: route.RouteHeader{
		Header:     route.Header{MsgId: "Push"},
		IsToClient: true,
		Sid:        sid,
	}, Payload: route.NewPayload([]byte("hello"))}

	e.Dispatch(pkt)

	buf := make([]byte, 5)
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	n, err := conn.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(buf[:n]))
}

func TestDispatchToClientForUnknownSidIsDroppedSilently(t *testing.T) {
	e, _, _ := newTestEntry(t)
	pkt := &route.RoutePacket{Header: route.RouteHeader{
		Header:     route.Header{MsgId: "Push"},
		IsToClient: true,
		Sid:        999,
	}, Payload: route.EmptyPayload()}
	assert.NotPanics(t, func() { e.Dispatch(pkt) })
}

func TestDispatchToClientWithNoSessionTableIsDroppedSilently(t *testing.T) {
	self := nid.Of(1, 1)
	base := &sender.ISender{Self: self, Local: func(*route.RoutePacket) {}}
	cache := requestcache.New(string(self), time.Second)
	entry := newDispatchEntry(base, cache, system.NewDispatcher(base), nil, nil, nil)

	pkt := &route.RoutePacket{Header: route.RouteHeader{Header: route.Header{MsgId: "Push"}, IsToClient: true, Sid: 1}}
	assert.NotPanics(t, func() { entry.Dispatch(pkt) })
}
