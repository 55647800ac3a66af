package api

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ulala-x/playhouse/constants"
	pcontext "github.com/ulala-x/playhouse/context"
	playerrors "github.com/ulala-x/playhouse/errors"
	"github.com/ulala-x/playhouse/nid"
	"github.com/ulala-x/playhouse/route"
	"github.com/ulala-x/playhouse/sender"
)

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

func newTestDispatcher(self nid.NID) (*Dispatcher, *recordingLocal) {
	rec := &recordingLocal{}
	base := &sender.ISender{Self: self, Local: rec.dispatch}
	return NewDispatcher(base), rec
}

func ctxFor(self nid.NID, msgSeq uint32) context.Context {
	h := &route.RouteHeader{Header: route.Header{MsgSeq: msgSeq}, From: string(self)}
	return pcontext.WithCurrentHeader(context.Background(), h)
}

func TestDispatchInvokesRegisteredHandlerAndReplies(t *testing.T) {
	self := nid.Of(2, 1)
	d, rec := newTestDispatcher(self)
	d.Register("Ping", func(ctx context.Context, s *sender.ApiSender, payload route.Payload) (route.Payload, constants.ErrorCode) {
		return route.NewPayload([]byte("pong")), constants.Success
	})

	pkt := &route.RoutePacket{Header: route.RouteHeader{Header: route.Header{MsgId: "Ping", MsgSeq: 5}}}
	d.Dispatch(ctxFor(self, 5), pkt)

	reply := rec.last()
	require.NotNil(t, reply)
	assert.Equal(t, constants.Success, reply.Header.ErrorCode)
	assert.Equal(t, []byte("pong"), reply.Payload.Bytes())
}

func TestDispatchUnregisteredMsgIdRepliesNotRegistered(t *testing.T) {
	self := nid.Of(2, 1)
	d, rec := newTestDispatcher(self)

	pkt := &route.RoutePacket{Header: route.RouteHeader{Header: route.Header{MsgId: "Nope", MsgSeq: 1}}}
	d.Dispatch(ctxFor(self, 1), pkt)

	reply := rec.last()
	require.NotNil(t, reply)
	assert.Equal(t, constants.NotRegisteredMessage, reply.Header.ErrorCode)
}

func TestDispatchWithZeroMsgSeqNeverReplies(t *testing.T) {
	self := nid.Of(2, 1)
	d, rec := newTestDispatcher(self)
	d.Register("Fire", func(ctx context.Context, s *sender.ApiSender, payload route.Payload) (route.Payload, constants.ErrorCode) {
		return route.EmptyPayload(), constants.Success
	})

	pkt := &route.RoutePacket{Header: route.RouteHeader{Header: route.Header{MsgId: "Fire", MsgSeq: 0}}}
	d.Dispatch(ctxFor(self, 0), pkt)

	assert.Nil(t, rec.last())
}

func TestDispatchPanicWithPlainErrorFallsBackToUncheckedContentsError(t *testing.T) {
	self := nid.Of(2, 1)
	d, rec := newTestDispatcher(self)
	d.Register("Boom", func(ctx context.Context, s *sender.ApiSender, payload route.Payload) (route.Payload, constants.ErrorCode) {
		panic(errors.New("kaboom"))
	})

	pkt := &route.RoutePacket{Header: route.RouteHeader{Header: route.Header{MsgId: "Boom", MsgSeq: 3}}}
	d.Dispatch(ctxFor(self, 3), pkt)

	reply := rec.last()
	require.NotNil(t, reply)
	assert.Equal(t, constants.UncheckedContentsError, reply.Header.ErrorCode)
}

func TestDispatchPanicWithWrappedErrorsErrorPropagatesItsCode(t *testing.T) {
	self := nid.Of(2, 1)
	d, rec := newTestDispatcher(self)
	d.Register("Boom", func(ctx context.Context, s *sender.ApiSender, payload route.Payload) (route.Payload, constants.ErrorCode) {
		panic(playerrors.Wrap(constants.JoinStageFailed, errors.New("bad type")))
	})

	pkt := &route.RoutePacket{Header: route.RouteHeader{Header: route.Header{MsgId: "Boom", MsgSeq: 3}}}
	d.Dispatch(ctxFor(self, 3), pkt)

	reply := rec.last()
	require.NotNil(t, reply)
	assert.Equal(t, constants.JoinStageFailed, reply.Header.ErrorCode)
}

type pingController struct {
	handled []string
}

func (c *pingController) Handles(register HandlerRegister) {
	register.Add("Ping", func(ctx context.Context, s *sender.ApiSender, payload route.Payload) (route.Payload, constants.ErrorCode) {
		c.handled = append(c.handled, "Ping")
		return route.EmptyPayload(), constants.Success
	})
	register.Add("Pong", func(ctx context.Context, s *sender.ApiSender, payload route.Payload) (route.Payload, constants.ErrorCode) {
		c.handled = append(c.handled, "Pong")
		return route.EmptyPayload(), constants.Success
	})
}

func TestRegisterControllerBindsEveryHandlerItExposes(t *testing.T) {
	self := nid.Of(2, 1)
	d, _ := newTestDispatcher(self)
	c := &pingController{}

	d.RegisterController(c)

	pkt := &route.RoutePacket{Header: route.RouteHeader{Header: route.Header{MsgId: "Pong", MsgSeq: 0}}}
	d.Dispatch(ctxFor(self, 0), pkt)

	assert.Equal(t, []string{"Pong"}, c.handled)
}
