package sender

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ulala-x/playhouse/constants"
	pcontext "github.com/ulala-x/playhouse/context"
	"github.com/ulala-x/playhouse/discovery"
	"github.com/ulala-x/playhouse/nid"
	"github.com/ulala-x/playhouse/requestcache"
	"github.com/ulala-x/playhouse/route"
	"github.com/ulala-x/playhouse/serverinfo"
)

type recorder struct {
	sent []*route.RoutePacket
}

func (r *recorder) dispatch(pkt *route.RoutePacket) { r.sent = append(r.sent, pkt) }

func newTestSender(self nid.NID) (*ISender, *recorder) {
	rec := &recorder{}
	return &ISender{
		Self:   self,
		Center: discovery.NewServerInfoCenter(),
		Cache:  requestcache.New(string(self), time.Second),
		Local:  rec.dispatch,
	}, rec
}

func TestReplyAddressesTheHeaderInScope(t *testing.T) {
	self := nid.Of(1, 1)
	s, rec := newTestSender(self)

	h := &route.RouteHeader{Header: route.Header{MsgId: "Ping", MsgSeq: 3}, From: string(self)}
	ctx := pcontext.WithCurrentHeader(context.Background(), h)

	payload := route.NewPayload([]byte("pong"))
	s.Reply(ctx, constants.Success, &payload)

	require.Len(t, rec.sent, 1)
	assert.True(t, rec.sent[0].Header.IsReply)
	assert.Equal(t, uint32(3), rec.sent[0].Header.MsgSeq)
	assert.Equal(t, []byte("pong"), rec.sent[0].Payload.Bytes())
}

func TestReplyWithNoHeaderInScopeIsANoOp(t *testing.T) {
	self := nid.Of(1, 1)
	s, rec := newTestSender(self)

	s.Reply(context.Background(), constants.Success, nil)

	assert.Empty(t, rec.sent)
}

func TestSendToApiWithNoRunningServerIsANoOp(t *testing.T) {
	self := nid.Of(1, 1)
	s, rec := newTestSender(self)

	s.SendToApi(2, "Lookup", route.EmptyPayload())

	assert.Empty(t, rec.sent)
}

func TestSendToApiDeliversToSelfWhenSelfIsTheChosenInstance(t *testing.T) {
	self := nid.Of(2, 1)
	s, rec := newTestSender(self)
	s.Center.Replace([]serverinfo.ServerInfo{
		{Nid: self, ServiceId: 2, ServerId: 1, State: constants.ServerRunning},
	})

	s.SendToApi(2, "Lookup", route.EmptyPayload())

	require.Len(t, rec.sent, 1)
	assert.Equal(t, "Lookup", rec.sent[0].Header.MsgId)
}

func TestRequestToApiWithNoRunningServerCompletesImmediatelyWithNoServer(t *testing.T) {
	self := nid.Of(1, 1)
	s, _ := newTestSender(self)

	done := make(chan constants.ErrorCode, 1)
	s.RequestToApi(2, "Lookup", route.EmptyPayload(), time.Second, func(code constants.ErrorCode, pkt *route.RoutePacket) {
		done <- code
	})

	select {
	case code := <-done:
		assert.Equal(t, constants.NoServer, code)
	default:
		t.Fatal("RequestToApi with no server must complete synchronously")
	}
}

func TestRequestToStageRegistersInTheCacheAndDeliversToSelf(t *testing.T) {
	self := nid.Of(1, 1)
	s, rec := newTestSender(self)

	s.RequestToStage(self, 7, 99, "Move", route.EmptyPayload(), time.Second, func(constants.ErrorCode, *route.RoutePacket) {})

	require.Len(t, rec.sent, 1)
	assert.Equal(t, int64(7), rec.sent[0].Header.StageId)
	assert.NotZero(t, rec.sent[0].Header.MsgSeq)
	assert.Equal(t, 1, s.Cache.Len())
}

func TestRequestToSystemSetsIsSystemAndIsBackend(t *testing.T) {
	self := nid.Of(1, 1)
	s, rec := newTestSender(self)

	s.RequestToSystem(self, "Admin", route.EmptyPayload(), time.Second, func(constants.ErrorCode, *route.RoutePacket) {})

	require.Len(t, rec.sent, 1)
	assert.True(t, rec.sent[0].Header.IsSystem)
	assert.True(t, rec.sent[0].Header.IsBackend)
}

func TestSendToSystemSetsIsSystem(t *testing.T) {
	self := nid.Of(1, 1)
	s, rec := newTestSender(self)

	s.SendToSystem(self, "Admin", route.EmptyPayload())

	require.Len(t, rec.sent, 1)
	assert.True(t, rec.sent[0].Header.IsSystem)
}
