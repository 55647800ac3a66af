package actor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ulala-x/playhouse/route"
	"github.com/ulala-x/playhouse/sender"
)

type fakeImpl struct {
	created           bool
	authOk            bool
	postAuthenticated bool
	destroyed         bool
	accountId         int64
	sender            *sender.ActorSender
}

func (f *fakeImpl) OnCreate(ctx context.Context) { f.created = true }
func (f *fakeImpl) OnAuthenticate(ctx context.Context, authPayload route.Payload) bool {
	if f.authOk {
		f.sender.AccountId = f.accountId
	}
	return f.authOk
}
func (f *fakeImpl) OnPostAuthenticate(ctx context.Context) { f.postAuthenticated = true }
func (f *fakeImpl) OnDestroy(ctx context.Context)          { f.destroyed = true }

type fakeHook struct {
	joinOk        bool
	joined        bool
	postJoinCalled bool
}

func (h *fakeHook) OnJoinStage(ctx context.Context, a *Actor) bool {
	h.joined = true
	return h.joinOk
}
func (h *fakeHook) OnPostJoinStage(ctx context.Context, a *Actor) { h.postJoinCalled = true }

func newFakeActor(accountId int64, authOk bool) (*Actor, *fakeImpl) {
	as := &sender.ActorSender{}
	impl := &fakeImpl{authOk: authOk, accountId: accountId, sender: as}
	return New(impl, as), impl
}

func TestJoinSucceedsRunsFullSequence(t *testing.T) {
	a, impl := newFakeActor(42, true)
	hook := &fakeHook{joinOk: true}

	result := Join(context.Background(), a, route.EmptyPayload(), hook)

	assert.Equal(t, JoinOK, result)
	assert.True(t, impl.created)
	assert.True(t, impl.postAuthenticated)
	assert.True(t, hook.joined)
	assert.True(t, hook.postJoinCalled)
	assert.Equal(t, StateJoined, a.State)
	assert.True(t, a.Connected)
	assert.Equal(t, int64(42), a.Sender.AccountId)
}

func TestJoinFailsAuthenticationStopsBeforeStageHook(t *testing.T) {
	a, impl := newFakeActor(0, false)
	hook := &fakeHook{joinOk: true}

	result := Join(context.Background(), a, route.EmptyPayload(), hook)

	assert.Equal(t, JoinAuthenticationFailed, result)
	assert.False(t, hook.joined)
	assert.False(t, impl.destroyed)
	assert.NotEqual(t, StateJoined, a.State)
}

func TestJoinRejectedByStageDestroysTheActor(t *testing.T) {
	a, impl := newFakeActor(7, true)
	hook := &fakeHook{joinOk: false}

	result := Join(context.Background(), a, route.EmptyPayload(), hook)

	assert.Equal(t, JoinStageRejected, result)
	assert.True(t, impl.destroyed)
	assert.NotEqual(t, StateJoined, a.State)
}

func TestReconnectRebindsSidAndReauthenticatesWithoutRejoining(t *testing.T) {
	a, impl := newFakeActor(9, true)
	hook := &fakeHook{joinOk: true}
	require.Equal(t, JoinOK, Join(context.Background(), a, route.EmptyPayload(), hook))

	impl.created = false // reset to prove OnCreate is never called again
	var changedTo bool
	Reconnect(context.Background(), a, 55, route.EmptyPayload(), func(ctx context.Context, a *Actor, connected bool) {
		changedTo = connected
	})

	assert.Equal(t, int64(55), a.Sender.Sid)
	assert.True(t, changedTo)
	assert.False(t, impl.created, "Reconnect must not re-run OnCreate")
}

func TestDisconnectFlipsConnectedWithoutRemovingTheActor(t *testing.T) {
	a, _ := newFakeActor(9, true)
	a.State = StateJoined
	a.Connected = true

	var changedTo bool
	var called bool
	Disconnect(context.Background(), a, func(ctx context.Context, a *Actor, connected bool) {
		called = true
		changedTo = connected
	})

	assert.True(t, called)
	assert.False(t, changedTo)
	assert.False(t, a.Connected)
	assert.Equal(t, StateJoined, a.State, "Disconnect must not change State")
}

func TestLeaveDestroysTheActor(t *testing.T) {
	a, impl := newFakeActor(9, true)
	a.State = StateJoined

	Leave(context.Background(), a)

	assert.Equal(t, StateDestroyed, a.State)
	assert.True(t, impl.destroyed)
}
