// Package actor implements Actor/session binding (spec sec 4.8): the
// per-player state machine inside a Stage and the ten-step
// authenticate-join sequence that creates it.
package actor

import (
	"context"

	"github.com/ulala-x/playhouse/route"
	"github.com/ulala-x/playhouse/sender"
)

// State is an Actor's position in the spec sec 4.8.1 state machine:
// Absent -> Authenticating -> Joined(connected) <-> Joined(!connected) -> Destroyed.
type State uint8

const (
	StateAbsent State = iota
	StateAuthenticating
	StateJoined
	StateDestroyed
)

// IActor is the user-supplied per-player logic (spec sec 4.8.2). Method
// names are normalized to Go's exported-method convention; the spec's
// onDestroy naming is unified across IStage and IActor (see DESIGN.md
// Open Question decision).
type IActor interface {
	OnCreate(ctx context.Context)
	OnAuthenticate(ctx context.Context, authPayload route.Payload) bool
	OnPostAuthenticate(ctx context.Context)
	OnDestroy(ctx context.Context)
}

// Actor is the runtime record a Stage keeps for one joined player (spec
// sec 4.8.1). AccountId is set by OnAuthenticate via the ActorSender it
// is handed and never changes afterward (spec sec 8.1 invariant 4).
type Actor struct {
	State     State
	Connected bool

	Impl   IActor
	Sender *sender.ActorSender
}

// New builds an Actor bound to impl and the ActorSender it will use to
// reach back out (spec sec 4.8.2 step 1-2).
func New(impl IActor, as *sender.ActorSender) *Actor {
	return &Actor{State: StateAbsent, Impl: impl, Sender: as}
}

// JoinStageHook is the subset of IStage the ten-step sequence invokes
// (spec sec 4.8.2 steps 7/9), defined locally to avoid an actor<->stage
// import cycle.
type JoinStageHook interface {
	OnJoinStage(ctx context.Context, a *Actor) bool
	OnPostJoinStage(ctx context.Context, a *Actor)
}

// JoinResult is the outcome of Join, driving the caller's JoinStageRes
// error code (spec sec 4.8.2 step 5/7/10).
type JoinResult uint8

const (
	JoinOK JoinResult = iota
	JoinAuthenticationFailed
	JoinStageRejected
)

// Join runs the ten-step authenticate-join sequence (spec sec 4.8.2).
// authPayload is the JoinStageReq's authPayload; hook is the owning
// Stage's onJoinStage/onPostJoinStage pair.
func Join(ctx context.Context, a *Actor, authPayload route.Payload, hook JoinStageHook) JoinResult {
	a.State = StateAuthenticating

	// step 3
	a.Impl.OnCreate(ctx)

	// step 4
	ok := a.Impl.OnAuthenticate(ctx, authPayload)
	if !ok || a.Sender.AccountId == 0 {
		// step 5
		return JoinAuthenticationFailed
	}

	// step 6
	a.Impl.OnPostAuthenticate(ctx)

	// step 7
	if !hook.OnJoinStage(ctx, a) {
		a.Impl.OnDestroy(ctx)
		return JoinStageRejected
	}

	// steps 8-9 (insertion into stage.actors is the caller's
	// responsibility, since only the Stage owns that map)
	a.State = StateJoined
	a.Connected = true
	hook.OnPostJoinStage(ctx, a)

	// step 10: caller replies JoinStageRes{ok}
	return JoinOK
}

// Reconnect applies spec sec 4.8.3: rebinds the Actor's sid to a new
// socket (the caller sets Sender.SessionNid), marks it connected again,
// and re-runs only step 4 of the authenticate sequence, never
// onCreate/onJoinStage.
func Reconnect(ctx context.Context, a *Actor, newSid int64, authPayload route.Payload, onConnectionChanged func(ctx context.Context, a *Actor, connected bool)) {
	a.Sender.Sid = newSid
	a.Connected = true
	onConnectionChanged(ctx, a, true)
	a.Impl.OnAuthenticate(ctx, authPayload)
}

// Disconnect applies spec sec 4.8.4: the Actor stays in stage.actors,
// only its connected flag flips.
func Disconnect(ctx context.Context, a *Actor, onConnectionChanged func(ctx context.Context, a *Actor, connected bool)) {
	a.Connected = false
	onConnectionChanged(ctx, a, false)
}

// Leave applies spec sec 4.8.5 steps 2-3; the caller (Stage) is
// responsible for step 1, removing a from its own actors map, since only
// the Stage owns that map.
func Leave(ctx context.Context, a *Actor) {
	a.State = StateDestroyed
	a.Impl.OnDestroy(ctx)
}
