package sender

import "github.com/ulala-x/playhouse/nid"

// ActorSender is IActorSender (spec sec 4.5.4): StageSender further
// scoped to one joined actor. AccountId is immutable for the actor's
// lifetime (spec sec 8.1 invariant: "an actor's accountId never
// changes after JoinStage completes"). SessionNid is rebound on every
// Join/Reconnect to the node that currently owns the actor's socket
// (spec sec 4.8.3) — it is not necessarily this Stage's own node.
type ActorSender struct {
	*StageSender
	AccountId  int64
	Sid        int64
	SessionNid nid.NID
}

// SendToClient pushes an already-encoded client frame to this actor's
// own session, a convenience over StageSender.SendToClient that fixes
// sessionNid/sid to the actor's own (spec sec 4.5.4).
func (a *ActorSender) SendToClient(frame []byte) {
	a.StageSender.SendToClient(a.SessionNid, a.Sid, frame)
}

// LeaveStageHandler is the hook the owning Stage exposes so an actor can
// request its own removal (spec sec 4.8.5).
type LeaveStageHandler interface {
	LeaveStage(stageId int64, accountId int64)
}

// LeaveStage requests this actor be removed from the Stage after the
// current turn completes (spec sec 4.8.5).
func (a *ActorSender) LeaveStage(h LeaveStageHandler) {
	h.LeaveStage(a.StageId, a.AccountId)
}
