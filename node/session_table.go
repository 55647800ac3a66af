package node

import (
	"sync"
	"sync/atomic"

	"github.com/ulala-x/playhouse/client"
)

// sessionEntry pairs a live client Session with the Stage/accountId it
// is bound to once authenticated, so the onClose path can route a
// DisconnectNotice to the right place (spec sec 4.8.4, 4.9.5) without
// the Session itself needing to know anything about Stages.
type sessionEntry struct {
	sess      *client.Session
	joined    bool
	stageId   int64
	accountId int64
}

// sessionTable tracks every live client Session by its locally-assigned
// sid, so a Stage's SendToClient(sessionNid, sid, frame) (spec sec
// 4.5.3, 4.9.4) can be resolved back to the socket that owns it. sid is
// node-local and never crosses the mesh; only the RouteHeader.Sid wire
// field does.
type sessionTable struct {
	next int64

	mu   sync.RWMutex
	byId map[int64]*sessionEntry
}

func newSessionTable() *sessionTable {
	return &sessionTable{byId: make(map[int64]*sessionEntry)}
}

// nextSid hands out a fresh sid, monotonically increasing and never zero
// (zero is reserved to mean "no session" on the wire, mirroring StageId).
func (t *sessionTable) nextSid() int64 {
	return atomic.AddInt64(&t.next, 1)
}

func (t *sessionTable) put(sid int64, s *client.Session) {
	t.mu.Lock()
	t.byId[sid] = &sessionEntry{sess: s}
	t.mu.Unlock()
}

func (t *sessionTable) get(sid int64) (*client.Session, bool) {
	t.mu.RLock()
	e, ok := t.byId[sid]
	t.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return e.sess, true
}

func (t *sessionTable) remove(sid int64) {
	t.mu.Lock()
	delete(t.byId, sid)
	t.mu.Unlock()
}

// markJoined records the Stage/accountId a sid's JoinStageReq/reconnect
// bound it to, once that reply comes back Success.
func (t *sessionTable) markJoined(sid, stageId, accountId int64) {
	t.mu.Lock()
	if e, ok := t.byId[sid]; ok {
		e.joined = true
		e.stageId = stageId
		e.accountId = accountId
	}
	t.mu.Unlock()
}

// meta returns the Stage/accountId a sid is bound to, and whether it has
// ever successfully joined one.
func (t *sessionTable) meta(sid int64) (stageId, accountId int64, joined bool) {
	t.mu.RLock()
	e, ok := t.byId[sid]
	t.mu.RUnlock()
	if !ok {
		return 0, 0, false
	}
	return e.stageId, e.accountId, e.joined
}
