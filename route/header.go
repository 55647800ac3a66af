// Package route implements the mesh-level message model: Header,
// RouteHeader, Payload and RoutePacket (spec sec 3.2, 4.3), plus the
// client-facing ClientPacket view (spec sec 3.2).
package route

import "github.com/ulala-x/playhouse/constants"

// MaxMsgIDBytes is the wire limit on Header.MsgId (spec sec 3.2: "msgId <= 255 bytes UTF-8").
const MaxMsgIDBytes = 255

// Header is the application-level envelope carried by both RoutePacket and
// ClientPacket (spec sec 3.2).
type Header struct {
	ServiceId uint32
	MsgId     string
	MsgSeq    uint32
	ErrorCode constants.ErrorCode
	StageId   int64

	// StageType carries the Stage factory key on CreateStageReq/
	// GetOrCreateStageReq only (spec sec 4.6.2); empty on every other
	// packet.
	StageType string

	// IsCreated is the reply-only signal for GetOrCreateStageRes (spec
	// sec 4.5.2, 4.6.2): true when this call's Stage was freshly
	// created, false when an existing one was returned. Meaningless on
	// every other message.
	IsCreated bool
}

// RouteHeader is Header plus the mesh routing metadata (spec sec 3.2, 4.3).
//
// From is filled in by the receiving Mesh Transport from the ZeroMQ
// identity frame, never trusted from the sender's serialized bytes (spec
// sec 4.1, 9 "Transport-supplied identity"): it intentionally has no wire
// tag and EncodeRouteHeader never encodes it.
//
// IsToClient is computed locally by ReplyOf (and set by ClientOf) and is
// never put on the wire
// either — it only steers the sending node's own routing decision
// (forward to a client-edge session vs. to another Stage/API node).
type RouteHeader struct {
	Header

	From       string
	Sid        int64
	AccountId  int64
	IsSystem   bool
	IsBase     bool
	IsBackend  bool
	IsReply    bool
	IsToClient bool
}

// GetFrom/GetMsgSeq/GetStageId satisfy the pcontext.RouteHeader interface
// so *RouteHeader can ride in a context.Context without an import cycle.
func (h *RouteHeader) GetFrom() string    { return h.From }
func (h *RouteHeader) GetMsgSeq() uint32  { return h.MsgSeq }
func (h *RouteHeader) GetStageId() int64  { return h.StageId }
func (h *RouteHeader) GetAccountId() int64 { return h.AccountId }

// Clone returns a shallow copy safe to mutate independently (e.g. ReplyOf
// building a reply from a source header it must not modify in place).
func (h RouteHeader) Clone() RouteHeader {
	return h
}
