package route

import "github.com/ulala-x/playhouse/constants"

// Reserved msgIds for the framework-internal commands dispatch routes on
// (spec sec 4.6.2, 4.6.3).
const (
	MsgCreateStage       = "CreateStageReq"
	MsgCreateStageRes    = "CreateStageRes"
	MsgGetOrCreateStage  = "GetOrCreateStageReq"
	MsgGetOrCreateStageRes = "GetOrCreateStageRes"
	MsgJoinStage         = "JoinStageReq"
	MsgJoinStageRes      = "JoinStageRes"
	MsgDisconnectNotice  = "DisconnectNotice"
	MsgReconnectNotice   = "ReconnectNotice"
	MsgDestroyStage      = "DestroyStage"
	MsgTimerFire         = "__TimerFire"
	MsgAsyncPostBack     = "__AsyncPostBack"
)

// TimerOp distinguishes the three timer control operations spec sec 4.3's
// timerOf factory can build.
type TimerOp uint8

const (
	TimerRepeat TimerOp = iota
	TimerCount
	TimerCancel
)

// TimerCommand is the internal payload carried by a timerOf packet.
type TimerCommand struct {
	Op           TimerOp
	TimerId      string
	InitialDelay int64 // milliseconds
	Period       int64 // milliseconds
	Count        int   // only meaningful for TimerCount
	Callback     func()
}

// AsyncPostCommand is the internal payload carried by an asyncPostOf
// packet: the offload service's post-back into the owning Stage's turn
// (spec sec 4.7.2).
type AsyncPostCommand struct {
	Post      func(result interface{}, err error)
	PreResult interface{}
	PreErr    error
}

// RoutePacket is the transport-level message: a RouteHeader plus its
// Payload (spec sec 3.2). Internal is non-nil only for packets that never
// cross the wire (TimerCommand, AsyncPostCommand) — they are enqueued
// directly into a Stage's post queue.
//
// Ownership: a RoutePacket exclusively owns its Payload. It is created by
// a sender, handed to exactly one receiver (a Transport.send call, or a
// Stage post queue), and considered consumed once that receiver finishes
// with it — mirroring spec sec 3.2's "consumed exactly once" rule; Go's
// GC does the actual reclamation, this contract only governs re-use.
type RoutePacket struct {
	Header   RouteHeader
	Payload  Payload
	Internal interface{}
}

// Of wraps an application-supplied msgId/payload into a bare RoutePacket;
// callers typically pass the result through StageOf/ApiOf/ClientOf to add
// routing metadata.
func Of(msgId string, payload Payload) *RoutePacket {
	return &RoutePacket{Header: RouteHeader{Header: Header{MsgId: msgId}}, Payload: payload}
}

// ReplyOf builds the reply RoutePacket for a request (spec sec 4.3):
// copies msgSeq/sid/accountId/isBase/isBackend from the source, sets
// isReply and errorCode, and derives isToClient from !isBackend.
func ReplyOf(serviceId uint32, source *RouteHeader, errorCode constants.ErrorCode, payload *Payload) *RoutePacket {
	p := EmptyPayload()
	if payload != nil {
		p = *payload
	}
	return &RoutePacket{
		Header: RouteHeader{
			Header: Header{
				ServiceId: serviceId,
				MsgId:     source.MsgId,
				MsgSeq:    source.MsgSeq,
				ErrorCode: errorCode,
				StageId:   source.StageId,
			},
			Sid:        source.Sid,
			AccountId:  source.AccountId,
			IsBase:     source.IsBase,
			IsBackend:  source.IsBackend,
			IsReply:    true,
			IsToClient: !source.IsBackend,
		},
		Payload: p,
	}
}

// StageOf builds a Stage-targeted server-to-server RoutePacket (spec sec 4.3).
func StageOf(stageId int64, accountId int64, msgId string, payload Payload, isBase, isBackend bool) *RoutePacket {
	return &RoutePacket{
		Header: RouteHeader{
			Header:    Header{MsgId: msgId, StageId: stageId},
			AccountId: accountId,
			IsBase:    isBase,
			IsBackend: isBackend,
		},
		Payload: payload,
	}
}

// CreateStageOf builds a CreateStageReq/GetOrCreateStageReq packet
// carrying the Stage factory key (spec sec 4.6.2).
func CreateStageOf(msgId string, stageId int64, stageType string, payload Payload) *RoutePacket {
	return &RoutePacket{
		Header: RouteHeader{
			Header:    Header{MsgId: msgId, StageId: stageId, StageType: stageType},
			IsBase:    true,
			IsBackend: true,
		},
		Payload: payload,
	}
}

// JoinStageOf builds the JoinStageReq packet the client edge synthesizes
// from a session's first authenticate frame (spec sec 4.8.2, 4.9.4).
func JoinStageOf(stageId int64, sid int64, payload Payload) *RoutePacket {
	return &RoutePacket{
		Header: RouteHeader{
			Header: Header{MsgId: MsgJoinStage, StageId: stageId},
			Sid:    sid, IsBase: true, IsBackend: true,
		},
		Payload: payload,
	}
}

// ReconnectOf builds a ReconnectNotice packet for a host application
// migrating an already-joined accountId onto a new sid out of band
// (spec sec 4.8.3), e.g. via sender.ISender.RequestReconnect.
func ReconnectOf(stageId, accountId, sid int64, payload Payload) *RoutePacket {
	return &RoutePacket{
		Header: RouteHeader{
			Header:    Header{MsgId: MsgReconnectNotice, StageId: stageId},
			Sid:       sid,
			AccountId: accountId,
			IsBase:    true, IsBackend: true,
		},
		Payload: payload,
	}
}

// ApiOf builds an API-targeted RoutePacket (spec sec 4.3).
func ApiOf(msgId string, payload Payload, isBase, isBackend bool) *RoutePacket {
	return &RoutePacket{
		Header: RouteHeader{
			Header:    Header{MsgId: msgId},
			IsBase:    isBase,
			IsBackend: isBackend,
		},
		Payload: payload,
	}
}

// ClientOf builds a Play->client push RoutePacket (spec sec 4.3). The
// Payload carries an already-encoded client-frame envelope (spec sec
// 4.9.2) so the receiving Play node can hand it straight to the target
// session's outbound writer.
func ClientOf(serviceId uint32, sid int64, stageId int64, frame []byte) *RoutePacket {
	return &RoutePacket{
		Header: RouteHeader{
			Header:     Header{ServiceId: serviceId, StageId: stageId},
			Sid:        sid,
			IsToClient: true,
		},
		Payload: NewPayload(frame),
	}
}

// TimerOf builds an internal timer-control packet (spec sec 4.3), posted
// directly into the owning Stage's queue by the Timer Service.
func TimerOf(stageId int64, cmd TimerCommand) *RoutePacket {
	return &RoutePacket{
		Header:   RouteHeader{Header: Header{MsgId: MsgTimerFire, StageId: stageId}, IsBase: true},
		Internal: cmd,
	}
}

// AsyncPostOf builds the offload service's internal post-back packet
// (spec sec 4.3, 4.7.2).
func AsyncPostOf(stageId int64, cmd AsyncPostCommand) *RoutePacket {
	return &RoutePacket{
		Header:   RouteHeader{Header: Header{MsgId: MsgAsyncPostBack, StageId: stageId}, IsBase: true},
		Internal: cmd,
	}
}
