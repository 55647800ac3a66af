package route

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/ulala-x/playhouse/constants"
)

// Wire field numbers for RouteHeader (spec sec 4.3). The teacher's own
// protos/bind.pb.go is protoc-generated and cannot be hand-edited to this
// schema without running protoc (its raw file descriptor bytes describe
// a single BindMsg{uid,fid}, not this header) — see DESIGN.md. Instead
// the schema is encoded/decoded directly against these field numbers
// using the low-level google.golang.org/protobuf/encoding/protowire
// API, which needs no generated code and produces standard protobuf
// wire bytes ("Protocol-Buffers-shaped", spec sec 4.1).
const (
	fieldServiceId = protowire.Number(1)
	fieldMsgId     = protowire.Number(2)
	fieldMsgSeq    = protowire.Number(3)
	fieldErrorCode = protowire.Number(4)
	fieldStageId   = protowire.Number(5)
	fieldSid       = protowire.Number(6)
	fieldIsSystem  = protowire.Number(7)
	fieldIsBase    = protowire.Number(8)
	fieldIsBackend = protowire.Number(9)
	fieldIsReply   = protowire.Number(10)
	fieldAccountId = protowire.Number(11)
	fieldStageType = protowire.Number(12)
	fieldIsCreated = protowire.Number(13)
)

func appendBool(b []byte, num protowire.Number, v bool) []byte {
	if !v {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, 1)
}

// EncodeRouteHeader serializes h's wire fields (spec sec 4.3). From and
// IsToClient are local-only and are never written.
func EncodeRouteHeader(h *RouteHeader) []byte {
	var b []byte
	if h.ServiceId != 0 {
		b = protowire.AppendTag(b, fieldServiceId, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(h.ServiceId))
	}
	if h.MsgId != "" {
		b = protowire.AppendTag(b, fieldMsgId, protowire.BytesType)
		b = protowire.AppendString(b, h.MsgId)
	}
	if h.MsgSeq != 0 {
		b = protowire.AppendTag(b, fieldMsgSeq, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(h.MsgSeq))
	}
	if h.ErrorCode != constants.Success {
		b = protowire.AppendTag(b, fieldErrorCode, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(h.ErrorCode))
	}
	if h.StageId != 0 {
		b = protowire.AppendTag(b, fieldStageId, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(h.StageId))
	}
	if h.Sid != 0 {
		b = protowire.AppendTag(b, fieldSid, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(h.Sid))
	}
	b = appendBool(b, fieldIsSystem, h.IsSystem)
	b = appendBool(b, fieldIsBase, h.IsBase)
	b = appendBool(b, fieldIsBackend, h.IsBackend)
	b = appendBool(b, fieldIsReply, h.IsReply)
	if h.AccountId != 0 {
		b = protowire.AppendTag(b, fieldAccountId, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(h.AccountId))
	}
	if h.StageType != "" {
		b = protowire.AppendTag(b, fieldStageType, protowire.BytesType)
		b = protowire.AppendString(b, h.StageType)
	}
	b = appendBool(b, fieldIsCreated, h.IsCreated)
	return b
}

// DecodeRouteHeader parses bytes produced by EncodeRouteHeader. From is
// left zero-valued: the Mesh Transport fills it in from the ZeroMQ
// identity frame after this call returns (spec sec 4.1, 9).
func DecodeRouteHeader(b []byte) (*RouteHeader, error) {
	h := &RouteHeader{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, fmt.Errorf("route: malformed header tag: %w", protowire.ParseError(n))
		}
		b = b[n:]

		switch num {
		case fieldServiceId:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, fmt.Errorf("route: malformed serviceId")
			}
			h.ServiceId = uint32(v)
			b = b[n:]
		case fieldMsgId:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return nil, fmt.Errorf("route: malformed msgId")
			}
			h.MsgId = v
			b = b[n:]
		case fieldMsgSeq:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, fmt.Errorf("route: malformed msgSeq")
			}
			h.MsgSeq = uint32(v)
			b = b[n:]
		case fieldErrorCode:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, fmt.Errorf("route: malformed errorCode")
			}
			h.ErrorCode = constants.ErrorCode(v)
			b = b[n:]
		case fieldStageId:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, fmt.Errorf("route: malformed stageId")
			}
			h.StageId = int64(v)
			b = b[n:]
		case fieldSid:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, fmt.Errorf("route: malformed sid")
			}
			h.Sid = int64(v)
			b = b[n:]
		case fieldIsSystem:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, fmt.Errorf("route: malformed isSystem")
			}
			h.IsSystem = v != 0
			b = b[n:]
		case fieldIsBase:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, fmt.Errorf("route: malformed isBase")
			}
			h.IsBase = v != 0
			b = b[n:]
		case fieldIsBackend:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, fmt.Errorf("route: malformed isBackend")
			}
			h.IsBackend = v != 0
			b = b[n:]
		case fieldIsReply:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, fmt.Errorf("route: malformed isReply")
			}
			h.IsReply = v != 0
			b = b[n:]
		case fieldAccountId:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, fmt.Errorf("route: malformed accountId")
			}
			h.AccountId = int64(v)
			b = b[n:]
		case fieldStageType:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return nil, fmt.Errorf("route: malformed stageType")
			}
			h.StageType = v
			b = b[n:]
		case fieldIsCreated:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, fmt.Errorf("route: malformed isCreated")
			}
			h.IsCreated = v != 0
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, fmt.Errorf("route: malformed unknown field %d", num)
			}
			b = b[n:]
		}
	}
	return h, nil
}
