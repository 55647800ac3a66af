package route

import "github.com/ulala-x/playhouse/constants"

// ClientPacket is the application-level view of a RoutePacket at the
// client edge (spec sec 3.2). MsgSeq is 16-bit on the wire (spec sec
// 4.9.2) even though the mesh-internal RouteHeader widens it to 32 bits
// for uniform varint handling.
type ClientPacket struct {
	MsgId     string
	MsgSeq    uint16
	StageId   int64
	ErrorCode constants.ErrorCode
	Payload   []byte
}

// ToRouteHeader lifts a ClientPacket's addressing fields into a Header,
// used when a client frame is translated into a RoutePacket bound for a
// Stage (spec sec 4.9.4).
func (c *ClientPacket) ToRouteHeader(serviceId uint32) Header {
	return Header{
		ServiceId: serviceId,
		MsgId:     c.MsgId,
		MsgSeq:    uint32(c.MsgSeq),
		ErrorCode: c.ErrorCode,
		StageId:   c.StageId,
	}
}
