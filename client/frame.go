// Package client implements the Client Edge (spec sec 4.9): the
// length-prefixed frame envelope, LZ4 compression above a size
// threshold, and the TCP/WebSocket session that bridges a client socket
// to the mesh.
package client

import (
	"encoding/binary"
	"errors"
	"io"

	"github.com/ulala-x/playhouse/constants"
	"github.com/ulala-x/playhouse/route"
)

// ErrFrameTooLarge is returned when a decoded frame's body exceeds
// constants.MaxClientBodySize (spec sec 4.9.2, 7 PayloadTooLarge).
var ErrFrameTooLarge = errors.New("client: frame exceeds max body size")

// InboundFrame is the client->server wire envelope (spec sec 4.9.2): no
// errorCode or compression metadata, since only server->client frames
// carry those. Multi-byte integer fields are big-endian (see DESIGN.md
// Open Question decision).
//
//	bodySize uint32 // bytes following this field
//	msgIdLen uint8
//	msgId    []byte // msgIdLen bytes, UTF-8
//	msgSeq   uint16
//	stageId  int64
//	body     []byte
type InboundFrame struct {
	MsgId   string
	MsgSeq  uint16
	StageId int64
	Body    []byte
}

const inboundFixedHeaderLen = 1 /*msgIdLen*/ + 2 /*msgSeq*/ + 8 /*stageId*/

// ReadFrame reads one client->server frame off r, enforcing
// MaxClientBodySize before allocating the body buffer (spec sec 4.9.2, 7
// "PayloadTooLarge").
func ReadFrame(r io.Reader) (*InboundFrame, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	totalLen := binary.BigEndian.Uint32(lenBuf[:])
	if totalLen < inboundFixedHeaderLen {
		return nil, errors.New("client: frame shorter than fixed header")
	}
	if int64(totalLen) > int64(inboundFixedHeaderLen+route.MaxMsgIDBytes+constants.MaxClientBodySize) {
		return nil, ErrFrameTooLarge
	}

	payload := make([]byte, totalLen)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, err
	}

	off := 0
	msgIdLen := int(payload[off])
	off++
	if off+msgIdLen > len(payload) {
		return nil, errors.New("client: malformed msgId length")
	}
	msgId := string(payload[off : off+msgIdLen])
	off += msgIdLen

	if off+(inboundFixedHeaderLen-1) > len(payload) {
		return nil, errors.New("client: truncated frame")
	}
	msgSeq := binary.BigEndian.Uint16(payload[off:])
	off += 2
	stageId := int64(binary.BigEndian.Uint64(payload[off:]))
	off += 8

	bodySize := len(payload) - off
	if bodySize > constants.MaxClientBodySize {
		return nil, ErrFrameTooLarge
	}
	body := payload[off:]

	return &InboundFrame{MsgId: msgId, MsgSeq: msgSeq, StageId: stageId, Body: body}, nil
}

// EncodeInbound builds the wire bytes for a client->server frame. Only
// tests simulating a client use this; the server side never writes the
// inbound layout.
func EncodeInbound(f *InboundFrame) ([]byte, error) {
	if len(f.MsgId) > route.MaxMsgIDBytes {
		return nil, errors.New("client: msgId too long")
	}
	inner := inboundFixedHeaderLen + len(f.MsgId) + len(f.Body)
	buf := make([]byte, 4+inner)
	binary.BigEndian.PutUint32(buf[0:4], uint32(inner))

	off := 4
	buf[off] = byte(len(f.MsgId))
	off++
	copy(buf[off:], f.MsgId)
	off += len(f.MsgId)
	binary.BigEndian.PutUint16(buf[off:], f.MsgSeq)
	off += 2
	binary.BigEndian.PutUint64(buf[off:], uint64(f.StageId))
	off += 8
	copy(buf[off:], f.Body)

	return buf, nil
}

// ToClientPacket converts a decoded InboundFrame into the ClientPacket
// used by the rest of the pipeline. Client->server frames are never
// compressed (spec sec 4.9.3 only compresses server->client pushes), so
// there is nothing to decompress.
func (f *InboundFrame) ToClientPacket() *route.ClientPacket {
	return &route.ClientPacket{MsgId: f.MsgId, MsgSeq: f.MsgSeq, StageId: f.StageId, Payload: f.Body}
}

// OutboundFrame is the server->client wire envelope (spec sec 4.9.2): the
// client->server fixed header plus the errorCode and compression
// metadata that layout omits.
//
//	bodySize     uint32 // bytes following this field
//	msgIdLen     uint8
//	msgId        []byte // msgIdLen bytes, UTF-8
//	msgSeq       uint16
//	stageId      int64
//	errorCode    uint16
//	originalSize uint32 // 0 = uncompressed; nonzero = pre-compression length
//	body         []byte
type OutboundFrame struct {
	MsgId        string
	MsgSeq       uint16
	StageId      int64
	ErrorCode    constants.ErrorCode
	OriginalSize uint32
	Body         []byte
}

const outboundFixedHeaderLen = 1 /*msgIdLen*/ + 2 /*msgSeq*/ + 8 /*stageId*/ + 2 /*errorCode*/ + 4 /*originalSize*/

// EncodeOutbound builds the wire frame for a server->client push or
// reply, compressing the body first if it meets the threshold (spec sec
// 4.9.3).
func EncodeOutbound(msgId string, msgSeq uint16, stageId int64, errorCode constants.ErrorCode, body []byte) ([]byte, error) {
	out, originalSize, err := Compress(body)
	if err != nil {
		return nil, err
	}
	return EncodeFrame(&OutboundFrame{
		MsgId: msgId, MsgSeq: msgSeq, StageId: stageId,
		ErrorCode: errorCode, OriginalSize: originalSize, Body: out,
	})
}

// EncodeFrame serializes f into the wire envelope, including the
// leading bodySize field.
func EncodeFrame(f *OutboundFrame) ([]byte, error) {
	if len(f.MsgId) > route.MaxMsgIDBytes {
		return nil, errors.New("client: msgId too long")
	}

	inner := outboundFixedHeaderLen + len(f.MsgId) + len(f.Body)
	buf := make([]byte, 4+inner)
	binary.BigEndian.PutUint32(buf[0:4], uint32(inner))

	off := 4
	buf[off] = byte(len(f.MsgId))
	off++
	copy(buf[off:], f.MsgId)
	off += len(f.MsgId)
	binary.BigEndian.PutUint16(buf[off:], f.MsgSeq)
	off += 2
	binary.BigEndian.PutUint64(buf[off:], uint64(f.StageId))
	off += 8
	binary.BigEndian.PutUint16(buf[off:], uint16(f.ErrorCode))
	off += 2
	binary.BigEndian.PutUint32(buf[off:], f.OriginalSize)
	off += 4
	copy(buf[off:], f.Body)

	return buf, nil
}

// ReadOutboundFrame reads one server->client frame off r. Production
// code only ever writes this layout; reading it back is for tests
// simulating the client side of a push/reply.
func ReadOutboundFrame(r io.Reader) (*OutboundFrame, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	totalLen := binary.BigEndian.Uint32(lenBuf[:])
	if totalLen < outboundFixedHeaderLen {
		return nil, errors.New("client: frame shorter than fixed header")
	}

	payload := make([]byte, totalLen)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, err
	}

	off := 0
	msgIdLen := int(payload[off])
	off++
	if off+msgIdLen > len(payload) {
		return nil, errors.New("client: malformed msgId length")
	}
	msgId := string(payload[off : off+msgIdLen])
	off += msgIdLen

	if off+(outboundFixedHeaderLen-1) > len(payload) {
		return nil, errors.New("client: truncated frame")
	}
	msgSeq := binary.BigEndian.Uint16(payload[off:])
	off += 2
	stageId := int64(binary.BigEndian.Uint64(payload[off:]))
	off += 8
	errorCode := constants.ErrorCode(binary.BigEndian.Uint16(payload[off:]))
	off += 2
	originalSize := binary.BigEndian.Uint32(payload[off:])
	off += 4
	body := payload[off:]

	return &OutboundFrame{
		MsgId: msgId, MsgSeq: msgSeq, StageId: stageId,
		ErrorCode: errorCode, OriginalSize: originalSize, Body: body,
	}, nil
}

// Decode reverses Compress on f.Body using OriginalSize as the
// compressed/uncompressed discriminator (spec sec 4.9.2).
func (f *OutboundFrame) Decode() ([]byte, error) {
	return Decompress(f.Body, f.OriginalSize)
}
