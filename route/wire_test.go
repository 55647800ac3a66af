package route

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ulala-x/playhouse/constants"
)

func TestEncodeDecodeRouteHeaderRoundTrip(t *testing.T) {
	h := &RouteHeader{
		Header: Header{
			ServiceId: 7,
			MsgId:     "JoinStageReq",
			MsgSeq:    42,
			ErrorCode: constants.Success,
			StageId:   1234567890,
			StageType: "lobby",
		},
		Sid:       99,
		AccountId: 555,
		IsBase:    true,
		IsBackend: true,
		IsReply:   false,
	}

	encoded := EncodeRouteHeader(h)
	decoded, err := DecodeRouteHeader(encoded)
	require.NoError(t, err)

	assert.Equal(t, h.ServiceId, decoded.ServiceId)
	assert.Equal(t, h.MsgId, decoded.MsgId)
	assert.Equal(t, h.MsgSeq, decoded.MsgSeq)
	assert.Equal(t, h.ErrorCode, decoded.ErrorCode)
	assert.Equal(t, h.StageId, decoded.StageId)
	assert.Equal(t, h.StageType, decoded.StageType)
	assert.Equal(t, h.Sid, decoded.Sid)
	assert.Equal(t, h.AccountId, decoded.AccountId)
	assert.True(t, decoded.IsBase)
	assert.True(t, decoded.IsBackend)
	assert.False(t, decoded.IsReply)

	// From is never carried on the wire; the transport fills it in later.
	assert.Empty(t, decoded.From)
}

func TestEncodeRouteHeaderOmitsZeroFields(t *testing.T) {
	h := &RouteHeader{Header: Header{MsgId: "Ping"}}
	encoded := EncodeRouteHeader(h)
	decoded, err := DecodeRouteHeader(encoded)
	require.NoError(t, err)

	assert.Equal(t, "Ping", decoded.MsgId)
	assert.Zero(t, decoded.ServiceId)
	assert.Zero(t, decoded.StageId)
	assert.Empty(t, decoded.StageType)
	assert.False(t, decoded.IsBase)
}

func TestEncodeRouteHeaderBoolFieldsRoundTrip(t *testing.T) {
	h := &RouteHeader{IsSystem: true, IsReply: true}
	decoded, err := DecodeRouteHeader(EncodeRouteHeader(h))
	require.NoError(t, err)
	assert.True(t, decoded.IsSystem)
	assert.True(t, decoded.IsReply)
	assert.False(t, decoded.IsBase)
	assert.False(t, decoded.IsBackend)
}

func TestDecodeRouteHeaderSkipsUnknownFields(t *testing.T) {
	h := &RouteHeader{Header: Header{MsgId: "X"}}
	encoded := EncodeRouteHeader(h)

	// A well-formed but unrecognized varint field (99) appended after the
	// known fields must be skipped, not fail decoding (forward compat).
	unknown := appendBool(nil, 99, true)
	encoded = append(encoded, unknown...)

	decoded, err := DecodeRouteHeader(encoded)
	require.NoError(t, err)
	assert.Equal(t, "X", decoded.MsgId)
}

func TestDecodeRouteHeaderMalformedErrors(t *testing.T) {
	_, err := DecodeRouteHeader([]byte{0xFF})
	assert.Error(t, err)
}
