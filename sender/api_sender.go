package sender

import (
	"context"
	"time"

	"github.com/ulala-x/playhouse/constants"
	"github.com/ulala-x/playhouse/nid"
	"github.com/ulala-x/playhouse/route"
)

// ApiSender is IApiSender (spec sec 4.5.2): the stage-lifecycle requests
// an API handler can issue against a Play node.
type ApiSender struct {
	*ISender
}

// CreateStage asks a Play node to create a new Stage of stageType (spec
// sec 4.6.2 CreateStageReq). onComplete receives the new stageId encoded
// in the reply payload by the caller's own handler; this facade only
// plumbs the request/reply round trip.
func (a *ApiSender) CreateStage(ctx context.Context, playNid nid.NID, stageId int64, stageType string, payload route.Payload, timeout time.Duration, onComplete func(constants.ErrorCode, *route.RoutePacket)) {
	pkt := route.CreateStageOf(route.MsgCreateStage, stageId, stageType, payload)
	a.request(playNid, pkt, timeout, onComplete)
}

// GetOrCreateStage asks a Play node to return an existing Stage or
// create one if absent (spec sec 4.6.2 GetOrCreateStageReq).
func (a *ApiSender) GetOrCreateStage(ctx context.Context, playNid nid.NID, stageId int64, stageType string, payload route.Payload, timeout time.Duration, onComplete func(constants.ErrorCode, *route.RoutePacket)) {
	pkt := route.CreateStageOf(route.MsgGetOrCreateStage, stageId, stageType, payload)
	a.request(playNid, pkt, timeout, onComplete)
}
