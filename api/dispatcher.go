// Package api implements the API Dispatcher (spec sec 4.11): a
// stateless table of msgId -> handler for requests that do not belong
// to any Stage (account lookup, matchmaking, lobby operations).
package api

import (
	"context"
	stderrors "errors"

	"github.com/ulala-x/playhouse/constants"
	"github.com/ulala-x/playhouse/errors"
	"github.com/ulala-x/playhouse/logger"
	"github.com/ulala-x/playhouse/route"
	"github.com/ulala-x/playhouse/sender"
)

// Handler is a stateless API request handler (spec sec 4.11). It
// returns a reply payload and error code; the Dispatcher replies on the
// handler's behalf so handlers never touch ISender.reply directly.
type Handler func(ctx context.Context, s *sender.ApiSender, payload route.Payload) (route.Payload, constants.ErrorCode)

// Dispatcher routes inbound ApiOf packets to a registered Handler by
// msgId (spec sec 4.11).
type Dispatcher struct {
	base     *sender.ISender
	handlers map[string]Handler
}

// NewDispatcher builds an empty Dispatcher bound to base, the shared
// ISender every handler's ApiSender wraps.
func NewDispatcher(base *sender.ISender) *Dispatcher {
	return &Dispatcher{base: base, handlers: make(map[string]Handler)}
}

// Register binds msgId to handler.
func (d *Dispatcher) Register(msgId string, handler Handler) {
	d.handlers[msgId] = handler
}

// HandlerRegister is the one primitive a Controller uses to register its
// handlers (spec sec 6.3 "API controller list"): add binds a single
// msgId to a single Handler. *Dispatcher satisfies this directly via Add
// rather than through a separate builder type, since a controller never
// needs anything beyond "bind msgId to handler" (spec sec 9: "prefer
// explicit registration over reflection-based DI").
type HandlerRegister interface {
	Add(msgId string, handler Handler)
}

// Add implements HandlerRegister.
func (d *Dispatcher) Add(msgId string, handler Handler) {
	d.Register(msgId, handler)
}

// Controller groups a related set of API handlers for host-side wiring
// at startup (spec sec 6.3 IApiController.handles(IHandlerRegister)).
type Controller interface {
	Handles(register HandlerRegister)
}

// RegisterController registers every handler c exposes.
func (d *Dispatcher) RegisterController(c Controller) {
	c.Handles(d)
}

// Dispatch invokes the handler registered for pkt's msgId, replying
// NotRegisteredMessage if none exists and UncheckedContentsError if the
// handler panics, unless the panic value carries an *errors.Error, whose
// code is replied instead (spec sec 4.11).
func (d *Dispatcher) Dispatch(ctx context.Context, pkt *route.RoutePacket) {
	handler, ok := d.handlers[pkt.Header.MsgId]
	if !ok {
		d.base.Reply(ctx, constants.NotRegisteredMessage, nil)
		return
	}

	payload, code := d.invoke(ctx, handler, pkt.Payload)
	if pkt.Header.MsgSeq != 0 {
		d.base.Reply(ctx, code, &payload)
	}
}

func (d *Dispatcher) invoke(ctx context.Context, handler Handler, payload route.Payload) (result route.Payload, code constants.ErrorCode) {
	defer func() {
		if r := recover(); r != nil {
			logger.Log.Errorf("api: handler panicked: %v", r)
			result = route.EmptyPayload()
			code = constants.UncheckedContentsError
			if err, ok := r.(error); ok {
				var pe *errors.Error
				if stderrors.As(err, &pe) {
					code = pe.Code
				}
			}
		}
	}()
	as := &sender.ApiSender{ISender: d.base}
	return handler(ctx, as, payload)
}
