// Package system implements the System Dispatcher (spec sec 4.2, 4.11):
// routing for isSystem packets, the host-registered control-plane
// messages used between mesh nodes (registry pushes, admin commands)
// rather than between a client and a Stage.
package system

import (
	"context"
	stderrors "errors"

	"github.com/ulala-x/playhouse/constants"
	"github.com/ulala-x/playhouse/errors"
	"github.com/ulala-x/playhouse/logger"
	"github.com/ulala-x/playhouse/route"
	"github.com/ulala-x/playhouse/sender"
)

// Handler is a stateless system-message handler.
type Handler func(ctx context.Context, s *sender.ISender, payload route.Payload) (route.Payload, constants.ErrorCode)

// Dispatcher routes inbound isSystem packets by msgId.
type Dispatcher struct {
	base     *sender.ISender
	handlers map[string]Handler
}

// NewDispatcher builds an empty Dispatcher bound to base.
func NewDispatcher(base *sender.ISender) *Dispatcher {
	return &Dispatcher{base: base, handlers: make(map[string]Handler)}
}

// Register binds msgId to handler. handles reports whether msgId has a
// registered handler, used by callers probing before routing (spec sec
// 4.2 "ISystemPanel handles()").
func (d *Dispatcher) Register(msgId string, handler Handler) {
	d.handlers[msgId] = handler
}

// Handles reports whether msgId has a registered handler.
func (d *Dispatcher) Handles(msgId string) bool {
	_, ok := d.handlers[msgId]
	return ok
}

// HandlerRegister is the one primitive a Controller uses to register its
// handlers (spec sec 9 SystemController contract). *Dispatcher satisfies
// this directly via Add.
type HandlerRegister interface {
	Add(msgId string, handler Handler)
}

// Add implements HandlerRegister.
func (d *Dispatcher) Add(msgId string, handler Handler) {
	d.Register(msgId, handler)
}

// Controller groups a related set of system handlers for host-side
// wiring at startup (spec sec 9 "SystemController.handles(register)").
type Controller interface {
	Handles(register HandlerRegister)
}

// RegisterController registers every handler c exposes.
func (d *Dispatcher) RegisterController(c Controller) {
	c.Handles(d)
}

// Dispatch invokes the handler registered for pkt's msgId.
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
			logger.Log.Errorf("system: handler panicked: %v", r)
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
	return handler(ctx, d.base, payload)
}
