// Copyright (c) TFG Co. All Rights Reserved.
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

// Package context carries execution-scoped values across the async
// boundaries a Stage turn or API handler crosses (requestToX awaits,
// asyncCompute/asyncIO post-backs). currentHeader in particular is
// specified as a per-execution-context value rather than a process
// global, so it rides here as an ordinary context.Context value instead
// of a package variable.
package context

import (
	"context"
	"encoding/json"
)

type ctxKey int

const (
	propagateKey ctxKey = iota
	currentHeaderKey
)

// RouteHeader is the minimal shape context needs from route.RouteHeader;
// kept local to avoid an import cycle (route never depends on context).
type RouteHeader interface {
	GetFrom() string
	GetMsgSeq() uint32
	GetStageId() int64
}

// AddToPropagateCtx adds a key and value that will be propagated through
// any further mesh requests issued from this turn (requestToApi,
// requestToStage, ...).
func AddToPropagateCtx(ctx context.Context, key string, val interface{}) context.Context {
	propagate := ToMap(ctx)
	propagate[key] = val
	return context.WithValue(ctx, propagateKey, propagate)
}

// GetFromPropagateCtx reads a previously propagated value, or nil.
func GetFromPropagateCtx(ctx context.Context, key string) interface{} {
	if val, ok := ToMap(ctx)[key]; ok {
		return val
	}
	return nil
}

// ToMap returns the propagated key/value set as a plain map.
func ToMap(ctx context.Context) map[string]interface{} {
	if ctx == nil {
		return map[string]interface{}{}
	}
	if p, ok := ctx.Value(propagateKey).(map[string]interface{}); ok {
		return p
	}
	return map[string]interface{}{}
}

// FromMap creates a new context carrying the given propagated values.
func FromMap(val map[string]interface{}) context.Context {
	return context.WithValue(context.Background(), propagateKey, val)
}

// Encode serializes the propagated values for transmission across the mesh.
func Encode(ctx context.Context) ([]byte, error) {
	m := ToMap(ctx)
	if len(m) == 0 {
		return nil, nil
	}
	return json.Marshal(m)
}

// Decode rebuilds a context from bytes produced by Encode.
func Decode(b []byte) (context.Context, error) {
	if len(b) == 0 {
		return context.Background(), nil
	}
	m := make(map[string]interface{})
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return FromMap(m), nil
}

// WithCurrentHeader attaches the header of the packet presently being
// handled. The Stage event loop (spec sec 4.6.1) and the API dispatcher
// (spec sec 4.11) set this at the start of a turn/handler invocation;
// reply() (ISender, spec sec 4.5.1) reads it back to address the
// originator. It is discarded along with the context at the end of the
// turn, so concurrent turns on different Stages never observe each
// other's header.
func WithCurrentHeader(ctx context.Context, h RouteHeader) context.Context {
	return context.WithValue(ctx, currentHeaderKey, h)
}

// CurrentHeader returns the header set by WithCurrentHeader, or nil if ctx
// was not produced by a Stage turn or an API/system handler invocation
// (e.g. a fire-and-forget background goroutine has none).
func CurrentHeader(ctx context.Context) RouteHeader {
	if ctx == nil {
		return nil
	}
	h, _ := ctx.Value(currentHeaderKey).(RouteHeader)
	return h
}
