// Package requestcache implements the correlation layer (spec sec 4.4):
// it matches replies to outstanding requestToX calls across async
// boundaries, with a bounded, swept timeout.
package requestcache

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/ulala-x/playhouse/constants"
	"github.com/ulala-x/playhouse/logger"
	"github.com/ulala-x/playhouse/metrics"
	"github.com/ulala-x/playhouse/route"
)

// PendingReply is one outstanding request awaiting a reply or expiry
// (spec sec 3.3, 4.4). Completion is delivered exactly once, through
// whatever onComplete the sender registered at Put time — a channel
// resolution for the promise style, or a post back into a Stage's event
// queue for the callback style (spec sec 4.4: "completion is posted to
// the same dispatch path as a normal packet").
type PendingReply struct {
	Deadline   time.Time
	onComplete func(code constants.ErrorCode, pkt *route.RoutePacket)
	once       sync.Once
}

// NewPendingReply builds a pending reply that calls onComplete exactly
// once, whichever of OnReply/expiry/Cancel happens first.
func NewPendingReply(deadline time.Time, onComplete func(code constants.ErrorCode, pkt *route.RoutePacket)) *PendingReply {
	return &PendingReply{Deadline: deadline, onComplete: onComplete}
}

func (p *PendingReply) complete(code constants.ErrorCode, pkt *route.RoutePacket) {
	p.once.Do(func() {
		p.onComplete(code, pkt)
	})
}

// RequestCache is the per-node pending-reply table (spec sec 4.4).
type RequestCache struct {
	mu             sync.Mutex
	pending        map[uint32]*PendingReply
	seq            uint32
	defaultTimeout time.Duration
	nid            string

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// New builds a RequestCache with the given default request timeout
// (spec sec 6.4 requestTimeoutMs, default 30s).
func New(nid string, defaultTimeout time.Duration) *RequestCache {
	return &RequestCache{
		pending:        make(map[uint32]*PendingReply),
		defaultTimeout: defaultTimeout,
		nid:            nid,
	}
}

// NextSeq allocates the next non-zero msgSeq, wrapping 1..65535 (spec sec 3.1).
func (c *RequestCache) NextSeq() uint32 {
	for {
		n := atomic.AddUint32(&c.seq, 1)
		v := (n-1)%65535 + 1
		return v
	}
}

// Put registers a pending reply under seq. seq must be non-zero (spec
// sec 8.1 invariant 3): fire-and-forget sends never call Put.
func (c *RequestCache) Put(seq uint32, pr *PendingReply) {
	c.mu.Lock()
	c.pending[seq] = pr
	n := len(c.pending)
	c.mu.Unlock()
	metrics.PendingRequests.WithLabelValues(c.nid).Set(float64(n))
}

// OnReply completes the pending reply matching pkt's msgSeq. A reply with
// no matching seq is not fatal: it is logged at warn (spec sec 4.4
// "Reply-on-no-Req-Seq").
func (c *RequestCache) OnReply(pkt *route.RoutePacket) {
	seq := pkt.Header.MsgSeq
	c.mu.Lock()
	pr, ok := c.pending[seq]
	if ok {
		delete(c.pending, seq)
	}
	n := len(c.pending)
	c.mu.Unlock()
	metrics.PendingRequests.WithLabelValues(c.nid).Set(float64(n))

	if !ok {
		logger.Log.Warnf("requestcache: no such request, msgId=%s msgSeq=%d from=%s",
			pkt.Header.MsgId, seq, pkt.Header.From)
		return
	}
	pr.complete(pkt.Header.ErrorCode, pkt)
}

// Len reports the current number of outstanding requests (used by tests
// asserting the cache drains after a timeout, spec sec 8.2 S4).
func (c *RequestCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// Start launches the background expiry sweeper (spec sec 4.4
// checkExpire), polling every period.
func (c *RequestCache) Start(period time.Duration) {
	c.stopCh = make(chan struct{})
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		t := time.NewTicker(period)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				c.checkExpire()
			case <-c.stopCh:
				return
			}
		}
	}()
}

// Stop halts the sweeper and fails every outstanding request with
// ShuttingDown (spec sec 5 "Node shutdown ... fail all pending replies
// with a ShuttingDown code").
func (c *RequestCache) Stop() {
	if c.stopCh != nil {
		close(c.stopCh)
		c.wg.Wait()
	}
	c.mu.Lock()
	remaining := c.pending
	c.pending = make(map[uint32]*PendingReply)
	c.mu.Unlock()
	for _, pr := range remaining {
		pr.complete(constants.ShuttingDown, nil)
	}
}

func (c *RequestCache) checkExpire() {
	now := time.Now()
	var expired []*PendingReply
	c.mu.Lock()
	for seq, pr := range c.pending {
		if now.After(pr.Deadline) {
			expired = append(expired, pr)
			delete(c.pending, seq)
		}
	}
	n := len(c.pending)
	c.mu.Unlock()
	metrics.PendingRequests.WithLabelValues(c.nid).Set(float64(n))

	for _, pr := range expired {
		pr.complete(constants.RequestTimeout, nil)
	}
}

// DefaultTimeout returns the cache's configured default request timeout.
func (c *RequestCache) DefaultTimeout() time.Duration { return c.defaultTimeout }
