// Copyright (c) nano Author and TFG Co. All Rights Reserved.
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

// Package agent implements the per-connection client-edge session (spec
// sec 4.9.4, 4.9.5): the outbound ordered writer, heartbeat ticker, and
// idle-eviction clock sitting between a raw net.Conn/*websocket.Conn and
// the mesh. Structurally this is the teacher's agentImpl
// (agent/agent.go in byte4fun-pitaya) generalized from pitaya's
// route/session model to this project's ClientPacket/NetworkEntity
// model: the outbound channel shape is kept (one FIFO queue; there is no
// delayed-push buffer), the
// handshake/serializer/session machinery it rode on is not part of this
// spec and is gone.
package agent

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ulala-x/playhouse/constants"
	"github.com/ulala-x/playhouse/logger"
	"github.com/ulala-x/playhouse/metrics"
)

// ErrBrokenPipe is returned by PushFrame once the agent's outbound
// channel has been closed (spec sec 4.9.5 "a write to a closing session
// fails cleanly instead of panicking on a closed channel").
var ErrBrokenPipe = errors.New("agent: broken pipe")

// Conn is the minimal socket contract both the TCP and WebSocket
// transports (spec sec 4.9.1) satisfy, letting Agent stay transport
// agnostic the same way the teacher's agentImpl wraps a bare net.Conn.
type Conn interface {
	io_Writer
	io_Closer
	RemoteAddr() net.Addr
}

type io_Writer interface{ Write(p []byte) (int, error) }
type io_Closer interface{ Close() error }

// Agent is one client socket's session state: outbound ordered writer,
// heartbeat clock, idle-eviction clock (spec sec 4.9.4, 4.9.5).
type Agent struct {
	conn Conn
	nid  string // owning node's nid, used only as the metrics label

	chSend chan []byte   // outbound frame queue, drained in FIFO order
	chDie  chan struct{} // closed exactly once, signals all loops to stop

	closeMutex sync.Mutex
	closed     int32

	lastAt int64 // unix nanoseconds of last heartbeat/activity

	status int32

	heartbeatInterval time.Duration
	idleTimeout       time.Duration

	outboxCapacity int
}

// New builds an Agent wrapping conn. outboxSize bounds the outbound
// frame queue (spec sec 6.4 clientOutboxHighWaterBytes is enforced in
// frame-count terms here, matching the teacher's messagesBufferSize).
func New(conn Conn, nid string, outboxSize int, heartbeatInterval, idleTimeout time.Duration) *Agent {
	if outboxSize <= 0 {
		outboxSize = 256
	}
	a := &Agent{
		conn:              conn,
		nid:               nid,
		chSend:            make(chan []byte, outboxSize),
		chDie:             make(chan struct{}),
		heartbeatInterval: heartbeatInterval,
		idleTimeout:       idleTimeout,
		outboxCapacity:    outboxSize,
		status:            constants.StatusStart,
	}
	a.SetLastAt()
	return a
}

// Serve launches the agent's background loops: the outbound writer and
// the heartbeat/idle-eviction ticker. Both stop when Close is called.
func (a *Agent) Serve() {
	go a.writeLoop()
	go a.heartbeatLoop()
	metrics.ConnectedClients.WithLabelValues(a.nid).Inc()
}

// PushFrame implements networkentity.NetworkEntity: enqueues an
// already-encoded frame for the outbound writer, never blocking the
// caller on socket I/O (spec sec 4.9.4). A full outbox closes the
// session rather than applying backpressure to the Stage turn that
// produced the push (spec sec 4.9.5 "a slow client must not be able to
// stall a Stage").
func (a *Agent) PushFrame(frame []byte) error {
	if atomic.LoadInt32(&a.closed) == 1 {
		return ErrBrokenPipe
	}
	select {
	case a.chSend <- frame:
		metrics.ReportChannelCapacity(a.channelLabel(), a.outboxCapacity-len(a.chSend))
		return nil
	default:
		logger.Log.Warnf("agent: outbox full for %s, closing session", a.String())
		_ = a.Close()
		return ErrBrokenPipe
	}
}

func (a *Agent) channelLabel() string {
	return fmt.Sprintf("agent-outbox-%s", a.String())
}

func (a *Agent) writeLoop() {
	for {
		select {
		case frame := <-a.chSend:
			if _, err := a.conn.Write(frame); err != nil {
				logger.Log.Warnf("agent: write failed for %s: %v", a.String(), err)
				_ = a.Close()
				return
			}
		case <-a.chDie:
			return
		}
	}
}

func (a *Agent) heartbeatLoop() {
	ticker := time.NewTicker(a.heartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if a.idleTimeout > 0 && a.idleElapsed() > a.idleTimeout {
				logger.Log.Debugf("agent: idle timeout, closing %s", a.String())
				_ = a.Close()
				return
			}
			if err := a.PushFrame(HeartbeatFrame()); err != nil {
				return
			}
		case <-a.chDie:
			return
		}
	}
}

func (a *Agent) idleElapsed() time.Duration {
	last := atomic.LoadInt64(&a.lastAt)
	return time.Since(time.Unix(0, last))
}

// HeartbeatFrame is a minimal fixed frame carrying the reserved
// HeartBeatMsgID with an empty body (spec sec 6.1), in the client
// package's server->client envelope shape: msgIdLen, msgId, msgSeq(0),
// stageId(0), errorCode(0), originalSize(0). Exported so client.Session
// can echo it straight back on receipt of a client heartbeat (spec sec
// 4.9.5) without agent importing client (which would cycle back here).
func HeartbeatFrame() []byte {
	msgId := constants.HeartBeatMsgID
	const fixedHeaderLen = 1 + 2 + 8 + 2 + 4 // msgIdLen + msgSeq + stageId + errorCode + originalSize
	buf := make([]byte, 4+fixedHeaderLen+len(msgId))
	inner := len(buf) - 4
	buf[0] = byte(inner >> 24)
	buf[1] = byte(inner >> 16)
	buf[2] = byte(inner >> 8)
	buf[3] = byte(inner)
	off := 4
	buf[off] = byte(len(msgId))
	off++
	copy(buf[off:], msgId)
	return buf
}

// Close tears down the outbound writer/heartbeat loops and the
// underlying socket exactly once.
func (a *Agent) Close() error {
	a.closeMutex.Lock()
	defer a.closeMutex.Unlock()
	if !atomic.CompareAndSwapInt32(&a.closed, 0, 1) {
		return nil
	}
	close(a.chDie)
	a.SetStatus(constants.StatusClosed)
	metrics.ConnectedClients.WithLabelValues(a.nid).Dec()
	return a.conn.Close()
}

// RemoteAddr implements networkentity.NetworkEntity.
func (a *Agent) RemoteAddr() net.Addr { return a.conn.RemoteAddr() }

// SetLastAt implements networkentity.NetworkEntity, refreshing the
// idle-eviction clock (spec sec 4.9.5).
func (a *Agent) SetLastAt() { atomic.StoreInt64(&a.lastAt, time.Now().UnixNano()) }

// Status implements networkentity.NetworkEntity.
func (a *Agent) Status() int32 { return atomic.LoadInt32(&a.status) }

// SetStatus implements networkentity.NetworkEntity.
func (a *Agent) SetStatus(state int32) { atomic.StoreInt32(&a.status, state) }

// IPVersion reports whether the underlying socket is on IPv4 or IPv6,
// kept from the teacher's agentImpl.IPVersion for operational logging.
func (a *Agent) IPVersion() string {
	addr := a.conn.RemoteAddr().String()
	if strings.Count(addr, ":") > 1 {
		return "IPv6"
	}
	return "IPv4"
}

func (a *Agent) String() string {
	return a.conn.RemoteAddr().String()
}
