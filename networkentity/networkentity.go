// Package networkentity defines the low-level client-socket contract the
// client edge (TCP/WebSocket, spec sec 4.9) implements and the session
// binding layer drives, mirroring the teacher's NetworkEntity abstraction
// over a raw net.Conn (networkentity/networkentity.go in byte4fun-pitaya).
package networkentity

import "net"

// NetworkEntity represents a single client socket, independent of whether
// it is backed by a TCP stream or a WebSocket connection. It is the
// boundary the session/actor layer pushes encoded server->client frames
// through; user code never touches conn/ws directly (spec sec 5, "Per
// -session outbound buffer is the only thing the session write loop
// touches").
type NetworkEntity interface {
	// PushFrame enqueues an already-encoded server->client frame (spec
	// sec 4.9.2) for the outbound writer. Non-blocking: a full outbound
	// buffer closes the session rather than stalling the caller.
	PushFrame(frame []byte) error
	// Close tears down the socket and its read/write loops.
	Close() error
	// RemoteAddr is the socket's peer address, used for IPVersion and logs.
	RemoteAddr() net.Addr
	// SetLastAt refreshes the idle-eviction clock (spec sec 4.9.5).
	SetLastAt()
	// Status returns the session's current state-machine value.
	Status() int32
	// SetStatus transitions the session's state-machine value.
	SetStatus(state int32)
}
