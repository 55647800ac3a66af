package client

import (
	"net"
	"time"

	"github.com/ulala-x/playhouse/logger"
)

// TCPServer accepts raw TCP client connections (spec sec 4.9.1) and
// hands each one to onAccept as a *Session.
type TCPServer struct {
	listener net.Listener
}

// ListenTCP binds addr and starts accepting connections.
func ListenTCP(addr string, onAccept func(*Session)) (*TCPServer, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	s := &TCPServer{listener: ln}
	go s.acceptLoop(onAccept)
	return s, nil
}

func (s *TCPServer) acceptLoop(onAccept func(*Session)) {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			logger.Log.Debugf("client: tcp accept loop stopped: %v", err)
			return
		}
		if tc, ok := conn.(*net.TCPConn); ok {
			_ = tc.SetKeepAlive(true)
			_ = tc.SetKeepAlivePeriod(30 * time.Second)
		}
		onAccept(newSession(conn))
	}
}

// Close stops accepting new connections.
func (s *TCPServer) Close() error { return s.listener.Close() }

// Addr returns the address the listener actually bound to, letting
// callers pass ":0" and discover the assigned port.
func (s *TCPServer) Addr() string { return s.listener.Addr().String() }

// newSession wraps conn as a Session with a not-yet-started Agent; the
// caller (node bootstrap) supplies nid/timeouts via Bind before Serve.
func newSession(conn net.Conn) *Session {
	return &Session{rawConn: conn}
}
