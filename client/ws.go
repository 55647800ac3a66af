package client

import (
	"net"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/ulala-x/playhouse/logger"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// wsConn adapts a *websocket.Conn to the client package's socket
// contract (io.Reader/io.Writer/io.Closer + RemoteAddr), presenting
// WebSocket's message framing as a byte stream so ReadFrame can read it
// the same way it reads a TCP socket (spec sec 4.9.1: "the WebSocket
// transport carries the same binary envelope as TCP, framed as a single
// binary message per Frame").
type wsConn struct {
	c       *websocket.Conn
	leftover []byte
}

func (w *wsConn) Write(p []byte) (int, error) {
	if err := w.c.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (w *wsConn) Read(p []byte) (int, error) {
	for len(w.leftover) == 0 {
		_, msg, err := w.c.ReadMessage()
		if err != nil {
			return 0, err
		}
		w.leftover = msg
	}
	n := copy(p, w.leftover)
	w.leftover = w.leftover[n:]
	return n, nil
}

func (w *wsConn) Close() error         { return w.c.Close() }
func (w *wsConn) RemoteAddr() net.Addr { return w.c.RemoteAddr() }

// WSServer accepts WebSocket client connections (spec sec 4.9.1) over a
// plain net/http mux.
type WSServer struct {
	srv *http.Server
}

// ListenWS starts an HTTP server on addr upgrading every request at
// path to a WebSocket, handing each connection to onAccept as a
// *Session.
func ListenWS(addr, path string, onAccept func(*Session)) (*WSServer, error) {
	mux := http.NewServeMux()
	mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Log.Warnf("client: ws upgrade failed: %v", err)
			return
		}
		onAccept(&Session{rawConn: &wsConn{c: conn}})
	})
	srv := &http.Server{Addr: addr, Handler: mux}
	s := &WSServer{srv: srv}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.Errorf("client: ws server stopped: %v", err)
		}
	}()
	return s, nil
}

// Close stops the WebSocket HTTP server.
func (s *WSServer) Close() error { return s.srv.Close() }
