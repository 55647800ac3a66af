package node

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ulala-x/playhouse/client"
	"github.com/ulala-x/playhouse/nid"
	"github.com/ulala-x/playhouse/route"
)

func acceptOneSession(t *testing.T) *client.Session {
	sess, _ := acceptSessionPair(t)
	return sess
}

// acceptSessionPair binds a real loopback-connected Session, returning it
// alongside the client-side net.Conn so a test can assert on bytes
// actually pushed to the wire.
func acceptSessionPair(t *testing.T) (*client.Session, net.Conn) {
	t.Helper()
	accepted := make(chan *client.Session, 1)
	srv, err := client.ListenTCP("127.0.0.1:0", func(s *client.Session) { accepted <- s })
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Close() })

	conn, err := net.Dial("tcp", srv.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	sess := <-accepted
	sess.Bind(0, nid.Of(1, 1), 16, time.Hour, time.Hour, "Authenticate", func(int64, *route.ClientPacket) {}, nil)
	return sess, conn
}

func TestSessionTableNextSidIsMonotonicAndNonZero(t *testing.T) {
	st := newSessionTable()
	seen := make(map[int64]bool)
	for i := 0; i < 100; i++ {
		sid := st.nextSid()
		require.NotZero(t, sid)
		require.False(t, seen[sid])
		seen[sid] = true
	}
}

func TestSessionTablePutGetRemove(t *testing.T) {
	st := newSessionTable()
	sess := acceptOneSession(t)

	sid := st.nextSid()
	st.put(sid, sess)

	got, ok := st.get(sid)
	require.True(t, ok)
	assert.Same(t, sess, got)

	st.remove(sid)
	_, ok = st.get(sid)
	assert.False(t, ok)
}

func TestSessionTableGetUnknownSidIsFalse(t *testing.T) {
	st := newSessionTable()
	_, ok := st.get(12345)
	assert.False(t, ok)
}
