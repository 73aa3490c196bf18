package instancehost

import (
	"net"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
)

const writeWait = 10 * time.Second

// socketConn adapts a gobwas/ws upgraded connection to room.Connection.
// Writes are serialized: the room actor's single goroutine is the only
// writer in practice, but the mutex makes that an invariant rather
// than an assumption.
type socketConn struct {
	mu   sync.Mutex
	conn net.Conn
}

func newSocketConn(conn net.Conn) *socketConn {
	return &socketConn{conn: conn}
}

func (s *socketConn) Send(payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return wsutil.WriteServerMessage(s.conn, ws.OpText, payload)
}

func (s *socketConn) Close() error {
	return s.conn.Close()
}
