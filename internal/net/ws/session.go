package ws

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"fightarena/server/internal/net/proto"
)

// session is one websocket attached to a player. Writes are serialized; the
// read side belongs to the handler goroutine.
type session struct {
	playerID     string
	conn         *websocket.Conn
	codec        proto.Codec
	writeTimeout time.Duration

	// ready is set once the snapshot has been written; guarded by Hub.mu.
	ready bool

	mu      sync.Mutex
	closed  bool
	lastSeq uint64
}

func newSession(playerID string, conn *websocket.Conn, codec proto.Codec, writeTimeout time.Duration) *session {
	return &session{playerID: playerID, conn: conn, codec: codec, writeTimeout: writeTimeout}
}

// write encodes v with the session codec.
func (s *session) write(v any) error {
	data, err := s.codec.Marshal(v)
	if err != nil {
		return err
	}
	return s.writeRaw(data)
}

func (s *session) writeRaw(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return websocket.ErrCloseSent
	}
	if s.writeTimeout > 0 {
		_ = s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
	}
	return s.conn.WriteMessage(s.codec.FrameType(), data)
}

// LastCommandSeq is the highest acknowledged command sequence.
func (s *session) LastCommandSeq() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeq
}

func (s *session) StoreLastCommandSeq(seq uint64) {
	s.mu.Lock()
	if seq > s.lastSeq {
		s.lastSeq = seq
	}
	s.mu.Unlock()
}

func (s *session) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	_ = s.conn.SetWriteDeadline(time.Now().Add(time.Second))
	_ = s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	_ = s.conn.Close()
}
