package livepush

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	sendBufferSize = 16
)

// ErrSessionClosed is returned by Send after the session shut down.
var ErrSessionClosed = errors.New("session closed")

// ErrSlowConsumer is returned when the outbound buffer is full; the hub
// reacts by dropping the session rather than blocking fan-out on it.
var ErrSlowConsumer = errors.New("session send buffer full")

// Session adapts one websocket connection to the hub's Channel contract.
// Writes go through a buffered queue drained by a single write pump, since
// gorilla connections allow only one concurrent writer.
type Session struct {
	conn *websocket.Conn
	send chan []byte

	closeOnce sync.Once
	done      chan struct{}
}

// NewSession wraps an upgraded connection. The caller registers the session
// with the hub and then calls Run.
func NewSession(conn *websocket.Conn) *Session {
	return &Session{
		conn: conn,
		send: make(chan []byte, sendBufferSize),
		done: make(chan struct{}),
	}
}

// Send queues a frame for delivery. It never blocks: a full buffer or a
// closed session is an error, and the hub unregisters the session on error.
func (s *Session) Send(frame []byte) error {
	select {
	case <-s.done:
		return ErrSessionClosed
	default:
	}
	select {
	case s.send <- frame:
		return nil
	default:
		return ErrSlowConsumer
	}
}

// Close tears the session down; safe to call from any path, any number of
// times.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		s.conn.Close()
	})
	return nil
}

// Run pumps the connection until it dies, then invokes cleanup exactly once.
// cleanup must unregister the session from the hub; it runs on every exit
// path, including abnormal closes, so handles never leak.
func (s *Session) Run(cleanup func()) {
	var once sync.Once
	finish := func() {
		once.Do(func() {
			cleanup()
			s.Close()
		})
	}

	go s.writePump(finish)
	s.readPump(finish)
}

// readPump discards inbound frames (the live channel is server-to-client
// only) and exists to detect closure and answer pings.
func (s *Session) readPump(finish func()) {
	defer finish()
	s.conn.SetReadLimit(512)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *Session) writePump(finish func()) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		finish()
	}()
	for {
		select {
		case frame := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-s.done:
			s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}
