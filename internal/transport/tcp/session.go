package tcp

import (
	"net"
	"sync"

	"github.com/rs/zerolog"
)

// session is the write side of one TCP connection. The hub queues messages
// with Send and never blocks; a dedicated goroutine drains the outbox so a
// stalled peer only delays its own messages.
//
// The outbox has one slot more than limit. Send never uses it, so the final
// message queued by SendFinal always fits.
type session struct {
	conn   net.Conn
	outbox chan []byte
	limit  int
	done   chan struct{}
	log    *zerolog.Logger

	mu     sync.Mutex
	closed bool
	final  bool
}

func newSession(conn net.Conn, outboxSize int, logger *zerolog.Logger) *session {
	return &session{
		conn:   conn,
		outbox: make(chan []byte, outboxSize+1),
		limit:  outboxSize,
		done:   make(chan struct{}),
		log:    logger,
	}
}

// Send queues msg. It returns false when the session is closed, has queued
// its final message, or its outbox is full.
func (s *session) Send(msg []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.final {
		return false
	}
	// only senders hold mu and the writer only drains, so the length can only shrink
	if len(s.outbox) >= s.limit {
		s.log.Debug().Str("remote", s.conn.RemoteAddr().String()).Msg("outbox full, message dropped")
		return false
	}
	s.outbox <- msg
	return true
}

// SendFinal queues msg into the reserved slot. Nothing else is accepted
// afterwards; the caller is expected to Close the session next.
func (s *session) SendFinal(msg []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.final {
		return false
	}
	s.final = true
	select {
	case s.outbox <- msg:
		return true
	default:
		return false
	}
}

// Close stops accepting messages. Queued messages are still written before
// the socket is closed, so a farewell sent right before Close arrives.
func (s *session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.closed {
		s.closed = true
		close(s.outbox)
	}
	return nil
}

func (s *session) writeLoop() {
	defer close(s.done)
	defer s.conn.Close()

	for msg := range s.outbox {
		if _, err := s.conn.Write(msg); err != nil {
			s.log.Debug().Err(err).Str("remote", s.conn.RemoteAddr().String()).Msg("write failed")
			// the reader notices the closed socket and reports the disconnect
			_ = s.conn.Close()
			for range s.outbox {
			}
			return
		}
	}
}
