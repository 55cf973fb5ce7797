// Package tcp bridges raw TCP connections to the chat hub.
package tcp

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-tcp/internal/config"
	"github.com/vovakirdan/wirechat-tcp/internal/core"
)

// Hub is the part of core.Hub the transport needs.
type Hub interface {
	Accept(ctx context.Context, conn core.Conn, ip string) (core.ClientID, error)
	Deliver(ctx context.Context, id core.ClientID, data []byte) error
	Disconnect(ctx context.Context, id core.ClientID) error
}

var _ core.FinalSender = (*session)(nil)

// Server accepts connections and runs one reader and one writer goroutine per client.
type Server struct {
	hub        Hub
	log        *zerolog.Logger
	bufSize    int
	outboxSize int
	wg         sync.WaitGroup
}

// NewServer builds a TCP server for the hub.
func NewServer(hub Hub, cfg config.Config, logger *zerolog.Logger) *Server {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Server{
		hub:        hub,
		log:        logger,
		bufSize:    cfg.ReadBufferSize,
		outboxSize: cfg.OutboxSize,
	}
}

// Serve accepts connections from ln until ctx is cancelled, then closes ln
// and waits for every connection handler to return.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	stop := context.AfterFunc(ctx, func() { _ = ln.Close() })
	defer stop()

	s.log.Info().Str("addr", ln.Addr().String()).Msg("tcp server listening")
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				s.wg.Wait()
				return nil
			}
			s.log.Warn().Err(err).Msg("accept failed")
			time.Sleep(50 * time.Millisecond)
			continue
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handle(ctx, conn)
		}()
	}
}

func (s *Server) handle(ctx context.Context, conn net.Conn) {
	ip := remoteIP(conn.RemoteAddr())
	sess := newSession(conn, s.outboxSize, s.log)
	go sess.writeLoop()

	id, err := s.hub.Accept(ctx, sess, ip)
	if err != nil {
		_ = sess.Close()
		<-sess.done
		s.log.Debug().Err(err).Str("ip", ip).Msg("connection not admitted")
		return
	}

	// the hub closes every session it still holds when it stops, which ends the read
	s.readLoop(ctx, conn, id)

	if err := s.hub.Disconnect(ctx, id); err != nil {
		// hub is gone, nobody else will close the session
		_ = sess.Close()
	}
	<-sess.done
}

// readLoop hands every read to the hub as one message. There is no line
// reassembly: a long line may arrive as several messages.
func (s *Server) readLoop(ctx context.Context, conn net.Conn, id core.ClientID) {
	buf := make([]byte, s.bufSize)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			data := make([]byte, n)
			copy(data, buf[:n])
			if derr := s.hub.Deliver(ctx, id, data); derr != nil {
				return
			}
		}
		if err != nil {
			s.log.Debug().Err(err).Str("client_id", string(id)).Msg("connection read ended")
			return
		}
	}
}

func remoteIP(addr net.Addr) string {
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		host = addr.String()
	}
	if ip, err := core.NormalizeIP(host); err == nil {
		return ip
	}
	return host
}
