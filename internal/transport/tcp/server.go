// Package tcp carries the line protocol over plain TCP: one goroutine per
// accepted connection, all feeding the shared session coordinator.
package tcp

import (
	"context"
	"errors"
	"fmt"
	"net"

	"go.uber.org/zap"

	"kahyeet/internal/game"
)

// Server accepts player connections for a single session.
type Server struct {
	session *game.Session
	log     *zap.Logger
	lis     net.Listener
}

func NewServer(session *game.Session, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{session: session, log: logger}
}

// Listen binds the game port. Addr is valid after Listen returns.
func (s *Server) Listen(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	s.lis = lis
	return nil
}

// Addr returns the bound address; useful when listening on port 0.
func (s *Server) Addr() net.Addr {
	return s.lis.Addr()
}

// Serve accepts connections until ctx is canceled. Each connection gets its
// own handler goroutine; a bad peer only ever tears down itself.
func (s *Server) Serve(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		s.lis.Close()
	}()

	for {
		conn, err := s.lis.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}
		go s.handle(conn)
	}
}
