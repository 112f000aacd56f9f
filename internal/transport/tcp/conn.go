package tcp

import (
	"bufio"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"kahyeet/internal/protocol"
)

const (
	outboundBuffer = 64
	writeTimeout   = 10 * time.Second
)

// handle owns one client connection from hello to teardown. The socket is
// closed on every exit path; Disconnect fires exactly once however the
// stream ends.
func (s *Server) handle(conn net.Conn) {
	scanner := bufio.NewScanner(conn)

	if !scanner.Scan() {
		conn.Close()
		return
	}
	hello := protocol.Parse(scanner.Text())
	if hello.Kind != protocol.KindUsername || strings.TrimSpace(hello.Payload) == "" {
		s.log.Warn("malformed hello", zap.String("remote", conn.RemoteAddr().String()))
		conn.Close()
		return
	}
	username := hello.Payload

	pc := newPlayerConn(conn, s.log.With(zap.String("player", username)))
	if err := s.session.Join(username, pc); err != nil {
		pc.Send(protocol.Error(err.Error()))
		pc.Close()
		s.log.Info("join rejected", zap.String("player", username), zap.Error(err))
		return
	}

	var disconnect sync.Once
	leave := func() {
		disconnect.Do(func() {
			s.session.Disconnect(username)
			pc.Close()
		})
	}
	defer leave()

	for scanner.Scan() {
		msg := protocol.Parse(scanner.Text())
		switch msg.Kind {
		case protocol.KindScore:
			score, err := protocol.ParseScore(msg.Payload)
			if err != nil {
				s.log.Warn("dropping malformed score line", zap.String("player", username), zap.Error(err))
				continue
			}
			if err := s.session.RecordScore(username, score); err != nil {
				s.log.Warn("score rejected", zap.String("player", username), zap.Error(err))
			}
		case protocol.KindEnd:
			if err := s.session.MarkFinished(username); err != nil {
				s.log.Warn("finish rejected", zap.String("player", username), zap.Error(err))
			}
		case protocol.KindAnswer:
			s.session.RecordAnswer(username, msg.Payload)
		default:
			// Unknown lines are dropped; the handler never dies on a
			// malformed message.
			s.log.Debug("unknown client line", zap.String("player", username), zap.String("kind", msg.Kind))
		}
	}
}

// playerConn adapts a net.Conn to game.Conn. Writes go through a buffered
// queue drained by a dedicated goroutine, so the coordinator's broadcast
// fan-out never blocks on a slow or dead peer.
type playerConn struct {
	conn      net.Conn
	out       chan string
	quit      chan struct{}
	closeOnce sync.Once
	log       *zap.Logger
}

func newPlayerConn(conn net.Conn, logger *zap.Logger) *playerConn {
	pc := &playerConn{
		conn: conn,
		out:  make(chan string, outboundBuffer),
		quit: make(chan struct{}),
		log:  logger,
	}
	go pc.writeLoop()
	return pc
}

// Send queues a line without blocking. A peer that stops draining loses
// messages rather than stalling everyone else.
func (pc *playerConn) Send(line string) {
	select {
	case pc.out <- line:
	default:
		pc.log.Warn("outbound queue full, dropping line")
	}
}

// Close flushes queued lines and then closes the socket.
func (pc *playerConn) Close() {
	pc.closeOnce.Do(func() {
		close(pc.quit)
	})
}

func (pc *playerConn) writeLoop() {
	defer pc.conn.Close()
	for {
		select {
		case line := <-pc.out:
			if !pc.write(line) {
				return
			}
		case <-pc.quit:
			for {
				select {
				case line := <-pc.out:
					if !pc.write(line) {
						return
					}
				default:
					return
				}
			}
		}
	}
}

func (pc *playerConn) write(line string) bool {
	pc.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if _, err := fmt.Fprintln(pc.conn, line); err != nil {
		pc.log.Debug("write failed", zap.Error(err))
		return false
	}
	return true
}
