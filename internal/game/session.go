// Package game holds the session coordinator: the single shared state machine
// every client connection converges on.
package game

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"kahyeet/internal/domain"
	"kahyeet/internal/protocol"
	"kahyeet/internal/scorelog"
)

// Conn is the coordinator's handle on one player's outbound stream. Send must
// never block the caller; implementations queue and drop rather than stall the
// coordinator on a slow peer.
type Conn interface {
	Send(line string)
	Close()
}

// HistoryStore mirrors finished leaderboards into an external store.
type HistoryStore interface {
	RecordResult(ctx context.Context, sessionID string, entries []domain.LeaderboardEntry) error
}

// Snapshot is the observer view pushed to admin subscribers on every
// roster or phase change.
type Snapshot struct {
	SessionID   string                    `json:"sessionId"`
	Phase       string                    `json:"phase"`
	Players     []domain.Player           `json:"players"`
	Leaderboard []domain.LeaderboardEntry `json:"leaderboard,omitempty"`
}

// Config wires a session's collaborators. History may be nil.
type Config struct {
	ID        string
	Settings  domain.Settings
	Questions []domain.Question
	Scores    *scorelog.Log
	History   HistoryStore
	Logger    *zap.Logger
}

// Session coordinates one game from lobby to leaderboard. All mutations are
// serialized through its mutex; outbound fan-out goes through per-connection
// queues and never blocks the critical section on peer I/O.
type Session struct {
	id        string
	settings  domain.Settings
	questions []domain.Question
	scores    *scorelog.Log
	history   HistoryStore
	log       *zap.Logger

	mu          sync.Mutex
	phase       domain.Phase
	order       []string
	players     map[string]*domain.Player
	conns       map[string]Conn
	kicked      map[string]bool
	leaderboard []domain.LeaderboardEntry
	subscribers map[chan Snapshot]struct{}
}

// NewSession builds a session in the lobby phase.
func NewSession(cfg Config) *Session {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{
		id:          cfg.ID,
		settings:    cfg.Settings,
		questions:   cfg.Questions,
		scores:      cfg.Scores,
		history:     cfg.History,
		log:         logger,
		phase:       domain.PhaseLobby,
		players:     make(map[string]*domain.Player),
		conns:       make(map[string]Conn),
		kicked:      make(map[string]bool),
		subscribers: make(map[chan Snapshot]struct{}),
	}
}

// ID returns the session identifier used for the history mirror.
func (s *Session) ID() string { return s.id }

// Settings returns the session's game options.
func (s *Session) Settings() domain.Settings { return s.settings }

// Phase returns the current lifecycle phase.
func (s *Session) Phase() domain.Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Players returns a roster snapshot in join order.
func (s *Session) Players() []domain.Player {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rosterLocked()
}

// Leaderboard returns the computed leaderboard, empty until the session
// finishes.
func (s *Session) Leaderboard() []domain.LeaderboardEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.LeaderboardEntry(nil), s.leaderboard...)
}

// Join admits a player into the lobby. The phase check runs inside the same
// critical section as StartGame's transition, so a join racing the start is
// rejected deterministically rather than by message order.
func (s *Session) Join(username string, conn Conn) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.kicked[username] {
		return domain.ErrPlayerKicked
	}
	if p, ok := s.players[username]; ok && p.Connected {
		return domain.ErrUsernameTaken
	}
	if s.phase != domain.PhaseLobby {
		return domain.ErrGameStarted
	}

	if p, ok := s.players[username]; ok {
		// A lobby leaver may reclaim their name before the game starts.
		p.Connected = true
		p.Score = 0
		p.Finished = false
	} else {
		s.players[username] = &domain.Player{Username: username, Connected: true}
		s.order = append(s.order, username)
	}
	s.conns[username] = conn

	s.log.Info("player joined", zap.String("session", s.id), zap.String("player", username))
	s.broadcastLocked(username + " has joined.")
	s.broadcastLocked(protocol.WaitingList(s.connectedNamesLocked()))
	s.notifyLocked()
	return nil
}

// StartGame transitions Lobby -> InProgress exactly once and pushes the game
// preamble to every connected client: config flags, timer, the full question
// list and the start signal. Joins observed after this call fail by phase.
func (s *Session) StartGame() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != domain.PhaseLobby {
		return domain.ErrGameStarted
	}
	s.phase = domain.PhaseInProgress

	if s.settings.ShuffleQuestions {
		s.broadcastLocked(protocol.KindShuffleQuestions)
	}
	if s.settings.ShuffleAnswers {
		s.broadcastLocked(protocol.KindShuffleAnswers)
	}
	if s.settings.HideAnswers {
		s.broadcastLocked(protocol.KindHideAnswers)
	}
	if s.settings.NoBonusPoints {
		s.broadcastLocked(protocol.KindNoBonusPoint)
	}
	s.broadcastLocked(protocol.Timer(s.settings.TimerSeconds))
	for _, line := range protocol.EncodeQuestions(s.questions) {
		s.broadcastLocked(line)
	}
	s.broadcastLocked(protocol.KindStartGame)

	s.log.Info("game started",
		zap.String("session", s.id),
		zap.Int("players", len(s.connectedNamesLocked())),
		zap.Int("questions", len(s.questions)))
	s.notifyLocked()
	return nil
}

// RecordAnswer logs a client's advisory per-question answer report. Scoring
// stays client-computed and arrives separately via RecordScore.
func (s *Session) RecordAnswer(username, report string) {
	s.log.Info("answer reported", zap.String("session", s.id), zap.String("player", username), zap.String("report", report))
}

// RecordScore overwrites a player's running score. Last write wins per
// player; there is no ordering constraint across players.
func (s *Session) RecordScore(username string, score int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.players[username]
	if !ok {
		return domain.ErrUnknownPlayer
	}
	p.Score = score
	s.notifyLocked()
	return nil
}

// MarkFinished flags a player as done with all questions, persists their
// score record and re-evaluates whether the whole session is finished.
func (s *Session) MarkFinished(username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.players[username]
	if !ok {
		return domain.ErrUnknownPlayer
	}
	p.Finished = true
	s.appendRecordLocked(domain.ScoreRecord{Username: p.Username, Score: p.Score})
	s.checkAllFinishedLocked()
	s.notifyLocked()
	return nil
}

// Disconnect removes a player from the connected set. A player dropping
// before their END gets a "(disconnected)" record with the last score
// received; the roster entry is retained for the leaderboard. Safe to call
// more than once per connection.
func (s *Session) Disconnect(username string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.players[username]
	if !ok || !p.Connected {
		return
	}
	p.Connected = false
	delete(s.conns, username)

	if !p.Finished && !p.Kicked {
		s.appendRecordLocked(domain.ScoreRecord{Username: p.Username, Score: p.Score, Disconnected: true})
	}

	s.log.Info("player disconnected", zap.String("session", s.id), zap.String("player", username))
	s.broadcastLocked(username + " disconnected.")
	s.broadcastLocked(protocol.WaitingList(s.connectedNamesLocked()))
	s.checkAllFinishedLocked()
	s.notifyLocked()
}

// Kick forcibly removes one player and bars the username for the rest of the
// session. Only the targeted connection is affected; its read loop observes
// the closure and runs the normal Disconnect path, which skips the score
// record for kicked players.
func (s *Session) Kick(username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.players[username]
	if !ok {
		return domain.ErrUnknownPlayer
	}
	p.Kicked = true
	s.kicked[username] = true

	if conn, ok := s.conns[username]; ok {
		conn.Send(protocol.KindKick)
		conn.Close()
	}
	s.log.Info("player kicked", zap.String("session", s.id), zap.String("player", username))
	s.notifyLocked()
	return nil
}

// Finish tells every connected client to cut to its final question, which
// drives each of them to report END on its own.
func (s *Session) Finish() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != domain.PhaseInProgress {
		return domain.ErrGameStarted
	}
	s.broadcastLocked(protocol.KindFinish)
	return nil
}

// Subscribe registers an observer for snapshots. The caller must invoke the
// returned cancel function to avoid leaks.
func (s *Session) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 8)

	s.mu.Lock()
	s.subscribers[ch] = struct{}{}
	initial := s.snapshotLocked()
	s.mu.Unlock()

	ch <- initial

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

// checkAllFinishedLocked transitions InProgress -> Finished once every
// non-kicked player is either finished or disconnected. The phase guard makes
// the transition idempotent under redundant triggers (a finish racing a
// disconnect).
func (s *Session) checkAllFinishedLocked() {
	if s.phase != domain.PhaseInProgress {
		return
	}
	for _, name := range s.order {
		p := s.players[name]
		if p.Kicked {
			continue
		}
		if !p.Finished && p.Connected {
			return
		}
	}
	s.phase = domain.PhaseFinished

	if err := s.scores.AppendSeparator(); err != nil {
		s.log.Error("score log separator failed", zap.String("session", s.id), zap.Error(err))
	}
	records, err := s.scores.LatestBlock()
	if err != nil || len(records) == 0 {
		if err != nil {
			s.log.Error("score log read failed, using in-memory roster", zap.String("session", s.id), zap.Error(err))
		}
		records = s.rosterRecordsLocked()
	}
	s.leaderboard = BuildLeaderboard(records)

	s.broadcastLocked(protocol.KindShowLeaderboard)
	for _, rec := range records {
		s.broadcastLocked(protocol.ScoreData(scorelog.FormatRecord(rec)))
	}
	s.broadcastLocked(protocol.KindScoreDataEnd)
	s.log.Info("session finished", zap.String("session", s.id), zap.Int("records", len(records)))

	if s.history != nil {
		entries := append([]domain.LeaderboardEntry(nil), s.leaderboard...)
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := s.history.RecordResult(ctx, s.id, entries); err != nil {
				s.log.Error("history mirror failed", zap.String("session", s.id), zap.Error(err))
			}
		}()
	}
}

func (s *Session) appendRecordLocked(rec domain.ScoreRecord) {
	if err := s.scores.Append(rec); err != nil {
		s.log.Error("score record append failed",
			zap.String("session", s.id),
			zap.String("player", rec.Username),
			zap.Error(err))
	}
}

func (s *Session) broadcastLocked(line string) {
	for _, name := range s.order {
		if conn, ok := s.conns[name]; ok {
			conn.Send(line)
		}
	}
}

func (s *Session) connectedNamesLocked() []string {
	names := make([]string, 0, len(s.conns))
	for _, name := range s.order {
		if p := s.players[name]; p.Connected {
			names = append(names, name)
		}
	}
	return names
}

func (s *Session) rosterLocked() []domain.Player {
	roster := make([]domain.Player, 0, len(s.order))
	for _, name := range s.order {
		roster = append(roster, *s.players[name])
	}
	return roster
}

// rosterRecordsLocked rebuilds score records from in-memory state; used only
// when the score log cannot be read back.
func (s *Session) rosterRecordsLocked() []domain.ScoreRecord {
	records := make([]domain.ScoreRecord, 0, len(s.order))
	for _, name := range s.order {
		p := s.players[name]
		if p.Kicked {
			continue
		}
		records = append(records, domain.ScoreRecord{
			Username:     p.Username,
			Score:        p.Score,
			Disconnected: !p.Finished,
		})
	}
	return records
}

func (s *Session) snapshotLocked() Snapshot {
	return Snapshot{
		SessionID:   s.id,
		Phase:       s.phase.String(),
		Players:     s.rosterLocked(),
		Leaderboard: append([]domain.LeaderboardEntry(nil), s.leaderboard...),
	}
}

func (s *Session) notifyLocked() {
	snap := s.snapshotLocked()
	for ch := range s.subscribers {
		select {
		case ch <- snap:
		default:
			// Drop the stale snapshot so a slow observer never blocks the
			// coordinator.
			select {
			case <-ch:
			default:
			}
			ch <- snap
		}
	}
}
