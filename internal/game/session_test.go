package game

import (
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"kahyeet/internal/domain"
	"kahyeet/internal/protocol"
	"kahyeet/internal/scorelog"
)

type fakeConn struct {
	mu     sync.Mutex
	lines  []string
	closed bool
}

func (c *fakeConn) Send(line string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lines = append(c.lines, line)
}

func (c *fakeConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *fakeConn) received() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.lines...)
}

func (c *fakeConn) count(line string) int {
	n := 0
	for _, l := range c.received() {
		if l == line {
			n++
		}
	}
	return n
}

func testQuestions() []domain.Question {
	return []domain.Question{{
		Text:         "What is 2 + 2?",
		Options:      []string{"3", "4", "5", "6"},
		CorrectIndex: 1,
	}}
}

func newTestSession(t *testing.T, settings domain.Settings) *Session {
	t.Helper()
	if settings.TimerSeconds == 0 {
		settings.TimerSeconds = 20
	}
	return NewSession(Config{
		ID:        "test",
		Settings:  settings,
		Questions: testQuestions(),
		Scores:    scorelog.Open(filepath.Join(t.TempDir(), "scores.txt")),
	})
}

func TestJoinRules(t *testing.T) {
	s := newTestSession(t, domain.Settings{})

	if err := s.Join("alice", &fakeConn{}); err != nil {
		t.Fatalf("first join: %v", err)
	}
	if err := s.Join("alice", &fakeConn{}); !errors.Is(err, domain.ErrUsernameTaken) {
		t.Fatalf("duplicate join gave %v, want ErrUsernameTaken", err)
	}

	bob := &fakeConn{}
	if err := s.Join("bob", bob); err != nil {
		t.Fatalf("bob join: %v", err)
	}
	if err := s.Kick("bob"); err != nil {
		t.Fatalf("kick: %v", err)
	}
	s.Disconnect("bob")
	if err := s.Join("bob", &fakeConn{}); !errors.Is(err, domain.ErrPlayerKicked) {
		t.Fatalf("kicked rejoin gave %v, want ErrPlayerKicked", err)
	}

	if err := s.StartGame(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := s.Join("carol", &fakeConn{}); !errors.Is(err, domain.ErrGameStarted) {
		t.Fatalf("late join gave %v, want ErrGameStarted", err)
	}
}

func TestLobbyLeaverMayReclaimName(t *testing.T) {
	s := newTestSession(t, domain.Settings{})
	if err := s.Join("alice", &fakeConn{}); err != nil {
		t.Fatalf("join: %v", err)
	}
	s.Disconnect("alice")
	if err := s.Join("alice", &fakeConn{}); err != nil {
		t.Fatalf("rejoin after lobby leave: %v", err)
	}
}

func TestStartGameBroadcastsPreamble(t *testing.T) {
	s := newTestSession(t, domain.Settings{
		ShuffleAnswers: true,
		NoBonusPoints:  true,
		TimerSeconds:   15,
	})
	alice := &fakeConn{}
	if err := s.Join("alice", alice); err != nil {
		t.Fatalf("join: %v", err)
	}
	if err := s.StartGame(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := s.StartGame(); !errors.Is(err, domain.ErrGameStarted) {
		t.Fatalf("second start gave %v, want ErrGameStarted", err)
	}

	lines := alice.received()
	want := []string{
		"SHUFFLE_ANSWERS",
		"NO_BONUS_POINT",
		"TIMER:15",
		"QUESTION:What is 2 + 2?",
		"QUESTION:3",
		"QUESTION:4_@#",
		"QUESTION:5",
		"QUESTION:6",
		"QUESTION_END",
		"START_GAME",
	}
	got := lines[len(lines)-len(want):]
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("preamble line %d = %q, want %q (full: %q)", i, got[i], want[i], got)
		}
	}
	if alice.count("SHUFFLE_QUESTIONS") != 0 {
		t.Error("unset flag was broadcast")
	}
}

// Two players, one question: alice answers correctly, bob disconnects before
// answering. Expected leaderboard: GOLD alice 1000, SILVER bob 0 disconnected.
func TestTwoPlayerScenario(t *testing.T) {
	s := newTestSession(t, domain.Settings{NoBonusPoints: true})
	alice, bob := &fakeConn{}, &fakeConn{}
	if err := s.Join("alice", alice); err != nil {
		t.Fatalf("join alice: %v", err)
	}
	if err := s.Join("bob", bob); err != nil {
		t.Fatalf("join bob: %v", err)
	}
	if err := s.StartGame(); err != nil {
		t.Fatalf("start: %v", err)
	}

	s.RecordAnswer("alice", "TRUE QUESTION NUMBER 1")
	if err := s.RecordScore("alice", 1000); err != nil {
		t.Fatalf("score: %v", err)
	}
	if err := s.MarkFinished("alice"); err != nil {
		t.Fatalf("finish: %v", err)
	}
	if s.Phase() != domain.PhaseInProgress {
		t.Fatal("session finished while bob was still connected")
	}

	s.Disconnect("bob")
	if s.Phase() != domain.PhaseFinished {
		t.Fatal("disconnect of last pending player must finish the session")
	}

	entries := s.Leaderboard()
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2: %+v", len(entries), entries)
	}
	if entries[0].Rank != domain.RankGold || entries[0].Username != "alice" || entries[0].Score != 1000 {
		t.Errorf("first entry = %+v", entries[0])
	}
	if entries[1].Rank != domain.RankSilver || entries[1].Username != "bob" || entries[1].Score != 0 || !entries[1].Disconnected {
		t.Errorf("second entry = %+v", entries[1])
	}

	if alice.count(protocol.KindShowLeaderboard) != 1 {
		t.Error("alice did not receive SHOW_LEADERBOARD exactly once")
	}
	if alice.count("SCORE_DATA:alice: 1000") != 1 || alice.count("SCORE_DATA:bob: 0 (disconnected)") != 1 {
		t.Errorf("score data rows missing from %q", alice.received())
	}
	if alice.count(protocol.KindScoreDataEnd) != 1 {
		t.Error("missing SCORE_DATA_END")
	}
}

func TestDisconnectIsIdempotent(t *testing.T) {
	s := newTestSession(t, domain.Settings{})
	if err := s.Join("alice", &fakeConn{}); err != nil {
		t.Fatalf("join: %v", err)
	}
	if err := s.Join("bob", &fakeConn{}); err != nil {
		t.Fatalf("join: %v", err)
	}
	if err := s.StartGame(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := s.RecordScore("bob", 500); err != nil {
		t.Fatalf("score: %v", err)
	}

	s.Disconnect("bob")
	s.Disconnect("bob")

	records, err := s.scores.LatestBlock()
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	count := 0
	for _, rec := range records {
		if rec.Username == "bob" {
			count++
			if !rec.Disconnected || rec.Score != 500 {
				t.Errorf("bob record = %+v", rec)
			}
		}
	}
	if count != 1 {
		t.Fatalf("bob has %d records, want exactly 1", count)
	}
}

// A finish and a disconnect racing each other must produce exactly one
// transition to Finished and one leaderboard broadcast.
func TestFinishTransitionHappensOnce(t *testing.T) {
	s := newTestSession(t, domain.Settings{})
	alice, bob := &fakeConn{}, &fakeConn{}
	if err := s.Join("alice", alice); err != nil {
		t.Fatalf("join: %v", err)
	}
	if err := s.Join("bob", bob); err != nil {
		t.Fatalf("join: %v", err)
	}
	if err := s.StartGame(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := s.RecordScore("alice", 800); err != nil {
		t.Fatalf("score: %v", err)
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_ = s.MarkFinished("alice")
	}()
	go func() {
		defer wg.Done()
		s.Disconnect("bob")
	}()
	wg.Wait()

	if s.Phase() != domain.PhaseFinished {
		t.Fatal("session did not finish")
	}
	if got := alice.count(protocol.KindShowLeaderboard); got != 1 {
		t.Fatalf("SHOW_LEADERBOARD broadcast %d times, want 1", got)
	}
}

func TestKickedPlayerGetsNoRecordAndCannotBlockFinish(t *testing.T) {
	s := newTestSession(t, domain.Settings{})
	alice, bob := &fakeConn{}, &fakeConn{}
	if err := s.Join("alice", alice); err != nil {
		t.Fatalf("join: %v", err)
	}
	if err := s.Join("bob", bob); err != nil {
		t.Fatalf("join: %v", err)
	}
	if err := s.StartGame(); err != nil {
		t.Fatalf("start: %v", err)
	}

	if err := s.Kick("bob"); err != nil {
		t.Fatalf("kick: %v", err)
	}
	if bob.count(protocol.KindKick) != 1 {
		t.Fatal("bob did not receive KICK")
	}
	bob.mu.Lock()
	closed := bob.closed
	bob.mu.Unlock()
	if !closed {
		t.Fatal("bob's connection was not closed")
	}
	s.Disconnect("bob") // the read loop observing the closure

	if err := s.RecordScore("alice", 100); err != nil {
		t.Fatalf("score: %v", err)
	}
	if err := s.MarkFinished("alice"); err != nil {
		t.Fatalf("finish: %v", err)
	}
	if s.Phase() != domain.PhaseFinished {
		t.Fatal("kicked player blocked session finish")
	}

	for _, entry := range s.Leaderboard() {
		if entry.Username == "bob" {
			t.Fatalf("kicked player appeared on leaderboard: %+v", entry)
		}
	}
}

func TestFinishBroadcast(t *testing.T) {
	s := newTestSession(t, domain.Settings{})
	alice := &fakeConn{}
	if err := s.Join("alice", alice); err != nil {
		t.Fatalf("join: %v", err)
	}
	if err := s.Finish(); err == nil {
		t.Fatal("finish before start must fail")
	}
	if err := s.StartGame(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := s.Finish(); err != nil {
		t.Fatalf("finish: %v", err)
	}
	if alice.count(protocol.KindFinish) != 1 {
		t.Fatal("FINISH not broadcast")
	}
}

func TestRecordScoreUnknownPlayer(t *testing.T) {
	s := newTestSession(t, domain.Settings{})
	if err := s.RecordScore("ghost", 1); !errors.Is(err, domain.ErrUnknownPlayer) {
		t.Fatalf("got %v, want ErrUnknownPlayer", err)
	}
}

func TestSubscribeReceivesSnapshots(t *testing.T) {
	s := newTestSession(t, domain.Settings{})
	ch, cancel := s.Subscribe()
	defer cancel()

	initial := <-ch
	if initial.Phase != "lobby" || len(initial.Players) != 0 {
		t.Fatalf("initial snapshot = %+v", initial)
	}

	if err := s.Join("alice", &fakeConn{}); err != nil {
		t.Fatalf("join: %v", err)
	}
	snap := <-ch
	if len(snap.Players) != 1 || snap.Players[0].Username != "alice" {
		t.Fatalf("post-join snapshot = %+v", snap)
	}
}

func TestRosterBroadcastReflectsConnectedSet(t *testing.T) {
	s := newTestSession(t, domain.Settings{})
	alice := &fakeConn{}
	if err := s.Join("alice", alice); err != nil {
		t.Fatalf("join: %v", err)
	}
	if err := s.Join("bob", &fakeConn{}); err != nil {
		t.Fatalf("join: %v", err)
	}
	if alice.count(protocol.WaitingList([]string{"alice", "bob"})) != 1 {
		t.Fatalf("missing two-player roster in %q", alice.received())
	}
	s.Disconnect("bob")
	// Once from alice's own join, once after bob drops out.
	if alice.count(protocol.WaitingList([]string{"alice"})) != 2 {
		t.Fatalf("roster not re-broadcast after disconnect: %q", alice.received())
	}
}
