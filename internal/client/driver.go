// Package client decodes the server's broadcast stream into structured
// events and plays the local answer cycle against a running session.
package client

import (
	"math/rand"
	"strings"
	"time"

	"kahyeet/internal/domain"
	"kahyeet/internal/game"
	"kahyeet/internal/protocol"
	"kahyeet/internal/scorelog"
)

// GameConfig collects the flags and timer broadcast before the game starts.
type GameConfig struct {
	ShuffleQuestions bool
	ShuffleAnswers   bool
	HideAnswers      bool
	NoBonusPoints    bool
	TimerSeconds     int
}

// Event is one structured occurrence decoded from the server stream.
type Event interface{ isEvent() }

// RosterUpdated carries the connected-player snapshot.
type RosterUpdated struct{ Players []string }

// GameStarted delivers the fully reassembled (and locally shuffled)
// question list together with the effective config.
type GameStarted struct {
	Questions []domain.Question
	Config    GameConfig
}

// FinishRequested tells the local game loop to cut to its final question.
type FinishRequested struct{}

// Kicked signals a forced disconnect; the local session must end.
type Kicked struct{}

// JoinRejected carries the server's rejection reason; the connection closes
// right after it.
type JoinRejected struct{ Reason string }

// LeaderboardReady delivers the ranked final standings.
type LeaderboardReady struct{ Entries []domain.LeaderboardEntry }

func (RosterUpdated) isEvent()    {}
func (GameStarted) isEvent()      {}
func (FinishRequested) isEvent()  {}
func (Kicked) isEvent()           {}
func (JoinRejected) isEvent()     {}
func (LeaderboardReady) isEvent() {}

// Driver consumes decoded lines and maintains the in-flight question
// reassembly buffer, mirroring the server's framing exactly. It is not safe
// for concurrent use; feed it from a single read loop.
type Driver struct {
	cfg       GameConfig
	rng       *rand.Rand
	asm       protocol.QuestionAssembler
	questions []domain.Question
	records   []domain.ScoreRecord
}

// NewDriver builds a driver. rng drives the answer and question shuffles;
// pass nil for a time-seeded source.
func NewDriver(rng *rand.Rand) *Driver {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Driver{rng: rng}
}

// Config returns the flags accumulated so far.
func (d *Driver) Config() GameConfig {
	return d.cfg
}

// HandleLine decodes one server line. Most lines only mutate internal state
// and return nil; phase changes surface as events. Unknown lines (join and
// disconnect notices) are skipped.
func (d *Driver) HandleLine(line string) Event {
	msg := protocol.Parse(line)
	switch msg.Kind {
	case protocol.KindKick:
		return Kicked{}
	case protocol.KindError:
		return JoinRejected{Reason: strings.TrimSpace(msg.Payload)}
	case protocol.KindQuestion:
		if q, ok := d.asm.Feed(msg.Payload); ok {
			d.questions = append(d.questions, d.finalizeQuestion(q))
		}
	case protocol.KindQuestionEnd:
		if d.cfg.ShuffleQuestions {
			d.rng.Shuffle(len(d.questions), func(i, j int) {
				d.questions[i], d.questions[j] = d.questions[j], d.questions[i]
			})
		}
	case protocol.KindShuffleQuestions:
		d.cfg.ShuffleQuestions = true
	case protocol.KindShuffleAnswers:
		d.cfg.ShuffleAnswers = true
	case protocol.KindHideAnswers:
		d.cfg.HideAnswers = true
	case protocol.KindNoBonusPoint:
		d.cfg.NoBonusPoints = true
	case protocol.KindTimer:
		if seconds, err := protocol.ParseTimer(msg.Payload); err == nil {
			d.cfg.TimerSeconds = seconds
		}
	case protocol.KindStartGame:
		return GameStarted{Questions: d.questions, Config: d.cfg}
	case protocol.KindWaitingList:
		return RosterUpdated{Players: protocol.ParseWaitingList(msg.Payload)}
	case protocol.KindFinish:
		return FinishRequested{}
	case protocol.KindShowLeaderboard:
		d.records = d.records[:0]
	case protocol.KindScoreData:
		if rec, ok := scorelog.ParseRecord(msg.Payload); ok {
			d.records = append(d.records, rec)
		}
	case protocol.KindScoreDataEnd:
		return LeaderboardReady{Entries: game.BuildLeaderboard(d.records)}
	}
	return nil
}

// finalizeQuestion applies the configured answer shuffle and prefixes each
// option with its ordinal label. The correct index is re-derived under the
// permutation, so the marked option's text is preserved.
func (d *Driver) finalizeQuestion(q domain.Question) domain.Question {
	prefixed := make([]string, domain.OptionCount)
	correct := q.CorrectIndex

	if d.cfg.ShuffleAnswers {
		perm := d.rng.Perm(domain.OptionCount)
		for i, orig := range perm {
			prefixed[i] = optionLabel(i) + q.Options[orig]
			if orig == q.CorrectIndex {
				correct = i
			}
		}
	} else {
		for i, opt := range q.Options {
			prefixed[i] = optionLabel(i) + opt
		}
	}

	return domain.Question{Text: q.Text, Options: prefixed, CorrectIndex: correct}
}

func optionLabel(i int) string {
	return string(rune('A'+i)) + ". "
}
