// Package protocol implements the line-oriented wire format shared by the
// server and the client. Every message is a single newline-terminated line of
// the form KIND or KIND:PAYLOAD.
package protocol

import (
	"fmt"
	"strconv"
	"strings"

	"kahyeet/internal/domain"
)

// Message kinds. Kinds without payload are sent as the bare kind string.
const (
	KindUsername         = "USERNAME"
	KindError            = "ERROR"
	KindKick             = "KICK"
	KindQuestion         = "QUESTION"
	KindQuestionEnd      = "QUESTION_END"
	KindShuffleQuestions = "SHUFFLE_QUESTIONS"
	KindShuffleAnswers   = "SHUFFLE_ANSWERS"
	KindHideAnswers      = "DONT_SHOW_TRUE_ANSWERS"
	KindNoBonusPoint     = "NO_BONUS_POINT"
	KindTimer            = "TIMER"
	KindStartGame        = "START_GAME"
	KindWaitingList      = "UPDATE_WAITING_LIST"
	KindScore            = "SCORE"
	KindAnswer           = "ANSWER"
	KindEnd              = "END"
	KindFinish           = "FINISH"
	KindShowLeaderboard  = "SHOW_LEADERBOARD"
	KindScoreData        = "SCORE_DATA"
	KindScoreDataEnd     = "SCORE_DATA_END"
)

// CorrectMarker is the suffix distinguishing the correct option line inside
// a question record.
const CorrectMarker = "_@#"

// Message is one decoded protocol line.
type Message struct {
	Kind    string
	Payload string
}

// Parse splits a raw line into kind and payload. Lines without a colon are
// bare kinds; the payload keeps everything after the first colon verbatim,
// including any leading space (the ERROR kind uses one).
func Parse(line string) Message {
	// Advisory answer reports are space-delimited, not colon-delimited:
	// "ANSWER TRUE QUESTION NUMBER 3".
	if strings.HasPrefix(line, KindAnswer+" ") {
		return Message{Kind: KindAnswer, Payload: line[len(KindAnswer)+1:]}
	}
	if i := strings.IndexByte(line, ':'); i >= 0 {
		return Message{Kind: line[:i], Payload: line[i+1:]}
	}
	return Message{Kind: line}
}

// Encode renders a message back into its wire line.
func Encode(m Message) string {
	if m.Kind == KindAnswer {
		return m.Kind + " " + m.Payload
	}
	if m.Payload == "" {
		return m.Kind
	}
	return m.Kind + ":" + m.Payload
}

// Join builds the initial client hello.
func Join(username string) string {
	return KindUsername + ":" + username
}

// Error builds a rejection line; the server closes the connection after it.
func Error(text string) string {
	return KindError + ": " + text
}

// Timer announces the per-question time limit in whole seconds.
func Timer(seconds int) string {
	return KindTimer + ":" + strconv.Itoa(seconds)
}

// ParseTimer decodes a TIMER payload.
func ParseTimer(payload string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(payload))
	if err != nil {
		return 0, fmt.Errorf("bad timer payload %q: %w", payload, err)
	}
	return n, nil
}

// WaitingList encodes a roster snapshot as comma-joined usernames.
func WaitingList(usernames []string) string {
	return KindWaitingList + ":" + strings.Join(usernames, ",")
}

// ParseWaitingList decodes a roster snapshot payload.
func ParseWaitingList(payload string) []string {
	if payload == "" {
		return nil
	}
	return strings.Split(payload, ",")
}

// Score builds the client's authoritative running-score push.
func Score(score int) string {
	return KindScore + ":" + strconv.Itoa(score)
}

// ParseScore decodes a SCORE payload.
func ParseScore(payload string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(payload))
	if err != nil {
		return 0, fmt.Errorf("bad score payload %q: %w", payload, err)
	}
	return n, nil
}

// AnswerReport builds the advisory per-question answer line.
func AnswerReport(correct bool, number int) string {
	verdict := "FALSE"
	if correct {
		verdict = "TRUE"
	}
	return fmt.Sprintf("%s %s QUESTION NUMBER %d", KindAnswer, verdict, number)
}

// ScoreData wraps one leaderboard record line for replay to clients.
func ScoreData(line string) string {
	return KindScoreData + ":" + line
}

// EncodeQuestions flattens a question list into its wire lines: for each
// question the text line, then the four option lines with the correct one
// suffixed by CorrectMarker, and a single QUESTION_END after the last.
func EncodeQuestions(questions []domain.Question) []string {
	lines := make([]string, 0, len(questions)*(domain.OptionCount+1)+1)
	for _, q := range questions {
		lines = append(lines, KindQuestion+":"+q.Text)
		for i, opt := range q.Options {
			if i == q.CorrectIndex {
				opt += CorrectMarker
			}
			lines = append(lines, KindQuestion+":"+opt)
		}
	}
	lines = append(lines, KindQuestionEnd)
	return lines
}

// QuestionAssembler rebuilds questions from a stream of QUESTION payloads,
// mirroring the server's framing. Blank payload lines are skipped without
// disturbing the option count.
type QuestionAssembler struct {
	text    string
	started bool
	options []string
	correct int
}

// Feed consumes one QUESTION payload line. When the fourth option arrives it
// returns the completed question (unshuffled, marker stripped) and resets.
func (a *QuestionAssembler) Feed(payload string) (domain.Question, bool) {
	line := strings.TrimSpace(payload)
	if line == "" {
		return domain.Question{}, false
	}
	if !a.started {
		a.text = line
		a.started = true
		a.options = a.options[:0]
		a.correct = -1
		return domain.Question{}, false
	}
	if stripped, ok := strings.CutSuffix(line, CorrectMarker); ok {
		a.options = append(a.options, stripped)
		a.correct = len(a.options) - 1
	} else {
		a.options = append(a.options, line)
	}
	if len(a.options) < domain.OptionCount {
		return domain.Question{}, false
	}
	q := domain.Question{
		Text:         a.text,
		Options:      append([]string(nil), a.options...),
		CorrectIndex: a.correct,
	}
	a.started = false
	a.text = ""
	a.options = a.options[:0]
	a.correct = -1
	return q, true
}

// Pending reports whether a partially assembled question is buffered.
func (a *QuestionAssembler) Pending() bool {
	return a.started
}
