package client

import (
	"bufio"
	"context"
	"fmt"
	"math"
	"net"
	"time"

	"go.uber.org/zap"

	"kahyeet/internal/domain"
	"kahyeet/internal/protocol"
)

// AnswerFunc picks an option index for a question; return -1 to simulate a
// timeout (no answer inside the limit).
type AnswerFunc func(q domain.Question, number int) int

// RandomAnswer answers uniformly at random.
func RandomAnswer(d *Driver) AnswerFunc {
	return func(q domain.Question, _ int) int {
		return d.rng.Intn(domain.OptionCount)
	}
}

// AlwaysCorrect answers every question correctly.
func AlwaysCorrect(q domain.Question, _ int) int {
	return q.CorrectIndex
}

// Points computes the per-question score from the response time:
// round(max(1000*(1-(response/timer)/2), 0)), or a flat 1000 when bonus
// points are disabled. Wrong answers and timeouts score zero before this is
// called.
func Points(response, timer time.Duration, noBonus bool) int {
	if noBonus {
		return 1000
	}
	raw := 1000 * (1 - (response.Seconds()/timer.Seconds())/2)
	return int(math.Round(math.Max(raw, 0)))
}

// Options configures a Runner.
type Options struct {
	Addr     string
	Username string
	Answer   AnswerFunc // defaults to RandomAnswer
	Driver   *Driver    // defaults to a time-seeded driver
	Logger   *zap.Logger
	// Think delays each answer, standing in for the human pressing a
	// button partway through the countdown. Pause is the gap between
	// questions. Both may be zero.
	Think time.Duration
	Pause time.Duration
}

// Runner is a headless client: it joins a session, drives the local
// question/answer state machine and returns the final leaderboard.
type Runner struct {
	opts   Options
	driver *Driver
	log    *zap.Logger
}

func NewRunner(opts Options) *Runner {
	driver := opts.Driver
	if driver == nil {
		driver = NewDriver(nil)
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Answer == nil {
		opts.Answer = RandomAnswer(driver)
	}
	return &Runner{opts: opts, driver: driver, log: logger}
}

// Run connects, joins and plays until the leaderboard arrives. It returns
// ErrConnectionLost if the stream ends first and ErrKicked on a forced
// disconnect.
func (r *Runner) Run(ctx context.Context) ([]domain.LeaderboardEntry, error) {
	conn, err := net.Dial("tcp", r.opts.Addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", r.opts.Addr, err)
	}
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	if _, err := fmt.Fprintln(conn, protocol.Join(r.opts.Username)); err != nil {
		return nil, fmt.Errorf("send hello: %w", err)
	}

	finish := make(chan struct{})
	finishOnce := false

	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		switch ev := r.driver.HandleLine(scanner.Text()).(type) {
		case nil:
		case JoinRejected:
			return nil, fmt.Errorf("join rejected: %s", ev.Reason)
		case Kicked:
			return nil, domain.ErrKicked
		case RosterUpdated:
			r.log.Info("waiting players", zap.Strings("players", ev.Players))
		case GameStarted:
			r.log.Info("game started",
				zap.Int("questions", len(ev.Questions)),
				zap.Int("timerSeconds", ev.Config.TimerSeconds))
			go r.play(conn, ev.Questions, ev.Config, finish)
		case FinishRequested:
			if !finishOnce {
				finishOnce = true
				close(finish)
			}
		case LeaderboardReady:
			return ev.Entries, nil
		}
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	return nil, domain.ErrConnectionLost
}

// play walks the question list, computes the score locally and pushes
// ANSWER/SCORE lines; it always ends with END, even when cut short by a
// FINISH broadcast.
func (r *Runner) play(conn net.Conn, questions []domain.Question, cfg GameConfig, finish <-chan struct{}) {
	timer := time.Duration(cfg.TimerSeconds) * time.Second
	score := 0

loop:
	for i, q := range questions {
		start := time.Now()
		if r.opts.Think > 0 {
			select {
			case <-finish:
				break loop
			case <-time.After(r.opts.Think):
			}
		} else {
			select {
			case <-finish:
				break loop
			default:
			}
		}

		choice := r.opts.Answer(q, i+1)
		correct := choice >= 0 && q.IsCorrect(choice)
		points := 0
		if correct {
			points = Points(time.Since(start), timer, cfg.NoBonusPoints)
		}
		score += points

		fmt.Fprintln(conn, protocol.AnswerReport(correct, i+1))
		fmt.Fprintln(conn, protocol.Score(score))
		r.log.Info("answered",
			zap.Int("question", i+1),
			zap.Bool("correct", correct),
			zap.Int("score", score))

		if r.opts.Pause > 0 && i < len(questions)-1 {
			select {
			case <-finish:
				break loop
			case <-time.After(r.opts.Pause):
			}
		}
	}
	fmt.Fprintln(conn, protocol.KindEnd)
}
