// Package scorelog persists final scores as an append-only text file. Each
// session's records form a block terminated by a three-line delimiter; the
// latest block is the leaderboard's source of truth.
package scorelog

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"kahyeet/internal/domain"
)

const (
	// SeparatorLine closes a session block together with a timestamp line
	// and BlockEndLine.
	SeparatorLine = "-------------------------------"
	// BlockEndLine marks the end of one session's delimiter.
	BlockEndLine = "-------------***---------------"

	timestampLayout = "02-01-2006 15:04:05"
	disconnectedTag = "(disconnected)"
)

// Log serializes appends to the score file across all finishing and
// disconnecting players. Write failures are reported to the caller but never
// abort a session.
type Log struct {
	mu   sync.Mutex
	path string
	now  func() time.Time
}

// Open returns a log writing to path. The file is created lazily on the
// first append.
func Open(path string) *Log {
	return &Log{path: path, now: time.Now}
}

// FormatRecord renders one score line: "username: score" with an optional
// disconnected tag.
func FormatRecord(rec domain.ScoreRecord) string {
	line := rec.Username + ": " + strconv.Itoa(rec.Score)
	if rec.Disconnected {
		line += " " + disconnectedTag
	}
	return line
}

// ParseRecord decodes a score line. Separator, timestamp and otherwise
// malformed lines report ok=false.
func ParseRecord(line string) (domain.ScoreRecord, bool) {
	i := strings.Index(line, ": ")
	if i <= 0 {
		return domain.ScoreRecord{}, false
	}
	rest := strings.TrimSpace(line[i+2:])
	scoreText, notes, _ := strings.Cut(rest, " ")
	score, err := strconv.Atoi(scoreText)
	if err != nil {
		return domain.ScoreRecord{}, false
	}
	return domain.ScoreRecord{
		Username:     strings.TrimSpace(line[:i]),
		Score:        score,
		Disconnected: strings.Contains(notes, disconnectedTag),
	}, true
}

// Append writes one record line.
func (l *Log) Append(rec domain.ScoreRecord) error {
	return l.appendLines(FormatRecord(rec))
}

// AppendSeparator closes the current session block with the separator line,
// a timestamp and the block-end marker.
func (l *Log) AppendSeparator() error {
	return l.appendLines(SeparatorLine, l.now().Format(timestampLayout), BlockEndLine)
}

func (l *Log) appendLines(lines ...string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open score log: %w", err)
	}
	defer f.Close()

	for _, line := range lines {
		if _, err := f.WriteString(line + "\n"); err != nil {
			return fmt.Errorf("append score log: %w", err)
		}
	}
	return nil
}

// LatestBlock parses the most recent non-empty session block. It tolerates
// the delimiter having already been appended after the block's records.
func (l *Log) LatestBlock() ([]domain.ScoreRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read score log: %w", err)
	}
	defer f.Close()

	var latest, current []domain.ScoreRecord
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, BlockEndLine) {
			if len(current) > 0 {
				latest = current
				current = nil
			}
			continue
		}
		if rec, ok := ParseRecord(line); ok {
			current = append(current, rec)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan score log: %w", err)
	}
	if len(current) > 0 {
		return current, nil
	}
	return latest, nil
}
