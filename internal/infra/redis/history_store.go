// Package redis mirrors finished-session results into Redis for ops queries.
// The score log file stays the durable source of truth; this store is
// best-effort.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"kahyeet/internal/domain"
)

// HistoryStore writes one sorted set per session plus a hash of
// disconnected flags.
type HistoryStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewHistoryStore(client *redis.Client, ttl time.Duration) *HistoryStore {
	return &HistoryStore{client: client, ttl: ttl}
}

// RecordResult stores the final leaderboard under the session's key.
func (s *HistoryStore) RecordResult(ctx context.Context, sessionID string, entries []domain.LeaderboardEntry) error {
	scoresKey := s.scoresKey(sessionID)
	flagsKey := s.flagsKey(sessionID)

	pipe := s.client.Pipeline()
	for _, entry := range entries {
		pipe.ZAdd(ctx, scoresKey, redis.Z{Score: float64(entry.Score), Member: entry.Username})
		if entry.Disconnected {
			pipe.HSet(ctx, flagsKey, entry.Username, "disconnected")
		}
	}
	if s.ttl > 0 {
		pipe.Expire(ctx, scoresKey, s.ttl)
		pipe.Expire(ctx, flagsKey, s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("record session history: %w", err)
	}
	return nil
}

// TopScores reads back the stored standings, highest score first.
func (s *HistoryStore) TopScores(ctx context.Context, sessionID string, n int64) ([]domain.ScoreRecord, error) {
	members, err := s.client.ZRevRangeWithScores(ctx, s.scoresKey(sessionID), 0, n-1).Result()
	if err != nil {
		return nil, fmt.Errorf("read session history: %w", err)
	}
	flags, err := s.client.HGetAll(ctx, s.flagsKey(sessionID)).Result()
	if err != nil {
		return nil, fmt.Errorf("read session flags: %w", err)
	}

	records := make([]domain.ScoreRecord, 0, len(members))
	for _, m := range members {
		username, _ := m.Member.(string)
		_, disconnected := flags[username]
		records = append(records, domain.ScoreRecord{
			Username:     username,
			Score:        int(m.Score),
			Disconnected: disconnected,
		})
	}
	return records, nil
}

func (s *HistoryStore) scoresKey(sessionID string) string {
	return "kahyeet:session:" + sessionID + ":scores"
}

func (s *HistoryStore) flagsKey(sessionID string) string {
	return "kahyeet:session:" + sessionID + ":flags"
}
