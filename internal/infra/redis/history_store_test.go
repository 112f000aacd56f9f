package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	"kahyeet/internal/domain"
)

func newTestStore(t *testing.T, ttl time.Duration) (*HistoryStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewHistoryStore(client, ttl), mr
}

func sampleEntries() []domain.LeaderboardEntry {
	return []domain.LeaderboardEntry{
		{Rank: domain.RankGold, Username: "alice", Score: 1000},
		{Rank: domain.RankSilver, Username: "bob", Score: 500, Disconnected: true},
		{Rank: domain.RankBronze, Username: "carol", Score: 250},
	}
}

func TestRecordResultAndTopScores(t *testing.T) {
	store, _ := newTestStore(t, 0)
	ctx := context.Background()

	if err := store.RecordResult(ctx, "s1", sampleEntries()); err != nil {
		t.Fatalf("record: %v", err)
	}

	records, err := store.TopScores(ctx, "s1", 10)
	if err != nil {
		t.Fatalf("top scores: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("got %d records, want 3", len(records))
	}
	if records[0].Username != "alice" || records[0].Score != 1000 {
		t.Errorf("first record = %+v", records[0])
	}
	if records[1].Username != "bob" || !records[1].Disconnected {
		t.Errorf("second record = %+v", records[1])
	}
	if records[2].Username != "carol" || records[2].Disconnected {
		t.Errorf("third record = %+v", records[2])
	}
}

func TestTopScoresLimit(t *testing.T) {
	store, _ := newTestStore(t, 0)
	ctx := context.Background()

	if err := store.RecordResult(ctx, "s1", sampleEntries()); err != nil {
		t.Fatalf("record: %v", err)
	}
	records, err := store.TopScores(ctx, "s1", 2)
	if err != nil {
		t.Fatalf("top scores: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
}

func TestRecordResultSetsTTL(t *testing.T) {
	store, mr := newTestStore(t, time.Hour)
	ctx := context.Background()

	if err := store.RecordResult(ctx, "s1", sampleEntries()); err != nil {
		t.Fatalf("record: %v", err)
	}
	if ttl := mr.TTL("kahyeet:session:s1:scores"); ttl != time.Hour {
		t.Errorf("scores ttl = %v, want 1h", ttl)
	}
	if ttl := mr.TTL("kahyeet:session:s1:flags"); ttl != time.Hour {
		t.Errorf("flags ttl = %v, want 1h", ttl)
	}

	mr.FastForward(2 * time.Hour)
	records, err := store.TopScores(ctx, "s1", 10)
	if err != nil {
		t.Fatalf("top scores: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("records survived expiry: %+v", records)
	}
}

func TestTopScoresUnknownSession(t *testing.T) {
	store, _ := newTestStore(t, 0)

	records, err := store.TopScores(context.Background(), "nope", 10)
	if err != nil {
		t.Fatalf("top scores: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("got %+v, want empty", records)
	}
}
