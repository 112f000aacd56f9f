package game

import (
	"sort"
	"strconv"

	"kahyeet/internal/domain"
)

// BuildLeaderboard ranks score records by score descending. The sort is
// stable, so tied players keep their original record order. Disconnected
// players rank like anyone else; the flag is carried through for rendering.
func BuildLeaderboard(records []domain.ScoreRecord) []domain.LeaderboardEntry {
	sorted := append([]domain.ScoreRecord(nil), records...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Score > sorted[j].Score
	})

	entries := make([]domain.LeaderboardEntry, len(sorted))
	for i, rec := range sorted {
		entries[i] = domain.LeaderboardEntry{
			Rank:         rankLabel(i),
			Username:     rec.Username,
			Score:        rec.Score,
			Disconnected: rec.Disconnected,
		}
	}
	return entries
}

func rankLabel(position int) string {
	switch position {
	case 0:
		return domain.RankGold
	case 1:
		return domain.RankSilver
	case 2:
		return domain.RankBronze
	default:
		return strconv.Itoa(position + 1)
	}
}
