package domain

// Phase is the lifecycle state of a game session. Transitions are one-way:
// Lobby -> InProgress -> Finished.
type Phase int

const (
	PhaseLobby Phase = iota
	PhaseInProgress
	PhaseFinished
)

func (p Phase) String() string {
	switch p {
	case PhaseLobby:
		return "lobby"
	case PhaseInProgress:
		return "in_progress"
	case PhaseFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// OptionCount is fixed by the wire format: one question text line followed
// by exactly four option lines.
const OptionCount = 4

// Question is an immutable multiple-choice question. Options holds exactly
// OptionCount entries; CorrectIndex points at the right one.
type Question struct {
	Text         string   `json:"text"`
	Options      []string `json:"options"`
	CorrectIndex int      `json:"correctIndex"`
}

// IsCorrect reports whether the given option index answers the question.
func (q Question) IsCorrect(index int) bool {
	return index == q.CorrectIndex
}

// Settings are the per-session game options broadcast to every client
// before the game starts.
type Settings struct {
	ShuffleQuestions bool `yaml:"shuffle_questions" json:"shuffleQuestions"`
	ShuffleAnswers   bool `yaml:"shuffle_answers" json:"shuffleAnswers"`
	HideAnswers      bool `yaml:"hide_answers" json:"hideAnswers"`
	NoBonusPoints    bool `yaml:"no_bonus_points" json:"noBonusPoints"`
	TimerSeconds     int  `yaml:"timer_seconds" json:"timerSeconds"`
}

// Player is the per-connection state kept by the session for every username
// that ever joined. Disconnected players stay in the roster so the
// leaderboard can still rank them.
type Player struct {
	Username  string `json:"username"`
	Score     int    `json:"score"`
	Finished  bool   `json:"finished"`
	Connected bool   `json:"connected"`
	Kicked    bool   `json:"kicked"`
}

// ScoreRecord is one persisted line of the score log and the unit the
// leaderboard is built from.
type ScoreRecord struct {
	Username     string `json:"username"`
	Score        int    `json:"score"`
	Disconnected bool   `json:"disconnected"`
}

// Rank labels for the top three leaderboard positions; lower positions use
// the numeric rank.
const (
	RankGold   = "GOLD"
	RankSilver = "SILVER"
	RankBronze = "BRONZE"
)

// LeaderboardEntry is one ranked row of a finished session's leaderboard.
type LeaderboardEntry struct {
	Rank         string `json:"rank"`
	Username     string `json:"username"`
	Score        int    `json:"score"`
	Disconnected bool   `json:"disconnected"`
}
