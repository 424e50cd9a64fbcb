package models

import "time"

// Timeframe задаёт окно агрегации лидерборда.
type Timeframe string

const (
	TimeframeWeekly  Timeframe = "weekly"
	TimeframeMonthly Timeframe = "monthly"
	TimeframeAllTime Timeframe = "all-time"
)

func (t Timeframe) IsValid() bool {
	return t == TimeframeWeekly || t == TimeframeMonthly || t == TimeframeAllTime
}

// Window returns the inclusive lower bound of the timeframe relative to now,
// and ok=false for the unbounded all-time frame.
func (t Timeframe) Window(now time.Time) (since time.Time, ok bool) {
	switch t {
	case TimeframeWeekly:
		return now.AddDate(0, 0, -7), true
	case TimeframeMonthly:
		return now.AddDate(0, 0, -30), true
	}
	return time.Time{}, false
}

// LeaderboardEntry is a derived row, recomputed on demand; it is never
// persisted by the engine.
type LeaderboardEntry struct {
	Rank               int       `json:"rank"`
	UserID             int       `json:"user_id"`
	DisplayName        string    `json:"display_name"`
	AvatarKey          *string   `json:"-"`
	AvatarURL          *string   `json:"avatar_url,omitempty"`
	Points             int       `json:"points"`
	CorrectPredictions int       `json:"correct_predictions"`
	TotalMatches       int       `json:"total_matches"`
	ScorablePicks      int       `json:"scorable_picks"`
	Accuracy           float64   `json:"accuracy"`
	IsVerified         bool      `json:"-"`
	MemberSince        time.Time `json:"-"`
}

// LeaderboardPage is one page of ranked entries plus, when the requesting
// user placed outside the page, their own row so a client can always show
// "my position" without a second scan.
type LeaderboardPage struct {
	Timeframe    Timeframe          `json:"timeframe"`
	TournamentID *int               `json:"tournament_id,omitempty"`
	Entries      []LeaderboardEntry `json:"entries"`
	Requester    *LeaderboardEntry  `json:"requester,omitempty"`
	TotalRanked  int                `json:"total_ranked"`
	GeneratedAt  time.Time          `json:"generated_at"`
}

// VoteTally is the live split of unscored picks for one prediction type of
// one match. Display only, never an input to scoring.
type VoteTally struct {
	MatchID int            `json:"match_id"`
	Type    PredictionType `json:"type"`
	Counts  map[int]int    `json:"counts"` // teamID -> votes
	Total   int            `json:"total"`
}

// Percentage returns the share of total votes pointing at teamID, 0 when
// nobody has voted yet.
func (v VoteTally) Percentage(teamID int) float64 {
	if v.Total == 0 {
		return 0
	}
	return float64(v.Counts[teamID]) * 100 / float64(v.Total)
}

// UserStats is the personal aggregate every user can see for themselves,
// verified or not.
type UserStats struct {
	UserID             int     `json:"user_id"`
	Points             int     `json:"points"`
	CorrectPredictions int     `json:"correct_predictions"`
	TotalMatches       int     `json:"total_matches"`
	ScorablePicks      int     `json:"scorable_picks"`
	Accuracy           float64 `json:"accuracy"`
}
