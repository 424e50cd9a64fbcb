package models

import "time"

// MatchStatus соответствует ENUM match_status в БД.
type MatchStatus string

const (
	MatchStatusUpcoming  MatchStatus = "upcoming"
	MatchStatusOngoing   MatchStatus = "ongoing"
	MatchStatusCompleted MatchStatus = "completed"
	MatchStatusTie       MatchStatus = "tie"
	MatchStatusVoid      MatchStatus = "void"
)

// IsTerminal reports whether no further transitions are accepted from s.
func (s MatchStatus) IsTerminal() bool {
	switch s {
	case MatchStatusCompleted, MatchStatusTie, MatchStatusVoid:
		return true
	}
	return false
}

// IsValid reports whether s is one of the five known statuses.
func (s MatchStatus) IsValid() bool {
	switch s {
	case MatchStatusUpcoming, MatchStatusOngoing, MatchStatusCompleted, MatchStatusTie, MatchStatusVoid:
		return true
	}
	return false
}

// CanTransitionTo encodes the full transition table. Terminal states are
// absorbing; everything reachable from ongoing is also reachable directly
// from upcoming (admin can void or complete a match before it starts).
func (s MatchStatus) CanTransitionTo(next MatchStatus) bool {
	allowed := map[MatchStatus][]MatchStatus{
		MatchStatusUpcoming: {MatchStatusOngoing, MatchStatusCompleted, MatchStatusTie, MatchStatusVoid},
		MatchStatusOngoing:  {MatchStatusCompleted, MatchStatusTie, MatchStatusVoid},
	}
	for _, n := range allowed[s] {
		if n == next {
			return true
		}
	}
	return false
}

type Match struct {
	ID           int         `json:"id" db:"id"`
	TournamentID int         `json:"tournament_id" db:"tournament_id"`
	TeamAID      int         `json:"team_a_id" db:"team_a_id"`
	TeamBID      int         `json:"team_b_id" db:"team_b_id"`
	Location     *string     `json:"location,omitempty" db:"location"`
	StartTime    time.Time   `json:"start_time" db:"start_time"`
	Status       MatchStatus `json:"status" db:"status"`
	TossWinnerID *int        `json:"toss_winner_id,omitempty" db:"toss_winner_id"`
	WinnerID     *int        `json:"match_winner_id,omitempty" db:"match_winner_id"`
	Score        *string     `json:"score,omitempty" db:"score"`
	Result       *string     `json:"result,omitempty" db:"result"`
	LockedAt     *time.Time  `json:"locked_at,omitempty" db:"locked_at"`
	CreatedAt    time.Time   `json:"created_at" db:"created_at"`

	// Опциональные связанные сущности (не мапятся напрямую)
	TeamA      *Team       `json:"team_a,omitempty" db:"-"`
	TeamB      *Team       `json:"team_b,omitempty" db:"-"`
	Tournament *Tournament `json:"tournament,omitempty" db:"-"`
}

// HasTeam reports whether teamID is one of the two sides of the match.
func (m *Match) HasTeam(teamID int) bool {
	return teamID == m.TeamAID || teamID == m.TeamBID
}
