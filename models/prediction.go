package models

import "time"

// PredictionType различает два голосуемых исхода матча.
type PredictionType string

const (
	PredictionTypeToss  PredictionType = "toss"
	PredictionTypeMatch PredictionType = "match"
)

func (t PredictionType) IsValid() bool {
	return t == PredictionTypeToss || t == PredictionTypeMatch
}

// Prediction is the single row a user holds for a match. Either predicted
// field may stay nil until the user picks it; PointsEarned stays nil until
// the match reaches a terminal status and scoring runs.
type Prediction struct {
	ID                    int        `json:"id" db:"id"`
	UserID                int        `json:"user_id" db:"user_id"`
	MatchID               int        `json:"match_id" db:"match_id"`
	PredictedTossWinnerID *int       `json:"predicted_toss_winner_id,omitempty" db:"predicted_toss_winner_id"`
	PredictedWinnerID     *int       `json:"predicted_match_winner_id,omitempty" db:"predicted_match_winner_id"`
	PointsEarned          *int       `json:"points_earned,omitempty" db:"points_earned"`
	CreatedAt             time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt             time.Time  `json:"updated_at" db:"updated_at"`
	ScoredAt              *time.Time `json:"scored_at,omitempty" db:"scored_at"`
}
