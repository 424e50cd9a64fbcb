package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/crickpick/prediction-league/models"
)

var (
	ErrPredictionNotFound    = errors.New("prediction not found")
	ErrPredictionUserInvalid = errors.New("prediction user conflict or invalid")
	ErrPredictionTeamInvalid = errors.New("prediction team conflict or invalid")
)

// PredictionScore is one computed result applied by UpdatePoints.
type PredictionScore struct {
	PredictionID int
	Points       int
}

// LeaderboardQuery scopes AggregateLeaderboard. Since == nil means all-time;
// TournamentID == nil means all tournaments.
type LeaderboardQuery struct {
	Since        *time.Time
	TournamentID *int
}

type PredictionRepository interface {
	// Upsert writes the single (user, match) row; a nil predicted field in p
	// preserves whatever that field held before (last write wins per field,
	// not per call).
	Upsert(ctx context.Context, exec SQLExecutor, p *models.Prediction) error
	GetByUserAndMatch(ctx context.Context, userID, matchID int) (*models.Prediction, error)
	ListByMatch(ctx context.Context, exec SQLExecutor, matchID int) ([]*models.Prediction, error)
	UpdatePoints(ctx context.Context, exec SQLExecutor, scores []PredictionScore, scoredAt time.Time) error
	Tally(ctx context.Context, matchID int, predictionType models.PredictionType) (*models.VoteTally, error)
	AggregateLeaderboard(ctx context.Context, query LeaderboardQuery) ([]*models.LeaderboardEntry, error)
	UserStats(ctx context.Context, userID int, query LeaderboardQuery) (*models.UserStats, error)
}

type postgresPredictionRepository struct {
	db *sql.DB
}

func NewPostgresPredictionRepository(db *sql.DB) PredictionRepository {
	return &postgresPredictionRepository{db: db}
}

func (r *postgresPredictionRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresPredictionRepository) Upsert(ctx context.Context, exec SQLExecutor, p *models.Prediction) error {
	executor := r.getExecutor(exec)
	// COALESCE keeps the stored value when the incoming field is NULL, so a
	// toss-only submission never wipes an earlier match-winner pick.
	query := `
		INSERT INTO predictions
			(user_id, match_id, predicted_toss_winner_id, predicted_match_winner_id)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, match_id) DO UPDATE SET
			predicted_toss_winner_id  = COALESCE(EXCLUDED.predicted_toss_winner_id, predictions.predicted_toss_winner_id),
			predicted_match_winner_id = COALESCE(EXCLUDED.predicted_match_winner_id, predictions.predicted_match_winner_id),
			updated_at = NOW()
		RETURNING id, predicted_toss_winner_id, predicted_match_winner_id, created_at, updated_at`

	err := executor.QueryRowContext(ctx, query,
		p.UserID,
		p.MatchID,
		p.PredictedTossWinnerID,
		p.PredictedWinnerID,
	).Scan(&p.ID, &p.PredictedTossWinnerID, &p.PredictedWinnerID, &p.CreatedAt, &p.UpdatedAt)

	return r.handlePredictionError(err)
}

func (r *postgresPredictionRepository) scanPrediction(rowScanner interface{ Scan(...interface{}) error }) (*models.Prediction, error) {
	var p models.Prediction
	err := rowScanner.Scan(
		&p.ID,
		&p.UserID,
		&p.MatchID,
		&p.PredictedTossWinnerID,
		&p.PredictedWinnerID,
		&p.PointsEarned,
		&p.CreatedAt,
		&p.UpdatedAt,
		&p.ScoredAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPredictionNotFound
		}
		return nil, err
	}
	return &p, nil
}

const predictionColumns = `id, user_id, match_id, predicted_toss_winner_id, predicted_match_winner_id,
		       points_earned, created_at, updated_at, scored_at`

func (r *postgresPredictionRepository) GetByUserAndMatch(ctx context.Context, userID, matchID int) (*models.Prediction, error) {
	query := `SELECT ` + predictionColumns + ` FROM predictions WHERE user_id = $1 AND match_id = $2`
	p, err := r.scanPrediction(r.db.QueryRowContext(ctx, query, userID, matchID))
	if err != nil {
		if errors.Is(err, ErrPredictionNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan prediction for user %d match %d: %w", userID, matchID, err)
	}
	return p, nil
}

func (r *postgresPredictionRepository) ListByMatch(ctx context.Context, exec SQLExecutor, matchID int) ([]*models.Prediction, error) {
	executor := r.getExecutor(exec)
	query := `SELECT ` + predictionColumns + ` FROM predictions WHERE match_id = $1 ORDER BY id ASC`

	rows, err := executor.QueryContext(ctx, query, matchID)
	if err != nil {
		return nil, fmt.Errorf("failed to query predictions for match %d: %w", matchID, err)
	}
	defer rows.Close()

	predictions := make([]*models.Prediction, 0)
	for rows.Next() {
		p, scanErr := r.scanPrediction(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan prediction row: %w", scanErr)
		}
		predictions = append(predictions, p)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during prediction rows iteration: %w", err)
	}
	return predictions, nil
}

// UpdatePoints applies scoring results. Re-running with the same input is a
// plain overwrite, which is what keeps score() idempotent.
func (r *postgresPredictionRepository) UpdatePoints(ctx context.Context, exec SQLExecutor, scores []PredictionScore, scoredAt time.Time) error {
	if len(scores) == 0 {
		return nil
	}
	executor := r.getExecutor(exec)
	query := `UPDATE predictions SET points_earned = $1, scored_at = $2 WHERE id = $3`
	for _, s := range scores {
		result, err := executor.ExecContext(ctx, query, s.Points, scoredAt, s.PredictionID)
		if err != nil {
			return fmt.Errorf("failed to update points for prediction %d: %w", s.PredictionID, err)
		}
		if err := checkAffectedRows(result, ErrPredictionNotFound); err != nil {
			return fmt.Errorf("prediction %d: %w", s.PredictionID, err)
		}
	}
	return nil
}

// Tally counts current picks per team for one prediction type, restricted to
// matches that have not reached a terminal status. Unscored rows with a NULL
// pick for the requested type contribute nothing.
func (r *postgresPredictionRepository) Tally(ctx context.Context, matchID int, predictionType models.PredictionType) (*models.VoteTally, error) {
	column := "predicted_toss_winner_id"
	if predictionType == models.PredictionTypeMatch {
		column = "predicted_match_winner_id"
	}

	query := `
		SELECT p.` + column + `, COUNT(*)
		FROM predictions p
		JOIN matches m ON m.id = p.match_id
		WHERE p.match_id = $1
		  AND p.` + column + ` IS NOT NULL
		  AND m.status IN ($2, $3)
		GROUP BY p.` + column

	rows, err := r.db.QueryContext(ctx, query, matchID, models.MatchStatusUpcoming, models.MatchStatusOngoing)
	if err != nil {
		return nil, fmt.Errorf("failed to tally predictions for match %d: %w", matchID, err)
	}
	defer rows.Close()

	tally := &models.VoteTally{
		MatchID: matchID,
		Type:    predictionType,
		Counts:  make(map[int]int),
	}
	for rows.Next() {
		var teamID, count int
		if scanErr := rows.Scan(&teamID, &count); scanErr != nil {
			return nil, fmt.Errorf("failed to scan tally row: %w", scanErr)
		}
		tally.Counts[teamID] = count
		tally.Total += count
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during tally rows iteration: %w", err)
	}
	return tally, nil
}

// Correct picks and scorable picks are derived from the terminal match
// state, not re-derived from points, so a tie match contributes a single
// scorable pick and a void match none.
const leaderboardAggregates = `
		COALESCE(SUM(p.points_earned), 0) AS points,
		COALESCE(SUM(CASE WHEN m.status IN ('completed', 'tie')
		           AND p.predicted_toss_winner_id = m.toss_winner_id THEN 1 ELSE 0 END
		  + CASE WHEN m.status = 'completed'
		           AND p.predicted_match_winner_id = m.match_winner_id THEN 1 ELSE 0 END), 0) AS correct,
		COUNT(p.id) AS total_matches,
		COALESCE(SUM(CASE m.status WHEN 'completed' THEN 2 WHEN 'tie' THEN 1 ELSE 0 END), 0) AS scorable`

func appendScopeFilters(queryBuilder *strings.Builder, args []interface{}, query LeaderboardQuery) []interface{} {
	if query.Since != nil {
		queryBuilder.WriteString(" AND m.start_time >= $")
		queryBuilder.WriteString(strconv.Itoa(len(args) + 1))
		args = append(args, *query.Since)
	}
	if query.TournamentID != nil {
		queryBuilder.WriteString(" AND m.tournament_id = $")
		queryBuilder.WriteString(strconv.Itoa(len(args) + 1))
		args = append(args, *query.TournamentID)
	}
	return args
}

// AggregateLeaderboard folds scored predictions of eligible users into
// ordered leaderboard rows. Eligibility lives entirely in this predicate:
// verified users, and for contest tournaments additionally a current row in
// contest_participants. Ranks are assigned by the caller.
func (r *postgresPredictionRepository) AggregateLeaderboard(ctx context.Context, query LeaderboardQuery) ([]*models.LeaderboardEntry, error) {
	var queryBuilder strings.Builder
	queryBuilder.WriteString(`
		SELECT u.id, u.display_name, u.avatar_key, u.is_verified, u.created_at,` + leaderboardAggregates + `
		FROM predictions p
		JOIN matches m ON m.id = p.match_id
		JOIN tournaments t ON t.id = m.tournament_id
		JOIN users u ON u.id = p.user_id
		WHERE p.points_earned IS NOT NULL
		  AND u.is_verified = TRUE
		  AND (NOT t.is_contest OR EXISTS (
		        SELECT 1 FROM contest_participants cp
		        WHERE cp.tournament_id = t.id AND cp.user_id = u.id))`)

	args := appendScopeFilters(&queryBuilder, []interface{}{}, query)

	queryBuilder.WriteString(`
		GROUP BY u.id, u.display_name, u.avatar_key, u.is_verified, u.created_at
		ORDER BY points DESC, correct DESC, u.created_at ASC, u.id ASC`)

	rows, err := r.db.QueryContext(ctx, queryBuilder.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate leaderboard: %w", err)
	}
	defer rows.Close()

	entries := make([]*models.LeaderboardEntry, 0)
	for rows.Next() {
		var e models.LeaderboardEntry
		var avatarKey sql.NullString
		if scanErr := rows.Scan(
			&e.UserID,
			&e.DisplayName,
			&avatarKey,
			&e.IsVerified,
			&e.MemberSince,
			&e.Points,
			&e.CorrectPredictions,
			&e.TotalMatches,
			&e.ScorablePicks,
		); scanErr != nil {
			return nil, fmt.Errorf("failed to scan leaderboard row: %w", scanErr)
		}
		if avatarKey.Valid {
			key := avatarKey.String
			e.AvatarKey = &key
		}
		if e.ScorablePicks > 0 {
			e.Accuracy = float64(e.CorrectPredictions) * 100 / float64(e.ScorablePicks)
		}
		entries = append(entries, &e)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during leaderboard rows iteration: %w", err)
	}
	return entries, nil
}

// UserStats aggregates one user's scored predictions with no eligibility
// filter: unverified users still see their own numbers.
func (r *postgresPredictionRepository) UserStats(ctx context.Context, userID int, query LeaderboardQuery) (*models.UserStats, error) {
	var queryBuilder strings.Builder
	queryBuilder.WriteString(`
		SELECT ` + leaderboardAggregates + `
		FROM predictions p
		JOIN matches m ON m.id = p.match_id
		WHERE p.points_earned IS NOT NULL AND p.user_id = $1`)

	args := appendScopeFilters(&queryBuilder, []interface{}{userID}, query)

	stats := &models.UserStats{UserID: userID}
	err := r.db.QueryRowContext(ctx, queryBuilder.String(), args...).Scan(
		&stats.Points,
		&stats.CorrectPredictions,
		&stats.TotalMatches,
		&stats.ScorablePicks,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return stats, nil
		}
		return nil, fmt.Errorf("failed to aggregate stats for user %d: %w", userID, err)
	}
	if stats.ScorablePicks > 0 {
		stats.Accuracy = float64(stats.CorrectPredictions) * 100 / float64(stats.ScorablePicks)
	}
	return stats, nil
}

func (r *postgresPredictionRepository) handlePredictionError(err error) error {
	if err == nil {
		return nil
	}
	if pqErr, ok := err.(*pq.Error); ok {
		// "23503": foreign_key_violation
		switch pqErr.Constraint {
		case "predictions_user_id_fkey":
			return ErrPredictionUserInvalid
		case "predictions_match_id_fkey":
			return ErrMatchNotFound
		case "predictions_predicted_toss_winner_id_fkey", "predictions_predicted_match_winner_id_fkey":
			return ErrPredictionTeamInvalid
		}
	}
	return err
}
