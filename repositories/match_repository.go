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
	ErrMatchNotFound          = errors.New("match not found")
	ErrMatchTournamentInvalid = errors.New("match tournament conflict or invalid")
	ErrMatchTeamInvalid       = errors.New("match team conflict or invalid")
)

const matchColumns = `id, tournament_id, team_a_id, team_b_id, location, start_time, status,
		       toss_winner_id, match_winner_id, score, result, locked_at, created_at`

type MatchRepository interface {
	Create(ctx context.Context, exec SQLExecutor, match *models.Match) error
	GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Match, error)
	// GetByIDForUpdate takes the row lock that serializes submit/lock/score
	// for a single match. Must be called inside a transaction.
	GetByIDForUpdate(ctx context.Context, exec SQLExecutor, id int) (*models.Match, error)
	List(ctx context.Context, tournamentID *int, status *models.MatchStatus) ([]*models.Match, error)
	ListDueUpcoming(ctx context.Context, now time.Time) ([]*models.Match, error)
	UpdateState(ctx context.Context, exec SQLExecutor, match *models.Match) error
}

type postgresMatchRepository struct {
	db *sql.DB
}

func NewPostgresMatchRepository(db *sql.DB) MatchRepository {
	return &postgresMatchRepository{db: db}
}

func (r *postgresMatchRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresMatchRepository) Create(ctx context.Context, exec SQLExecutor, match *models.Match) error {
	executor := r.getExecutor(exec)
	query := `
		INSERT INTO matches
			(tournament_id, team_a_id, team_b_id, location, start_time, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`

	err := executor.QueryRowContext(ctx, query,
		match.TournamentID,
		match.TeamAID,
		match.TeamBID,
		match.Location,
		match.StartTime,
		match.Status,
	).Scan(&match.ID, &match.CreatedAt)

	return r.handleMatchError(err)
}

func (r *postgresMatchRepository) scanMatch(rowScanner interface{ Scan(...interface{}) error }) (*models.Match, error) {
	var m models.Match
	err := rowScanner.Scan(
		&m.ID,
		&m.TournamentID,
		&m.TeamAID,
		&m.TeamBID,
		&m.Location,
		&m.StartTime,
		&m.Status,
		&m.TossWinnerID,
		&m.WinnerID,
		&m.Score,
		&m.Result,
		&m.LockedAt,
		&m.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMatchNotFound
		}
		return nil, err
	}
	return &m, nil
}

func (r *postgresMatchRepository) GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Match, error) {
	executor := r.getExecutor(exec)
	query := `SELECT ` + matchColumns + ` FROM matches WHERE id = $1`
	match, err := r.scanMatch(executor.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, ErrMatchNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan match by id %d: %w", id, err)
	}
	return match, nil
}

func (r *postgresMatchRepository) GetByIDForUpdate(ctx context.Context, exec SQLExecutor, id int) (*models.Match, error) {
	executor := r.getExecutor(exec)
	query := `SELECT ` + matchColumns + ` FROM matches WHERE id = $1 FOR UPDATE`
	match, err := r.scanMatch(executor.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, ErrMatchNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to lock match row %d: %w", id, err)
	}
	return match, nil
}

func (r *postgresMatchRepository) List(ctx context.Context, tournamentID *int, status *models.MatchStatus) ([]*models.Match, error) {
	var queryBuilder strings.Builder
	queryBuilder.WriteString(`SELECT ` + matchColumns + ` FROM matches WHERE 1=1`)

	args := []interface{}{}
	placeholderIndex := 1

	if tournamentID != nil {
		queryBuilder.WriteString(" AND tournament_id = $")
		queryBuilder.WriteString(strconv.Itoa(placeholderIndex))
		args = append(args, *tournamentID)
		placeholderIndex++
	}

	if status != nil {
		queryBuilder.WriteString(" AND status = $")
		queryBuilder.WriteString(strconv.Itoa(placeholderIndex))
		args = append(args, *status)
	}

	queryBuilder.WriteString(" ORDER BY start_time ASC, id ASC")

	rows, err := r.db.QueryContext(ctx, queryBuilder.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query matches: %w", err)
	}
	defer rows.Close()

	matches := make([]*models.Match, 0)
	for rows.Next() {
		m, scanErr := r.scanMatch(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan match row: %w", scanErr)
		}
		matches = append(matches, m)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during match rows iteration: %w", err)
	}
	return matches, nil
}

func (r *postgresMatchRepository) ListDueUpcoming(ctx context.Context, now time.Time) ([]*models.Match, error) {
	query := `SELECT ` + matchColumns + `
		FROM matches
		WHERE status = $1 AND start_time <= $2
		ORDER BY start_time ASC, id ASC`

	rows, err := r.db.QueryContext(ctx, query, models.MatchStatusUpcoming, now)
	if err != nil {
		return nil, fmt.Errorf("failed to query due upcoming matches: %w", err)
	}
	defer rows.Close()

	matches := make([]*models.Match, 0)
	for rows.Next() {
		m, scanErr := r.scanMatch(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan due match row: %w", scanErr)
		}
		matches = append(matches, m)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during due match rows iteration: %w", err)
	}
	return matches, nil
}

// UpdateState persists the mutable lifecycle fields: status, winners,
// score/result text and the lock stamp. Everything else is owned by
// tournament setup and never touched here.
func (r *postgresMatchRepository) UpdateState(ctx context.Context, exec SQLExecutor, match *models.Match) error {
	executor := r.getExecutor(exec)
	query := `
		UPDATE matches
		SET status = $1, toss_winner_id = $2, match_winner_id = $3, score = $4, result = $5, locked_at = $6
		WHERE id = $7`

	result, err := executor.ExecContext(ctx, query,
		match.Status,
		match.TossWinnerID,
		match.WinnerID,
		match.Score,
		match.Result,
		match.LockedAt,
		match.ID,
	)
	if err != nil {
		return r.handleMatchError(err)
	}
	return checkAffectedRows(result, ErrMatchNotFound)
}

func (r *postgresMatchRepository) handleMatchError(err error) error {
	if err == nil {
		return nil
	}
	if pqErr, ok := err.(*pq.Error); ok {
		// "23503": foreign_key_violation
		switch pqErr.Constraint {
		case "matches_tournament_id_fkey":
			return ErrMatchTournamentInvalid
		case "matches_team_a_id_fkey", "matches_team_b_id_fkey",
			"matches_toss_winner_id_fkey", "matches_match_winner_id_fkey":
			return ErrMatchTeamInvalid
		}
	}
	return err
}
