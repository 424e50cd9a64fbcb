package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/crickpick/prediction-league/models"
)

var ErrTournamentNotFound = errors.New("tournament not found")

type TournamentRepository interface {
	GetByID(ctx context.Context, id int) (*models.Tournament, error)
	// IsContestParticipant reports current membership in a contest
	// tournament's whitelist. Removal only affects future aggregation.
	IsContestParticipant(ctx context.Context, tournamentID, userID int) (bool, error)
}

type postgresTournamentRepository struct {
	db *sql.DB
}

func NewPostgresTournamentRepository(db *sql.DB) TournamentRepository {
	return &postgresTournamentRepository{db: db}
}

func (r *postgresTournamentRepository) GetByID(ctx context.Context, id int) (*models.Tournament, error) {
	query := `
		SELECT id, name, is_contest, start_date, end_date, created_at
		FROM tournaments
		WHERE id = $1`

	var t models.Tournament
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&t.ID,
		&t.Name,
		&t.IsContest,
		&t.StartDate,
		&t.EndDate,
		&t.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTournamentNotFound
		}
		return nil, fmt.Errorf("failed to scan tournament by id %d: %w", id, err)
	}
	return &t, nil
}

func (r *postgresTournamentRepository) IsContestParticipant(ctx context.Context, tournamentID, userID int) (bool, error) {
	query := `SELECT EXISTS (
		SELECT 1 FROM contest_participants
		WHERE tournament_id = $1 AND user_id = $2)`

	var exists bool
	if err := r.db.QueryRowContext(ctx, query, tournamentID, userID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check contest participation t:%d u:%d: %w", tournamentID, userID, err)
	}
	return exists, nil
}
