package repositories

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/crickpick/prediction-league/models"
)

func newPredictionRepo(t *testing.T) (PredictionRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, dbMock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewPostgresPredictionRepository(db), dbMock
}

// TestUpsert_PreservesOmittedField verifies the upsert keeps the stored pick
// for a field submitted as NULL and returns the merged row.
func TestUpsert_PreservesOmittedField(t *testing.T) {
	repo, dbMock := newPredictionRepo(t)
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

	// Submission carries only the match pick; the database merges in the
	// previously stored toss pick via COALESCE.
	rows := sqlmock.NewRows([]string{"id", "predicted_toss_winner_id", "predicted_match_winner_id", "created_at", "updated_at"}).
		AddRow(5, 10, 20, now.Add(-time.Hour), now)
	dbMock.ExpectQuery("INSERT INTO predictions(.+)ON CONFLICT \\(user_id, match_id\\) DO UPDATE SET").
		WithArgs(1, 2, nil, 20).
		WillReturnRows(rows)

	p := &models.Prediction{UserID: 1, MatchID: 2, PredictedWinnerID: intp(20)}
	if err := repo.Upsert(context.Background(), nil, p); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if p.ID != 5 {
		t.Errorf("id = %d, want 5", p.ID)
	}
	if p.PredictedTossWinnerID == nil || *p.PredictedTossWinnerID != 10 {
		t.Errorf("toss pick = %v, want merged 10", p.PredictedTossWinnerID)
	}
	if p.PredictedWinnerID == nil || *p.PredictedWinnerID != 20 {
		t.Errorf("match pick = %v, want 20", p.PredictedWinnerID)
	}
	if err := dbMock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestUpdatePoints_MissingPrediction(t *testing.T) {
	repo, dbMock := newPredictionRepo(t)
	scoredAt := time.Now()

	dbMock.ExpectExec("UPDATE predictions SET points_earned").
		WithArgs(2, scoredAt, 9).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdatePoints(context.Background(), nil, []PredictionScore{{PredictionID: 9, Points: 2}}, scoredAt)
	if !errors.Is(err, ErrPredictionNotFound) {
		t.Errorf("expected ErrPredictionNotFound, got %v", err)
	}
}

func TestUpdatePoints_EmptyScoresIsNoop(t *testing.T) {
	repo, dbMock := newPredictionRepo(t)

	if err := repo.UpdatePoints(context.Background(), nil, nil, time.Now()); err != nil {
		t.Fatalf("UpdatePoints with no scores failed: %v", err)
	}
	if err := dbMock.ExpectationsWereMet(); err != nil {
		t.Errorf("unexpected database calls: %v", err)
	}
}

func TestTally_GroupsByPick(t *testing.T) {
	repo, dbMock := newPredictionRepo(t)

	rows := sqlmock.NewRows([]string{"predicted_toss_winner_id", "count"}).
		AddRow(10, 3).
		AddRow(20, 1)
	dbMock.ExpectQuery("SELECT p.predicted_toss_winner_id, COUNT(.+)FROM predictions p").
		WithArgs(7, models.MatchStatusUpcoming, models.MatchStatusOngoing).
		WillReturnRows(rows)

	tally, err := repo.Tally(context.Background(), 7, models.PredictionTypeToss)
	if err != nil {
		t.Fatalf("Tally failed: %v", err)
	}
	if tally.Total != 4 {
		t.Errorf("total = %d, want 4", tally.Total)
	}
	if tally.Counts[10] != 3 || tally.Counts[20] != 1 {
		t.Errorf("counts = %v, want 10:3 20:1", tally.Counts)
	}
}

// TestAggregateLeaderboard_EligibilityAndOrder pins the eligibility
// predicate and the total order to the generated SQL, and checks accuracy
// derivation from the scanned aggregates.
func TestAggregateLeaderboard_EligibilityAndOrder(t *testing.T) {
	repo, dbMock := newPredictionRepo(t)
	memberSince := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows([]string{"id", "display_name", "avatar_key", "is_verified", "created_at", "points", "correct", "total_matches", "scorable"}).
		AddRow(7, "keeper", "avatars/7.png", true, memberSince, 9, 6, 5, 8).
		AddRow(8, "bowler", nil, true, memberSince, 4, 4, 3, 5)
	dbMock.ExpectQuery(`u\.is_verified = TRUE(.+)NOT t\.is_contest OR EXISTS(.+)ORDER BY points DESC, correct DESC, u\.created_at ASC, u\.id ASC`).
		WillReturnRows(rows)

	entries, err := repo.AggregateLeaderboard(context.Background(), LeaderboardQuery{})
	if err != nil {
		t.Fatalf("AggregateLeaderboard failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	first := entries[0]
	if first.UserID != 7 || first.Points != 9 {
		t.Errorf("first entry = user %d points %d, want 7/9", first.UserID, first.Points)
	}
	if first.AvatarKey == nil || *first.AvatarKey != "avatars/7.png" {
		t.Errorf("avatar key = %v, want avatars/7.png", first.AvatarKey)
	}
	if first.Accuracy != 75 {
		t.Errorf("accuracy = %f, want 75 (6 of 8 scorable)", first.Accuracy)
	}
	if entries[1].AvatarKey != nil {
		t.Errorf("second entry avatar key = %v, want nil", *entries[1].AvatarKey)
	}
}

func TestAggregateLeaderboard_AppliesScopeFilters(t *testing.T) {
	repo, dbMock := newPredictionRepo(t)
	since := time.Date(2026, 3, 7, 12, 0, 0, 0, time.UTC)
	tournamentID := 3

	dbMock.ExpectQuery(`m\.start_time >= \$1(.+)m\.tournament_id = \$2`).
		WithArgs(since, tournamentID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "display_name", "avatar_key", "is_verified", "created_at", "points", "correct", "total_matches", "scorable"}))

	entries, err := repo.AggregateLeaderboard(context.Background(), LeaderboardQuery{Since: &since, TournamentID: &tournamentID})
	if err != nil {
		t.Fatalf("AggregateLeaderboard failed: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("got %d entries, want 0", len(entries))
	}
	if err := dbMock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

// TestUserStats_NoScoredPredictions verifies a user with nothing scored gets
// zero stats, not an error.
func TestUserStats_NoScoredPredictions(t *testing.T) {
	repo, dbMock := newPredictionRepo(t)

	dbMock.ExpectQuery("FROM predictions p").
		WithArgs(7).
		WillReturnError(sql.ErrNoRows)

	stats, err := repo.UserStats(context.Background(), 7, LeaderboardQuery{})
	if err != nil {
		t.Fatalf("UserStats failed: %v", err)
	}
	if stats.UserID != 7 || stats.Points != 0 || stats.Accuracy != 0 {
		t.Errorf("expected zero stats, got %+v", stats)
	}
}

func intp(n int) *int { return &n }
