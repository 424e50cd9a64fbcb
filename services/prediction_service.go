package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/crickpick/prediction-league/models"
	"github.com/crickpick/prediction-league/repositories"
)

// SubmitPredictionInput carries one submission; either pick may be nil and
// a nil pick leaves the previously stored value untouched.
type SubmitPredictionInput struct {
	PredictedTossWinnerID *int `json:"predicted_toss_winner_id"`
	PredictedWinnerID     *int `json:"predicted_match_winner_id"`
}

type PredictionService interface {
	// Submit upserts the caller's single prediction row for a match while
	// the match is still upcoming. Per-field last write wins.
	Submit(ctx context.Context, userID, matchID int, input SubmitPredictionInput) (*models.Prediction, error)
	Get(ctx context.Context, userID, matchID int) (*models.Prediction, error)
	// Tally returns the live vote split for one prediction type. Terminal
	// matches yield an empty tally.
	Tally(ctx context.Context, matchID int, predictionType models.PredictionType) (*models.VoteTally, error)
	// Stats is the user's own aggregate, available to unverified users too.
	Stats(ctx context.Context, userID int) (*models.UserStats, error)
}

type predictionService struct {
	db             *sql.DB
	matchRepo      repositories.MatchRepository
	predictionRepo repositories.PredictionRepository
	notifier       StatusNotifier
	logger         *slog.Logger
}

func NewPredictionService(
	db *sql.DB,
	matchRepo repositories.MatchRepository,
	predictionRepo repositories.PredictionRepository,
	notifier StatusNotifier,
	logger *slog.Logger,
) PredictionService {
	return &predictionService{
		db:             db,
		matchRepo:      matchRepo,
		predictionRepo: predictionRepo,
		notifier:       notifier,
		logger:         logger,
	}
}

func (s *predictionService) Submit(ctx context.Context, userID, matchID int, input SubmitPredictionInput) (*models.Prediction, error) {
	if input.PredictedTossWinnerID == nil && input.PredictedWinnerID == nil {
		return nil, ErrEmptyPrediction
	}

	var prediction *models.Prediction
	err := withRetry(ctx, func() error {
		return repositories.WithinTx(ctx, s.db, func(tx *sql.Tx) error {
			// The row lock serializes this submit against lock/score of the
			// same match; the status check under the lock is what makes the
			// lock point exact rather than best-effort.
			match, err := s.matchRepo.GetByIDForUpdate(ctx, tx, matchID)
			if err != nil {
				if errors.Is(err, repositories.ErrMatchNotFound) {
					return ErrMatchNotFound
				}
				return err
			}
			if match.Status != models.MatchStatusUpcoming {
				return fmt.Errorf("%w: match %d is %s", ErrMatchLocked, matchID, match.Status)
			}
			if input.PredictedTossWinnerID != nil && !match.HasTeam(*input.PredictedTossWinnerID) {
				return fmt.Errorf("%w: toss pick %d", ErrInvalidTeam, *input.PredictedTossWinnerID)
			}
			if input.PredictedWinnerID != nil && !match.HasTeam(*input.PredictedWinnerID) {
				return fmt.Errorf("%w: match pick %d", ErrInvalidTeam, *input.PredictedWinnerID)
			}

			p := &models.Prediction{
				UserID:                userID,
				MatchID:               matchID,
				PredictedTossWinnerID: input.PredictedTossWinnerID,
				PredictedWinnerID:     input.PredictedWinnerID,
			}
			if err := s.predictionRepo.Upsert(ctx, tx, p); err != nil {
				if errors.Is(err, repositories.ErrPredictionUserInvalid) {
					return ErrUserNotFound
				}
				return err
			}
			prediction = p
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	s.broadcastTallies(ctx, matchID)
	return prediction, nil
}

// broadcastTallies pushes fresh vote splits to the match room. Best effort:
// a failed read here never fails the submission that triggered it.
func (s *predictionService) broadcastTallies(ctx context.Context, matchID int) {
	if s.notifier == nil {
		return
	}
	for _, predictionType := range []models.PredictionType{models.PredictionTypeToss, models.PredictionTypeMatch} {
		tally, err := s.predictionRepo.Tally(ctx, matchID, predictionType)
		if err != nil {
			s.logger.WarnContext(ctx, "failed to refresh vote tally",
				slog.Int("match_id", matchID),
				slog.String("type", string(predictionType)),
				slog.Any("error", err))
			return
		}
		s.notifier.BroadcastToRoom(matchRoom(matchID), map[string]interface{}{
			"type":    "VOTE_TALLY",
			"payload": tally,
		})
	}
}

func (s *predictionService) Get(ctx context.Context, userID, matchID int) (*models.Prediction, error) {
	p, err := s.predictionRepo.GetByUserAndMatch(ctx, userID, matchID)
	if err != nil {
		if errors.Is(err, repositories.ErrPredictionNotFound) {
			return nil, ErrPredictionNotFound
		}
		return nil, fmt.Errorf("failed to get prediction for user %d match %d: %w", userID, matchID, err)
	}
	return p, nil
}

func (s *predictionService) Tally(ctx context.Context, matchID int, predictionType models.PredictionType) (*models.VoteTally, error) {
	if !predictionType.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPredictionType, predictionType)
	}
	if _, err := s.matchRepo.GetByID(ctx, nil, matchID); err != nil {
		if errors.Is(err, repositories.ErrMatchNotFound) {
			return nil, ErrMatchNotFound
		}
		return nil, fmt.Errorf("failed to get match %d: %w", matchID, err)
	}

	var tally *models.VoteTally
	err := withRetry(ctx, func() error {
		var tallyErr error
		tally, tallyErr = s.predictionRepo.Tally(ctx, matchID, predictionType)
		return tallyErr
	})
	if err != nil {
		return nil, err
	}
	return tally, nil
}

func (s *predictionService) Stats(ctx context.Context, userID int) (*models.UserStats, error) {
	stats, err := s.predictionRepo.UserStats(ctx, userID, repositories.LeaderboardQuery{})
	if err != nil {
		return nil, fmt.Errorf("failed to load stats for user %d: %w", userID, err)
	}
	return stats, nil
}
