package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/crickpick/prediction-league/models"
	"github.com/crickpick/prediction-league/repositories"
)

// StatusNotifier pushes lifecycle and vote events to connected clients.
// Satisfied by *live.Hub.
type StatusNotifier interface {
	BroadcastToRoom(roomID string, message interface{})
}

// CacheInvalidator is notified once a scoring run commits, so cached
// leaderboards are recomputed on the next read.
type CacheInvalidator interface {
	InvalidateCache()
}

// TransitionInput carries an administrator-requested status change.
// Winners are required for completed (both) and tie (toss only), and must
// be absent for void.
type TransitionInput struct {
	NewStatus    models.MatchStatus `json:"new_status"`
	TossWinnerID *int               `json:"toss_winner_id,omitempty"`
	WinnerID     *int               `json:"match_winner_id,omitempty"`
	Score        *string            `json:"score,omitempty"`
	Result       *string            `json:"result,omitempty"`
}

type MatchLifecycleService interface {
	GetMatch(ctx context.Context, matchID int) (*models.Match, int64, error)
	ListMatches(ctx context.Context, tournamentID *int, status *models.MatchStatus) ([]*models.Match, error)
	// Transition performs one admin-driven status change. Lock and scoring
	// run inside the same transaction as the status update: a terminal
	// transition either commits fully scored or not at all.
	Transition(ctx context.Context, matchID int, input TransitionInput) (*models.Match, error)
	// StartDueMatches flips every upcoming match whose start time has
	// passed to ongoing. Idempotent and safe to invoke concurrently.
	StartDueMatches(ctx context.Context) error
}

type matchLifecycleService struct {
	db             *sql.DB
	matchRepo      repositories.MatchRepository
	predictionRepo repositories.PredictionRepository
	clock          Clock
	invalidator    CacheInvalidator
	notifier       StatusNotifier
	logger         *slog.Logger
}

func NewMatchLifecycleService(
	db *sql.DB,
	matchRepo repositories.MatchRepository,
	predictionRepo repositories.PredictionRepository,
	clock Clock,
	invalidator CacheInvalidator,
	notifier StatusNotifier,
	logger *slog.Logger,
) MatchLifecycleService {
	return &matchLifecycleService{
		db:             db,
		matchRepo:      matchRepo,
		predictionRepo: predictionRepo,
		clock:          clock,
		invalidator:    invalidator,
		notifier:       notifier,
		logger:         logger,
	}
}

func matchRoom(matchID int) string {
	return fmt.Sprintf("match:%d", matchID)
}

func (s *matchLifecycleService) GetMatch(ctx context.Context, matchID int) (*models.Match, int64, error) {
	match, err := s.matchRepo.GetByID(ctx, nil, matchID)
	if err != nil {
		if errors.Is(err, repositories.ErrMatchNotFound) {
			return nil, 0, ErrMatchNotFound
		}
		return nil, 0, fmt.Errorf("failed to get match %d: %w", matchID, err)
	}
	return match, SecondsUntil(match.StartTime, s.clock.Now()), nil
}

func (s *matchLifecycleService) ListMatches(ctx context.Context, tournamentID *int, status *models.MatchStatus) ([]*models.Match, error) {
	matches, err := s.matchRepo.List(ctx, tournamentID, status)
	if err != nil {
		return nil, fmt.Errorf("failed to list matches: %w", err)
	}
	return matches, nil
}

// validateTransitionInput checks the shape of the request against the
// target status before any state is read.
func validateTransitionInput(input TransitionInput) error {
	if !input.NewStatus.IsValid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, input.NewStatus)
	}
	switch input.NewStatus {
	case models.MatchStatusCompleted:
		if input.TossWinnerID == nil || input.WinnerID == nil {
			return fmt.Errorf("%w: completed requires both toss and match winners", ErrInvalidTransition)
		}
	case models.MatchStatusTie:
		if input.TossWinnerID == nil {
			return fmt.Errorf("%w: tie requires a toss winner", ErrInvalidTransition)
		}
		if input.WinnerID != nil {
			return fmt.Errorf("%w: a tie has no match winner", ErrInvalidTransition)
		}
	case models.MatchStatusVoid, models.MatchStatusOngoing:
		if input.TossWinnerID != nil || input.WinnerID != nil {
			return fmt.Errorf("%w: winners are only set on completed or tie", ErrInvalidTransition)
		}
	case models.MatchStatusUpcoming:
		return fmt.Errorf("%w: no status transitions back to upcoming", ErrInvalidTransition)
	}
	return nil
}

func (s *matchLifecycleService) Transition(ctx context.Context, matchID int, input TransitionInput) (*models.Match, error) {
	if err := validateTransitionInput(input); err != nil {
		return nil, err
	}

	var match *models.Match
	err := withRetry(ctx, func() error {
		var txErr error
		match, txErr = s.transitionTx(ctx, matchID, input)
		return txErr
	})
	if err != nil {
		return nil, err
	}

	if match.Status.IsTerminal() {
		s.invalidator.InvalidateCache()
	}
	if s.notifier != nil {
		s.notifier.BroadcastToRoom(matchRoom(matchID), map[string]interface{}{
			"type":    "MATCH_STATUS",
			"payload": match,
		})
	}
	s.logger.InfoContext(ctx, "match transitioned",
		slog.Int("match_id", matchID),
		slog.String("status", string(match.Status)))
	return match, nil
}

// transitionTx holds the whole critical section: the FOR UPDATE read, the
// transition check, the lock stamp, the status write and, for terminal
// statuses, the scoring of every prediction of the match.
func (s *matchLifecycleService) transitionTx(ctx context.Context, matchID int, input TransitionInput) (*models.Match, error) {
	var match *models.Match
	err := repositories.WithinTx(ctx, s.db, func(tx *sql.Tx) error {
		m, err := s.matchRepo.GetByIDForUpdate(ctx, tx, matchID)
		if err != nil {
			if errors.Is(err, repositories.ErrMatchNotFound) {
				return ErrMatchNotFound
			}
			return err
		}

		if m.Status.IsTerminal() {
			// Terminal states are absorbing; a caller who read an older
			// status lost the race and may retry its read-transition cycle.
			return fmt.Errorf("%w: match %d is already %s", ErrStateConflict, matchID, m.Status)
		}
		if !m.Status.CanTransitionTo(input.NewStatus) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, m.Status, input.NewStatus)
		}

		if input.TossWinnerID != nil && !m.HasTeam(*input.TossWinnerID) {
			return fmt.Errorf("%w: toss winner %d", ErrInvalidTeam, *input.TossWinnerID)
		}
		if input.WinnerID != nil && !m.HasTeam(*input.WinnerID) {
			return fmt.Errorf("%w: match winner %d", ErrInvalidTeam, *input.WinnerID)
		}

		now := s.clock.Now()
		m.Status = input.NewStatus
		m.TossWinnerID = input.TossWinnerID
		m.WinnerID = input.WinnerID
		if input.Score != nil {
			m.Score = input.Score
		}
		if input.Result != nil {
			m.Result = input.Result
		}
		if m.LockedAt == nil {
			// Leaving upcoming is the lock point; re-locks are no-ops.
			m.LockedAt = &now
		}

		if err := s.matchRepo.UpdateState(ctx, tx, m); err != nil {
			return err
		}
		if m.Status.IsTerminal() {
			if err := s.scorePredictions(ctx, tx, m, now); err != nil {
				return err
			}
		}
		match = m
		return nil
	})
	if err != nil {
		return nil, err
	}
	return match, nil
}

// scorePredictions recomputes and overwrites points for every prediction of
// the match. Deterministic in the match state, so a re-run writes the same
// values instead of double-crediting.
func (s *matchLifecycleService) scorePredictions(ctx context.Context, tx *sql.Tx, match *models.Match, scoredAt time.Time) error {
	predictions, err := s.predictionRepo.ListByMatch(ctx, tx, match.ID)
	if err != nil {
		return err
	}

	scores := make([]repositories.PredictionScore, 0, len(predictions))
	for _, p := range predictions {
		scores = append(scores, repositories.PredictionScore{
			PredictionID: p.ID,
			Points:       ScorePrediction(match, p),
		})
	}
	return s.predictionRepo.UpdatePoints(ctx, tx, scores, scoredAt)
}

// ScorePrediction applies the scoring rules for one prediction against a
// terminal match:
//
//	void      -> 0 regardless of picks
//	tie       -> 1 if the toss pick matched, else 0 (no match winner exists)
//	completed -> one point per correct pick, 0..2
//
// A nil pick simply scores 0 for that field.
func ScorePrediction(match *models.Match, p *models.Prediction) int {
	switch match.Status {
	case models.MatchStatusVoid:
		return 0
	case models.MatchStatusTie:
		if pickMatches(p.PredictedTossWinnerID, match.TossWinnerID) {
			return 1
		}
		return 0
	case models.MatchStatusCompleted:
		points := 0
		if pickMatches(p.PredictedTossWinnerID, match.TossWinnerID) {
			points++
		}
		if pickMatches(p.PredictedWinnerID, match.WinnerID) {
			points++
		}
		return points
	}
	return 0
}

func pickMatches(pick, actual *int) bool {
	return pick != nil && actual != nil && *pick == *actual
}

func (s *matchLifecycleService) StartDueMatches(ctx context.Context) error {
	due, err := s.matchRepo.ListDueUpcoming(ctx, s.clock.Now())
	if err != nil {
		return fmt.Errorf("failed to list due matches: %w", err)
	}

	for _, m := range due {
		started, err := s.startMatch(ctx, m.ID)
		if err != nil {
			// Losing the race to another sweeper or an admin is expected.
			if errors.Is(err, ErrStateConflict) {
				continue
			}
			s.logger.ErrorContext(ctx, "failed to auto-start match",
				slog.Int("match_id", m.ID), slog.Any("error", err))
			continue
		}
		if s.notifier != nil {
			s.notifier.BroadcastToRoom(matchRoom(started.ID), map[string]interface{}{
				"type":    "MATCH_STATUS",
				"payload": started,
			})
		}
		s.logger.InfoContext(ctx, "match auto-started", slog.Int("match_id", m.ID))
	}
	return nil
}

// startMatch performs exactly one upcoming->ongoing transition under the
// row lock, re-checking both the status and the start time so repeated or
// concurrent invocations are no-ops.
func (s *matchLifecycleService) startMatch(ctx context.Context, matchID int) (*models.Match, error) {
	var started *models.Match
	err := withRetry(ctx, func() error {
		return repositories.WithinTx(ctx, s.db, func(tx *sql.Tx) error {
			m, err := s.matchRepo.GetByIDForUpdate(ctx, tx, matchID)
			if err != nil {
				return err
			}
			if m.Status != models.MatchStatusUpcoming {
				return fmt.Errorf("%w: match %d is already %s", ErrStateConflict, matchID, m.Status)
			}
			now := s.clock.Now()
			if m.StartTime.After(now) {
				return fmt.Errorf("%w: match %d has not started yet", ErrStateConflict, matchID)
			}
			m.Status = models.MatchStatusOngoing
			m.LockedAt = &now
			if err := s.matchRepo.UpdateState(ctx, tx, m); err != nil {
				return err
			}
			started = m
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return started, nil
}
