package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/crickpick/prediction-league/repositories"
)

const (
	retryAttempts = 3
	retryBackoff  = 100 * time.Millisecond
)

// domainErrors never get retried: the outcome would be identical.
var domainErrors = []error{
	ErrNotFound,
	ErrMatchNotFound,
	ErrUserNotFound,
	ErrTournamentNotFound,
	ErrPredictionNotFound,
	ErrInvalidTransition,
	ErrStateConflict,
	ErrMatchLocked,
	ErrInvalidTeam,
	ErrInvalidPredictionType,
	ErrEmptyPrediction,
	ErrInvalidTimeframe,
	ErrInvalidPage,
	ErrInvalidCredentials,
	repositories.ErrMatchNotFound,
	repositories.ErrUserNotFound,
	repositories.ErrTournamentNotFound,
	repositories.ErrPredictionNotFound,
	repositories.ErrMatchTeamInvalid,
	repositories.ErrMatchTournamentInvalid,
	repositories.ErrPredictionTeamInvalid,
	repositories.ErrPredictionUserInvalid,
}

func isRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	for _, domainErr := range domainErrors {
		if errors.Is(err, domainErr) {
			return false
		}
	}
	return true
}

// withRetry re-runs fn on transient storage failures with bounded attempts,
// surfacing ErrUnavailable once they are exhausted. fn must be safe to run
// again as a whole (every caller here runs a full transaction).
func withRetry(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 1; attempt <= retryAttempts; attempt++ {
		err = fn()
		if !isRetryable(err) {
			return err
		}
		if attempt == retryAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryBackoff * time.Duration(attempt)):
		}
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}
