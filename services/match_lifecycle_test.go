package services_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/crickpick/prediction-league/models"
	"github.com/crickpick/prediction-league/repositories/mock"
	"github.com/crickpick/prediction-league/services"
)

type lifecycleFixture struct {
	svc         services.MatchLifecycleService
	matches     *mock.MatchRepository
	predictions *mock.PredictionRepository
	clock       *fakeClock
	notifier    *fakeNotifier
	invalidator *fakeInvalidator
}

func setupLifecycle(t *testing.T) *lifecycleFixture {
	t.Helper()
	f := &lifecycleFixture{
		matches:     mock.NewMatchRepository(),
		predictions: mock.NewPredictionRepository(),
		clock:       newFakeClock(time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)),
		notifier:    &fakeNotifier{},
		invalidator: &fakeInvalidator{},
	}
	f.svc = services.NewMatchLifecycleService(
		newTxDB(t),
		f.matches,
		f.predictions,
		f.clock,
		f.invalidator,
		f.notifier,
		testLogger(),
	)
	return f
}

func (f *lifecycleFixture) seedMatch(status models.MatchStatus) *models.Match {
	return f.matches.Put(&models.Match{
		TournamentID: 1,
		TeamAID:      10,
		TeamBID:      20,
		StartTime:    f.clock.Now().Add(-time.Hour),
		Status:       status,
	})
}

// TestScorePrediction covers the full scoring table for a single prediction.
func TestScorePrediction(t *testing.T) {
	completed := &models.Match{
		Status:       models.MatchStatusCompleted,
		TossWinnerID: intPtr(10),
		WinnerID:     intPtr(20),
	}
	tie := &models.Match{
		Status:       models.MatchStatusTie,
		TossWinnerID: intPtr(10),
	}
	void := &models.Match{
		Status:       models.MatchStatusVoid,
	}

	tests := []struct {
		name       string
		match      *models.Match
		prediction *models.Prediction
		want       int
	}{
		{"completed both correct", completed, &models.Prediction{PredictedTossWinnerID: intPtr(10), PredictedWinnerID: intPtr(20)}, 2},
		{"completed toss only correct", completed, &models.Prediction{PredictedTossWinnerID: intPtr(10), PredictedWinnerID: intPtr(10)}, 1},
		{"completed winner only correct", completed, &models.Prediction{PredictedTossWinnerID: intPtr(20), PredictedWinnerID: intPtr(20)}, 1},
		{"completed both wrong", completed, &models.Prediction{PredictedTossWinnerID: intPtr(20), PredictedWinnerID: intPtr(10)}, 0},
		{"completed nil picks", completed, &models.Prediction{}, 0},
		{"completed toss pick only", completed, &models.Prediction{PredictedTossWinnerID: intPtr(10)}, 1},
		{"tie toss correct", tie, &models.Prediction{PredictedTossWinnerID: intPtr(10), PredictedWinnerID: intPtr(20)}, 1},
		{"tie toss wrong", tie, &models.Prediction{PredictedTossWinnerID: intPtr(20)}, 0},
		{"tie nil toss", tie, &models.Prediction{PredictedWinnerID: intPtr(10)}, 0},
		{"void ignores picks", void, &models.Prediction{PredictedTossWinnerID: intPtr(10), PredictedWinnerID: intPtr(20)}, 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := services.ScorePrediction(tc.match, tc.prediction); got != tc.want {
				t.Errorf("ScorePrediction() = %d, want %d", got, tc.want)
			}
		})
	}
}

// TestTransition_CompletedScoresAllPredictions verifies the terminal
// transition scores every prediction of the match in the same operation.
func TestTransition_CompletedScoresAllPredictions(t *testing.T) {
	f := setupLifecycle(t)
	match := f.seedMatch(models.MatchStatusOngoing)

	exact := f.predictions.Put(&models.Prediction{UserID: 1, MatchID: match.ID, PredictedTossWinnerID: intPtr(10), PredictedWinnerID: intPtr(20)})
	tossOnly := f.predictions.Put(&models.Prediction{UserID: 2, MatchID: match.ID, PredictedTossWinnerID: intPtr(10), PredictedWinnerID: intPtr(10)})
	wrong := f.predictions.Put(&models.Prediction{UserID: 3, MatchID: match.ID, PredictedTossWinnerID: intPtr(20), PredictedWinnerID: intPtr(10)})
	empty := f.predictions.Put(&models.Prediction{UserID: 4, MatchID: match.ID})

	updated, err := f.svc.Transition(context.Background(), match.ID, services.TransitionInput{
		NewStatus:    models.MatchStatusCompleted,
		TossWinnerID: intPtr(10),
		WinnerID:     intPtr(20),
	})
	if err != nil {
		t.Fatalf("Transition failed: %v", err)
	}
	if updated.Status != models.MatchStatusCompleted {
		t.Errorf("expected status completed, got %s", updated.Status)
	}
	if updated.LockedAt == nil {
		t.Error("expected locked_at to be stamped on the terminal transition")
	}

	wantPoints := map[int]int{exact.ID: 2, tossOnly.ID: 1, wrong.ID: 0, empty.ID: 0}
	for id, want := range wantPoints {
		stored := f.predictions.Stored(id)
		if stored.PointsEarned == nil {
			t.Fatalf("prediction %d was not scored", id)
		}
		if *stored.PointsEarned != want {
			t.Errorf("prediction %d: points = %d, want %d", id, *stored.PointsEarned, want)
		}
		if stored.ScoredAt == nil {
			t.Errorf("prediction %d: scored_at not set", id)
		}
	}

	if f.invalidator.Calls() != 1 {
		t.Errorf("expected 1 cache invalidation, got %d", f.invalidator.Calls())
	}
	if len(f.notifier.Events()) != 1 {
		t.Errorf("expected 1 status broadcast, got %d", len(f.notifier.Events()))
	}
}

// TestTransition_TieScoresTossOnly verifies a tie awards only the toss point.
func TestTransition_TieScoresTossOnly(t *testing.T) {
	f := setupLifecycle(t)
	match := f.seedMatch(models.MatchStatusOngoing)

	p := f.predictions.Put(&models.Prediction{UserID: 1, MatchID: match.ID, PredictedTossWinnerID: intPtr(20), PredictedWinnerID: intPtr(20)})

	_, err := f.svc.Transition(context.Background(), match.ID, services.TransitionInput{
		NewStatus:    models.MatchStatusTie,
		TossWinnerID: intPtr(20),
	})
	if err != nil {
		t.Fatalf("Transition failed: %v", err)
	}

	stored := f.predictions.Stored(p.ID)
	if stored.PointsEarned == nil || *stored.PointsEarned != 1 {
		t.Errorf("expected 1 point on a tie with a correct toss pick, got %v", stored.PointsEarned)
	}
}

// TestTransition_VoidZeroesEveryPrediction verifies void scores 0 regardless
// of picks.
func TestTransition_VoidZeroesEveryPrediction(t *testing.T) {
	f := setupLifecycle(t)
	match := f.seedMatch(models.MatchStatusUpcoming)

	p := f.predictions.Put(&models.Prediction{UserID: 1, MatchID: match.ID, PredictedTossWinnerID: intPtr(10), PredictedWinnerID: intPtr(20)})

	updated, err := f.svc.Transition(context.Background(), match.ID, services.TransitionInput{
		NewStatus: models.MatchStatusVoid,
	})
	if err != nil {
		t.Fatalf("Transition failed: %v", err)
	}
	if updated.LockedAt == nil {
		t.Error("expected the direct upcoming->void transition to stamp locked_at")
	}

	stored := f.predictions.Stored(p.ID)
	if stored.PointsEarned == nil || *stored.PointsEarned != 0 {
		t.Errorf("expected 0 points on a void match, got %v", stored.PointsEarned)
	}
}

// TestTransition_TerminalIsAbsorbing verifies a second terminal transition
// surfaces a conflict instead of rescoring.
func TestTransition_TerminalIsAbsorbing(t *testing.T) {
	f := setupLifecycle(t)
	match := f.seedMatch(models.MatchStatusOngoing)

	_, err := f.svc.Transition(context.Background(), match.ID, services.TransitionInput{
		NewStatus:    models.MatchStatusCompleted,
		TossWinnerID: intPtr(10),
		WinnerID:     intPtr(20),
	})
	if err != nil {
		t.Fatalf("first Transition failed: %v", err)
	}

	_, err = f.svc.Transition(context.Background(), match.ID, services.TransitionInput{
		NewStatus: models.MatchStatusVoid,
	})
	if !errors.Is(err, services.ErrStateConflict) {
		t.Errorf("expected ErrStateConflict, got %v", err)
	}
}

// TestTransition_ValidationRejectsMalformedInput covers input shapes that
// must fail before any state is read.
func TestTransition_ValidationRejectsMalformedInput(t *testing.T) {
	f := setupLifecycle(t)
	match := f.seedMatch(models.MatchStatusOngoing)

	tests := []struct {
		name  string
		input services.TransitionInput
	}{
		{"unknown status", services.TransitionInput{NewStatus: "postponed"}},
		{"back to upcoming", services.TransitionInput{NewStatus: models.MatchStatusUpcoming}},
		{"completed without winners", services.TransitionInput{NewStatus: models.MatchStatusCompleted}},
		{"completed without match winner", services.TransitionInput{NewStatus: models.MatchStatusCompleted, TossWinnerID: intPtr(10)}},
		{"tie without toss winner", services.TransitionInput{NewStatus: models.MatchStatusTie}},
		{"tie with match winner", services.TransitionInput{NewStatus: models.MatchStatusTie, TossWinnerID: intPtr(10), WinnerID: intPtr(20)}},
		{"void with winner", services.TransitionInput{NewStatus: models.MatchStatusVoid, WinnerID: intPtr(10)}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.Transition(context.Background(), match.ID, tc.input)
			if !errors.Is(err, services.ErrInvalidTransition) {
				t.Errorf("expected ErrInvalidTransition, got %v", err)
			}
		})
	}
}

// TestTransition_RejectsForeignTeam verifies winners must be one of the two
// sides of the match.
func TestTransition_RejectsForeignTeam(t *testing.T) {
	f := setupLifecycle(t)
	match := f.seedMatch(models.MatchStatusOngoing)

	_, err := f.svc.Transition(context.Background(), match.ID, services.TransitionInput{
		NewStatus:    models.MatchStatusCompleted,
		TossWinnerID: intPtr(99),
		WinnerID:     intPtr(20),
	})
	if !errors.Is(err, services.ErrInvalidTeam) {
		t.Errorf("expected ErrInvalidTeam, got %v", err)
	}
}

func TestTransition_MatchNotFound(t *testing.T) {
	f := setupLifecycle(t)

	_, err := f.svc.Transition(context.Background(), 404, services.TransitionInput{
		NewStatus: models.MatchStatusOngoing,
	})
	if !errors.Is(err, services.ErrMatchNotFound) {
		t.Errorf("expected ErrMatchNotFound, got %v", err)
	}
}

// TestTransition_TransientFailureSurfacesUnavailable verifies storage errors
// are retried and then reported as unavailability, never as success.
func TestTransition_TransientFailureSurfacesUnavailable(t *testing.T) {
	f := setupLifecycle(t)
	match := f.seedMatch(models.MatchStatusUpcoming)
	f.matches.GetForUpdateError = errors.New("connection reset by peer")

	_, err := f.svc.Transition(context.Background(), match.ID, services.TransitionInput{
		NewStatus: models.MatchStatusOngoing,
	})
	if !errors.Is(err, services.ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}
	if f.invalidator.Calls() != 0 {
		t.Error("cache must not be invalidated on a failed transition")
	}
}

// TestStartDueMatches verifies due upcoming matches flip to ongoing while
// future and already-started matches are untouched.
func TestStartDueMatches(t *testing.T) {
	f := setupLifecycle(t)
	due1 := f.seedMatch(models.MatchStatusUpcoming)
	due2 := f.seedMatch(models.MatchStatusUpcoming)
	future := f.matches.Put(&models.Match{
		TournamentID: 1, TeamAID: 10, TeamBID: 20,
		StartTime: f.clock.Now().Add(time.Hour),
		Status:    models.MatchStatusUpcoming,
	})
	running := f.seedMatch(models.MatchStatusOngoing)

	if err := f.svc.StartDueMatches(context.Background()); err != nil {
		t.Fatalf("StartDueMatches failed: %v", err)
	}

	for _, id := range []int{due1.ID, due2.ID} {
		if got := f.matches.Stored(id).Status; got != models.MatchStatusOngoing {
			t.Errorf("match %d: status = %s, want ongoing", id, got)
		}
		if f.matches.Stored(id).LockedAt == nil {
			t.Errorf("match %d: expected locked_at stamp", id)
		}
	}
	if got := f.matches.Stored(future.ID).Status; got != models.MatchStatusUpcoming {
		t.Errorf("future match flipped early to %s", got)
	}
	if got := f.matches.Stored(running.ID).Status; got != models.MatchStatusOngoing {
		t.Errorf("running match changed to %s", got)
	}
	if len(f.notifier.Events()) != 2 {
		t.Errorf("expected 2 broadcasts, got %d", len(f.notifier.Events()))
	}

	// A second sweep finds nothing due and changes nothing.
	updates := f.matches.UpdateStateCalls
	if err := f.svc.StartDueMatches(context.Background()); err != nil {
		t.Fatalf("second StartDueMatches failed: %v", err)
	}
	if f.matches.UpdateStateCalls != updates {
		t.Error("second sweep wrote state for already-started matches")
	}
}

// TestGetMatch_SecondsToStart verifies the countdown is derived and clamps
// at zero once the start time passes.
func TestGetMatch_SecondsToStart(t *testing.T) {
	f := setupLifecycle(t)
	upcoming := f.matches.Put(&models.Match{
		TournamentID: 1, TeamAID: 10, TeamBID: 20,
		StartTime: f.clock.Now().Add(90 * time.Second),
		Status:    models.MatchStatusUpcoming,
	})

	_, seconds, err := f.svc.GetMatch(context.Background(), upcoming.ID)
	if err != nil {
		t.Fatalf("GetMatch failed: %v", err)
	}
	if seconds != 90 {
		t.Errorf("seconds_to_start = %d, want 90", seconds)
	}

	f.clock.Advance(2 * time.Minute)
	_, seconds, err = f.svc.GetMatch(context.Background(), upcoming.ID)
	if err != nil {
		t.Fatalf("GetMatch failed: %v", err)
	}
	if seconds != 0 {
		t.Errorf("seconds_to_start after start = %d, want 0", seconds)
	}
}
