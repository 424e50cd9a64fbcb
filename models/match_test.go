package models_test

import (
	"testing"

	"github.com/crickpick/prediction-league/models"
)

func TestMatchStatusCanTransitionTo(t *testing.T) {
	all := []models.MatchStatus{
		models.MatchStatusUpcoming,
		models.MatchStatusOngoing,
		models.MatchStatusCompleted,
		models.MatchStatusTie,
		models.MatchStatusVoid,
	}

	allowed := map[models.MatchStatus]map[models.MatchStatus]bool{
		models.MatchStatusUpcoming: {
			models.MatchStatusOngoing:   true,
			models.MatchStatusCompleted: true,
			models.MatchStatusTie:       true,
			models.MatchStatusVoid:      true,
		},
		models.MatchStatusOngoing: {
			models.MatchStatusCompleted: true,
			models.MatchStatusTie:       true,
			models.MatchStatusVoid:      true,
		},
	}

	for _, from := range all {
		for _, to := range all {
			want := allowed[from][to]
			if got := from.CanTransitionTo(to); got != want {
				t.Errorf("%s -> %s: CanTransitionTo = %v, want %v", from, to, got, want)
			}
		}
	}
}

func TestMatchStatusIsTerminal(t *testing.T) {
	terminal := map[models.MatchStatus]bool{
		models.MatchStatusUpcoming:  false,
		models.MatchStatusOngoing:   false,
		models.MatchStatusCompleted: true,
		models.MatchStatusTie:       true,
		models.MatchStatusVoid:      true,
	}
	for status, want := range terminal {
		if got := status.IsTerminal(); got != want {
			t.Errorf("%s: IsTerminal = %v, want %v", status, got, want)
		}
	}
}

func TestMatchStatusIsValid(t *testing.T) {
	if models.MatchStatus("postponed").IsValid() {
		t.Error("unknown status reported valid")
	}
	if !models.MatchStatusTie.IsValid() {
		t.Error("tie reported invalid")
	}
}

func TestMatchHasTeam(t *testing.T) {
	m := &models.Match{TeamAID: 10, TeamBID: 20}
	if !m.HasTeam(10) || !m.HasTeam(20) {
		t.Error("expected both sides to be recognized")
	}
	if m.HasTeam(30) {
		t.Error("foreign team recognized as a side")
	}
}
