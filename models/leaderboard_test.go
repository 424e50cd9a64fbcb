package models_test

import (
	"testing"
	"time"

	"github.com/crickpick/prediction-league/models"
)

func TestTimeframeWindow(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

	since, ok := models.TimeframeWeekly.Window(now)
	if !ok || !since.Equal(now.AddDate(0, 0, -7)) {
		t.Errorf("weekly window = %v ok=%v, want now-7d", since, ok)
	}

	since, ok = models.TimeframeMonthly.Window(now)
	if !ok || !since.Equal(now.AddDate(0, 0, -30)) {
		t.Errorf("monthly window = %v ok=%v, want now-30d", since, ok)
	}

	if _, ok = models.TimeframeAllTime.Window(now); ok {
		t.Error("all-time window should be unbounded")
	}
}

func TestTimeframeIsValid(t *testing.T) {
	for _, tf := range []models.Timeframe{models.TimeframeWeekly, models.TimeframeMonthly, models.TimeframeAllTime} {
		if !tf.IsValid() {
			t.Errorf("%s reported invalid", tf)
		}
	}
	if models.Timeframe("yearly").IsValid() {
		t.Error("unknown timeframe reported valid")
	}
}

func TestVoteTallyPercentage(t *testing.T) {
	tally := models.VoteTally{
		Counts: map[int]int{10: 3, 20: 1},
		Total:  4,
	}
	if got := tally.Percentage(10); got != 75 {
		t.Errorf("percentage(10) = %f, want 75", got)
	}
	if got := tally.Percentage(30); got != 0 {
		t.Errorf("percentage of absent team = %f, want 0", got)
	}

	empty := models.VoteTally{Counts: map[int]int{}}
	if got := empty.Percentage(10); got != 0 {
		t.Errorf("percentage with no votes = %f, want 0", got)
	}
}
