// Package mock holds in-memory repository fakes with injectable per-method
// errors, so service tests can exercise error paths without a database.
//
// Usage:
//
//	matchRepo := mock.NewMatchRepository()
//	matchRepo.Put(&models.Match{ID: 1, Status: models.MatchStatusUpcoming})
//	matchRepo.UpdateStateError = errors.New("database error")
//	svc := services.NewMatchLifecycleService(db, matchRepo, ...)
//
// The fakes ignore the SQLExecutor argument; transactional behavior is
// covered separately with sqlmock.
package mock

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/crickpick/prediction-league/models"
	"github.com/crickpick/prediction-league/repositories"
)

// ===== MatchRepository =====

type MatchRepository struct {
	mu      sync.Mutex
	matches map[int]*models.Match
	nextID  int

	CreateError       error
	GetByIDError      error
	GetForUpdateError error
	ListError         error
	ListDueError      error
	UpdateStateError  error

	UpdateStateCalls int
}

func NewMatchRepository() *MatchRepository {
	return &MatchRepository{matches: make(map[int]*models.Match), nextID: 1}
}

// Put seeds a match, assigning an ID when it has none.
func (m *MatchRepository) Put(match *models.Match) *models.Match {
	m.mu.Lock()
	defer m.mu.Unlock()
	if match.ID == 0 {
		match.ID = m.nextID
	}
	if match.ID >= m.nextID {
		m.nextID = match.ID + 1
	}
	stored := *match
	m.matches[match.ID] = &stored
	return match
}

// Stored returns the current stored state of a match, nil when absent.
func (m *MatchRepository) Stored(id int) *models.Match {
	m.mu.Lock()
	defer m.mu.Unlock()
	match, ok := m.matches[id]
	if !ok {
		return nil
	}
	copied := *match
	return &copied
}

func (m *MatchRepository) Create(ctx context.Context, exec repositories.SQLExecutor, match *models.Match) error {
	if m.CreateError != nil {
		return m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	match.ID = m.nextID
	m.nextID++
	match.CreatedAt = time.Now()
	stored := *match
	m.matches[match.ID] = &stored
	return nil
}

func (m *MatchRepository) get(id int) (*models.Match, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	match, ok := m.matches[id]
	if !ok {
		return nil, repositories.ErrMatchNotFound
	}
	copied := *match
	return &copied, nil
}

func (m *MatchRepository) GetByID(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.Match, error) {
	if m.GetByIDError != nil {
		return nil, m.GetByIDError
	}
	return m.get(id)
}

func (m *MatchRepository) GetByIDForUpdate(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.Match, error) {
	if m.GetForUpdateError != nil {
		return nil, m.GetForUpdateError
	}
	return m.get(id)
}

func (m *MatchRepository) List(ctx context.Context, tournamentID *int, status *models.MatchStatus) ([]*models.Match, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]*models.Match, 0)
	for _, match := range m.matches {
		if tournamentID != nil && match.TournamentID != *tournamentID {
			continue
		}
		if status != nil && match.Status != *status {
			continue
		}
		copied := *match
		result = append(result, &copied)
	}
	sortMatches(result)
	return result, nil
}

func (m *MatchRepository) ListDueUpcoming(ctx context.Context, now time.Time) ([]*models.Match, error) {
	if m.ListDueError != nil {
		return nil, m.ListDueError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]*models.Match, 0)
	for _, match := range m.matches {
		if match.Status == models.MatchStatusUpcoming && !match.StartTime.After(now) {
			copied := *match
			result = append(result, &copied)
		}
	}
	sortMatches(result)
	return result, nil
}

func (m *MatchRepository) UpdateState(ctx context.Context, exec repositories.SQLExecutor, match *models.Match) error {
	m.mu.Lock()
	m.UpdateStateCalls++
	m.mu.Unlock()
	if m.UpdateStateError != nil {
		return m.UpdateStateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.matches[match.ID]
	if !ok {
		return repositories.ErrMatchNotFound
	}
	stored.Status = match.Status
	stored.TossWinnerID = match.TossWinnerID
	stored.WinnerID = match.WinnerID
	stored.Score = match.Score
	stored.Result = match.Result
	stored.LockedAt = match.LockedAt
	return nil
}

func sortMatches(matches []*models.Match) {
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].StartTime.Equal(matches[j].StartTime) {
			return matches[i].ID < matches[j].ID
		}
		return matches[i].StartTime.Before(matches[j].StartTime)
	})
}

// ===== PredictionRepository =====

type PredictionRepository struct {
	mu          sync.Mutex
	predictions map[int]*models.Prediction
	nextID      int

	// Matches, when set, lets Tally honor terminal statuses the way the SQL
	// join does.
	Matches *MatchRepository

	UpsertError       error
	GetError          error
	ListByMatchError  error
	UpdatePointsError error
	TallyError        error
	AggregateError    error
	StatsError        error

	// AggregateResult is returned verbatim by AggregateLeaderboard; the fake
	// never derives rows from stored predictions.
	AggregateResult []*models.LeaderboardEntry
	StatsResult     *models.UserStats

	AggregateCalls  int
	UpdatePointsLog [][]repositories.PredictionScore
}

func NewPredictionRepository() *PredictionRepository {
	return &PredictionRepository{predictions: make(map[int]*models.Prediction), nextID: 1}
}

// Put seeds a prediction, assigning an ID when it has none.
func (m *PredictionRepository) Put(p *models.Prediction) *models.Prediction {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.ID == 0 {
		p.ID = m.nextID
	}
	if p.ID >= m.nextID {
		m.nextID = p.ID + 1
	}
	stored := *p
	m.predictions[p.ID] = &stored
	return p
}

// Stored returns the stored prediction by ID, nil when absent.
func (m *PredictionRepository) Stored(id int) *models.Prediction {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.predictions[id]
	if !ok {
		return nil
	}
	copied := *p
	return &copied
}

func (m *PredictionRepository) Upsert(ctx context.Context, exec repositories.SQLExecutor, p *models.Prediction) error {
	if m.UpsertError != nil {
		return m.UpsertError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	for _, stored := range m.predictions {
		if stored.UserID == p.UserID && stored.MatchID == p.MatchID {
			// Per-field last write wins, mirroring the COALESCE upsert.
			if p.PredictedTossWinnerID != nil {
				stored.PredictedTossWinnerID = p.PredictedTossWinnerID
			}
			if p.PredictedWinnerID != nil {
				stored.PredictedWinnerID = p.PredictedWinnerID
			}
			stored.UpdatedAt = now
			*p = *stored
			return nil
		}
	}
	p.ID = m.nextID
	m.nextID++
	p.CreatedAt = now
	p.UpdatedAt = now
	stored := *p
	m.predictions[p.ID] = &stored
	return nil
}

func (m *PredictionRepository) GetByUserAndMatch(ctx context.Context, userID, matchID int) (*models.Prediction, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.predictions {
		if p.UserID == userID && p.MatchID == matchID {
			copied := *p
			return &copied, nil
		}
	}
	return nil, repositories.ErrPredictionNotFound
}

func (m *PredictionRepository) ListByMatch(ctx context.Context, exec repositories.SQLExecutor, matchID int) ([]*models.Prediction, error) {
	if m.ListByMatchError != nil {
		return nil, m.ListByMatchError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]*models.Prediction, 0)
	for _, p := range m.predictions {
		if p.MatchID == matchID {
			copied := *p
			result = append(result, &copied)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (m *PredictionRepository) UpdatePoints(ctx context.Context, exec repositories.SQLExecutor, scores []repositories.PredictionScore, scoredAt time.Time) error {
	if m.UpdatePointsError != nil {
		return m.UpdatePointsError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.UpdatePointsLog = append(m.UpdatePointsLog, scores)
	for _, s := range scores {
		stored, ok := m.predictions[s.PredictionID]
		if !ok {
			return repositories.ErrPredictionNotFound
		}
		points := s.Points
		at := scoredAt
		stored.PointsEarned = &points
		stored.ScoredAt = &at
	}
	return nil
}

func (m *PredictionRepository) Tally(ctx context.Context, matchID int, predictionType models.PredictionType) (*models.VoteTally, error) {
	if m.TallyError != nil {
		return nil, m.TallyError
	}
	tally := &models.VoteTally{
		MatchID: matchID,
		Type:    predictionType,
		Counts:  make(map[int]int),
	}
	if m.Matches != nil {
		if match := m.Matches.Stored(matchID); match != nil && match.Status.IsTerminal() {
			return tally, nil
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.predictions {
		if p.MatchID != matchID {
			continue
		}
		pick := p.PredictedTossWinnerID
		if predictionType == models.PredictionTypeMatch {
			pick = p.PredictedWinnerID
		}
		if pick == nil {
			continue
		}
		tally.Counts[*pick]++
		tally.Total++
	}
	return tally, nil
}

func (m *PredictionRepository) AggregateLeaderboard(ctx context.Context, query repositories.LeaderboardQuery) ([]*models.LeaderboardEntry, error) {
	m.mu.Lock()
	m.AggregateCalls++
	m.mu.Unlock()
	if m.AggregateError != nil {
		return nil, m.AggregateError
	}
	result := make([]*models.LeaderboardEntry, len(m.AggregateResult))
	for i, e := range m.AggregateResult {
		copied := *e
		result[i] = &copied
	}
	return result, nil
}

func (m *PredictionRepository) UserStats(ctx context.Context, userID int, query repositories.LeaderboardQuery) (*models.UserStats, error) {
	if m.StatsError != nil {
		return nil, m.StatsError
	}
	if m.StatsResult != nil {
		copied := *m.StatsResult
		return &copied, nil
	}
	return &models.UserStats{UserID: userID}, nil
}

// ===== UserRepository =====

type UserRepository struct {
	mu    sync.Mutex
	users map[int]*models.User

	GetByIDError    error
	GetByEmailError error
}

func NewUserRepository() *UserRepository {
	return &UserRepository{users: make(map[int]*models.User)}
}

func (m *UserRepository) Put(user *models.User) *models.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := *user
	m.users[user.ID] = &stored
	return user
}

func (m *UserRepository) GetByID(ctx context.Context, id int) (*models.User, error) {
	if m.GetByIDError != nil {
		return nil, m.GetByIDError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[id]
	if !ok {
		return nil, repositories.ErrUserNotFound
	}
	copied := *user
	return &copied, nil
}

func (m *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	if m.GetByEmailError != nil {
		return nil, m.GetByEmailError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, user := range m.users {
		if user.Email == email {
			copied := *user
			return &copied, nil
		}
	}
	return nil, repositories.ErrUserNotFound
}

// ===== TournamentRepository =====

type TournamentRepository struct {
	mu           sync.Mutex
	tournaments  map[int]*models.Tournament
	participants map[[2]int]bool // [tournamentID, userID]

	GetByIDError       error
	IsParticipantError error
}

func NewTournamentRepository() *TournamentRepository {
	return &TournamentRepository{
		tournaments:  make(map[int]*models.Tournament),
		participants: make(map[[2]int]bool),
	}
}

func (m *TournamentRepository) Put(t *models.Tournament) *models.Tournament {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := *t
	m.tournaments[t.ID] = &stored
	return t
}

func (m *TournamentRepository) AddParticipant(tournamentID, userID int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.participants[[2]int{tournamentID, userID}] = true
}

func (m *TournamentRepository) GetByID(ctx context.Context, id int) (*models.Tournament, error) {
	if m.GetByIDError != nil {
		return nil, m.GetByIDError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tournaments[id]
	if !ok {
		return nil, repositories.ErrTournamentNotFound
	}
	copied := *t
	return &copied, nil
}

func (m *TournamentRepository) IsContestParticipant(ctx context.Context, tournamentID, userID int) (bool, error) {
	if m.IsParticipantError != nil {
		return false, m.IsParticipantError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.participants[[2]int{tournamentID, userID}], nil
}
