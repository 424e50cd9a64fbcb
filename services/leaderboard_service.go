package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/crickpick/prediction-league/models"
	"github.com/crickpick/prediction-league/repositories"
	"github.com/crickpick/prediction-league/storage"
)

const (
	// PublicRankCap bounds how many ranked rows are ever exposed in bulk.
	// Deeper ranks are still computed (for the requester row) but not listed.
	PublicRankCap = 20

	defaultPageSize = 10
	maxPageSize     = PublicRankCap

	// Rolling windows drift even without new scores, so cached boards also
	// age out on a short TTL.
	cacheTTL = time.Minute
)

// RankInput scopes one leaderboard read. RequesterID of 0 means anonymous.
type RankInput struct {
	Timeframe    models.Timeframe
	TournamentID *int
	Page         int
	PageSize     int
	RequesterID  int
}

type LeaderboardService interface {
	Rank(ctx context.Context, input RankInput) (*models.LeaderboardPage, error)
	InvalidateCache()
}

type cachedBoard struct {
	version     int64
	computedAt  time.Time
	entries     []models.LeaderboardEntry
	generatedAt time.Time
}

// leaderboardService serves ranked boards through an explicit versioned
// read-through cache keyed by (timeframe, tournament). Scoring completion
// bumps the version; singleflight collapses concurrent recomputes of the
// same key.
type leaderboardService struct {
	predictionRepo repositories.PredictionRepository
	tournamentRepo repositories.TournamentRepository
	uploader       storage.FileUploader
	clock          Clock
	logger         *slog.Logger

	version int64
	mu      sync.RWMutex
	cache   map[string]cachedBoard
	group   singleflight.Group
}

func NewLeaderboardService(
	predictionRepo repositories.PredictionRepository,
	tournamentRepo repositories.TournamentRepository,
	uploader storage.FileUploader,
	clock Clock,
	logger *slog.Logger,
) LeaderboardService {
	return &leaderboardService{
		predictionRepo: predictionRepo,
		tournamentRepo: tournamentRepo,
		uploader:       uploader,
		clock:          clock,
		logger:         logger,
		cache:          make(map[string]cachedBoard),
	}
}

// InvalidateCache marks every cached board stale. Called by the lifecycle
// service once a scoring run has committed.
func (s *leaderboardService) InvalidateCache() {
	atomic.AddInt64(&s.version, 1)
}

func boardKey(timeframe models.Timeframe, tournamentID *int) string {
	if tournamentID == nil {
		return string(timeframe)
	}
	return fmt.Sprintf("%s|t%d", timeframe, *tournamentID)
}

func (s *leaderboardService) Rank(ctx context.Context, input RankInput) (*models.LeaderboardPage, error) {
	if !input.Timeframe.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTimeframe, input.Timeframe)
	}
	if input.Page < 0 || input.PageSize < 0 {
		return nil, ErrInvalidPage
	}
	pageSize := input.PageSize
	if pageSize == 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	var scopedTournament *models.Tournament
	if input.TournamentID != nil {
		t, err := s.tournamentRepo.GetByID(ctx, *input.TournamentID)
		if err != nil {
			if errors.Is(err, repositories.ErrTournamentNotFound) {
				return nil, ErrTournamentNotFound
			}
			return nil, fmt.Errorf("failed to resolve tournament %d: %w", *input.TournamentID, err)
		}
		scopedTournament = t
	}

	entries, generatedAt, err := s.rankedEntries(ctx, input.Timeframe, input.TournamentID)
	if err != nil {
		return nil, err
	}

	page := &models.LeaderboardPage{
		Timeframe:    input.Timeframe,
		TournamentID: input.TournamentID,
		TotalRanked:  len(entries),
		GeneratedAt:  generatedAt,
	}

	exposed := entries
	if len(exposed) > PublicRankCap {
		exposed = exposed[:PublicRankCap]
	}
	offset := input.Page * pageSize
	if offset < len(exposed) {
		end := offset + pageSize
		if end > len(exposed) {
			end = len(exposed)
		}
		page.Entries = append([]models.LeaderboardEntry(nil), exposed[offset:end]...)
	} else {
		page.Entries = []models.LeaderboardEntry{}
	}

	if input.RequesterID > 0 && s.requesterMayRank(ctx, scopedTournament, input.RequesterID) {
		if own := findEntry(entries, input.RequesterID); own != nil && !pageContains(page.Entries, input.RequesterID) {
			ownCopy := *own
			page.Requester = &ownCopy
		}
	}
	return page, nil
}

// requesterMayRank short-circuits the requester-row scan on contest boards:
// a user outside the contest whitelist never has a row there. Errors degrade
// to serving the board without the requester row.
func (s *leaderboardService) requesterMayRank(ctx context.Context, scoped *models.Tournament, requesterID int) bool {
	if scoped == nil || !scoped.IsContest {
		return true
	}
	ok, err := s.tournamentRepo.IsContestParticipant(ctx, scoped.ID, requesterID)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to check contest participation",
			slog.Int("tournament_id", scoped.ID),
			slog.Int("user_id", requesterID),
			slog.Any("error", err))
		return false
	}
	return ok
}

// rankedEntries returns the full ranked board for a key, from cache when
// fresh, recomputing behind singleflight otherwise.
func (s *leaderboardService) rankedEntries(ctx context.Context, timeframe models.Timeframe, tournamentID *int) ([]models.LeaderboardEntry, time.Time, error) {
	key := boardKey(timeframe, tournamentID)
	version := atomic.LoadInt64(&s.version)
	now := s.clock.Now()

	s.mu.RLock()
	cached, ok := s.cache[key]
	s.mu.RUnlock()
	if ok && cached.version == version && now.Sub(cached.computedAt) < cacheTTL {
		return cached.entries, cached.generatedAt, nil
	}

	result, err, _ := s.group.Do(key, func() (interface{}, error) {
		// Re-check under singleflight: a concurrent caller may have just
		// filled the cache.
		s.mu.RLock()
		cached, ok := s.cache[key]
		s.mu.RUnlock()
		if ok && cached.version == version && s.clock.Now().Sub(cached.computedAt) < cacheTTL {
			return cached, nil
		}

		board, err := s.computeBoard(ctx, timeframe, tournamentID, version)
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		s.cache[key] = board
		s.mu.Unlock()
		return board, nil
	})
	if err != nil {
		return nil, time.Time{}, err
	}
	board := result.(cachedBoard)
	return board.entries, board.generatedAt, nil
}

func (s *leaderboardService) computeBoard(ctx context.Context, timeframe models.Timeframe, tournamentID *int, version int64) (cachedBoard, error) {
	now := s.clock.Now()
	query := repositories.LeaderboardQuery{TournamentID: tournamentID}
	if since, bounded := timeframe.Window(now); bounded {
		query.Since = &since
	}

	var rows []*models.LeaderboardEntry
	err := withRetry(ctx, func() error {
		var aggErr error
		rows, aggErr = s.predictionRepo.AggregateLeaderboard(ctx, query)
		return aggErr
	})
	if err != nil {
		return cachedBoard{}, err
	}

	entries := make([]models.LeaderboardEntry, len(rows))
	for i, row := range rows {
		entry := *row
		entry.Rank = i + 1 // repository ordering is already the total order
		if entry.AvatarKey != nil && s.uploader != nil {
			if url := s.uploader.GetPublicURL(*entry.AvatarKey); url != "" {
				entry.AvatarURL = &url
			}
		}
		entries[i] = entry
	}

	s.logger.DebugContext(ctx, "leaderboard recomputed",
		slog.String("timeframe", string(timeframe)),
		slog.Int("entries", len(entries)))

	return cachedBoard{
		version:     version,
		computedAt:  now,
		entries:     entries,
		generatedAt: now,
	}, nil
}

func findEntry(entries []models.LeaderboardEntry, userID int) *models.LeaderboardEntry {
	for i := range entries {
		if entries[i].UserID == userID {
			return &entries[i]
		}
	}
	return nil
}

func pageContains(entries []models.LeaderboardEntry, userID int) bool {
	return findEntry(entries, userID) != nil
}
