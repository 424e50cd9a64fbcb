package handlers

import (
	"net/http"
	"strconv"

	"github.com/crickpick/prediction-league/middleware"
	"github.com/crickpick/prediction-league/models"
	"github.com/crickpick/prediction-league/services"
)

type LeaderboardHandler struct {
	leaderboard services.LeaderboardService
}

func NewLeaderboardHandler(leaderboard services.LeaderboardService) *LeaderboardHandler {
	return &LeaderboardHandler{leaderboard: leaderboard}
}

func (h *LeaderboardHandler) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	timeframe := models.Timeframe(r.URL.Query().Get("timeframe"))
	if timeframe == "" {
		timeframe = models.TimeframeAllTime
	}

	var tournamentID *int
	if raw := r.URL.Query().Get("tournament_id"); raw != "" {
		id, err := strconv.Atoi(raw)
		if err != nil || id <= 0 {
			badRequestResponse(w, r, errInvalidQueryParam("tournament_id"))
			return
		}
		tournamentID = &id
	}

	page, err := queryInt(r, "page", 0)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	pageSize, err := queryInt(r, "page_size", 0)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	board, err := h.leaderboard.Rank(r.Context(), services.RankInput{
		Timeframe:    timeframe,
		TournamentID: tournamentID,
		Page:         page,
		PageSize:     pageSize,
		RequesterID:  middleware.UserIDOrZero(r.Context()),
	})
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"leaderboard": board}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
