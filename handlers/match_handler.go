package handlers

import (
	"net/http"
	"strconv"

	"github.com/crickpick/prediction-league/models"
	"github.com/crickpick/prediction-league/services"
)

type MatchHandler struct {
	lifecycle services.MatchLifecycleService
}

func NewMatchHandler(lifecycle services.MatchLifecycleService) *MatchHandler {
	return &MatchHandler{lifecycle: lifecycle}
}

func (h *MatchHandler) GetMatch(w http.ResponseWriter, r *http.Request) {
	matchID, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	match, secondsToStart, err := h.lifecycle.GetMatch(r.Context(), matchID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	response := jsonResponse{
		"match":            match,
		"seconds_to_start": secondsToStart,
	}
	if err := writeJSON(w, http.StatusOK, response, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *MatchHandler) ListMatches(w http.ResponseWriter, r *http.Request) {
	var tournamentID *int
	if raw := r.URL.Query().Get("tournament_id"); raw != "" {
		id, err := strconv.Atoi(raw)
		if err != nil || id <= 0 {
			badRequestResponse(w, r, errInvalidQueryParam("tournament_id"))
			return
		}
		tournamentID = &id
	}

	var status *models.MatchStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		s := models.MatchStatus(raw)
		if !s.IsValid() {
			badRequestResponse(w, r, errInvalidQueryParam("status"))
			return
		}
		status = &s
	}

	matches, err := h.lifecycle.ListMatches(r.Context(), tournamentID, status)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"matches": matches}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// TransitionMatch is the admin entry point for status changes, including
// result entry; scoring happens inside the same operation.
func (h *MatchHandler) TransitionMatch(w http.ResponseWriter, r *http.Request) {
	matchID, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input services.TransitionInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	match, err := h.lifecycle.Transition(r.Context(), matchID, input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"match": match}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

type queryParamError string

func (e queryParamError) Error() string { return "invalid " + string(e) + " parameter" }

func errInvalidQueryParam(name string) error { return queryParamError(name) }
