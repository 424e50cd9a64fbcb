package handlers

import (
	"errors"
	"net/http"

	"github.com/crickpick/prediction-league/middleware"
	"github.com/crickpick/prediction-league/models"
	"github.com/crickpick/prediction-league/services"
)

type PredictionHandler struct {
	predictions services.PredictionService
}

func NewPredictionHandler(predictions services.PredictionService) *PredictionHandler {
	return &PredictionHandler{predictions: predictions}
}

func (h *PredictionHandler) SubmitPrediction(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}

	matchID, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input services.SubmitPredictionInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	prediction, err := h.predictions.Submit(r.Context(), userID, matchID, input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"prediction": prediction}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *PredictionHandler) GetOwnPrediction(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}

	matchID, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	prediction, err := h.predictions.Get(r.Context(), userID, matchID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"prediction": prediction}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// GetVoteTally serves the live split for one prediction type; percentages
// are derived here, never stored.
func (h *PredictionHandler) GetVoteTally(w http.ResponseWriter, r *http.Request) {
	matchID, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	predictionType := models.PredictionType(r.URL.Query().Get("type"))
	if predictionType == "" {
		badRequestResponse(w, r, errors.New("type query parameter is required (toss or match)"))
		return
	}

	tally, err := h.predictions.Tally(r.Context(), matchID, predictionType)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	percentages := make(map[int]float64, len(tally.Counts))
	for teamID := range tally.Counts {
		percentages[teamID] = tally.Percentage(teamID)
	}

	response := jsonResponse{
		"tally":       tally,
		"percentages": percentages,
	}
	if err := writeJSON(w, http.StatusOK, response, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *PredictionHandler) GetOwnStats(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}

	stats, err := h.predictions.Stats(r.Context(), userID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"stats": stats}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
