package handlers

import (
	"net/http"
	"strconv"

	"github.com/Dosada05/chess-arena/repositories"
)

const (
	defaultListLimit        = 20
	defaultLeaderboardLimit = 50
)

type TournamentHandler struct {
	tournamentRepo repositories.TournamentRepository
	userRepo       repositories.UserRepository
}

func NewTournamentHandler(tournamentRepo repositories.TournamentRepository, userRepo repositories.UserRepository) *TournamentHandler {
	return &TournamentHandler{
		tournamentRepo: tournamentRepo,
		userRepo:       userRepo,
	}
}

// List returns recently completed tournaments, newest first.
func (h *TournamentHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r, defaultListLimit)

	tournaments, err := h.tournamentRepo.ListCompleted(r.Context(), limit)
	if err != nil {
		serverErrorResponse(w, err)
		return
	}

	err = writeJSON(w, http.StatusOK, jsonResponse{"tournaments": tournaments}, nil)
	if err != nil {
		serverErrorResponse(w, err)
	}
}

// Leaderboard returns the top players by rating.
func (h *TournamentHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r, defaultLeaderboardLimit)

	users, err := h.userRepo.ListTopByRating(r.Context(), limit)
	if err != nil {
		serverErrorResponse(w, err)
		return
	}

	err = writeJSON(w, http.StatusOK, jsonResponse{"players": users}, nil)
	if err != nil {
		serverErrorResponse(w, err)
	}
}

func parseLimit(r *http.Request, fallback int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return fallback
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 || limit > 100 {
		return fallback
	}
	return limit
}
