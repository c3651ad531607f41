package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/Dosada05/chess-arena/middleware"
	"github.com/Dosada05/chess-arena/repositories"
	"github.com/Dosada05/chess-arena/services"
)

type RoomHandler struct {
	roomService    *services.RoomService
	tournamentRepo repositories.TournamentRepository
}

func NewRoomHandler(roomService *services.RoomService, tournamentRepo repositories.TournamentRepository) *RoomHandler {
	return &RoomHandler{
		roomService:    roomService,
		tournamentRepo: tournamentRepo,
	}
}

// Create allocates a new room owned by the authenticated user. The actual
// lobby join happens over the socket afterwards.
func (h *RoomHandler) Create(w http.ResponseWriter, r *http.Request) {
	username, err := middleware.UsernameFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, "authentication required")
		return
	}

	roomCode, err := h.roomService.CreateRoom(r.Context(), username)
	if err != nil {
		mapServiceErrorToHTTP(w, err)
		return
	}

	err = writeJSON(w, http.StatusCreated, jsonResponse{"room_code": roomCode}, nil)
	if err != nil {
		serverErrorResponse(w, err)
	}
}

type joinRoomInput struct {
	RoomCode string `json:"room_code"`
}

// Join validates a room code before the client opens its socket. It does
// not reserve a seat; join_room_socket does.
func (h *RoomHandler) Join(w http.ResponseWriter, r *http.Request) {
	if _, err := middleware.UsernameFromContext(r.Context()); err != nil {
		unauthorizedResponse(w, "authentication required")
		return
	}

	var input joinRoomInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, err)
		return
	}
	input.RoomCode = strings.ToUpper(strings.TrimSpace(input.RoomCode))
	if input.RoomCode == "" {
		badRequestResponse(w, errors.New("room_code is required"))
		return
	}

	tournament, err := h.tournamentRepo.GetByRoomCode(r.Context(), input.RoomCode)
	if err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			notFoundResponse(w)
			return
		}
		serverErrorResponse(w, err)
		return
	}

	err = writeJSON(w, http.StatusOK, jsonResponse{
		"room_code": tournament.RoomCode,
		"status":    tournament.Status,
		"admin":     tournament.AdminUsername,
	}, nil)
	if err != nil {
		serverErrorResponse(w, err)
	}
}
