package handlers

import (
	"errors"
	"net/http"

	"github.com/Dosada05/chess-arena/services"
)

type AuthHandler struct {
	authService services.AuthService
}

func NewAuthHandler(authService services.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

type credentialsInput struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var input credentialsInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, err)
		return
	}
	if input.Username == "" || input.Password == "" {
		badRequestResponse(w, errors.New("username and password are required"))
		return
	}

	user, token, err := h.authService.Register(r.Context(), input.Username, input.Password)
	if err != nil {
		mapServiceErrorToHTTP(w, err)
		return
	}

	err = writeJSON(w, http.StatusCreated, jsonResponse{"user": user, "token": token}, nil)
	if err != nil {
		serverErrorResponse(w, err)
	}
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var input credentialsInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, err)
		return
	}
	if input.Username == "" || input.Password == "" {
		badRequestResponse(w, errors.New("username and password are required"))
		return
	}

	user, token, err := h.authService.Login(r.Context(), input.Username, input.Password)
	if err != nil {
		mapServiceErrorToHTTP(w, err)
		return
	}

	err = writeJSON(w, http.StatusOK, jsonResponse{"user": user, "token": token}, nil)
	if err != nil {
		serverErrorResponse(w, err)
	}
}
