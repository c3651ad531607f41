package services

import "errors"

// Socket-facing failures. Every one of these maps to a single error{message}
// emit to the originating connection; none of them mutate state.
var (
	// Not-found
	ErrRoomNotFound  = errors.New("room not found")
	ErrMatchNotFound = errors.New("match not found")
	ErrOfferNotFound = errors.New("match request not found")
	ErrUserNotFound  = errors.New("user not found")

	// Capacity and lifecycle
	ErrRoomFull             = errors.New("room is full (max 10 players)")
	ErrTournamentInProgress = errors.New("tournament already in progress")
	ErrTournamentNotWaiting = errors.New("tournament already started")
	ErrNotEnoughPlayers     = errors.New("need at least 2 players to start")
	ErrMatchInactive        = errors.New("match not active")

	// Authorization
	ErrNotAdmin         = errors.New("only the admin can perform this action")
	ErrNotAParticipant  = errors.New("you are not a participant of this match")
	ErrNotInRoom        = errors.New("you are not a member of this room")
	ErrOpponentNotFound = errors.New("opponent is not in this room")

	// Validation
	ErrNotYourTurn        = errors.New("not your turn")
	ErrMalformedMove      = errors.New("invalid move format")
	ErrInvalidResult      = errors.New("invalid result")
	ErrInvalidUsername    = errors.New("username must be 2-30 characters (letters, digits, _ or -)")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrPasswordTooShort   = errors.New("password is too short")
	ErrUsernameTaken      = errors.New("username is already taken")
)
