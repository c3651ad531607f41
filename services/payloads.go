package services

import "github.com/Dosada05/chess-arena/models"

// Wire payloads for server->client events. Field names are part of the
// client contract and must not change.

type RoomUpdatePayload struct {
	Players      []*models.User          `json:"players"`
	Admin        string                  `json:"admin"`
	Status       models.TournamentStatus `json:"status"`
	Bracket      []models.BracketEntry   `json:"bracket"`
	CurrentRound string                  `json:"current_round"`
	TournamentID int                     `json:"tournament_id"`
}

type JoinedRoomPayload struct {
	RoomCode string `json:"room_code"`
	Username string `json:"username"`
	IsAdmin  bool   `json:"is_admin"`
}

type MatchRequestPayload struct {
	From        string `json:"from"`
	TimeControl int    `json:"time_control"`
	RoomCode    string `json:"room_code"`
}

type MatchRequestDeclinedPayload struct {
	By string `json:"by"`
}

type MatchStartedPayload struct {
	MatchID     int    `json:"match_id"`
	White       string `json:"white"`
	Black       string `json:"black"`
	Color       string `json:"color"`
	TimeControl int    `json:"time_control"`
}

type MatchStatePayload struct {
	FEN       string             `json:"fen"`
	Turn      string             `json:"turn"`
	WhiteTime int                `json:"white_time"`
	BlackTime int                `json:"black_time"`
	White     string             `json:"white"`
	Black     string             `json:"black"`
	Status    models.MatchStatus `json:"status"`
}

type MoveMadePayload struct {
	Move      MovePayload `json:"move"`
	FEN       string      `json:"fen"`
	Turn      string      `json:"turn"`
	WhiteTime int         `json:"white_time"`
	BlackTime int         `json:"black_time"`
	By        string      `json:"by"`
}

// MovePayload is the client-supplied move. The server checks only that both
// squares are present; legality is the client's job.
type MovePayload struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Promotion string `json:"promotion,omitempty"`
}

type TimerUpdatePayload struct {
	WhiteTime int `json:"white_time"`
	BlackTime int `json:"black_time"`
}

type GameEndedPayload struct {
	Winner      *string            `json:"winner"`
	Result      models.MatchResult `json:"result"`
	WhitePlayer string             `json:"white_player"`
	BlackPlayer string             `json:"black_player"`
}

type MatchResultPayload struct {
	MatchID int                `json:"match_id"`
	Winner  *string            `json:"winner"`
	Result  models.MatchResult `json:"result"`
	White   string             `json:"white"`
	Black   string             `json:"black"`
}

type LeaderboardPayload struct {
	CurrentRound string                  `json:"current_round"`
	Matches      []*models.Match         `json:"matches"`
	Bracket      []models.BracketEntry   `json:"bracket"`
	Status       models.TournamentStatus `json:"status"`
	Winner       *string                 `json:"winner"`
}

type RoundPayload struct {
	RoundName string                `json:"round_name"`
	Bracket   []models.BracketEntry `json:"bracket"`
	Message   string                `json:"message"`
}

type TournamentCompletePayload struct {
	Winner  string `json:"winner"`
	Message string `json:"message"`
}

type PlayerLeftPayload struct {
	Username string `json:"username"`
}

type KickedPayload struct {
	Message string `json:"message"`
}

type ChatMessagePayload struct {
	Username  string `json:"username"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}
