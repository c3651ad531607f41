package models

import "time"

type MatchStatus string

const (
	MatchPending   MatchStatus = "pending"
	MatchActive    MatchStatus = "active"
	MatchCompleted MatchStatus = "completed"
)

// MatchResult is the client-asserted way a game ended.
type MatchResult string

const (
	ResultCheckmate   MatchResult = "checkmate"
	ResultTimeout     MatchResult = "timeout"
	ResultDraw        MatchResult = "draw"
	ResultResignation MatchResult = "resignation"
	ResultStalemate   MatchResult = "stalemate"
)

// RoundFriendly marks matches created by an accepted friendly offer; they
// have no bracket entry and never trigger round advancement.
const RoundFriendly = "Friendly"

// Match is the durable record of one game. Winner is nil on a draw. The
// terminal write of winner/result/completed_at happens exactly once.
type Match struct {
	ID           int          `json:"id"`
	TournamentID int          `json:"tournament_id"`
	RoundName    string       `json:"round_name"`
	WhitePlayer  string       `json:"white_player"`
	BlackPlayer  string       `json:"black_player"`
	Winner       *string      `json:"winner"`
	Result       *MatchResult `json:"result"`
	TimeControl  int          `json:"time_control"`
	Status       MatchStatus  `json:"status"`
	PGN          string       `json:"-"`
	CreatedAt    time.Time    `json:"created_at"`
	CompletedAt  *time.Time   `json:"completed_at,omitempty"`
}
