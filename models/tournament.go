package models

import "time"

// TournamentStatus mirrors the ENUM in the database.
type TournamentStatus string

const (
	TournamentWaiting   TournamentStatus = "waiting"
	TournamentActive    TournamentStatus = "active"
	TournamentCompleted TournamentStatus = "completed"
)

// Tournament is the durable record behind a room. Once completed it is only
// ever read.
type Tournament struct {
	ID             int              `json:"id"`
	RoomCode       string           `json:"room_code"`
	AdminUsername  string           `json:"admin_username"`
	Status         TournamentStatus `json:"status"`
	CurrentRound   string           `json:"current_round"`
	WinnerUsername *string          `json:"winner_username,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
	CompletedAt    *time.Time       `json:"completed_at,omitempty"`

	// Loaded from child tables, insertion order = join order.
	Participants []string `json:"participants,omitempty"`
	Rounds       []Round  `json:"rounds,omitempty"`
}

// Round is one entry of the historical round log.
type Round struct {
	Name  string    `json:"round"`
	Pairs []Pairing `json:"pairs"`
}

// Pairing is one recorded pairing of a round. Black holds the BYE sentinel
// for an unpaired participant.
type Pairing struct {
	White string `json:"white"`
	Black string `json:"black"`
}

// ByePlayer is the sentinel used in pairings and bracket entries for an
// auto-advanced participant. It is never persisted as a matches row.
const ByePlayer = "BYE"
