package models

import "time"

// User is the durable per-player record. Rows are never deleted; counters and
// rating are mutated only at match / tournament termination.
type User struct {
	ID                int       `json:"id"`
	Username          string    `json:"username"`
	PasswordHash      string    `json:"-"`
	TotalMatches      int       `json:"total_matches"`
	TotalWins         int       `json:"total_wins"`
	TotalLosses       int       `json:"total_losses"`
	TotalDraws        int       `json:"total_draws"`
	TournamentsPlayed int       `json:"tournaments_played"`
	TournamentWins    int       `json:"tournament_wins"`
	EloRating         int       `json:"elo_rating"`
	CreatedAt         time.Time `json:"created_at"`
}

const DefaultEloRating = 1200

// StatsDelta is a relative counter update. Writes go through additive SQL,
// so two matches finishing at once for the same player cannot lose an
// increment to a read-modify-write race.
type StatsDelta struct {
	Matches           int
	Wins              int
	Losses            int
	Draws             int
	TournamentsPlayed int
	TournamentWins    int
	Rating            int
}
