package models

// BracketEntry is one display pairing of the current round, kept in the room
// session and mirrored to clients. MatchID is nil for bye entries, which are
// completed with the bye participant as winner the moment they are created.
type BracketEntry struct {
	White   string      `json:"white"`
	Black   string      `json:"black"`
	Winner  *string     `json:"winner"`
	Status  MatchStatus `json:"status"`
	MatchID *int        `json:"match_id"`
}
