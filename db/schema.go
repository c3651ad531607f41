package db

import (
	"context"
	"database/sql"
	"fmt"
)

// Schema is the relational shape of the durable store. The original JSON-text
// columns for participants and rounds are replaced with child tables keeping
// explicit insertion order.
const Schema = `
CREATE TABLE IF NOT EXISTS users (
	id SERIAL PRIMARY KEY,
	username VARCHAR(50) UNIQUE NOT NULL,
	password_hash TEXT NOT NULL,
	total_matches INTEGER NOT NULL DEFAULT 0,
	total_wins INTEGER NOT NULL DEFAULT 0,
	total_losses INTEGER NOT NULL DEFAULT 0,
	total_draws INTEGER NOT NULL DEFAULT 0,
	tournaments_played INTEGER NOT NULL DEFAULT 0,
	tournament_wins INTEGER NOT NULL DEFAULT 0,
	elo_rating INTEGER NOT NULL DEFAULT 1200,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS tournaments (
	id SERIAL PRIMARY KEY,
	room_code VARCHAR(8) UNIQUE NOT NULL,
	admin_username VARCHAR(50) NOT NULL,
	status VARCHAR(20) NOT NULL DEFAULT 'waiting',
	current_round VARCHAR(30) NOT NULL DEFAULT '',
	winner_username VARCHAR(50),
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	completed_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS tournament_participants (
	tournament_id INTEGER NOT NULL REFERENCES tournaments(id) ON DELETE CASCADE,
	position INTEGER NOT NULL,
	username VARCHAR(50) NOT NULL,
	PRIMARY KEY (tournament_id, username),
	UNIQUE (tournament_id, position)
);

CREATE TABLE IF NOT EXISTS tournament_rounds (
	id SERIAL PRIMARY KEY,
	tournament_id INTEGER NOT NULL REFERENCES tournaments(id) ON DELETE CASCADE,
	position INTEGER NOT NULL,
	round_name VARCHAR(30) NOT NULL,
	UNIQUE (tournament_id, position)
);

CREATE TABLE IF NOT EXISTS tournament_pairings (
	round_id INTEGER NOT NULL REFERENCES tournament_rounds(id) ON DELETE CASCADE,
	position INTEGER NOT NULL,
	white_player VARCHAR(50) NOT NULL,
	black_player VARCHAR(50) NOT NULL,
	PRIMARY KEY (round_id, position)
);

CREATE TABLE IF NOT EXISTS matches (
	id SERIAL PRIMARY KEY,
	tournament_id INTEGER NOT NULL REFERENCES tournaments(id) ON DELETE CASCADE,
	round_name VARCHAR(30) NOT NULL,
	white_player VARCHAR(50) NOT NULL,
	black_player VARCHAR(50) NOT NULL,
	winner VARCHAR(50),
	result VARCHAR(20),
	time_control INTEGER NOT NULL DEFAULT 300,
	status VARCHAR(20) NOT NULL DEFAULT 'pending',
	pgn TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	completed_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_matches_tournament_round ON matches(tournament_id, round_name);
CREATE INDEX IF NOT EXISTS idx_tournaments_status ON tournaments(status);
CREATE INDEX IF NOT EXISTS idx_users_elo ON users(elo_rating DESC);
`

// Migrate applies the schema. Statements are idempotent, so this is safe to
// run on every startup.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}
