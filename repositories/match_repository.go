package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Dosada05/chess-arena/models"
)

var (
	ErrMatchNotFound         = errors.New("match not found")
	ErrMatchAlreadyCompleted = errors.New("match is already completed")
)

type MatchRepository interface {
	Create(ctx context.Context, exec SQLExecutor, match *models.Match) error
	GetByID(ctx context.Context, id int) (*models.Match, error)
	UpdateStatus(ctx context.Context, exec SQLExecutor, id int, status models.MatchStatus) error
	Complete(ctx context.Context, exec SQLExecutor, id int, winner *string, result models.MatchResult, pgn string, completedAt time.Time) error
	ListByTournament(ctx context.Context, tournamentID int) ([]*models.Match, error)
	ListByTournamentRound(ctx context.Context, tournamentID int, roundName string) ([]*models.Match, error)
}

type postgresMatchRepository struct {
	db *sql.DB
}

func NewPostgresMatchRepository(db *sql.DB) MatchRepository {
	return &postgresMatchRepository{db: db}
}

const matchColumns = `id, tournament_id, round_name, white_player, black_player, winner,
	result, time_control, status, pgn, created_at, completed_at`

func (r *postgresMatchRepository) Create(ctx context.Context, exec SQLExecutor, m *models.Match) error {
	if exec == nil {
		exec = r.db
	}
	query := `
		INSERT INTO matches (tournament_id, round_name, white_player, black_player, time_control, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`

	err := exec.QueryRowContext(ctx, query,
		m.TournamentID,
		m.RoundName,
		m.WhitePlayer,
		m.BlackPlayer,
		m.TimeControl,
		m.Status,
	).Scan(&m.ID, &m.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create match for tournament %d: %w", m.TournamentID, err)
	}
	return nil
}

func (r *postgresMatchRepository) GetByID(ctx context.Context, id int) (*models.Match, error) {
	query := `SELECT ` + matchColumns + ` FROM matches WHERE id = $1`
	return r.scanMatch(r.db.QueryRowContext(ctx, query, id))
}

func (r *postgresMatchRepository) UpdateStatus(ctx context.Context, exec SQLExecutor, id int, status models.MatchStatus) error {
	if exec == nil {
		exec = r.db
	}
	query := `UPDATE matches SET status = $1 WHERE id = $2 AND status <> 'completed'`
	result, err := exec.ExecContext(ctx, query, status, id)
	if err != nil {
		return fmt.Errorf("failed to update match %d status: %w", id, err)
	}
	return checkAffectedRows(result, ErrMatchNotFound)
}

// Complete performs the single terminal write. The status guard makes a
// duplicate completion report ErrMatchAlreadyCompleted instead of
// overwriting the record.
func (r *postgresMatchRepository) Complete(ctx context.Context, exec SQLExecutor, id int, winner *string, result models.MatchResult, pgn string, completedAt time.Time) error {
	if exec == nil {
		exec = r.db
	}
	query := `
		UPDATE matches SET status = 'completed', winner = $1, result = $2, pgn = $3, completed_at = $4
		WHERE id = $5 AND status <> 'completed'`
	res, err := exec.ExecContext(ctx, query, winner, result, pgn, completedAt, id)
	if err != nil {
		return fmt.Errorf("failed to complete match %d: %w", id, err)
	}
	return checkAffectedRows(res, ErrMatchAlreadyCompleted)
}

func (r *postgresMatchRepository) ListByTournament(ctx context.Context, tournamentID int) ([]*models.Match, error) {
	query := `SELECT ` + matchColumns + ` FROM matches WHERE tournament_id = $1 ORDER BY id ASC`
	return r.list(ctx, query, tournamentID)
}

func (r *postgresMatchRepository) ListByTournamentRound(ctx context.Context, tournamentID int, roundName string) ([]*models.Match, error) {
	query := `SELECT ` + matchColumns + ` FROM matches WHERE tournament_id = $1 AND round_name = $2 ORDER BY id ASC`
	return r.list(ctx, query, tournamentID, roundName)
}

func (r *postgresMatchRepository) list(ctx context.Context, query string, args ...interface{}) ([]*models.Match, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	matches := make([]*models.Match, 0)
	for rows.Next() {
		m := &models.Match{}
		err := rows.Scan(&m.ID, &m.TournamentID, &m.RoundName, &m.WhitePlayer, &m.BlackPlayer,
			&m.Winner, &m.Result, &m.TimeControl, &m.Status, &m.PGN, &m.CreatedAt, &m.CompletedAt)
		if err != nil {
			return nil, err
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

func (r *postgresMatchRepository) scanMatch(row *sql.Row) (*models.Match, error) {
	m := &models.Match{}
	err := row.Scan(&m.ID, &m.TournamentID, &m.RoundName, &m.WhitePlayer, &m.BlackPlayer,
		&m.Winner, &m.Result, &m.TimeControl, &m.Status, &m.PGN, &m.CreatedAt, &m.CompletedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMatchNotFound
		}
		return nil, err
	}
	return m, nil
}
