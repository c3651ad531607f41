package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Dosada05/chess-arena/models"
	"github.com/lib/pq"
)

var (
	ErrTournamentNotFound    = errors.New("tournament not found")
	ErrRoomCodeConflict      = errors.New("room code is already in use")
	ErrTournamentNotWritable = errors.New("tournament is already completed")
)

type TournamentRepository interface {
	Create(ctx context.Context, tournament *models.Tournament) error
	GetByID(ctx context.Context, id int) (*models.Tournament, error)
	GetByRoomCode(ctx context.Context, roomCode string) (*models.Tournament, error)
	UpdateStatus(ctx context.Context, exec SQLExecutor, id int, status models.TournamentStatus, currentRound string) error
	Complete(ctx context.Context, exec SQLExecutor, id int, winner string, completedAt time.Time) error
	AddParticipant(ctx context.Context, id int, username string) error
	RemoveParticipant(ctx context.Context, id int, username string) error
	ReplaceParticipants(ctx context.Context, exec SQLExecutor, id int, usernames []string) error
	ListParticipants(ctx context.Context, id int) ([]string, error)
	AppendRound(ctx context.Context, exec SQLExecutor, id int, round models.Round) error
	ListRounds(ctx context.Context, id int) ([]models.Round, error)
	ListCompleted(ctx context.Context, limit int) ([]*models.Tournament, error)
}

type postgresTournamentRepository struct {
	db *sql.DB
}

func NewPostgresTournamentRepository(db *sql.DB) TournamentRepository {
	return &postgresTournamentRepository{db: db}
}

func (r *postgresTournamentRepository) Create(ctx context.Context, t *models.Tournament) error {
	query := `
		INSERT INTO tournaments (room_code, admin_username, status, current_round)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query,
		t.RoomCode,
		t.AdminUsername,
		t.Status,
		t.CurrentRound,
	).Scan(&t.ID, &t.CreatedAt)

	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrRoomCodeConflict
		}
		return fmt.Errorf("failed to create tournament for room %s: %w", t.RoomCode, err)
	}
	return nil
}

const tournamentColumns = `id, room_code, admin_username, status, current_round, winner_username, created_at, completed_at`

func (r *postgresTournamentRepository) GetByID(ctx context.Context, id int) (*models.Tournament, error) {
	query := `SELECT ` + tournamentColumns + ` FROM tournaments WHERE id = $1`
	return r.scanTournament(r.db.QueryRowContext(ctx, query, id))
}

func (r *postgresTournamentRepository) GetByRoomCode(ctx context.Context, roomCode string) (*models.Tournament, error) {
	query := `SELECT ` + tournamentColumns + ` FROM tournaments WHERE room_code = $1`
	return r.scanTournament(r.db.QueryRowContext(ctx, query, roomCode))
}

func (r *postgresTournamentRepository) UpdateStatus(ctx context.Context, exec SQLExecutor, id int, status models.TournamentStatus, currentRound string) error {
	if exec == nil {
		exec = r.db
	}
	query := `
		UPDATE tournaments SET status = $1, current_round = $2
		WHERE id = $3 AND status <> 'completed'`
	result, err := exec.ExecContext(ctx, query, status, currentRound, id)
	if err != nil {
		return fmt.Errorf("failed to update tournament %d status: %w", id, err)
	}
	return checkAffectedRows(result, ErrTournamentNotFound)
}

// Complete is the terminal tournament write. A completed row is never
// written again.
func (r *postgresTournamentRepository) Complete(ctx context.Context, exec SQLExecutor, id int, winner string, completedAt time.Time) error {
	if exec == nil {
		exec = r.db
	}
	query := `
		UPDATE tournaments SET status = 'completed', winner_username = $1, completed_at = $2
		WHERE id = $3 AND status <> 'completed'`
	result, err := exec.ExecContext(ctx, query, winner, completedAt, id)
	if err != nil {
		return fmt.Errorf("failed to complete tournament %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrTournamentNotWritable)
}

func (r *postgresTournamentRepository) AddParticipant(ctx context.Context, id int, username string) error {
	query := `
		INSERT INTO tournament_participants (tournament_id, position, username)
		SELECT $1, COALESCE(MAX(position), 0) + 1, $2
		FROM tournament_participants WHERE tournament_id = $1
		ON CONFLICT (tournament_id, username) DO NOTHING`
	_, err := r.db.ExecContext(ctx, query, id, username)
	if err != nil {
		return fmt.Errorf("failed to add participant %s to tournament %d: %w", username, id, err)
	}
	return nil
}

func (r *postgresTournamentRepository) RemoveParticipant(ctx context.Context, id int, username string) error {
	query := `DELETE FROM tournament_participants WHERE tournament_id = $1 AND username = $2`
	_, err := r.db.ExecContext(ctx, query, id, username)
	if err != nil {
		return fmt.Errorf("failed to remove participant %s from tournament %d: %w", username, id, err)
	}
	return nil
}

// ReplaceParticipants snapshots the roster at tournament start, preserving
// join order.
func (r *postgresTournamentRepository) ReplaceParticipants(ctx context.Context, exec SQLExecutor, id int, usernames []string) error {
	if exec == nil {
		exec = r.db
	}
	if _, err := exec.ExecContext(ctx, `DELETE FROM tournament_participants WHERE tournament_id = $1`, id); err != nil {
		return fmt.Errorf("failed to clear participants for tournament %d: %w", id, err)
	}
	query := `INSERT INTO tournament_participants (tournament_id, position, username) VALUES ($1, $2, $3)`
	for i, username := range usernames {
		if _, err := exec.ExecContext(ctx, query, id, i+1, username); err != nil {
			return fmt.Errorf("failed to insert participant %s for tournament %d: %w", username, id, err)
		}
	}
	return nil
}

func (r *postgresTournamentRepository) ListParticipants(ctx context.Context, id int) ([]string, error) {
	query := `
		SELECT username FROM tournament_participants
		WHERE tournament_id = $1 ORDER BY position ASC`
	rows, err := r.db.QueryContext(ctx, query, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	usernames := make([]string, 0)
	for rows.Next() {
		var username string
		if err := rows.Scan(&username); err != nil {
			return nil, err
		}
		usernames = append(usernames, username)
	}
	return usernames, rows.Err()
}

func (r *postgresTournamentRepository) AppendRound(ctx context.Context, exec SQLExecutor, id int, round models.Round) error {
	if exec == nil {
		exec = r.db
	}
	var roundID int
	query := `
		INSERT INTO tournament_rounds (tournament_id, position, round_name)
		SELECT $1, COALESCE(MAX(position), 0) + 1, $2
		FROM tournament_rounds WHERE tournament_id = $1
		RETURNING id`
	if err := exec.QueryRowContext(ctx, query, id, round.Name).Scan(&roundID); err != nil {
		return fmt.Errorf("failed to append round %s to tournament %d: %w", round.Name, id, err)
	}

	pairingQuery := `INSERT INTO tournament_pairings (round_id, position, white_player, black_player) VALUES ($1, $2, $3, $4)`
	for i, pair := range round.Pairs {
		if _, err := exec.ExecContext(ctx, pairingQuery, roundID, i+1, pair.White, pair.Black); err != nil {
			return fmt.Errorf("failed to insert pairing for round %d: %w", roundID, err)
		}
	}
	return nil
}

func (r *postgresTournamentRepository) ListRounds(ctx context.Context, id int) ([]models.Round, error) {
	query := `
		SELECT r.position, r.round_name, p.white_player, p.black_player
		FROM tournament_rounds r
		JOIN tournament_pairings p ON p.round_id = r.id
		WHERE r.tournament_id = $1
		ORDER BY r.position ASC, p.position ASC`
	rows, err := r.db.QueryContext(ctx, query, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	rounds := make([]models.Round, 0)
	lastPosition := 0
	for rows.Next() {
		var position int
		var name, white, black string
		if err := rows.Scan(&position, &name, &white, &black); err != nil {
			return nil, err
		}
		if position != lastPosition {
			rounds = append(rounds, models.Round{Name: name})
			lastPosition = position
		}
		last := &rounds[len(rounds)-1]
		last.Pairs = append(last.Pairs, models.Pairing{White: white, Black: black})
	}
	return rounds, rows.Err()
}

func (r *postgresTournamentRepository) ListCompleted(ctx context.Context, limit int) ([]*models.Tournament, error) {
	query := `
		SELECT ` + tournamentColumns + ` FROM tournaments
		WHERE status = 'completed'
		ORDER BY completed_at DESC LIMIT $1`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tournaments := make([]*models.Tournament, 0)
	for rows.Next() {
		t := &models.Tournament{}
		err := rows.Scan(&t.ID, &t.RoomCode, &t.AdminUsername, &t.Status, &t.CurrentRound,
			&t.WinnerUsername, &t.CreatedAt, &t.CompletedAt)
		if err != nil {
			return nil, err
		}
		tournaments = append(tournaments, t)
	}
	return tournaments, rows.Err()
}

func (r *postgresTournamentRepository) scanTournament(row *sql.Row) (*models.Tournament, error) {
	t := &models.Tournament{}
	err := row.Scan(&t.ID, &t.RoomCode, &t.AdminUsername, &t.Status, &t.CurrentRound,
		&t.WinnerUsername, &t.CreatedAt, &t.CompletedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTournamentNotFound
		}
		return nil, err
	}
	return t, nil
}
