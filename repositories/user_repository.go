package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Dosada05/chess-arena/models"
	"github.com/lib/pq"
)

var (
	ErrUserNotFound     = errors.New("user not found")
	ErrUsernameConflict = errors.New("username is already taken")
)

type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	GetManyByUsername(ctx context.Context, usernames []string) ([]*models.User, error)
	AdjustStats(ctx context.Context, exec SQLExecutor, username string, delta models.StatsDelta) error
	ListTopByRating(ctx context.Context, limit int) ([]*models.User, error)
}

type postgresUserRepository struct {
	db *sql.DB
}

func NewPostgresUserRepository(db *sql.DB) UserRepository {
	return &postgresUserRepository{db: db}
}

const userColumns = `id, username, password_hash, total_matches, total_wins, total_losses,
	total_draws, tournaments_played, tournament_wins, elo_rating, created_at`

func (r *postgresUserRepository) Create(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (username, password_hash, elo_rating)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query,
		user.Username,
		user.PasswordHash,
		models.DefaultEloRating,
	).Scan(&user.ID, &user.CreatedAt)

	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrUsernameConflict
		}
		return fmt.Errorf("failed to create user %s: %w", user.Username, err)
	}
	user.EloRating = models.DefaultEloRating
	return nil
}

func (r *postgresUserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = $1`
	return r.scanUser(r.db.QueryRowContext(ctx, query, username))
}

func (r *postgresUserRepository) GetManyByUsername(ctx context.Context, usernames []string) ([]*models.User, error) {
	if len(usernames) == 0 {
		return []*models.User{}, nil
	}
	query := `SELECT ` + userColumns + ` FROM users WHERE username = ANY($1)`
	rows, err := r.db.QueryContext(ctx, query, pq.Array(usernames))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return r.collect(rows)
}

// AdjustStats applies a relative counter update. The increments happen in
// SQL rather than in Go, so concurrent terminations touching the same player
// each land their own delta. It accepts an executor so match termination can
// update both players inside one transaction.
func (r *postgresUserRepository) AdjustStats(ctx context.Context, exec SQLExecutor, username string, delta models.StatsDelta) error {
	if exec == nil {
		exec = r.db
	}
	query := `
		UPDATE users SET
			total_matches = total_matches + $1,
			total_wins = total_wins + $2,
			total_losses = total_losses + $3,
			total_draws = total_draws + $4,
			tournaments_played = tournaments_played + $5,
			tournament_wins = tournament_wins + $6,
			elo_rating = elo_rating + $7
		WHERE username = $8`

	result, err := exec.ExecContext(ctx, query,
		delta.Matches,
		delta.Wins,
		delta.Losses,
		delta.Draws,
		delta.TournamentsPlayed,
		delta.TournamentWins,
		delta.Rating,
		username,
	)
	if err != nil {
		return fmt.Errorf("failed to adjust stats for user %s: %w", username, err)
	}
	return checkAffectedRows(result, ErrUserNotFound)
}

func (r *postgresUserRepository) ListTopByRating(ctx context.Context, limit int) ([]*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY elo_rating DESC LIMIT $1`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return r.collect(rows)
}

func (r *postgresUserRepository) scanUser(row *sql.Row) (*models.User, error) {
	user := &models.User{}
	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.PasswordHash,
		&user.TotalMatches,
		&user.TotalWins,
		&user.TotalLosses,
		&user.TotalDraws,
		&user.TournamentsPlayed,
		&user.TournamentWins,
		&user.EloRating,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

func (r *postgresUserRepository) collect(rows *sql.Rows) ([]*models.User, error) {
	users := make([]*models.User, 0)
	for rows.Next() {
		user := &models.User{}
		err := rows.Scan(
			&user.ID,
			&user.Username,
			&user.PasswordHash,
			&user.TotalMatches,
			&user.TotalWins,
			&user.TotalLosses,
			&user.TotalDraws,
			&user.TournamentsPlayed,
			&user.TournamentWins,
			&user.EloRating,
			&user.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}
