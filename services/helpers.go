package services

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Dosada05/chess-arena/repositories"
)

// withTx runs fn inside a transaction. A nil db (tests with fake
// repositories) runs fn without one; repositories treat a nil executor as
// their own handle.
func withTx(ctx context.Context, db *sql.DB, fn func(exec repositories.SQLExecutor) error) error {
	if db == nil {
		return fn(nil)
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback also failed: %v)", err, rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// normalizeTimeControl accepts the preset values or anything from one minute
// to one hour, and falls back to five minutes otherwise.
func normalizeTimeControl(seconds int) int {
	switch seconds {
	case 60, 180, 300, 600:
		return seconds
	}
	if seconds >= 60 && seconds <= 3600 {
		return seconds
	}
	return 300
}
