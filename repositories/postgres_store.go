package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

type PostgresStore struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewPostgresStore(db *sql.DB, logger *slog.Logger) *PostgresStore {
	return &PostgresStore{db: db, logger: logger}
}

func (s *PostgresStore) Repos() Repos {
	return s.reposFor(nil)
}

func (s *PostgresStore) reposFor(exec SQLExecutor) Repos {
	return Repos{
		Tournaments: NewPostgresTournamentRepository(s.db, exec),
		Matches:     NewPostgresMatchRepository(s.db, exec),
		Leagues:     NewPostgresLeagueRepository(s.db, exec),
	}
}

func (s *PostgresStore) WithinTx(ctx context.Context, fn func(ctx context.Context, repos Repos) error) (txErr error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		} else if txErr != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				s.logger.ErrorContext(ctx, "rollback failed", slog.Any("error", rbErr), slog.Any("cause", txErr))
				txErr = fmt.Errorf("transaction processing error: %w (rollback also failed: %v)", txErr, rbErr)
			}
		} else if cErr := tx.Commit(); cErr != nil {
			s.logger.ErrorContext(ctx, "commit failed", slog.Any("error", cErr))
			txErr = fmt.Errorf("failed to commit transaction: %w", cErr)
		}
	}()

	return fn(ctx, s.reposFor(tx))
}
