package db

import (
	"context"
	"database/sql"
	"fmt"
)

// Documents live in body; the remaining columns exist for filtering,
// uniqueness and the optimistic version check.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS leagues (
		id           TEXT PRIMARY KEY,
		club_id      TEXT NOT NULL,
		point_system TEXT NOT NULL,
		body         JSONB NOT NULL,
		version      INTEGER NOT NULL DEFAULT 1,
		created_at   TIMESTAMPTZ NOT NULL,
		updated_at   TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS leagues_club_id_idx ON leagues (club_id)`,
	`CREATE TABLE IF NOT EXISTS tournaments (
		id              TEXT PRIMARY KEY,
		club_id         TEXT NOT NULL,
		code            TEXT NOT NULL,
		status          TEXT NOT NULL,
		league_id       TEXT REFERENCES leagues (id) ON DELETE SET NULL,
		scorer_pin_hash TEXT,
		body            JSONB NOT NULL,
		version         INTEGER NOT NULL DEFAULT 1,
		created_at      TIMESTAMPTZ NOT NULL,
		updated_at      TIMESTAMPTZ NOT NULL,
		CONSTRAINT tournaments_code_key UNIQUE (code)
	)`,
	`CREATE INDEX IF NOT EXISTS tournaments_club_status_idx ON tournaments (club_id, status)`,
	`CREATE TABLE IF NOT EXISTS matches (
		id            TEXT PRIMARY KEY,
		tournament_id TEXT NOT NULL REFERENCES tournaments (id) ON DELETE CASCADE,
		type          TEXT NOT NULL,
		status        TEXT NOT NULL,
		group_id      TEXT,
		round         INTEGER NOT NULL DEFAULT 0,
		sequence      INTEGER NOT NULL,
		body          JSONB NOT NULL,
		version       INTEGER NOT NULL DEFAULT 1,
		created_at    TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS matches_tournament_sequence_idx ON matches (tournament_id, sequence)`,
}

// Migrate creates the tables the repositories expect. Every statement is
// idempotent so it runs on each start.
func Migrate(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin migration: %w", err)
	}
	defer tx.Rollback()

	for i, stmt := range schema {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration statement %d failed: %w", i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration: %w", err)
	}
	return nil
}
