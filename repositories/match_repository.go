package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Dosada05/darts-tournament-system/models"
	"github.com/lib/pq"
)

type postgresMatchRepository struct {
	db   *sql.DB
	exec SQLExecutor
}

func NewPostgresMatchRepository(db *sql.DB, exec SQLExecutor) MatchRepository {
	return &postgresMatchRepository{db: db, exec: exec}
}

func (r *postgresMatchRepository) getExecutor() SQLExecutor {
	if r.exec != nil {
		return r.exec
	}
	return r.db
}

func (r *postgresMatchRepository) Create(ctx context.Context, m *models.Match) error {
	executor := r.getExecutor()
	if m.Version == 0 {
		m.Version = 1
	}
	body, err := encodeDocument(m)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO matches (id, tournament_id, type, status, group_id, round, sequence, body, version, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err = executor.ExecContext(ctx, query,
		m.ID, m.TournamentID, m.Type, m.Status, m.GroupID, m.Round, m.Sequence, body, m.Version, m.CreatedAt,
	)
	return r.handleMatchError(err)
}

func (r *postgresMatchRepository) GetByID(ctx context.Context, id string) (*models.Match, error) {
	executor := r.getExecutor()
	query := `SELECT body, version FROM matches WHERE id = $1`

	m, err := scanMatch(executor.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrMatchNotFound
		}
		return nil, err
	}
	return m, nil
}

func (r *postgresMatchRepository) ListByTournament(ctx context.Context, tournamentID string, filter ListMatchesFilter) ([]*models.Match, error) {
	executor := r.getExecutor()
	query := `SELECT body, version FROM matches WHERE tournament_id = $1`
	args := []interface{}{tournamentID}

	if filter.Type != nil {
		args = append(args, *filter.Type)
		query += fmt.Sprintf(" AND type = $%d", len(args))
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, s := range filter.Statuses {
			statuses[i] = string(s)
		}
		args = append(args, pq.Array(statuses))
		query += fmt.Sprintf(" AND status = ANY($%d)", len(args))
	}
	if filter.GroupID != nil {
		args = append(args, *filter.GroupID)
		query += fmt.Sprintf(" AND group_id = $%d", len(args))
	}
	if filter.Round != nil {
		args = append(args, models.MatchTypeKnockout, *filter.Round)
		query += fmt.Sprintf(" AND type = $%d AND round = $%d", len(args)-1, len(args))
	}
	query += " ORDER BY sequence, created_at, id"

	rows, err := executor.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list matches for tournament %s: %w", tournamentID, err)
	}
	defer rows.Close()

	matches := make([]*models.Match, 0)
	for rows.Next() {
		m, scanErr := scanMatch(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		matches = append(matches, m)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return matches, nil
}

func (r *postgresMatchRepository) Update(ctx context.Context, m *models.Match) error {
	executor := r.getExecutor()
	next := *m
	next.Version = m.Version + 1
	body, err := encodeDocument(&next)
	if err != nil {
		return err
	}
	query := `
		UPDATE matches SET
			status = $1,
			group_id = $2,
			round = $3,
			sequence = $4,
			body = $5,
			version = $6
		WHERE id = $7 AND version = $8`

	result, err := executor.ExecContext(ctx, query,
		m.Status, m.GroupID, m.Round, m.Sequence, body, next.Version,
		m.ID, m.Version,
	)
	if err != nil {
		return r.handleMatchError(err)
	}
	if err := checkVersionedWrite(ctx, executor, result, "matches", m.ID, models.ErrMatchNotFound); err != nil {
		return err
	}
	m.Version = next.Version
	return nil
}

func (r *postgresMatchRepository) Delete(ctx context.Context, m *models.Match) error {
	executor := r.getExecutor()
	query := `DELETE FROM matches WHERE id = $1 AND version = $2`
	result, err := executor.ExecContext(ctx, query, m.ID, m.Version)
	if err != nil {
		return r.handleMatchError(err)
	}
	return checkVersionedWrite(ctx, executor, result, "matches", m.ID, models.ErrMatchNotFound)
}

func scanMatch(row rowScanner) (*models.Match, error) {
	var (
		body    []byte
		version int
	)
	if err := row.Scan(&body, &version); err != nil {
		return nil, err
	}
	m := &models.Match{}
	if err := decodeDocument(body, m); err != nil {
		return nil, err
	}
	m.Version = version
	return m, nil
}

func (r *postgresMatchRepository) handleMatchError(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23505":
			return ErrDuplicateID
		case "23503":
			return models.ErrTournamentNotFound
		}
	}
	return err
}
