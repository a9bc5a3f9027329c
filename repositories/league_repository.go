package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Dosada05/darts-tournament-system/models"
	"github.com/lib/pq"
)

type postgresLeagueRepository struct {
	db   *sql.DB
	exec SQLExecutor
}

func NewPostgresLeagueRepository(db *sql.DB, exec SQLExecutor) LeagueRepository {
	return &postgresLeagueRepository{db: db, exec: exec}
}

func (r *postgresLeagueRepository) getExecutor() SQLExecutor {
	if r.exec != nil {
		return r.exec
	}
	return r.db
}

func (r *postgresLeagueRepository) Create(ctx context.Context, l *models.League) error {
	executor := r.getExecutor()
	if l.Version == 0 {
		l.Version = 1
	}
	body, err := encodeDocument(l)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO leagues (id, club_id, point_system, body, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err = executor.ExecContext(ctx, query,
		l.ID, l.ClubID, l.PointSystem, body, l.Version, l.CreatedAt, l.UpdatedAt,
	)
	return r.handleLeagueError(err)
}

func (r *postgresLeagueRepository) GetByID(ctx context.Context, id string) (*models.League, error) {
	executor := r.getExecutor()
	query := `SELECT body, version FROM leagues WHERE id = $1`

	l, err := scanLeague(executor.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrLeagueNotFound
		}
		return nil, err
	}
	return l, nil
}

func (r *postgresLeagueRepository) ListByClub(ctx context.Context, clubID string) ([]*models.League, error) {
	executor := r.getExecutor()
	query := `SELECT body, version FROM leagues WHERE club_id = $1 ORDER BY created_at DESC, id`

	rows, err := executor.QueryContext(ctx, query, clubID)
	if err != nil {
		return nil, fmt.Errorf("failed to list leagues for club %s: %w", clubID, err)
	}
	defer rows.Close()

	leagues := make([]*models.League, 0)
	for rows.Next() {
		l, scanErr := scanLeague(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		leagues = append(leagues, l)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return leagues, nil
}

func (r *postgresLeagueRepository) Update(ctx context.Context, l *models.League) error {
	executor := r.getExecutor()
	next := *l
	next.Version = l.Version + 1
	body, err := encodeDocument(&next)
	if err != nil {
		return err
	}
	query := `
		UPDATE leagues SET
			point_system = $1,
			body = $2,
			version = $3,
			updated_at = $4
		WHERE id = $5 AND version = $6`

	result, err := executor.ExecContext(ctx, query, l.PointSystem, body, next.Version, l.UpdatedAt, l.ID, l.Version)
	if err != nil {
		return r.handleLeagueError(err)
	}
	if err := checkVersionedWrite(ctx, executor, result, "leagues", l.ID, models.ErrLeagueNotFound); err != nil {
		return err
	}
	l.Version = next.Version
	return nil
}

func scanLeague(row rowScanner) (*models.League, error) {
	var (
		body    []byte
		version int
	)
	if err := row.Scan(&body, &version); err != nil {
		return nil, err
	}
	l := &models.League{}
	if err := decodeDocument(body, l); err != nil {
		return nil, err
	}
	l.Version = version
	return l, nil
}

func (r *postgresLeagueRepository) handleLeagueError(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return ErrDuplicateID
	}
	return err
}
