package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Dosada05/darts-tournament-system/models"
	"github.com/lib/pq"
)

type postgresTournamentRepository struct {
	db   *sql.DB
	exec SQLExecutor
}

func NewPostgresTournamentRepository(db *sql.DB, exec SQLExecutor) TournamentRepository {
	return &postgresTournamentRepository{db: db, exec: exec}
}

func (r *postgresTournamentRepository) getExecutor() SQLExecutor {
	if r.exec != nil {
		return r.exec
	}
	return r.db
}

func (r *postgresTournamentRepository) Create(ctx context.Context, t *models.Tournament) error {
	executor := r.getExecutor()
	if t.Version == 0 {
		t.Version = 1
	}
	body, err := encodeDocument(t)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO tournaments (id, club_id, code, status, league_id, scorer_pin_hash, body, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err = executor.ExecContext(ctx, query,
		t.ID, t.ClubID, t.Code, t.Status, t.LeagueID, t.ScorerPINHash, body, t.Version, t.CreatedAt, t.UpdatedAt,
	)
	return r.handleTournamentError(err)
}

func (r *postgresTournamentRepository) GetByID(ctx context.Context, id string) (*models.Tournament, error) {
	executor := r.getExecutor()
	query := `SELECT body, version, scorer_pin_hash FROM tournaments WHERE id = $1`

	t, err := scanTournament(executor.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrTournamentNotFound
		}
		return nil, err
	}
	return t, nil
}

func (r *postgresTournamentRepository) List(ctx context.Context, filter ListTournamentsFilter) ([]*models.Tournament, error) {
	executor := r.getExecutor()
	query := `SELECT body, version, scorer_pin_hash FROM tournaments WHERE 1=1`
	args := []interface{}{}

	if filter.ClubID != nil {
		args = append(args, *filter.ClubID)
		query += fmt.Sprintf(" AND club_id = $%d", len(args))
	}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	query += " ORDER BY created_at DESC, id"
	query, args = limitClause(query, args, filter.Limit, filter.Offset)

	rows, err := executor.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tournaments: %w", err)
	}
	defer rows.Close()

	tournaments := make([]*models.Tournament, 0)
	for rows.Next() {
		t, scanErr := scanTournament(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		tournaments = append(tournaments, t)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return tournaments, nil
}

func (r *postgresTournamentRepository) Update(ctx context.Context, t *models.Tournament) error {
	executor := r.getExecutor()
	next := *t
	next.Version = t.Version + 1
	body, err := encodeDocument(&next)
	if err != nil {
		return err
	}
	query := `
		UPDATE tournaments SET
			club_id = $1,
			code = $2,
			status = $3,
			league_id = $4,
			scorer_pin_hash = $5,
			body = $6,
			version = $7,
			updated_at = $8
		WHERE id = $9 AND version = $10`

	result, err := executor.ExecContext(ctx, query,
		t.ClubID, t.Code, t.Status, t.LeagueID, t.ScorerPINHash, body, next.Version, t.UpdatedAt,
		t.ID, t.Version,
	)
	if err != nil {
		return r.handleTournamentError(err)
	}
	if err := checkVersionedWrite(ctx, executor, result, "tournaments", t.ID, models.ErrTournamentNotFound); err != nil {
		return err
	}
	t.Version = next.Version
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTournament(row rowScanner) (*models.Tournament, error) {
	var (
		body    []byte
		version int
		pinHash sql.NullString
	)
	if err := row.Scan(&body, &version, &pinHash); err != nil {
		return nil, err
	}
	t := &models.Tournament{}
	if err := decodeDocument(body, t); err != nil {
		return nil, err
	}
	t.Version = version
	t.ScorerPINHash = pinHash.String
	return t, nil
}

func (r *postgresTournamentRepository) handleTournamentError(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		if pqErr.Constraint == "tournaments_code_key" {
			return ErrTournamentCodeConflict
		}
		return ErrDuplicateID
	}
	return err
}
