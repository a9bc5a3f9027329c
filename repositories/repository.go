package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Dosada05/darts-tournament-system/models"
)

type SQLExecutor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

var (
	ErrDuplicateID            = fmt.Errorf("%w: document already exists", models.ErrStateConflict)
	ErrTournamentCodeConflict = fmt.Errorf("%w: tournament code already in use", models.ErrStateConflict)
)

type ListTournamentsFilter struct {
	ClubID *string
	Status *models.TournamentStatus
	Limit  int
	Offset int
}

type ListMatchesFilter struct {
	Type     *models.MatchType
	Statuses []models.MatchStatus
	GroupID  *string
	Round    *int
}

// Every Update is a conditional write: it succeeds only when the stored
// version equals the document's Version, then bumps Version by one. A lost
// race returns models.ErrVersionConflict.
type TournamentRepository interface {
	Create(ctx context.Context, t *models.Tournament) error
	GetByID(ctx context.Context, id string) (*models.Tournament, error)
	List(ctx context.Context, filter ListTournamentsFilter) ([]*models.Tournament, error)
	Update(ctx context.Context, t *models.Tournament) error
}

type MatchRepository interface {
	Create(ctx context.Context, m *models.Match) error
	GetByID(ctx context.Context, id string) (*models.Match, error)
	ListByTournament(ctx context.Context, tournamentID string, filter ListMatchesFilter) ([]*models.Match, error)
	Update(ctx context.Context, m *models.Match) error
	Delete(ctx context.Context, m *models.Match) error
}

type LeagueRepository interface {
	Create(ctx context.Context, l *models.League) error
	GetByID(ctx context.Context, id string) (*models.League, error)
	ListByClub(ctx context.Context, clubID string) ([]*models.League, error)
	Update(ctx context.Context, l *models.League) error
}

type Repos struct {
	Tournaments TournamentRepository
	Matches     MatchRepository
	Leagues     LeagueRepository
}

// Transactor runs fn as one atomic unit: every write made through repos
// commits together or not at all.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, repos Repos) error) error
}

type Store interface {
	Transactor
	// Repos returns repositories that run outside any transaction.
	Repos() Repos
}

func matchesFilter(m *models.Match, filter ListMatchesFilter) bool {
	if filter.Type != nil && m.Type != *filter.Type {
		return false
	}
	if len(filter.Statuses) > 0 && !containsMatchStatus(filter.Statuses, m.Status) {
		return false
	}
	if filter.GroupID != nil && (m.GroupID == nil || !models.SameID(*m.GroupID, *filter.GroupID)) {
		return false
	}
	if filter.Round != nil && (m.Type != models.MatchTypeKnockout || m.Round != *filter.Round) {
		return false
	}
	return true
}

func containsMatchStatus(list []models.MatchStatus, s models.MatchStatus) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
