package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/Dosada05/darts-tournament-system/models"
)

// MemoryStore keeps documents in process with the same optimistic
// versioning contract as PostgresStore. Writes inside WithinTx are staged
// and validated against the committed versions when fn returns.
type MemoryStore struct {
	mu          sync.Mutex
	tournaments *docTable[models.Tournament]
	matches     *docTable[models.Match]
	leagues     *docTable[models.League]
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tournaments: &docTable[models.Tournament]{
			name:     "tournaments",
			rows:     make(map[string]*models.Tournament),
			notFound: models.ErrTournamentNotFound,
			id:       func(t *models.Tournament) string { return t.ID },
			version:  func(t *models.Tournament) *int { return &t.Version },
			clone:    cloneTournament,
		},
		matches: &docTable[models.Match]{
			name:     "matches",
			rows:     make(map[string]*models.Match),
			notFound: models.ErrMatchNotFound,
			id:       func(m *models.Match) string { return m.ID },
			version:  func(m *models.Match) *int { return &m.Version },
			clone:    cloneDocument[models.Match],
		},
		leagues: &docTable[models.League]{
			name:     "leagues",
			rows:     make(map[string]*models.League),
			notFound: models.ErrLeagueNotFound,
			id:       func(l *models.League) string { return l.ID },
			version:  func(l *models.League) *int { return &l.Version },
			clone:    cloneDocument[models.League],
		},
	}
}

func (s *MemoryStore) Repos() Repos {
	return memoryRepo{store: s}.repos()
}

func (s *MemoryStore) WithinTx(ctx context.Context, fn func(ctx context.Context, repos Repos) error) error {
	tx := s.newTx()
	if err := fn(ctx, memoryRepo{store: s, tx: tx}.repos()); err != nil {
		return err
	}
	return tx.commit()
}

type docTable[T any] struct {
	name     string
	rows     map[string]*T
	notFound error
	id       func(*T) string
	version  func(*T) *int
	clone    func(*T) *T
}

type stagedDoc[T any] struct {
	doc     *T
	base    int
	created bool
	deleted bool
}

// stage holds one transaction's pending writes against a table.
type stage[T any] struct {
	mu      *sync.Mutex
	table   *docTable[T]
	pending map[string]*stagedDoc[T]
}

func newStage[T any](mu *sync.Mutex, table *docTable[T]) *stage[T] {
	return &stage[T]{mu: mu, table: table, pending: make(map[string]*stagedDoc[T])}
}

func (s *stage[T]) get(id string) (*T, error) {
	if p, ok := s.pending[id]; ok {
		if p.deleted {
			return nil, s.table.notFound
		}
		return s.table.clone(p.doc), nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.table.rows[id]
	if !ok {
		return nil, s.table.notFound
	}
	return s.table.clone(row), nil
}

// currentVersion is the version a write must match: the staged one when the
// document was already written in this transaction, else the committed one.
func (s *stage[T]) currentVersion(id string) (int, bool) {
	if p, ok := s.pending[id]; ok {
		if p.deleted {
			return 0, false
		}
		return *s.table.version(p.doc), true
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.table.rows[id]
	if !ok {
		return 0, false
	}
	return *s.table.version(row), true
}

func (s *stage[T]) create(doc *T) error {
	id := s.table.id(doc)
	if _, exists := s.currentVersion(id); exists {
		return fmt.Errorf("%w: %s %s", ErrDuplicateID, s.table.name, id)
	}
	if v := s.table.version(doc); *v == 0 {
		*v = 1
	}
	created := true
	if p, ok := s.pending[id]; ok && p.deleted && !p.created {
		created = false
		*s.table.version(doc) = p.base + 1
	}
	s.pending[id] = &stagedDoc[T]{doc: s.table.clone(doc), created: created, base: s.baseOf(id)}
	return nil
}

func (s *stage[T]) update(doc *T) error {
	id := s.table.id(doc)
	current, exists := s.currentVersion(id)
	if !exists {
		return s.table.notFound
	}
	v := s.table.version(doc)
	if *v != current {
		return fmt.Errorf("%w: %s %s", models.ErrVersionConflict, s.table.name, id)
	}
	base, created := s.baseOf(id), s.createdInTx(id)
	*v = current + 1
	s.pending[id] = &stagedDoc[T]{doc: s.table.clone(doc), base: base, created: created}
	return nil
}

func (s *stage[T]) remove(doc *T) error {
	id := s.table.id(doc)
	current, exists := s.currentVersion(id)
	if !exists {
		return s.table.notFound
	}
	if *s.table.version(doc) != current {
		return fmt.Errorf("%w: %s %s", models.ErrVersionConflict, s.table.name, id)
	}
	if s.createdInTx(id) {
		delete(s.pending, id)
		return nil
	}
	s.pending[id] = &stagedDoc[T]{doc: s.table.clone(doc), base: s.baseOf(id), deleted: true}
	return nil
}

func (s *stage[T]) baseOf(id string) int {
	if p, ok := s.pending[id]; ok {
		return p.base
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if row, ok := s.table.rows[id]; ok {
		return *s.table.version(row)
	}
	return 0
}

func (s *stage[T]) createdInTx(id string) bool {
	p, ok := s.pending[id]
	return ok && p.created
}

// list returns clones of every visible document accepted by keep.
func (s *stage[T]) list(keep func(*T) bool) []*T {
	s.mu.Lock()
	out := make([]*T, 0)
	for id, row := range s.table.rows {
		if _, staged := s.pending[id]; staged {
			continue
		}
		if keep(row) {
			out = append(out, s.table.clone(row))
		}
	}
	s.mu.Unlock()
	for _, p := range s.pending {
		if !p.deleted && keep(p.doc) {
			out = append(out, s.table.clone(p.doc))
		}
	}
	return out
}

// verify must run with the store lock held.
func (s *stage[T]) verify() error {
	for id, p := range s.pending {
		row, exists := s.table.rows[id]
		switch {
		case p.created && exists:
			return fmt.Errorf("%w: %s %s", ErrDuplicateID, s.table.name, id)
		case p.created:
		case !exists:
			return s.table.notFound
		case *s.table.version(row) != p.base:
			return fmt.Errorf("%w: %s %s", models.ErrVersionConflict, s.table.name, id)
		}
	}
	return nil
}

// apply must run with the store lock held, after verify.
func (s *stage[T]) apply() {
	for id, p := range s.pending {
		if p.deleted {
			delete(s.table.rows, id)
			continue
		}
		s.table.rows[id] = p.doc
	}
	s.pending = make(map[string]*stagedDoc[T])
}

type memoryTx struct {
	store       *MemoryStore
	tournaments *stage[models.Tournament]
	matches     *stage[models.Match]
	leagues     *stage[models.League]
}

func (s *MemoryStore) newTx() *memoryTx {
	return &memoryTx{
		store:       s,
		tournaments: newStage(&s.mu, s.tournaments),
		matches:     newStage(&s.mu, s.matches),
		leagues:     newStage(&s.mu, s.leagues),
	}
}

func (tx *memoryTx) commit() error {
	tx.store.mu.Lock()
	defer tx.store.mu.Unlock()
	if err := tx.tournaments.verify(); err != nil {
		return err
	}
	if err := tx.matches.verify(); err != nil {
		return err
	}
	if err := tx.leagues.verify(); err != nil {
		return err
	}
	tx.tournaments.apply()
	tx.matches.apply()
	tx.leagues.apply()
	return nil
}

// memoryRepo runs against an open transaction, or outside WithinTx gives
// every call its own short transaction.
type memoryRepo struct {
	store *MemoryStore
	tx    *memoryTx
}

func (r memoryRepo) run(fn func(tx *memoryTx) error) error {
	if r.tx != nil {
		return fn(r.tx)
	}
	tx := r.store.newTx()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.commit()
}

func (r memoryRepo) reader() *memoryTx {
	if r.tx != nil {
		return r.tx
	}
	return r.store.newTx()
}

func (r memoryRepo) repos() Repos {
	return Repos{
		Tournaments: &memoryTournamentRepository{r},
		Matches:     &memoryMatchRepository{r},
		Leagues:     &memoryLeagueRepository{r},
	}
}

type memoryTournamentRepository struct{ memoryRepo }

func (r *memoryTournamentRepository) Create(_ context.Context, t *models.Tournament) error {
	return r.run(func(tx *memoryTx) error { return tx.tournaments.create(t) })
}

func (r *memoryTournamentRepository) GetByID(_ context.Context, id string) (*models.Tournament, error) {
	return r.reader().tournaments.get(id)
}

func (r *memoryTournamentRepository) List(_ context.Context, filter ListTournamentsFilter) ([]*models.Tournament, error) {
	out := r.reader().tournaments.list(func(t *models.Tournament) bool {
		if filter.ClubID != nil && !models.SameID(t.ClubID, *filter.ClubID) {
			return false
		}
		return filter.Status == nil || t.Status == *filter.Status
	})
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return paginate(out, filter.Limit, filter.Offset), nil
}

func (r *memoryTournamentRepository) Update(_ context.Context, t *models.Tournament) error {
	return r.run(func(tx *memoryTx) error { return tx.tournaments.update(t) })
}

type memoryMatchRepository struct{ memoryRepo }

func (r *memoryMatchRepository) Create(_ context.Context, m *models.Match) error {
	return r.run(func(tx *memoryTx) error { return tx.matches.create(m) })
}

func (r *memoryMatchRepository) GetByID(_ context.Context, id string) (*models.Match, error) {
	return r.reader().matches.get(id)
}

func (r *memoryMatchRepository) ListByTournament(_ context.Context, tournamentID string, filter ListMatchesFilter) ([]*models.Match, error) {
	out := r.reader().matches.list(func(m *models.Match) bool {
		return models.SameID(m.TournamentID, tournamentID) && matchesFilter(m, filter)
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].Sequence != out[j].Sequence {
			return out[i].Sequence < out[j].Sequence
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *memoryMatchRepository) Update(_ context.Context, m *models.Match) error {
	return r.run(func(tx *memoryTx) error { return tx.matches.update(m) })
}

func (r *memoryMatchRepository) Delete(_ context.Context, m *models.Match) error {
	return r.run(func(tx *memoryTx) error { return tx.matches.remove(m) })
}

type memoryLeagueRepository struct{ memoryRepo }

func (r *memoryLeagueRepository) Create(_ context.Context, l *models.League) error {
	return r.run(func(tx *memoryTx) error { return tx.leagues.create(l) })
}

func (r *memoryLeagueRepository) GetByID(_ context.Context, id string) (*models.League, error) {
	return r.reader().leagues.get(id)
}

func (r *memoryLeagueRepository) ListByClub(_ context.Context, clubID string) ([]*models.League, error) {
	out := r.reader().leagues.list(func(l *models.League) bool { return models.SameID(l.ClubID, clubID) })
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *memoryLeagueRepository) Update(_ context.Context, l *models.League) error {
	return r.run(func(tx *memoryTx) error { return tx.leagues.update(l) })
}

func paginate[T any](items []*T, limit, offset int) []*T {
	if offset > 0 {
		if offset >= len(items) {
			return []*T{}
		}
		items = items[offset:]
	}
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

// cloneDocument deep-copies through JSON, the same encoding the Postgres
// store persists.
func cloneDocument[T any](v *T) *T {
	body, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("repositories: clone %T: %v", v, err))
	}
	out := new(T)
	if err := json.Unmarshal(body, out); err != nil {
		panic(fmt.Sprintf("repositories: clone %T: %v", v, err))
	}
	return out
}

func cloneTournament(t *models.Tournament) *models.Tournament {
	out := cloneDocument(t)
	out.ScorerPINHash = t.ScorerPINHash
	return out
}
