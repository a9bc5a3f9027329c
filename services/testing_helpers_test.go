package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/Dosada05/darts-tournament-system/models"
	"github.com/Dosada05/darts-tournament-system/repositories"
	"github.com/Dosada05/darts-tournament-system/scoring"
)

var testNow = time.Date(2024, 12, 14, 19, 30, 0, 0, time.UTC)

type recordingNotifier struct {
	mu     sync.Mutex
	events []Event
}

func (n *recordingNotifier) Publish(ctx context.Context, event Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
}

func (n *recordingNotifier) names() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, len(n.events))
	for i, e := range n.events {
		out[i] = e.Name
	}
	return out
}

func (n *recordingNotifier) count(name string) int {
	c := 0
	for _, got := range n.names() {
		if got == name {
			c++
		}
	}
	return c
}

type fakeArchiver struct {
	mu        sync.Mutex
	archiveFn func(ctx context.Context, results TournamentResults) error
	archived  []TournamentResults
}

func (a *fakeArchiver) ArchiveResults(ctx context.Context, results TournamentResults) error {
	a.mu.Lock()
	a.archived = append(a.archived, results)
	a.mu.Unlock()
	if a.archiveFn != nil {
		return a.archiveFn(ctx, results)
	}
	return nil
}

// barrierStore holds transactions that reach commit until the armed number
// of them has arrived, then lets all of them commit at once. That forces
// the interleaving a plain MemoryStore almost never produces: every held
// transaction has read its state before any of them writes.
type barrierStore struct {
	*repositories.MemoryStore
	mu      sync.Mutex
	waiting int
	release chan struct{}
}

func (s *barrierStore) arm(parties int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.waiting = parties
	s.release = make(chan struct{})
}

func (s *barrierStore) WithinTx(ctx context.Context, fn func(ctx context.Context, repos repositories.Repos) error) error {
	return s.MemoryStore.WithinTx(ctx, func(ctx context.Context, repos repositories.Repos) error {
		if err := fn(ctx, repos); err != nil {
			return err
		}
		s.mu.Lock()
		if s.waiting == 0 {
			s.mu.Unlock()
			return nil
		}
		release := s.release
		s.waiting--
		if s.waiting == 0 {
			close(release)
		}
		s.mu.Unlock()

		select {
		case <-release:
			return nil
		case <-time.After(5 * time.Second):
			return fmt.Errorf("transaction held at barrier: %w", context.DeadlineExceeded)
		}
	})
}

// runTogether arms the barrier for len(calls) transactions and runs every
// call on its own goroutine, returning their errors in call order.
func (e *testEnv) runTogether(calls ...func() error) []error {
	e.store.arm(len(calls))
	errs := make([]error, len(calls))
	var wg sync.WaitGroup
	for i, call := range calls {
		i, call := i, call
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = call()
		}()
	}
	wg.Wait()
	return errs
}

type testEnv struct {
	store       *barrierStore
	notifier    *recordingNotifier
	archiver    *fakeArchiver
	tournaments TournamentService
	matches     MatchService
	leagues     LeagueService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := &barrierStore{MemoryStore: repositories.NewMemoryStore()}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	clock := ClockFunc(func() time.Time { return testNow })
	notifier := &recordingNotifier{}
	archiver := &fakeArchiver{}

	tournaments := NewTournamentService(store, notifier, archiver, clock, logger)
	return &testEnv{
		store:       store,
		notifier:    notifier,
		archiver:    archiver,
		tournaments: tournaments,
		matches:     NewMatchService(store, tournaments, notifier, archiver, clock, logger),
		leagues:     NewLeagueService(store, notifier, clock, logger),
	}
}

// newTournament creates a tournament and checks in players p1..pN.
func (e *testEnv) newTournament(t *testing.T, settings models.TournamentSettings, players int, leagueID *string) *models.Tournament {
	t.Helper()
	ctx := context.Background()
	tour, err := e.tournaments.CreateTournament(ctx, CreateTournamentInput{
		ClubID:    "club-1",
		Name:      "Friday Night Darts",
		Settings:  settings,
		LeagueID:  leagueID,
		ScorerPIN: "4711",
	})
	if err != nil {
		t.Fatalf("CreateTournament() error = %v", err)
	}
	for i := 1; i <= players; i++ {
		id := fmt.Sprintf("p%d", i)
		if _, err := e.tournaments.ApplyPlayer(ctx, tour.ID, ApplyPlayerInput{PlayerID: id, Name: "Player " + id}); err != nil {
			t.Fatalf("ApplyPlayer(%s) error = %v", id, err)
		}
		if tour, err = e.tournaments.CheckInPlayer(ctx, tour.ID, id); err != nil {
			t.Fatalf("CheckInPlayer(%s) error = %v", id, err)
		}
	}
	return tour
}

// legWonBy builds a valid leg: the winner checks out 501 in nine darts, the
// loser stays on 301.
func legWonBy(m *models.Match, winner string) scoring.LegResult {
	win := []models.Throw{
		{Score: 180, DartsUsed: 3},
		{Score: 180, DartsUsed: 3},
		{Score: 141, DartsUsed: 3, IsDouble: true, IsCheckout: true},
	}
	lose := []models.Throw{{Score: 100, DartsUsed: 3}, {Score: 100, DartsUsed: 3}}
	res := scoring.LegResult{WinnerID: winner, WinnerArrowCount: 3}
	if models.SameID(m.Player1.PlayerID, winner) {
		res.Player1Throws, res.Player2Throws = win, lose
	} else {
		res.Player1Throws, res.Player2Throws = lose, win
	}
	return res
}

// favourite picks the lower player id, which keeps every result predictable.
func favourite(m *models.Match) string {
	if m.Player1.PlayerID < m.Player2.PlayerID {
		return m.Player1.PlayerID
	}
	return m.Player2.PlayerID
}

func (e *testEnv) playMatch(t *testing.T, matchID, winner string) *models.Match {
	t.Helper()
	ctx := context.Background()
	m, err := e.matches.GetMatch(ctx, matchID)
	if err != nil {
		t.Fatalf("GetMatch() error = %v", err)
	}
	if m.Status == models.MatchPending {
		if m, err = e.matches.StartMatch(ctx, matchID, StartMatchInput{}); err != nil {
			t.Fatalf("StartMatch() error = %v", err)
		}
	}
	for m.Status == models.MatchOngoing {
		if m, err = e.matches.FinishLeg(ctx, matchID, legWonBy(m, winner)); err != nil {
			t.Fatalf("FinishLeg() error = %v", err)
		}
	}
	return m
}

func (e *testEnv) listMatches(t *testing.T, tournamentID string, typ models.MatchType, statuses ...models.MatchStatus) []*models.Match {
	t.Helper()
	matches, err := e.matches.ListMatches(context.Background(), tournamentID, repositories.ListMatchesFilter{Type: &typ, Statuses: statuses})
	if err != nil {
		t.Fatalf("ListMatches() error = %v", err)
	}
	return matches
}

func (e *testEnv) playPending(t *testing.T, tournamentID string, typ models.MatchType) {
	t.Helper()
	for _, m := range e.listMatches(t, tournamentID, typ, models.MatchPending) {
		e.playMatch(t, m.ID, favourite(m))
	}
}
