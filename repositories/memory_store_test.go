package repositories

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Dosada05/darts-tournament-system/models"
)

func newTestTournament(id string) *models.Tournament {
	return &models.Tournament{
		ID:            id,
		Code:          "T-" + id,
		ClubID:        "club-1",
		Name:          "Friday Night Darts",
		Status:        models.TournamentPending,
		ScorerPINHash: "hash",
		CreatedAt:     time.Date(2026, 1, 2, 18, 0, 0, 0, time.UTC),
	}
}

func TestMemoryStoreCreateAndGet(t *testing.T) {
	ctx := context.Background()
	repos := NewMemoryStore().Repos()

	tr := newTestTournament("t1")
	if err := repos.Tournaments.Create(ctx, tr); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if tr.Version != 1 {
		t.Errorf("expected version 1 after create, got %d", tr.Version)
	}
	if err := repos.Tournaments.Create(ctx, newTestTournament("t1")); !errors.Is(err, ErrDuplicateID) {
		t.Errorf("expected ErrDuplicateID, got %v", err)
	}

	got, err := repos.Tournaments.GetByID(ctx, "t1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.ScorerPINHash != "hash" || got.Name != tr.Name {
		t.Errorf("unexpected document: %+v", got)
	}

	got.Name = "changed"
	again, _ := repos.Tournaments.GetByID(ctx, "t1")
	if again.Name != tr.Name {
		t.Errorf("returned documents must be copies")
	}

	if _, err := repos.Tournaments.GetByID(ctx, "missing"); !errors.Is(err, models.ErrTournamentNotFound) {
		t.Errorf("expected ErrTournamentNotFound, got %v", err)
	}
}

func TestMemoryStoreOptimisticUpdate(t *testing.T) {
	ctx := context.Background()
	repos := NewMemoryStore().Repos()
	if err := repos.Tournaments.Create(ctx, newTestTournament("t1")); err != nil {
		t.Fatalf("Create: %v", err)
	}

	first, _ := repos.Tournaments.GetByID(ctx, "t1")
	second, _ := repos.Tournaments.GetByID(ctx, "t1")

	first.Status = models.TournamentGroupStage
	if err := repos.Tournaments.Update(ctx, first); err != nil {
		t.Fatalf("first update: %v", err)
	}
	if first.Version != 2 {
		t.Errorf("expected version 2, got %d", first.Version)
	}

	second.Status = models.TournamentCancelled
	if err := repos.Tournaments.Update(ctx, second); !errors.Is(err, models.ErrVersionConflict) {
		t.Fatalf("expected ErrVersionConflict, got %v", err)
	}
	if !errors.Is(models.ErrVersionConflict, models.ErrStateConflict) {
		t.Errorf("version conflicts must be state conflicts")
	}

	stored, _ := repos.Tournaments.GetByID(ctx, "t1")
	if stored.Status != models.TournamentGroupStage {
		t.Errorf("losing write must not be applied, got %s", stored.Status)
	}
}

func TestMemoryStoreWithinTxIsAtomic(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	boom := errors.New("boom")

	err := store.WithinTx(ctx, func(ctx context.Context, repos Repos) error {
		if err := repos.Tournaments.Create(ctx, newTestTournament("t1")); err != nil {
			return err
		}
		m := &models.Match{ID: "m1", TournamentID: "t1", Status: models.MatchPending}
		if err := repos.Matches.Create(ctx, m); err != nil {
			return err
		}
		if _, err := repos.Matches.GetByID(ctx, "m1"); err != nil {
			t.Errorf("staged write must be visible inside the transaction: %v", err)
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	repos := store.Repos()
	if _, err := repos.Tournaments.GetByID(ctx, "t1"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("rolled back tournament must not exist, got %v", err)
	}
	if _, err := repos.Matches.GetByID(ctx, "m1"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("rolled back match must not exist, got %v", err)
	}
}

func TestMemoryStoreCommitDetectsConcurrentWriter(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	m := &models.Match{ID: "m1", TournamentID: "t1", Status: models.MatchPending}
	if err := store.Repos().Matches.Create(ctx, m); err != nil {
		t.Fatalf("Create: %v", err)
	}

	err := store.WithinTx(ctx, func(ctx context.Context, repos Repos) error {
		mine, err := repos.Matches.GetByID(ctx, "m1")
		if err != nil {
			return err
		}

		theirs, _ := store.Repos().Matches.GetByID(ctx, "m1")
		theirs.Status = models.MatchOngoing
		if err := store.Repos().Matches.Update(ctx, theirs); err != nil {
			t.Fatalf("concurrent update: %v", err)
		}

		mine.Status = models.MatchOngoing
		return repos.Matches.Update(ctx, mine)
	})
	if !errors.Is(err, models.ErrVersionConflict) {
		t.Fatalf("expected ErrVersionConflict, got %v", err)
	}
}

func TestMemoryStoreMultipleWritesInOneTx(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Repos().Tournaments.Create(ctx, newTestTournament("t1")); err != nil {
		t.Fatalf("Create: %v", err)
	}

	err := store.WithinTx(ctx, func(ctx context.Context, repos Repos) error {
		tr, err := repos.Tournaments.GetByID(ctx, "t1")
		if err != nil {
			return err
		}
		tr.Name = "one"
		if err := repos.Tournaments.Update(ctx, tr); err != nil {
			return err
		}
		tr.Name = "two"
		return repos.Tournaments.Update(ctx, tr)
	})
	if err != nil {
		t.Fatalf("WithinTx: %v", err)
	}
	got, _ := store.Repos().Tournaments.GetByID(ctx, "t1")
	if got.Name != "two" || got.Version != 3 {
		t.Errorf("expected name two at version 3, got %s at %d", got.Name, got.Version)
	}
}

func TestMemoryStoreListMatches(t *testing.T) {
	ctx := context.Background()
	repos := NewMemoryStore().Repos()
	groupA := "A"
	for i, m := range []*models.Match{
		{ID: "k1", TournamentID: "t1", Type: models.MatchTypeKnockout, Round: 0, Sequence: 3, Status: models.MatchPending},
		{ID: "g2", TournamentID: "t1", Type: models.MatchTypeGroup, GroupID: &groupA, Sequence: 2, Status: models.MatchFinished},
		{ID: "g1", TournamentID: "t1", Type: models.MatchTypeGroup, GroupID: &groupA, Sequence: 1, Status: models.MatchOngoing},
		{ID: "x1", TournamentID: "t2", Type: models.MatchTypeGroup, Sequence: 1, Status: models.MatchPending},
	} {
		if err := repos.Matches.Create(ctx, m); err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
	}

	all, err := repos.Matches.ListByTournament(ctx, "t1", ListMatchesFilter{})
	if err != nil {
		t.Fatalf("ListByTournament: %v", err)
	}
	if ids := matchIDs(all); ids != "g1,g2,k1" {
		t.Errorf("expected sequence order g1,g2,k1, got %s", ids)
	}

	group := models.MatchTypeGroup
	open, _ := repos.Matches.ListByTournament(ctx, "t1", ListMatchesFilter{
		Type:     &group,
		Statuses: []models.MatchStatus{models.MatchPending, models.MatchOngoing},
	})
	if ids := matchIDs(open); ids != "g1" {
		t.Errorf("expected g1, got %s", ids)
	}

	round := 0
	ko, _ := repos.Matches.ListByTournament(ctx, "t1", ListMatchesFilter{Round: &round})
	if ids := matchIDs(ko); ids != "k1" {
		t.Errorf("expected k1, got %s", ids)
	}

	k1, _ := repos.Matches.GetByID(ctx, "k1")
	if err := repos.Matches.Delete(ctx, k1); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := repos.Matches.GetByID(ctx, "k1"); !errors.Is(err, models.ErrMatchNotFound) {
		t.Errorf("expected deleted match to be gone, got %v", err)
	}
}

func TestMemoryStoreListTournamentsAndLeagues(t *testing.T) {
	ctx := context.Background()
	repos := NewMemoryStore().Repos()
	older := newTestTournament("t1")
	newer := newTestTournament("t2")
	newer.CreatedAt = older.CreatedAt.Add(time.Hour)
	other := newTestTournament("t3")
	other.ClubID = "club-2"
	for _, tr := range []*models.Tournament{older, newer, other} {
		if err := repos.Tournaments.Create(ctx, tr); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	club := "club-1"
	list, _ := repos.Tournaments.List(ctx, ListTournamentsFilter{ClubID: &club})
	if len(list) != 2 || list[0].ID != "t2" || list[1].ID != "t1" {
		t.Errorf("expected newest first for club-1, got %v", list)
	}
	page, _ := repos.Tournaments.List(ctx, ListTournamentsFilter{ClubID: &club, Limit: 1, Offset: 1})
	if len(page) != 1 || page[0].ID != "t1" {
		t.Errorf("unexpected page: %v", page)
	}

	l := &models.League{ID: "l1", ClubID: "club-1", PointSystem: "ontour"}
	if err := repos.Leagues.Create(ctx, l); err != nil {
		t.Fatalf("league Create: %v", err)
	}
	l.Standing("p1").Adjustments = append(l.Standing("p1").Adjustments, models.PointAdjustment{Delta: 3, Reason: "late entry"})
	if err := repos.Leagues.Update(ctx, l); err != nil {
		t.Fatalf("league Update: %v", err)
	}
	leagues, _ := repos.Leagues.ListByClub(ctx, "club-1")
	if len(leagues) != 1 || leagues[0].Standings["p1"].Points() != 3 {
		t.Errorf("unexpected leagues: %+v", leagues)
	}
}

func matchIDs(ms []*models.Match) string {
	out := ""
	for i, m := range ms {
		if i > 0 {
			out += ","
		}
		out += m.ID
	}
	return out
}
