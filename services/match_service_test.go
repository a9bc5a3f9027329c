package services

import (
	"context"
	"errors"
	"testing"

	"github.com/Dosada05/darts-tournament-system/models"
	"github.com/Dosada05/darts-tournament-system/repositories"
	"github.com/Dosada05/darts-tournament-system/scoring"
)

func TestUpdateMatchSettings(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tour := env.newTournament(t, models.TournamentSettings{Format: models.FormatGroupOnly, GroupSize: 4, LegsPerMatch: 1, Boards: []int{1, 2}}, 4, nil)
	if _, err := env.tournaments.GenerateGroups(ctx, tour.ID); err != nil {
		t.Fatalf("GenerateGroups() error = %v", err)
	}
	m := env.listMatches(t, tour.ID, models.MatchTypeGroup)[0]

	board := 7
	updated, err := env.matches.UpdateMatchSettings(ctx, m.ID, scoring.SettingsUpdate{BoardNumber: &board})
	if err != nil {
		t.Fatalf("UpdateMatchSettings() error = %v", err)
	}
	if updated.BoardNumber != 7 || updated.Version <= m.Version {
		t.Errorf("board=%d version=%d, want board 7 and a newer version than %d", updated.BoardNumber, updated.Version, m.Version)
	}
	if env.notifier.count(EventMatchUpdated) != 1 {
		t.Errorf("events = %v, want one %s", env.notifier.names(), EventMatchUpdated)
	}

	same := m.Player1.PlayerID
	if _, err := env.matches.UpdateMatchSettings(ctx, m.ID, scoring.SettingsUpdate{Player2ID: &same}); !errors.Is(err, models.ErrValidation) {
		t.Errorf("same player twice: error = %v, want validation", err)
	}

	env.playMatch(t, m.ID, favourite(m))
	if _, err := env.matches.UpdateMatchSettings(ctx, m.ID, scoring.SettingsUpdate{BoardNumber: &board}); !errors.Is(err, models.ErrMatchFinished) {
		t.Errorf("finished match: error = %v, want ErrMatchFinished", err)
	}
}

func TestReassignGroupMatchStaysInGroup(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	settings := models.TournamentSettings{GroupSize: 4, QualifiersPerGroup: 2, LegsPerMatch: 1, Boards: []int{1, 2}}
	tour := env.newTournament(t, settings, 8, nil)
	tour, err := env.tournaments.GenerateGroups(ctx, tour.ID)
	if err != nil {
		t.Fatalf("GenerateGroups() error = %v", err)
	}
	home, away := tour.Groups[0], tour.Groups[1]
	groupID := home.ID
	m := env.listMatches(t, tour.ID, models.MatchTypeGroup)[0]
	for _, candidate := range env.listMatches(t, tour.ID, models.MatchTypeGroup) {
		if candidate.GroupID != nil && models.SameID(*candidate.GroupID, groupID) {
			m = candidate
			break
		}
	}

	outsider := away.PlayerIDs[0]
	if _, err := env.matches.UpdateMatchSettings(ctx, m.ID, scoring.SettingsUpdate{Player2ID: &outsider}); !errors.Is(err, ErrPlayerOutsideGroup) {
		t.Fatalf("player from group %s: error = %v, want ErrPlayerOutsideGroup", away.ID, err)
	}
	if got, _ := env.matches.GetMatch(ctx, m.ID); got.Player2.PlayerID != m.Player2.PlayerID {
		t.Errorf("rejected reassignment changed player 2 to %s", got.Player2.PlayerID)
	}

	var member string
	for _, id := range home.PlayerIDs {
		if id != m.Player1.PlayerID && id != m.Player2.PlayerID {
			member = id
			break
		}
	}
	updated, err := env.matches.UpdateMatchSettings(ctx, m.ID, scoring.SettingsUpdate{Player2ID: &member})
	if err != nil {
		t.Fatalf("player from the same group: error = %v", err)
	}
	if updated.Player2.PlayerID != member {
		t.Errorf("player 2 = %s, want %s", updated.Player2.PlayerID, member)
	}

	env.playPending(t, tour.ID, models.MatchTypeGroup)
	if _, err := env.tournaments.FinishGroupStage(ctx, tour.ID); err != nil {
		t.Errorf("FinishGroupStage() after an in-group reassignment error = %v", err)
	}
}

func TestReassignKnockoutMatchNeedsLivePlayer(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tour := env.newTournament(t, models.TournamentSettings{Format: models.FormatKnockoutOnly, KnockoutMethod: models.KnockoutAutomatic, LegsPerMatch: 1}, 4, nil)
	tour, err := env.tournaments.GenerateKnockout(ctx, tour.ID)
	if err != nil {
		t.Fatalf("GenerateKnockout() error = %v", err)
	}
	round0 := env.listMatches(t, tour.ID, models.MatchTypeKnockout)
	if len(round0) != 2 {
		t.Fatalf("round 0 matches = %d, want 2", len(round0))
	}

	busy := round0[1].Player1.PlayerID
	if _, err := env.matches.UpdateMatchSettings(ctx, round0[0].ID, scoring.SettingsUpdate{Player2ID: &busy}); !errors.Is(err, models.ErrDuplicateBracketPlayer) {
		t.Errorf("player from another pair: error = %v, want ErrDuplicateBracketPlayer", err)
	}
	ghost := "p99"
	if _, err := env.matches.UpdateMatchSettings(ctx, round0[0].ID, scoring.SettingsUpdate{Player2ID: &ghost}); !errors.Is(err, models.ErrUnknownPlayer) {
		t.Errorf("unregistered player: error = %v, want ErrUnknownPlayer", err)
	}

	env.playPending(t, tour.ID, models.MatchTypeKnockout)
	if _, err := env.tournaments.AdvanceKnockout(ctx, tour.ID, 0); err != nil {
		t.Fatalf("AdvanceKnockout() error = %v", err)
	}
	played, _ := env.matches.GetMatch(ctx, round0[0].ID)
	knockedOut, _ := played.LoserID()
	final := env.listMatches(t, tour.ID, models.MatchTypeKnockout, models.MatchPending)[0]

	if _, err := env.matches.UpdateMatchSettings(ctx, final.ID, scoring.SettingsUpdate{Player2ID: &knockedOut}); !errors.Is(err, ErrPlayerNotInBracket) {
		t.Errorf("eliminated player %s: error = %v, want ErrPlayerNotInBracket", knockedOut, err)
	}
	tour, _ = env.tournaments.GetTournament(ctx, tour.ID)
	if pair := tour.Knockout[1].Pairs[0]; pair.Has(knockedOut) {
		t.Errorf("final pair = %+v, eliminated player must not be placed", pair)
	}

	board := 3
	if _, err := env.matches.UpdateMatchSettings(ctx, final.ID, scoring.SettingsUpdate{BoardNumber: &board}); err != nil {
		t.Errorf("board change on the final error = %v", err)
	}
}

func TestListTournamentsFilters(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	open := env.newTournament(t, models.TournamentSettings{}, 0, nil)
	cancelled := env.newTournament(t, models.TournamentSettings{}, 0, nil)
	if _, err := env.tournaments.CancelTournament(ctx, cancelled.ID); err != nil {
		t.Fatalf("CancelTournament() error = %v", err)
	}
	if _, err := env.tournaments.CreateTournament(ctx, CreateTournamentInput{ClubID: "club-2", Name: "Elsewhere"}); err != nil {
		t.Fatalf("CreateTournament() error = %v", err)
	}

	club := "club-1"
	all, err := env.tournaments.ListTournaments(ctx, repositories.ListTournamentsFilter{ClubID: &club})
	if err != nil {
		t.Fatalf("ListTournaments() error = %v", err)
	}
	if len(all) != 2 {
		t.Errorf("club-1 has %d tournaments, want 2", len(all))
	}

	pending := models.TournamentPending
	onlyPending, err := env.tournaments.ListTournaments(ctx, repositories.ListTournamentsFilter{ClubID: &club, Status: &pending})
	if err != nil {
		t.Fatalf("ListTournaments() error = %v", err)
	}
	if len(onlyPending) != 1 || onlyPending[0].ID != open.ID {
		t.Errorf("pending tournaments = %v, want only %s", onlyPending, open.ID)
	}
}
