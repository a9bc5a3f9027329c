package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/Dosada05/darts-tournament-system/models"
	"github.com/Dosada05/darts-tournament-system/points"
	"github.com/Dosada05/darts-tournament-system/repositories"
)

type CreateLeagueInput struct {
	ClubID      string `json:"club_id"`
	Name        string `json:"name"`
	PointSystem string `json:"point_system"`
}

type AdjustmentInput struct {
	PlayerID  string `json:"player_id"`
	Delta     int    `json:"delta"`
	Reason    string `json:"reason"`
	CreatedBy string `json:"-"`
}

type LeagueTableRow struct {
	Position    int    `json:"position"`
	PlayerID    string `json:"player_id"`
	Points      int    `json:"points"`
	Tournaments int    `json:"tournaments"`
}

type LeagueService interface {
	CreateLeague(ctx context.Context, input CreateLeagueInput) (*models.League, error)
	GetLeague(ctx context.Context, id string) (*models.League, error)
	ListLeagues(ctx context.Context, clubID string) ([]*models.League, error)
	AttachTournament(ctx context.Context, leagueID, tournamentID string) (*models.League, error)
	ApplyTournamentResults(ctx context.Context, leagueID, tournamentID string) (*models.League, error)
	AddAdjustment(ctx context.Context, leagueID string, input AdjustmentInput) (*models.League, error)
	UndoAdjustment(ctx context.Context, leagueID, playerID string, index int) (*models.League, error)
	Standings(ctx context.Context, leagueID string) ([]LeagueTableRow, error)
}

type leagueService struct {
	store    repositories.Store
	notifier Notifier
	clock    Clock
	logger   *slog.Logger
}

func NewLeagueService(store repositories.Store, notifier Notifier, clock Clock, logger *slog.Logger) LeagueService {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	if clock == nil {
		clock = SystemClock()
	}
	return &leagueService{store: store, notifier: notifier, clock: clock, logger: logger}
}

func (s *leagueService) CreateLeague(ctx context.Context, input CreateLeagueInput) (*models.League, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, ErrLeagueNameRequired
	}
	clubID := models.CanonicalID(input.ClubID)
	if clubID == "" {
		return nil, ErrClubRequired
	}
	now := s.clock.Now()
	l := &models.League{
		ID:                  models.NewID(),
		ClubID:              clubID,
		Name:                name,
		PointSystem:         string(points.Normalize(input.PointSystem)),
		Standings:           map[string]*models.LeagueStanding{},
		AttachedTournaments: []string{},
		AppliedTournaments:  []string{},
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if err := s.store.Repos().Leagues.Create(ctx, l); err != nil {
		return nil, fmt.Errorf("failed to create league: %w", err)
	}
	s.logger.InfoContext(ctx, "league created",
		slog.String("league_id", l.ID),
		slog.String("point_system", l.PointSystem))
	return l, nil
}

func (s *leagueService) GetLeague(ctx context.Context, id string) (*models.League, error) {
	return s.store.Repos().Leagues.GetByID(ctx, models.CanonicalID(id))
}

func (s *leagueService) ListLeagues(ctx context.Context, clubID string) ([]*models.League, error) {
	return s.store.Repos().Leagues.ListByClub(ctx, models.CanonicalID(clubID))
}

// AttachTournament links a tournament of the same club to the league so its
// results are booked automatically when it finishes.
func (s *leagueService) AttachTournament(ctx context.Context, leagueID, tournamentID string) (*models.League, error) {
	return s.mutate(ctx, leagueID, "attach tournament", func(ctx context.Context, repos repositories.Repos, l *models.League, now time.Time) ([]Event, error) {
		t, err := repos.Tournaments.GetByID(ctx, models.CanonicalID(tournamentID))
		if err != nil {
			return nil, err
		}
		if !models.SameID(t.ClubID, l.ClubID) {
			return nil, ErrLeagueClubMismatch
		}
		if t.LeagueID != nil && !models.SameID(t.LeagueID, l.ID) {
			return nil, fmt.Errorf("%w: %s", ErrTournamentInOtherLeague, *t.LeagueID)
		}
		if !models.ContainsID(l.AttachedTournaments, t.ID) {
			l.AttachedTournaments = append(l.AttachedTournaments, t.ID)
		}
		if t.LeagueID == nil {
			id := l.ID
			t.LeagueID = &id
			t.UpdatedAt = now
			if err := repos.Tournaments.Update(ctx, t); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
}

// ApplyTournamentResults books an attached, finished tournament. It is the
// manual path for tournaments attached after they finished.
func (s *leagueService) ApplyTournamentResults(ctx context.Context, leagueID, tournamentID string) (*models.League, error) {
	return s.mutate(ctx, leagueID, "apply tournament results", func(ctx context.Context, repos repositories.Repos, l *models.League, now time.Time) ([]Event, error) {
		t, err := repos.Tournaments.GetByID(ctx, models.CanonicalID(tournamentID))
		if err != nil {
			return nil, err
		}
		if !models.ContainsID(l.AttachedTournaments, t.ID) {
			return nil, ErrTournamentNotAttached
		}
		if t.Status != models.TournamentFinished {
			return nil, fmt.Errorf("%w: tournament is %s", ErrTournamentNotFinished, t.Status)
		}
		matches, err := repos.Matches.ListByTournament(ctx, t.ID, repositories.ListMatchesFilter{})
		if err != nil {
			return nil, err
		}
		placements, err := FinalPlacements(t, matches)
		if err != nil {
			return nil, err
		}
		awarded, err := applyLeaguePoints(l, t.ID, placements, now)
		if err != nil {
			return nil, err
		}
		return []Event{{Name: EventPointsApplied, TournamentID: t.ID, LeagueID: l.ID, Payload: awarded}}, nil
	})
}

func (s *leagueService) AddAdjustment(ctx context.Context, leagueID string, input AdjustmentInput) (*models.League, error) {
	playerID := models.CanonicalID(input.PlayerID)
	reason := strings.TrimSpace(input.Reason)
	if playerID == "" {
		return nil, ErrPlayerRequired
	}
	if input.Delta == 0 || reason == "" {
		return nil, ErrInvalidAdjustment
	}
	return s.mutate(ctx, leagueID, "add adjustment", func(ctx context.Context, repos repositories.Repos, l *models.League, now time.Time) ([]Event, error) {
		standing := l.Standing(playerID)
		standing.Adjustments = append(standing.Adjustments, models.PointAdjustment{
			Delta:     input.Delta,
			Reason:    reason,
			CreatedBy: input.CreatedBy,
			CreatedAt: now,
		})
		return []Event{{Name: EventLeagueAdjusted, LeagueID: l.ID, Payload: map[string]interface{}{"player_id": playerID, "delta": input.Delta}}}, nil
	})
}

// UndoAdjustment flags an adjustment as reverted. The entry stays in the
// history.
func (s *leagueService) UndoAdjustment(ctx context.Context, leagueID, playerID string, index int) (*models.League, error) {
	return s.mutate(ctx, leagueID, "undo adjustment", func(ctx context.Context, repos repositories.Repos, l *models.League, now time.Time) ([]Event, error) {
		standing, ok := l.Standings[models.CanonicalID(playerID)]
		if !ok {
			return nil, fmt.Errorf("%w: %s", models.ErrPlayerNotFound, playerID)
		}
		if index < 0 || index >= len(standing.Adjustments) {
			return nil, fmt.Errorf("%w: index %d", models.ErrAdjustmentNotFound, index)
		}
		adj := &standing.Adjustments[index]
		if adj.Reverted {
			return nil, models.ErrAdjustmentReverted
		}
		reverted := now
		adj.Reverted = true
		adj.RevertedAt = &reverted
		return []Event{{Name: EventLeagueAdjusted, LeagueID: l.ID, Payload: map[string]interface{}{"player_id": standing.PlayerID, "delta": -adj.Delta}}}, nil
	})
}

// Standings returns the league table ordered by points, ties broken by
// player id so the order is stable.
func (s *leagueService) Standings(ctx context.Context, leagueID string) ([]LeagueTableRow, error) {
	l, err := s.GetLeague(ctx, leagueID)
	if err != nil {
		return nil, err
	}
	return leagueTable(l), nil
}

func leagueTable(l *models.League) []LeagueTableRow {
	rows := make([]LeagueTableRow, 0, len(l.Standings))
	for key, st := range l.Standings {
		rows = append(rows, LeagueTableRow{PlayerID: key, Points: st.Points(), Tournaments: len(st.Contributions)})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Points != rows[j].Points {
			return rows[i].Points > rows[j].Points
		}
		return rows[i].PlayerID < rows[j].PlayerID
	})
	for i := range rows {
		rows[i].Position = i + 1
		if i > 0 && rows[i].Points == rows[i-1].Points {
			rows[i].Position = rows[i-1].Position
		}
	}
	return rows
}

// applyLeaguePoints books one tournament's placements into l using the
// league's point system and returns the points awarded per player.
func applyLeaguePoints(l *models.League, tournamentID string, placements []points.Placement, now time.Time) (map[string]int, error) {
	if models.ContainsID(l.AppliedTournaments, tournamentID) {
		return nil, fmt.Errorf("%w: tournament %s", models.ErrTournamentAlreadyApplied, tournamentID)
	}
	calc := points.Lookup(points.Normalize(l.PointSystem))
	awarded := calc.Compute(placements)

	places := make(map[string]int, len(placements))
	for _, p := range placements {
		places[models.CanonicalID(p.PlayerID)] = p.Place
	}
	ids := make([]string, 0, len(awarded))
	for id := range awarded {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		standing := l.Standing(id)
		standing.Contributions = append(standing.Contributions, models.PointContribution{
			TournamentID: models.CanonicalID(tournamentID),
			Place:        places[id],
			Points:       awarded[id],
		})
	}
	l.AppliedTournaments = append(l.AppliedTournaments, models.CanonicalID(tournamentID))
	if !models.ContainsID(l.AttachedTournaments, tournamentID) {
		l.AttachedTournaments = append(l.AttachedTournaments, models.CanonicalID(tournamentID))
	}
	l.UpdatedAt = now
	return awarded, nil
}

type leagueMutation func(ctx context.Context, repos repositories.Repos, l *models.League, now time.Time) ([]Event, error)

func (s *leagueService) mutate(ctx context.Context, leagueID, op string, fn leagueMutation) (*models.League, error) {
	id := models.CanonicalID(leagueID)
	now := s.clock.Now()
	var (
		saved  *models.League
		events []Event
	)
	err := s.store.WithinTx(ctx, func(ctx context.Context, repos repositories.Repos) error {
		l, err := repos.Leagues.GetByID(ctx, id)
		if err != nil {
			return err
		}
		evs, err := fn(ctx, repos, l, now)
		if err != nil {
			return err
		}
		l.UpdatedAt = now
		if err := repos.Leagues.Update(ctx, l); err != nil {
			return err
		}
		saved, events = l, evs
		return nil
	})
	if errors.Is(err, models.ErrVersionConflict) {
		err = replayConflict(ctx, s.store, err, func(ctx context.Context, repos repositories.Repos) error {
			l, err := repos.Leagues.GetByID(ctx, id)
			if err != nil {
				return err
			}
			_, err = fn(ctx, repos, l, s.clock.Now())
			return err
		})
	}
	if err != nil {
		s.logger.WarnContext(ctx, "league operation rejected",
			slog.String("op", op),
			slog.String("league_id", id),
			slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.logger.InfoContext(ctx, "league updated",
		slog.String("op", op),
		slog.String("league_id", saved.ID),
		slog.Int("version", saved.Version))
	for _, e := range events {
		e.OccurredAt = now
		s.notifier.Publish(ctx, e)
	}
	return saved, nil
}
