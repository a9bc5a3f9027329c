package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Dosada05/darts-tournament-system/models"
	"github.com/Dosada05/darts-tournament-system/repositories"
	"github.com/Dosada05/darts-tournament-system/scoring"
)

type StartMatchInput struct {
	LegsToWin      int    `json:"legs_to_win,omitempty"`
	StartingPlayer string `json:"starting_player,omitempty"`
}

type MatchService interface {
	GetMatch(ctx context.Context, id string) (*models.Match, error)
	ListMatches(ctx context.Context, tournamentID string, filter repositories.ListMatchesFilter) ([]*models.Match, error)
	StartMatch(ctx context.Context, id string, input StartMatchInput) (*models.Match, error)
	FinishLeg(ctx context.Context, id string, result scoring.LegResult) (*models.Match, error)
	UndoLastLeg(ctx context.Context, id string) (*models.Match, error)
	UpdateMatchSettings(ctx context.Context, id string, update scoring.SettingsUpdate) (*models.Match, error)
}

type matchMutation func(m *models.Match, now time.Time) (string, error)

type matchService struct {
	store       repositories.Store
	tournaments TournamentService
	notifier    Notifier
	archiver    ResultsArchiver
	clock       Clock
	logger      *slog.Logger
}

func NewMatchService(
	store repositories.Store,
	tournaments TournamentService,
	notifier Notifier,
	archiver ResultsArchiver,
	clock Clock,
	logger *slog.Logger,
) MatchService {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	if clock == nil {
		clock = SystemClock()
	}
	return &matchService{
		store:       store,
		tournaments: tournaments,
		notifier:    notifier,
		archiver:    archiver,
		clock:       clock,
		logger:      logger,
	}
}

func (s *matchService) GetMatch(ctx context.Context, id string) (*models.Match, error) {
	return s.store.Repos().Matches.GetByID(ctx, models.CanonicalID(id))
}

func (s *matchService) ListMatches(ctx context.Context, tournamentID string, filter repositories.ListMatchesFilter) ([]*models.Match, error) {
	if _, err := s.store.Repos().Tournaments.GetByID(ctx, models.CanonicalID(tournamentID)); err != nil {
		return nil, err
	}
	return s.store.Repos().Matches.ListByTournament(ctx, models.CanonicalID(tournamentID), filter)
}

func (s *matchService) StartMatch(ctx context.Context, id string, input StartMatchInput) (*models.Match, error) {
	return s.mutate(ctx, id, "start match", func(m *models.Match, now time.Time) (string, error) {
		return EventMatchStarted, scoring.Start(m, input.LegsToWin, input.StartingPlayer, now)
	})
}

func (s *matchService) FinishLeg(ctx context.Context, id string, result scoring.LegResult) (*models.Match, error) {
	return s.mutate(ctx, id, "finish leg", func(m *models.Match, now time.Time) (string, error) {
		decided, err := scoring.FinishLeg(m, result, now)
		if decided {
			return EventMatchFinished, err
		}
		return EventLegFinished, err
	})
}

func (s *matchService) UndoLastLeg(ctx context.Context, id string) (*models.Match, error) {
	return s.mutate(ctx, id, "undo last leg", func(m *models.Match, now time.Time) (string, error) {
		return EventLegUndone, scoring.UndoLastLeg(m)
	})
}

// UpdateMatchSettings reassigns players, scorer or board. Replacement
// players must be registered in the tournament; on a knockout match the
// bracket pair follows the change.
func (s *matchService) UpdateMatchSettings(ctx context.Context, id string, update scoring.SettingsUpdate) (*models.Match, error) {
	return s.mutate(ctx, id, "update match settings", func(m *models.Match, now time.Time) (string, error) {
		return EventMatchUpdated, scoring.UpdateSettings(m, update)
	})
}

// mutate applies fn to the match, saves it and lets the tournament react,
// all in one transaction.
func (s *matchService) mutate(ctx context.Context, id, op string, fn matchMutation) (*models.Match, error) {
	id = models.CanonicalID(id)
	now := s.clock.Now()
	var (
		saved  *models.Match
		events []Event
	)
	err := s.store.WithinTx(ctx, func(ctx context.Context, repos repositories.Repos) error {
		m, err := repos.Matches.GetByID(ctx, id)
		if err != nil {
			return err
		}
		name, err := fn(m, now)
		if err != nil {
			return err
		}
		if err := repos.Matches.Update(ctx, m); err != nil {
			return err
		}
		follow, err := s.tournaments.RecordMatchResult(ctx, repos, m)
		if err != nil {
			return err
		}
		saved = m
		events = append([]Event{{Name: name, TournamentID: m.TournamentID, MatchID: m.ID, Payload: m}}, follow...)
		return nil
	})
	if errors.Is(err, models.ErrVersionConflict) {
		err = replayConflict(ctx, s.store, err, func(ctx context.Context, repos repositories.Repos) error {
			m, err := repos.Matches.GetByID(ctx, id)
			if err != nil {
				return err
			}
			if _, err := fn(m, s.clock.Now()); err != nil {
				return err
			}
			_, err = s.tournaments.RecordMatchResult(ctx, repos, m)
			return err
		})
	}
	if err != nil {
		s.logger.WarnContext(ctx, "match operation rejected",
			slog.String("op", op),
			slog.String("match_id", id),
			slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.logger.InfoContext(ctx, "match updated",
		slog.String("op", op),
		slog.String("match_id", saved.ID),
		slog.String("status", string(saved.Status)),
		slog.Int("legs", len(saved.Legs)))
	for _, e := range events {
		e.OccurredAt = now
		s.notifier.Publish(ctx, e)
	}
	if hasEvent(events, EventTournamentFinished) && s.archiver != nil {
		t, err := s.store.Repos().Tournaments.GetByID(ctx, saved.TournamentID)
		if err == nil {
			err = archiveResults(ctx, s.store.Repos(), s.archiver, t)
		}
		if err != nil {
			s.logger.ErrorContext(ctx, "failed to archive tournament results",
				slog.String("tournament_id", saved.TournamentID),
				slog.Any("error", err))
		}
	}
	return saved, nil
}
