package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Dosada05/darts-tournament-system/brackets"
	"github.com/Dosada05/darts-tournament-system/models"
	"github.com/Dosada05/darts-tournament-system/points"
	"github.com/Dosada05/darts-tournament-system/repositories"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/errgroup"
)

type CreateTournamentInput struct {
	ClubID    string                    `json:"club_id"`
	Name      string                    `json:"name"`
	Code      string                    `json:"code,omitempty"`
	Settings  models.TournamentSettings `json:"settings"`
	LeagueID  *string                   `json:"league_id,omitempty"`
	ScorerPIN string                    `json:"scorer_pin,omitempty"`
}

type ApplyPlayerInput struct {
	PlayerID string `json:"player_id"`
	Name     string `json:"name,omitempty"`
}

type TournamentOverview struct {
	Tournament     *models.Tournament                  `json:"tournament"`
	Matches        []*models.Match                     `json:"matches"`
	GroupStandings map[string][]brackets.GroupStanding `json:"group_standings,omitempty"`
	TotalRounds    int                                 `json:"total_rounds"`
	Placements     []points.Placement                  `json:"placements,omitempty"`
}

// TournamentService is the only component allowed to change a tournament's
// top-level status. Every mutator runs as one transaction with a
// conditional write on the tournament document.
type TournamentService interface {
	CreateTournament(ctx context.Context, input CreateTournamentInput) (*models.Tournament, error)
	GetTournament(ctx context.Context, id string) (*models.Tournament, error)
	ListTournaments(ctx context.Context, filter repositories.ListTournamentsFilter) ([]*models.Tournament, error)
	GetOverview(ctx context.Context, id string) (*TournamentOverview, error)
	VerifyScorerPIN(ctx context.Context, tournamentID, pin string) error

	ApplyPlayer(ctx context.Context, tournamentID string, input ApplyPlayerInput) (*models.Tournament, error)
	CheckInPlayer(ctx context.Context, tournamentID, playerID string) (*models.Tournament, error)
	WithdrawPlayer(ctx context.Context, tournamentID, playerID string) (*models.Tournament, error)
	PromoteFromWaitingList(ctx context.Context, tournamentID string) (*models.Tournament, error)

	GenerateGroups(ctx context.Context, tournamentID string) (*models.Tournament, error)
	FinishGroupStage(ctx context.Context, tournamentID string) (*models.Tournament, error)
	GenerateKnockout(ctx context.Context, tournamentID string) (*models.Tournament, error)
	SubmitManualBracket(ctx context.Context, tournamentID string, pairs []brackets.ManualPair) (*models.Tournament, error)
	AdvanceKnockout(ctx context.Context, tournamentID string, currentRound int) (*models.Tournament, error)
	CancelKnockout(ctx context.Context, tournamentID string) (*models.Tournament, error)
	CancelTournament(ctx context.Context, tournamentID string) (*models.Tournament, error)

	// RecordMatchResult propagates a match change to its tournament inside the
	// caller's transaction. It is called after the match has been saved.
	RecordMatchResult(ctx context.Context, repos repositories.Repos, m *models.Match) ([]Event, error)
}

// ResultsArchiver stores a finished tournament's final results.
type ResultsArchiver interface {
	ArchiveResults(ctx context.Context, results TournamentResults) error
}

type TournamentResults struct {
	Tournament *models.Tournament `json:"tournament"`
	Placements []points.Placement `json:"placements"`
	Matches    []*models.Match    `json:"matches"`
}

type tournamentMutation func(ctx context.Context, repos repositories.Repos, t *models.Tournament, now time.Time) ([]Event, error)

type tournamentService struct {
	store    repositories.Store
	notifier Notifier
	archiver ResultsArchiver
	clock    Clock
	logger   *slog.Logger
}

func NewTournamentService(
	store repositories.Store,
	notifier Notifier,
	archiver ResultsArchiver,
	clock Clock,
	logger *slog.Logger,
) TournamentService {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	if clock == nil {
		clock = SystemClock()
	}
	return &tournamentService{
		store:    store,
		notifier: notifier,
		archiver: archiver,
		clock:    clock,
		logger:   logger,
	}
}

func (s *tournamentService) CreateTournament(ctx context.Context, input CreateTournamentInput) (*models.Tournament, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, ErrTournamentNameRequired
	}
	clubID := models.CanonicalID(input.ClubID)
	if clubID == "" {
		return nil, ErrClubRequired
	}
	settings := input.Settings.WithDefaults()
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	t := &models.Tournament{
		ID:          models.NewID(),
		Code:        strings.ToUpper(strings.TrimSpace(input.Code)),
		ClubID:      clubID,
		Name:        name,
		Settings:    settings,
		Status:      models.TournamentPending,
		Players:     []models.TournamentPlayer{},
		Groups:      []models.Group{},
		Knockout:    []models.KnockoutRound{},
		WaitingList: []models.WaitingListEntry{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if t.Code == "" {
		t.Code = strings.ToUpper(strings.ReplaceAll(t.ID, "-", "")[:8])
	}
	if input.ScorerPIN != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(input.ScorerPIN), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("failed to hash scorer pin: %w", err)
		}
		t.ScorerPINHash = string(hash)
	}

	err := s.store.WithinTx(ctx, func(ctx context.Context, repos repositories.Repos) error {
		if input.LeagueID != nil && models.CanonicalID(input.LeagueID) != "" {
			l, err := repos.Leagues.GetByID(ctx, models.CanonicalID(input.LeagueID))
			if err != nil {
				return err
			}
			if !models.SameID(l.ClubID, clubID) {
				return ErrLeagueClubMismatch
			}
			leagueID := l.ID
			t.LeagueID = &leagueID
			l.AttachedTournaments = append(l.AttachedTournaments, t.ID)
			l.UpdatedAt = now
			if err := repos.Leagues.Update(ctx, l); err != nil {
				return err
			}
		}
		return repos.Tournaments.Create(ctx, t)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create tournament: %w", err)
	}
	s.logger.InfoContext(ctx, "tournament created",
		slog.String("tournament_id", t.ID),
		slog.String("club_id", t.ClubID),
		slog.String("format", string(t.Settings.Format)))
	return t, nil
}

func (s *tournamentService) GetTournament(ctx context.Context, id string) (*models.Tournament, error) {
	return s.store.Repos().Tournaments.GetByID(ctx, models.CanonicalID(id))
}

func (s *tournamentService) ListTournaments(ctx context.Context, filter repositories.ListTournamentsFilter) ([]*models.Tournament, error) {
	return s.store.Repos().Tournaments.List(ctx, filter)
}

// GetOverview loads the tournament and its matches concurrently and derives
// group standings, bracket depth and, once finished, the final placements.
func (s *tournamentService) GetOverview(ctx context.Context, id string) (*TournamentOverview, error) {
	id = models.CanonicalID(id)
	repos := s.store.Repos()

	var (
		t       *models.Tournament
		matches []*models.Match
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		t, err = repos.Tournaments.GetByID(gctx, id)
		return err
	})
	g.Go(func() error {
		var err error
		matches, err = repos.Matches.ListByTournament(gctx, id, repositories.ListMatchesFilter{})
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Results of the live round are settled on the bracket only when it
	// advances; the overview shows them as soon as the matches finish.
	if n := len(t.Knockout); n > 0 && t.Status == models.TournamentKnockout {
		settleRound(t, n-1, matches)
	}

	overview := &TournamentOverview{
		Tournament:     t,
		Matches:        matches,
		GroupStandings: make(map[string][]brackets.GroupStanding, len(t.Groups)),
		TotalRounds:    plannedRounds(t),
	}
	for _, grp := range t.Groups {
		standings, err := brackets.ComputeGroupStandings(grp, groupMatches(matches, grp.ID))
		if err != nil {
			return nil, err
		}
		overview.GroupStandings[grp.ID] = standings
	}
	if t.Status == models.TournamentFinished {
		placements, err := FinalPlacements(t, matches)
		if err != nil {
			return nil, err
		}
		overview.Placements = placements
	}
	return overview, nil
}

// plannedRounds is the knockout depth, derived from the number of entrants
// that advance into the bracket, never from the registered player count.
func plannedRounds(t *models.Tournament) int {
	if !t.Settings.Format.HasKnockout() {
		return 0
	}
	if len(t.Knockout) > 0 {
		entrants := 0
		for _, p := range t.Knockout[0].Pairs {
			entrants += len(pairPlayers(p))
		}
		return brackets.TotalRounds(entrants)
	}
	if t.Settings.Format == models.FormatKnockoutOnly {
		return brackets.TotalRounds(len(t.CheckedInPlayers()))
	}
	groups := models.NewIDSet()
	for _, g := range t.Groups {
		groups.Add(g.ID)
	}
	return brackets.TotalRounds(len(groups) * t.Settings.QualifiersPerGroup)
}

func (s *tournamentService) VerifyScorerPIN(ctx context.Context, tournamentID, pin string) error {
	t, err := s.GetTournament(ctx, tournamentID)
	if err != nil {
		return err
	}
	if t.ScorerPINHash == "" || pin == "" {
		return ErrForbiddenOperation
	}
	if err := bcrypt.CompareHashAndPassword([]byte(t.ScorerPINHash), []byte(pin)); err != nil {
		return ErrForbiddenOperation
	}
	return nil
}

func (s *tournamentService) ApplyPlayer(ctx context.Context, tournamentID string, input ApplyPlayerInput) (*models.Tournament, error) {
	playerID := models.CanonicalID(input.PlayerID)
	if playerID == "" {
		return nil, ErrPlayerRequired
	}
	return s.mutate(ctx, tournamentID, "apply player", func(ctx context.Context, repos repositories.Repos, t *models.Tournament, now time.Time) ([]Event, error) {
		if t.Status != models.TournamentPending {
			return nil, fmt.Errorf("%w: tournament is %s", models.ErrTournamentNotOpen, t.Status)
		}
		if _, ok := t.Player(playerID); ok || waitingIndex(t, playerID) >= 0 {
			return nil, fmt.Errorf("%w: %s", models.ErrPlayerAlreadyRegistered, playerID)
		}
		if t.OpenSlots() == 0 {
			t.WaitingList = append(t.WaitingList, models.WaitingListEntry{PlayerID: playerID, Name: input.Name, AppliedAt: now})
			return []Event{{Name: EventPlayerRegistered, TournamentID: t.ID, Payload: map[string]interface{}{"player_id": playerID, "waiting_list": true}}}, nil
		}
		t.Players = append(t.Players, models.TournamentPlayer{
			PlayerID:     playerID,
			Name:         input.Name,
			Status:       models.PlayerApplied,
			RegisteredAt: now,
		})
		return []Event{{Name: EventPlayerRegistered, TournamentID: t.ID, Payload: map[string]interface{}{"player_id": playerID, "waiting_list": false}}}, nil
	})
}

func (s *tournamentService) CheckInPlayer(ctx context.Context, tournamentID, playerID string) (*models.Tournament, error) {
	return s.mutate(ctx, tournamentID, "check in player", func(ctx context.Context, repos repositories.Repos, t *models.Tournament, now time.Time) ([]Event, error) {
		if t.Status != models.TournamentPending {
			return nil, fmt.Errorf("%w: tournament is %s", models.ErrTournamentNotOpen, t.Status)
		}
		p, ok := t.Player(playerID)
		if !ok {
			return nil, fmt.Errorf("%w: %s", models.ErrPlayerNotFound, playerID)
		}
		p.Status = models.PlayerCheckedIn
		return nil, nil
	})
}

// WithdrawPlayer removes a registration or waiting-list entry. Players
// already placed in a group cannot withdraw.
func (s *tournamentService) WithdrawPlayer(ctx context.Context, tournamentID, playerID string) (*models.Tournament, error) {
	return s.mutate(ctx, tournamentID, "withdraw player", func(ctx context.Context, repos repositories.Repos, t *models.Tournament, now time.Time) ([]Event, error) {
		if t.Status != models.TournamentPending && t.Status != models.TournamentGroupStage {
			return nil, fmt.Errorf("%w: tournament is %s", models.ErrTournamentNotOpen, t.Status)
		}
		if i := waitingIndex(t, playerID); i >= 0 {
			t.WaitingList = append(t.WaitingList[:i], t.WaitingList[i+1:]...)
			return nil, nil
		}
		for i, p := range t.Players {
			if !models.SameID(p.PlayerID, playerID) {
				continue
			}
			if p.GroupID != nil {
				return nil, fmt.Errorf("%w: player %s is already placed in group %s", models.ErrTournamentNotOpen, p.PlayerID, *p.GroupID)
			}
			t.Players = append(t.Players[:i], t.Players[i+1:]...)
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %s", models.ErrPlayerNotFound, playerID)
	})
}

// PromoteFromWaitingList moves waiting applicants, oldest first, into open
// slots.
func (s *tournamentService) PromoteFromWaitingList(ctx context.Context, tournamentID string) (*models.Tournament, error) {
	return s.mutate(ctx, tournamentID, "promote waiting list", func(ctx context.Context, repos repositories.Repos, t *models.Tournament, now time.Time) ([]Event, error) {
		if t.Status != models.TournamentPending && t.Status != models.TournamentGroupStage {
			return nil, fmt.Errorf("%w: tournament is %s", models.ErrTournamentNotOpen, t.Status)
		}
		var events []Event
		for len(t.WaitingList) > 0 && t.OpenSlots() != 0 {
			next := t.WaitingList[0]
			t.WaitingList = t.WaitingList[1:]
			t.Players = append(t.Players, models.TournamentPlayer{
				PlayerID:     next.PlayerID,
				Name:         next.Name,
				Status:       models.PlayerApplied,
				RegisteredAt: now,
			})
			events = append(events, Event{Name: EventPlayerRegistered, TournamentID: t.ID, Payload: map[string]interface{}{"player_id": next.PlayerID, "promoted": true}})
		}
		return events, nil
	})
}

func (s *tournamentService) GenerateGroups(ctx context.Context, tournamentID string) (*models.Tournament, error) {
	return s.mutate(ctx, tournamentID, "generate groups", func(ctx context.Context, repos repositories.Repos, t *models.Tournament, now time.Time) ([]Event, error) {
		if !t.Settings.Format.HasGroups() {
			return nil, ErrFormatHasNoGroups
		}
		if len(t.Groups) > 0 || t.Status != models.TournamentPending {
			return nil, fmt.Errorf("%w: groups for tournament %s", models.ErrStageAlreadyGenerated, t.ID)
		}

		generated, err := brackets.BuildGroups(t.CheckedInPlayers(), t.Settings.GroupSize, t.Settings.Boards)
		if err != nil {
			return nil, err
		}
		if err := models.TransitionTournament(t, models.TournamentGroupStage, false); err != nil {
			return nil, err
		}

		t.Groups = make([]models.Group, 0, len(generated))
		for gi, gg := range generated {
			t.Groups = append(t.Groups, gg.Group)
			groupID := gg.Group.ID
			for _, pid := range gg.Group.PlayerIDs {
				p, _ := t.Player(pid)
				gid := groupID
				p.GroupID = &gid
				p.GroupStanding = nil
				p.Status = models.PlayerPlaying
			}
			for _, pairing := range gg.Pairings {
				m := newMatch(t, models.MatchTypeGroup, pairing.Player1ID, pairing.Player2ID, gg.Group.BoardNumber, now)
				gid := groupID
				m.GroupID = &gid
				m.Sequence = pairing.Order*len(generated) + gi
				if err := repos.Matches.Create(ctx, m); err != nil {
					return nil, fmt.Errorf("failed to create group match: %w", err)
				}
			}
		}
		return []Event{{Name: EventGroupsGenerated, TournamentID: t.ID, Payload: t.Groups}}, nil
	})
}

// FinishGroupStage ranks every group. A group-only tournament finishes here;
// otherwise the standings feed knockout seeding.
func (s *tournamentService) FinishGroupStage(ctx context.Context, tournamentID string) (*models.Tournament, error) {
	return s.mutate(ctx, tournamentID, "finish group stage", func(ctx context.Context, repos repositories.Repos, t *models.Tournament, now time.Time) ([]Event, error) {
		if t.Status != models.TournamentGroupStage {
			return nil, fmt.Errorf("%w: tournament is %s", ErrWrongStage, t.Status)
		}
		matches, err := repos.Matches.ListByTournament(ctx, t.ID, repositories.ListMatchesFilter{})
		if err != nil {
			return nil, err
		}
		if err := rankGroups(t, matches); err != nil {
			return nil, err
		}
		if err := lockGroupMatches(ctx, repos, matches); err != nil {
			return nil, err
		}
		events := []Event{{Name: EventGroupStageFinished, TournamentID: t.ID}}
		if t.Settings.Format.HasKnockout() {
			return events, nil
		}

		ranking, err := crossGroupRanking(t, matches, models.NewIDSet())
		if err != nil {
			return nil, err
		}
		if len(ranking) == 0 {
			return nil, models.ErrNotEnoughQualifiers
		}
		finished, err := s.finishTournament(ctx, repos, t, ranking[0].PlayerID, now)
		if err != nil {
			return nil, err
		}
		return append(events, finished...), nil
	})
}

// rankGroups writes each player's group rank. Every group match must be
// finished.
func rankGroups(t *models.Tournament, matches []*models.Match) error {
	for _, m := range matches {
		if m.Type == models.MatchTypeGroup && m.Status != models.MatchFinished {
			return fmt.Errorf("%w: match %s is %s", ErrGroupMatchesUnfinished, m.ID, m.Status)
		}
	}
	for _, g := range t.Groups {
		standings, err := brackets.ComputeGroupStandings(g, groupMatches(matches, g.ID))
		if err != nil {
			return err
		}
		for _, row := range standings {
			p, ok := t.Player(row.PlayerID)
			if !ok {
				return fmt.Errorf("%w: group %s lists unknown player %s", models.ErrInvariantViolation, g.ID, row.PlayerID)
			}
			rank := row.Rank
			p.GroupStanding = &rank
		}
	}
	return nil
}

// lockGroupMatches rewrites every group match the stage was closed from. A
// group result changed concurrently then fails this transaction's commit
// instead of leaving the ranking built on a result that no longer exists.
func lockGroupMatches(ctx context.Context, repos repositories.Repos, matches []*models.Match) error {
	for _, m := range matches {
		if m.Type != models.MatchTypeGroup {
			continue
		}
		if err := repos.Matches.Update(ctx, m); err != nil {
			return err
		}
	}
	return nil
}

func standingsComplete(t *models.Tournament) bool {
	for _, p := range t.Players {
		if p.GroupID != nil && p.GroupStanding == nil {
			return false
		}
	}
	return true
}

func (s *tournamentService) GenerateKnockout(ctx context.Context, tournamentID string) (*models.Tournament, error) {
	return s.generateKnockout(ctx, tournamentID, nil)
}

func (s *tournamentService) SubmitManualBracket(ctx context.Context, tournamentID string, pairs []brackets.ManualPair) (*models.Tournament, error) {
	if len(pairs) == 0 {
		return nil, fmt.Errorf("%w: manual bracket has no pairs", models.ErrValidation)
	}
	return s.generateKnockout(ctx, tournamentID, pairs)
}

func (s *tournamentService) generateKnockout(ctx context.Context, tournamentID string, manual []brackets.ManualPair) (*models.Tournament, error) {
	return s.mutate(ctx, tournamentID, "generate knockout", func(ctx context.Context, repos repositories.Repos, t *models.Tournament, now time.Time) ([]Event, error) {
		if !t.Settings.Format.HasKnockout() {
			return nil, ErrFormatHasNoKnockout
		}
		if len(t.Knockout) > 0 {
			return nil, fmt.Errorf("%w: round 0 of tournament %s", models.ErrRoundAlreadyGenerated, t.ID)
		}
		switch {
		case manual == nil && t.Settings.KnockoutMethod == models.KnockoutManual:
			return nil, ErrManualBracketRequired
		case manual != nil && t.Settings.KnockoutMethod != models.KnockoutManual:
			return nil, ErrAutomaticBracket
		}
		expected := models.TournamentGroupStage
		if t.Settings.Format == models.FormatKnockoutOnly {
			expected = models.TournamentPending
		}
		if t.Status != expected {
			return nil, fmt.Errorf("%w: tournament is %s", models.ErrInvalidStatusTransition, t.Status)
		}

		if t.Settings.Format.HasGroups() && !standingsComplete(t) {
			matches, err := repos.Matches.ListByTournament(ctx, t.ID, repositories.ListMatchesFilter{})
			if err != nil {
				return nil, err
			}
			if err := rankGroups(t, matches); err != nil {
				return nil, err
			}
			if err := lockGroupMatches(ctx, repos, matches); err != nil {
				return nil, err
			}
		}

		seeder, err := brackets.SeederFor(t.Settings.KnockoutMethod)
		if err != nil {
			return nil, err
		}
		round, err := seeder.FirstRound(ctx, brackets.SeedParams{Tournament: t, ManualPairs: manual})
		if err != nil {
			return nil, err
		}
		if err := models.TransitionTournament(t, models.TournamentKnockout, false); err != nil {
			return nil, err
		}

		entrants := models.NewIDSet()
		for _, pair := range round.Pairs {
			for _, id := range pairPlayers(pair) {
				entrants.Add(id)
			}
		}
		for i := range t.Players {
			p := &t.Players[i]
			switch {
			case entrants.Has(p.PlayerID):
				p.Status = models.PlayerPlaying
			case p.Status == models.PlayerCheckedIn || p.Status == models.PlayerPlaying:
				p.Status = models.PlayerEliminated
			}
		}

		t.Knockout = []models.KnockoutRound{round}
		if err := createRoundMatches(ctx, repos, t, &t.Knockout[0], now); err != nil {
			return nil, err
		}
		s.logger.InfoContext(ctx, "knockout generated",
			slog.String("tournament_id", t.ID),
			slog.String("seeder", seeder.GetName()),
			slog.Int("entrants", len(entrants)),
			slog.Int("total_rounds", brackets.TotalRounds(len(entrants))))
		return []Event{{Name: EventKnockoutGenerated, TournamentID: t.ID, Payload: t.Knockout[0]}}, nil
	})
}

func (s *tournamentService) AdvanceKnockout(ctx context.Context, tournamentID string, currentRound int) (*models.Tournament, error) {
	return s.mutate(ctx, tournamentID, "advance knockout", func(ctx context.Context, repos repositories.Repos, t *models.Tournament, now time.Time) ([]Event, error) {
		if t.Status != models.TournamentKnockout {
			if t.Status == models.TournamentFinished {
				return nil, fmt.Errorf("%w: tournament %s is already decided", models.ErrRoundAlreadyGenerated, t.ID)
			}
			return nil, fmt.Errorf("%w: tournament is %s", ErrWrongStage, t.Status)
		}
		var settled []*models.Match
		if currentRound >= 0 && currentRound == len(t.Knockout)-1 {
			matches, err := repos.Matches.ListByTournament(ctx, t.ID, repositories.ListMatchesFilter{Round: &currentRound})
			if err != nil {
				return nil, err
			}
			settled = settleRound(t, currentRound, matches)
		}
		result, err := brackets.AdvanceRound(t.Knockout, currentRound)
		if err != nil {
			return nil, err
		}
		// The round is built from these results, so an undo racing this
		// transaction must lose on the match version.
		for _, m := range settled {
			if err := repos.Matches.Update(ctx, m); err != nil {
				return nil, err
			}
		}
		if result.Finished {
			return s.finishTournament(ctx, repos, t, result.WinnerID, now)
		}

		t.Knockout = append(t.Knockout, *result.Next)
		round := &t.Knockout[len(t.Knockout)-1]
		if err := createRoundMatches(ctx, repos, t, round, now); err != nil {
			return nil, err
		}
		return []Event{{Name: EventRoundGenerated, TournamentID: t.ID, Payload: *round}}, nil
	})
}

// CancelKnockout drops the bracket and its matches while none has started,
// returning the tournament to the stage before the knockout.
func (s *tournamentService) CancelKnockout(ctx context.Context, tournamentID string) (*models.Tournament, error) {
	return s.mutate(ctx, tournamentID, "cancel knockout", func(ctx context.Context, repos repositories.Repos, t *models.Tournament, now time.Time) ([]Event, error) {
		if t.Status != models.TournamentKnockout {
			return nil, fmt.Errorf("%w: tournament is %s", ErrWrongStage, t.Status)
		}
		knockout := models.MatchTypeKnockout
		matches, err := repos.Matches.ListByTournament(ctx, t.ID, repositories.ListMatchesFilter{Type: &knockout})
		if err != nil {
			return nil, err
		}
		for _, m := range matches {
			if m.Status != models.MatchPending {
				return nil, fmt.Errorf("%w: match %s is %s", models.ErrKnockoutStarted, m.ID, m.Status)
			}
		}
		for _, m := range matches {
			if err := repos.Matches.Delete(ctx, m); err != nil {
				return nil, err
			}
		}

		previous := models.TournamentGroupStage
		restore := models.PlayerPlaying
		if !t.Settings.Format.HasGroups() {
			previous = models.TournamentPending
			restore = models.PlayerCheckedIn
		}
		if err := models.TransitionTournament(t, previous, true); err != nil {
			return nil, err
		}
		for i := range t.Players {
			p := &t.Players[i]
			if p.Status == models.PlayerPlaying || p.Status == models.PlayerEliminated {
				p.Status = restore
			}
		}
		t.Knockout = []models.KnockoutRound{}
		return []Event{{Name: EventKnockoutCancelled, TournamentID: t.ID}}, nil
	})
}

func (s *tournamentService) CancelTournament(ctx context.Context, tournamentID string) (*models.Tournament, error) {
	return s.mutate(ctx, tournamentID, "cancel tournament", func(ctx context.Context, repos repositories.Repos, t *models.Tournament, now time.Time) ([]Event, error) {
		if err := models.TransitionTournament(t, models.TournamentCancelled, false); err != nil {
			return nil, err
		}
		return []Event{{Name: EventTournamentCanceled, TournamentID: t.ID}}, nil
	})
}

func (s *tournamentService) RecordMatchResult(ctx context.Context, repos repositories.Repos, m *models.Match) ([]Event, error) {
	t, err := repos.Tournaments.GetByID(ctx, m.TournamentID)
	if err != nil {
		return nil, err
	}
	if !t.Status.Active() {
		return nil, fmt.Errorf("%w: tournament %s is %s", ErrTournamentNotActive, t.ID, t.Status)
	}

	if m.Type == models.MatchTypeGroup {
		if t.Status != models.TournamentGroupStage {
			return nil, fmt.Errorf("%w: group matches are closed once the tournament is %s", models.ErrStageAlreadyGenerated, t.Status)
		}
		if err := checkGroupMembers(t, m); err != nil {
			return nil, err
		}
		// A changed group result invalidates ranks written by FinishGroupStage.
		stale := false
		for i := range t.Players {
			if t.Players[i].GroupStanding != nil && m.GroupID != nil && t.Players[i].GroupID != nil && models.SameID(t.Players[i].GroupID, m.GroupID) {
				t.Players[i].GroupStanding = nil
				stale = true
			}
		}
		if !stale {
			return nil, nil
		}
		t.UpdatedAt = s.clock.Now()
		return nil, repos.Tournaments.Update(ctx, t)
	}

	if t.Status != models.TournamentKnockout {
		return nil, fmt.Errorf("%w: tournament is %s", ErrWrongStage, t.Status)
	}
	if m.Round < 0 || m.Round >= len(t.Knockout) || m.PairIndex < 0 || m.PairIndex >= len(t.Knockout[m.Round].Pairs) {
		return nil, fmt.Errorf("%w: match %s points at round %d pair %d", models.ErrInvalidPair, m.ID, m.Round, m.PairIndex)
	}
	if m.Round < len(t.Knockout)-1 {
		return nil, fmt.Errorf("%w: round %d already built from this result", models.ErrRoundAlreadyGenerated, m.Round+1)
	}
	round := &t.Knockout[m.Round]
	pair := &round.Pairs[m.PairIndex]
	if pair.MatchID == nil || !models.SameID(*pair.MatchID, m.ID) {
		return nil, fmt.Errorf("%w: pair %d of round %d is not played as match %s", models.ErrInvalidPair, m.PairIndex, m.Round, m.ID)
	}

	changed, err := syncPairPlayers(t, round, pair, m)
	if err != nil {
		return nil, err
	}

	// Pair results stay on the match documents until
	// AdvanceKnockout settles them, so scorers on different matches never
	// write the tournament. Only the final decides it here.
	now := s.clock.Now()
	var events []Event
	if len(round.Pairs) == 1 && m.Status == models.MatchFinished && m.WinnerID != nil {
		settleRound(t, m.Round, []*models.Match{m})
		finished, err := s.finishTournament(ctx, repos, t, models.CanonicalID(m.WinnerID), now)
		if err != nil {
			return nil, err
		}
		events = append(events, finished...)
		changed = true
	}

	if !changed {
		return events, nil
	}
	t.UpdatedAt = now
	if err := repos.Tournaments.Update(ctx, t); err != nil {
		return nil, err
	}
	return events, nil
}

// settleRound copies the winners of finished knockout matches onto their
// pairs and eliminates the losers. It returns the matches it applied.
func settleRound(t *models.Tournament, roundIndex int, matches []*models.Match) []*models.Match {
	round := &t.Knockout[roundIndex]
	settled := make([]*models.Match, 0, len(matches))
	for _, m := range matches {
		if m.Type != models.MatchTypeKnockout || m.Round != roundIndex || m.Status != models.MatchFinished || m.WinnerID == nil {
			continue
		}
		if m.PairIndex < 0 || m.PairIndex >= len(round.Pairs) {
			continue
		}
		pair := &round.Pairs[m.PairIndex]
		if pair.Decided() || pair.MatchID == nil || !models.SameID(*pair.MatchID, m.ID) {
			continue
		}
		winner := models.CanonicalID(m.WinnerID)
		pair.WinnerID = &winner
		if loser, ok := m.LoserID(); ok {
			if p, ok := t.Player(loser); ok {
				p.Status = models.PlayerEliminated
			}
		}
		settled = append(settled, m)
	}
	return settled
}

func checkRegistered(t *models.Tournament, m *models.Match) error {
	for _, id := range []string{m.Player1.PlayerID, m.Player2.PlayerID} {
		if _, ok := t.Player(id); !ok {
			return fmt.Errorf("%w: %s is not registered in tournament %s", models.ErrUnknownPlayer, id, t.ID)
		}
	}
	return nil
}

// checkGroupMembers keeps a group match inside its group; standings reject
// any result with an outsider.
func checkGroupMembers(t *models.Tournament, m *models.Match) error {
	if err := checkRegistered(t, m); err != nil {
		return err
	}
	if m.GroupID == nil {
		return fmt.Errorf("%w: group match %s has no group", models.ErrInvariantViolation, m.ID)
	}
	for _, id := range []string{m.Player1.PlayerID, m.Player2.PlayerID} {
		p, _ := t.Player(id)
		if p.GroupID == nil || !models.SameID(*p.GroupID, *m.GroupID) {
			return fmt.Errorf("%w: %s is not in group %s", ErrPlayerOutsideGroup, id, *m.GroupID)
		}
	}
	return nil
}

// syncPairPlayers carries a player reassignment on a knockout match over to
// its bracket pair. Replacements must still be playing and free in the round.
func syncPairPlayers(t *models.Tournament, round *models.KnockoutRound, pair *models.KnockoutPair, m *models.Match) (bool, error) {
	p1, p2 := models.CanonicalID(m.Player1.PlayerID), models.CanonicalID(m.Player2.PlayerID)
	if models.SameID(pair.Player1ID, p1) && pair.Player2ID != nil && models.SameID(*pair.Player2ID, p2) {
		return false, nil
	}
	if err := checkRegistered(t, m); err != nil {
		return false, err
	}
	for _, id := range []string{p1, p2} {
		if pair.Has(id) {
			continue
		}
		if p, _ := t.Player(id); p.Status != models.PlayerPlaying {
			return false, fmt.Errorf("%w: %s is %s", ErrPlayerNotInBracket, id, p.Status)
		}
	}
	for i, other := range round.Pairs {
		if i == m.PairIndex {
			continue
		}
		if other.Has(p1) || other.Has(p2) {
			return false, fmt.Errorf("%w: round %d", models.ErrDuplicateBracketPlayer, round.Index)
		}
	}
	pair.Player1ID = p1
	pair.Player2ID = &p2
	return true, nil
}

// finishTournament closes the tournament with winnerID and, when it belongs
// to a league, books the league points in the same transaction.
func (s *tournamentService) finishTournament(ctx context.Context, repos repositories.Repos, t *models.Tournament, winnerID string, now time.Time) ([]Event, error) {
	if err := models.TransitionTournament(t, models.TournamentFinished, false); err != nil {
		return nil, err
	}
	winner := models.CanonicalID(winnerID)
	t.WinnerID = &winner
	finishedAt := now
	t.FinishedAt = &finishedAt
	events := []Event{{Name: EventTournamentFinished, TournamentID: t.ID, Payload: map[string]string{"winner_id": winner}}}

	if t.LeagueID == nil {
		return events, nil
	}
	matches, err := repos.Matches.ListByTournament(ctx, t.ID, repositories.ListMatchesFilter{})
	if err != nil {
		return nil, err
	}
	placements, err := FinalPlacements(t, matches)
	if err != nil {
		return nil, err
	}
	l, err := repos.Leagues.GetByID(ctx, *t.LeagueID)
	if err != nil {
		return nil, fmt.Errorf("failed to load league %s: %w", *t.LeagueID, err)
	}
	awarded, err := applyLeaguePoints(l, t.ID, placements, now)
	if err != nil {
		return nil, err
	}
	l.UpdatedAt = now
	if err := repos.Leagues.Update(ctx, l); err != nil {
		return nil, err
	}
	return append(events, Event{Name: EventPointsApplied, TournamentID: t.ID, LeagueID: l.ID, Payload: awarded}), nil
}

// mutate runs fn against a freshly loaded tournament in one transaction and
// saves the tournament with a conditional write. Events are published only
// after commit.
func (s *tournamentService) mutate(ctx context.Context, tournamentID, op string, fn tournamentMutation) (*models.Tournament, error) {
	id := models.CanonicalID(tournamentID)
	now := s.clock.Now()
	var (
		saved  *models.Tournament
		events []Event
	)
	err := s.store.WithinTx(ctx, func(ctx context.Context, repos repositories.Repos) error {
		t, err := repos.Tournaments.GetByID(ctx, id)
		if err != nil {
			return err
		}
		evs, err := fn(ctx, repos, t, now)
		if err != nil {
			return err
		}
		t.UpdatedAt = now
		if err := repos.Tournaments.Update(ctx, t); err != nil {
			return err
		}
		saved, events = t, evs
		return nil
	})
	if errors.Is(err, models.ErrVersionConflict) {
		err = s.explainConflict(ctx, id, fn, err)
	}
	if err != nil {
		s.logger.WarnContext(ctx, "tournament operation rejected",
			slog.String("op", op),
			slog.String("tournament_id", id),
			slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.logger.InfoContext(ctx, "tournament updated",
		slog.String("op", op),
		slog.String("tournament_id", saved.ID),
		slog.String("status", string(saved.Status)),
		slog.Int("version", saved.Version))
	s.publish(ctx, now, events)
	if saved.Status == models.TournamentFinished && hasEvent(events, EventTournamentFinished) {
		s.archive(ctx, saved)
	}
	return saved, nil
}

// explainConflict replays a mutation that lost an optimistic race against
// the current state, without saving, so the caller learns the precise reason
// (for example that the round now already exists).
func (s *tournamentService) explainConflict(ctx context.Context, id string, fn tournamentMutation, conflict error) error {
	return replayConflict(ctx, s.store, conflict, func(ctx context.Context, repos repositories.Repos) error {
		t, err := repos.Tournaments.GetByID(ctx, id)
		if err != nil {
			return err
		}
		_, err = fn(ctx, repos, t, s.clock.Now())
		return err
	})
}

func (s *tournamentService) publish(ctx context.Context, now time.Time, events []Event) {
	for _, e := range events {
		if e.OccurredAt.IsZero() {
			e.OccurredAt = now
		}
		s.notifier.Publish(ctx, e)
	}
}

func (s *tournamentService) archive(ctx context.Context, t *models.Tournament) {
	if s.archiver == nil {
		return
	}
	if err := archiveResults(ctx, s.store.Repos(), s.archiver, t); err != nil {
		s.logger.ErrorContext(ctx, "failed to archive tournament results",
			slog.String("tournament_id", t.ID),
			slog.Any("error", err))
	}
}

func archiveResults(ctx context.Context, repos repositories.Repos, archiver ResultsArchiver, t *models.Tournament) error {
	matches, err := repos.Matches.ListByTournament(ctx, t.ID, repositories.ListMatchesFilter{})
	if err != nil {
		return err
	}
	placements, err := FinalPlacements(t, matches)
	if err != nil {
		return err
	}
	return archiver.ArchiveResults(ctx, TournamentResults{Tournament: t, Placements: placements, Matches: matches})
}

func hasEvent(events []Event, name string) bool {
	for _, e := range events {
		if e.Name == name {
			return true
		}
	}
	return false
}

func waitingIndex(t *models.Tournament, playerID string) int {
	for i, w := range t.WaitingList {
		if models.SameID(w.PlayerID, playerID) {
			return i
		}
	}
	return -1
}

func newMatch(t *models.Tournament, typ models.MatchType, player1, player2 string, board int, now time.Time) *models.Match {
	return &models.Match{
		ID:            models.NewID(),
		TournamentID:  t.ID,
		Type:          typ,
		BoardNumber:   board,
		LegsToWin:     t.Settings.LegsPerMatch,
		StartingScore: t.Settings.StartingScore,
		DoubleOut:     t.Settings.DoubleOut,
		DartsPerVisit: t.Settings.DartsPerVisit,
		Player1:       models.MatchPlayer{PlayerID: models.CanonicalID(player1)},
		Player2:       models.MatchPlayer{PlayerID: models.CanonicalID(player2)},
		Status:        models.MatchPending,
		Legs:          []models.Leg{},
		CreatedAt:     now,
	}
}

// createRoundMatches creates a pending match for every played pair of the
// round. Byes advance without a match. Boards rotate over the configured list.
func createRoundMatches(ctx context.Context, repos repositories.Repos, t *models.Tournament, round *models.KnockoutRound, now time.Time) error {
	boards := t.Settings.Boards
	if len(boards) == 0 {
		boards = []int{1}
	}
	played := 0
	for i := range round.Pairs {
		pair := &round.Pairs[i]
		if pair.IsBye() || pair.MatchID != nil {
			continue
		}
		m := newMatch(t, models.MatchTypeKnockout, pair.Player1ID, *pair.Player2ID, boards[played%len(boards)], now)
		m.Round = round.Index
		m.PairIndex = i
		m.Sequence = (round.Index+1)*100000 + i
		if err := repos.Matches.Create(ctx, m); err != nil {
			return fmt.Errorf("failed to create knockout match: %w", err)
		}
		matchID := m.ID
		pair.MatchID = &matchID
		played++
	}
	return nil
}
