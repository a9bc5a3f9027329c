package brackets

import (
	"context"
	"fmt"

	"github.com/Dosada05/darts-tournament-system/models"
)

type SeedParams struct {
	Tournament  *models.Tournament
	ManualPairs []ManualPair
}

// Seeder produces the first knockout round for a tournament.
type Seeder interface {
	FirstRound(ctx context.Context, params SeedParams) (models.KnockoutRound, error)

	GetName() string
}

type AutomaticSeeder struct{}

func NewAutomaticSeeder() Seeder {
	return &AutomaticSeeder{}
}

func (s *AutomaticSeeder) GetName() string {
	return "Automatic"
}

func (s *AutomaticSeeder) FirstRound(ctx context.Context, params SeedParams) (models.KnockoutRound, error) {
	qualified, err := QualifiedPlayers(params.Tournament)
	if err != nil {
		return models.KnockoutRound{}, err
	}
	return GenerateRound(0, qualified)
}

type ManualSeeder struct{}

func NewManualSeeder() Seeder {
	return &ManualSeeder{}
}

func (s *ManualSeeder) GetName() string {
	return "Manual"
}

func (s *ManualSeeder) FirstRound(ctx context.Context, params SeedParams) (models.KnockoutRound, error) {
	if len(params.ManualPairs) == 0 {
		return models.KnockoutRound{}, fmt.Errorf("%w: manual knockout requires a submitted bracket", models.ErrValidation)
	}
	qualified, err := QualifiedPlayers(params.Tournament)
	if err != nil {
		return models.KnockoutRound{}, err
	}
	return ValidateManualBracket(params.ManualPairs, qualified)
}

// SeederFor picks the seeding strategy configured on the tournament.
func SeederFor(method models.KnockoutMethod) (Seeder, error) {
	switch method {
	case models.KnockoutAutomatic, "":
		return NewAutomaticSeeder(), nil
	case models.KnockoutManual:
		return NewManualSeeder(), nil
	default:
		return nil, fmt.Errorf("%w: unsupported knockout method '%s'", models.ErrInvalidSettings, method)
	}
}

// QualifiedPlayers returns the seeded knockout entrants. Knockout-only
// tournaments seed every checked-in player in registration order; otherwise the
// group qualifiers are used.
func QualifiedPlayers(t *models.Tournament) ([]string, error) {
	if t.Settings.Format == models.FormatKnockoutOnly {
		players := t.CheckedInPlayers()
		if len(players) < 2 {
			return nil, models.ErrNotEnoughQualifiers
		}
		return players, nil
	}
	advancing, err := ComputeAdvancingPlayers(t.Groups, t.Players, t.Settings.QualifiersPerGroup)
	if err != nil {
		return nil, err
	}
	if len(advancing) < 2 {
		return nil, models.ErrNotEnoughQualifiers
	}
	return advancing, nil
}
