package services

import (
	"errors"
	"fmt"

	"github.com/Dosada05/darts-tournament-system/models"
)

// Error categories, re-exported so callers can branch on them with errors.Is.
var (
	ErrValidation         = models.ErrValidation
	ErrStateConflict      = models.ErrStateConflict
	ErrNotFound           = models.ErrNotFound
	ErrInvariantViolation = models.ErrInvariantViolation
)

var (
	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrForbiddenOperation   = errors.New("operation not allowed for the current user")

	ErrTournamentNameRequired = fmt.Errorf("%w: tournament name is required", models.ErrValidation)
	ErrClubRequired           = fmt.Errorf("%w: club is required", models.ErrValidation)
	ErrLeagueNameRequired     = fmt.Errorf("%w: league name is required", models.ErrValidation)
	ErrPlayerRequired         = fmt.Errorf("%w: player is required", models.ErrValidation)
	ErrFormatHasNoGroups      = fmt.Errorf("%w: tournament format has no group stage", models.ErrValidation)
	ErrFormatHasNoKnockout    = fmt.Errorf("%w: tournament format has no knockout stage", models.ErrValidation)
	ErrManualBracketRequired  = fmt.Errorf("%w: knockout method is manual, submit a bracket instead", models.ErrValidation)
	ErrAutomaticBracket       = fmt.Errorf("%w: knockout method is automatic, manual brackets are not accepted", models.ErrValidation)
	ErrLeagueClubMismatch     = fmt.Errorf("%w: league and tournament belong to different clubs", models.ErrValidation)
	ErrTournamentNotAttached  = fmt.Errorf("%w: tournament is not attached to this league", models.ErrValidation)
	ErrInvalidAdjustment      = fmt.Errorf("%w: adjustment needs a non-zero delta and a reason", models.ErrValidation)
	ErrPlayerOutsideGroup     = fmt.Errorf("%w: group matches are played between members of the group", models.ErrValidation)
	ErrPlayerNotInBracket     = fmt.Errorf("%w: player is no longer playing in the knockout", models.ErrValidation)

	ErrGroupMatchesUnfinished  = fmt.Errorf("%w: group stage has unfinished matches", models.ErrStateConflict)
	ErrTournamentNotFinished   = fmt.Errorf("%w: tournament is not finished", models.ErrStateConflict)
	ErrTournamentInOtherLeague = fmt.Errorf("%w: tournament already belongs to another league", models.ErrStateConflict)
	ErrTournamentNotActive     = fmt.Errorf("%w: tournament is finished or cancelled", models.ErrStateConflict)
	ErrWrongStage              = fmt.Errorf("%w: operation not allowed in the current tournament stage", models.ErrStateConflict)
)
