package models

import (
	"errors"
	"fmt"
)

// Error categories. Every engine error wraps exactly one of them so callers
// can branch with errors.Is without knowing the specific failure.
var (
	ErrValidation         = errors.New("validation error")
	ErrStateConflict      = errors.New("state conflict")
	ErrNotFound           = errors.New("not found")
	ErrInvariantViolation = errors.New("invariant violation")
)

func validationError(msg string) error { return fmt.Errorf("%w: %s", ErrValidation, msg) }
func conflictError(msg string) error   { return fmt.Errorf("%w: %s", ErrStateConflict, msg) }
func notFoundError(msg string) error   { return fmt.Errorf("%w: %s", ErrNotFound, msg) }
func invariantError(msg string) error  { return fmt.Errorf("%w: %s", ErrInvariantViolation, msg) }

var (
	ErrInvalidGroupSize        = validationError("group size must be at least 2 and at least 2 players must be checked in")
	ErrInvalidRoundIndex       = validationError("round index out of range")
	ErrInvalidPair             = validationError("invalid knockout pair")
	ErrNotEnoughQualifiers     = validationError("at least 2 qualifiers are required for a knockout bracket")
	ErrInvalidBracketSize      = validationError("manual bracket size does not match the qualified player count")
	ErrUnknownPlayer           = validationError("player is not part of this match or tournament")
	ErrInvalidThrow            = validationError("throw score or dart count out of range")
	ErrInvalidSettings         = validationError("invalid tournament settings")
	ErrInvalidStatusTransition = conflictError("invalid status transition")

	ErrMatchNotPending          = conflictError("match is not pending")
	ErrMatchNotOngoing          = conflictError("match is not ongoing")
	ErrMatchFinished            = conflictError("match is already finished")
	ErrNoLegsToUndo             = conflictError("match has no legs to undo")
	ErrRoundAlreadyGenerated    = conflictError("knockout round already generated")
	ErrRoundIncomplete          = conflictError("knockout round has pairs without a winner")
	ErrStageAlreadyGenerated    = conflictError("tournament stage already generated")
	ErrVersionConflict          = conflictError("document was modified concurrently")
	ErrTournamentNotOpen        = conflictError("tournament no longer accepts registrations")
	ErrPlayerAlreadyRegistered  = conflictError("player is already registered")
	ErrKnockoutStarted          = conflictError("knockout matches already started")
	ErrTournamentAlreadyApplied = conflictError("tournament results already applied to league")
	ErrAdjustmentReverted       = conflictError("adjustment already reverted")

	ErrCheckoutInvalid        = invariantError("winning throws must reach exactly zero with a checkout")
	ErrDuplicateBracketPlayer = invariantError("player appears in more than one knockout pair")
	ErrPlayerInTwoGroups      = invariantError("player appears in more than one group")

	ErrTournamentNotFound = notFoundError("tournament not found")
	ErrMatchNotFound      = notFoundError("match not found")
	ErrLeagueNotFound     = notFoundError("league not found")
	ErrPlayerNotFound     = notFoundError("player not found")
	ErrAdjustmentNotFound = notFoundError("adjustment not found")
)
