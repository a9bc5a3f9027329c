package models

import "fmt"

type TournamentStatus string

const (
	TournamentPending    TournamentStatus = "pending"
	TournamentGroupStage TournamentStatus = "group_stage"
	TournamentKnockout   TournamentStatus = "knockout"
	TournamentFinished   TournamentStatus = "finished"
	TournamentCancelled  TournamentStatus = "cancelled"
)

// tournamentTransitions lists every legal forward move. Reverting a bracket
// (knockout -> group_stage/pending) is only reachable through CancelKnockout,
// which passes allowRevert.
var tournamentTransitions = map[TournamentStatus][]TournamentStatus{
	TournamentPending:    {TournamentGroupStage, TournamentKnockout, TournamentCancelled},
	TournamentGroupStage: {TournamentKnockout, TournamentFinished, TournamentCancelled},
	TournamentKnockout:   {TournamentFinished, TournamentCancelled},
	TournamentFinished:   {},
	TournamentCancelled:  {},
}

var tournamentReverts = map[TournamentStatus][]TournamentStatus{
	TournamentKnockout: {TournamentGroupStage, TournamentPending},
}

func (s TournamentStatus) Valid() bool {
	_, ok := tournamentTransitions[s]
	return ok
}

// Active reports whether the tournament can still change.
func (s TournamentStatus) Active() bool {
	return s != TournamentFinished && s != TournamentCancelled
}

// TransitionTournament moves t to next or returns ErrInvalidStatusTransition.
func TransitionTournament(t *Tournament, next TournamentStatus, allowRevert bool) error {
	if containsStatus(tournamentTransitions[t.Status], next) ||
		(allowRevert && containsStatus(tournamentReverts[t.Status], next)) {
		t.Status = next
		return nil
	}
	return fmt.Errorf("%w: tournament %s -> %s", ErrInvalidStatusTransition, t.Status, next)
}

func containsStatus[S comparable](list []S, s S) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

type MatchStatus string

const (
	MatchPending  MatchStatus = "pending"
	MatchOngoing  MatchStatus = "ongoing"
	MatchFinished MatchStatus = "finished"
)

var matchTransitions = map[MatchStatus][]MatchStatus{
	MatchPending:  {MatchOngoing},
	MatchOngoing:  {MatchFinished},
	MatchFinished: {MatchOngoing}, // undo of the deciding leg
}

func (s MatchStatus) Valid() bool {
	_, ok := matchTransitions[s]
	return ok
}

// TransitionMatch moves m to next or returns ErrInvalidStatusTransition.
func TransitionMatch(m *Match, next MatchStatus) error {
	if !containsStatus(matchTransitions[m.Status], next) {
		return fmt.Errorf("%w: match %s -> %s", ErrInvalidStatusTransition, m.Status, next)
	}
	m.Status = next
	return nil
}

type PlayerStatus string

const (
	PlayerApplied    PlayerStatus = "applied"
	PlayerCheckedIn  PlayerStatus = "checked_in"
	PlayerPlaying    PlayerStatus = "playing"
	PlayerEliminated PlayerStatus = "eliminated"
)
