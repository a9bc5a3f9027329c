// Package scoring drives the live state of a single match: starting it,
// recording legs, undoing the last leg and reassigning players, scorer or
// board. Every function validates first and mutates only on success, so a
// rejected call leaves the match untouched.
package scoring

import (
	"fmt"
	"time"

	"github.com/Dosada05/darts-tournament-system/models"
)

// MaxVisitScore is the highest score three darts can produce.
const MaxVisitScore = 180

type LegResult struct {
	WinnerID         string         `json:"winner_id"`
	Player1Throws    []models.Throw `json:"player1_throws"`
	Player2Throws    []models.Throw `json:"player2_throws"`
	WinnerArrowCount int            `json:"winner_arrow_count"` // darts used on the checkout visit
}

type SettingsUpdate struct {
	Player1ID   *string `json:"player1_id,omitempty"`
	Player2ID   *string `json:"player2_id,omitempty"`
	ScorerID    *string `json:"scorer_id,omitempty"`
	BoardNumber *int    `json:"board_number,omitempty"`
}

// Start moves a pending match to ongoing. legsToWin overrides the match
// setting when positive; startingPlayer defaults to player 1.
func Start(m *models.Match, legsToWin int, startingPlayer string, now time.Time) error {
	if m.Status != models.MatchPending {
		return fmt.Errorf("%w: match %s is %s", models.ErrMatchNotPending, m.ID, m.Status)
	}
	if m.Player1.PlayerID == "" || m.Player2.PlayerID == "" {
		return fmt.Errorf("%w: match %s has no opponent yet", models.ErrValidation, m.ID)
	}
	if legsToWin < 0 {
		return fmt.Errorf("%w: legs to win must be positive", models.ErrValidation)
	}
	target := m.LegsToWin
	if legsToWin > 0 {
		target = legsToWin
	}
	if target < 1 {
		return fmt.Errorf("%w: legs to win must be positive", models.ErrValidation)
	}

	starter := m.Player1.PlayerID
	if startingPlayer != "" {
		side, _, ok := m.Side(startingPlayer)
		if !ok {
			return fmt.Errorf("%w: %s", models.ErrUnknownPlayer, startingPlayer)
		}
		starter = side.PlayerID
	}

	if err := models.TransitionMatch(m, models.MatchOngoing); err != nil {
		return err
	}
	m.LegsToWin = target
	m.StartingPlayer = starter
	started := now
	m.StartedAt = &started
	return nil
}

// FinishLeg records a completed leg. It returns true when the leg decided
// the match.
func FinishLeg(m *models.Match, res LegResult, now time.Time) (bool, error) {
	if m.Status != models.MatchOngoing {
		return false, fmt.Errorf("%w: match %s is %s", models.ErrMatchNotOngoing, m.ID, m.Status)
	}
	winner, winnerIsP1, ok := m.Side(res.WinnerID)
	if !ok {
		return false, fmt.Errorf("%w: %s", models.ErrUnknownPlayer, res.WinnerID)
	}
	loser := &m.Player2
	winnerThrows, loserThrows := res.Player1Throws, res.Player2Throws
	if !winnerIsP1 {
		loser = &m.Player1
		winnerThrows, loserThrows = res.Player2Throws, res.Player1Throws
	}

	rules := rulesFor(m)
	if err := rules.validateThrows(res.Player1Throws); err != nil {
		return false, err
	}
	if err := rules.validateThrows(res.Player2Throws); err != nil {
		return false, err
	}

	checkoutDarts := res.WinnerArrowCount
	if checkoutDarts < 0 || checkoutDarts > rules.dartsPerVisit {
		return false, fmt.Errorf("%w: checkout used %d darts", models.ErrInvalidThrow, checkoutDarts)
	}
	winnerThrows = cloneThrows(winnerThrows)
	if checkoutDarts > 0 && len(winnerThrows) > 0 {
		winnerThrows[len(winnerThrows)-1].DartsUsed = checkoutDarts
	}
	if err := rules.validateWinner(winnerThrows); err != nil {
		return false, err
	}
	loserRemaining, err := rules.validateLoser(loserThrows)
	if err != nil {
		return false, err
	}

	last := winnerThrows[len(winnerThrows)-1]
	leg := models.Leg{
		WinnerID:      winner.PlayerID,
		CheckoutScore: last.Score,
		CheckoutDarts: last.DartsUsed,
		CreatedAt:     now,
	}
	if winnerIsP1 {
		leg.Player1Throws, leg.Player2Throws = winnerThrows, cloneThrows(loserThrows)
		leg.Player1Score, leg.Player2Score = 0, loserRemaining
	} else {
		leg.Player1Throws, leg.Player2Throws = cloneThrows(loserThrows), winnerThrows
		leg.Player1Score, leg.Player2Score = loserRemaining, 0
	}

	m.Legs = append(m.Legs, leg)
	winner.LegsWon++
	loser.LegsLost++
	recomputeAverages(m)

	if winner.LegsWon >= m.LegsToWin {
		if err := models.TransitionMatch(m, models.MatchFinished); err != nil {
			return false, err
		}
		winnerID := winner.PlayerID
		finished := now
		m.WinnerID = &winnerID
		m.FinishedAt = &finished
		return true, nil
	}
	return false, nil
}

// UndoLastLeg removes the most recent leg and restores the state the match
// had before that leg was recorded. A finished match goes back to ongoing.
func UndoLastLeg(m *models.Match) error {
	if len(m.Legs) == 0 {
		return fmt.Errorf("%w: match %s", models.ErrNoLegsToUndo, m.ID)
	}
	if m.Status != models.MatchOngoing && m.Status != models.MatchFinished {
		return fmt.Errorf("%w: match %s is %s", models.ErrInvalidStatusTransition, m.ID, m.Status)
	}

	leg := m.Legs[len(m.Legs)-1]
	winner, isP1, ok := m.Side(leg.WinnerID)
	if !ok {
		return fmt.Errorf("%w: leg winner %s is not in match %s", models.ErrInvariantViolation, leg.WinnerID, m.ID)
	}
	loser := &m.Player2
	if !isP1 {
		loser = &m.Player1
	}

	if m.Status == models.MatchFinished {
		if err := models.TransitionMatch(m, models.MatchOngoing); err != nil {
			return err
		}
		m.WinnerID = nil
		m.FinishedAt = nil
	}
	m.Legs = m.Legs[:len(m.Legs)-1]
	winner.LegsWon--
	loser.LegsLost--
	recomputeAverages(m)
	return nil
}

// UpdateSettings reassigns players, scorer or board. It is rejected once the
// match is finished. Replacing a player carries their recorded legs over to
// the new player.
func UpdateSettings(m *models.Match, upd SettingsUpdate) error {
	if m.Status == models.MatchFinished {
		return fmt.Errorf("%w: match %s", models.ErrMatchFinished, m.ID)
	}

	p1, p2 := m.Player1.PlayerID, m.Player2.PlayerID
	if upd.Player1ID != nil {
		p1 = models.CanonicalID(upd.Player1ID)
	}
	if upd.Player2ID != nil {
		p2 = models.CanonicalID(upd.Player2ID)
	}
	if p1 == "" || p2 == "" || models.SameID(p1, p2) {
		return fmt.Errorf("%w: a match needs two different players", models.ErrValidation)
	}
	if upd.BoardNumber != nil && *upd.BoardNumber < 0 {
		return fmt.Errorf("%w: board number must not be negative", models.ErrValidation)
	}

	replacePlayers(m, p1, p2)
	if upd.ScorerID != nil {
		if *upd.ScorerID == "" {
			m.ScorerID = nil
		} else {
			scorer := models.CanonicalID(upd.ScorerID)
			m.ScorerID = &scorer
		}
	}
	if upd.BoardNumber != nil {
		m.BoardNumber = *upd.BoardNumber
	}
	return nil
}

func replacePlayers(m *models.Match, p1, p2 string) {
	old1, old2 := m.Player1.PlayerID, m.Player2.PlayerID
	remap := func(id string) string {
		switch {
		case models.SameID(id, old1):
			return p1
		case models.SameID(id, old2):
			return p2
		}
		return id
	}
	m.Player1.PlayerID, m.Player2.PlayerID = p1, p2
	for i := range m.Legs {
		m.Legs[i].WinnerID = remap(m.Legs[i].WinnerID)
	}
	if m.StartingPlayer != "" {
		m.StartingPlayer = remap(m.StartingPlayer)
	}
}

func cloneThrows(in []models.Throw) []models.Throw {
	out := make([]models.Throw, len(in))
	copy(out, in)
	return out
}
