package scoring

import (
	"fmt"

	"github.com/Dosada05/darts-tournament-system/models"
)

type legRules struct {
	startingScore int
	doubleOut     bool
	dartsPerVisit int
}

func rulesFor(m *models.Match) legRules {
	r := legRules{startingScore: m.StartingScore, doubleOut: m.DoubleOut, dartsPerVisit: m.DartsPerVisit}
	if r.startingScore <= 0 {
		r.startingScore = models.DefaultStartingScore
	}
	if r.dartsPerVisit <= 0 {
		r.dartsPerVisit = models.DefaultDartsPerVisit
	}
	return r
}

func (r legRules) validateThrows(throws []models.Throw) error {
	maxScore := MaxVisitScore * r.dartsPerVisit / models.DefaultDartsPerVisit
	for i, t := range throws {
		if t.Score < 0 || t.Score > maxScore {
			return fmt.Errorf("%w: visit %d scored %d", models.ErrInvalidThrow, i+1, t.Score)
		}
		if t.DartsUsed < 1 || t.DartsUsed > r.dartsPerVisit {
			return fmt.Errorf("%w: visit %d used %d darts", models.ErrInvalidThrow, i+1, t.DartsUsed)
		}
	}
	return nil
}

// lowestLiveScore is the smallest remaining score a player can still finish
// from. Under double-out a single point left is a bust.
func (r legRules) lowestLiveScore() int {
	if r.doubleOut {
		return 2
	}
	return 1
}

// validateWinner checks that the throws take the winner from the starting
// score to exactly zero, with only the final visit flagged as the checkout.
func (r legRules) validateWinner(throws []models.Throw) error {
	if len(throws) == 0 {
		return fmt.Errorf("%w: winner has no throws", models.ErrCheckoutInvalid)
	}
	remaining := r.startingScore
	for i, t := range throws {
		remaining -= t.Score
		if i == len(throws)-1 {
			break
		}
		if t.IsCheckout {
			return fmt.Errorf("%w: visit %d flagged as checkout before the last visit", models.ErrCheckoutInvalid, i+1)
		}
		if remaining < r.lowestLiveScore() {
			return fmt.Errorf("%w: visit %d leaves %d", models.ErrCheckoutInvalid, i+1, remaining)
		}
	}
	last := throws[len(throws)-1]
	if remaining != 0 {
		return fmt.Errorf("%w: winner finishes on %d", models.ErrCheckoutInvalid, remaining)
	}
	if !last.IsCheckout {
		return fmt.Errorf("%w: final visit is not flagged as checkout", models.ErrCheckoutInvalid)
	}
	if r.doubleOut && !last.IsDouble {
		return fmt.Errorf("%w: checkout must finish on a double", models.ErrCheckoutInvalid)
	}
	return nil
}

// validateLoser returns the loser's remaining score.
func (r legRules) validateLoser(throws []models.Throw) (int, error) {
	remaining := r.startingScore
	for i, t := range throws {
		remaining -= t.Score
		if t.IsCheckout {
			return 0, fmt.Errorf("%w: losing player visit %d flagged as checkout", models.ErrCheckoutInvalid, i+1)
		}
		if remaining < r.lowestLiveScore() {
			return 0, fmt.Errorf("%w: losing player left on %d", models.ErrCheckoutInvalid, remaining)
		}
	}
	return remaining, nil
}
