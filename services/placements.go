package services

import (
	"sort"

	"github.com/Dosada05/darts-tournament-system/brackets"
	"github.com/Dosada05/darts-tournament-system/models"
	"github.com/Dosada05/darts-tournament-system/points"
)

// FinalPlacements orders a tournament's players by final result. Knockout
// losers share a place by the round they fell in (finalist 2nd, semi-final
// losers 3rd, quarter-final losers 5th); players who did not reach the
// knockout follow, ordered by group rank and then group record.
func FinalPlacements(t *models.Tournament, matches []*models.Match) ([]points.Placement, error) {
	placements := make([]points.Placement, 0, len(t.Players))
	placed := models.NewIDSet()

	if len(t.Knockout) > 0 {
		if t.WinnerID != nil {
			placed.Add(*t.WinnerID)
			placements = append(placements, points.Placement{PlayerID: models.CanonicalID(t.WinnerID), Place: 1, Qualified: true})
		}
		for r := len(t.Knockout) - 1; r >= 0; r-- {
			round := t.Knockout[r]
			place := len(round.Pairs) + 1
			for _, pair := range round.Pairs {
				loser, ok := pairLoser(pair)
				if !ok || !placed.Add(loser) {
					continue
				}
				placements = append(placements, points.Placement{PlayerID: loser, Place: place, Qualified: true})
			}
		}
		// Entrants whose pair is still undecided, e.g. a cancelled run.
		for _, pair := range t.Knockout[0].Pairs {
			for _, id := range pairPlayers(pair) {
				if placed.Add(id) {
					placements = append(placements, points.Placement{PlayerID: id, Place: len(placements) + 1, Qualified: true})
				}
			}
		}
	}

	ranking, err := crossGroupRanking(t, matches, placed)
	if err != nil {
		return nil, err
	}
	for _, row := range ranking {
		placed.Add(row.PlayerID)
		placements = append(placements, points.Placement{
			PlayerID:  row.PlayerID,
			Place:     len(placements) + 1,
			GroupRank: row.Rank,
			Qualified: len(t.Knockout) == 0 && row.Rank <= t.Settings.QualifiersPerGroup,
		})
	}

	for i := range placements {
		if p, ok := t.Player(placements[i].PlayerID); ok && p.GroupStanding != nil && placements[i].GroupRank == 0 {
			placements[i].GroupRank = *p.GroupStanding
		}
	}
	return placements, nil
}

// crossGroupRanking merges every group's standings into one list ordered by
// group rank, then record. Players in skip are left out.
func crossGroupRanking(t *models.Tournament, matches []*models.Match, skip models.IDSet) ([]brackets.GroupStanding, error) {
	rows := make([]brackets.GroupStanding, 0, len(t.Players))
	for _, g := range t.Groups {
		standings, err := brackets.ComputeGroupStandings(g, groupMatches(matches, g.ID))
		if err != nil {
			return nil, err
		}
		for _, s := range standings {
			if !skip.Has(s.PlayerID) {
				rows = append(rows, s)
			}
		}
	}
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.Rank != b.Rank {
			return a.Rank < b.Rank
		}
		if a.Wins != b.Wins {
			return a.Wins > b.Wins
		}
		if a.LegDifference() != b.LegDifference() {
			return a.LegDifference() > b.LegDifference()
		}
		if a.LegsFor != b.LegsFor {
			return a.LegsFor > b.LegsFor
		}
		return a.Average > b.Average
	})
	return rows, nil
}

func groupMatches(matches []*models.Match, groupID string) []*models.Match {
	out := make([]*models.Match, 0)
	for _, m := range matches {
		if m.Type == models.MatchTypeGroup && m.GroupID != nil && models.SameID(*m.GroupID, groupID) {
			out = append(out, m)
		}
	}
	return out
}

func pairLoser(p models.KnockoutPair) (string, bool) {
	if p.WinnerID == nil || p.Player2ID == nil {
		return "", false
	}
	if models.SameID(*p.WinnerID, p.Player1ID) {
		return models.CanonicalID(p.Player2ID), true
	}
	return models.CanonicalID(p.Player1ID), true
}

func pairPlayers(p models.KnockoutPair) []string {
	ids := []string{models.CanonicalID(p.Player1ID)}
	if p.Player2ID != nil {
		ids = append(ids, models.CanonicalID(p.Player2ID))
	}
	return ids
}
