package brackets

import (
	"fmt"
	"sort"

	"github.com/Dosada05/darts-tournament-system/models"
)

type GroupStanding struct {
	PlayerID    string  `json:"player_id"`
	Played      int     `json:"played"`
	Wins        int     `json:"wins"`
	Losses      int     `json:"losses"`
	LegsFor     int     `json:"legs_for"`
	LegsAgainst int     `json:"legs_against"`
	Average     float64 `json:"average"`
	Rank        int     `json:"rank"`

	dartsThrown int
	scored      int
	visit       int
	seed        int
}

func (s GroupStanding) LegDifference() int { return s.LegsFor - s.LegsAgainst }

// ComputeGroupStandings ranks a group by match wins, leg difference, legs won,
// three-dart average and finally registration order. Only finished matches
// count. Matches that belong to another group are rejected.
func ComputeGroupStandings(group models.Group, matches []*models.Match) ([]GroupStanding, error) {
	rows := make(map[string]*GroupStanding, len(group.PlayerIDs))
	for i, p := range group.PlayerIDs {
		id := models.CanonicalID(p)
		rows[id] = &GroupStanding{PlayerID: id, seed: i, visit: models.DefaultDartsPerVisit}
	}

	for _, m := range matches {
		if m == nil || m.Type != models.MatchTypeGroup {
			continue
		}
		if m.GroupID == nil || !models.SameID(*m.GroupID, group.ID) {
			return nil, fmt.Errorf("%w: match %s does not belong to group %s", models.ErrInvalidPair, m.ID, group.ID)
		}
		if m.Status != models.MatchFinished || m.WinnerID == nil {
			continue
		}
		p1, ok1 := rows[models.CanonicalID(m.Player1.PlayerID)]
		p2, ok2 := rows[models.CanonicalID(m.Player2.PlayerID)]
		if !ok1 || !ok2 {
			return nil, fmt.Errorf("%w: match %s has a player outside group %s", models.ErrUnknownPlayer, m.ID, group.ID)
		}
		accumulate(p1, m, true)
		accumulate(p2, m, false)
		if models.SameID(*m.WinnerID, p1.PlayerID) {
			p1.Wins++
			p2.Losses++
		} else {
			p2.Wins++
			p1.Losses++
		}
	}

	out := make([]GroupStanding, 0, len(rows))
	for _, r := range rows {
		if r.dartsThrown > 0 {
			r.Average = float64(r.scored) / float64(r.dartsThrown) * float64(r.visit)
		}
		out = append(out, *r)
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Wins != b.Wins {
			return a.Wins > b.Wins
		}
		if a.LegDifference() != b.LegDifference() {
			return a.LegDifference() > b.LegDifference()
		}
		if a.LegsFor != b.LegsFor {
			return a.LegsFor > b.LegsFor
		}
		if a.Average != b.Average {
			return a.Average > b.Average
		}
		return a.seed < b.seed
	})
	for i := range out {
		out[i].Rank = i + 1
	}
	return out, nil
}

func accumulate(row *GroupStanding, m *models.Match, isPlayer1 bool) {
	row.Played++
	if m.DartsPerVisit > 0 {
		row.visit = m.DartsPerVisit
	}
	side := m.Player2
	if isPlayer1 {
		side = m.Player1
	}
	row.LegsFor += side.LegsWon
	row.LegsAgainst += side.LegsLost
	for _, leg := range m.Legs {
		throws := leg.Player2Throws
		if isPlayer1 {
			throws = leg.Player1Throws
		}
		for _, t := range throws {
			row.scored += t.Score
			row.dartsThrown += t.DartsUsed
		}
	}
}
