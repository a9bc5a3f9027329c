package scoring

import "github.com/Dosada05/darts-tournament-system/models"

// Average is the running average per visit: points scored divided by darts
// thrown, times the darts in a visit (three in standard play).
func Average(scored, darts, dartsPerVisit int) float64 {
	if darts == 0 {
		return 0
	}
	if dartsPerVisit <= 0 {
		dartsPerVisit = models.DefaultDartsPerVisit
	}
	return float64(scored) / float64(darts) * float64(dartsPerVisit)
}

func recomputeAverages(m *models.Match) {
	var s1, d1, s2, d2 int
	for _, leg := range m.Legs {
		for _, t := range leg.Player1Throws {
			s1 += t.Score
			d1 += t.DartsUsed
		}
		for _, t := range leg.Player2Throws {
			s2 += t.Score
			d2 += t.DartsUsed
		}
	}
	m.Player1.Average = Average(s1, d1, m.DartsPerVisit)
	m.Player2.Average = Average(s2, d2, m.DartsPerVisit)
}
