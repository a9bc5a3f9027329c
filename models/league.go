package models

import "time"

type PointContribution struct {
	TournamentID string `json:"tournament_id"`
	Place        int    `json:"place"`
	Points       int    `json:"points"`
}

// PointAdjustment is a manual correction. Adjustments are never merged or
// deleted; reverting one flags it so the history stays intact.
type PointAdjustment struct {
	Delta      int        `json:"delta"`
	Reason     string     `json:"reason"`
	CreatedBy  string     `json:"created_by,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	Reverted   bool       `json:"reverted"`
	RevertedAt *time.Time `json:"reverted_at,omitempty"`
}

type LeagueStanding struct {
	PlayerID      string              `json:"player_id"`
	Contributions []PointContribution `json:"contributions"`
	Adjustments   []PointAdjustment   `json:"adjustments"`
}

func (s *LeagueStanding) Points() int {
	total := 0
	for _, c := range s.Contributions {
		total += c.Points
	}
	for _, a := range s.Adjustments {
		if !a.Reverted {
			total += a.Delta
		}
	}
	return total
}

type League struct {
	ID                  string                     `json:"id"`
	ClubID              string                     `json:"club_id"`
	Name                string                     `json:"name"`
	PointSystem         string                     `json:"point_system"`
	Standings           map[string]*LeagueStanding `json:"standings"` // keyed by CanonicalID
	AttachedTournaments []string                   `json:"attached_tournaments"`
	AppliedTournaments  []string                   `json:"applied_tournaments"`
	Version             int                        `json:"version"`
	CreatedAt           time.Time                  `json:"created_at"`
	UpdatedAt           time.Time                  `json:"updated_at"`
}

// Standing returns the player's standing, creating an empty one on demand.
func (l *League) Standing(playerID string) *LeagueStanding {
	if l.Standings == nil {
		l.Standings = make(map[string]*LeagueStanding)
	}
	key := CanonicalID(playerID)
	s, ok := l.Standings[key]
	if !ok {
		s = &LeagueStanding{PlayerID: key}
		l.Standings[key] = s
	}
	return s
}
