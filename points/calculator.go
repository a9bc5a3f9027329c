// Package points converts a finished tournament's final placements into
// league points under one of a closed set of named formulas.
package points

import (
	"strings"

	"github.com/Dosada05/darts-tournament-system/models"
)

type SystemID string

const (
	SystemPlatform       SystemID = "platform"
	SystemRemizChristmas SystemID = "remiz_christmas"
	SystemOnTour         SystemID = "ontour"
	SystemGoldfisch      SystemID = "goldfisch"
)

// Systems lists every supported point system.
func Systems() []SystemID {
	return []SystemID{SystemPlatform, SystemRemizChristmas, SystemOnTour, SystemGoldfisch}
}

// Placement is one player's final result in a tournament. Place is 1-based
// and tied players share it (both semi-final losers are 3rd).
type Placement struct {
	PlayerID  string `json:"player_id"`
	Place     int    `json:"place"`
	GroupRank int    `json:"group_rank,omitempty"`
	Qualified bool   `json:"qualified"`
}

type Calculator interface {
	Compute(standings []Placement) map[string]int

	GetName() SystemID
}

// Normalize maps a stored or user supplied identifier onto a known system.
// Unknown and legacy identifiers fall back to platform.
func Normalize(raw string) SystemID {
	id := strings.ToLower(strings.TrimSpace(raw))
	id = strings.NewReplacer("-", "_", " ", "_").Replace(id)
	switch id {
	case "remiz_christmas", "remizchristmas", "christmas":
		return SystemRemizChristmas
	case "ontour", "on_tour":
		return SystemOnTour
	case "goldfisch":
		return SystemGoldfisch
	}
	return SystemPlatform
}

// Lookup returns the calculator for id after normalizing it.
func Lookup(id SystemID) Calculator {
	switch Normalize(string(id)) {
	case SystemRemizChristmas:
		return RemizChristmas{}
	case SystemOnTour:
		return OnTour{}
	case SystemGoldfisch:
		return Goldfisch{}
	default:
		return DefaultPlatform()
	}
}

// place returns p's effective place; a missing place counts as last.
func place(p Placement, participants int) int {
	if p.Place < 1 {
		return participants
	}
	return p.Place
}

func compute(standings []Placement, score func(p Placement, place int) int) map[string]int {
	out := make(map[string]int, len(standings))
	for _, p := range standings {
		id := models.CanonicalID(p.PlayerID)
		if id == "" {
			continue
		}
		out[id] = score(p, place(p, len(standings)))
	}
	return out
}
