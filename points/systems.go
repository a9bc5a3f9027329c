package points

import "math/bits"

// Platform awards a geometric progression over the knockout depth implied by
// the final place (1st, 2nd, 3rd-4th, 5th-8th, ...), plus a winner bonus.
type Platform struct {
	Base        int
	Ratio       int
	WinnerBonus int
}

func DefaultPlatform() Platform {
	return Platform{Base: 2, Ratio: 2, WinnerBonus: 10}
}

func (Platform) GetName() SystemID { return SystemPlatform }

func (s Platform) Compute(standings []Placement) map[string]int {
	base, ratio := s.Base, s.Ratio
	if base < 1 {
		base = 1
	}
	if ratio < 1 {
		ratio = 1
	}
	levels := tier(len(standings))
	return compute(standings, func(_ Placement, place int) int {
		t := tier(place)
		if t > levels {
			t = levels
		}
		pts := base
		for i := 0; i < levels-t; i++ {
			pts *= ratio
		}
		if place == 1 {
			pts += s.WinnerBonus
		}
		return pts
	})
}

// tier is ceil(log2(place)): 1st is tier 0, 2nd tier 1, 3rd-4th tier 2.
func tier(place int) int {
	if place <= 1 {
		return 0
	}
	return bits.Len(uint(place - 1))
}

// RemizChristmas gives one point for taking part, one for surviving the
// group stage and a small bonus for the top four.
type RemizChristmas struct{}

func (RemizChristmas) GetName() SystemID { return SystemRemizChristmas }

func (RemizChristmas) Compute(standings []Placement) map[string]int {
	return compute(standings, func(p Placement, place int) int {
		pts := 1
		if p.Qualified {
			pts++
		}
		switch {
		case place == 1:
			pts += 3
		case place == 2:
			pts += 2
		case place <= 4:
			pts++
		}
		return pts
	})
}

type OnTour struct{}

func (OnTour) GetName() SystemID { return SystemOnTour }

func (OnTour) Compute(standings []Placement) map[string]int {
	return compute(standings, func(_ Placement, place int) int {
		switch {
		case place == 1:
			return 45
		case place == 2:
			return 32
		case place <= 4:
			return 24
		case place <= 8:
			return 20
		case place <= 16:
			return 16
		case place <= 32:
			return 10
		case place <= 64:
			return 4
		}
		return 2
	})
}

// GoldfischSmallField is the participant count below which the reduced
// goldfisch table applies.
const GoldfischSmallField = 8

type Goldfisch struct{}

func (Goldfisch) GetName() SystemID { return SystemGoldfisch }

func (Goldfisch) Compute(standings []Placement) map[string]int {
	small := len(standings) < GoldfischSmallField
	return compute(standings, func(_ Placement, place int) int {
		if small {
			switch {
			case place == 1:
				return 8
			case place == 2:
				return 6
			case place <= 4:
				return 4
			}
			return 2
		}
		switch {
		case place == 1:
			return 12
		case place == 2:
			return 9
		case place <= 4:
			return 7
		case place <= 8:
			return 5
		}
		return 3
	})
}
