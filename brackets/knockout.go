package brackets

import (
	"fmt"
	"math/bits"
	"sort"

	"github.com/Dosada05/darts-tournament-system/models"
)

var (
	ErrStandingsMissing = fmt.Errorf("%w: group standings have not been computed", models.ErrStateConflict)
	ErrGroupTooSmall    = fmt.Errorf("%w: group has fewer players than qualifiers per group", models.ErrValidation)
)

// ComputeAdvancingPlayers takes the top qualifiersPerGroup finishers of every
// distinct group and seeds them tier by tier: all group winners in group order,
// then all runners-up, and so on. With the round-0 pairing of seed i against
// seed n-1-i this keeps players from the same group apart for as long as
// possible.
//
// Groups are deduplicated on their canonical identifier, so the advancing
// count is always distinctGroups * qualifiersPerGroup.
func ComputeAdvancingPlayers(groups []models.Group, players []models.TournamentPlayer, qualifiersPerGroup int) ([]string, error) {
	if qualifiersPerGroup < 1 {
		return nil, fmt.Errorf("%w: qualifiers per group must be positive", models.ErrValidation)
	}

	order := make([]string, 0, len(groups))
	distinct := models.NewIDSet()
	for _, g := range groups {
		if distinct.Add(g.ID) {
			order = append(order, models.CanonicalID(g.ID))
		}
	}

	members := make(map[string][]models.TournamentPlayer, len(order))
	for _, p := range players {
		if p.GroupID == nil {
			continue
		}
		gid := models.CanonicalID(p.GroupID)
		if !distinct.Has(gid) {
			continue
		}
		if p.GroupStanding == nil {
			return nil, fmt.Errorf("%w: player %s in group %s", ErrStandingsMissing, p.PlayerID, gid)
		}
		members[gid] = append(members[gid], p)
	}

	ranked := make([][]string, len(order))
	for i, gid := range order {
		list := members[gid]
		if len(list) < qualifiersPerGroup {
			return nil, fmt.Errorf("%w: group %s has %d players, %d qualify", ErrGroupTooSmall, gid, len(list), qualifiersPerGroup)
		}
		sort.SliceStable(list, func(a, b int) bool { return *list[a].GroupStanding < *list[b].GroupStanding })
		for _, p := range list[:qualifiersPerGroup] {
			ranked[i] = append(ranked[i], models.CanonicalID(p.PlayerID))
		}
	}

	advancing := make([]string, 0, len(order)*qualifiersPerGroup)
	for tier := 0; tier < qualifiersPerGroup; tier++ {
		for i := range ranked {
			advancing = append(advancing, ranked[i][tier])
		}
	}
	return advancing, nil
}

// TotalRounds is ceil(log2(advancingCount)). It must be fed the number of
// qualifiers, not the number of registered players.
func TotalRounds(advancingCount int) int {
	if advancingCount <= 1 {
		return 0
	}
	return bits.Len(uint(advancingCount - 1))
}

func nextPowerOfTwo(n int) int {
	if n <= 1 {
		return 1
	}
	return 1 << bits.Len(uint(n-1))
}

// ByeCount is the number of top seeds that skip round 0.
func ByeCount(advancingCount int) int {
	return nextPowerOfTwo(advancingCount) - advancingCount
}

// bracketOrder lists first-round slot indexes so that consecutive slots meet
// in the next round and the top two seeds can only meet in the final.
func bracketOrder(slots int) []int {
	order := []int{0}
	for len(order) < slots {
		size := len(order) * 2
		next := make([]int, 0, size)
		for _, s := range order {
			next = append(next, s, size-1-s)
		}
		order = next
	}
	return order
}

// GenerateRound builds one knockout round.
//
// Round 0 takes the seeded list: seed i meets seed P-1-i where P is the next
// power of two, so the top P-n seeds face an empty slot and advance by bye.
// Later rounds take the previous round's winners in bracket order and pair
// them consecutively.
func GenerateRound(roundIndex int, players []string) (models.KnockoutRound, error) {
	if roundIndex < 0 {
		return models.KnockoutRound{}, models.ErrInvalidRoundIndex
	}
	n := len(players)
	if n < 2 {
		return models.KnockoutRound{}, models.ErrNotEnoughQualifiers
	}
	ids := make([]string, n)
	seen := models.NewIDSet()
	for i, p := range players {
		ids[i] = models.CanonicalID(p)
		if ids[i] == "" {
			return models.KnockoutRound{}, models.ErrInvalidPair
		}
		if !seen.Add(ids[i]) {
			return models.KnockoutRound{}, fmt.Errorf("%w: %s", models.ErrDuplicateBracketPlayer, ids[i])
		}
	}

	round := models.KnockoutRound{Index: roundIndex}
	if roundIndex > 0 {
		if n%2 != 0 {
			return models.KnockoutRound{}, fmt.Errorf("%w: %d winners cannot be paired", models.ErrInvalidPair, n)
		}
		for i := 0; i < n; i += 2 {
			p2 := ids[i+1]
			round.Pairs = append(round.Pairs, models.KnockoutPair{Player1ID: ids[i], Player2ID: &p2})
		}
		return round, nil
	}

	size := nextPowerOfTwo(n)
	for _, i := range bracketOrder(size / 2) {
		pair := models.KnockoutPair{Player1ID: ids[i]}
		if j := size - 1 - i; j < n {
			p2 := ids[j]
			pair.Player2ID = &p2
		} else {
			winner := ids[i]
			pair.WinnerID = &winner
		}
		round.Pairs = append(round.Pairs, pair)
	}
	return round, nil
}

type AdvanceResult struct {
	Next     *models.KnockoutRound
	Finished bool
	WinnerID string
}

// AdvanceRound derives the round after currentRoundIndex from its winners.
// Once a later round exists the call fails with ErrRoundAlreadyGenerated, so
// a repeated client request can never produce a duplicate round.
func AdvanceRound(knockout []models.KnockoutRound, currentRoundIndex int) (AdvanceResult, error) {
	if currentRoundIndex < 0 || currentRoundIndex >= len(knockout) {
		return AdvanceResult{}, models.ErrInvalidRoundIndex
	}
	if currentRoundIndex < len(knockout)-1 {
		return AdvanceResult{}, fmt.Errorf("%w: round %d", models.ErrRoundAlreadyGenerated, currentRoundIndex+1)
	}

	current := knockout[currentRoundIndex]
	winners := make([]string, 0, len(current.Pairs))
	for i, p := range current.Pairs {
		if !p.Decided() {
			return AdvanceResult{}, fmt.Errorf("%w: round %d pair %d", models.ErrRoundIncomplete, currentRoundIndex, i)
		}
		winners = append(winners, *p.WinnerID)
	}

	if len(winners) == 1 {
		return AdvanceResult{Finished: true, WinnerID: winners[0]}, nil
	}
	next, err := GenerateRound(currentRoundIndex+1, winners)
	if err != nil {
		return AdvanceResult{}, err
	}
	return AdvanceResult{Next: &next}, nil
}

// ManualPair is an admin-chosen first-round pairing. A nil Player2ID is a bye.
type ManualPair struct {
	Player1ID string  `json:"player1_id"`
	Player2ID *string `json:"player2_id,omitempty"`
}

// ValidateManualBracket accepts an admin bracket verbatim once it places every
// qualified player exactly once and has the pair count a seeded bracket of the
// same size would have.
func ValidateManualBracket(pairs []ManualPair, qualified []string) (models.KnockoutRound, error) {
	allowed := models.NewIDSet(qualified...)
	placed := models.NewIDSet()
	round := models.KnockoutRound{Index: 0, Pairs: make([]models.KnockoutPair, 0, len(pairs))}

	place := func(ref string) (string, error) {
		id := models.CanonicalID(ref)
		if id == "" {
			return "", models.ErrInvalidPair
		}
		if !allowed.Has(id) {
			return "", fmt.Errorf("%w: %s is not qualified", models.ErrUnknownPlayer, id)
		}
		if !placed.Add(id) {
			return "", fmt.Errorf("%w: %s", models.ErrDuplicateBracketPlayer, id)
		}
		return id, nil
	}

	for _, mp := range pairs {
		p1, err := place(mp.Player1ID)
		if err != nil {
			return models.KnockoutRound{}, err
		}
		pair := models.KnockoutPair{Player1ID: p1}
		if mp.Player2ID != nil {
			p2, err := place(*mp.Player2ID)
			if err != nil {
				return models.KnockoutRound{}, err
			}
			pair.Player2ID = &p2
		} else {
			winner := p1
			pair.WinnerID = &winner
		}
		round.Pairs = append(round.Pairs, pair)
	}

	n := len(placed)
	if n < 2 {
		return models.KnockoutRound{}, models.ErrNotEnoughQualifiers
	}
	if n != len(allowed) || len(pairs) != nextPowerOfTwo(n)/2 {
		return models.KnockoutRound{}, fmt.Errorf("%w: %d players in %d pairs, %d qualified", models.ErrInvalidBracketSize, n, len(pairs), len(allowed))
	}
	return round, nil
}
