package brackets

import (
	"fmt"

	"github.com/Dosada05/darts-tournament-system/models"
)

// Pairing is one generated group fixture. Round is the matchday inside the
// group; Order is the position of the fixture in the whole group schedule.
type Pairing struct {
	Player1ID string
	Player2ID string
	Round     int
	Order     int
}

type GeneratedGroup struct {
	Group    models.Group
	Pairings []Pairing
}

// BuildGroups partitions the checked-in players, in registration order, into
// groups of groupSize. The last group may be smaller; a leftover single player
// joins the previous group so that every group has at least two players.
// Boards are assigned round-robin over the supplied list.
func BuildGroups(players []string, groupSize int, boards []int) ([]GeneratedGroup, error) {
	if groupSize < 2 || len(players) < 2 {
		return nil, models.ErrInvalidGroupSize
	}
	if len(boards) == 0 {
		boards = []int{1}
	}

	seen := models.NewIDSet()
	for _, p := range players {
		if !seen.Add(p) {
			return nil, fmt.Errorf("%w: player %s listed twice", models.ErrPlayerInTwoGroups, p)
		}
	}

	chunks := make([][]string, 0, len(players)/groupSize+1)
	for start := 0; start < len(players); start += groupSize {
		end := start + groupSize
		if end > len(players) {
			end = len(players)
		}
		chunks = append(chunks, players[start:end])
	}
	if last := chunks[len(chunks)-1]; len(last) == 1 && len(chunks) > 1 {
		chunks[len(chunks)-2] = append(chunks[len(chunks)-2], last[0])
		chunks = chunks[:len(chunks)-1]
	}

	groups := make([]GeneratedGroup, 0, len(chunks))
	for i, chunk := range chunks {
		members := make([]string, len(chunk))
		for j, p := range chunk {
			members[j] = models.CanonicalID(p)
		}
		groups = append(groups, GeneratedGroup{
			Group: models.Group{
				ID:          GroupLabel(i),
				BoardNumber: boards[i%len(boards)],
				PlayerIDs:   members,
			},
			Pairings: RoundRobinPairings(members),
		})
	}
	return groups, nil
}

// RoundRobinPairings schedules every player against every other exactly once
// using the circle method: the first player stays fixed while the rest rotate,
// so nobody plays a second time before everyone has played once.
func RoundRobinPairings(players []string) []Pairing {
	n := len(players)
	if n < 2 {
		return nil
	}

	slots := make([]*string, 0, n+1)
	for i := range players {
		slots = append(slots, &players[i])
	}
	if n%2 == 1 {
		slots = append(slots, nil) // resting slot
	}
	size := len(slots)

	pairings := make([]Pairing, 0, n*(n-1)/2)
	order := 0
	for round := 1; round < size; round++ {
		for i := 0; i < size/2; i++ {
			a, b := slots[i], slots[size-1-i]
			if a == nil || b == nil {
				continue
			}
			// Alternate the home side so the fixed player is not always player 1.
			if round%2 == 0 && i == 0 {
				a, b = b, a
			}
			order++
			pairings = append(pairings, Pairing{Player1ID: *a, Player2ID: *b, Round: round, Order: order})
		}
		rotated := make([]*string, 0, size)
		rotated = append(rotated, slots[0], slots[size-1])
		rotated = append(rotated, slots[1:size-1]...)
		slots = rotated
	}
	return pairings
}

// GroupLabel returns A, B, ..., Z, AA, AB, ... for a zero-based index.
func GroupLabel(i int) string {
	label := ""
	for i >= 0 {
		label = string(rune('A'+i%26)) + label
		i = i/26 - 1
	}
	return label
}
