package brackets

import (
	"errors"
	"fmt"
	"testing"

	"github.com/Dosada05/darts-tournament-system/models"
)

// rankedTournamentPlayers builds players with group and standing assigned the
// way FinishGroupStage leaves them.
func rankedTournamentPlayers(groups []GeneratedGroup) ([]models.Group, []models.TournamentPlayer) {
	var gs []models.Group
	var players []models.TournamentPlayer
	for _, g := range groups {
		gs = append(gs, g.Group)
		for rank, id := range g.Group.PlayerIDs {
			gid := g.Group.ID
			standing := rank + 1
			players = append(players, models.TournamentPlayer{
				PlayerID:      id,
				GroupID:       &gid,
				GroupStanding: &standing,
				Status:        models.PlayerPlaying,
			})
		}
	}
	return gs, players
}

func TestTotalRoundsUsesAdvancingCount(t *testing.T) {
	// 19 players in groups of 5,5,5,4 with 4 qualifiers each: 16 advance.
	generated, err := BuildGroups(playerIDs(19), 5, []int{1})
	if err != nil {
		t.Fatalf("BuildGroups: %v", err)
	}
	groups, players := rankedTournamentPlayers(generated)

	advancing, err := ComputeAdvancingPlayers(groups, players, 4)
	if err != nil {
		t.Fatalf("ComputeAdvancingPlayers: %v", err)
	}
	if len(advancing) != 16 {
		t.Fatalf("expected 16 advancing players, got %d", len(advancing))
	}
	if got := TotalRounds(len(advancing)); got != 4 {
		t.Errorf("expected 4 rounds for 16 qualifiers, got %d", got)
	}
	if got := TotalRounds(len(players)); got != 5 {
		t.Errorf("sanity: 19 registered players would give 5 rounds, got %d", got)
	}

	// Play the bracket out and count the rounds actually produced.
	knockout := []models.KnockoutRound{}
	first, err := GenerateRound(0, advancing)
	if err != nil {
		t.Fatalf("GenerateRound: %v", err)
	}
	knockout = append(knockout, first)
	for {
		last := len(knockout) - 1
		decideAll(&knockout[last])
		res, err := AdvanceRound(knockout, last)
		if err != nil {
			t.Fatalf("AdvanceRound(%d): %v", last, err)
		}
		if res.Finished {
			break
		}
		knockout = append(knockout, *res.Next)
	}
	if len(knockout) != 4 {
		t.Errorf("expected bracket of 4 rounds (16-8-4-2), got %d", len(knockout))
	}
}

func decideAll(r *models.KnockoutRound) {
	for i := range r.Pairs {
		if r.Pairs[i].WinnerID == nil {
			w := r.Pairs[i].Player1ID
			r.Pairs[i].WinnerID = &w
		}
	}
}

func TestTotalRounds(t *testing.T) {
	tests := []struct{ n, want int }{
		{0, 0}, {1, 0}, {2, 1}, {3, 2}, {4, 2}, {5, 3}, {6, 3}, {8, 3}, {9, 4}, {16, 4}, {17, 5}, {32, 5}, {33, 6},
	}
	for _, tt := range tests {
		if got := TotalRounds(tt.n); got != tt.want {
			t.Errorf("TotalRounds(%d) = %d, want %d", tt.n, got, tt.want)
		}
	}
}

func TestComputeAdvancingPlayersDistinctGroupsByCanonicalID(t *testing.T) {
	gA := "  A "
	gA2 := "A"
	gB := "B"
	one, two, three := 1, 2, 3
	groups := []models.Group{{ID: gA}, {ID: gA2}, {ID: gB}}
	players := []models.TournamentPlayer{
		{PlayerID: "a1", GroupID: &gA, GroupStanding: &one},
		{PlayerID: "a2", GroupID: &gA2, GroupStanding: &two},
		{PlayerID: "a3", GroupID: &gA, GroupStanding: &three},
		{PlayerID: "b2", GroupID: &gB, GroupStanding: &two},
		{PlayerID: "b1", GroupID: &gB, GroupStanding: &one},
		{PlayerID: "b3", GroupID: &gB, GroupStanding: &three},
	}

	got, err := ComputeAdvancingPlayers(groups, players, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"a1", "b1", "a2", "b2"}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestComputeAdvancingPlayersErrors(t *testing.T) {
	g := "A"
	one := 1
	groups := []models.Group{{ID: g}}

	_, err := ComputeAdvancingPlayers(groups, []models.TournamentPlayer{{PlayerID: "x", GroupID: &g}}, 1)
	if !errors.Is(err, ErrStandingsMissing) || !errors.Is(err, models.ErrStateConflict) {
		t.Errorf("expected ErrStandingsMissing conflict, got %v", err)
	}

	_, err = ComputeAdvancingPlayers(groups, []models.TournamentPlayer{{PlayerID: "x", GroupID: &g, GroupStanding: &one}}, 2)
	if !errors.Is(err, ErrGroupTooSmall) {
		t.Errorf("expected ErrGroupTooSmall, got %v", err)
	}

	_, err = ComputeAdvancingPlayers(groups, nil, 0)
	if !errors.Is(err, models.ErrValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestCrossGroupSeedingSeparatesGroupMates(t *testing.T) {
	generated, _ := BuildGroups(playerIDs(16), 4, []int{1})
	groups, players := rankedTournamentPlayers(generated)
	advancing, err := ComputeAdvancingPlayers(groups, players, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	groupOf := make(map[string]string)
	for _, p := range players {
		groupOf[p.PlayerID] = *p.GroupID
	}
	round, err := GenerateRound(0, advancing)
	if err != nil {
		t.Fatalf("GenerateRound: %v", err)
	}
	for _, p := range round.Pairs {
		if groupOf[p.Player1ID] == groupOf[*p.Player2ID] {
			t.Errorf("group mates %s and %s meet in round 1", p.Player1ID, *p.Player2ID)
		}
	}
}

func TestGenerateRoundAssignsByesToTopSeeds(t *testing.T) {
	players := []string{"s1", "s2", "s3", "s4", "s5", "s6"}
	round, err := GenerateRound(0, players)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(round.Pairs) != 4 {
		t.Fatalf("expected 4 first-round slots, got %d", len(round.Pairs))
	}
	if ByeCount(6) != 2 {
		t.Errorf("expected 2 byes, got %d", ByeCount(6))
	}

	byes, matches := 0, 0
	byePlayers := models.NewIDSet()
	for _, p := range round.Pairs {
		if p.IsBye() {
			byes++
			byePlayers.Add(p.Player1ID)
			if p.WinnerID == nil || *p.WinnerID != p.Player1ID {
				t.Errorf("bye for %s must advance automatically", p.Player1ID)
			}
			continue
		}
		matches++
		if p.WinnerID != nil {
			t.Errorf("real match %s vs %s must not have a winner yet", p.Player1ID, *p.Player2ID)
		}
	}
	if byes != 2 || matches != 2 {
		t.Errorf("expected 2 byes and 2 matches, got %d and %d", byes, matches)
	}
	if !byePlayers.Has("s1") || !byePlayers.Has("s2") {
		t.Errorf("byes must go to the top two seeds")
	}

	// Seeds 3-6 and 4-5 meet, mirroring seed i against seed n-1-i.
	want := map[string]string{"s3": "s6", "s4": "s5"}
	for _, p := range round.Pairs {
		if p.IsBye() {
			continue
		}
		if want[p.Player1ID] != *p.Player2ID {
			t.Errorf("unexpected pairing %s vs %s", p.Player1ID, *p.Player2ID)
		}
	}
}

func TestGenerateRoundPowerOfTwoPairsMirrorSeeds(t *testing.T) {
	round, err := GenerateRound(0, []string{"1", "2", "3", "4", "5", "6", "7", "8"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := [][2]string{{"1", "8"}, {"4", "5"}, {"2", "7"}, {"3", "6"}}
	for i, p := range round.Pairs {
		if p.Player1ID != want[i][0] || *p.Player2ID != want[i][1] {
			t.Errorf("slot %d: expected %v, got %s vs %s", i, want[i], p.Player1ID, *p.Player2ID)
		}
	}
}

func TestGenerateRoundRejectsDuplicates(t *testing.T) {
	_, err := GenerateRound(0, []string{"a", "b", "A", " a"})
	if !errors.Is(err, models.ErrDuplicateBracketPlayer) {
		t.Errorf("expected ErrDuplicateBracketPlayer, got %v", err)
	}
	if !errors.Is(err, models.ErrInvariantViolation) {
		t.Errorf("expected invariant violation category, got %v", err)
	}
	if _, err := GenerateRound(0, []string{"solo"}); !errors.Is(err, models.ErrNotEnoughQualifiers) {
		t.Errorf("expected ErrNotEnoughQualifiers, got %v", err)
	}
	if _, err := GenerateRound(1, []string{"a", "b", "c"}); !errors.Is(err, models.ErrInvalidPair) {
		t.Errorf("expected ErrInvalidPair for odd winners, got %v", err)
	}
}

func TestAdvanceRound(t *testing.T) {
	first, _ := GenerateRound(0, []string{"s1", "s2", "s3", "s4", "s5", "s6"})
	knockout := []models.KnockoutRound{first}

	if _, err := AdvanceRound(knockout, 0); !errors.Is(err, models.ErrRoundIncomplete) {
		t.Fatalf("expected ErrRoundIncomplete, got %v", err)
	}
	if _, err := AdvanceRound(knockout, 3); !errors.Is(err, models.ErrInvalidRoundIndex) {
		t.Fatalf("expected ErrInvalidRoundIndex, got %v", err)
	}

	decideAll(&knockout[0])
	res, err := AdvanceRound(knockout, 0)
	if err != nil {
		t.Fatalf("AdvanceRound: %v", err)
	}
	if res.Finished || res.Next == nil {
		t.Fatalf("expected a next round")
	}
	if res.Next.Index != 1 || len(res.Next.Pairs) != 2 {
		t.Fatalf("expected round 1 with 2 pairs, got index %d with %d pairs", res.Next.Index, len(res.Next.Pairs))
	}
	// s1 (bye) meets the winner of s4-s5; s2 (bye) meets the winner of s3-s6.
	if res.Next.Pairs[0].Player1ID != "s1" || *res.Next.Pairs[0].Player2ID != "s4" {
		t.Errorf("unexpected semi-final %s vs %s", res.Next.Pairs[0].Player1ID, *res.Next.Pairs[0].Player2ID)
	}
	knockout = append(knockout, *res.Next)

	if _, err := AdvanceRound(knockout, 0); !errors.Is(err, models.ErrRoundAlreadyGenerated) {
		t.Fatalf("expected ErrRoundAlreadyGenerated on repeat, got %v", err)
	}

	decideAll(&knockout[1])
	res, _ = AdvanceRound(knockout, 1)
	knockout = append(knockout, *res.Next)
	decideAll(&knockout[2])
	res, err = AdvanceRound(knockout, 2)
	if err != nil {
		t.Fatalf("final AdvanceRound: %v", err)
	}
	if !res.Finished || res.WinnerID != "s1" || res.Next != nil {
		t.Errorf("expected tournament finished with winner s1, got %+v", res)
	}
}

func TestValidateManualBracket(t *testing.T) {
	qualified := []string{"a", "b", "c", "d", "e", "f"}
	str := func(s string) *string { return &s }

	valid := []ManualPair{
		{Player1ID: "a"},
		{Player1ID: "c", Player2ID: str("f")},
		{Player1ID: "b"},
		{Player1ID: "d", Player2ID: str("e")},
	}
	round, err := ValidateManualBracket(valid, qualified)
	if err != nil {
		t.Fatalf("valid bracket rejected: %v", err)
	}
	if len(round.Pairs) != 4 || round.Pairs[1].Player1ID != "c" {
		t.Errorf("manual bracket must be accepted verbatim, got %+v", round.Pairs)
	}
	if round.Pairs[0].WinnerID == nil || *round.Pairs[0].WinnerID != "a" {
		t.Errorf("manual bye must advance its player")
	}

	tests := []struct {
		name  string
		pairs []ManualPair
		want  error
	}{
		{"duplicate player", []ManualPair{{Player1ID: "a", Player2ID: str("b")}, {Player1ID: "c", Player2ID: str(" a ")}, {Player1ID: "d", Player2ID: str("e")}, {Player1ID: "f"}}, models.ErrDuplicateBracketPlayer},
		{"unqualified player", []ManualPair{{Player1ID: "a", Player2ID: str("zz")}, {Player1ID: "b"}, {Player1ID: "c", Player2ID: str("d")}, {Player1ID: "e", Player2ID: str("f")}}, models.ErrUnknownPlayer},
		{"missing qualifier", []ManualPair{{Player1ID: "a", Player2ID: str("b")}, {Player1ID: "c", Player2ID: str("d")}}, models.ErrInvalidBracketSize},
		{"too many pairs", []ManualPair{{Player1ID: "a"}, {Player1ID: "b"}, {Player1ID: "c"}, {Player1ID: "d"}, {Player1ID: "e"}, {Player1ID: "f"}}, models.ErrInvalidBracketSize},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ValidateManualBracket(tt.pairs, qualified); !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}
