package models

import "time"

type TournamentFormat string

const (
	FormatGroupKnockout TournamentFormat = "group_knockout"
	FormatKnockoutOnly  TournamentFormat = "knockout_only"
	FormatGroupOnly     TournamentFormat = "group_only"
)

func (f TournamentFormat) HasGroups() bool { return f == FormatGroupKnockout || f == FormatGroupOnly }
func (f TournamentFormat) HasKnockout() bool {
	return f == FormatGroupKnockout || f == FormatKnockoutOnly
}

type KnockoutMethod string

const (
	KnockoutAutomatic KnockoutMethod = "automatic"
	KnockoutManual    KnockoutMethod = "manual"
)

const (
	DefaultStartingScore = 501
	DefaultDartsPerVisit = 3
	DefaultGroupSize     = 4
)

type TournamentSettings struct {
	Format             TournamentFormat `json:"format"`
	LegsPerMatch       int              `json:"legs_per_match"` // legs needed to win a match
	StartingScore      int              `json:"starting_score"`
	KnockoutMethod     KnockoutMethod   `json:"knockout_method"`
	QualifiersPerGroup int              `json:"qualifiers_per_group"`
	MaxPlayers         int              `json:"max_players"`
	GroupSize          int              `json:"group_size"`
	Boards             []int            `json:"boards"`
	DoubleOut          bool             `json:"double_out"`
	DartsPerVisit      int              `json:"darts_per_visit"`
}

// WithDefaults fills zero values with house defaults.
func (s TournamentSettings) WithDefaults() TournamentSettings {
	if s.Format == "" {
		s.Format = FormatGroupKnockout
	}
	if s.KnockoutMethod == "" {
		s.KnockoutMethod = KnockoutAutomatic
	}
	if s.StartingScore == 0 {
		s.StartingScore = DefaultStartingScore
	}
	if s.LegsPerMatch == 0 {
		s.LegsPerMatch = 2
	}
	if s.GroupSize == 0 {
		s.GroupSize = DefaultGroupSize
	}
	if s.QualifiersPerGroup == 0 {
		s.QualifiersPerGroup = 2
	}
	if s.DartsPerVisit == 0 {
		s.DartsPerVisit = DefaultDartsPerVisit
	}
	if len(s.Boards) == 0 {
		s.Boards = []int{1}
	}
	return s
}

func (s TournamentSettings) Validate() error {
	switch {
	case s.Format != FormatGroupKnockout && s.Format != FormatKnockoutOnly && s.Format != FormatGroupOnly:
		return ErrInvalidSettings
	case s.KnockoutMethod != KnockoutAutomatic && s.KnockoutMethod != KnockoutManual:
		return ErrInvalidSettings
	case s.LegsPerMatch < 1, s.StartingScore < 2, s.DartsPerVisit < 1:
		return ErrInvalidSettings
	case s.GroupSize < 2, s.QualifiersPerGroup < 1, s.MaxPlayers < 0:
		return ErrInvalidSettings
	}
	return nil
}

type TournamentPlayer struct {
	PlayerID      string       `json:"player_id"`
	Name          string       `json:"name,omitempty"`
	GroupID       *string      `json:"group_id,omitempty"`
	GroupStanding *int         `json:"group_standing,omitempty"`
	Status        PlayerStatus `json:"status"`
	RegisteredAt  time.Time    `json:"registered_at"`
}

type Group struct {
	ID          string   `json:"id"`
	BoardNumber int      `json:"board_number"`
	PlayerIDs   []string `json:"player_ids"`
}

// KnockoutPair is one bracket slot. A nil Player2ID is a bye.
type KnockoutPair struct {
	Player1ID string  `json:"player1_id"`
	Player2ID *string `json:"player2_id,omitempty"`
	WinnerID  *string `json:"winner_id,omitempty"`
	MatchID   *string `json:"match_id,omitempty"`
}

func (p KnockoutPair) IsBye() bool { return p.Player2ID == nil }

// Decided reports whether the pair has a winner, either played or by bye.
func (p KnockoutPair) Decided() bool { return p.WinnerID != nil }

func (p KnockoutPair) Has(playerID string) bool {
	return SameID(p.Player1ID, playerID) || (p.Player2ID != nil && SameID(*p.Player2ID, playerID))
}

type KnockoutRound struct {
	Index int            `json:"index"`
	Pairs []KnockoutPair `json:"pairs"`
}

type WaitingListEntry struct {
	PlayerID  string    `json:"player_id"`
	Name      string    `json:"name,omitempty"`
	AppliedAt time.Time `json:"applied_at"`
}

type Tournament struct {
	ID            string             `json:"id"`
	Code          string             `json:"code"`
	ClubID        string             `json:"club_id"`
	Name          string             `json:"name"`
	Settings      TournamentSettings `json:"settings"`
	Status        TournamentStatus   `json:"status"`
	Players       []TournamentPlayer `json:"players"`
	Groups        []Group            `json:"groups"`
	Knockout      []KnockoutRound    `json:"knockout"`
	WaitingList   []WaitingListEntry `json:"waiting_list"`
	WinnerID      *string            `json:"winner_id,omitempty"`
	LeagueID      *string            `json:"league_id,omitempty"`
	ScorerPINHash string             `json:"-"`
	Version       int                `json:"version"`
	CreatedAt     time.Time          `json:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at"`
	FinishedAt    *time.Time         `json:"finished_at,omitempty"`
}

// Player returns the registered player with the given id.
func (t *Tournament) Player(playerID string) (*TournamentPlayer, bool) {
	id := CanonicalID(playerID)
	for i := range t.Players {
		if CanonicalID(t.Players[i].PlayerID) == id {
			return &t.Players[i], true
		}
	}
	return nil, false
}

func (t *Tournament) CheckedInPlayers() []string {
	ids := make([]string, 0, len(t.Players))
	for _, p := range t.Players {
		if p.Status == PlayerCheckedIn || p.Status == PlayerPlaying {
			ids = append(ids, p.PlayerID)
		}
	}
	return ids
}

// OpenSlots returns how many more players may register; -1 means unlimited.
func (t *Tournament) OpenSlots() int {
	if t.Settings.MaxPlayers <= 0 {
		return -1
	}
	n := t.Settings.MaxPlayers - len(t.Players)
	if n < 0 {
		return 0
	}
	return n
}

// LastRound returns the most recent knockout round, if any.
func (t *Tournament) LastRound() (*KnockoutRound, bool) {
	if len(t.Knockout) == 0 {
		return nil, false
	}
	return &t.Knockout[len(t.Knockout)-1], true
}
