package models

import "time"

type MatchType string

const (
	MatchTypeGroup    MatchType = "group"
	MatchTypeKnockout MatchType = "knockout"
)

type Throw struct {
	Score      int  `json:"score"`
	DartsUsed  int  `json:"darts_used"`
	IsDouble   bool `json:"is_double"`
	IsCheckout bool `json:"is_checkout"`
}

type Leg struct {
	Player1Score  int       `json:"player1_score"` // remaining score after the leg
	Player2Score  int       `json:"player2_score"`
	Player1Throws []Throw   `json:"player1_throws"`
	Player2Throws []Throw   `json:"player2_throws"`
	WinnerID      string    `json:"winner_id"`
	CheckoutScore int       `json:"checkout_score"`
	CheckoutDarts int       `json:"checkout_darts"`
	CreatedAt     time.Time `json:"created_at"`
}

type MatchPlayer struct {
	PlayerID string  `json:"player_id"`
	LegsWon  int     `json:"legs_won"`
	LegsLost int     `json:"legs_lost"`
	Average  float64 `json:"average"`
}

type Match struct {
	ID             string      `json:"id"`
	TournamentID   string      `json:"tournament_id"`
	Type           MatchType   `json:"type"`
	GroupID        *string     `json:"group_id,omitempty"`
	Round          int         `json:"round"`      // knockout only
	PairIndex      int         `json:"pair_index"` // knockout only
	Sequence       int         `json:"sequence"`
	BoardNumber    int         `json:"board_number"`
	LegsToWin      int         `json:"legs_to_win"`
	StartingScore  int         `json:"starting_score"`
	DoubleOut      bool        `json:"double_out"`
	DartsPerVisit  int         `json:"darts_per_visit"`
	StartingPlayer string      `json:"starting_player,omitempty"`
	Player1        MatchPlayer `json:"player1"`
	Player2        MatchPlayer `json:"player2"`
	ScorerID       *string     `json:"scorer_id,omitempty"`
	Status         MatchStatus `json:"status"`
	WinnerID       *string     `json:"winner_id,omitempty"`
	Legs           []Leg       `json:"legs"`
	Version        int         `json:"version"`
	CreatedAt      time.Time   `json:"created_at"`
	StartedAt      *time.Time  `json:"started_at,omitempty"`
	FinishedAt     *time.Time  `json:"finished_at,omitempty"`
}

// Side returns the match slot for playerID and whether it is player 1.
func (m *Match) Side(playerID string) (side *MatchPlayer, isPlayer1 bool, ok bool) {
	switch {
	case SameID(m.Player1.PlayerID, playerID):
		return &m.Player1, true, true
	case SameID(m.Player2.PlayerID, playerID):
		return &m.Player2, false, true
	}
	return nil, false, false
}

// LoserID returns the non-winning player of a finished match.
func (m *Match) LoserID() (string, bool) {
	if m.WinnerID == nil {
		return "", false
	}
	if SameID(m.Player1.PlayerID, *m.WinnerID) {
		return m.Player2.PlayerID, true
	}
	return m.Player1.PlayerID, true
}
