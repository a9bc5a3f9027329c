package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/Dosada05/darts-tournament-system/brackets"
)

const (
	EventGroupsGenerated    = "tournament.groups_generated"
	EventGroupStageFinished = "tournament.group_stage_finished"
	EventKnockoutGenerated  = "tournament.knockout_generated"
	EventKnockoutCancelled  = "tournament.knockout_cancelled"
	EventRoundGenerated     = "tournament.round_generated"
	EventTournamentFinished = "tournament.finished"
	EventTournamentCanceled = "tournament.cancelled"
	EventPlayerRegistered   = "tournament.player_registered"
	EventMatchStarted       = "match.started"
	EventLegFinished        = "match.leg_finished"
	EventLegUndone          = "match.leg_undone"
	EventMatchFinished      = "match.finished"
	EventMatchUpdated       = "match.settings_updated"
	EventPointsApplied      = "league.points_applied"
	EventLeagueAdjusted     = "league.adjusted"
)

type Event struct {
	Name         string      `json:"name"`
	TournamentID string      `json:"tournament_id,omitempty"`
	MatchID      string      `json:"match_id,omitempty"`
	LeagueID     string      `json:"league_id,omitempty"`
	Payload      interface{} `json:"payload,omitempty"`
	OccurredAt   time.Time   `json:"occurred_at"`
}

// Notifier receives engine events after the change that produced them has
// committed. Publishing is fire-and-forget: failures are logged, never
// returned to the caller.
type Notifier interface {
	Publish(ctx context.Context, event Event)
}

type NopNotifier struct{}

func (NopNotifier) Publish(context.Context, Event) {}

type MultiNotifier []Notifier

func (m MultiNotifier) Publish(ctx context.Context, event Event) {
	for _, n := range m {
		n.Publish(ctx, event)
	}
}

// HubNotifier pushes tournament events to the websocket room of the
// tournament they belong to.
type HubNotifier struct {
	hub    *brackets.Hub
	logger *slog.Logger
}

func NewHubNotifier(hub *brackets.Hub, logger *slog.Logger) *HubNotifier {
	return &HubNotifier{hub: hub, logger: logger}
}

func (n *HubNotifier) Publish(ctx context.Context, event Event) {
	if event.TournamentID == "" {
		return
	}
	room := brackets.TournamentRoom(event.TournamentID)
	n.hub.BroadcastToRoom(room, brackets.WebSocketMessage{
		Type:    event.Name,
		Payload: event,
		RoomID:  room,
	})
	n.logger.DebugContext(ctx, "event broadcast", slog.String("event", event.Name), slog.String("room", room))
}
