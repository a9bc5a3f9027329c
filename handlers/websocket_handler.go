package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/Dosada05/darts-tournament-system/brackets"
	"github.com/Dosada05/darts-tournament-system/services"
	"github.com/gorilla/websocket"
)

// SnapshotMessageType is the first message every new spectator receives.
const SnapshotMessageType = "tournament.snapshot"

type WebSocketHandler struct {
	hub               *brackets.Hub
	tournamentService services.TournamentService
	upgrader          websocket.Upgrader
	logger            *slog.Logger
}

// NewWebSocketHandler accepts connections from allowedOrigins; "*" or an
// empty list allows any origin.
func NewWebSocketHandler(hub *brackets.Hub, ts services.TournamentService, allowedOrigins []string, logger *slog.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		hub:               hub,
		tournamentService: ts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		logger: logger,
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || len(allowed) == 0 {
			return true
		}
		for _, a := range allowed {
			if a == "*" || a == origin {
				return true
			}
		}
		return false
	}
}

// ServeWs joins the client to the room of /ws/tournaments/{tournamentID} and
// sends the current tournament overview as the first message.
func (h *WebSocketHandler) ServeWs(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	overview, err := h.tournamentService.GetOverview(r.Context(), tournamentID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	snapshot, err := json.Marshal(brackets.WebSocketMessage{
		Type:    SnapshotMessageType,
		Payload: overview,
		RoomID:  brackets.TournamentRoom(tournamentID),
	})
	if err != nil {
		serverErrorResponse(w, r, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already answered the client.
		h.logger.WarnContext(r.Context(), "websocket upgrade failed",
			slog.String("tournament_id", tournamentID),
			slog.Any("error", err))
		return
	}

	client := brackets.NewClient(h.hub, conn, brackets.TournamentRoom(tournamentID))
	client.Enqueue(snapshot)
	h.hub.Join(client)

	go client.WritePump()
	go client.ReadPump()

	h.logger.InfoContext(r.Context(), "websocket client joined",
		slog.String("tournament_id", tournamentID),
		slog.String("room", client.Room()))
}
