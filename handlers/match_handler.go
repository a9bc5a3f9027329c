package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/Dosada05/darts-tournament-system/models"
	"github.com/Dosada05/darts-tournament-system/repositories"
	"github.com/Dosada05/darts-tournament-system/scoring"
	"github.com/Dosada05/darts-tournament-system/services"
)

type MatchHandler struct {
	matchService      services.MatchService
	tournamentService services.TournamentService
}

func NewMatchHandler(ms services.MatchService, ts services.TournamentService) *MatchHandler {
	return &MatchHandler{matchService: ms, tournamentService: ts}
}

// Scope resolves the club and tournament owning {matchID}.
func (h *MatchHandler) Scope(r *http.Request) (string, string, error) {
	id, err := getIDFromURL(r, "matchID")
	if err != nil {
		return "", "", err
	}
	m, err := h.matchService.GetMatch(r.Context(), id)
	if err != nil {
		return "", "", err
	}
	t, err := h.tournamentService.GetTournament(r.Context(), m.TournamentID)
	if err != nil {
		return "", "", err
	}
	return t.ClubID, t.ID, nil
}

// ListHandler handles GET /tournaments/{tournamentID}/matches?type=&status=&group=&round=.
func (h *MatchHandler) ListHandler(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var filter repositories.ListMatchesFilter
	query := r.URL.Query()
	if raw := query.Get("type"); raw != "" {
		typ := models.MatchType(raw)
		if typ != models.MatchTypeGroup && typ != models.MatchTypeKnockout {
			badRequestResponse(w, r, errors.New("invalid type query parameter"))
			return
		}
		filter.Type = &typ
	}
	if raw := query.Get("status"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			status := models.MatchStatus(strings.TrimSpace(s))
			if !status.Valid() {
				badRequestResponse(w, r, errors.New("invalid status query parameter"))
				return
			}
			filter.Statuses = append(filter.Statuses, status)
		}
	}
	if group := query.Get("group"); group != "" {
		filter.GroupID = &group
	}
	if query.Get("round") != "" {
		round, err := queryInt(r, "round", 0)
		if err != nil {
			badRequestResponse(w, r, err)
			return
		}
		filter.Round = &round
	}

	matches, err := h.matchService.ListMatches(r.Context(), tournamentID, filter)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"matches": matches}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *MatchHandler) GetByIDHandler(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, func(id string) (*models.Match, error) {
		return h.matchService.GetMatch(r.Context(), id)
	})
}

// StartHandler handles POST /matches/{matchID}/start; the body is optional.
func (h *MatchHandler) StartHandler(w http.ResponseWriter, r *http.Request) {
	var input services.StartMatchInput
	if err := readOptionalJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	h.respond(w, r, func(id string) (*models.Match, error) {
		return h.matchService.StartMatch(r.Context(), id, input)
	})
}

// FinishLegHandler handles POST /matches/{matchID}/legs.
func (h *MatchHandler) FinishLegHandler(w http.ResponseWriter, r *http.Request) {
	var input scoring.LegResult
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	h.respond(w, r, func(id string) (*models.Match, error) {
		return h.matchService.FinishLeg(r.Context(), id, input)
	})
}

// UndoLegHandler handles DELETE /matches/{matchID}/legs/last.
func (h *MatchHandler) UndoLegHandler(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, func(id string) (*models.Match, error) {
		return h.matchService.UndoLastLeg(r.Context(), id)
	})
}

// UpdateSettingsHandler handles PATCH /matches/{matchID}.
func (h *MatchHandler) UpdateSettingsHandler(w http.ResponseWriter, r *http.Request) {
	var input scoring.SettingsUpdate
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	h.respond(w, r, func(id string) (*models.Match, error) {
		return h.matchService.UpdateMatchSettings(r.Context(), id, input)
	})
}

func (h *MatchHandler) respond(w http.ResponseWriter, r *http.Request, op func(id string) (*models.Match, error)) {
	id, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	match, err := op(id)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"match": match}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
