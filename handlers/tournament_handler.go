package handlers

import (
	"errors"
	"net/http"

	"github.com/Dosada05/darts-tournament-system/brackets"
	"github.com/Dosada05/darts-tournament-system/middleware"
	"github.com/Dosada05/darts-tournament-system/models"
	"github.com/Dosada05/darts-tournament-system/repositories"
	"github.com/Dosada05/darts-tournament-system/services"
)

type TournamentHandler struct {
	tournamentService services.TournamentService
}

func NewTournamentHandler(ts services.TournamentService) *TournamentHandler {
	return &TournamentHandler{tournamentService: ts}
}

// Scope resolves the club and tournament addressed by {tournamentID}.
func (h *TournamentHandler) Scope(r *http.Request) (string, string, error) {
	id, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		return "", "", err
	}
	t, err := h.tournamentService.GetTournament(r.Context(), id)
	if err != nil {
		return "", "", err
	}
	return t.ClubID, t.ID, nil
}

// CreateHandler handles POST /tournaments. Only club admins may create.
func (h *TournamentHandler) CreateHandler(w http.ResponseWriter, r *http.Request) {
	var input services.CreateTournamentInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if !middleware.HasClubRole(r.Context(), input.ClubID, middleware.RoleAdmin) {
		forbiddenResponse(w, r, "only club admins can create tournaments")
		return
	}

	tournament, err := h.tournamentService.CreateTournament(r.Context(), input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusCreated, jsonResponse{"tournament": tournament}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// ListHandler handles GET /tournaments?club_id=&status=&limit=&offset=.
func (h *TournamentHandler) ListHandler(w http.ResponseWriter, r *http.Request) {
	var filter repositories.ListTournamentsFilter
	query := r.URL.Query()

	if clubID := query.Get("club_id"); clubID != "" {
		filter.ClubID = &clubID
	}
	if raw := query.Get("status"); raw != "" {
		status := models.TournamentStatus(raw)
		if !status.Valid() {
			badRequestResponse(w, r, errors.New("invalid status query parameter"))
			return
		}
		filter.Status = &status
	}
	var err error
	if filter.Limit, err = queryInt(r, "limit", 20); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if filter.Offset, err = queryInt(r, "offset", 0); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	tournaments, err := h.tournamentService.ListTournaments(r.Context(), filter)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"tournaments": tournaments}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *TournamentHandler) GetByIDHandler(w http.ResponseWriter, r *http.Request) {
	id, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	tournament, err := h.tournamentService.GetTournament(r.Context(), id)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"tournament": tournament}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// OverviewHandler handles GET /tournaments/{tournamentID}/overview.
func (h *TournamentHandler) OverviewHandler(w http.ResponseWriter, r *http.Request) {
	id, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	overview, err := h.tournamentService.GetOverview(r.Context(), id)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, overview, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// ApplyHandler handles POST /tournaments/{tournamentID}/players. Players
// apply themselves; club staff may register anyone.
func (h *TournamentHandler) ApplyHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required to apply")
		return
	}
	var input services.ApplyPlayerInput
	if err := readOptionalJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if input.PlayerID == "" {
		input.PlayerID = userID
	}
	if !models.SameID(input.PlayerID, userID) && !h.isStaff(r) {
		forbiddenResponse(w, r, "only club staff can register other players")
		return
	}
	h.respond(w, r, http.StatusCreated, func(id string) (*models.Tournament, error) {
		return h.tournamentService.ApplyPlayer(r.Context(), id, input)
	})
}

// WithdrawHandler handles DELETE /tournaments/{tournamentID}/players/{playerID}.
func (h *TournamentHandler) WithdrawHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required to withdraw")
		return
	}
	playerID, err := getIDFromURL(r, "playerID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if !models.SameID(playerID, userID) && !h.isStaff(r) {
		forbiddenResponse(w, r, "only club staff can withdraw other players")
		return
	}
	h.respond(w, r, http.StatusOK, func(id string) (*models.Tournament, error) {
		return h.tournamentService.WithdrawPlayer(r.Context(), id, playerID)
	})
}

func (h *TournamentHandler) CheckInHandler(w http.ResponseWriter, r *http.Request) {
	playerID, err := getIDFromURL(r, "playerID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	h.respond(w, r, http.StatusOK, func(id string) (*models.Tournament, error) {
		return h.tournamentService.CheckInPlayer(r.Context(), id, playerID)
	})
}

func (h *TournamentHandler) PromoteWaitingListHandler(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, http.StatusOK, func(id string) (*models.Tournament, error) {
		return h.tournamentService.PromoteFromWaitingList(r.Context(), id)
	})
}

func (h *TournamentHandler) GenerateGroupsHandler(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, http.StatusOK, func(id string) (*models.Tournament, error) {
		return h.tournamentService.GenerateGroups(r.Context(), id)
	})
}

func (h *TournamentHandler) FinishGroupStageHandler(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, http.StatusOK, func(id string) (*models.Tournament, error) {
		return h.tournamentService.FinishGroupStage(r.Context(), id)
	})
}

func (h *TournamentHandler) GenerateKnockoutHandler(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, http.StatusOK, func(id string) (*models.Tournament, error) {
		return h.tournamentService.GenerateKnockout(r.Context(), id)
	})
}

// SubmitManualBracketHandler handles PUT /tournaments/{tournamentID}/knockout/manual.
func (h *TournamentHandler) SubmitManualBracketHandler(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Pairs []brackets.ManualPair `json:"pairs"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	h.respond(w, r, http.StatusOK, func(id string) (*models.Tournament, error) {
		return h.tournamentService.SubmitManualBracket(r.Context(), id, input.Pairs)
	})
}

// AdvanceKnockoutHandler handles POST /tournaments/{tournamentID}/knockout/rounds/{round}/advance.
func (h *TournamentHandler) AdvanceKnockoutHandler(w http.ResponseWriter, r *http.Request) {
	round, err := getIntFromURL(r, "round")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	h.respond(w, r, http.StatusOK, func(id string) (*models.Tournament, error) {
		return h.tournamentService.AdvanceKnockout(r.Context(), id, round)
	})
}

func (h *TournamentHandler) CancelKnockoutHandler(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, http.StatusOK, func(id string) (*models.Tournament, error) {
		return h.tournamentService.CancelKnockout(r.Context(), id)
	})
}

func (h *TournamentHandler) CancelHandler(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, http.StatusOK, func(id string) (*models.Tournament, error) {
		return h.tournamentService.CancelTournament(r.Context(), id)
	})
}

func (h *TournamentHandler) isStaff(r *http.Request) bool {
	clubID, _, err := h.Scope(r)
	return err == nil && middleware.HasClubRole(r.Context(), clubID, middleware.RoleAdmin, middleware.RoleModerator)
}

func (h *TournamentHandler) respond(w http.ResponseWriter, r *http.Request, status int, op func(id string) (*models.Tournament, error)) {
	id, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	tournament, err := op(id)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, status, jsonResponse{"tournament": tournament}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
