package handlers

import (
	"net/http"

	"github.com/Dosada05/darts-tournament-system/middleware"
	"github.com/Dosada05/darts-tournament-system/models"
	"github.com/Dosada05/darts-tournament-system/services"
)

type LeagueHandler struct {
	leagueService services.LeagueService
}

func NewLeagueHandler(ls services.LeagueService) *LeagueHandler {
	return &LeagueHandler{leagueService: ls}
}

// Scope resolves the club owning {leagueID}.
func (h *LeagueHandler) Scope(r *http.Request) (string, string, error) {
	id, err := getIDFromURL(r, "leagueID")
	if err != nil {
		return "", "", err
	}
	l, err := h.leagueService.GetLeague(r.Context(), id)
	if err != nil {
		return "", "", err
	}
	return l.ClubID, "", nil
}

func (h *LeagueHandler) CreateHandler(w http.ResponseWriter, r *http.Request) {
	var input services.CreateLeagueInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if !middleware.HasClubRole(r.Context(), input.ClubID, middleware.RoleAdmin) {
		forbiddenResponse(w, r, "only club admins can create leagues")
		return
	}
	league, err := h.leagueService.CreateLeague(r.Context(), input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusCreated, jsonResponse{"league": league}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// ListHandler handles GET /leagues?club_id=.
func (h *LeagueHandler) ListHandler(w http.ResponseWriter, r *http.Request) {
	clubID := r.URL.Query().Get("club_id")
	if clubID == "" {
		badRequestResponse(w, r, services.ErrClubRequired)
		return
	}
	leagues, err := h.leagueService.ListLeagues(r.Context(), clubID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"leagues": leagues}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *LeagueHandler) GetByIDHandler(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, http.StatusOK, func(id string) (*models.League, error) {
		return h.leagueService.GetLeague(r.Context(), id)
	})
}

func (h *LeagueHandler) StandingsHandler(w http.ResponseWriter, r *http.Request) {
	id, err := getIDFromURL(r, "leagueID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	table, err := h.leagueService.Standings(r.Context(), id)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"standings": table}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// AttachTournamentHandler handles POST /leagues/{leagueID}/tournaments/{tournamentID}.
func (h *LeagueHandler) AttachTournamentHandler(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	h.respond(w, r, http.StatusOK, func(id string) (*models.League, error) {
		return h.leagueService.AttachTournament(r.Context(), id, tournamentID)
	})
}

// ApplyResultsHandler handles POST /leagues/{leagueID}/tournaments/{tournamentID}/apply.
func (h *LeagueHandler) ApplyResultsHandler(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	h.respond(w, r, http.StatusOK, func(id string) (*models.League, error) {
		return h.leagueService.ApplyTournamentResults(r.Context(), id, tournamentID)
	})
}

func (h *LeagueHandler) AddAdjustmentHandler(w http.ResponseWriter, r *http.Request) {
	var input services.AdjustmentInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	input.CreatedBy, _ = middleware.GetUserIDFromContext(r.Context())
	h.respond(w, r, http.StatusCreated, func(id string) (*models.League, error) {
		return h.leagueService.AddAdjustment(r.Context(), id, input)
	})
}

// UndoAdjustmentHandler handles DELETE /leagues/{leagueID}/players/{playerID}/adjustments/{index}.
func (h *LeagueHandler) UndoAdjustmentHandler(w http.ResponseWriter, r *http.Request) {
	playerID, err := getIDFromURL(r, "playerID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	index, err := getIntFromURL(r, "index")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	h.respond(w, r, http.StatusOK, func(id string) (*models.League, error) {
		return h.leagueService.UndoAdjustment(r.Context(), id, playerID, index)
	})
}

func (h *LeagueHandler) respond(w http.ResponseWriter, r *http.Request, status int, op func(id string) (*models.League, error)) {
	id, err := getIDFromURL(r, "leagueID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	league, err := op(id)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, status, jsonResponse{"league": league}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
