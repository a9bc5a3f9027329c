package routes

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Dosada05/darts-tournament-system/brackets"
	"github.com/Dosada05/darts-tournament-system/handlers"
	"github.com/Dosada05/darts-tournament-system/middleware"
	"github.com/Dosada05/darts-tournament-system/models"
	"github.com/Dosada05/darts-tournament-system/repositories"
	"github.com/Dosada05/darts-tournament-system/services"
	"github.com/go-chi/chi/v5"
)

var testSecret = []byte("routes-test-secret")

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := repositories.NewMemoryStore()
	hub := brackets.NewHub(logger)
	notifier := services.NewHubNotifier(hub, logger)
	clock := services.SystemClock()

	ts := services.NewTournamentService(store, notifier, nil, clock, logger)
	ms := services.NewMatchService(store, ts, notifier, nil, clock, logger)
	ls := services.NewLeagueService(store, notifier, clock, logger)

	router := chi.NewRouter()
	SetupRoutes(router, Handlers{
		Tournament: handlers.NewTournamentHandler(ts),
		Match:      handlers.NewMatchHandler(ms, ts),
		League:     handlers.NewLeagueHandler(ls),
		WebSocket:  handlers.NewWebSocketHandler(hub, ts, nil, logger),
	}, Options{
		JWTSecret:      testSecret,
		AllowedOrigins: []string{"*"},
		PINs:           ts,
		Logger:         logger,
	})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

func bearer(t *testing.T, userID string, clubs map[string]middleware.ClubRole) string {
	t.Helper()
	token, err := middleware.IssueToken(testSecret, userID, clubs, time.Hour, time.Now())
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}
	return "Bearer " + token
}

type call struct {
	method  string
	path    string
	body    any
	headers map[string]string
}

func do(t *testing.T, srv *httptest.Server, c call, wantStatus int) map[string]json.RawMessage {
	t.Helper()
	var body io.Reader
	if c.body != nil {
		raw, err := json.Marshal(c.body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(c.method, srv.URL+c.path, body)
	if err != nil {
		t.Fatalf("NewRequest() error = %v", err)
	}
	if c.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", c.method, c.path, err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != wantStatus {
		t.Fatalf("%s %s: status = %d, want %d (body %s)", c.method, c.path, resp.StatusCode, wantStatus, raw)
	}
	out := map[string]json.RawMessage{}
	if len(raw) > 0 && raw[0] == '{' {
		if err := json.Unmarshal(raw, &out); err != nil {
			t.Fatalf("decode %s: %v", raw, err)
		}
	}
	return out
}

func TestTournamentLifecycleOverHTTP(t *testing.T) {
	srv := newTestServer(t)
	admin := map[string]string{"Authorization": bearer(t, "admin-1", map[string]middleware.ClubRole{"club-1": middleware.RoleAdmin})}
	outsider := map[string]string{"Authorization": bearer(t, "p1", nil)}

	create := call{method: http.MethodPost, path: "/api/tournaments", body: map[string]any{
		"club_id":    "club-1",
		"name":       "Friday Night Darts",
		"scorer_pin": "4711",
	}}
	do(t, srv, create, http.StatusUnauthorized)

	create.headers = outsider
	do(t, srv, create, http.StatusForbidden)

	create.headers = admin
	resp := do(t, srv, create, http.StatusCreated)
	var tournament models.Tournament
	if err := json.Unmarshal(resp["tournament"], &tournament); err != nil {
		t.Fatalf("decode tournament: %v", err)
	}
	base := "/api/tournaments/" + tournament.ID

	for i := 1; i <= 4; i++ {
		player := fmt.Sprintf("p%d", i)
		headers := map[string]string{"Authorization": bearer(t, player, nil)}
		do(t, srv, call{method: http.MethodPost, path: base + "/players", headers: headers}, http.StatusCreated)
		do(t, srv, call{method: http.MethodPost, path: base + "/players/" + player + "/check-in", headers: headers}, http.StatusForbidden)
		do(t, srv, call{method: http.MethodPost, path: base + "/players/" + player + "/check-in", headers: admin}, http.StatusOK)
	}
	do(t, srv, call{method: http.MethodPost, path: base + "/players", headers: outsider}, http.StatusConflict)

	do(t, srv, call{method: http.MethodPost, path: base + "/groups", headers: outsider}, http.StatusForbidden)
	do(t, srv, call{method: http.MethodPost, path: base + "/groups", headers: admin}, http.StatusOK)
	do(t, srv, call{method: http.MethodPost, path: base + "/groups", headers: admin}, http.StatusConflict)

	resp = do(t, srv, call{method: http.MethodGet, path: base + "/matches"}, http.StatusOK)
	var matches []models.Match
	if err := json.Unmarshal(resp["matches"], &matches); err != nil {
		t.Fatalf("decode matches: %v", err)
	}
	if len(matches) != 6 {
		t.Fatalf("got %d group matches, want 6", len(matches))
	}

	start := "/api/matches/" + matches[0].ID + "/start"
	do(t, srv, call{method: http.MethodPost, path: start}, http.StatusUnauthorized)
	do(t, srv, call{method: http.MethodPost, path: start, headers: map[string]string{middleware.ScorerPINHeader: "0000"}}, http.StatusUnauthorized)
	do(t, srv, call{method: http.MethodPost, path: start, headers: outsider}, http.StatusForbidden)
	do(t, srv, call{method: http.MethodPost, path: start, headers: map[string]string{middleware.ScorerPINHeader: "4711"}}, http.StatusOK)
	do(t, srv, call{method: http.MethodPost, path: start, headers: admin}, http.StatusConflict)

	do(t, srv, call{method: http.MethodPost, path: base + "/groups/finish", headers: admin}, http.StatusConflict)
	do(t, srv, call{method: http.MethodGet, path: base + "/overview"}, http.StatusOK)
}

func TestErrorMapping(t *testing.T) {
	srv := newTestServer(t)
	admin := map[string]string{"Authorization": bearer(t, "admin-1", map[string]middleware.ClubRole{"club-1": middleware.RoleAdmin})}

	tests := []struct {
		name   string
		call   call
		status int
	}{
		{"unknown tournament", call{method: http.MethodGet, path: "/api/tournaments/missing"}, http.StatusNotFound},
		{"unknown match", call{method: http.MethodGet, path: "/api/matches/missing"}, http.StatusNotFound},
		{"scope of unknown match", call{method: http.MethodPost, path: "/api/matches/missing/start", headers: admin}, http.StatusNotFound},
		{"league without club", call{method: http.MethodGet, path: "/api/leagues"}, http.StatusBadRequest},
		{"invalid settings", call{method: http.MethodPost, path: "/api/tournaments", headers: admin, body: map[string]any{
			"club_id":  "club-1",
			"name":     "Broken",
			"settings": map[string]any{"group_size": 1},
		}}, http.StatusBadRequest},
		{"garbage token", call{method: http.MethodGet, path: "/api/tournaments", headers: map[string]string{"Authorization": "Bearer nope"}}, http.StatusUnauthorized},
		{"health", call{method: http.MethodGet, path: "/healthz"}, http.StatusNoContent},
		{"swagger document", call{method: http.MethodGet, path: "/swagger/doc.json"}, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			do(t, srv, tt.call, tt.status)
		})
	}
}

func TestLeagueRoutesRequireClubStaff(t *testing.T) {
	srv := newTestServer(t)
	admin := map[string]string{"Authorization": bearer(t, "admin-1", map[string]middleware.ClubRole{"club-1": middleware.RoleAdmin})}
	player := map[string]string{"Authorization": bearer(t, "p1", map[string]middleware.ClubRole{"club-1": middleware.RolePlayer})}

	resp := do(t, srv, call{method: http.MethodPost, path: "/api/leagues", headers: admin, body: map[string]any{
		"club_id":      "club-1",
		"name":         "Winter League",
		"point_system": "On Tour",
	}}, http.StatusCreated)
	var league models.League
	if err := json.Unmarshal(resp["league"], &league); err != nil {
		t.Fatalf("decode league: %v", err)
	}

	adjust := call{method: http.MethodPost, path: "/api/leagues/" + league.ID + "/adjustments", body: map[string]any{
		"player_id": "p1",
		"delta":     5,
		"reason":    "organiser bonus",
	}}
	adjust.headers = player
	do(t, srv, adjust, http.StatusForbidden)
	adjust.headers = admin
	do(t, srv, adjust, http.StatusCreated)

	do(t, srv, call{method: http.MethodGet, path: "/api/leagues/" + league.ID + "/standings"}, http.StatusOK)
	do(t, srv, call{method: http.MethodGet, path: "/api/leagues?club_id=club-1"}, http.StatusOK)
}
