package middleware

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

var testSecret = []byte("test-secret")

type fakePINVerifier struct {
	verifyFn func(ctx context.Context, tournamentID, pin string) error
}

func (f *fakePINVerifier) VerifyScorerPIN(ctx context.Context, tournamentID, pin string) error {
	return f.verifyFn(ctx, tournamentID, pin)
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })
}

func token(t *testing.T, clubs map[string]ClubRole, ttl time.Duration) string {
	t.Helper()
	tok, err := IssueToken(testSecret, "user-1", clubs, ttl, time.Now())
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}
	return tok
}

func TestAuthenticate(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	var seen *Claims
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = ClaimsFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})
	h := Authenticate(testSecret, logger)(next)

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantUser   bool
	}{
		{name: "anonymous", wantStatus: http.StatusNoContent},
		{name: "valid token", header: "Bearer " + token(t, nil, time.Hour), wantStatus: http.StatusNoContent, wantUser: true},
		{name: "expired token", header: "Bearer " + token(t, nil, -time.Minute), wantStatus: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic dXNlcjpwdw==", wantStatus: http.StatusUnauthorized},
		{name: "garbage", header: "Bearer not-a-jwt", wantStatus: http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = nil
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)
			if rr.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rr.Code, tt.wantStatus)
			}
			if (seen != nil) != tt.wantUser {
				t.Errorf("claims present = %v, want %v", seen != nil, tt.wantUser)
			}
			if seen != nil && seen.UserID != "user-1" {
				t.Errorf("UserID = %q, want user-1", seen.UserID)
			}
		})
	}
}

func TestParseTokenRejectsOtherSecret(t *testing.T) {
	tok, err := IssueToken([]byte("someone-else"), "user-1", nil, time.Hour, time.Now())
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}
	if _, err := ParseToken(testSecret, tok); err == nil {
		t.Errorf("ParseToken() accepted a token signed with another secret")
	}
}

func TestRequireScorer(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	resolve := func(r *http.Request) (string, string, error) { return "club-1", "tour-1", nil }
	pins := &fakePINVerifier{verifyFn: func(ctx context.Context, tournamentID, pin string) error {
		if tournamentID == "tour-1" && pin == "4711" {
			return nil
		}
		return errors.New("wrong pin")
	}}
	onError := func(w http.ResponseWriter, r *http.Request, err error) { w.WriteHeader(http.StatusNotFound) }
	h := Authenticate(testSecret, logger)(RequireScorer(resolve, pins, onError)(okHandler()))

	tests := []struct {
		name       string
		clubs      map[string]ClubRole
		pin        string
		wantStatus int
	}{
		{name: "club admin", clubs: map[string]ClubRole{"club-1": RoleAdmin}, wantStatus: http.StatusNoContent},
		{name: "club moderator", clubs: map[string]ClubRole{"club-1": RoleModerator}, wantStatus: http.StatusNoContent},
		{name: "player of the club", clubs: map[string]ClubRole{"club-1": RolePlayer}, wantStatus: http.StatusForbidden},
		{name: "admin of another club", clubs: map[string]ClubRole{"club-2": RoleAdmin}, wantStatus: http.StatusForbidden},
		{name: "scorer pin", pin: "4711", wantStatus: http.StatusNoContent},
		{name: "wrong pin", pin: "0000", wantStatus: http.StatusUnauthorized},
		{name: "nothing", wantStatus: http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", nil)
			if tt.clubs != nil {
				req.Header.Set("Authorization", "Bearer "+token(t, tt.clubs, time.Hour))
			}
			if tt.pin != "" {
				req.Header.Set(ScorerPINHeader, tt.pin)
			}
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)
			if rr.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rr.Code, tt.wantStatus)
			}
		})
	}
}

func TestRequireClubRolePropagatesResolveErrors(t *testing.T) {
	resolve := func(r *http.Request) (string, string, error) { return "", "", errors.New("no such tournament") }
	called := false
	onError := func(w http.ResponseWriter, r *http.Request, err error) {
		called = true
		w.WriteHeader(http.StatusNotFound)
	}
	rr := httptest.NewRecorder()
	RequireClubRole(resolve, onError, RoleAdmin)(okHandler()).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/", nil))
	if !called || rr.Code != http.StatusNotFound {
		t.Errorf("status = %d called = %v, want 404 via onError", rr.Code, called)
	}
}
