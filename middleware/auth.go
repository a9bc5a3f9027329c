package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v4"
)

type contextKey string

const userContextKey contextKey = "user"

// ScorerPINHeader carries the board PIN that lets a scorer device record
// results without a user account.
const ScorerPINHeader = "X-Scorer-PIN"

var (
	ErrMissingClaims = errors.New("user claims not found in context")
	ErrInvalidToken  = errors.New("invalid or expired token")
)

// Authenticate verifies an HS256 bearer token and stores its claims in the
// request context. Requests without an Authorization header pass through
// anonymously; RequireUser or the scope checks decide what they may do.
func Authenticate(secret []byte, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				next.ServeHTTP(w, r)
				return
			}
			raw, ok := strings.CutPrefix(header, "Bearer ")
			if !ok {
				writeError(w, http.StatusUnauthorized, "authorization header must use the Bearer scheme")
				return
			}
			claims, err := ParseToken(secret, strings.TrimSpace(raw))
			if err != nil {
				logger.DebugContext(r.Context(), "rejected token", slog.Any("error", err))
				writeError(w, http.StatusUnauthorized, ErrInvalidToken.Error())
				return
			}
			ctx := context.WithValue(r.Context(), userContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ParseToken validates signature, algorithm and expiry.
func ParseToken(secret []byte, raw string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid || claims.UserID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := ClaimsFromContext(r.Context()); err != nil {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ScopeResolver returns the club that owns the addressed resource and, for
// match and tournament routes, the tournament whose scorer PIN applies.
type ScopeResolver func(r *http.Request) (clubID, tournamentID string, err error)

type PINVerifier interface {
	VerifyScorerPIN(ctx context.Context, tournamentID, pin string) error
}

// RequireClubRole admits users holding one of roles in the resolved club.
func RequireClubRole(resolve ScopeResolver, onError func(http.ResponseWriter, *http.Request, error), roles ...ClubRole) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clubID, _, err := resolve(r)
			if err != nil {
				onError(w, r, err)
				return
			}
			if HasClubRole(r.Context(), clubID, roles...) {
				next.ServeHTTP(w, r)
				return
			}
			denied(w, r)
		})
	}
}

// RequireScorer admits club staff and, without a token, any client that
// presents the tournament's scorer PIN.
func RequireScorer(resolve ScopeResolver, pins PINVerifier, onError func(http.ResponseWriter, *http.Request, error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clubID, tournamentID, err := resolve(r)
			if err != nil {
				onError(w, r, err)
				return
			}
			if HasClubRole(r.Context(), clubID, RoleAdmin, RoleModerator) {
				next.ServeHTTP(w, r)
				return
			}
			if pin := r.Header.Get(ScorerPINHeader); pin != "" && tournamentID != "" {
				if err := pins.VerifyScorerPIN(r.Context(), tournamentID, pin); err == nil {
					next.ServeHTTP(w, r)
					return
				}
			}
			denied(w, r)
		})
	}
}

func denied(w http.ResponseWriter, r *http.Request) {
	if _, err := ClaimsFromContext(r.Context()); err != nil {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	writeError(w, http.StatusForbidden, "operation not allowed for the current user")
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
