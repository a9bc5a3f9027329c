package middleware

import (
	"context"
	"fmt"
	"time"

	"github.com/Dosada05/darts-tournament-system/models"
	"github.com/golang-jwt/jwt/v4"
)

type ClubRole string

const (
	RoleAdmin     ClubRole = "admin"
	RoleModerator ClubRole = "moderator"
	RolePlayer    ClubRole = "player"
)

// Claims identifies a user and the role they hold in each club, keyed by
// club id.
type Claims struct {
	UserID string              `json:"user_id"`
	Name   string              `json:"name,omitempty"`
	Clubs  map[string]ClubRole `json:"clubs,omitempty"`
	jwt.RegisteredClaims
}

func ClaimsFromContext(ctx context.Context) (*Claims, error) {
	claims, ok := ctx.Value(userContextKey).(*Claims)
	if !ok || claims == nil {
		return nil, ErrMissingClaims
	}
	return claims, nil
}

func GetUserIDFromContext(ctx context.Context) (string, error) {
	claims, err := ClaimsFromContext(ctx)
	if err != nil {
		return "", err
	}
	return claims.UserID, nil
}

// HasClubRole reports whether the caller holds one of roles in clubID.
func HasClubRole(ctx context.Context, clubID string, roles ...ClubRole) bool {
	claims, err := ClaimsFromContext(ctx)
	if err != nil || clubID == "" {
		return false
	}
	for club, role := range claims.Clubs {
		if !models.SameID(club, clubID) {
			continue
		}
		for _, want := range roles {
			if role == want {
				return true
			}
		}
	}
	return false
}

// IssueToken signs claims for userID. Accounts live with the identity
// provider; this is used by tooling and tests.
func IssueToken(secret []byte, userID string, clubs map[string]ClubRole, ttl time.Duration, now time.Time) (string, error) {
	claims := Claims{
		UserID: models.CanonicalID(userID),
		Clubs:  clubs,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   models.CanonicalID(userID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return token, nil
}
