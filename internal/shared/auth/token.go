package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	platformauth "github.com/medsecop/platform/internal/auth"
	"github.com/medsecop/platform/internal/shared/config"
	"github.com/medsecop/platform/internal/shared/types"
)

// IssueToken signs an HS256 access token for the given identity.
// Used by development tooling and tests; production tokens come from the
// external identity provider.
func IssueToken(cfg config.AuthConfig, userID types.ID, role platformauth.Role, email string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			Issuer:    cfg.Issuer,
			Audience:  jwt.ClaimStrings{cfg.Audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Role:  string(role),
		Email: email,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(cfg.JWTSecret))
}
