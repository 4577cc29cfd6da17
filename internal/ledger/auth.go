package ledger

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// tokenTTL bounds the lifetime of a minted bearer token. Tokens are minted
// per request.
const tokenTTL = 2 * time.Minute

type ledgerClaims struct {
	PlatformID string `json:"platform_id"`
	jwt.RegisteredClaims
}

// mintToken signs a short-lived HS256 bearer token for a ledger request.
func mintToken(platformID string, secret []byte, now time.Time) (string, error) {
	if platformID == "" {
		return "", errors.New("ledger: empty platform id")
	}
	if len(secret) == 0 {
		return "", errors.New("ledger: empty secret")
	}
	claims := ledgerClaims{
		PlatformID: platformID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   platformID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}
