package tokengenerator

import (
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SessionClaims identify an authenticated account and the address it
// logged in with.
type SessionClaims struct {
	AccountID  string `json:"account_id"`
	LoginEmail string `json:"login_email"`
	jwt.RegisteredClaims
}

func CreateTokenStr(secret string, claims jwt.Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	ss, err := token.SignedString([]byte(secret))
	if err != nil {
		slog.Error("Failed sign JWT Claim string!", "err", err)
		return "", err
	}
	return ss, nil
}

// CreateSessionToken signs an HS256 session token valid for expiry.
func CreateSessionToken(secret, issuer, accountID, loginEmail string, expiry time.Duration, now time.Time) (string, error) {
	claims := SessionClaims{
		AccountID:  accountID,
		LoginEmail: loginEmail,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   accountID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
		},
	}
	return CreateTokenStr(secret, claims)
}
