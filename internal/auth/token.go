package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/dgrijalva/jwt-go"
)

// ErrInvalidToken covers every handshake rejection cause: missing, malformed,
// expired or unverifiable credentials.
var ErrInvalidToken = errors.New("invalid token")

// Secret and TokenTTL should be set from configuration at startup.
var (
	Secret   = []byte("insecure-dev-secret-change-me")
	TokenTTL = 24 * time.Hour
)

type Claims struct {
	UserID int `json:"userId"`
	jwt.StandardClaims
}

// GenerateToken issues a signed HS256 session token for userID.
func GenerateToken(userID int) (string, error) {
	claims := &Claims{
		UserID: userID,
		StandardClaims: jwt.StandardClaims{
			ExpiresAt: time.Now().Add(TokenTTL).Unix(),
			IssuedAt:  time.Now().Unix(),
			Issuer:    "cryptochat",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(Secret)
}

// ValidateToken verifies signature and expiry and resolves the token to a
// user id. Every failure mode maps to ErrInvalidToken.
func ValidateToken(tokenStr string) (int, error) {
	if tokenStr == "" {
		return 0, fmt.Errorf("%w: missing credential", ErrInvalidToken)
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return Secret, nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid || claims.UserID == 0 {
		return 0, ErrInvalidToken
	}

	return claims.UserID, nil
}
