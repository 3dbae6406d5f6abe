package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var JWT = struct {
	ACCESS_COOKIE_NAME string
	ISSUER             string
}{
	ACCESS_COOKIE_NAME: "access_token",
	ISSUER:             "codemaster",
}

// ErrInvalidToken is returned for tokens that fail parsing, signature or
// claim checks.
var ErrInvalidToken = errors.New("invalid token")

type JWTClaims struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
	Kind   string `json:"kind"`
	jwt.RegisteredClaims
}

type LoginResponse struct {
	AccessToken string    `json:"accessToken"`
	Expiry      time.Time `json:"expiry"`
	User        User      `json:"user"`
}

// NewAccessToken signs an HS256 access token for user.
func NewAccessToken(user User, secret string, ttl time.Duration, now time.Time) (string, time.Time, error) {
	expiry := now.Add(ttl)
	claims := JWTClaims{
		UserID: user.UserID,
		Email:  user.Email,
		Kind:   user.Kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    JWT.ISSUER,
			Subject:   user.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiry),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("signing access token: %w", err)
	}
	return signed, expiry, nil
}

func ValidateJWTToken(tokenString string, secret string) (*JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})

	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok || claims.UserID == "" {
		return nil, fmt.Errorf("%w: missing user claim", ErrInvalidToken)
	}

	return claims, nil
}
