// Package signed issues and validates signed, expiring references.
// A reference binds an account identifier to a single intended action
// (password reset, email verification) and an absolute expiry. Expiry is
// checked with zero clock-skew tolerance.
package signed

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	PurposePasswordReset     = "password_reset"
	PurposeEmailVerification = "email_verification"
)

// New creates a signed reference for the given account and purpose.
func New(uid int64, purpose string, ttl time.Duration, secret string) (string, error) {
	claims := jwt.MapClaims{
		"sub":     uid,
		"purpose": purpose,
		"exp":     time.Now().Add(ttl).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	return token.SignedString([]byte(secret))
}

// Parse validates the signature, expiry and purpose of a reference and
// returns the account identifier it was bound to.
func Parse(tokenStr, purpose, secret string) (int64, error) {
	const op = "signed.Parse"

	claims := jwt.MapClaims{}

	parsedToken, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("%s: unexpected signing method", op)
		}
		return []byte(secret), nil
	})
	if err != nil {
		return 0, fmt.Errorf("%s: failed to parse token: %w", op, err)
	}

	if !parsedToken.Valid {
		return 0, fmt.Errorf("%s: invalid token", op)
	}

	if p, ok := claims["purpose"].(string); !ok || p != purpose {
		return 0, fmt.Errorf("%s: invalid token purpose", op)
	}

	if expFloat, ok := claims["exp"].(float64); ok {
		if time.Now().Unix() > int64(expFloat) {
			return 0, fmt.Errorf("%s: token expired", op)
		}
	} else {
		return 0, fmt.Errorf("%s: missing exp claim", op)
	}

	subFloat, ok := claims["sub"].(float64)
	if !ok {
		return 0, fmt.Errorf("%s: missing sub claim", op)
	}

	return int64(subFloat), nil
}
