// Package apitoken issues stateless bearer tokens for the public API.
// It is a narrower sibling of the session login workflow: it shares the
// account store and credential check but touches neither the failed-
// login throttle nor the event pipeline.
package apitoken

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	sl "github.com/mwx2006/blessing-skin-server/internal/lib/logger"
	"github.com/mwx2006/blessing-skin-server/internal/models"
	"github.com/mwx2006/blessing-skin-server/internal/storage"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const purpose = "api"

var ErrInvalidToken = errors.New("invalid or expired token")

type UserProvider interface {
	UserByEmail(ctx context.Context, email string) (models.User, error)
	UserByID(ctx context.Context, uid int64) (models.User, error)
}

// RevocationStore blacklists token ids until their natural expiry.
type RevocationStore interface {
	RevokeToken(ctx context.Context, jti string, ttl time.Duration) error
	IsTokenRevoked(ctx context.Context, jti string) (bool, error)
}

type Issuer struct {
	log     *slog.Logger
	users   UserProvider
	revoked RevocationStore
	secret  string
	ttl     time.Duration
}

func New(log *slog.Logger, users UserProvider, revoked RevocationStore, secret string, ttl time.Duration) *Issuer {
	return &Issuer{
		log:     log,
		users:   users,
		revoked: revoked,
		secret:  secret,
		ttl:     ttl,
	}
}

// Login verifies the credentials and returns a fresh bearer token. Bad
// credentials yield an empty token and no error, preserving the lenient
// public-API contract; only store failures are reported as errors.
func (i *Issuer) Login(ctx context.Context, email, password string) (string, error) {
	const op = "apitoken.Login"

	log := i.log.With(slog.String("op", op))

	user, err := i.users.UserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return "", nil
		}

		return "", fmt.Errorf("%s: %w", op, err)
	}

	if err := bcrypt.CompareHashAndPassword(user.PassHash, []byte(password)); err != nil {
		log.Info("invalid api credentials", slog.Int64("uid", user.UID))
		return "", nil
	}

	token, err := i.mint(user.UID)
	if err != nil {
		log.Error("failed to generate token", sl.Err(err))
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return token, nil
}

// Logout invalidates the token's future acceptance.
func (i *Issuer) Logout(ctx context.Context, token string) error {
	const op = "apitoken.Logout"

	claims, err := i.parse(ctx, token)
	if err != nil {
		return err
	}

	if err := i.revoke(ctx, claims); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// Refresh exchanges a still-valid token for a new one with a fresh
// expiry. The presented token is revoked; an expired or revoked token
// is rejected.
func (i *Issuer) Refresh(ctx context.Context, token string) (string, error) {
	const op = "apitoken.Refresh"

	claims, err := i.parse(ctx, token)
	if err != nil {
		return "", err
	}

	uid, ok := claims["sub"].(float64)
	if !ok {
		return "", ErrInvalidToken
	}

	if _, err := i.users.UserByID(ctx, int64(uid)); err != nil {
		return "", ErrInvalidToken
	}

	// Mint before revoking so a failure here leaves the presented token
	// usable.
	fresh, err := i.mint(int64(uid))
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	if err := i.revoke(ctx, claims); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return fresh, nil
}

// Authenticate resolves a presented token to its account.
func (i *Issuer) Authenticate(ctx context.Context, token string) (models.User, error) {
	claims, err := i.parse(ctx, token)
	if err != nil {
		return models.User{}, err
	}

	uid, ok := claims["sub"].(float64)
	if !ok {
		return models.User{}, ErrInvalidToken
	}

	user, err := i.users.UserByID(ctx, int64(uid))
	if err != nil {
		return models.User{}, ErrInvalidToken
	}

	return user, nil
}

func (i *Issuer) mint(uid int64) (string, error) {
	claims := jwt.MapClaims{
		"sub":     uid,
		"jti":     uuid.NewString(),
		"purpose": purpose,
		"exp":     time.Now().Add(i.ttl).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	return token.SignedString([]byte(i.secret))
}

func (i *Issuer) parse(ctx context.Context, tokenStr string) (jwt.MapClaims, error) {
	const op = "apitoken.parse"

	claims := jwt.MapClaims{}

	parsedToken, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("%s: unexpected signing method", op)
		}
		return []byte(i.secret), nil
	})
	if err != nil || !parsedToken.Valid {
		return nil, ErrInvalidToken
	}

	if p, ok := claims["purpose"].(string); !ok || p != purpose {
		return nil, ErrInvalidToken
	}

	jti, ok := claims["jti"].(string)
	if !ok {
		return nil, ErrInvalidToken
	}

	revoked, err := i.revoked.IsTokenRevoked(ctx, jti)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if revoked {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// revoke blacklists the token id for the remainder of its validity.
func (i *Issuer) revoke(ctx context.Context, claims jwt.MapClaims) error {
	jti, _ := claims["jti"].(string)

	ttl := i.ttl
	if expFloat, ok := claims["exp"].(float64); ok {
		if remaining := time.Until(time.Unix(int64(expFloat), 0)); remaining > 0 {
			ttl = remaining
		}
	}

	return i.revoked.RevokeToken(ctx, jti, ttl)
}
