package apitoken_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/mwx2006/blessing-skin-server/internal/auth/apitoken"
	"github.com/mwx2006/blessing-skin-server/internal/models"
	"github.com/mwx2006/blessing-skin-server/internal/storage"
	storagerds "github.com/mwx2006/blessing-skin-server/internal/storage/redis"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type staticUsers struct {
	user models.User
}

func (s *staticUsers) UserByEmail(_ context.Context, email string) (models.User, error) {
	if email != s.user.Email {
		return models.User{}, storage.ErrUserNotFound
	}
	return s.user, nil
}

func (s *staticUsers) UserByID(_ context.Context, uid int64) (models.User, error) {
	if uid != s.user.UID {
		return models.User{}, storage.ErrUserNotFound
	}
	return s.user, nil
}

func newIssuer(t *testing.T, ttl time.Duration) (*apitoken.Issuer, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	store := storagerds.NewWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))

	hash, err := bcrypt.GenerateFromPassword([]byte("secret-password"), bcrypt.DefaultCost)
	require.NoError(t, err)

	users := &staticUsers{user: models.User{
		UID:      42,
		Email:    "api@example.com",
		PassHash: hash,
	}}

	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	return apitoken.New(log, users, store, "test-secret", ttl), mr
}

func TestLoginIssuesToken(t *testing.T) {
	issuer, _ := newIssuer(t, time.Hour)

	token, err := issuer.Login(context.Background(), "api@example.com", "secret-password")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	user, err := issuer.Authenticate(context.Background(), token)
	require.NoError(t, err)
	require.EqualValues(t, 42, user.UID)
}

func TestLoginBadCredentialsReturnsEmptyToken(t *testing.T) {
	issuer, _ := newIssuer(t, time.Hour)

	token, err := issuer.Login(context.Background(), "api@example.com", "wrong")
	require.NoError(t, err)
	require.Empty(t, token)

	token, err = issuer.Login(context.Background(), "nobody@example.com", "secret-password")
	require.NoError(t, err)
	require.Empty(t, token)
}

func TestLogoutRevokesToken(t *testing.T) {
	issuer, _ := newIssuer(t, time.Hour)

	token, err := issuer.Login(context.Background(), "api@example.com", "secret-password")
	require.NoError(t, err)

	require.NoError(t, issuer.Logout(context.Background(), token))

	_, err = issuer.Authenticate(context.Background(), token)
	require.ErrorIs(t, err, apitoken.ErrInvalidToken)

	err = issuer.Logout(context.Background(), token)
	require.ErrorIs(t, err, apitoken.ErrInvalidToken)
}

func TestRefreshMintsFreshTokenAndRevokesOld(t *testing.T) {
	issuer, _ := newIssuer(t, time.Hour)

	token, err := issuer.Login(context.Background(), "api@example.com", "secret-password")
	require.NoError(t, err)

	fresh, err := issuer.Refresh(context.Background(), token)
	require.NoError(t, err)
	require.NotEqual(t, token, fresh)

	_, err = issuer.Authenticate(context.Background(), token)
	require.ErrorIs(t, err, apitoken.ErrInvalidToken)

	_, err = issuer.Authenticate(context.Background(), fresh)
	require.NoError(t, err)
}

// brokenRevocations accepts reads but fails every revocation.
type brokenRevocations struct {
	inner *storagerds.RedisRepo
}

func (b *brokenRevocations) RevokeToken(context.Context, string, time.Duration) error {
	return errors.New("redis: connection refused")
}

func (b *brokenRevocations) IsTokenRevoked(ctx context.Context, jti string) (bool, error) {
	return b.inner.IsTokenRevoked(ctx, jti)
}

func TestRefreshFailureKeepsOldTokenValid(t *testing.T) {
	mr := miniredis.RunT(t)
	store := storagerds.NewWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))

	hash, err := bcrypt.GenerateFromPassword([]byte("secret-password"), bcrypt.DefaultCost)
	require.NoError(t, err)

	users := &staticUsers{user: models.User{
		UID:      42,
		Email:    "api@example.com",
		PassHash: hash,
	}}

	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	issuer := apitoken.New(log, users, &brokenRevocations{inner: store}, "test-secret", time.Hour)

	token, err := issuer.Login(context.Background(), "api@example.com", "secret-password")
	require.NoError(t, err)

	_, err = issuer.Refresh(context.Background(), token)
	require.Error(t, err)

	// The presented token was not revoked, so the caller can retry.
	_, err = issuer.Authenticate(context.Background(), token)
	require.NoError(t, err)
}

func TestRefreshRejectsExpiredToken(t *testing.T) {
	issuer, _ := newIssuer(t, -time.Minute)

	token, err := issuer.Login(context.Background(), "api@example.com", "secret-password")
	require.NoError(t, err)

	_, err = issuer.Refresh(context.Background(), token)
	require.ErrorIs(t, err, apitoken.ErrInvalidToken)
}

func TestAuthenticateRejectsGarbage(t *testing.T) {
	issuer, _ := newIssuer(t, time.Hour)

	_, err := issuer.Authenticate(context.Background(), "not-a-token")
	require.ErrorIs(t, err, apitoken.ErrInvalidToken)
}
