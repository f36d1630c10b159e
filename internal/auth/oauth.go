package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mwx2006/blessing-skin-server/internal/events"
	"github.com/mwx2006/blessing-skin-server/internal/models"
	"github.com/mwx2006/blessing-skin-server/internal/oauth"
	"github.com/mwx2006/blessing-skin-server/internal/storage"
)

// OAuthLogin exchanges a verified external profile for a local session.
// A missing account is created pre-verified with an opaque random
// credential; an existing one is logged in directly. Both branches
// share the login success tail.
func (a *Auth) OAuthLogin(ctx context.Context, profile oauth.Profile, ip string) (models.User, string, error) {
	const op = "auth.OAuthLogin"

	log := a.log.With(slog.String("op", op))

	if profile.Email == "" {
		return models.User{}, "", oauth.ErrUnsupportedProvider
	}

	user, err := a.p.Users.UserByEmail(ctx, profile.Email)
	switch {
	case err == nil:
		// Existing account, nothing to create.
	case errors.Is(err, storage.ErrUserNotFound):
		user, err = a.createUser(ctx, log, createUserParams{
			email:    profile.Email,
			password: randomPassword(),
			nickname: profile.Nickname,
			ip:       ip,
			verified: true,
		})
		if err != nil {
			return models.User{}, "", err
		}

		a.p.Dispatcher.Dispatch(events.RegistrationCompleted, user)
		log.Info("account created from external identity", slog.Int64("uid", user.UID))
	default:
		return models.User{}, "", fmt.Errorf("%s: %w", op, err)
	}

	a.p.Dispatcher.Dispatch(events.LoginReady, user)

	token, err := a.completeLogin(ctx, user)
	if err != nil {
		return models.User{}, "", fmt.Errorf("%s: %w", op, err)
	}

	log.Info("external login succeeded", slog.Int64("uid", user.UID))

	return user, token, nil
}

// randomPassword produces an opaque credential for externally created
// accounts. It is never communicated; such accounts log in through
// their provider or use the recovery flow.
func randomPassword() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}
