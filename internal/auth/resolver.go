package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mwx2006/blessing-skin-server/internal/models"
	"github.com/mwx2006/blessing-skin-server/internal/storage"
)

// Login channels, reported with the login.attempt event.
const (
	ChannelEmail      = "email"
	ChannelPlayerName = "player-name"
)

// Resolve maps a login identifier to exactly one account. Email match
// is attempted first and wins over a colliding player name.
func (a *Auth) Resolve(ctx context.Context, identification string) (models.User, error) {
	const op = "auth.Resolve"

	user, err := a.p.Users.UserByEmail(ctx, identification)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, storage.ErrUserNotFound) {
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	player, err := a.p.Players.PlayerByName(ctx, identification)
	if err != nil {
		if errors.Is(err, storage.ErrPlayerNotFound) {
			return models.User{}, storage.ErrUserNotFound
		}

		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	user, err = a.p.Users.UserByID(ctx, player.UID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			// Unclaimed player name: no account behind it.
			return models.User{}, storage.ErrUserNotFound
		}

		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	return user, nil
}

func channelOf(identification string) string {
	if strings.Contains(identification, "@") {
		return ChannelEmail
	}

	return ChannelPlayerName
}
