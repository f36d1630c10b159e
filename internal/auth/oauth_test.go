package auth_test

import (
	"context"
	"testing"

	"github.com/mwx2006/blessing-skin-server/internal/events"
	"github.com/mwx2006/blessing-skin-server/internal/oauth"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOAuthLoginCreatesVerifiedAccountOnce(t *testing.T) {
	f := newFixture(t, nil)

	profile := oauth.Profile{Email: "dev@example.com", Nickname: "dev"}

	user, token, err := f.auth.OAuthLogin(context.Background(), profile, "10.0.0.1")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	assert.Equal(t, "dev@example.com", user.Email)
	assert.Equal(t, "dev", user.Nickname)
	assert.True(t, user.Verified)

	assert.Equal(t, []string{
		events.RegistrationCompleted,
		events.LoginReady,
		events.LoginSucceeded,
	}, f.events.fired())

	f.events.reset()

	// Second login reuses the account instead of creating another.
	again, token2, err := f.auth.OAuthLogin(context.Background(), profile, "10.0.0.1")
	require.NoError(t, err)
	require.NotEmpty(t, token2)
	assert.Equal(t, user.UID, again.UID)

	assert.Equal(t, []string{
		events.LoginReady,
		events.LoginSucceeded,
	}, f.events.fired())
}

func TestOAuthLoginExistingAccount(t *testing.T) {
	f := newFixture(t, nil)
	seeded := f.seedUser(t, "dev@example.com", "correct-horse")

	user, token, err := f.auth.OAuthLogin(context.Background(), oauth.Profile{
		Email:    "dev@example.com",
		Nickname: "ignored",
	}, "10.0.0.1")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	assert.Equal(t, seeded.UID, user.UID)
	assert.Equal(t, "seeded", user.Nickname)

	uid, err := f.redis.SessionUser(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, seeded.UID, uid)
}

func TestOAuthLoginRequiresEmail(t *testing.T) {
	f := newFixture(t, nil)

	_, _, err := f.auth.OAuthLogin(context.Background(), oauth.Profile{Nickname: "no-email"}, "10.0.0.1")
	require.ErrorIs(t, err, oauth.ErrUnsupportedProvider)
}

func TestOAuthLoginBypassesThrottleAndQuota(t *testing.T) {
	// External logins skip the captcha gate, the registration toggle and
	// the per-address quota.
	f := newFixture(t, map[string]string{
		"user_can_register": "0",
		"regs_per_ip":       "0",
	})
	f.captcha.pass = false

	_, token, err := f.auth.OAuthLogin(context.Background(), oauth.Profile{
		Email:    "dev@example.com",
		Nickname: "dev",
	}, "10.0.0.1")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
}
