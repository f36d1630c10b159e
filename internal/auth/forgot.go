package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mwx2006/blessing-skin-server/internal/events"
	sl "github.com/mwx2006/blessing-skin-server/internal/lib/logger"
	"github.com/mwx2006/blessing-skin-server/internal/lib/signed"
	"github.com/mwx2006/blessing-skin-server/internal/mail"
	"github.com/mwx2006/blessing-skin-server/internal/models"
	"github.com/mwx2006/blessing-skin-server/internal/options"
	"github.com/mwx2006/blessing-skin-server/internal/storage"

	"golang.org/x/crypto/bcrypt"
)

// ForgotRequest carries the recovery request form plus the caller's
// network identity.
type ForgotRequest struct {
	Email     string
	Captcha   string
	IP        string
	SessionID string
}

// Forgot runs phase one of password recovery: throttle the caller,
// resolve the account, and dispatch a signed, time-limited reset link.
// The cooldown slot is reserved atomically up front and released again
// if no mail ends up being sent.
func (a *Auth) Forgot(ctx context.Context, req ForgotRequest) error {
	const op = "auth.Forgot"

	log := a.log.With(slog.String("op", op))

	if !a.p.RecoveryEnabled {
		return ErrRecoveryDisabled
	}

	ok, err := a.p.Captcha.Check(ctx, req.SessionID, req.Captcha)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if !ok {
		return ErrBadCaptcha
	}

	a.p.Dispatcher.Dispatch(events.ForgotAttempt, req.Email)

	addrKey := AddressKey(req.IP)

	reserved, err := a.p.Cooldown.ReserveMailCooldown(ctx, addrKey, a.p.MailCooldown)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if !reserved {
		return ErrMailCooldown
	}

	user, err := a.p.Users.UserByEmail(ctx, req.Email)
	if err != nil {
		if relErr := a.p.Cooldown.ReleaseMailCooldown(ctx, addrKey); relErr != nil {
			log.Error("failed to release mail cooldown", sl.Err(relErr))
		}

		if errors.Is(err, storage.ErrUserNotFound) {
			return ErrUnknownUser
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	a.p.Dispatcher.Dispatch(events.ForgotReady, user)

	token, err := signed.New(user.UID, signed.PurposePasswordReset, a.p.ResetTokenTTL, a.p.Secret)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	url := fmt.Sprintf("%s/auth/reset/%d?token=%s", a.p.BaseURL, user.UID, token)

	msg := models.Message{
		Email:   user.Email,
		Link:    url,
		Purpose: mail.PurposePasswordReset,
	}

	if err := a.p.Mailer.Send(ctx, msg); err != nil {
		if relErr := a.p.Cooldown.ReleaseMailCooldown(ctx, addrKey); relErr != nil {
			log.Error("failed to release mail cooldown", sl.Err(relErr))
		}

		a.p.Dispatcher.Dispatch(events.ForgotFailed, user, url)
		log.Error("failed to send recovery mail", sl.Err(err))

		return &MailDispatchError{Err: err}
	}

	a.p.Dispatcher.Dispatch(events.ForgotSent, user, url)
	log.Info("recovery mail sent", slog.Int64("uid", user.UID))

	return nil
}

// ParseResetReference validates a signed reset reference and returns
// the account it was issued for. Expired or tampered references are
// rejected uniformly.
func (a *Auth) ParseResetReference(token string) (int64, error) {
	uid, err := signed.Parse(token, signed.PurposePasswordReset, a.p.Secret)
	if err != nil {
		return 0, ErrInvalidReference
	}

	return uid, nil
}

// Reset runs phase two of password recovery. The caller must have
// validated the signed reference already.
func (a *Auth) Reset(ctx context.Context, uid int64, newPassword string) error {
	const op = "auth.Reset"

	log := a.log.With(slog.String("op", op))

	if err := a.validatePasswordBounds(newPassword); err != nil {
		return err
	}

	user, err := a.p.Users.UserByID(ctx, uid)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return ErrUnknownUser
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	a.p.Dispatcher.Dispatch(events.ResetBefore, user, newPassword)

	passHash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := a.p.Users.UpdatePassword(ctx, user.UID, passHash); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	a.p.Dispatcher.Dispatch(events.ResetAfter, user, newPassword)
	log.Info("password reset", slog.Int64("uid", user.UID))

	return nil
}

// Verify validates a signed verification reference and marks the
// account verified.
func (a *Auth) Verify(ctx context.Context, token string) error {
	const op = "auth.Verify"

	log := a.log.With(slog.String("op", op))

	if !a.p.Options.Bool(options.RequireVerification) {
		return ErrVerificationDisabled
	}

	uid, err := signed.Parse(token, signed.PurposeEmailVerification, a.p.Secret)
	if err != nil {
		return ErrInvalidReference
	}

	user, err := a.p.Users.UserByID(ctx, uid)
	if err != nil {
		return ErrInvalidReference
	}

	if user.Verified {
		return ErrInvalidReference
	}

	if err := a.p.Users.SetVerified(ctx, user.UID, true); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	log.Info("email verified", slog.Int64("uid", user.UID))

	return nil
}
