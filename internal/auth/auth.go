// Package auth implements the account-lifecycle workflows: login and
// logout, registration, password recovery and external-identity login,
// together with the failed-login throttle policy.
package auth

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mwx2006/blessing-skin-server/internal/events"
	sl "github.com/mwx2006/blessing-skin-server/internal/lib/logger"
	"github.com/mwx2006/blessing-skin-server/internal/mail"
	"github.com/mwx2006/blessing-skin-server/internal/models"
	"github.com/mwx2006/blessing-skin-server/internal/options"
	"github.com/mwx2006/blessing-skin-server/internal/storage"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrUnknownUser          = errors.New("unknown user")
	ErrBadCaptcha           = errors.New("captcha verification failed")
	ErrRegistrationClosed   = errors.New("registration is closed")
	ErrQuotaExceeded        = errors.New("registration quota exceeded")
	ErrEmailTaken           = errors.New("email already taken")
	ErrNameTaken            = errors.New("player name already taken")
	ErrRecoveryDisabled     = errors.New("password recovery is disabled")
	ErrMailCooldown         = errors.New("mail sent too frequently")
	ErrVerificationDisabled = errors.New("account verification is disabled")
	ErrInvalidReference     = errors.New("invalid or expired reference")
)

// ValidationError reports a malformed field. It is user-facing and is
// never counted as a security event.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// WrongPasswordError carries the updated consecutive fail count for the
// caller's address.
type WrongPasswordError struct {
	LoginFails int64
}

func (e *WrongPasswordError) Error() string {
	return "wrong password"
}

// MailDispatchError surfaces the underlying transport failure message
// to the caller. Delivery is not retried.
type MailDispatchError struct {
	Err error
}

func (e *MailDispatchError) Error() string {
	return fmt.Sprintf("failed to send mail: %v", e.Err)
}

func (e *MailDispatchError) Unwrap() error {
	return e.Err
}

// Password bounds for login attempts. Registration and reset bounds
// come from the options reader.
const (
	loginPasswordMin = 6
	loginPasswordMax = 32
)

// failTTL is how long a failed-login counter survives without activity.
const failTTL = 24 * time.Hour

type UserStore interface {
	SaveUser(ctx context.Context, u *models.User) (int64, error)
	UserByEmail(ctx context.Context, email string) (models.User, error)
	UserByID(ctx context.Context, uid int64) (models.User, error)
	UpdatePassword(ctx context.Context, uid int64, passHash []byte) error
	SetVerified(ctx context.Context, uid int64, verified bool) error
	CountRegistrationsByIP(ctx context.Context, ip string) (int, error)
}

type PlayerStore interface {
	SavePlayer(ctx context.Context, p *models.Player) (int64, error)
	PlayerByName(ctx context.Context, name string) (models.Player, error)
}

// ThrottleStore is the per-address failed-login counter. Increments
// must be atomic per key across concurrent requests.
type ThrottleStore interface {
	RecordLoginFailure(ctx context.Context, addressKey string, ttl time.Duration) (int64, error)
	LoginFailures(ctx context.Context, addressKey string) (int64, error)
	ClearLoginFailures(ctx context.Context, addressKey string) error
}

// CooldownStore gates outbound recovery mail per address. Reserve must
// be an atomic check-then-set.
type CooldownStore interface {
	ReserveMailCooldown(ctx context.Context, addressKey string, window time.Duration) (bool, error)
	ReleaseMailCooldown(ctx context.Context, addressKey string) error
}

type SessionStore interface {
	NewSession(ctx context.Context, uid int64, ttl time.Duration) (string, error)
	SessionUser(ctx context.Context, token string) (int64, error)
	DeleteSession(ctx context.Context, token string) error
}

type CaptchaChecker interface {
	Check(ctx context.Context, sessionID, answer string) (bool, error)
}

type Params struct {
	Users    UserStore
	Players  PlayerStore
	Throttle ThrottleStore
	Cooldown CooldownStore
	Sessions SessionStore
	Captcha  CaptchaChecker

	// Mailer dispatches recovery mail synchronously; VerificationQueue
	// publishes verification mail jobs. Recovery is disabled when
	// RecoveryEnabled is false.
	Mailer            mail.Sender
	VerificationQueue mail.Sender
	RecoveryEnabled   bool

	Dispatcher *events.Dispatcher
	Options    *options.Options

	Secret  string
	BaseURL string

	SessionTTL           time.Duration
	ResetTokenTTL        time.Duration
	VerificationTokenTTL time.Duration
	MailCooldown         time.Duration
}

type Auth struct {
	log *slog.Logger
	p   Params
}

func New(log *slog.Logger, p Params) *Auth {
	if p.MailCooldown == 0 {
		p.MailCooldown = time.Hour
	}

	return &Auth{log: log, p: p}
}

// Login runs the session login workflow: resolve the identifier, apply
// the throttle policy, verify the credential, and establish a session.
// Unknown identifiers are not counted against the throttle budget.
func (a *Auth) Login(ctx context.Context, req LoginRequest) (models.User, string, error) {
	const op = "auth.Login"

	log := a.log.With(slog.String("op", op))

	if req.Identification == "" {
		return models.User{}, "", &ValidationError{Field: "identification", Message: "required"}
	}
	if n := len(req.Password); n < loginPasswordMin || n > loginPasswordMax {
		return models.User{}, "", &ValidationError{Field: "password", Message: "must be between 6 and 32 characters"}
	}

	a.p.Dispatcher.Dispatch(events.LoginAttempt, req.Identification, req.Password, channelOf(req.Identification))

	user, err := a.Resolve(ctx, req.Identification)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			log.Warn("login attempt for unknown identifier")
			return models.User{}, "", ErrUnknownUser
		}

		return models.User{}, "", fmt.Errorf("%s: %w", op, err)
	}

	a.p.Dispatcher.Dispatch(events.LoginReady, user)

	addrKey := AddressKey(req.IP)

	fails, err := a.p.Throttle.LoginFailures(ctx, addrKey)
	if err != nil {
		return models.User{}, "", fmt.Errorf("%s: %w", op, err)
	}

	if fails >= int64(a.p.Options.Int(options.LoginFailsThreshold)) {
		ok, err := a.p.Captcha.Check(ctx, req.SessionID, req.Captcha)
		if err != nil {
			return models.User{}, "", fmt.Errorf("%s: %w", op, err)
		}
		if !ok {
			return models.User{}, "", ErrBadCaptcha
		}
	}

	if err := bcrypt.CompareHashAndPassword(user.PassHash, []byte(req.Password)); err != nil {
		count, recErr := a.p.Throttle.RecordLoginFailure(ctx, addrKey, failTTL)
		if recErr != nil {
			return models.User{}, "", fmt.Errorf("%s: %w", op, recErr)
		}

		a.p.Dispatcher.Dispatch(events.LoginFailed, user, count)
		log.Info("invalid credentials", slog.Int64("uid", user.UID), slog.Int64("fails", count))

		return models.User{}, "", &WrongPasswordError{LoginFails: count}
	}

	if err := a.p.Throttle.ClearLoginFailures(ctx, addrKey); err != nil {
		return models.User{}, "", fmt.Errorf("%s: %w", op, err)
	}

	token, err := a.completeLogin(ctx, user)
	if err != nil {
		return models.User{}, "", fmt.Errorf("%s: %w", op, err)
	}

	log.Info("user logged in successfully", slog.Int64("uid", user.UID))

	return user, token, nil
}

// LoginRequest carries the submitted login form plus the caller's
// network identity.
type LoginRequest struct {
	Identification string
	Password       string
	Captcha        string
	IP             string
	SessionID      string
}

// Logout destroys the session identified by token.
func (a *Auth) Logout(ctx context.Context, token string) error {
	const op = "auth.Logout"

	log := a.log.With(slog.String("op", op))

	uid, err := a.p.Sessions.SessionUser(ctx, token)
	if err != nil {
		if errors.Is(err, storage.ErrSessionNotFound) {
			return ErrUnknownUser
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	user, err := a.p.Users.UserByID(ctx, uid)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	a.p.Dispatcher.Dispatch(events.LogoutBefore, user)

	if err := a.p.Sessions.DeleteSession(ctx, token); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	a.p.Dispatcher.Dispatch(events.LogoutAfter, user)
	log.Info("user logged out", slog.Int64("uid", user.UID))

	return nil
}

// CurrentUser resolves a session token to its account.
func (a *Auth) CurrentUser(ctx context.Context, token string) (models.User, error) {
	const op = "auth.CurrentUser"

	uid, err := a.p.Sessions.SessionUser(ctx, token)
	if err != nil {
		if errors.Is(err, storage.ErrSessionNotFound) {
			return models.User{}, ErrUnknownUser
		}

		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	user, err := a.p.Users.UserByID(ctx, uid)
	if err != nil {
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	return user, nil
}

// ChangePassword updates the stored credential hash directly. Used by
// administrative operations; the reset workflow has its own entry.
func (a *Auth) ChangePassword(ctx context.Context, uid int64, newPassword string) error {
	const op = "auth.ChangePassword"

	if err := a.validatePasswordBounds(newPassword); err != nil {
		return err
	}

	passHash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := a.p.Users.UpdatePassword(ctx, uid, passHash); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// SetVerified toggles the verified flag. Administrative entry point.
func (a *Auth) SetVerified(ctx context.Context, uid int64, verified bool) error {
	const op = "auth.SetVerified"

	if err := a.p.Users.SetVerified(ctx, uid, verified); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// completeLogin is the shared success tail of the login, registration
// and oauth workflows: establish the session, then announce it.
func (a *Auth) completeLogin(ctx context.Context, user models.User) (string, error) {
	token, err := a.p.Sessions.NewSession(ctx, user.UID, a.p.SessionTTL)
	if err != nil {
		return "", err
	}

	a.p.Dispatcher.Dispatch(events.LoginSucceeded, user)

	return token, nil
}

func (a *Auth) validatePasswordBounds(password string) error {
	minLen := a.p.Options.Int(options.PasswordLengthMin)
	maxLen := a.p.Options.Int(options.PasswordLengthMax)

	if n := len(password); n < minLen || n > maxLen {
		return &ValidationError{
			Field:   "password",
			Message: fmt.Sprintf("must be between %d and %d characters", minLen, maxLen),
		}
	}

	return nil
}

func (a *Auth) hashAndLog(password string, log *slog.Logger) ([]byte, error) {
	passHash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		log.Error("failed to generate password hash", sl.Err(err))
		return nil, err
	}

	return passHash, nil
}

// AddressKey returns the normalized client-address hash used to key the
// throttle and cooldown stores.
func AddressKey(ip string) string {
	sum := sha1.Sum([]byte(ip))
	return hex.EncodeToString(sum[:])
}
