package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/mwx2006/blessing-skin-server/internal/events"
	sl "github.com/mwx2006/blessing-skin-server/internal/lib/logger"
	"github.com/mwx2006/blessing-skin-server/internal/lib/signed"
	"github.com/mwx2006/blessing-skin-server/internal/mail"
	"github.com/mwx2006/blessing-skin-server/internal/models"
	"github.com/mwx2006/blessing-skin-server/internal/options"
	"github.com/mwx2006/blessing-skin-server/internal/storage"
)

const nicknameMaxLength = 255

var (
	officialNameRegexp = regexp.MustCompile(`^[A-Za-z0-9_]+$`)
	cjkNameRegexp      = regexp.MustCompile(`^[A-Za-z0-9_\x{4e00}-\x{9fff}]+$`)
	emailRegexp        = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
)

// RegistrationForm is the submitted registration data. PlayerName is
// consulted when the register-with-player-name mode is active,
// Nickname otherwise.
type RegistrationForm struct {
	Email      string
	Password   string
	Nickname   string
	PlayerName string
	Captcha    string
	IP         string
	SessionID  string
}

// Register runs the registration workflow and chains into the login
// success path, so a fresh account ends up with an established session.
func (a *Auth) Register(ctx context.Context, form RegistrationForm) (models.User, string, error) {
	const op = "auth.Register"

	log := a.log.With(slog.String("op", op))

	a.p.Dispatcher.Dispatch(events.RegistrationAttempt, map[string]string{
		"email":       form.Email,
		"password":    form.Password,
		"nickname":    form.Nickname,
		"player_name": form.PlayerName,
	})

	withPlayer := a.p.Options.Bool(options.RegisterWithPlayer)

	if err := a.validateRegistration(form, withPlayer); err != nil {
		return models.User{}, "", err
	}

	ok, err := a.p.Captcha.Check(ctx, form.SessionID, form.Captcha)
	if err != nil {
		return models.User{}, "", fmt.Errorf("%s: %w", op, err)
	}
	if !ok {
		return models.User{}, "", ErrBadCaptcha
	}

	if !a.p.Options.Bool(options.UserCanRegister) {
		return models.User{}, "", ErrRegistrationClosed
	}

	// Per-address quota; -1 means unlimited.
	if quota := a.p.Options.Int(options.RegsPerIP); quota >= 0 {
		count, err := a.p.Users.CountRegistrationsByIP(ctx, form.IP)
		if err != nil {
			return models.User{}, "", fmt.Errorf("%s: %w", op, err)
		}
		if count >= quota {
			return models.User{}, "", ErrQuotaExceeded
		}
	}

	if _, err := a.p.Users.UserByEmail(ctx, form.Email); err == nil {
		return models.User{}, "", ErrEmailTaken
	} else if !errors.Is(err, storage.ErrUserNotFound) {
		return models.User{}, "", fmt.Errorf("%s: %w", op, err)
	}

	if withPlayer {
		if _, err := a.p.Players.PlayerByName(ctx, form.PlayerName); err == nil {
			return models.User{}, "", ErrNameTaken
		} else if !errors.Is(err, storage.ErrPlayerNotFound) {
			return models.User{}, "", fmt.Errorf("%s: %w", op, err)
		}
	}

	a.p.Dispatcher.Dispatch(events.RegistrationReady, map[string]string{
		"email":       form.Email,
		"password":    form.Password,
		"nickname":    form.Nickname,
		"player_name": form.PlayerName,
	})

	nickname := form.Nickname
	if withPlayer {
		nickname = form.PlayerName
	}

	user, err := a.createUser(ctx, log, createUserParams{
		email:    form.Email,
		password: form.Password,
		nickname: nickname,
		ip:       form.IP,
		verified: false,
	})
	if err != nil {
		return models.User{}, "", err
	}

	if withPlayer {
		player := &models.Player{UID: user.UID, Name: form.PlayerName}
		pid, err := a.p.Players.SavePlayer(ctx, player)
		if err != nil {
			if errors.Is(err, storage.ErrPlayerExists) {
				return models.User{}, "", ErrNameTaken
			}

			return models.User{}, "", fmt.Errorf("%s: %w", op, err)
		}
		player.PID = pid
	}

	a.p.Dispatcher.Dispatch(events.RegistrationCompleted, user)

	a.queueVerificationMail(ctx, log, user)

	a.p.Dispatcher.Dispatch(events.LoginReady, user)

	token, err := a.completeLogin(ctx, user)
	if err != nil {
		return models.User{}, "", fmt.Errorf("%s: %w", op, err)
	}

	log.Info("user registered", slog.Int64("uid", user.UID))

	return user, token, nil
}

type createUserParams struct {
	email    string
	password string
	nickname string
	ip       string
	verified bool
}

// createUser inserts the account row. Shared by the registration and
// oauth workflows; uniqueness is re-checked by the store.
func (a *Auth) createUser(ctx context.Context, log *slog.Logger, p createUserParams) (models.User, error) {
	const op = "auth.createUser"

	passHash, err := a.hashAndLog(p.password, log)
	if err != nil {
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	user := models.User{
		Email:      p.email,
		Nickname:   p.nickname,
		Score:      a.p.Options.Int(options.UserInitialScore),
		PassHash:   passHash,
		Permission: models.PermissionNormal,
		Verified:   p.verified,
		IP:         p.ip,
		RegisterAt: time.Now(),
	}

	uid, err := a.p.Users.SaveUser(ctx, &user)
	if err != nil {
		if errors.Is(err, storage.ErrUserExists) {
			return models.User{}, ErrEmailTaken
		}

		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}
	user.UID = uid

	return user, nil
}

func (a *Auth) validateRegistration(form RegistrationForm, withPlayer bool) error {
	if form.Email == "" {
		return &ValidationError{Field: "email", Message: "required"}
	}
	if !emailRegexp.MatchString(form.Email) {
		return &ValidationError{Field: "email", Message: "not a valid email"}
	}

	if err := a.validatePasswordBounds(form.Password); err != nil {
		return err
	}

	if withPlayer {
		return a.validatePlayerName(form.PlayerName)
	}

	if form.Nickname == "" {
		return &ValidationError{Field: "nickname", Message: "required"}
	}
	if len(form.Nickname) > nicknameMaxLength {
		return &ValidationError{Field: "nickname", Message: "too long"}
	}

	return nil
}

// validatePlayerName checks the configured name-shape rule and length
// bounds. Uniqueness is checked separately so the conflict surfaces as
// a distinct error.
func (a *Auth) validatePlayerName(name string) error {
	if name == "" {
		return &ValidationError{Field: "player_name", Message: "required"}
	}

	minLen := a.p.Options.Int(options.PlayerNameLengthMin)
	maxLen := a.p.Options.Int(options.PlayerNameLengthMax)
	if n := len([]rune(name)); n < minLen || n > maxLen {
		return &ValidationError{
			Field:   "player_name",
			Message: fmt.Sprintf("must be between %d and %d characters", minLen, maxLen),
		}
	}

	var shape *regexp.Regexp

	switch rule := a.p.Options.Get(options.PlayerNameRule); rule {
	case "official":
		shape = officialNameRegexp
	case "cjk":
		shape = cjkNameRegexp
	case "custom":
		custom, err := regexp.Compile(a.p.Options.Get(options.CustomPlayerNameRegexp))
		if err != nil {
			return &ValidationError{Field: "player_name", Message: "name rule misconfigured"}
		}
		shape = custom
	default:
		shape = officialNameRegexp
	}

	if !shape.MatchString(name) {
		return &ValidationError{Field: "player_name", Message: "invalid characters"}
	}

	return nil
}

// queueVerificationMail publishes the verification mail job. A publish
// failure is logged but does not fail the registration.
func (a *Auth) queueVerificationMail(ctx context.Context, log *slog.Logger, user models.User) {
	if a.p.VerificationQueue == nil || !a.p.Options.Bool(options.RequireVerification) {
		return
	}

	token, err := signed.New(user.UID, signed.PurposeEmailVerification, a.p.VerificationTokenTTL, a.p.Secret)
	if err != nil {
		log.Error("failed to generate verification token", sl.Err(err))
		return
	}

	msg := models.Message{
		Email:   user.Email,
		Link:    fmt.Sprintf("%s/auth/verify?token=%s", a.p.BaseURL, token),
		Purpose: mail.PurposeEmailVerification,
	}

	if err := a.p.VerificationQueue.Send(ctx, msg); err != nil {
		log.Error("failed to queue verification mail", sl.Err(err))
	}
}
