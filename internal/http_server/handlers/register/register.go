package register

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/mwx2006/blessing-skin-server/internal/auth"
	"github.com/mwx2006/blessing-skin-server/internal/http_server/cookies"
	resp "github.com/mwx2006/blessing-skin-server/internal/lib/api/response"
	sl "github.com/mwx2006/blessing-skin-server/internal/lib/logger"
	"github.com/mwx2006/blessing-skin-server/pkg/clientip"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
)

type Request struct {
	Email      string `json:"email" validate:"required,email"`
	Password   string `json:"password" validate:"required"`
	Nickname   string `json:"nickname"`
	PlayerName string `json:"player_name"`
	Captcha    string `json:"captcha" validate:"required"`
}

type Response struct {
	resp.Response
}

type userData struct {
	UID      int64  `json:"uid"`
	Nickname string `json:"nickname"`
}

func New(
	log *slog.Logger,
	validate *validator.Validate,
	authService *auth.Auth,
	sessionTTL time.Duration,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.register.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var req Request

		if err := render.DecodeJSON(r.Body, &req); err != nil {
			log.Error("failed to decode request body", sl.Err(err))

			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, resp.Error(resp.CodeFailed, "failed to decode request"))

			return
		}

		if err := validate.Struct(req); err != nil {
			validateErr := err.(validator.ValidationErrors)

			render.JSON(w, r, resp.ValidationError(validateErr))

			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
		defer cancel()

		user, token, err := authService.Register(ctx, auth.RegistrationForm{
			Email:      req.Email,
			Password:   req.Password,
			Nickname:   req.Nickname,
			PlayerName: req.PlayerName,
			Captcha:    req.Captcha,
			IP:         clientip.RealClientIP(r),
			SessionID:  cookies.ExistingBrowserID(r),
		})
		if err != nil {
			writeRegisterError(w, r, log, err)

			return
		}

		cookies.SetSession(w, token, sessionTTL)

		log.Info("user registered", slog.Int64("uid", user.UID))

		render.JSON(w, r, Response{
			Response: resp.Response{
				Code:    resp.CodeOK,
				Message: "registered successfully",
				Data:    userData{UID: user.UID, Nickname: user.Nickname},
			},
		})
	}
}

func writeRegisterError(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) {
	var vErr *auth.ValidationError

	switch {
	case errors.As(err, &vErr):
		render.JSON(w, r, resp.Error(resp.CodeFailed, vErr.Message))
	case errors.Is(err, auth.ErrBadCaptcha):
		render.JSON(w, r, resp.Error(resp.CodeFailed, "captcha verification failed"))
	case errors.Is(err, auth.ErrRegistrationClosed):
		render.JSON(w, r, resp.Error(resp.CodeForbidden, "registration is closed"))
	case errors.Is(err, auth.ErrQuotaExceeded):
		render.JSON(w, r, resp.Error(resp.CodeForbidden, "registration limit for this address reached"))
	case errors.Is(err, auth.ErrEmailTaken):
		render.JSON(w, r, resp.Error(resp.CodeConflict, "this email is already taken"))
	case errors.Is(err, auth.ErrNameTaken):
		render.JSON(w, r, resp.Error(resp.CodeConflict, "this player name is already taken"))
	default:
		log.Error("failed to register user", sl.Err(err))

		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, resp.Error(resp.CodeFailed, "internal error"))
	}
}
