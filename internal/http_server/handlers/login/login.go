package login

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
	"github.com/mwx2006/blessing-skin-server/internal/models"
	"github.com/mwx2006/blessing-skin-server/pkg/clientip"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
)

type Request struct {
	Identification string `json:"identification" validate:"required"`
	Password       string `json:"password" validate:"required,min=6,max=32"`
	Captcha        string `json:"captcha"`
}

type Response struct {
	resp.Response
}

type userData struct {
	UID      int64  `json:"uid"`
	Nickname string `json:"nickname"`
}

type failData struct {
	LoginFails int64 `json:"login_fails"`
}

func New(
	log *slog.Logger,
	validate *validator.Validate,
	authService *auth.Auth,
	sessionTTL time.Duration,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.login.New"

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

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		user, token, err := authService.Login(ctx, auth.LoginRequest{
			Identification: req.Identification,
			Password:       req.Password,
			Captcha:        req.Captcha,
			IP:             clientip.RealClientIP(r),
			SessionID:      cookies.ExistingBrowserID(r),
		})
		if err != nil {
			writeLoginError(w, r, log, err)

			return
		}

		cookies.SetSession(w, token, sessionTTL)

		ResponseOK(w, r, user)
	}
}

func writeLoginError(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) {
	var (
		vErr      *auth.ValidationError
		wrongPass *auth.WrongPasswordError
	)

	switch {
	case errors.As(err, &vErr):
		render.JSON(w, r, resp.Error(resp.CodeFailed, vErr.Message))
	case errors.Is(err, auth.ErrUnknownUser):
		render.JSON(w, r, resp.Error(resp.CodeConflict, "this user is not registered"))
	case errors.As(err, &wrongPass):
		render.JSON(w, r, resp.ErrorWithData(resp.CodeFailed, "incorrect password", failData{
			LoginFails: wrongPass.LoginFails,
		}))
	case errors.Is(err, auth.ErrBadCaptcha):
		render.JSON(w, r, resp.Error(resp.CodeFailed, "captcha verification failed"))
	default:
		log.Error("failed to login user", sl.Err(err))

		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, resp.Error(resp.CodeFailed, "internal error"))
	}
}

func ResponseOK(w http.ResponseWriter, r *http.Request, user models.User) {
	render.JSON(w, r, Response{
		Response: resp.Response{
			Code:    resp.CodeOK,
			Message: "logged in successfully",
			Data:    userData{UID: user.UID, Nickname: user.Nickname},
		},
	})
}
