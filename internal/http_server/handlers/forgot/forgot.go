package forgot

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
	Email   string `json:"email" validate:"required,email"`
	Captcha string `json:"captcha" validate:"required"`
}

type Response struct {
	resp.Response
}

func New(
	log *slog.Logger,
	validate *validator.Validate,
	authService *auth.Auth,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.forgot.New"

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

		// Mail dispatch is synchronous, give it room.
		ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
		defer cancel()

		err := authService.Forgot(ctx, auth.ForgotRequest{
			Email:     req.Email,
			Captcha:   req.Captcha,
			IP:        clientip.RealClientIP(r),
			SessionID: cookies.ExistingBrowserID(r),
		})
		if err != nil {
			writeForgotError(w, r, log, err)

			return
		}

		render.JSON(w, r, Response{
			Response: resp.OK("recovery mail sent, please check your inbox"),
		})
	}
}

func writeForgotError(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) {
	var dispatchErr *auth.MailDispatchError

	switch {
	case errors.Is(err, auth.ErrRecoveryDisabled):
		render.JSON(w, r, resp.Error(resp.CodeForbidden, "password recovery is not available"))
	case errors.Is(err, auth.ErrBadCaptcha):
		render.JSON(w, r, resp.Error(resp.CodeFailed, "captcha verification failed"))
	case errors.Is(err, auth.ErrMailCooldown):
		render.JSON(w, r, resp.Error(resp.CodeConflict, "request too frequent, please try again later"))
	case errors.Is(err, auth.ErrUnknownUser):
		render.JSON(w, r, resp.Error(resp.CodeFailed, "this user is not registered"))
	case errors.As(err, &dispatchErr):
		render.JSON(w, r, resp.Error(resp.CodeConflict, dispatchErr.Error()))
	default:
		log.Error("failed to process recovery request", sl.Err(err))

		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, resp.Error(resp.CodeFailed, "internal error"))
	}
}
