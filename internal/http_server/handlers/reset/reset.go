package reset

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/mwx2006/blessing-skin-server/internal/auth"
	resp "github.com/mwx2006/blessing-skin-server/internal/lib/api/response"
	sl "github.com/mwx2006/blessing-skin-server/internal/lib/logger"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
)

type Request struct {
	Token    string `json:"token" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type Response struct {
	resp.Response
}

// New handles phase two of password recovery. The uid in the path must
// match the account the signed reference was issued for.
func New(
	log *slog.Logger,
	validate *validator.Validate,
	authService *auth.Auth,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.reset.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		uid, err := strconv.ParseInt(chi.URLParam(r, "uid"), 10, 64)
		if err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, resp.Error(resp.CodeFailed, "invalid user id"))

			return
		}

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

		tokenUID, err := authService.ParseResetReference(req.Token)
		if err != nil || tokenUID != uid {
			render.JSON(w, r, resp.Error(resp.CodeFailed, "invalid or expired link, please request a new one"))

			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		if err := authService.Reset(ctx, uid, req.Password); err != nil {
			var vErr *auth.ValidationError

			switch {
			case errors.As(err, &vErr):
				render.JSON(w, r, resp.Error(resp.CodeFailed, vErr.Message))
			case errors.Is(err, auth.ErrUnknownUser):
				render.JSON(w, r, resp.Error(resp.CodeConflict, "this user is not registered"))
			default:
				log.Error("failed to reset password", sl.Err(err))

				render.Status(r, http.StatusInternalServerError)
				render.JSON(w, r, resp.Error(resp.CodeFailed, "internal error"))
			}

			return
		}

		render.JSON(w, r, Response{
			Response: resp.OK("password reset successfully"),
		})
	}
}
