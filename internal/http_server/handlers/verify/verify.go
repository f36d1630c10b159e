package verify

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/mwx2006/blessing-skin-server/internal/auth"
	resp "github.com/mwx2006/blessing-skin-server/internal/lib/api/response"
	sl "github.com/mwx2006/blessing-skin-server/internal/lib/logger"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
)

type Response struct {
	resp.Response
}

// New confirms an email verification link.
func New(log *slog.Logger, authService *auth.Auth) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.verify.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		token := r.URL.Query().Get("token")
		if token == "" {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, resp.Error(resp.CodeFailed, "token is required"))

			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		if err := authService.Verify(ctx, token); err != nil {
			switch {
			case errors.Is(err, auth.ErrVerificationDisabled):
				render.JSON(w, r, resp.Error(resp.CodeForbidden, "account verification is disabled"))
			case errors.Is(err, auth.ErrInvalidReference):
				render.JSON(w, r, resp.Error(resp.CodeFailed, "invalid or expired link"))
			default:
				log.Error("failed to verify email", sl.Err(err))

				render.Status(r, http.StatusInternalServerError)
				render.JSON(w, r, resp.Error(resp.CodeFailed, "internal error"))
			}

			return
		}

		render.JSON(w, r, Response{
			Response: resp.OK("email verified successfully"),
		})
	}
}
