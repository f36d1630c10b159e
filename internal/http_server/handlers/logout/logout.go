package logout

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

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
)

type Response struct {
	resp.Response
}

func New(log *slog.Logger, authService *auth.Auth) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.logout.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		token, ok := cookies.Session(r)
		if !ok {
			render.JSON(w, r, resp.Error(resp.CodeFailed, "you have not logged in"))

			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		if err := authService.Logout(ctx, token); err != nil {
			if errors.Is(err, auth.ErrUnknownUser) {
				cookies.ClearSession(w)
				render.JSON(w, r, resp.Error(resp.CodeFailed, "you have not logged in"))

				return
			}

			log.Error("failed to logout user", sl.Err(err))

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, resp.Error(resp.CodeFailed, "internal error"))

			return
		}

		cookies.ClearSession(w)

		render.JSON(w, r, Response{
			Response: resp.OK("logged out successfully"),
		})
	}
}
