package captchaimg

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/mwx2006/blessing-skin-server/internal/captcha"
	"github.com/mwx2006/blessing-skin-server/internal/http_server/cookies"
	sl "github.com/mwx2006/blessing-skin-server/internal/lib/logger"

	"github.com/go-chi/chi/middleware"
)

// New serves a fresh challenge image bound to the caller's browser id.
// Requesting a new image replaces any unconsumed phrase.
func New(log *slog.Logger, svc *captcha.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.captchaimg.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		sessionID := cookies.BrowserID(w, r)

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "no-store")

		if err := svc.Generate(ctx, sessionID, w); err != nil {
			log.Error("failed to generate captcha", sl.Err(err))

			http.Error(w, "internal error", http.StatusInternalServerError)
		}
	}
}
