package oauthlogin

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
	"github.com/mwx2006/blessing-skin-server/internal/oauth"
	"github.com/mwx2006/blessing-skin-server/pkg/clientip"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
)

type Request struct {
	AccessToken string `json:"access_token" validate:"required"`
}

type Response struct {
	resp.Response
}

type userData struct {
	UID      int64  `json:"uid"`
	Nickname string `json:"nickname"`
}

// New exchanges a provider access token for a local session. The
// provider name comes from the route.
func New(
	log *slog.Logger,
	validate *validator.Validate,
	registry *oauth.Registry,
	authService *auth.Auth,
	sessionTTL time.Duration,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.oauthlogin.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		provider, err := registry.Provider(chi.URLParam(r, "provider"))
		if err != nil {
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, resp.Error(resp.CodeFailed, "unknown identity provider"))

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

		ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
		defer cancel()

		profile, err := provider.FetchProfile(ctx, req.AccessToken)
		if err != nil {
			log.Error("failed to fetch external profile",
				slog.String("provider", provider.Name()), sl.Err(err))

			render.JSON(w, r, resp.Error(resp.CodeFailed, "failed to fetch profile from provider"))

			return
		}

		user, token, err := authService.OAuthLogin(ctx, profile, clientip.RealClientIP(r))
		if err != nil {
			if errors.Is(err, oauth.ErrUnsupportedProvider) {
				render.JSON(w, r, resp.Error(resp.CodeFailed, "provider did not supply an email address"))

				return
			}

			log.Error("external login failed", sl.Err(err))

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, resp.Error(resp.CodeFailed, "internal error"))

			return
		}

		cookies.SetSession(w, token, sessionTTL)

		render.JSON(w, r, Response{
			Response: resp.Response{
				Code:    resp.CodeOK,
				Message: "logged in successfully",
				Data:    userData{UID: user.UID, Nickname: user.Nickname},
			},
		})
	}
}
