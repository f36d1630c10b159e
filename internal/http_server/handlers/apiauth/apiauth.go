// Package apiauth exposes the bearer-token endpoints of the public API.
// Unlike the session endpoints it answers with plain JSON objects, not
// the code/message envelope.
package apiauth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mwx2006/blessing-skin-server/internal/auth/apitoken"
	resp "github.com/mwx2006/blessing-skin-server/internal/lib/api/response"
	sl "github.com/mwx2006/blessing-skin-server/internal/lib/logger"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
)

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type TokenResponse struct {
	Token string `json:"token"`
}

func NewLogin(
	log *slog.Logger,
	validate *validator.Validate,
	issuer *apitoken.Issuer,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.apiauth.NewLogin"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var req LoginRequest

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

		// Bad credentials produce an empty token, not an error.
		token, err := issuer.Login(ctx, req.Email, req.Password)
		if err != nil {
			log.Error("failed to issue token", sl.Err(err))

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, resp.Error(resp.CodeFailed, "internal error"))

			return
		}

		render.JSON(w, r, TokenResponse{Token: token})
	}
}

func NewLogout(log *slog.Logger, issuer *apitoken.Issuer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.apiauth.NewLogout"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		token, ok := bearerToken(r)
		if !ok {
			w.WriteHeader(http.StatusUnauthorized)

			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		if err := issuer.Logout(ctx, token); err != nil {
			if errors.Is(err, apitoken.ErrInvalidToken) {
				w.WriteHeader(http.StatusUnauthorized)

				return
			}

			log.Error("failed to revoke token", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)

			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func NewRefresh(log *slog.Logger, issuer *apitoken.Issuer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.apiauth.NewRefresh"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		token, ok := bearerToken(r)
		if !ok {
			w.WriteHeader(http.StatusUnauthorized)

			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		fresh, err := issuer.Refresh(ctx, token)
		if err != nil {
			if errors.Is(err, apitoken.ErrInvalidToken) {
				w.WriteHeader(http.StatusUnauthorized)

				return
			}

			log.Error("failed to refresh token", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)

			return
		}

		render.JSON(w, r, TokenResponse{Token: fresh})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")

	token, found := strings.CutPrefix(header, "Bearer ")
	if !found || token == "" {
		return "", false
	}

	return token, true
}
