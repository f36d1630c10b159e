package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mwx2006/blessing-skin-server/internal/auth"
	"github.com/mwx2006/blessing-skin-server/internal/auth/apitoken"
	"github.com/mwx2006/blessing-skin-server/internal/captcha"
	"github.com/mwx2006/blessing-skin-server/internal/config"
	"github.com/mwx2006/blessing-skin-server/internal/events"
	"github.com/mwx2006/blessing-skin-server/internal/http_server/handlers/apiauth"
	"github.com/mwx2006/blessing-skin-server/internal/http_server/handlers/captchaimg"
	"github.com/mwx2006/blessing-skin-server/internal/http_server/handlers/forgot"
	"github.com/mwx2006/blessing-skin-server/internal/http_server/handlers/login"
	"github.com/mwx2006/blessing-skin-server/internal/http_server/handlers/logout"
	"github.com/mwx2006/blessing-skin-server/internal/http_server/handlers/oauthlogin"
	"github.com/mwx2006/blessing-skin-server/internal/http_server/handlers/register"
	"github.com/mwx2006/blessing-skin-server/internal/http_server/handlers/reset"
	"github.com/mwx2006/blessing-skin-server/internal/http_server/handlers/verify"
	"github.com/mwx2006/blessing-skin-server/internal/mail"
	rateLimit "github.com/mwx2006/blessing-skin-server/internal/middleware/ratelimit"
	"github.com/mwx2006/blessing-skin-server/internal/oauth"
	"github.com/mwx2006/blessing-skin-server/internal/options"
	"github.com/mwx2006/blessing-skin-server/internal/rabbitmq"
	"github.com/mwx2006/blessing-skin-server/internal/storage/postgres"
	storagerds "github.com/mwx2006/blessing-skin-server/internal/storage/redis"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-playground/validator/v10"
)

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

func main() {
	cfg := config.MustLoad("./config/config.yaml")

	log := setupLogger(cfg.Env)

	log.Info("starting skin server", slog.String("env", cfg.Env))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigs
		log.Info("shutdown signal received")
		cancel()
	}()

	storage, err := postgres.New(ctx, cfg)
	if err != nil {
		log.Error("failed to connect postgres", slog.String("err", err.Error()))
		os.Exit(1)
	}
	defer storage.Close()

	rds, err := storagerds.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Error("failed to connect redis", slog.String("err", err.Error()))
		os.Exit(1)
	}
	defer rds.Close()

	msgBroker, err := rabbitmq.New(cfg.RabbitMQ.URL, cfg.RabbitMQ.QueueName)
	if err != nil {
		log.Error("failed to connect rabbitmq", slog.String("err", err.Error()))
		os.Exit(1)
	}
	defer msgBroker.Close()

	opts, err := options.Load(ctx, storage)
	if err != nil {
		log.Error("failed to load site options", slog.String("err", err.Error()))
		os.Exit(1)
	}

	dispatcher := events.NewDispatcher()

	captchaService := captcha.New(rds)

	authService := auth.New(log, auth.Params{
		Users:    storage,
		Players:  storage,
		Throttle: rds,
		Cooldown: rds,
		Sessions: rds,
		Captcha:  captchaService,

		Mailer:            mail.NewSMTP(cfg.Mail),
		VerificationQueue: msgBroker,
		RecoveryEnabled:   cfg.Mail.RecoveryEnabled(),

		Dispatcher: dispatcher,
		Options:    opts,

		Secret:  cfg.Tokens.Secret,
		BaseURL: cfg.Site.BaseURL,

		SessionTTL:           cfg.Tokens.SessionTTL,
		ResetTokenTTL:        cfg.Tokens.ResetTokenTTL,
		VerificationTokenTTL: cfg.Tokens.VerificationTokenTTL,
	})

	issuer := apitoken.New(log, storage, rds, cfg.Tokens.Secret, cfg.Tokens.APITokenTTL)

	registry := oauth.NewRegistry(oauth.NewGitHub(), oauth.NewGoogle())

	router := setupRouter(log, cfg, authService, issuer, registry, captchaService)

	srv := &http.Server{
		Addr:         cfg.HTTPServer.Address,
		Handler:      router,
		ReadTimeout:  cfg.HTTPServer.Timeout,
		WriteTimeout: cfg.HTTPServer.Timeout,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}

	go func() {
		log.Info("HTTP server is running", slog.String("address", cfg.HTTPServer.Address))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server failed", slog.String("err", err.Error()))
			cancel()
		}
	}()

	<-ctx.Done()

	log.Info("shutting down HTTP server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown error", slog.String("err", err.Error()))
	} else {
		log.Info("server stopped gracefully")
	}
}

func setupRouter(
	log *slog.Logger,
	cfg *config.Config,
	authService *auth.Auth,
	issuer *apitoken.Issuer,
	registry *oauth.Registry,
	captchaService *captcha.Service,
) *chi.Mux {
	validate := validator.New()

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Route("/auth", func(r chi.Router) {
		r.With(rateLimit.Login()).Post("/login",
			login.New(log, validate, authService, cfg.Tokens.SessionTTL),
		)
		r.With(rateLimit.OAuth()).Post("/login/{provider}",
			oauthlogin.New(log, validate, registry, authService, cfg.Tokens.SessionTTL),
		)
		r.Post("/logout",
			logout.New(log, authService),
		)
		r.With(rateLimit.Register()).Post("/register",
			register.New(log, validate, authService, cfg.Tokens.SessionTTL),
		)
		r.With(rateLimit.Forgot()).Post("/forgot",
			forgot.New(log, validate, authService),
		)
		r.With(rateLimit.Reset()).Post("/reset/{uid}",
			reset.New(log, validate, authService),
		)
		r.With(rateLimit.Verify()).Get("/verify",
			verify.New(log, authService),
		)
		r.With(rateLimit.Captcha()).Get("/captcha",
			captchaimg.New(log, captchaService),
		)
	})

	r.Route("/api/auth", func(r chi.Router) {
		r.Use(rateLimit.APIToken())
		r.Post("/login", apiauth.NewLogin(log, validate, issuer))
		r.Post("/logout", apiauth.NewLogout(log, issuer))
		r.Post("/refresh", apiauth.NewRefresh(log, issuer))
	})

	return r
}

func setupLogger(env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case envLocal:
		log = slog.New(
			slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envDev:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envProd:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	default:
		log = slog.New(
			slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	}

	return log
}
