package server

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/cloo-solutions/docqa/internal/api"
	"github.com/cloo-solutions/docqa/internal/api/handlers"
	"github.com/cloo-solutions/docqa/internal/api/middleware"
	"github.com/cloo-solutions/docqa/internal/logging"
	"github.com/go-chi/chi/v5"
)

type RouterConfig struct {
	QAHandler  *handlers.QAHandler
	Logger     *slog.Logger
	UserHasher *logging.UserHasher
	// Ready reports backend health for /ready; nil means always ready.
	Ready func(ctx context.Context) error
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	const maxBodyBytes int64 = 1 * 1024 * 1024

	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}

	r.Use(middleware.RequestID)
	r.Use(middleware.Sentry(cfg.UserHasher))
	r.Use(middleware.AccessLog(logger, cfg.UserHasher))
	r.Use(middleware.MaxBodyBytes(maxBodyBytes))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		api.Success(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/ready", func(w http.ResponseWriter, r *http.Request) {
		if cfg.Ready != nil {
			if err := cfg.Ready(r.Context()); err != nil {
				logging.From(r.Context()).Warn("readiness check failed", "error", err)
				api.Error(w, http.StatusServiceUnavailable, "not ready")
				return
			}
		}
		api.Success(w, http.StatusOK, map[string]string{"status": "ready"})
	})

	r.Route("/documents/{documentID}", func(r chi.Router) {
		r.Post("/index", cfg.QAHandler.Index)
		r.Delete("/index", cfg.QAHandler.Purge)
		r.Get("/suggestions", cfg.QAHandler.Suggestions)

		r.Group(func(r chi.Router) {
			r.Use(middleware.UserIdentity)
			r.Post("/questions", cfg.QAHandler.Ask)
			r.Get("/conversations", cfg.QAHandler.ListConversations)
		})
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.UserIdentity)
		r.Get("/conversations/{conversationID}", cfg.QAHandler.GetConversation)
	})

	return r
}
