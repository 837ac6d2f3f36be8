// Package router assembles the HTTP routing table.
package router

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wolfman30/vetchat-ai-platform/internal/appointments"
	"github.com/wolfman30/vetchat-ai-platform/internal/conversation"
	httpmiddleware "github.com/wolfman30/vetchat-ai-platform/internal/http/middleware"
	"github.com/wolfman30/vetchat-ai-platform/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger              *logging.Logger
	ChatHandler         *conversation.Handler
	AppointmentsHandler *appointments.Handler
	MetricsHandler      http.Handler
	CORSAllowedOrigins  []string
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	r.Get("/health", healthCheck)
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	r.Route("/api", func(api chi.Router) {
		api.Route("/chat", func(chat chi.Router) {
			chat.Post("/session", cfg.ChatHandler.Session)
			chat.Post("/message", cfg.ChatHandler.Message)
		})
		api.Get("/conversations/{sessionID}", cfg.ChatHandler.History)
		if cfg.AppointmentsHandler != nil {
			api.Route("/appointments", func(appts chi.Router) {
				appts.Get("/", cfg.AppointmentsHandler.List)
				appts.Get("/session/{sessionID}", cfg.AppointmentsHandler.GetBySession)
			})
		}
	})

	return r
}

func healthCheck(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
