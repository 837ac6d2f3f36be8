package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/vetchat-ai-platform/internal/api/router"
	"github.com/wolfman30/vetchat-ai-platform/internal/appointments"
	appconfig "github.com/wolfman30/vetchat-ai-platform/internal/config"
	"github.com/wolfman30/vetchat-ai-platform/internal/conversation"
	"github.com/wolfman30/vetchat-ai-platform/internal/observability/metrics"
	"github.com/wolfman30/vetchat-ai-platform/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	if cfg.Env == "development" {
		logger = logging.NewText(cfg.LogLevel)
	}
	logger.Info("starting vetchat-ai-platform API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		logger.Error("failed to connect to redis", "addr", cfg.RedisAddr, "error", err)
		os.Exit(1)
	}
	store := conversation.NewRedisStore(redisClient)

	if cfg.DatabaseURL == "" {
		logger.Error("DATABASE_URL is required")
		os.Exit(1)
	}
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	if err := db.Ping(); err != nil {
		logger.Error("failed to ping database", "error", err)
		os.Exit(1)
	}
	apptRepo := appointments.NewRepository(db)

	var answers conversation.AnswerGenerator
	if cfg.GeminiAPIKey != "" {
		gemini, err := conversation.NewGeminiLLMClient(context.Background(), cfg.GeminiAPIKey, cfg.GeminiModels[0])
		if err != nil {
			logger.Error("failed to create gemini client", "error", err)
			os.Exit(1)
		}
		defer func() { _ = gemini.Close() }()
		chain := conversation.NewModelChainClient(gemini, cfg.GeminiModels, logger)
		answers = conversation.NewResponder(chain, cfg.LLMTimeout)
	} else {
		// Without a key the assistant still books appointments; free-text
		// questions get the apology reply.
		logger.Warn("GEMINI_API_KEY not set, answer generation disabled")
	}

	chatMetrics := metrics.NewChatMetrics(nil)
	orchestrator := conversation.NewOrchestrator(store, apptRepo, answers, logger, chatMetrics)

	chatHandler := conversation.NewHandler(orchestrator, logger)
	apptHandler := appointments.NewHandler(apptRepo, logger)

	r := router.New(&router.Config{
		Logger:              logger,
		ChatHandler:         chatHandler,
		AppointmentsHandler: apptHandler,
		MetricsHandler:      promhttp.Handler(),
		CORSAllowedOrigins:  cfg.CORSAllowedOrigins,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
