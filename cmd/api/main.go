package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/memfill/memfill/internal/api"
	"github.com/memfill/memfill/internal/api/handlers"
	"github.com/memfill/memfill/internal/config"
	"github.com/memfill/memfill/internal/llm"
	"github.com/memfill/memfill/internal/observability"
	"github.com/memfill/memfill/internal/repository/sqlite"
	"github.com/memfill/memfill/internal/services/autofill"
	"github.com/memfill/memfill/internal/services/capture"
	"github.com/memfill/memfill/internal/services/detection"
	"github.com/memfill/memfill/internal/services/matching"
)

func main() {
	// Load .env if present; real env vars win
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := initLogger(string(cfg.Env), cfg.GetLogLevel())
	defer logger.Sync()

	logger.Info("Starting memfill API",
		zap.String("version", cfg.App.Version),
		zap.String("environment", string(cfg.Env)),
	)

	db, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		logger.Fatal("Failed to open database", zap.Error(err))
	}
	defer db.Close()
	logger.Info("Opened database", zap.String("path", cfg.Database.Path))

	metrics := observability.InitMetrics(cfg.App.Name)

	repo := sqlite.NewMemoryRepository(db)

	provider, err := buildProvider(cfg.LLM)
	if err != nil {
		logger.Warn("LLM provider unavailable, matching will use fallback heuristics", zap.Error(err))
		provider = nil
	} else {
		provider = llm.NewBreakerProvider(provider, logger)
		logger.Info("LLM provider ready",
			zap.String("provider", cfg.LLM.Provider),
			zap.String("model", provider.Model()),
		)
	}

	fallback := matching.NewFallbackMatcher(logger)
	matcher := matching.NewAIMatcher(provider, fallback, metrics, logger)

	detectionSvc := detection.NewService(logger)
	session := detection.NewSession()
	filler := autofill.NewFiller(session, metrics, logger)
	captureSvc := capture.NewService(repo, metrics, logger)

	router := api.NewRouter(api.RouterConfig{
		DB:           db,
		Memories:     handlers.NewMemoryHandler(repo, logger),
		Engine:       handlers.NewEngineHandler(detectionSvc, session, matcher, filler, captureSvc, repo, cfg.Autofill.ConfidenceThreshold, logger),
		Metrics:      metrics,
		Logger:       logger,
		EnableCORS:   cfg.Security.CORSEnabled,
		CORSOrigins:  cfg.Security.CORSAllowedOrigins,
		RateLimit:    cfg.Security.RateLimitPerMin,
		APIKeyHeader: cfg.Security.APIKeyHeader,
		APIKey:       cfg.Security.APIKey,
	})

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("API server listening", zap.String("addr", cfg.Server.Addr()))
		if cfg.Security.TLSEnabled {
			serverErrors <- server.ListenAndServeTLS(cfg.Security.TLSCertFile, cfg.Security.TLSKeyFile)
			return
		}
		serverErrors <- server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logger.Fatal("Server error", zap.Error(err))

	case sig := <-shutdown:
		logger.Info("Shutdown signal received", zap.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			logger.Error("Graceful shutdown failed, forcing close", zap.Error(err))
			server.Close()
		}

		logger.Info("Server stopped gracefully")
	}
}

// buildProvider constructs the configured LLM client. A nil provider is
// handled by the matcher, which falls back to heuristic matching.
func buildProvider(cfg config.LLMConfig) (llm.Provider, error) {
	switch cfg.Provider {
	case "openai":
		client, err := llm.NewOpenAIClient(llm.OpenAIConfig{
			APIKey:       cfg.OpenAIAPIKey,
			BaseURL:      cfg.OpenAIBaseURL,
			Model:        cfg.OpenAIModel,
			RateLimitRPM: cfg.RateLimitRPM,
			CacheTTL:     cfg.CacheTTL,
		})
		if err != nil {
			return nil, err
		}
		return client, nil
	default:
		client, err := llm.NewAnthropicClient(llm.Config{
			APIKey:       cfg.AnthropicAPIKey,
			Model:        cfg.AnthropicModel,
			Timeout:      cfg.Timeout,
			RateLimitRPM: cfg.RateLimitRPM,
			CacheTTL:     cfg.CacheTTL,
			MaxRetries:   cfg.MaxRetries,
		})
		if err != nil {
			return nil, err
		}
		return client, nil
	}
}

// initLogger creates a configured zap logger
func initLogger(env, level string) *zap.Logger {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	var zcfg zap.Config
	if env == "production" {
		zcfg = zap.NewProductionConfig()
	} else {
		zcfg = zap.NewDevelopmentConfig()
		zcfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	zcfg.Level = zap.NewAtomicLevelAt(zapLevel)

	logger, err := zcfg.Build()
	if err != nil {
		logger, _ = zap.NewProduction()
	}

	return logger
}
