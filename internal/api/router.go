package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/memfill/memfill/internal/api/handlers"
	"github.com/memfill/memfill/internal/api/middleware"
	"github.com/memfill/memfill/internal/observability"
	"github.com/memfill/memfill/internal/repository/sqlite"
	"github.com/memfill/memfill/pkg/httputil"
)

// Router holds the HTTP router and its dependencies
type Router struct {
	chi.Router
	logger *zap.Logger
}

// RouterConfig contains configuration for the router
type RouterConfig struct {
	DB           *sqlite.DB
	Memories     *handlers.MemoryHandler
	Engine       *handlers.EngineHandler
	Metrics      *observability.Metrics
	Logger       *zap.Logger
	EnableCORS   bool
	CORSOrigins  []string
	RateLimit    int
	APIKeyHeader string
	APIKey       string
}

// NewRouter creates a new HTTP router with all routes configured
func NewRouter(cfg RouterConfig) *Router {
	r := chi.NewRouter()

	// Base middleware stack
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.NewRecoveryMiddleware(cfg.Logger).Handler)
	r.Use(middleware.NewLoggingMiddleware(cfg.Logger).Handler)
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.HTTPMiddleware)
	}
	r.Use(chimw.Timeout(60 * time.Second))

	// CORS configuration
	if cfg.EnableCORS {
		origins := cfg.CORSOrigins
		if len(origins) == 0 {
			origins = []string{"*"}
		}
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   origins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-API-Key", "X-Request-ID"},
			ExposedHeaders:   []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	if cfg.RateLimit > 0 {
		r.Use(middleware.NewRateLimitMiddleware(cfg.RateLimit, true).Handler)
	}

	// Health check endpoints (no auth required)
	r.Get("/health", healthHandler)
	r.Get("/ready", readyHandler(cfg.DB))

	if cfg.Metrics != nil {
		r.Handle("/metrics", cfg.Metrics.Handler())
	}

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.NewAuthMiddleware(cfg.APIKeyHeader, cfg.APIKey).Handler)

		// Memory store routes
		r.Route("/memories", func(r chi.Router) {
			r.Get("/", cfg.Memories.List)
			r.Post("/", cfg.Memories.Create)
			r.Get("/export", cfg.Memories.Export)
			r.Post("/import", cfg.Memories.Import)
			r.Get("/{id}", cfg.Memories.Get)
			r.Put("/{id}", cfg.Memories.Update)
			r.Delete("/{id}", cfg.Memories.Delete)
		})

		// Engine routes
		r.Post("/detect", cfg.Engine.Detect)
		r.Post("/match", cfg.Engine.Match)
		r.Post("/autofill", cfg.Engine.Autofill)
		r.Post("/capture", cfg.Engine.Capture)
		r.Post("/fill", cfg.Engine.Fill)
	})

	return &Router{
		Router: r,
		logger: cfg.Logger,
	}
}

// healthHandler returns basic health status
func healthHandler(w http.ResponseWriter, r *http.Request) {
	httputil.JSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "memfill-api",
	})
}

// readyHandler checks if all dependencies are ready
func readyHandler(db *sqlite.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := make(map[string]string)
		allHealthy := true

		if db != nil {
			if err := db.Health(r.Context()); err != nil {
				checks["database"] = "unhealthy: " + err.Error()
				allHealthy = false
			} else {
				checks["database"] = "healthy"
			}
		} else {
			checks["database"] = "not configured"
		}

		status := http.StatusOK
		statusText := "ready"
		if !allHealthy {
			status = http.StatusServiceUnavailable
			statusText = "not ready"
		}

		httputil.JSON(w, status, map[string]any{
			"status": statusText,
			"checks": checks,
		})
	}
}
