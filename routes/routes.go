package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/upb/llm-chat-relay/app"
	"github.com/upb/llm-chat-relay/handlers"
	"github.com/upb/llm-chat-relay/middleware"
	"github.com/upb/llm-chat-relay/utils"
	"github.com/upb/llm-chat-relay/web"
)

// SetupRoutes configures all application routes and middleware
func SetupRoutes(deps *app.Dependencies) http.Handler {
	r := chi.NewRouter()

	// Core middleware. The request timeout must stay above the per-attempt
	// upstream timeout times the catalog size, or the fallback walk gets cut
	// short by our own server.
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(deps.Config.Server.RequestTimeout))

	// CORS middleware
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"http://localhost:*", "https://*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", middleware.RequestIDHeader},
		ExposedHeaders: []string{middleware.RequestIDHeader},
		MaxAge:         300,
	}))

	chatHandler := handlers.NewChatHandler(deps.Dispatch, deps.Logger)

	// Demo page
	r.Get("/", web.IndexHandler())

	// Chat relay endpoint
	r.Post("/chat", chatHandler.HandleChat)

	// Health check endpoints
	r.Get("/healthz", handlers.HealthCheck(deps))
	r.Get("/readyz", handlers.ReadinessCheck(deps))

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/models", handlers.ModelsHandler(deps))
	})

	// Prometheus metrics
	if deps.Config.Observability.MetricsEnabled && deps.Registry != nil {
		r.Get("/metrics", promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{}).ServeHTTP)
	}

	// 404 handler
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		_ = utils.WriteNotFound(w, "")
	})

	return r
}
