package app

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/upb/llm-chat-relay/config"
	"github.com/upb/llm-chat-relay/internal/observability"
	"github.com/upb/llm-chat-relay/models"
	"github.com/upb/llm-chat-relay/services/dispatch"
	"github.com/upb/llm-chat-relay/services/providers"
	"github.com/upb/llm-chat-relay/services/providers/openai"
	"go.uber.org/zap"
)

// Dependencies holds all application dependencies. This is the central
// wiring point for dependency injection.
type Dependencies struct {
	Config *config.Config
	Logger *zap.Logger

	Catalog  *models.ModelCatalog
	Provider providers.Provider
	Dispatch *dispatch.Service

	Registry *prometheus.Registry
	Metrics  *observability.Metrics
}

// NewDependencies creates and wires up all application dependencies.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	catalog := models.DefaultCatalog()
	deps.Catalog = catalog

	deps.Provider = openai.New(providers.Config{
		APIKey:  cfg.Upstream.APIKey,
		BaseURL: cfg.Upstream.BaseURL,
		Timeout: cfg.Upstream.Timeout,
	})
	logger.Info("upstream provider initialized",
		zap.String("provider", deps.Provider.Name()),
		zap.String("base_url", cfg.Upstream.BaseURL),
		zap.Duration("attempt_timeout", cfg.Upstream.Timeout))

	if cfg.Observability.MetricsEnabled {
		deps.Registry = prometheus.NewRegistry()
		deps.Metrics = observability.NewMetrics(deps.Registry)
	}

	deps.Dispatch = dispatch.NewService(deps.Catalog, deps.Provider, logger, deps.Metrics)

	logger.Info("all dependencies initialized",
		zap.Strings("models", catalog.Keys()),
		zap.Strings("fallback_order", catalog.FallbackOrder()),
		zap.Bool("metrics_enabled", cfg.Observability.MetricsEnabled))

	return deps, nil
}

// Close gracefully shuts down all dependencies
func (d *Dependencies) Close(ctx context.Context) error {
	d.Logger.Info("shutting down dependencies")

	if d.Logger != nil {
		_ = d.Logger.Sync()
	}

	return nil
}
