package telemetry

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/gtaroom/GTA-GAME-sub003/internal/infra/config"
)

// Provider bundles the process-wide metrics registry, the authorization
// metrics and the optional tracer provider.
type Provider struct {
	Registry *prometheus.Registry
	Authz    *AuthzMetrics
	Tracing  *TracerProvider
}

// Attach builds a dedicated Prometheus registry and, when an OTLP endpoint is
// configured, installs the global tracer provider.
func Attach(ctx context.Context, cfg *config.AppConfig, log *zap.Logger) (*Provider, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}
	if log == nil {
		log = zap.NewNop()
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	authz, err := NewAuthzMetrics(registry)
	if err != nil {
		return nil, err
	}

	provider := &Provider{Registry: registry, Authz: authz}

	if cfg.Telemetry.OTLPEndpoint == "" {
		log.Info("otlp endpoint not configured, tracing spans stay in-process")
		return provider, nil
	}

	tracing, err := NewTracerProvider(ctx, cfg.Telemetry, log)
	if err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}
	provider.Tracing = tracing

	return provider, nil
}

// Shutdown flushes pending spans.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil || p.Tracing == nil {
		return nil
	}
	return p.Tracing.Shutdown(ctx)
}
