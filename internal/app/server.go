package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"

	"github.com/specialistvlad/livexpr"
)

// metricsServer exposes the observer's counters, through an OpenTelemetry
// meter provider, and its resident gauges on one Prometheus registry.
type metricsServer struct {
	reg      *prometheus.Registry
	provider *sdkmetric.MeterProvider
	server   *http.Server
}

// newMetricsServer builds the registry and the meter provider. The
// observer's options must pick up the provider before the observer exists.
func newMetricsServer() (*metricsServer, error) {
	reg := prometheus.NewRegistry()
	exporter, err := promexporter.New(promexporter.WithRegisterer(reg))
	if err != nil {
		return nil, fmt.Errorf("create prometheus exporter: %w", err)
	}
	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(resource.NewSchemaless(attribute.String("service.name", "livexpr"))),
		sdkmetric.WithReader(exporter),
	)
	return &metricsServer{reg: reg, provider: provider}, nil
}

// healthHandler answers liveness probes.
func (a *App) healthHandler(w http.ResponseWriter, r *http.Request) {
	a.logger.Debug("Health check endpoint hit.", "remote_addr", r.RemoteAddr, "path", r.URL.Path)
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "OK")
}

// start serves /health and /metrics on port.
func (m *metricsServer) start(a *App, obs *livexpr.Observer, port int) error {
	a.logger.Debug("Configuring metrics server.")
	if err := m.reg.Register(livexpr.NewCollector(obs)); err != nil {
		return fmt.Errorf("failed to register collector: %w", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", a.healthHandler)
	mux.Handle("/metrics", promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{}))

	addr := fmt.Sprintf(":%d", port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	m.server = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		a.logger.Info("Metrics server starting", "address", fmt.Sprintf("http://localhost%s/metrics", addr))
		if err := m.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("Metrics server failed unexpectedly", "error", err)
		}
	}()
	return nil
}

func (m *metricsServer) close(ctx context.Context, a *App) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if m.server != nil {
		if err := m.server.Shutdown(ctx); err != nil {
			a.logger.Error("Metrics server shutdown failed", "error", err)
		}
	}
	if err := m.provider.Shutdown(ctx); err != nil {
		a.logger.Error("Meter provider shutdown failed", "error", err)
	}
	a.logger.Debug("Metrics server shut down gracefully.")
}
