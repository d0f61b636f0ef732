// Package metrics exposes Prometheus metrics for the cache client.
//
// Init creates the process registry and, when enabled, serves it over HTTP.
// A Collector is an observe.Sink that turns dispatcher events and reconnects
// into counters and histograms.
//
// Example usage:
//
//	if err := metrics.Init(cfg.Metrics, logger); err != nil {
//	    log.Fatal(err)
//	}
//	defer metrics.Shutdown(context.Background())
//
//	collector, err := metrics.NewCollector(metrics.Registry(), cfg.Metrics.Namespace)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	d := dispatch.New(manager, dispatch.WithSink(collector))
package metrics

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/Combine-Capital/rcache/pkg/config"
	"github.com/Combine-Capital/rcache/pkg/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// registry is the process-wide registry created by Init
	registry *prometheus.Registry

	// registryMu protects registry and initialized
	registryMu sync.RWMutex

	initialized bool

	// server is the HTTP server for the metrics endpoint
	server *http.Server

	serverMu sync.Mutex
)

// Init creates the registry and, if metrics are enabled, starts an HTTP
// server on the configured port and path.
//
// This function is safe to call multiple times - subsequent calls are no-ops.
func Init(cfg config.MetricsConfig, logger *logging.Logger) error {
	registryMu.Lock()
	defer registryMu.Unlock()

	if initialized {
		return nil
	}
	if logger == nil {
		logger = logging.Nop()
	}

	registry = prometheus.NewRegistry()
	if !cfg.Enabled {
		initialized = true
		return nil
	}

	if cfg.Port <= 0 {
		return fmt.Errorf("metrics port is required when metrics are enabled")
	}
	path := cfg.Path
	if path == "" {
		path = "/metrics"
	}

	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	mux := http.NewServeMux()
	mux.Handle(path, Handler(registry))

	serverMu.Lock()
	server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	srv := server
	serverMu.Unlock()

	log := logger.WithComponent("metrics")
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Str("addr", srv.Addr).Msg("Metrics server failed")
		}
	}()
	log.Info().Str("addr", srv.Addr).Str("path", path).Msg("Metrics server started")

	initialized = true
	return nil
}

// Handler returns an HTTP handler exposing the metrics in g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Shutdown gracefully shuts down the metrics HTTP server.
func Shutdown(ctx context.Context) error {
	serverMu.Lock()
	defer serverMu.Unlock()

	if server == nil {
		return nil
	}
	err := server.Shutdown(ctx)
	server = nil
	return err
}

// Registry returns the process registry, or nil before Init.
func Registry() *prometheus.Registry {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return registry
}

// IsInitialized returns true if Init() has been called successfully.
func IsInitialized() bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return initialized
}
