package metrics

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsServer serves /metrics for one namespace on its own listener.
type MetricsServer struct {
	*http.Server
	registry *prometheus.Registry
}

// New creates a metrics server exposing the package collectors together
// with the Go runtime and process collectors. Nothing listens until
// ListenAndServe is called.
func New(namespace, listenAddr string) (*MetricsServer, error) {
	registry := prometheus.NewRegistry()
	if err := registry.Register(collectors.NewGoCollector()); err != nil {
		return nil, err
	}
	if err := registry.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{Namespace: namespace})); err != nil {
		return nil, err
	}
	for _, c := range all() {
		if err := registry.Register(c); err != nil {
			return nil, err
		}
	}

	mux := chi.NewRouter()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))

	return &MetricsServer{
		Server: &http.Server{
			Addr:              listenAddr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
		registry: registry,
	}, nil
}

// Registry returns the registry served by the server.
func (s *MetricsServer) Registry() *prometheus.Registry {
	return s.registry
}
