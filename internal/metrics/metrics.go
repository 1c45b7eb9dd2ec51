// Package metrics provides Prometheus metrics for transfers.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rescale/twinpane/internal/logging"
)

// Collector owns a registry and the transfer metrics registered on it.
// A nil *Collector is valid and records nothing.
type Collector struct {
	registry *prometheus.Registry

	filesTotal       *prometheus.CounterVec
	bytesTotal       *prometheus.CounterVec
	transfersTotal   *prometheus.CounterVec
	transferDuration *prometheus.HistogramVec
	activeTransfers  prometheus.Gauge
}

// NewCollector creates a collector on a fresh registry.
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Collector{
		registry: reg,

		filesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "twinpane_transfer_files_total",
				Help: "Total number of leaf files copied, by direction and result",
			},
			[]string{"direction", "result"},
		),

		bytesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "twinpane_transfer_bytes_total",
				Help: "Total bytes streamed across the pane boundary",
			},
			[]string{"direction"},
		),

		transfersTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "twinpane_transfers_total",
				Help: "Total number of transfers, by direction and terminal status",
			},
			[]string{"direction", "status"},
		),

		transferDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "twinpane_transfer_duration_seconds",
				Help:    "Wall time of whole transfers in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"direction"},
		),

		activeTransfers: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "twinpane_transfers_active",
				Help: "Number of transfers currently running",
			},
		),
	}
}

// Registry exposes the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// RecordFile records one leaf copy.
func (c *Collector) RecordFile(direction string, bytes int64, success bool) {
	if c == nil {
		return
	}
	result := "ok"
	if !success {
		result = "failed"
	}
	c.filesTotal.WithLabelValues(direction, result).Inc()
	if bytes > 0 {
		c.bytesTotal.WithLabelValues(direction).Add(float64(bytes))
	}
}

// TransferStarted increments the active gauge.
func (c *Collector) TransferStarted() {
	if c == nil {
		return
	}
	c.activeTransfers.Inc()
}

// TransferFinished records a terminal status and decrements the active gauge.
func (c *Collector) TransferFinished(direction, status string, duration time.Duration) {
	if c == nil {
		return
	}
	c.activeTransfers.Dec()
	c.transfersTotal.WithLabelValues(direction, status).Inc()
	c.transferDuration.WithLabelValues(direction).Observe(duration.Seconds())
}

// TransferRejected counts a transfer refused before any I/O.
func (c *Collector) TransferRejected(direction string) {
	if c == nil {
		return
	}
	c.transfersTotal.WithLabelValues(direction, "rejected").Inc()
}

// Handler returns the Prometheus metrics HTTP handler for this collector.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is cancelled.
func (c *Collector) Serve(ctx context.Context, addr string, logger *logging.Logger) error {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	logger.Info().Str("addr", addr).Msg("Serving metrics")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
