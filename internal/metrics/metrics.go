// Package metrics exposes live run figures to Prometheus.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"chainq/internal/stats"
)

const namespace = "chainq"

// Exporter is a stats.Observer that turns every sample into Prometheus
// series on its own registry.
type Exporter struct {
	registry *prometheus.Registry

	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	bytes    *prometheus.CounterVec
	inflight prometheus.Gauge
}

func NewExporter() *Exporter {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Exporter{
		registry: reg,
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Requests executed by virtual users.",
		}, []string{"scenario", "request", "status"}),
		latency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "response_time_seconds",
			Help:      "Response time of OK and KO requests.",
			Buckets: []float64{
				0.005, 0.01, 0.025, 0.05,
				0.1, 0.2, 0.3, 0.5,
				1, 2, 5, 10,
			},
		}, []string{"scenario", "request"}),
		bytes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "response_bytes_total",
			Help:      "Response body bytes received.",
		}, []string{"scenario"}),
		inflight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "users_inflight",
			Help:      "Virtual users currently running.",
		}),
	}
}

func (e *Exporter) Observe(s stats.Sample) {
	e.requests.WithLabelValues(s.Scenario, s.Name, s.Status.String()).Inc()
	e.bytes.WithLabelValues(s.Scenario).Add(float64(s.Bytes))
	if s.Status != stats.Cancelled {
		e.latency.WithLabelValues(s.Scenario, s.Name).Observe(s.Latency.Seconds())
	}
}

// SetInflight publishes the number of running users.
func (e *Exporter) SetInflight(n int64) { e.inflight.Set(float64(n)) }

func (e *Exporter) Registry() *prometheus.Registry { return e.registry }

func (e *Exporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
}

// Router mounts the exposition handler on /metrics.
func (e *Exporter) Router() http.Handler {
	r := chi.NewRouter()
	r.Method(http.MethodGet, "/metrics", e.Handler())
	return r
}

// Serve exposes /metrics on addr until ctx is done.
func (e *Exporter) Serve(ctx context.Context, addr string, log logrus.FieldLogger) error {
	srv := &http.Server{Addr: addr, Handler: e.Router(), ReadHeaderTimeout: 5 * time.Second}

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	log.WithField("addr", addr).Info("serving metrics")

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
