package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const (
	StatusOK      = "ok"
	StatusAnomaly = "anomaly"
	StatusFailed  = "failed"
)

// Metrics holds the collectors updated once per benchmark configuration.
// Each instance owns its registry so runs and tests do not share state.
type Metrics struct {
	Registry *prometheus.Registry

	GFLOPS         *prometheus.GaugeVec
	KernelDuration *prometheus.HistogramVec
	DataSize       *prometheus.GaugeVec
	Runs           *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),

		GFLOPS: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "perfamx_gflops",
			Help: "Achieved throughput of the last run of a configuration in GFLOPS",
		}, []string{"mode", "dims"}),

		KernelDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "perfamx_kernel_duration_ns",
			Help:    "Kernel duration reported by the backend in nanoseconds",
			Buckets: prometheus.ExponentialBuckets(1e3, 4, 16), // 1µs to ~1000s
		}, []string{"mode"}),

		DataSize: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "perfamx_data_size_mib",
			Help: "Operand footprint of a configuration in MiB",
		}, []string{"mode", "dims"}),

		Runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "perfamx_runs_total",
			Help: "Benchmark configurations executed, by outcome",
		}, []string{"mode", "status"}),
	}
	m.Registry.MustRegister(m.GFLOPS, m.KernelDuration, m.DataSize, m.Runs)
	return m
}

// Observe records a completed configuration. gflops is ignored for
// anomalous rows.
func (m *Metrics) Observe(mode, dims string, dataSizeMiB float64, durationNs int64, gflops float64, anomaly bool) {
	m.DataSize.WithLabelValues(mode, dims).Set(dataSizeMiB)
	m.KernelDuration.WithLabelValues(mode).Observe(float64(durationNs))
	if anomaly {
		m.Runs.WithLabelValues(mode, StatusAnomaly).Inc()
		return
	}
	m.GFLOPS.WithLabelValues(mode, dims).Set(gflops)
	m.Runs.WithLabelValues(mode, StatusOK).Inc()
}

// Failed records a configuration that produced no row.
func (m *Metrics) Failed(mode string) {
	m.Runs.WithLabelValues(mode, StatusFailed).Inc()
}

// Server exposes the registry over HTTP for the lifetime of a run.
type Server struct {
	srv *http.Server
	log *zap.Logger
}

func NewServer(addr string, m *Metrics, log *zap.Logger) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{}))
	return &Server{
		srv: &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second},
		log: log,
	}
}

// Start listens in the background.
func (s *Server) Start() {
	go func() {
		s.log.Info("Serving metrics", zap.String("address", s.srv.Addr))
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("metrics server failed", zap.Error(err))
		}
	}()
}

func (s *Server) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
