// Package monitor exposes Prometheus metrics for the watcher.
package monitor

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const namespace = "swapwatch"

// Metrics holds the watcher's collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	// Window metrics
	HeadersReceived  prometheus.Counter
	Discontinuities  prometheus.Counter
	ParentMismatches prometheus.Counter
	DeepReorgs       prometheus.Counter
	WindowLength     prometheus.Gauge

	// Confirmation metrics
	BlocksConfirmed    prometheus.Counter
	LastConfirmedBlock prometheus.Gauge
	BlocksSkipped      prometheus.Counter
	LogsFetched        prometheus.Counter
	PrefetchHits       *prometheus.CounterVec
	LogFetchDuration   prometheus.Histogram

	// Decode metrics
	SwapsDecoded *prometheus.CounterVec
	SwapVolume   *prometheus.CounterVec
	DecodeErrors *prometheus.CounterVec
}

// NewMetrics creates the collectors on a private registry that also carries
// the Go and process collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		HeadersReceived: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "window",
			Name:      "headers_received_total",
			Help:      "Total number of block headers received from the head source",
		}),
		Discontinuities: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "window",
			Name:      "discontinuities_total",
			Help:      "Total number of headers dropped for not advancing past the window tail",
		}),
		ParentMismatches: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "window",
			Name:      "parent_mismatches_total",
			Help:      "Total number of adjacent headers whose parent hash differs from the tail hash",
		}),
		DeepReorgs: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "window",
			Name:      "deep_reorgs_total",
			Help:      "Total number of reorganizations deeper than the confirmation depth",
		}),
		WindowLength: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "window",
			Name:      "length",
			Help:      "Current number of unconfirmed headers in the window",
		}),

		BlocksConfirmed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "blocks_confirmed_total",
			Help:      "Total number of blocks popped from the window and processed",
		}),
		LastConfirmedBlock: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "last_confirmed_block",
			Help:      "Number of the most recently processed confirmed block",
		}),
		BlocksSkipped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "blocks_skipped_total",
			Help:      "Total number of confirmed blocks skipped because the checkpoint covers them",
		}),
		LogsFetched: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "logs_fetched_total",
			Help:      "Total number of logs fetched for confirmed blocks",
		}),
		PrefetchHits: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "prefetch_lookups_total",
			Help:      "Prefetch cache lookups at confirmation time by result",
		}, []string{"result"}),
		LogFetchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "log_fetch_duration_seconds",
			Help:      "Latency of per-block log fetches",
			Buckets:   prometheus.DefBuckets,
		}),

		SwapsDecoded: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "decoder",
			Name:      "swaps_decoded_total",
			Help:      "Total number of swap events decoded by direction",
		}, []string{"direction"}),
		SwapVolume: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "decoder",
			Name:      "swap_volume_total",
			Help:      "Absolute token amount swapped, in token units",
		}, []string{"token"}),
		DecodeErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "decoder",
			Name:      "errors_total",
			Help:      "Total number of logs that failed to decode by reason",
		}, []string{"reason"}),
	}
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) HeaderReceived() {
	if m == nil {
		return
	}
	m.HeadersReceived.Inc()
}

func (m *Metrics) Discontinuity() {
	if m == nil {
		return
	}
	m.Discontinuities.Inc()
}

func (m *Metrics) ParentMismatch() {
	if m == nil {
		return
	}
	m.ParentMismatches.Inc()
}

func (m *Metrics) DeepReorg() {
	if m == nil {
		return
	}
	m.DeepReorgs.Inc()
}

func (m *Metrics) SetWindowLength(n int) {
	if m == nil {
		return
	}
	m.WindowLength.Set(float64(n))
}

func (m *Metrics) BlockConfirmed(number uint64, logs int) {
	if m == nil {
		return
	}
	m.BlocksConfirmed.Inc()
	m.LastConfirmedBlock.Set(float64(number))
	m.LogsFetched.Add(float64(logs))
}

func (m *Metrics) BlockSkipped() {
	if m == nil {
		return
	}
	m.BlocksSkipped.Inc()
}

// PrefetchLookup records whether confirmation found prefetched logs.
func (m *Metrics) PrefetchLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.PrefetchHits.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveLogFetch(d time.Duration) {
	if m == nil {
		return
	}
	m.LogFetchDuration.Observe(d.Seconds())
}

func (m *Metrics) SwapDecoded(direction string) {
	if m == nil {
		return
	}
	m.SwapsDecoded.WithLabelValues(direction).Inc()
}

// AddVolume adds the absolute value of amount to the token's volume.
func (m *Metrics) AddVolume(token string, amount float64) {
	if m == nil {
		return
	}
	if amount < 0 {
		amount = -amount
	}
	m.SwapVolume.WithLabelValues(token).Add(amount)
}

func (m *Metrics) DecodeError(reason string) {
	if m == nil {
		return
	}
	m.DecodeErrors.WithLabelValues(reason).Inc()
}

// Serve exposes /metrics on addr until ctx is cancelled.
func (m *Metrics) Serve(ctx context.Context, addr string, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("metrics server listening", zap.String("addr", addr))
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
