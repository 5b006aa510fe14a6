// Package telemetry provides Prometheus metrics and correlation-id aware logging helpers.
package telemetry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once sync.Once

	// Counters
	EventsObserved *prometheus.CounterVec
	BusDropped     prometheus.Counter
	SchedulerTicks prometheus.Counter
	SchedulerSkips prometheus.Counter
	SendsAttempted prometheus.Counter
	SendsSucceeded prometheus.Counter
	SendsFailed    prometheus.Counter
	StoreErrors    prometheus.Counter

	// Histograms (seconds)
	SendDuration prometheus.Observer

	// Gauges
	CatalogSizeGauge prometheus.Gauge
	LiveGauge        prometheus.Gauge // 1=channel live, 0=offline
)

// Init registers metrics (idempotent).
func Init() {
	once.Do(func() {
		EventsObserved = promauto.NewCounterVec(prometheus.CounterOpts{Name: "lurk_events_observed_total", Help: "Signals extracted from observed page traffic, by event kind"}, []string{"kind"})
		BusDropped = promauto.NewCounter(prometheus.CounterOpts{Name: "lurk_bus_dropped_total", Help: "Events dropped due to a slow subscriber"})
		SchedulerTicks = promauto.NewCounter(prometheus.CounterOpts{Name: "lurk_scheduler_ticks_total", Help: "Scheduler tick executions"})
		SchedulerSkips = promauto.NewCounter(prometheus.CounterOpts{Name: "lurk_scheduler_skips_total", Help: "Ticks skipped because a gating condition failed"})
		SendsAttempted = promauto.NewCounter(prometheus.CounterOpts{Name: "lurk_sends_attempted_total", Help: "Send pipelines started"})
		SendsSucceeded = promauto.NewCounter(prometheus.CounterOpts{Name: "lurk_sends_succeeded_total", Help: "Send pipelines completed without error"})
		SendsFailed = promauto.NewCounter(prometheus.CounterOpts{Name: "lurk_sends_failed_total", Help: "Send pipelines that returned an error"})
		StoreErrors = promauto.NewCounter(prometheus.CounterOpts{Name: "lurk_store_errors_total", Help: "Key-value store operations that failed"})
		SendDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "lurk_send_duration_seconds", Help: "Send pipeline duration seconds", Buckets: prometheus.DefBuckets})
		CatalogSizeGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "lurk_catalog_emotes", Help: "Emotes currently in the observed catalog"})
		LiveGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "lurk_channel_live", Help: "Observed channel live=1 offline=0"})
	})
}

// ObserveEvent increments the per-kind extraction counter if metrics are initialized.
func ObserveEvent(kind string) {
	if EventsObserved != nil {
		EventsObserved.WithLabelValues(kind).Inc()
	}
}

// SetLive records the observed live state.
func SetLive(live bool) {
	if LiveGauge != nil {
		if live {
			LiveGauge.Set(1)
		} else {
			LiveGauge.Set(0)
		}
	}
}

// SetCatalogSize records the current catalog emote count.
func SetCatalogSize(n int) {
	if CatalogSizeGauge != nil {
		CatalogSizeGauge.Set(float64(n))
	}
}

// Inc increments c if metrics are initialized.
func Inc(c prometheus.Counter) {
	if c != nil {
		c.Inc()
	}
}

// TimeFunc measures the duration of fn and records in observer if non-nil.
func TimeFunc(obs prometheus.Observer, fn func()) time.Duration {
	start := time.Now()
	fn()
	d := time.Since(start)
	if obs != nil {
		obs.Observe(d.Seconds())
	}
	return d
}

// Correlation ID helpers ----------------------------------------------------
type corrKeyType struct{}

var corrKey corrKeyType

// WithCorrelation returns a new context embedding correlation id (if absent) and the id.
func WithCorrelation(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, corrKey, id)
}

// GetCorrelation returns correlation id or empty string.
func GetCorrelation(ctx context.Context) string {
	v := ctx.Value(corrKey)
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// LoggerWithCorr returns a logger with corr attribute if present.
func LoggerWithCorr(ctx context.Context) *slog.Logger {
	if id := GetCorrelation(ctx); id != "" {
		return slog.Default().With(slog.String("corr", id))
	}
	return slog.Default()
}
