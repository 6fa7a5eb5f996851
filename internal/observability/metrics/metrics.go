package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricPrefix = "buildsim_"

var (
	registerOnce sync.Once

	tickTotal    prometheus.Counter
	tickDuration prometheus.Histogram

	flushTotal *prometheus.CounterVec

	scheduleOverrides prometheus.Counter
	warmupResets      prometheus.Counter

	sinkErrors *prometheus.CounterVec
)

// Init registers the simulation metrics. Safe to call more than once.
func Init() {
	registerOnce.Do(func() {
		tickTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: metricPrefix + "ticks_total",
			Help: "Total simulation timesteps processed",
		})
		tickDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    metricPrefix + "tick_duration_seconds",
			Help:    "Wall time per simulation timestep",
			Buckets: prometheus.ExponentialBuckets(0.00001, 4, 10),
		})
		flushTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "window_flushes_total",
				Help: "Reporting window flushes by cadence",
			},
			[]string{"window"},
		)
		scheduleOverrides = prometheus.NewCounter(prometheus.CounterOpts{
			Name: metricPrefix + "external_schedule_overrides_total",
			Help: "Live external schedule value overrides accepted",
		})
		warmupResets = prometheus.NewCounter(prometheus.CounterOpts{
			Name: metricPrefix + "warmup_resets_total",
			Help: "Warm-up accumulator resets performed",
		})
		sinkErrors = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "sink_errors_total",
				Help: "Sink write failures by sink",
			},
			[]string{"sink"},
		)

		prometheus.MustRegister(
			tickTotal, tickDuration, flushTotal,
			scheduleOverrides, warmupResets, sinkErrors,
		)
	})
}

// Handler exposes the metrics endpoint.
func Handler() http.Handler { return promhttp.Handler() }

// TickTimer measures one timestep.
type TickTimer struct {
	start time.Time
}

// StartTickTimer begins timing a timestep.
func StartTickTimer() TickTimer { return TickTimer{start: time.Now()} }

// Observe records the timestep and its duration.
func (t TickTimer) Observe() {
	if tickTotal == nil || tickDuration == nil {
		return
	}
	tickTotal.Inc()
	tickDuration.Observe(time.Since(t.start).Seconds())
}

// RecordFlush counts one window flush.
func RecordFlush(window string) {
	if flushTotal == nil {
		return
	}
	flushTotal.WithLabelValues(window).Inc()
}

// RecordExternalOverride counts one accepted live schedule override.
func RecordExternalOverride() {
	if scheduleOverrides == nil {
		return
	}
	scheduleOverrides.Inc()
}

// RecordWarmupEnd counts the warm-up reset.
func RecordWarmupEnd() {
	if warmupResets == nil {
		return
	}
	warmupResets.Inc()
}

// RecordSinkError counts a sink write failure.
func RecordSinkError(sink string) {
	if sinkErrors == nil {
		return
	}
	sinkErrors.WithLabelValues(sink).Inc()
}
