// Package observability provides Prometheus metrics for monitoring the
// sublate translation core: backend calls, streaming, retries, fallback
// activations, and token consumption.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	prov "github.com/sublate/sublate/pkg/provider"
)

// LLMBuckets defines histogram buckets suited for LLM inference latencies,
// ranging from 100ms to 120s.
var LLMBuckets = []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120}

var (
	// TranslationsTotal counts translation calls by provider, mode
	// (translate/stream), and outcome (ok or the error classification).
	TranslationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sublate_translations_total",
			Help: "Translation calls",
		},
		[]string{"provider", "mode", "status"},
	)

	// TranslationDuration records backend call duration in seconds.
	TranslationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sublate_translation_duration_seconds",
			Help:    "Translation call duration",
			Buckets: LLMBuckets,
		},
		[]string{"provider", "mode"},
	)

	// ActiveStreams tracks the number of in-flight streaming calls.
	ActiveStreams = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sublate_streams_active",
			Help: "Active streaming translations",
		},
	)

	// ProviderTokensTotal counts tokens by direction (input/output).
	ProviderTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sublate_provider_tokens_total",
			Help: "Token count",
		},
		[]string{"provider", "direction"},
	)

	// RetryAttemptsTotal counts backoff re-attempts by provider.
	RetryAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sublate_retry_attempts_total",
			Help: "Retry re-attempts",
		},
		[]string{"provider"},
	)

	// FallbackActivationsTotal counts primary-to-secondary failovers.
	FallbackActivationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sublate_fallback_activations_total",
			Help: "Fallback activations",
		},
		[]string{"from", "to"},
	)

	// StreamRecoveriesTotal counts streams salvaged by the recovery
	// parser, by strategy.
	StreamRecoveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sublate_stream_recoveries_total",
			Help: "Streams recovered with fallback framing",
		},
		[]string{"provider", "strategy"},
	)
)

func init() {
	prometheus.MustRegister(
		TranslationsTotal,
		TranslationDuration,
		ActiveStreams,
		ProviderTokensTotal,
		RetryAttemptsTotal,
		FallbackActivationsTotal,
		StreamRecoveriesTotal,
	)
}

// ObserveTranslation records one finished backend call.
func ObserveTranslation(provider, mode, status string, start time.Time) {
	TranslationsTotal.WithLabelValues(provider, mode, status).Inc()
	TranslationDuration.WithLabelValues(provider, mode).Observe(time.Since(start).Seconds())
}

// StatusOf maps a call outcome to the status label: "ok" on success,
// otherwise the error classification.
func StatusOf(err error) string {
	if err == nil {
		return "ok"
	}
	return string(prov.KindOf(err))
}
