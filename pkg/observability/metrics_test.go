package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// TestMetricsRegistered verifies that all metrics are registered in the
// default registry without panicking.
func TestMetricsRegistered(t *testing.T) {
	expected := map[string]bool{
		"sublate_translations_total":           false,
		"sublate_translation_duration_seconds": false,
		"sublate_streams_active":               false,
		"sublate_provider_tokens_total":        false,
		"sublate_retry_attempts_total":         false,
		"sublate_fallback_activations_total":   false,
		"sublate_stream_recoveries_total":      false,
	}

	// Counters and histograms only appear in a gather after the first
	// observation, so seed them all.
	TranslationsTotal.WithLabelValues("test", "translate", "ok").Inc()
	TranslationDuration.WithLabelValues("test", "translate").Observe(0.1)
	ProviderTokensTotal.WithLabelValues("test", "input").Add(10)
	RetryAttemptsTotal.WithLabelValues("test").Inc()
	FallbackActivationsTotal.WithLabelValues("test", "other").Inc()
	StreamRecoveriesTotal.WithLabelValues("test", "json-lines").Inc()

	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("unexpected gather error: %v", err)
	}
	for _, mf := range families {
		if _, ok := expected[mf.GetName()]; ok {
			expected[mf.GetName()] = true
		}
	}
	for name, found := range expected {
		if !found {
			t.Errorf("metric %q not found in default registry", name)
		}
	}
}

// TestObserveTranslation verifies the helper increments the counter and
// records a duration sample.
func TestObserveTranslation(t *testing.T) {
	beforeCount := counterValue(t, TranslationsTotal, "obs-test", "stream", "ok")
	beforeSamples := histogramCount(t, TranslationDuration, "obs-test", "stream")

	ObserveTranslation("obs-test", "stream", "ok", time.Now().Add(-5*time.Millisecond))

	if delta := counterValue(t, TranslationsTotal, "obs-test", "stream", "ok") - beforeCount; delta != 1 {
		t.Errorf("counter delta = %f, want 1", delta)
	}
	if delta := histogramCount(t, TranslationDuration, "obs-test", "stream") - beforeSamples; delta != 1 {
		t.Errorf("histogram sample delta = %d, want 1", delta)
	}
}

func TestActiveStreamsGauge(t *testing.T) {
	baseline := gaugeValue(t, ActiveStreams)
	ActiveStreams.Inc()
	if got := gaugeValue(t, ActiveStreams); got != baseline+1 {
		t.Errorf("gauge = %f, want %f", got, baseline+1)
	}
	ActiveStreams.Dec()
	if got := gaugeValue(t, ActiveStreams); got != baseline {
		t.Errorf("gauge = %f, want %f after Dec", got, baseline)
	}
}

// counterValue reads the current value of a CounterVec for the given labels.
func counterValue(t *testing.T, cv *prometheus.CounterVec, labels ...string) float64 {
	t.Helper()
	m := &dto.Metric{}
	c, err := cv.GetMetricWithLabelValues(labels...)
	if err != nil {
		t.Fatalf("getting counter metric: %v", err)
	}
	if err := c.(prometheus.Metric).Write(m); err != nil {
		t.Fatalf("writing counter metric: %v", err)
	}
	return m.GetCounter().GetValue()
}

// histogramCount reads the observation count from a HistogramVec.
func histogramCount(t *testing.T, hv *prometheus.HistogramVec, labels ...string) uint64 {
	t.Helper()
	m := &dto.Metric{}
	obs, err := hv.GetMetricWithLabelValues(labels...)
	if err != nil {
		t.Fatalf("getting histogram metric: %v", err)
	}
	if err := obs.(prometheus.Metric).Write(m); err != nil {
		t.Fatalf("writing histogram metric: %v", err)
	}
	return m.GetHistogram().GetSampleCount()
}

// gaugeValue reads the current value of a Gauge.
func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	m := &dto.Metric{}
	if err := g.Write(m); err != nil {
		t.Fatalf("writing gauge metric: %v", err)
	}
	return m.GetGauge().GetValue()
}
