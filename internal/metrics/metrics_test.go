package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alcyxob/imagegate/internal/domain"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	require.NotNil(t, m.Counter)
	return m.GetCounter().GetValue()
}

func histogramCount(t *testing.T, o prometheus.Observer) uint64 {
	t.Helper()
	metric, ok := o.(prometheus.Metric)
	require.True(t, ok, "observer %T does not implement prometheus.Metric", o)
	var m dto.Metric
	require.NoError(t, metric.Write(&m))
	require.NotNil(t, m.Histogram)
	return m.GetHistogram().GetSampleCount()
}

func TestObserveOutcome(t *testing.T) {
	m := New(WithRegistry(prometheus.NewRegistry()))

	m.ObserveOutcome(domain.Outcome{File: &domain.StoredFile{Name: "a.png"}})
	m.ObserveOutcome(domain.Outcome{})
	m.ObserveOutcome(domain.Outcome{Err: domain.Reject(domain.ReasonTooLarge, nil)})

	assert.Equal(t, 2.0, counterValue(t, m.outcomes.WithLabelValues(OutcomeAccepted)))
	assert.Equal(t, 1.0, counterValue(t, m.outcomes.WithLabelValues(string(domain.ReasonTooLarge))))
}

func TestObserveStage(t *testing.T) {
	m := New()

	m.ObserveStage("size_guard", time.Millisecond, nil)
	m.ObserveStage("size_guard", time.Millisecond, domain.Reject(domain.ReasonTooSmall, nil))
	m.ObserveStage("content_verifier", time.Millisecond, errors.New("unexpected"))

	assert.Equal(t, uint64(2), histogramCount(t, m.stageDuration.WithLabelValues("size_guard")))
	assert.Equal(t, 1.0, counterValue(t, m.stageFailures.WithLabelValues("size_guard", string(domain.ReasonTooSmall))))
	assert.Equal(t, 1.0, counterValue(t, m.stageFailures.WithLabelValues("content_verifier", string(domain.ReasonIOFailure))))
}

func TestHandler(t *testing.T) {
	m := New(WithNamespace("test"))
	m.ObserveOutcome(domain.Outcome{Err: domain.Reject(domain.ReasonCorruptContent, nil)})

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `test_upload_outcomes_total{reason="CORRUPT_CONTENT"} 1`)
}
