package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestMetrics_CountersAndHandler(t *testing.T) {
	m := New("paytrack")

	m.ObserveVerdict("verified", "")
	m.ObserveVerdict("rejected", "amount")
	m.ObserveVerdict("rejected", "amount")
	m.ObserveReceipt("new")
	m.ObserveSweep(120*time.Millisecond, 2, 1, 0, 3, 0)
	m.ObserveFulfillmentError()

	require.Equal(t, 2.0, testutil.ToFloat64(m.verdicts.WithLabelValues("rejected", "amount")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.receipts.WithLabelValues("new")))
	require.Equal(t, 3.0, testutil.ToFloat64(m.sweepSessions.WithLabelValues("still_pending")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.fulfillmentErrors))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	require.Contains(t, string(body), "paytrack_verdicts_total")
	require.Contains(t, string(body), "paytrack_sweep_dur_ms")
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	m.ObserveVerdict("verified", "")
	m.ObserveReceipt("new")
	m.ObserveSweep(time.Second, 0, 0, 0, 0, 0)
	m.ObserveFulfillmentError()
	require.Nil(t, m.Registry())
	require.NotNil(t, m.Handler())
}

func TestNew_TwiceDoesNotPanic(t *testing.T) {
	require.NotPanics(t, func() {
		_ = New("a")
		_ = New("a")
	})
}
