package observability

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opencensus.io/stats"
	"go.opencensus.io/stats/view"
)

var mProbe = stats.Int64("observability_test/probes", "Probe measure", stats.UnitDimensionless)

func scrape(t *testing.T, h http.Handler) string {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	body, err := io.ReadAll(w.Body)
	require.NoError(t, err)
	return string(body)
}

func TestMetrics(t *testing.T) {
	probe := &view.View{
		Name:        "observability_test/probes",
		Description: "Probe count",
		Measure:     mProbe,
		Aggregation: view.Count(),
	}
	m, err := New(&Config{Namespace: "hivewatch"}, probe)
	require.NoError(t, err)
	defer m.Close()

	api := m.Instrument("watch", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	w := httptest.NewRecorder()
	api.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/watch", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)

	stats.Record(context.Background(), mProbe.M(1))

	require.Eventually(t, func() bool {
		return strings.Contains(scrape(t, m.Handler()), "hivewatch_observability_test_probes")
	}, 2*time.Second, 20*time.Millisecond)

	body := scrape(t, m.Handler())
	assert.Contains(t, body, `hivewatch_http_request_duration_seconds_count{code="204",handler="watch",method="post"} 1`)
	assert.Contains(t, body, "go_goroutines")
	assert.Contains(t, body, "hivewatch_build_info")
}
