package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsForTesting_Independent(t *testing.T) {
	a := NewMetricsForTesting()
	b := NewMetricsForTesting()

	a.RecordsLoaded.Add(3)
	a.RunsTotal.WithLabelValues("success").Inc()

	assert.Equal(t, 3.0, testutil.ToFloat64(a.RecordsLoaded))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.RecordsLoaded))
	assert.Equal(t, 1.0, testutil.ToFloat64(a.RunsTotal.WithLabelValues("success")))
}

func TestMetrics_Push(t *testing.T) {
	var gotMethod, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	m := NewMetricsForTesting()
	m.RecordsExtracted.Add(5)

	require.NoError(t, m.Push(context.Background(), srv.URL, "cme_etl"))
	assert.Equal(t, http.MethodPut, gotMethod)
	assert.Equal(t, "/metrics/job/cme_etl", gotPath)
}

func TestMetrics_PushError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	err := NewMetricsForTesting().Push(context.Background(), srv.URL, "cme_etl")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "push metrics")
}
