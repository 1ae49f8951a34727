package metrics_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/orca/internal/adapters/metrics"
	"go.trai.ch/orca/internal/core/ports"
)

var _ ports.Metrics = (*metrics.Recorder)(nil)

func TestRecorder_Counters(t *testing.T) {
	r := metrics.New()

	r.NodeFinished(ports.OutcomeCacheHit)
	r.NodeFinished(ports.OutcomeCacheHit)
	r.NodeFinished(ports.OutcomeExecuted)
	r.StoreOperation("put", "conflict")
	r.ExecutionObserved("succeeded", 20*time.Millisecond)
	r.ObserveRequest(http.MethodGet, "/v1/blobs/{digest}", http.StatusOK, time.Millisecond)

	count, err := testutil.GatherAndCount(r.Registry(),
		"orca_nodes_total", "orca_store_operations_total",
		"orca_execution_duration_seconds", "orca_http_requests_total")
	require.NoError(t, err)
	assert.Equal(t, 5, count)
}

func TestRecorder_Handler(t *testing.T) {
	r := metrics.New()
	r.NodeFinished(ports.OutcomeAborted)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `orca_nodes_total{outcome="aborted"} 1`)
}
