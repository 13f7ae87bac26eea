package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveRun(t *testing.T) {
	m := New()
	finished := time.Unix(1716684232, 0)

	m.ObserveRun(finished, 1500*time.Millisecond, true)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LastRunSuccess))
	assert.Equal(t, 1.5, testutil.ToFloat64(m.RunDuration))
	assert.Equal(t, float64(1716684232), testutil.ToFloat64(m.LastRunTimestamp))

	m.ObserveRun(finished, time.Second, false)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.LastRunSuccess))
}

func TestCountersByTemplate(t *testing.T) {
	m := New()
	m.Deleted.WithLabelValues("Ubuntu 24.04").Inc()
	m.Deleted.WithLabelValues("Ubuntu 24.04").Inc()
	m.DeleteFailures.WithLabelValues("Debian 12").Inc()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Deleted.WithLabelValues("Ubuntu 24.04")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DeleteFailures.WithLabelValues("Debian 12")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.Registry, "clretention_deleted_total", "clretention_delete_failures_total"))
}

func TestPush(t *testing.T) {
	var path, body string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		data, _ := io.ReadAll(r.Body)
		body = string(data)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	m := New()
	m.Templates.Set(4)
	require.NoError(t, m.Push(context.Background(), srv.URL, "cl-retention"))

	assert.Equal(t, "/metrics/job/cl-retention", path)
	assert.NotEmpty(t, body)
}

func TestPushDisabled(t *testing.T) {
	assert.NoError(t, New().Push(context.Background(), "", "cl-retention"))
}

func TestPushFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer srv.Close()

	err := New().Push(context.Background(), srv.URL, "cl-retention")
	assert.ErrorContains(t, err, "pushing metrics")
}
