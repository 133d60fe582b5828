//go:build !integration

package metrics

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitebuild/sitebuild/pkg/orchestrator"
)

func TestCollectorCountsResults(t *testing.T) {
	c := NewCollector()

	c.TaskStarted("run-1", "css")
	assert.InDelta(t, 1, testutil.ToFloat64(c.running.WithLabelValues("css")), 0)

	c.TaskFinished("run-1", "css", 20*time.Millisecond, nil)
	c.TaskStarted("run-2", "css")
	c.TaskFinished("run-2", "css", time.Millisecond, errors.New("boom"))

	assert.InDelta(t, 1, testutil.ToFloat64(c.runs.WithLabelValues("css", ResultSuccess)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(c.runs.WithLabelValues("css", ResultFailure)), 0)
	assert.InDelta(t, 0, testutil.ToFloat64(c.running.WithLabelValues("css")), 0)
	assert.Equal(t, 1, testutil.CollectAndCount(c.duration, "sitebuild_task_duration_seconds"))
}

func TestCollectorObservesOrchestrator(t *testing.T) {
	c := NewCollector()
	o := orchestrator.New(orchestrator.WithObserver(c))
	o.Register("clean", nil, func(context.Context) error { return nil })
	o.Register("html", nil, func(context.Context) error { return nil })
	o.Register("build", []orchestrator.Step{orchestrator.One("clean"), orchestrator.One("html")}, nil)

	require.NoError(t, o.Run(context.Background(), orchestrator.One("build")))

	for _, task := range []string{"clean", "html", "build"} {
		assert.InDelta(t, 1, testutil.ToFloat64(c.runs.WithLabelValues(task, ResultSuccess)), 0, task)
	}
}

func TestHandlerServesMetrics(t *testing.T) {
	c := NewCollector()
	c.TaskStarted("run-1", "js")
	c.TaskFinished("run-1", "js", time.Millisecond, nil)

	srv := httptest.NewServer(c.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `sitebuild_task_runs_total{result="success",task="js"} 1`)
}
