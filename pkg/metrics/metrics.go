// Package metrics exports task execution metrics in the Prometheus format.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sitebuild/sitebuild/pkg/logger"
)

var metricsLog = logger.New("metrics:metrics")

// Task outcomes used as the "result" label.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// Collector records task runs. It implements orchestrator.Observer.
type Collector struct {
	registry *prometheus.Registry

	runs     *prometheus.CounterVec
	duration *prometheus.HistogramVec
	running  *prometheus.GaugeVec
	last     *prometheus.GaugeVec
}

// NewCollector returns a collector with its own registry, so several
// collectors can coexist in one process.
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Collector{
		registry: reg,
		runs: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sitebuild_task_runs_total",
			Help: "Task executions by task and result.",
		}, []string{"task", "result"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sitebuild_task_duration_seconds",
			Help:    "Task action duration.",
			Buckets: []float64{.005, .01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}, []string{"task"}),
		running: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "sitebuild_task_running",
			Help: "Tasks currently executing.",
		}, []string{"task"}),
		last: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "sitebuild_task_last_finished_timestamp_seconds",
			Help: "Unix time the task last finished.",
		}, []string{"task"}),
	}
}

func (c *Collector) TaskStarted(runID, task string) {
	metricsLog.Printf("Run %s: %s started", runID, task)
	c.running.WithLabelValues(task).Inc()
}

func (c *Collector) TaskFinished(runID, task string, elapsed time.Duration, err error) {
	result := ResultSuccess
	if err != nil {
		result = ResultFailure
	}
	metricsLog.Printf("Run %s: %s finished (%s) after %s", runID, task, result, elapsed)

	c.running.WithLabelValues(task).Dec()
	c.runs.WithLabelValues(task, result).Inc()
	c.duration.WithLabelValues(task).Observe(elapsed.Seconds())
	c.last.WithLabelValues(task).SetToCurrentTime()
}

// Registry exposes the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the collected metrics.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
