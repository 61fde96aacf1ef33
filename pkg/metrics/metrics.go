// Package metrics records build outcomes and durations on a private
// Prometheus registry. The CLI dumps the registry in the text exposition
// format for a node exporter textfile collector.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/openshift/py2i/pkg/api"
)

const namespace = "py2i"

// Recorder holds the build metrics of one py2i invocation.
type Recorder struct {
	registry      *prometheus.Registry
	builds        *prometheus.CounterVec
	buildDuration *prometheus.HistogramVec
	stepDuration  *prometheus.HistogramVec
	lastSuccess   prometheus.Gauge
}

// New returns a Recorder with its metrics registered.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		builds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "builds_total",
			Help:      "Builds by builder and outcome.",
		}, []string{"builder", "result", "reason"}),
		buildDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "build_duration_seconds",
			Help:      "Wall clock duration of builds.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		}, []string{"builder"}),
		stepDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "build_step_duration_seconds",
			Help:      "Duration of the recorded build steps.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 10),
		}, []string{"stage", "step"}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Time of the last successful build.",
		}),
	}
	r.registry.MustRegister(r.builds, r.buildDuration, r.stepDuration, r.lastSuccess)
	return r
}

// ObserveBuild records the outcome of a build. A nil result counts as a
// failure without a reason.
func (r *Recorder) ObserveBuild(builder string, result *api.Result, duration time.Duration) {
	outcome, reason := "failure", ""
	if result != nil {
		reason = string(result.BuildInfo.FailureReason.Reason)
		if result.Success {
			outcome = "success"
			r.lastSuccess.SetToCurrentTime()
		}
		for _, stage := range result.BuildInfo.Stages {
			for _, step := range stage.Steps {
				r.stepDuration.WithLabelValues(string(stage.Name), string(step.Name)).Observe(float64(step.DurationMilliseconds) / 1000)
			}
		}
	}
	r.builds.WithLabelValues(builder, outcome, reason).Inc()
	r.buildDuration.WithLabelValues(builder).Observe(duration.Seconds())
}

// Gatherer exposes the registry.
func (r *Recorder) Gatherer() prometheus.Gatherer {
	return r.registry
}

// WriteTextfile writes the metrics to path, atomically replacing it.
func (r *Recorder) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.registry)
}
