// Package metrics exposes Prometheus instrumentation for workflow runs, platform posts and
// analytics collection. A nil *Recorder is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "autopilot"

// Outcome labels.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Recorder holds the collectors.
type Recorder struct {
	runs               *prometheus.CounterVec
	runDuration        *prometheus.HistogramVec
	stepFailures       *prometheus.CounterVec
	posts              *prometheus.CounterVec
	analyticsUpdates   *prometheus.CounterVec
	collectionDuration prometheus.Histogram
	busy               *prometheus.GaugeVec
}

// NewRecorder creates the collectors and registers them with reg.
// With a nil registerer the default Prometheus registry is used.
func NewRecorder(reg prometheus.Registerer) (*Recorder, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	r := &Recorder{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "workflow_runs_total",
			Help:      "Workflow runs by outcome.",
		}, []string{"outcome"}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "workflow_run_duration_seconds",
			Help:      "Wall time of workflow runs.",
			Buckets:   []float64{10, 30, 60, 120, 300, 600, 1200, 1800},
		}, []string{"outcome"}),
		stepFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "workflow_step_failures_total",
			Help:      "Fatal workflow failures by step.",
		}, []string{"step"}),
		posts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "platform_posts_total",
			Help:      "Platform post attempts by platform and outcome.",
		}, []string{"platform", "outcome"}),
		analyticsUpdates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analytics_updates_total",
			Help:      "Per-post metric refreshes by platform and outcome.",
		}, []string{"platform", "outcome"}),
		collectionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "analytics_collection_duration_seconds",
			Help:      "Wall time of full analytics collections.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		}),
		busy: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "trigger_busy",
			Help:      "1 while a triggered operation is in flight.",
		}, []string{"operation"}),
	}

	for _, c := range []prometheus.Collector{
		r.runs, r.runDuration, r.stepFailures, r.posts, r.analyticsUpdates, r.collectionDuration, r.busy,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func outcome(ok bool) string {
	if ok {
		return OutcomeSuccess
	}
	return OutcomeFailure
}

// ObserveRun records a finished workflow run.
func (r *Recorder) ObserveRun(ok bool, d time.Duration) {
	if r == nil {
		return
	}
	o := outcome(ok)
	r.runs.WithLabelValues(o).Inc()
	r.runDuration.WithLabelValues(o).Observe(d.Seconds())
}

// ObserveStepFailure records the step a run died in.
func (r *Recorder) ObserveStepFailure(step string) {
	if r == nil {
		return
	}
	r.stepFailures.WithLabelValues(step).Inc()
}

// ObservePost records one platform post attempt.
func (r *Recorder) ObservePost(platform string, ok bool) {
	if r == nil {
		return
	}
	r.posts.WithLabelValues(platform, outcome(ok)).Inc()
}

// ObserveAnalytics records one per-post metrics refresh.
func (r *Recorder) ObserveAnalytics(platform string, ok bool) {
	if r == nil {
		return
	}
	r.analyticsUpdates.WithLabelValues(platform, outcome(ok)).Inc()
}

// ObserveCollection records a full analytics collection.
func (r *Recorder) ObserveCollection(d time.Duration) {
	if r == nil {
		return
	}
	r.collectionDuration.Observe(d.Seconds())
}

// SetBusy flags a trigger operation as in flight or idle.
func (r *Recorder) SetBusy(operation string, busy bool) {
	if r == nil {
		return
	}
	v := 0.0
	if busy {
		v = 1
	}
	r.busy.WithLabelValues(operation).Set(v)
}
