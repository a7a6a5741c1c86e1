// Package metrics is the optional Prometheus-backed corerunner.MetricsSink.
// The core scheduler never imports this package — it depends only on the
// MetricsSink interface it declares — so a program that does not care about
// metrics pays nothing beyond one nil check per event.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/go-foundations/corerunner"
)

// Recorder implements corerunner.MetricsSink against a set of Prometheus
// collectors registered on the Registerer passed to NewRecorder (or
// prometheus.DefaultRegisterer, if that is nil).
type Recorder struct {
	submitted       *prometheus.CounterVec
	completed       *prometheus.CounterVec
	mailboxFallback *prometheus.CounterVec
	sleepingWorkers prometheus.Gauge
}

// NewRecorder creates and registers a Recorder's collectors. Safe to call
// once per process; registering a second Recorder against the same
// registry will panic on a duplicate collector, matching
// prometheus/client_golang's own contract.
func NewRecorder(registry prometheus.Registerer) *Recorder {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	r := &Recorder{
		submitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "corerunner_tasks_submitted_total",
			Help: "Tasks submitted per workgroup.",
		}, []string{"group"}),
		completed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "corerunner_tasks_completed_total",
			Help: "Tasks completed (successfully or via recovered panic) per workgroup.",
		}, []string{"group"}),
		mailboxFallback: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "corerunner_mailbox_fallback_total",
			Help: "Submissions that exhausted the retry budget and fell back to the workgroup mailbox.",
		}, []string{"group"}),
		sleepingWorkers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "corerunner_workers_sleeping",
			Help: "Workers currently parked waiting for a wake token.",
		}),
	}
	registry.MustRegister(r.submitted, r.completed, r.mailboxFallback, r.sleepingWorkers)
	return r
}

var _ corerunner.MetricsSink = (*Recorder)(nil)

func groupLabel(g corerunner.WorkgroupID) string {
	return strconv.FormatUint(uint64(g), 10)
}

// TaskSubmitted increments the submitted counter for group.
func (r *Recorder) TaskSubmitted(group corerunner.WorkgroupID) {
	r.submitted.WithLabelValues(groupLabel(group)).Inc()
}

// TaskCompleted increments the completed counter for group.
func (r *Recorder) TaskCompleted(group corerunner.WorkgroupID) {
	r.completed.WithLabelValues(groupLabel(group)).Inc()
}

// MailboxFallback increments the mailbox-fallback counter for group.
func (r *Recorder) MailboxFallback(group corerunner.WorkgroupID) {
	r.mailboxFallback.WithLabelValues(groupLabel(group)).Inc()
}

// WorkerSleeping sets the sleeping-workers gauge to the given count.
func (r *Recorder) WorkerSleeping(count int32) {
	r.sleepingWorkers.Set(float64(count))
}

// Snapshot is a point-in-time, label-collapsed read of the recorder's
// counters, for callers (like corerunnerctl) that want a plain summary
// without scraping the Prometheus registry themselves.
type Snapshot struct {
	Submitted       float64
	Completed       float64
	MailboxFallback float64
	WorkersSleeping float64
}

// Snapshot sums every group label and reads the sleeping-workers gauge.
func (r *Recorder) Snapshot() Snapshot {
	var snap Snapshot
	sumVec(r.submitted, &snap.Submitted)
	sumVec(r.completed, &snap.Completed)
	sumVec(r.mailboxFallback, &snap.MailboxFallback)

	var m dto.Metric
	if err := r.sleepingWorkers.Write(&m); err == nil && m.Gauge != nil {
		snap.WorkersSleeping = m.Gauge.GetValue()
	}
	return snap
}

func sumVec(vec *prometheus.CounterVec, total *float64) {
	ch := make(chan prometheus.Metric)
	go func() {
		vec.Collect(ch)
		close(ch)
	}()
	var m dto.Metric
	for metric := range ch {
		if err := metric.Write(&m); err == nil && m.Counter != nil {
			*total += m.Counter.GetValue()
		}
	}
}
