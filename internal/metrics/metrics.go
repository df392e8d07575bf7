// Package metrics exposes engine counters to Prometheus.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder implements app.Observer on top of a Prometheus registry.
type Recorder struct {
	registry *prometheus.Registry

	sessionsStarted    *prometheus.CounterVec
	sessionsCompleted  *prometheus.CounterVec
	sessionsCancelled  *prometheus.CounterVec
	startRejections    *prometheus.CounterVec
	activationsCreated *prometheus.CounterVec
	activationsEnded   *prometheus.CounterVec
}

func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		sessionsStarted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "assessment_sessions_started_total",
			Help: "Quiz sessions started",
		}, []string{"bank"}),
		sessionsCompleted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "assessment_sessions_completed_total",
			Help: "Quiz sessions completed, by whether the result was saved",
		}, []string{"bank", "saved"}),
		sessionsCancelled: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "assessment_sessions_cancelled_total",
			Help: "Quiz sessions cancelled by the participant",
		}, []string{"bank"}),
		startRejections: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "assessment_start_rejections_total",
			Help: "Start requests refused",
		}, []string{"reason"}), // not_active, in_progress, attempts_exhausted
		activationsCreated: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "assessment_activations_created_total",
			Help: "Activations created",
		}, []string{"bank"}),
		activationsEnded: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "assessment_activations_deactivated_total",
			Help: "Activations ended early by deactivation",
		}, []string{"bank"}),
	}
}

func (r *Recorder) SessionStarted(bankID string) {
	r.sessionsStarted.WithLabelValues(bankID).Inc()
}

func (r *Recorder) SessionCompleted(bankID string, saved bool) {
	r.sessionsCompleted.WithLabelValues(bankID, strconv.FormatBool(saved)).Inc()
}

func (r *Recorder) SessionCancelled(bankID string) {
	r.sessionsCancelled.WithLabelValues(bankID).Inc()
}

func (r *Recorder) StartRejected(reason string) {
	r.startRejections.WithLabelValues(reason).Inc()
}

func (r *Recorder) ActivationCreated(bankID string) {
	r.activationsCreated.WithLabelValues(bankID).Inc()
}

func (r *Recorder) ActivationsEnded(bankID string, n int) {
	r.activationsEnded.WithLabelValues(bankID).Add(float64(n))
}

// Handler serves the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
