// Package metrics exposes Prometheus instruments for roster generation,
// conflict detection and the escalation engine.
// A nil *Recorder is valid and records nothing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder owns the instruments and the registry they are registered on.
type Recorder struct {
	registry *prometheus.Registry

	rostersGenerated   *prometheus.CounterVec
	uncoveredDates     prometheus.Counter
	conflictsDetected  prometheus.Counter
	conflictsResolved  prometheus.Counter
	generationDuration prometheus.Histogram

	escalationsStarted *prometheus.CounterVec
	levelsOpened       *prometheus.CounterVec
	timeouts           *prometheus.CounterVec
	casesClosed        *prometheus.CounterVec
	contactAttempts    *prometheus.CounterVec
	openCases          prometheus.Gauge

	watchRuns     *prometheus.CounterVec
	watchDuration prometheus.Histogram

	eventsPublished *prometheus.CounterVec
}

// New builds a Recorder on a fresh registry.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		rostersGenerated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "garde_rosters_generated_total",
			Help: "Rosters produced by the rotation assigner, by scope type",
		}, []string{"scope_type"}),
		uncoveredDates: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "garde_roster_uncovered_dates_total",
			Help: "Coverage dates left without anyone available during generation",
		}),
		conflictsDetected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "garde_conflicts_detected_total",
			Help: "Double-booking conflicts reported by detection runs",
		}),
		conflictsResolved: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "garde_conflicts_resolved_total",
			Help: "Conflicting slots handed to a substitute",
		}),
		generationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "garde_roster_generation_seconds",
			Help:    "Time spent generating one roster, including reads",
			Buckets: prometheus.DefBuckets,
		}),
		escalationsStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "garde_escalations_started_total",
			Help: "Escalation cases opened, by sector",
		}, []string{"sector"}),
		levelsOpened: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "garde_escalation_levels_opened_total",
			Help: "Escalation levels opened, by level",
		}, []string{"level"}),
		timeouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "garde_escalation_timeouts_total",
			Help: "Levels found unanswered past their timeout, by level",
		}, []string{"level"}),
		casesClosed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "garde_escalations_closed_total",
			Help: "Escalation cases reaching a terminal status, by status",
		}, []string{"status"}),
		contactAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "garde_contact_attempts_total",
			Help: "Contact attempts recorded, by channel",
		}, []string{"channel"}),
		openCases: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "garde_escalations_in_progress",
			Help: "In-progress cases seen by the last watcher run",
		}),
		watchRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "garde_watch_runs_total",
			Help: "Watcher polling runs, by result",
		}, []string{"result"}),
		watchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "garde_watch_run_seconds",
			Help:    "Duration of one watcher polling run",
			Buckets: prometheus.DefBuckets,
		}),
		eventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "garde_events_published_total",
			Help: "Outbound events handed to the transport, by type and result",
		}, []string{"type", "result"}),
	}
	r.registry.MustRegister(
		r.rostersGenerated, r.uncoveredDates, r.conflictsDetected, r.conflictsResolved, r.generationDuration,
		r.escalationsStarted, r.levelsOpened, r.timeouts, r.casesClosed, r.contactAttempts, r.openCases,
		r.watchRuns, r.watchDuration, r.eventsPublished,
	)
	return r
}

// Registry returns the registry backing the recorder.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// ObserveGeneration records one generation run.
func (r *Recorder) ObserveGeneration(scopeType string, uncovered int, took time.Duration) {
	if r == nil {
		return
	}
	r.rostersGenerated.WithLabelValues(scopeType).Inc()
	r.uncoveredDates.Add(float64(uncovered))
	r.generationDuration.Observe(took.Seconds())
}

// ObserveConflicts records the size of a detection run.
func (r *Recorder) ObserveConflicts(n int) {
	if r == nil || n <= 0 {
		return
	}
	r.conflictsDetected.Add(float64(n))
}

// ObserveSubstitutions records slots reassigned by conflict resolution.
func (r *Recorder) ObserveSubstitutions(n int) {
	if r == nil || n <= 0 {
		return
	}
	r.conflictsResolved.Add(float64(n))
}

// EscalationStarted counts a new case.
func (r *Recorder) EscalationStarted(sector string) {
	if r == nil {
		return
	}
	r.escalationsStarted.WithLabelValues(sector).Inc()
}

// LevelOpened counts a level opened on any case.
func (r *Recorder) LevelOpened(level int) {
	if r == nil {
		return
	}
	r.levelsOpened.WithLabelValues(strconv.Itoa(level)).Inc()
}

// Timeout counts a level detected in timeout.
func (r *Recorder) Timeout(level int) {
	if r == nil {
		return
	}
	r.timeouts.WithLabelValues(strconv.Itoa(level)).Inc()
}

// CaseClosed counts a case reaching a terminal status.
func (r *Recorder) CaseClosed(status string) {
	if r == nil {
		return
	}
	r.casesClosed.WithLabelValues(status).Inc()
}

// ContactAttempt counts an attempt on a channel.
func (r *Recorder) ContactAttempt(channel string) {
	if r == nil {
		return
	}
	r.contactAttempts.WithLabelValues(channel).Inc()
}

// ObserveWatchRun records one watcher poll.
func (r *Recorder) ObserveWatchRun(inProgress int, took time.Duration, err error) {
	if r == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	r.watchRuns.WithLabelValues(result).Inc()
	r.watchDuration.Observe(took.Seconds())
	r.openCases.Set(float64(inProgress))
}

// EventPublished records the outcome of handing an event to the transport.
func (r *Recorder) EventPublished(eventType string, err error) {
	if r == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	r.eventsPublished.WithLabelValues(eventType, result).Inc()
}
