package app

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/example/garde/internal/core/escalation"
	"github.com/example/garde/internal/core/fault"
	"github.com/example/garde/internal/core/identity"
	"github.com/example/garde/internal/logging"
	"github.com/example/garde/internal/metrics"
	"github.com/example/garde/internal/ports/primary"
)

// DefaultWatchSchedule polls every minute.
const DefaultWatchSchedule = "@every 1m"

// WatcherActor is the identity the watcher acts under.
var WatcherActor = identity.Actor{ID: "system:watcher", Role: identity.RoleSystem}

// WatchReport summarizes one polling run.
type WatchReport struct {
	Scanned   int
	Escalated []string
	Failed    []string
	Errors    int
}

// EscalationWatcher polls in-progress cases and moves timed-out ones along
// the chain: below the last level it escalates, at the last level it fails
// the case.
type EscalationWatcher struct {
	service  primary.EscalationService
	schedule string
	logger   *zap.Logger
	metrics  *metrics.Recorder
	now      func() time.Time
}

// NewEscalationWatcher creates a watcher. An empty schedule uses DefaultWatchSchedule.
func NewEscalationWatcher(service primary.EscalationService, schedule string, logger *zap.Logger, rec *metrics.Recorder) *EscalationWatcher {
	if schedule == "" {
		schedule = DefaultWatchSchedule
	}
	return &EscalationWatcher{
		service:  service,
		schedule: schedule,
		logger:   logging.OrNop(logger),
		metrics:  rec,
		now:      time.Now,
	}
}

// RunOnce performs a single poll.
func (w *EscalationWatcher) RunOnce(ctx context.Context) (WatchReport, error) {
	started := time.Now()
	var report WatchReport

	cases, err := w.service.ListEscalations(ctx, primary.EscalationFilters{Status: string(escalation.StatusInProgress)})
	if err != nil {
		w.metrics.ObserveWatchRun(0, time.Since(started), err)
		return report, err
	}
	report.Scanned = len(cases)

	now := w.now()
	for _, c := range cases {
		if ctx.Err() != nil {
			break
		}
		if !c.IsInTimeout(now) {
			continue
		}
		cur := c.CurrentLevel()
		w.metrics.Timeout(cur.Number)
		w.logger.Warn("escalation level timed out",
			zap.String("case_id", c.ID),
			zap.Int("level", cur.Number),
			zap.String("responder", cur.ResponderID),
		)

		if cur.Number >= escalation.MaxLevel {
			w.fail(ctx, c.ID, fmt.Sprintf("level %d unanswered after %d minutes", cur.Number, c.Config.TimeoutMinutes[cur.Number-1]), &report)
			continue
		}

		_, err := w.service.EscalateToNext(ctx, WatcherActor, c.ID)
		switch {
		case err == nil:
			report.Escalated = append(report.Escalated, c.ID)
		case fault.Is(err, fault.KindNoEligiblePersonnel), fault.Is(err, fault.KindNotFound):
			w.fail(ctx, c.ID, fmt.Sprintf("no responder for level %d: %v", cur.Number+1, err), &report)
		default:
			report.Errors++
			w.logger.Error("escalation failed", zap.String("case_id", c.ID), zap.Error(err))
		}
	}

	var runErr error
	if report.Errors > 0 {
		runErr = fmt.Errorf("%d case(s) could not be processed", report.Errors)
	}
	w.metrics.ObserveWatchRun(report.Scanned-len(report.Failed), time.Since(started), runErr)
	return report, runErr
}

func (w *EscalationWatcher) fail(ctx context.Context, caseID, reason string, report *WatchReport) {
	if _, err := w.service.Fail(ctx, WatcherActor, caseID, reason); err != nil {
		report.Errors++
		w.logger.Error("failing escalation", zap.String("case_id", caseID), zap.Error(err))
		return
	}
	report.Failed = append(report.Failed, caseID)
}

// Run polls on the configured schedule until ctx is done.
func (w *EscalationWatcher) Run(ctx context.Context) error {
	scheduler := cron.New()
	_, err := scheduler.AddFunc(w.schedule, func() {
		report, err := w.RunOnce(ctx)
		if err != nil {
			w.logger.Error("watch run failed", zap.Error(err))
			return
		}
		w.logger.Debug("watch run",
			zap.Int("scanned", report.Scanned),
			zap.Int("escalated", len(report.Escalated)),
			zap.Int("failed", len(report.Failed)),
		)
	})
	if err != nil {
		return fmt.Errorf("invalid watch schedule %q: %w", w.schedule, err)
	}

	w.logger.Info("escalation watcher started", zap.String("schedule", w.schedule))
	scheduler.Start()
	<-ctx.Done()
	<-scheduler.Stop().Done()
	w.logger.Info("escalation watcher stopped")
	return nil
}
