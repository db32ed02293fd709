package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ayo6706/solar-ledger/internal/observability"
	"github.com/ayo6706/solar-ledger/internal/service"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// DefaultReconciliationSchedule runs the check daily at 02:00.
const DefaultReconciliationSchedule = "0 2 * * *"

// ReconciliationWorker runs the ledger reconciliation on a cron schedule.
type ReconciliationWorker struct {
	svc      *service.ReconciliationService
	schedule string
	location *time.Location
	cron     *cron.Cron
	stopOnce sync.Once
}

func NewReconciliationWorker(svc *service.ReconciliationService) *ReconciliationWorker {
	return &ReconciliationWorker{
		svc:      svc,
		schedule: DefaultReconciliationSchedule,
		location: time.UTC,
	}
}

// WithSchedule sets a standard five-field cron spec or a descriptor such as
// "@every 1h".
func (w *ReconciliationWorker) WithSchedule(spec string) *ReconciliationWorker {
	if spec != "" {
		w.schedule = spec
	}
	return w
}

// WithLocation sets the zone the schedule is evaluated in. Defaults to UTC.
func (w *ReconciliationWorker) WithLocation(loc *time.Location) *ReconciliationWorker {
	if loc != nil {
		w.location = loc
	}
	return w
}

// NextRun reports when the schedule fires next after from.
func (w *ReconciliationWorker) NextRun(from time.Time) (time.Time, error) {
	sched, err := cron.ParseStandard(w.schedule)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse schedule %q: %w", w.schedule, err)
	}
	return sched.Next(from.In(w.location)), nil
}

// Start runs one check immediately and then schedules the rest. It returns an
// error only when the schedule cannot be parsed.
func (w *ReconciliationWorker) Start(ctx context.Context) error {
	logger := cronLogger{zap.S().Named("reconciliation")}
	c := cron.New(
		cron.WithLocation(w.location),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		cron.WithLogger(logger),
	)
	if _, err := c.AddFunc(w.schedule, func() { w.RunOnce(ctx) }); err != nil {
		return fmt.Errorf("schedule reconciliation %q: %w", w.schedule, err)
	}
	w.cron = c

	zap.L().Info("reconciliation worker starting",
		zap.String("schedule", w.schedule),
		zap.String("timezone", w.location.String()),
	)
	go w.RunOnce(ctx)
	c.Start()

	go func() {
		<-ctx.Done()
		w.Stop()
	}()
	return nil
}

// Stop halts scheduling and waits for a running check to finish.
func (w *ReconciliationWorker) Stop() {
	w.stopOnce.Do(func() {
		if w.cron != nil {
			<-w.cron.Stop().Done()
		}
	})
}

// Run starts the worker and returns a stop function.
func (w *ReconciliationWorker) Run(ctx context.Context) (func(), error) {
	if err := w.Start(ctx); err != nil {
		return nil, err
	}
	return w.Stop, nil
}

// RunOnce performs a single reconciliation pass.
func (w *ReconciliationWorker) RunOnce(ctx context.Context) *service.ReconciliationReport {
	if ctx.Err() != nil {
		return nil
	}
	report, err := w.svc.Run(ctx)
	if err != nil {
		observability.IncrementWorkerRun("reconciliation", "failed")
		zap.L().Error("reconciliation run failed", zap.Error(err))
		return nil
	}
	observability.IncrementWorkerRun("reconciliation", "success")
	return report
}

// cronLogger routes cron's own logging through zap.
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
