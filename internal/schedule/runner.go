// Package schedule recomputes configured adherence reports on a cron schedule
// and hands each report with its alerts to a sink.
package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/Veraticus/lifelog/internal/adherence"
	"github.com/Veraticus/lifelog/internal/config"
	"github.com/Veraticus/lifelog/internal/model"
)

// Result is one computed report.
type Result struct {
	Err    error
	Report *model.AdherenceReport
	Job    config.ScheduledReport
	Alerts []model.Alert
}

// Sink receives every result of a run, in configuration order.
type Sink func(Result)

// Runner owns the cron loop.
type Runner struct {
	calc    *adherence.Calculator
	sink    Sink
	now     func() time.Time
	cron    *cron.Cron
	reports []config.ScheduledReport
	mu      sync.Mutex
}

// NewRunner creates a runner. now supplies the reference time for each run.
func NewRunner(calc *adherence.Calculator, reports []config.ScheduledReport, now func() time.Time, sink Sink) *Runner {
	return &Runner{
		calc:    calc,
		reports: reports,
		now:     now,
		sink:    sink,
	}
}

// RunOnce computes every configured report against a single now.
// A failing report is passed to the sink and does not stop the others.
func (r *Runner) RunOnce(ctx context.Context) int {
	now := r.now()
	failed := 0

	for _, job := range r.reports {
		report, err := r.calc.Calculate(ctx, job.User, job.Subject, job.Days, now)
		res := Result{Job: job, Report: report, Err: err}
		if err != nil {
			failed++
			slog.Warn("Scheduled adherence report failed",
				"user_id", job.User,
				"subject", job.Subject,
				"error", err)
		} else {
			res.Alerts = adherence.Alerts(report)
			slog.Info("Computed scheduled adherence report",
				"user_id", job.User,
				"subject", job.Subject,
				"adherence", report.AdherencePercentage,
				"alerts", len(res.Alerts))
		}
		r.sink(res)
	}
	return failed
}

// Run executes RunOnce on every tick of spec until ctx is canceled.
// Runs never overlap.
func (r *Runner) Run(ctx context.Context, spec string) error {
	r.mu.Lock()
	if r.cron != nil {
		r.mu.Unlock()
		return fmt.Errorf("scheduler already running")
	}
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(spec, func() { r.RunOnce(ctx) }); err != nil {
		r.mu.Unlock()
		return fmt.Errorf("invalid schedule %q: %w", spec, err)
	}
	r.cron = c
	r.mu.Unlock()

	slog.Info("Scheduler started", "schedule", spec, "reports", len(r.reports))
	c.Start()

	<-ctx.Done()
	<-c.Stop().Done()

	r.mu.Lock()
	r.cron = nil
	r.mu.Unlock()

	slog.Info("Scheduler stopped")
	return nil
}

// Next returns the next activation of spec after now.
func Next(spec string, now time.Time) (time.Time, error) {
	sched, err := cron.ParseStandard(spec)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid schedule %q: %w", spec, err)
	}
	return sched.Next(now), nil
}
