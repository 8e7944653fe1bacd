// Package supervisor bounds a run with a wall-clock timeout, classifies its
// terminal outcome, and performs the finalization steps that must happen no
// matter how the run ended: outcome and end markers in the run log, a storage
// index refresh, and an end-of-run notification.
package supervisor

import (
	"context"
	"fmt"
	"time"

	"github.com/baophamtd/reolink-automation/index"
	"github.com/baophamtd/reolink-automation/logger"
	"github.com/baophamtd/reolink-automation/model"
	"github.com/baophamtd/reolink-automation/notify"
	"github.com/baophamtd/reolink-automation/pipeline"
	"github.com/baophamtd/reolink-automation/runlog"
	"github.com/baophamtd/reolink-automation/schedule"
)

// finalizeTimeout bounds the post-run cleanup separately from the run itself,
// so a timed-out run still gets its index refresh and notification.
const finalizeTimeout = 60 * time.Second

// Pipeline is the unit of work the supervisor bounds and classifies.
type Pipeline interface {
	Run(ctx context.Context, dates schedule.DateRange) (*pipeline.RunStats, error)
}

// Supervisor wraps one pipeline execution.
type Supervisor struct {
	pipeline  Pipeline
	runLog    *runlog.RunLog
	refresher index.Refresher
	notifier  notify.Notifier
	log       logger.Logger
	timeout   time.Duration

	now func() time.Time
}

// New creates a Supervisor. A nil refresher or notifier falls back to a no-op.
func New(p Pipeline, rl *runlog.RunLog, ref index.Refresher, n notify.Notifier, log logger.Logger, timeout time.Duration) *Supervisor {
	if ref == nil {
		ref = index.NewNoOpRefresher()
	}
	if n == nil {
		n = notify.NewNoOpNotifier()
	}
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Supervisor{
		pipeline:  p,
		runLog:    rl,
		refresher: ref,
		notifier:  n,
		log:       log,
		timeout:   timeout,
		now:       time.Now,
	}
}

// Run executes the pipeline under the wall-clock timeout and returns the
// terminal classification. The finalization block runs on every path.
func (s *Supervisor) Run(ctx context.Context, dates schedule.DateRange) model.RunOutcome {
	s.runLog.WriteRunStart(s.now())
	s.runLog.WriteTimeoutNotice(int(s.timeout.Seconds()))

	if err := s.notifier.Notify(ctx, fmt.Sprintf("Starting clip archival run for %s", dates)); err != nil {
		s.log.Warn("failed to send start notification: %v", err)
	}

	runCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	started := s.now()
	stats, err := s.pipeline.Run(runCtx, dates)
	elapsed := s.now().Sub(started).Round(time.Second)

	var outcome model.RunOutcome
	switch {
	case runCtx.Err() == context.DeadlineExceeded:
		// The run-level deadline is authoritative. Per-request timeouts
		// inside the pipeline surface as ordinary failures.
		outcome = model.TimedOut(runCtx.Err())
	case err != nil:
		outcome = model.Failed(err)
	default:
		outcome = model.Success()
	}

	if stats != nil {
		s.log.Info("%s (elapsed %s)", stats.String(), elapsed)
	}
	if outcome.Err != nil {
		s.log.Error("run %s: %v", outcome, outcome.Err)
	}

	s.runLog.WriteOutcome(outcome)
	s.finalize(outcome, stats, elapsed)
	s.runLog.WriteRunEnd(s.now())

	return outcome
}

// finalize refreshes the storage index and sends the end-of-run notification
// on a fresh context, since the run's own context may already be dead.
func (s *Supervisor) finalize(outcome model.RunOutcome, stats *pipeline.RunStats, elapsed time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), finalizeTimeout)
	defer cancel()

	if err := s.refresher.Refresh(ctx); err != nil {
		s.log.Error("failed to refresh storage index: %v", err)
	}

	if err := s.notifier.Notify(ctx, endMessage(outcome, stats, elapsed)); err != nil {
		s.log.Warn("failed to send end notification: %v", err)
	}
}

func endMessage(outcome model.RunOutcome, stats *pipeline.RunStats, elapsed time.Duration) string {
	summary := "no stats"
	if stats != nil {
		summary = fmt.Sprintf("%d archived, %d skipped, %d failed", stats.Archived, stats.Skipped, stats.Failed)
	}

	switch {
	case outcome.IsSuccess():
		return fmt.Sprintf("Run completed in %s: %s", elapsed, summary)
	case outcome.IsTimeout():
		return fmt.Sprintf("Run timed out after %s: %s", elapsed, summary)
	default:
		return fmt.Sprintf("Run failed after %s (exit code %d): %s", elapsed, outcome.Code, summary)
	}
}
