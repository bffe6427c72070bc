package skills

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	cronlib "github.com/robfig/cron/v3"
)

// cronParser parses standard 5-field cron expressions (minute, hour, dom,
// month, dow).
var cronParser = cronlib.NewParser(
	cronlib.Minute | cronlib.Hour | cronlib.Dom | cronlib.Month | cronlib.Dow,
)

// Refresher triggers skill reloads on an operator-supplied cron schedule,
// for sources the filesystem watcher cannot see (store- or composite-backed
// sources).
type Refresher struct {
	schedule cronlib.Schedule
	reload   func(context.Context)
	logger   *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewRefresher parses the cron expression and binds the reload callback.
func NewRefresher(cronExpr string, reload func(context.Context), logger *slog.Logger) (*Refresher, error) {
	if reload == nil {
		return nil, fmt.Errorf("skills: nil reload callback")
	}
	schedule, err := cronParser.Parse(cronExpr)
	if err != nil {
		return nil, fmt.Errorf("skills: parse cron expression %q: %w", cronExpr, err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Refresher{schedule: schedule, reload: reload, logger: logger}, nil
}

// Start begins the schedule loop in a background goroutine.
func (r *Refresher) Start(ctx context.Context) {
	ctx, r.cancel = context.WithCancel(ctx)
	r.wg.Add(1)
	go r.loop(ctx)
	r.logger.Info("skills refresher started", "next_run", r.NextRun(time.Now()))
}

// Stop cancels the loop and waits for it to exit.
func (r *Refresher) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
	r.wg.Wait()
	r.logger.Info("skills refresher stopped")
}

// NextRun returns the next scheduled reload after the given time.
func (r *Refresher) NextRun(after time.Time) time.Time {
	return r.schedule.Next(after)
}

func (r *Refresher) loop(ctx context.Context) {
	defer r.wg.Done()

	for {
		next := r.NextRun(time.Now())
		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			r.logger.Debug("skills refresher firing", "scheduled_at", next)
			r.reload(ctx)
		}
	}
}
