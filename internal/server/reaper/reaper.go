// Package reaper runs the periodic sweep that deletes expired refresh tokens.
package reaper

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/tokenkeeper/internal/logging"
	"github.com/robfig/cron/v3"
)

// Sweeper deletes expired tokens and reports how many rows went away.
type Sweeper interface {
	Reap(ctx context.Context) (int64, error)
}

// Reaper schedules Sweeper on a fixed period. The first sweep happens one
// period after Run starts, aligned down to whole seconds by cron.
type Reaper struct {
	sweeper Sweeper
	period  time.Duration
	log     logging.Logger
}

func New(sweeper Sweeper, period time.Duration, log logging.Logger) *Reaper {
	return &Reaper{sweeper: sweeper, period: period, log: log}
}

// RunOnce performs a single sweep. Failures are logged and returned.
func (r *Reaper) RunOnce(ctx context.Context) (int64, error) {
	n, err := r.sweeper.Reap(ctx)
	if err != nil {
		r.log.Error(ctx, "expired token cleanup failed", "error", err)
		return 0, err
	}
	r.log.Info(ctx, "expired token cleanup finished", "deleted", n)
	return n, nil
}

// Run starts the schedule and blocks until ctx is cancelled. A sweep still in
// flight at shutdown is allowed to finish.
func (r *Reaper) Run(ctx context.Context) error {
	if r.period < time.Second {
		return fmt.Errorf("reap interval %s is below one second", r.period)
	}

	adapter := cronLogger{ctx: ctx, log: r.log}
	c := cron.New(
		cron.WithLogger(adapter),
		cron.WithChain(cron.Recover(adapter), cron.SkipIfStillRunning(adapter)),
	)
	c.Schedule(cron.Every(r.period), cron.FuncJob(func() {
		// a sweep started before shutdown runs to completion
		_, _ = r.RunOnce(context.WithoutCancel(ctx))
	}))

	c.Start()
	r.log.Info(ctx, "reaper started", "interval", r.period.String())

	<-ctx.Done()

	<-c.Stop().Done()
	r.log.Info(context.Background(), "reaper stopped")
	return nil
}

// cronLogger routes cron's own messages into logging.Logger.
type cronLogger struct {
	ctx context.Context
	log logging.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug(l.ctx, "cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error(l.ctx, "cron: "+msg, append(keysAndValues, "error", err)...)
}
