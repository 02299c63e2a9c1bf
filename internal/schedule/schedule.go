// Package schedule triggers a check of every active source on a fixed interval.
package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Checker runs every active source.
type Checker interface {
	RunAll(ctx context.Context) map[string]string
}

// Scheduler wraps robfig/cron. Ticks that land while a check is still running
// are skipped.
type Scheduler struct {
	cron    *cron.Cron
	checker Checker
	spec    string
}

func New(checker Checker, every time.Duration) *Scheduler {
	l := cronLogger{}
	return &Scheduler{
		cron:    cron.New(cron.WithLogger(l), cron.WithChain(cron.Recover(l), cron.SkipIfStillRunning(l))),
		checker: checker,
		spec:    fmt.Sprintf("@every %s", every),
	}
}

// Run checks once right away, then on every tick until ctx is done. It waits
// for an in-flight check to finish before returning.
func (s *Scheduler) Run(ctx context.Context) error {
	id, err := s.cron.AddFunc(s.spec, func() {
		s.check(ctx)
	})
	if err != nil {
		return fmt.Errorf("error adding check job: %w", err)
	}

	s.cron.Start()
	slog.InfoContext(ctx, "scheduler started", "spec", s.spec)

	// Through the wrapped job so the first run counts as running for the skip
	// check.
	var first sync.WaitGroup
	first.Add(1)
	go func() {
		defer first.Done()
		s.cron.Entry(id).WrappedJob.Run()
	}()

	<-ctx.Done()
	<-s.cron.Stop().Done()
	first.Wait()
	slog.Info("scheduler stopped")

	return nil
}

func (s *Scheduler) check(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	start := time.Now()
	summary := s.checker.RunAll(ctx)
	slog.InfoContext(ctx, "check cycle complete", "sources", summary, "duration", time.Since(start))
}

// Routes cron's own logging through slog.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...any) {
	slog.Debug(msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...any) {
	slog.Error(msg, append(keysAndValues, "err", err)...)
}
