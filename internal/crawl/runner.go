// Package crawl runs the listing pipeline for a source: walk its pages, keep
// what is new, match it against subscriptions and notify the interested users.
package crawl

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jdholdren/aptwatch/internal/aptwatch"
	"github.com/jdholdren/aptwatch/internal/dedup"
	"github.com/jdholdren/aptwatch/internal/lock"
	"github.com/jdholdren/aptwatch/internal/logger"
	"github.com/jdholdren/aptwatch/internal/match"
	"github.com/jdholdren/aptwatch/internal/notify"
)

// ErrSourceInactive is returned when a run is requested for a disabled source.
var ErrSourceInactive = errors.New("source is not active")

// Result summarizes one run. A run that did not complete reports only OK=false.
type Result struct {
	OK        bool `json:"ok"`
	TotalSeen int  `json:"total_seen"`
	NewCount  int  `json:"new_count"`
}

// Summary renders the result the way run reports show it.
func (r Result) Summary() string {
	if !r.OK {
		return "Scraper failed"
	}

	return fmt.Sprintf("Found %d listings, %d new", r.TotalSeen, r.NewCount)
}

type Params struct {
	Repo       aptwatch.Repository
	Registry   *Registry
	Dedup      *dedup.Store
	Matcher    *match.Engine
	Dispatcher *notify.Dispatcher
	// Locker defaults to an in-process lock.
	Locker   lock.Locker
	MaxPages int
	Now      func() time.Time
}

// Runner owns everything a run needs. It is built once and shared by every
// caller that triggers runs.
type Runner struct {
	repo       aptwatch.Repository
	registry   *Registry
	walker     Walker
	dedup      *dedup.Store
	matcher    *match.Engine
	dispatcher *notify.Dispatcher
	locker     lock.Locker
	now        func() time.Time
}

func NewRunner(p Params) *Runner {
	if p.Locker == nil {
		p.Locker = lock.NewLocal()
	}
	if p.Now == nil {
		p.Now = func() time.Time { return time.Now().UTC() }
	}

	return &Runner{
		repo:       p.Repo,
		registry:   p.Registry,
		walker:     Walker{MaxPages: p.MaxPages},
		dedup:      p.Dedup,
		matcher:    p.Matcher,
		dispatcher: p.Dispatcher,
		locker:     p.Locker,
		now:        p.Now,
	}
}

func lockKey(sourceID string) string {
	return "aptwatch:run:" + sourceID
}

// Run crawls a single source end to end. It never returns an error; anything
// that goes wrong is logged and reported as a failed result.
//
// Subscriptions on the source are stamped as checked only when the run
// completes.
//
// Cancelling ctx does not stop a run that has started: listings stored part
// way through would count as known and never be notified. Fetch timeouts bound
// how long a run waits.
func (r *Runner) Run(ctx context.Context, src aptwatch.Source) (res Result) {
	ctx = logger.Ctx(ctx, slog.String("source", src.Name), slog.String("source_id", src.ID))
	ctx = context.WithoutCancel(ctx)

	release, err := r.locker.Acquire(ctx, lockKey(src.ID))
	if errors.Is(err, lock.ErrHeld) {
		slog.WarnContext(ctx, "run already in progress, skipping")
		return Result{}
	}
	if err != nil {
		slog.ErrorContext(ctx, "error acquiring run lock", "err", err)
		return Result{}
	}
	defer release()

	defer func() {
		if p := recover(); p != nil {
			slog.ErrorContext(ctx, "run panicked", "panic", p)
			res = Result{}
		}
	}()

	start := time.Now()
	res, err = r.run(ctx, src)
	if err != nil {
		slog.ErrorContext(ctx, "run failed", "err", err)
		return Result{}
	}
	slog.InfoContext(ctx, "run complete",
		"total_seen", res.TotalSeen,
		"new", res.NewCount,
		"duration", time.Since(start),
	)

	return res
}

func (r *Runner) run(ctx context.Context, src aptwatch.Source) (Result, error) {
	strategy, err := r.registry.Lookup(src)
	if err != nil {
		return Result{}, err
	}

	walk := r.walker.Walk(ctx, src, strategy)
	if walk.Err != nil {
		slog.WarnContext(ctx, "pagination ended early", "pages", walk.Pages, "err", walk.Err)
	}

	fresh, err := r.dedup.FilterAndPersist(ctx, src.ID, walk.Records)
	if err != nil {
		return Result{}, fmt.Errorf("error persisting listings: %w", err)
	}

	matches, err := r.matcher.Match(ctx, src.ID, fresh)
	if err != nil {
		return Result{}, fmt.Errorf("error matching listings: %w", err)
	}
	if len(matches) > 0 {
		report := r.dispatcher.Dispatch(ctx, src.Name, matches)
		slog.InfoContext(ctx, "dispatched notifications",
			"users", report.Users,
			"sent", report.Sent,
			"failed", report.Failed,
		)
	}

	if err := r.repo.StampLastChecked(ctx, src.ID, r.now()); err != nil {
		return Result{}, fmt.Errorf("error stamping last checked: %w", err)
	}

	return Result{OK: true, TotalSeen: len(walk.Records), NewCount: len(fresh)}, nil
}

// RunAll runs every active source one after another and summarizes each by
// name.
func (r *Runner) RunAll(ctx context.Context) map[string]string {
	srcs, err := r.repo.ActiveSources(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "error loading active sources", "err", err)
		return map[string]string{}
	}

	summary := make(map[string]string, len(srcs))
	for _, src := range srcs {
		if ctx.Err() != nil {
			break
		}
		summary[src.Name] = r.Run(ctx, src).Summary()
	}

	return summary
}

// RunSource runs the source with the given id if it exists and is active.
func (r *Runner) RunSource(ctx context.Context, sourceID string) (Result, error) {
	src, err := r.repo.Source(ctx, sourceID)
	if err != nil {
		return Result{}, fmt.Errorf("error fetching source: %w", err)
	}
	if !src.Active {
		return Result{}, ErrSourceInactive
	}

	return r.Run(ctx, src), nil
}
