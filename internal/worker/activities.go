package worker

import (
	"context"
	"errors"
	"net/http"

	"go.temporal.io/sdk/temporal"

	"github.com/jdholdren/aptwatch/internal/aptwatch"
	"github.com/jdholdren/aptwatch/internal/crawl"
	apperrs "github.com/jdholdren/aptwatch/internal/errors"
)

// Runner is the part of the crawl runner the activities drive.
type Runner interface {
	Run(ctx context.Context, src aptwatch.Source) crawl.Result
	RunSource(ctx context.Context, sourceID string) (crawl.Result, error)
}

type activities struct {
	sources aptwatch.SourceRepo
	runner  Runner
}

// Instance to make the workflow a bit more readable
var acts = activities{}

// Fetches every source that should be checked.
func (a activities) ActiveSources(ctx context.Context) ([]aptwatch.Source, error) {
	srcs, err := a.sources.ActiveSources(ctx)
	if err != nil {
		return nil, err
	}

	return srcs, nil
}

// Crawls a single source end to end.
func (a activities) CheckSource(ctx context.Context, src aptwatch.Source) (crawl.Result, error) {
	return a.runner.Run(ctx, src), nil
}

// Crawls a source by id, for manual triggers.
func (a activities) CheckSourceByID(ctx context.Context, sourceID string) (crawl.Result, error) {
	res, err := a.runner.RunSource(ctx, sourceID)
	if errors.Is(err, aptwatch.ErrNotFound) {
		return crawl.Result{}, temporal.NewNonRetryableApplicationError("source not found", "apperr", err, apperrs.E(err, http.StatusNotFound))
	}
	if errors.Is(err, crawl.ErrSourceInactive) {
		return crawl.Result{}, temporal.NewNonRetryableApplicationError("source inactive", "apperr", err, apperrs.E(err, http.StatusConflict))
	}
	if err != nil {
		return crawl.Result{}, err
	}

	return res, nil
}
