package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/jdholdren/aptwatch/internal/aptwatch"
	"github.com/jdholdren/aptwatch/internal/crawl"
	apperrs "github.com/jdholdren/aptwatch/internal/errors"
)

type workflows struct{}

// A run fetches up to a few pages with a wait on each and then sends email, so
// it gets a generous window. It is never retried: a second attempt would
// notify nobody new but would crawl the site again.
var checkOptions = workflow.ActivityOptions{
	StartToCloseTimeout: 10 * time.Minute,
	RetryPolicy: &temporal.RetryPolicy{
		MaximumAttempts: 1,
	},
}

// CheckAllSources checks every active source, one after another.
//
// Returns a summary line per source name.
func (workflows) CheckAllSources(ctx workflow.Context) (map[string]string, error) {
	lookupCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 10 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2.0,
			MaximumAttempts:    3,
		},
	})
	logger := workflow.GetLogger(ctx)

	var srcs []aptwatch.Source
	if err := workflow.ExecuteActivity(lookupCtx, acts.ActiveSources).Get(ctx, &srcs); err != nil {
		logger.Error("failed to load active sources", "error", err)
		return nil, err
	}

	ctx = workflow.WithActivityOptions(ctx, checkOptions)
	summary := make(map[string]string, len(srcs))
	for _, src := range srcs {
		var res crawl.Result
		if err := workflow.ExecuteActivity(ctx, acts.CheckSource, src).Get(ctx, &res); err != nil {
			logger.Error("failed to check source", "source_id", src.ID, "error", err)
		}
		summary[src.Name] = res.Summary()
	}

	return summary, nil
}

// CheckSource checks one source on demand.
func (workflows) CheckSource(ctx workflow.Context, sourceID string) (crawl.Result, error) {
	ctx = workflow.WithActivityOptions(ctx, checkOptions)

	var res crawl.Result
	if err := workflow.ExecuteActivity(ctx, acts.CheckSourceByID, sourceID).Get(ctx, &res); err != nil {
		return crawl.Result{}, err
	}

	return res, nil
}

// Client triggers checks through temporal instead of running them in process.
type Client struct {
	c client.Client
}

func NewClient(c client.Client) Client {
	return Client{c: c}
}

// RunAll starts a check of every source and waits for the summary.
func (c Client) RunAll(ctx context.Context) map[string]string {
	options := client.StartWorkflowOptions{
		TaskQueue: TaskQueue,
	}
	we, err := c.c.ExecuteWorkflow(ctx, options, workflows{}.CheckAllSources)
	if err != nil {
		slog.ErrorContext(ctx, "unable to execute workflow", "err", err)
		return map[string]string{}
	}

	var summary map[string]string
	if err := we.Get(ctx, &summary); err != nil {
		slog.ErrorContext(ctx, "error executing workflow", "workflow_id", we.GetID(), "err", err)
		return map[string]string{}
	}

	return summary
}

// RunSource starts a check of one source and waits for its result.
func (c Client) RunSource(ctx context.Context, sourceID string) (crawl.Result, error) {
	options := client.StartWorkflowOptions{
		TaskQueue: TaskQueue,
	}
	we, err := c.c.ExecuteWorkflow(ctx, options, workflows{}.CheckSource, sourceID)
	if err != nil {
		return crawl.Result{}, fmt.Errorf("unable to execute workflow: %s", err)
	}

	var res crawl.Result
	err = we.Get(ctx, &res)
	appErr := &apperrs.Error{}
	if asAppErr(err, &appErr) {
		return crawl.Result{}, appErr
	}
	if err != nil {
		return crawl.Result{}, fmt.Errorf("error executing workflow: %s", err)
	}

	return res, nil
}
