package worker

import (
	"context"
	"fmt"
	"time"

	"go.temporal.io/api/enums/v1"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	"github.com/jdholdren/aptwatch/internal/aptwatch"
)

const (
	TaskQueue = "aptwatch"

	checkScheduleID = "check_all_sources"
)

// NewWorker sets up the worker with registration of workflows, activities, and schedules.
//
// The check schedule fires every interval, and once right away when it is
// first created.
func NewWorker(ctx context.Context, sources aptwatch.SourceRepo, runner Runner, cli client.Client, interval time.Duration) (worker.Worker, error) {
	a := activities{
		sources: sources,
		runner:  runner,
	}

	w := worker.New(cli, TaskQueue, worker.Options{})

	if err := registerEverything(ctx, w, a, cli, interval); err != nil {
		return nil, fmt.Errorf("error registering workflows and activities: %T, %v", err, err)
	}

	return w, nil
}

func registerEverything(ctx context.Context, w worker.Worker, a activities, cli client.Client, interval time.Duration) error {
	// Workflows
	wfs := workflows{}
	w.RegisterWorkflow(wfs.CheckAllSources)
	w.RegisterWorkflow(wfs.CheckSource)

	// Activities
	w.RegisterActivity(&a)

	// Schedules:
	// Check every active source, skipping a tick if the last check is still going
	handle := cli.ScheduleClient().GetHandle(ctx, checkScheduleID)
	if _, err := handle.Describe(ctx); err != nil {
		handle, err = cli.ScheduleClient().Create(ctx, client.ScheduleOptions{
			ID: checkScheduleID,
			Spec: client.ScheduleSpec{
				Intervals: []client.ScheduleIntervalSpec{{Every: interval}},
			},
			Action: &client.ScheduleWorkflowAction{
				ID:        checkScheduleID,
				Workflow:  wfs.CheckAllSources,
				TaskQueue: TaskQueue,
			},
			Overlap:            enums.SCHEDULE_OVERLAP_POLICY_SKIP,
			TriggerImmediately: true,
		})
		if err != nil {
			return err
		}
	}

	// Keep the interval in step with the config on every start
	return handle.Update(ctx, client.ScheduleUpdateOptions{
		DoUpdate: func(input client.ScheduleUpdateInput) (*client.ScheduleUpdate, error) {
			sched := input.Description.Schedule
			if sched.Spec != nil {
				sched.Spec.Intervals = []client.ScheduleIntervalSpec{{Every: interval}}
			}
			return &client.ScheduleUpdate{
				Schedule: &sched,
			}, nil
		},
	})
}
