package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.temporal.io/api/serviceerror"
	"go.temporal.io/api/workflowservice/v1"
	"google.golang.org/protobuf/types/known/durationpb"
)

// Workflow histories are kept this long when no retention is given.
const defaultRetention = 72 * time.Hour

// EnsureNamespace registers the namespace the worker runs in. An existing
// namespace is left as it is.
func EnsureNamespace(ctx context.Context, cli workflowservice.WorkflowServiceClient, namespace string, retention time.Duration) error {
	if namespace == "" {
		namespace = "default"
	}
	if retention <= 0 {
		retention = defaultRetention
	}

	_, err := cli.RegisterNamespace(ctx, &workflowservice.RegisterNamespaceRequest{
		Namespace:                        namespace,
		Description:                      "aptwatch listing checks",
		WorkflowExecutionRetentionPeriod: durationpb.New(retention),
	})
	var alreadyErr *serviceerror.NamespaceAlreadyExists
	if errors.As(err, &alreadyErr) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("error registering namespace %s: %s", namespace, err)
	}
	slog.InfoContext(ctx, "registered temporal namespace", "namespace", namespace, "retention", retention)

	return nil
}
