// Package temporal runs each deadline as a Temporal workflow that sleeps until
// the fire time and then delivers the payload through an activity.
package temporal

import (
	"context"
	"time"

	"github.com/cristianortiz/marketplace/internal/shared/deadline"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

// Request is the workflow input.
type Request struct {
	Name    string    `json:"name"`
	Payload []byte    `json:"payload"`
	FireAt  time.Time `json:"fireAt"`
}

// DeadlineWorkflow waits until FireAt and then fires the deadline. Cancelling the
// workflow while it sleeps cancels the deadline.
func DeadlineWorkflow(ctx workflow.Context, req Request) error {
	if wait := req.FireAt.Sub(workflow.Now(ctx)); wait > 0 {
		if err := workflow.Sleep(ctx, wait); err != nil {
			return err
		}
	}

	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2,
			MaximumInterval:    5 * time.Minute,
		},
	})
	var a *Activities
	return workflow.ExecuteActivity(ctx, a.FireDeadline, req).Get(ctx, nil)
}

// Activities hands fired deadlines to the dispatcher.
type Activities struct {
	Dispatcher *deadline.Dispatcher
}

func (a *Activities) FireDeadline(ctx context.Context, req Request) error {
	return a.Dispatcher.Dispatch(ctx, req.Name, req.Payload)
}
