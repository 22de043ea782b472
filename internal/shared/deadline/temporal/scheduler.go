package temporal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cristianortiz/marketplace/internal/shared/deadline"
	"github.com/cristianortiz/marketplace/internal/shared/logger"
	"github.com/google/uuid"
	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.uber.org/zap"
)

var log = logger.GetLogger()

// Scheduler starts one DeadlineWorkflow per deadline; the workflow ID is the handle.
type Scheduler struct {
	client    client.Client
	taskQueue string
}

func NewScheduler(c client.Client, taskQueue string) *Scheduler {
	return &Scheduler{client: c, taskQueue: taskQueue}
}

// Dial connects to the Temporal frontend.
func Dial(ctx context.Context, hostPort, namespace string) (client.Client, error) {
	return client.DialContext(ctx, client.Options{HostPort: hostPort, Namespace: namespace})
}

// NewWorker registers the deadline workflow and its activity on taskQueue.
func NewWorker(c client.Client, taskQueue string, dispatcher *deadline.Dispatcher) worker.Worker {
	w := worker.New(c, taskQueue, worker.Options{})
	w.RegisterWorkflow(DeadlineWorkflow)
	w.RegisterActivity(&Activities{Dispatcher: dispatcher})
	return w
}

func (s *Scheduler) Schedule(ctx context.Context, fireAt time.Time, name string, payload any) (deadline.Handle, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode deadline payload: %w", err)
	}
	opts := client.StartWorkflowOptions{
		ID:        fmt.Sprintf("deadline-%s-%s", name, uuid.NewString()),
		TaskQueue: s.taskQueue,
	}
	run, err := s.client.ExecuteWorkflow(ctx, opts, DeadlineWorkflow, Request{Name: name, Payload: raw, FireAt: fireAt.UTC()})
	if err != nil {
		return "", fmt.Errorf("start deadline workflow %s: %w", name, err)
	}
	log.Debug("Deadline workflow started", zap.String("deadline", name), zap.String("workflowID", run.GetID()), zap.Time("fireAt", fireAt))
	return deadline.Handle(run.GetID()), nil
}

func (s *Scheduler) Cancel(ctx context.Context, name string, handle deadline.Handle) error {
	err := s.client.CancelWorkflow(ctx, string(handle), "")
	var notFound *serviceerror.NotFound
	if err != nil && !errors.As(err, &notFound) {
		return fmt.Errorf("cancel deadline %s: %w", name, err)
	}
	return nil
}
