package eventsourcing

import (
	"context"
	"errors"
	"fmt"

	"github.com/cristianortiz/marketplace/internal/shared/lock"
	"github.com/cristianortiz/marketplace/internal/shared/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var log = logger.GetLogger()

const defaultMaxAttempts = 5

// Publisher receives committed envelopes after the aggregate lock is released.
type Publisher interface {
	Publish(ctx context.Context, envs ...Envelope)
}

// Decide inspects the replayed aggregate and returns the events a command produces.
// Returning no events and no error means the command was a no-op.
type Decide[T Aggregate] func(agg T) ([]Event, error)

// Repository loads aggregates by replay and executes commands against them,
// strictly serialized per aggregate id within the process and guarded by
// optimistic appends across processes.
type Repository[T Aggregate] struct {
	aggregateType string
	newAggregate  func() T
	store         Store
	publisher     Publisher
	locks         *lock.KeyedMutex
	maxAttempts   int
}

type RepositoryOption func(*repositoryOptions)

type repositoryOptions struct {
	maxAttempts int
}

// WithMaxAttempts bounds how often a command is re-evaluated after a concurrency conflict.
func WithMaxAttempts(n int) RepositoryOption {
	return func(o *repositoryOptions) {
		if n > 0 {
			o.maxAttempts = n
		}
	}
}

func NewRepository[T Aggregate](aggregateType string, newAggregate func() T, store Store, publisher Publisher, opts ...RepositoryOption) *Repository[T] {
	o := repositoryOptions{maxAttempts: defaultMaxAttempts}
	for _, opt := range opts {
		opt(&o)
	}
	return &Repository[T]{
		aggregateType: aggregateType,
		newAggregate:  newAggregate,
		store:         store,
		publisher:     publisher,
		locks:         lock.NewKeyedMutex(),
		maxAttempts:   o.maxAttempts,
	}
}

// Load replays the stream of id. A missing stream yields a fresh aggregate at version 0.
func (r *Repository[T]) Load(ctx context.Context, id uuid.UUID) (T, int, error) {
	agg := r.newAggregate()
	envs, err := r.store.Load(ctx, r.aggregateType, id)
	if err != nil {
		return agg, 0, fmt.Errorf("load %s %s: %w", r.aggregateType, id, err)
	}
	for _, env := range envs {
		agg.Apply(env.Event)
	}
	return agg, len(envs), nil
}

// Execute runs decide against the current state of id and appends what it returns atomically.
// On a concurrency conflict the state is re-read and decide is evaluated again.
func (r *Repository[T]) Execute(ctx context.Context, id uuid.UUID, decide Decide[T]) ([]Envelope, error) {
	committed, err := r.execute(ctx, id, decide)
	if err != nil {
		return nil, err
	}
	if len(committed) > 0 && r.publisher != nil {
		r.publisher.Publish(ctx, committed...)
	}
	return committed, nil
}

func (r *Repository[T]) execute(ctx context.Context, id uuid.UUID, decide Decide[T]) ([]Envelope, error) {
	unlock := r.locks.Lock(r.aggregateType + "/" + id.String())
	defer unlock()

	for attempt := 1; ; attempt++ {
		agg, version, err := r.Load(ctx, id)
		if err != nil {
			return nil, err
		}

		events, err := decide(agg)
		if err != nil {
			return nil, err
		}
		if len(events) == 0 {
			return nil, nil
		}

		committed, err := r.store.Append(ctx, r.aggregateType, id, version, events)
		if err == nil {
			return committed, nil
		}
		if !errors.Is(err, ErrConcurrencyConflict) {
			return nil, fmt.Errorf("append %s %s: %w", r.aggregateType, id, err)
		}
		if attempt >= r.maxAttempts {
			return nil, fmt.Errorf("append %s %s after %d attempts: %w", r.aggregateType, id, attempt, err)
		}
		log.Warn("Concurrency conflict, re-evaluating command",
			zap.String("aggregateType", r.aggregateType),
			zap.String("aggregateID", id.String()),
			zap.Int("attempt", attempt),
		)
	}
}
