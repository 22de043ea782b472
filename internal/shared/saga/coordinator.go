package saga

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cristianortiz/marketplace/internal/shared/lock"
	"github.com/cristianortiz/marketplace/internal/shared/logger"
	"go.uber.org/zap"
)

var log = logger.GetLogger()

// Lifecycle tells the coordinator what to do with an instance after a step.
type Lifecycle int

const (
	// Ignore drops the event: nothing is saved and no effects are returned.
	Ignore Lifecycle = iota
	// Continue saves the new state.
	Continue
	// End removes the instance once its effects are carried out.
	End
)

// Step is a pure transition over one saga instance. exists is false when no
// instance is stored for the correlation id yet.
type Step[S, E any] func(state S, exists bool) (next S, effects []E, lc Lifecycle, err error)

// Coordinator runs steps for one saga type. Steps for the same correlation id
// never overlap; effects are handed back only after the new state is stored.
type Coordinator[S, E any] struct {
	sagaType    string
	store       Store
	locks       *lock.KeyedMutex
	maxAttempts int
}

func NewCoordinator[S, E any](sagaType string, store Store) *Coordinator[S, E] {
	return &Coordinator[S, E]{
		sagaType:    sagaType,
		store:       store,
		locks:       lock.NewKeyedMutex(),
		maxAttempts: 5,
	}
}

// Finish carries out the effects of a step that ended its instance.
type Finish[E any] func(ctx context.Context, effects []E) error

// Handle applies step to the instance identified by correlationID and returns
// the effects the caller must dispatch.
//
// When the step ends the instance, its final state is stored and finish runs
// while the correlation lock is still held; the instance is removed only once
// finish succeeds, so a redelivered event can retry it. Effects of an ending
// step are not returned. With a nil finish the effects are returned after the
// instance is removed.
func (c *Coordinator[S, E]) Handle(ctx context.Context, correlationID string, step Step[S, E], finish Finish[E]) ([]E, error) {
	unlock := c.locks.Lock(correlationID)
	defer unlock()

	for attempt := 1; ; attempt++ {
		effects, lc, exists, err := c.try(ctx, correlationID, step)
		if err == nil {
			if lc != End {
				return effects, nil
			}
			return c.end(ctx, correlationID, exists, effects, finish)
		}
		if !errors.Is(err, ErrConcurrencyConflict) || attempt >= c.maxAttempts {
			return nil, err
		}
		log.Warn("Saga concurrency conflict, retrying",
			zap.String("sagaType", c.sagaType),
			zap.String("correlationID", correlationID),
			zap.Int("attempt", attempt),
		)
	}
}

func (c *Coordinator[S, E]) end(ctx context.Context, correlationID string, exists bool, effects []E, finish Finish[E]) ([]E, error) {
	if finish != nil {
		if err := finish(ctx, effects); err != nil {
			log.Warn("Saga end effects failed, instance kept for redelivery",
				zap.String("sagaType", c.sagaType),
				zap.String("correlationID", correlationID),
				zap.Error(err),
			)
			return nil, err
		}
		effects = nil
	}
	if exists {
		if err := c.store.Delete(ctx, c.sagaType, correlationID); err != nil {
			return nil, fmt.Errorf("delete saga %s %s: %w", c.sagaType, correlationID, err)
		}
	}
	log.Info("Saga ended", zap.String("sagaType", c.sagaType), zap.String("correlationID", correlationID))
	return effects, nil
}

// try runs step once. For Continue and End the new state is stored.
func (c *Coordinator[S, E]) try(ctx context.Context, correlationID string, step Step[S, E]) ([]E, Lifecycle, bool, error) {
	var state S
	exists := true
	raw, version, err := c.store.Load(ctx, c.sagaType, correlationID)
	switch {
	case errors.Is(err, ErrSagaNotFound):
		exists = false
	case err != nil:
		return nil, Ignore, false, fmt.Errorf("load saga %s %s: %w", c.sagaType, correlationID, err)
	default:
		if err := json.Unmarshal(raw, &state); err != nil {
			return nil, Ignore, false, fmt.Errorf("decode saga %s %s: %w", c.sagaType, correlationID, err)
		}
	}

	next, effects, lc, err := step(state, exists)
	if err != nil {
		return nil, Ignore, exists, err
	}
	if lc == Ignore {
		return nil, Ignore, exists, nil
	}

	encoded, err := json.Marshal(next)
	if err != nil {
		return nil, Ignore, exists, fmt.Errorf("encode saga %s %s: %w", c.sagaType, correlationID, err)
	}
	if err := c.store.Save(ctx, c.sagaType, correlationID, version, encoded); err != nil {
		if errors.Is(err, ErrConcurrencyConflict) {
			return nil, Ignore, exists, err
		}
		return nil, Ignore, exists, fmt.Errorf("save saga %s %s: %w", c.sagaType, correlationID, err)
	}
	return effects, lc, true, nil
}

// Exists reports whether an instance is stored for correlationID.
func (c *Coordinator[S, E]) Exists(ctx context.Context, correlationID string) (bool, error) {
	_, _, err := c.store.Load(ctx, c.sagaType, correlationID)
	if errors.Is(err, ErrSagaNotFound) {
		return false, nil
	}
	return err == nil, err
}
