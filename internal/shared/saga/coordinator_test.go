package saga

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type tally struct {
	Seen []string `json:"seen"`
}

func record(item string, endAt int) Step[tally, string] {
	return func(s tally, exists bool) (tally, []string, Lifecycle, error) {
		if !exists && item != "start" {
			return s, nil, Ignore, nil
		}
		s.Seen = append(s.Seen, item)
		if len(s.Seen) >= endAt {
			return s, []string{"done"}, End, nil
		}
		return s, []string{item}, Continue, nil
	}
}

func TestCoordinator_StartContinueEnd(t *testing.T) {
	store := NewMemoryStore()
	c := NewCoordinator[tally, string]("tally", store)
	ctx := context.Background()

	effects, err := c.Handle(ctx, "o-1", record("start", 3), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"start"}, effects)

	effects, err = c.Handle(ctx, "o-1", record("a", 3), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, effects)

	raw, version, err := store.Load(ctx, "tally", "o-1")
	require.NoError(t, err)
	assert.Equal(t, 2, version)
	assert.JSONEq(t, `{"seen":["start","a"]}`, string(raw))

	effects, err = c.Handle(ctx, "o-1", record("b", 3), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"done"}, effects)

	exists, err := c.Exists(ctx, "o-1")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestCoordinator_IgnoresEventsWithoutInstance(t *testing.T) {
	store := NewMemoryStore()
	c := NewCoordinator[tally, string]("tally", store)

	effects, err := c.Handle(context.Background(), "missing", record("a", 3), nil)
	require.NoError(t, err)
	assert.Empty(t, effects)
	assert.Equal(t, 0, store.Len())
}

func TestCoordinator_StepErrorLeavesStateUntouched(t *testing.T) {
	store := NewMemoryStore()
	c := NewCoordinator[tally, string]("tally", store)
	ctx := context.Background()
	_, err := c.Handle(ctx, "o-1", record("start", 5), nil)
	require.NoError(t, err)

	boom := errors.New("boom")
	_, err = c.Handle(ctx, "o-1", func(s tally, exists bool) (tally, []string, Lifecycle, error) {
		s.Seen = append(s.Seen, "lost")
		return s, nil, Continue, boom
	}, nil)
	assert.ErrorIs(t, err, boom)

	_, version, err := store.Load(ctx, "tally", "o-1")
	require.NoError(t, err)
	assert.Equal(t, 1, version)
}

func TestCoordinator_SerializesPerCorrelationID(t *testing.T) {
	store := NewMemoryStore()
	c := NewCoordinator[tally, string]("tally", store)
	ctx := context.Background()
	_, err := c.Handle(ctx, "o-1", record("start", 100), nil)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Handle(ctx, "o-1", record("x", 100), nil)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	_, version, err := store.Load(ctx, "tally", "o-1")
	require.NoError(t, err)
	assert.Equal(t, 21, version)
}

func TestMemoryStore_RejectsStaleVersion(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, "tally", "o-1", 0, []byte(`{}`)))
	assert.ErrorIs(t, store.Save(ctx, "tally", "o-1", 0, []byte(`{}`)), ErrConcurrencyConflict)
	require.NoError(t, store.Save(ctx, "tally", "o-1", 1, []byte(`{}`)))
}

func TestCoordinator_EndKeepsInstanceUntilFinishSucceeds(t *testing.T) {
	store := NewMemoryStore()
	c := NewCoordinator[tally, string]("tally", store)
	ctx := context.Background()
	_, err := c.Handle(ctx, "o-1", record("start", 2), nil)
	require.NoError(t, err)

	boom := errors.New("append failed")
	var finished [][]string
	finish := func(_ context.Context, effects []string) error {
		finished = append(finished, effects)
		if len(finished) == 1 {
			return boom
		}
		return nil
	}

	_, err = c.Handle(ctx, "o-1", record("a", 2), finish)
	assert.ErrorIs(t, err, boom)
	exists, err := c.Exists(ctx, "o-1")
	require.NoError(t, err)
	assert.True(t, exists)

	raw, _, err := store.Load(ctx, "tally", "o-1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"seen":["start","a"]}`, string(raw))

	// redelivery of an event that ends the instance again
	effects, err := c.Handle(ctx, "o-1", func(s tally, exists bool) (tally, []string, Lifecycle, error) {
		return s, []string{"done"}, End, nil
	}, finish)
	require.NoError(t, err)
	assert.Empty(t, effects)
	assert.Equal(t, [][]string{{"done"}, {"done"}}, finished)
	assert.Equal(t, 0, store.Len())
}
