package postgres

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/cristianortiz/marketplace/internal/shared/db/dbtest"
	"github.com/cristianortiz/marketplace/internal/shared/eventsourcing"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type itemListed struct {
	Title string `json:"title"`
}

func (itemListed) EventType() string { return "test.ItemListed" }

var recorded = time.Date(2025, 5, 10, 9, 0, 0, 0, time.UTC)

func newRegistry() *eventsourcing.Registry {
	r := eventsourcing.NewRegistry()
	eventsourcing.Register[itemListed](r)
	return r
}

// streamAt answers the current-version lookup with version.
func streamAt(version int) func(string, []any) pgx.Row {
	return func(sql string, _ []any) pgx.Row {
		if strings.Contains(sql, "MAX(version)") {
			return dbtest.Row{Values: []any{version}}
		}
		return dbtest.Row{Err: pgx.ErrNoRows}
	}
}

func TestEventStore_AppendNumbersVersions(t *testing.T) {
	batch := &dbtest.BatchResults{Rows: []pgx.Row{
		dbtest.Row{Values: []any{recorded}},
		dbtest.Row{Values: []any{recorded.Add(time.Millisecond)}},
	}}
	pool := &dbtest.Pool{
		OnQueryRow:  streamAt(2),
		OnSendBatch: func(*pgx.Batch) pgx.BatchResults { return batch },
	}
	store := NewEventStore(pool, newRegistry())
	id := uuid.New()

	envs, err := store.Append(context.Background(), "Item", id, 2, []eventsourcing.Event{
		itemListed{Title: "a"}, itemListed{Title: "b"},
	})

	require.NoError(t, err)
	require.Len(t, envs, 2)
	assert.Equal(t, 3, envs[0].Version)
	assert.Equal(t, 4, envs[1].Version)
	assert.Equal(t, recorded, envs[0].RecordedAt)
	assert.True(t, batch.Closed)
	assert.Equal(t, 1, pool.Committed())

	calls := pool.Calls()
	require.Len(t, calls, 3)
	assert.Contains(t, calls[1].SQL, "INSERT INTO events")
	assert.Equal(t, []any{"Item", id, 3, "test.ItemListed", []byte(`{"title":"a"}`)}, calls[1].Args)
}

func TestEventStore_AppendConflicts(t *testing.T) {
	t.Run("stale expected version", func(t *testing.T) {
		pool := &dbtest.Pool{OnQueryRow: streamAt(3)}
		store := NewEventStore(pool, newRegistry())

		_, err := store.Append(context.Background(), "Item", uuid.New(), 2, []eventsourcing.Event{itemListed{}})

		assert.ErrorIs(t, err, eventsourcing.ErrConcurrencyConflict)
		assert.Equal(t, 1, pool.RolledBack())
		assert.Len(t, pool.Calls(), 1)
	})

	t.Run("lost insert race", func(t *testing.T) {
		pool := &dbtest.Pool{
			OnQueryRow: streamAt(0),
			OnSendBatch: func(*pgx.Batch) pgx.BatchResults {
				return &dbtest.BatchResults{Rows: []pgx.Row{
					dbtest.Row{Err: &pgconn.PgError{Code: "23505", ConstraintName: "events_pkey"}},
				}}
			},
		}
		store := NewEventStore(pool, newRegistry())

		_, err := store.Append(context.Background(), "Item", uuid.New(), 0, []eventsourcing.Event{itemListed{}})

		assert.ErrorIs(t, err, eventsourcing.ErrConcurrencyConflict)
		assert.Equal(t, 0, pool.Committed())
		assert.Equal(t, 1, pool.RolledBack())
	})
}

func TestEventStore_LoadDecodesInOrder(t *testing.T) {
	payloadA, _ := json.Marshal(itemListed{Title: "a"})
	payloadB, _ := json.Marshal(itemListed{Title: "b"})
	pool := &dbtest.Pool{
		OnQuery: func(string, []any) (pgx.Rows, error) {
			return &dbtest.Rows{Data: [][]any{
				{1, "test.ItemListed", payloadA, recorded},
				{2, "test.ItemListed", payloadB, recorded},
			}}, nil
		},
	}
	store := NewEventStore(pool, newRegistry())
	id := uuid.New()

	envs, err := store.Load(context.Background(), "Item", id)

	require.NoError(t, err)
	require.Len(t, envs, 2)
	assert.Equal(t, itemListed{Title: "b"}, envs[1].Event)
	assert.Equal(t, 2, envs[1].Version)
	assert.Equal(t, id, envs[1].AggregateID)
}

func TestEventStore_LoadUnknownEventType(t *testing.T) {
	pool := &dbtest.Pool{
		OnQuery: func(string, []any) (pgx.Rows, error) {
			return &dbtest.Rows{Data: [][]any{{1, "test.Unknown", []byte(`{}`), recorded}}}, nil
		},
	}

	_, err := NewEventStore(pool, newRegistry()).Load(context.Background(), "Item", uuid.New())
	assert.ErrorIs(t, err, eventsourcing.ErrUnknownEventType)
}
