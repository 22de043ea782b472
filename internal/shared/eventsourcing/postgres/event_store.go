package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cristianortiz/marketplace/internal/shared/db"
	"github.com/cristianortiz/marketplace/internal/shared/eventsourcing"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// EventStore implements eventsourcing.Store on the events table.
// The (aggregate_type, aggregate_id, version) primary key turns a lost race into a unique violation.
type EventStore struct {
	pool     db.Pool
	registry *eventsourcing.Registry
}

func NewEventStore(pool db.Pool, registry *eventsourcing.Registry) *EventStore {
	return &EventStore{pool: pool, registry: registry}
}

func (s *EventStore) Load(ctx context.Context, aggregateType string, id uuid.UUID) ([]eventsourcing.Envelope, error) {
	query := `
        SELECT version, event_type, payload, recorded_at
        FROM events
        WHERE aggregate_type = $1 AND aggregate_id = $2
        ORDER BY version ASC
    `
	rows, err := s.pool.Query(ctx, query, aggregateType, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var envs []eventsourcing.Envelope
	for rows.Next() {
		var (
			version    int
			eventType  string
			payload    []byte
			recordedAt time.Time
		)
		if err := rows.Scan(&version, &eventType, &payload, &recordedAt); err != nil {
			return nil, err
		}
		e, err := s.registry.Decode(eventType, payload)
		if err != nil {
			return nil, err
		}
		envs = append(envs, eventsourcing.Envelope{
			AggregateType: aggregateType,
			AggregateID:   id,
			Version:       version,
			Event:         e,
			RecordedAt:    recordedAt,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return envs, nil
}

func (s *EventStore) Append(ctx context.Context, aggregateType string, id uuid.UUID, expectedVersion int, events []eventsourcing.Event) ([]eventsourcing.Envelope, error) {
	var appended []eventsourcing.Envelope

	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		var current int
		err := tx.QueryRow(ctx,
			`SELECT COALESCE(MAX(version), 0) FROM events WHERE aggregate_type = $1 AND aggregate_id = $2`,
			aggregateType, id,
		).Scan(&current)
		if err != nil {
			return err
		}
		if current != expectedVersion {
			return eventsourcing.ErrConcurrencyConflict
		}

		batch := &pgx.Batch{}
		for i, e := range events {
			payload, err := json.Marshal(e)
			if err != nil {
				return fmt.Errorf("marshal %s: %w", e.EventType(), err)
			}
			batch.Queue(`
                INSERT INTO events (aggregate_type, aggregate_id, version, event_type, payload)
                VALUES ($1, $2, $3, $4, $5)
                RETURNING recorded_at`,
				aggregateType, id, expectedVersion+i+1, e.EventType(), payload,
			)
		}

		results := tx.SendBatch(ctx, batch)
		appended = make([]eventsourcing.Envelope, 0, len(events))
		for i, e := range events {
			var recordedAt time.Time
			if err := results.QueryRow().Scan(&recordedAt); err != nil {
				_ = results.Close()
				return err
			}
			appended = append(appended, eventsourcing.Envelope{
				AggregateType: aggregateType,
				AggregateID:   id,
				Version:       expectedVersion + i + 1,
				Event:         e,
				RecordedAt:    recordedAt,
			})
		}
		return results.Close()
	})
	if err != nil {
		if db.IsUniqueViolation(err) {
			return nil, eventsourcing.ErrConcurrencyConflict
		}
		return nil, err
	}
	return appended, nil
}
