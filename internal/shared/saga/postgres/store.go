package postgres

import (
	"context"
	"errors"

	"github.com/cristianortiz/marketplace/internal/shared/db"
	"github.com/cristianortiz/marketplace/internal/shared/saga"
	"github.com/jackc/pgx/v5"
)

// Store implements saga.Store on the sagas table with version-checked writes.
type Store struct {
	pool db.Pool
}

func NewStore(pool db.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) Load(ctx context.Context, sagaType, correlationID string) ([]byte, int, error) {
	query := `SELECT state, version FROM sagas WHERE saga_type = $1 AND correlation_id = $2`
	var (
		state   []byte
		version int
	)
	err := s.pool.QueryRow(ctx, query, sagaType, correlationID).Scan(&state, &version)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, 0, saga.ErrSagaNotFound
	}
	if err != nil {
		return nil, 0, err
	}
	return state, version, nil
}

func (s *Store) Save(ctx context.Context, sagaType, correlationID string, expectedVersion int, state []byte) error {
	if expectedVersion == 0 {
		query := `INSERT INTO sagas (saga_type, correlation_id, version, state) VALUES ($1, $2, 1, $3)`
		_, err := s.pool.Exec(ctx, query, sagaType, correlationID, state)
		if db.IsUniqueViolation(err) {
			return saga.ErrConcurrencyConflict
		}
		return err
	}

	query := `
        UPDATE sagas
        SET state = $4, version = version + 1, updated_at = NOW()
        WHERE saga_type = $1 AND correlation_id = $2 AND version = $3
    `
	tag, err := s.pool.Exec(ctx, query, sagaType, correlationID, expectedVersion, state)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return saga.ErrConcurrencyConflict
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, sagaType, correlationID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM sagas WHERE saga_type = $1 AND correlation_id = $2`, sagaType, correlationID)
	return err
}
