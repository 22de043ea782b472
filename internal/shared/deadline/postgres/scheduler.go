package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cristianortiz/marketplace/internal/shared/clock"
	"github.com/cristianortiz/marketplace/internal/shared/db"
	"github.com/cristianortiz/marketplace/internal/shared/deadline"
	"github.com/cristianortiz/marketplace/internal/shared/logger"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

var log = logger.GetLogger()

const retryDelay = 30 * time.Second

// Scheduler persists deadlines in the deadlines table and delivers them from a poller.
// Rows are claimed with FOR UPDATE SKIP LOCKED so several pollers can run side by side.
type Scheduler struct {
	pool       db.Pool
	dispatcher *deadline.Dispatcher
	clock      clock.Clock
	batchSize  int
}

func NewScheduler(pool db.Pool, dispatcher *deadline.Dispatcher, c clock.Clock, batchSize int) *Scheduler {
	if batchSize <= 0 {
		batchSize = 50
	}
	return &Scheduler{pool: pool, dispatcher: dispatcher, clock: c, batchSize: batchSize}
}

func (s *Scheduler) Schedule(ctx context.Context, fireAt time.Time, name string, payload any) (deadline.Handle, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode deadline payload: %w", err)
	}
	id := uuid.New()
	query := `INSERT INTO deadlines (id, name, payload, fire_at) VALUES ($1, $2, $3, $4)`
	if _, err := s.pool.Exec(ctx, query, id, name, raw, fireAt.UTC()); err != nil {
		return "", fmt.Errorf("schedule deadline %s: %w", name, err)
	}
	log.Debug("Deadline scheduled", zap.String("deadline", name), zap.String("handle", id.String()), zap.Time("fireAt", fireAt))
	return deadline.Handle(id.String()), nil
}

func (s *Scheduler) Cancel(ctx context.Context, name string, handle deadline.Handle) error {
	id, err := uuid.Parse(string(handle))
	if err != nil {
		return fmt.Errorf("invalid deadline handle %q: %w", handle, err)
	}
	if _, err := s.pool.Exec(ctx, `DELETE FROM deadlines WHERE id = $1 AND name = $2`, id, name); err != nil {
		return fmt.Errorf("cancel deadline %s: %w", name, err)
	}
	return nil
}

// FireDue claims one batch of due deadlines and dispatches them. Delivered rows are deleted;
// failed ones are pushed back by the retry delay with the error recorded.
func (s *Scheduler) FireDue(ctx context.Context) (int, error) {
	now := s.clock.Now()
	fired := 0
	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `
            SELECT id, name, payload
            FROM deadlines
            WHERE fire_at <= $1
            ORDER BY fire_at ASC
            LIMIT $2
            FOR UPDATE SKIP LOCKED
        `, now, s.batchSize)
		if err != nil {
			return err
		}
		type due struct {
			id      uuid.UUID
			name    string
			payload []byte
		}
		batch, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (due, error) {
			var d due
			err := row.Scan(&d.id, &d.name, &d.payload)
			return d, err
		})
		if err != nil {
			return err
		}

		for _, d := range batch {
			if dispatchErr := s.dispatcher.Dispatch(ctx, d.name, d.payload); dispatchErr != nil {
				log.Error("Deadline delivery failed, will retry",
					zap.String("deadline", d.name),
					zap.String("handle", d.id.String()),
					zap.Error(dispatchErr),
				)
				if _, err := tx.Exec(ctx, `
                    UPDATE deadlines
                    SET attempts = attempts + 1, last_error = $2, fire_at = $3
                    WHERE id = $1
                `, d.id, dispatchErr.Error(), now.Add(retryDelay)); err != nil {
					return err
				}
				continue
			}
			if _, err := tx.Exec(ctx, `DELETE FROM deadlines WHERE id = $1`, d.id); err != nil {
				return err
			}
			fired++
		}
		return nil
	})
	return fired, err
}

// Run polls for due deadlines every interval until ctx is done.
func (s *Scheduler) Run(ctx context.Context, interval time.Duration) {
	log.Info("Deadline poller started", zap.Duration("interval", interval), zap.Int("batchSize", s.batchSize))
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info("Deadline poller stopped")
			return
		case <-ticker.C:
			if _, err := s.FireDue(ctx); err != nil && ctx.Err() == nil {
				log.Error("Deadline poll failed", zap.Error(err))
			}
		}
	}
}
