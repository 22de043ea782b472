// Package dbtest provides a scripted db.Pool for store tests that do not need
// a running postgres.
package dbtest

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/cristianortiz/marketplace/internal/shared/db"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Call is one statement the pool received.
type Call struct {
	SQL  string
	Args []any
	InTx bool
}

// Pool answers statements through the script funcs. A nil func answers with
// an empty result.
type Pool struct {
	OnExec     func(sql string, args []any) (pgconn.CommandTag, error)
	OnQuery    func(sql string, args []any) (pgx.Rows, error)
	OnQueryRow func(sql string, args []any) pgx.Row
	// OnSendBatch answers the statements queued in a transaction batch.
	OnSendBatch func(b *pgx.Batch) pgx.BatchResults

	mu         sync.Mutex
	calls      []Call
	committed  int
	rolledBack int
}

var _ db.Pool = (*Pool)(nil)

func (p *Pool) record(sql string, args []any, inTx bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, Call{SQL: compact(sql), Args: args, InTx: inTx})
}

// Calls returns the statements received so far, whitespace collapsed.
func (p *Pool) Calls() []Call {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Call(nil), p.calls...)
}

func (p *Pool) Committed() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.committed
}

func (p *Pool) RolledBack() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rolledBack
}

func (p *Pool) exec(sql string, args []any, inTx bool) (pgconn.CommandTag, error) {
	p.record(sql, args, inTx)
	if p.OnExec == nil {
		return pgconn.NewCommandTag(""), nil
	}
	return p.OnExec(compact(sql), args)
}

func (p *Pool) query(sql string, args []any, inTx bool) (pgx.Rows, error) {
	p.record(sql, args, inTx)
	if p.OnQuery == nil {
		return &Rows{}, nil
	}
	return p.OnQuery(compact(sql), args)
}

func (p *Pool) queryRow(sql string, args []any, inTx bool) pgx.Row {
	p.record(sql, args, inTx)
	if p.OnQueryRow == nil {
		return Row{Err: pgx.ErrNoRows}
	}
	return p.OnQueryRow(compact(sql), args)
}

func (p *Pool) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return p.exec(sql, args, false)
}

func (p *Pool) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return p.query(sql, args, false)
}

func (p *Pool) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return p.queryRow(sql, args, false)
}

func (p *Pool) BeginTx(ctx context.Context, _ pgx.TxOptions) (pgx.Tx, error) {
	return &tx{pool: p}, nil
}

// tx routes statements back to its pool. Methods the stores never call are
// left to the embedded nil interface.
type tx struct {
	pgx.Tx
	pool *Pool
}

func (t *tx) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return t.pool.exec(sql, args, true)
}

func (t *tx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return t.pool.query(sql, args, true)
}

func (t *tx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return t.pool.queryRow(sql, args, true)
}

func (t *tx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults {
	for _, q := range b.QueuedQueries {
		t.pool.record(q.SQL, q.Arguments, true)
	}
	if t.pool.OnSendBatch == nil {
		return &BatchResults{}
	}
	return t.pool.OnSendBatch(b)
}

func (t *tx) Commit(ctx context.Context) error {
	t.pool.mu.Lock()
	defer t.pool.mu.Unlock()
	t.pool.committed++
	return nil
}

func (t *tx) Rollback(ctx context.Context) error {
	t.pool.mu.Lock()
	defer t.pool.mu.Unlock()
	t.pool.rolledBack++
	return nil
}

// Row is a single result row, or an error returned from Scan.
type Row struct {
	Values []any
	Err    error
}

func (r Row) Scan(dest ...any) error {
	if r.Err != nil {
		return r.Err
	}
	return assign(dest, r.Values)
}

// Rows iterates over Data.
type Rows struct {
	pgx.Rows
	Data   [][]any
	pos    int
	closed bool
}

func (r *Rows) Next() bool {
	if r.closed || r.pos >= len(r.Data) {
		return false
	}
	r.pos++
	return true
}

func (r *Rows) Scan(dest ...any) error {
	return assign(dest, r.Data[r.pos-1])
}

func (r *Rows) Close() { r.closed = true }

func (r *Rows) Err() error { return nil }

// BatchResults hands out Rows in order, one per queued statement.
type BatchResults struct {
	Rows   []pgx.Row
	pos    int
	Closed bool
}

func (b *BatchResults) Exec() (pgconn.CommandTag, error) {
	if r, ok := b.QueryRow().(Row); ok && r.Err != nil {
		return pgconn.NewCommandTag(""), r.Err
	}
	return pgconn.NewCommandTag(""), nil
}

func (b *BatchResults) Query() (pgx.Rows, error) {
	return nil, fmt.Errorf("dbtest: batch Query not supported")
}

func (b *BatchResults) QueryRow() pgx.Row {
	if b.pos >= len(b.Rows) {
		return Row{Err: fmt.Errorf("dbtest: no batch result %d", b.pos)}
	}
	r := b.Rows[b.pos]
	b.pos++
	return r
}

func (b *BatchResults) Close() error {
	b.Closed = true
	return nil
}

func assign(dest, values []any) error {
	if len(dest) != len(values) {
		return fmt.Errorf("dbtest: scan into %d targets, row has %d values", len(dest), len(values))
	}
	for i, d := range dest {
		target := reflect.ValueOf(d).Elem()
		if values[i] == nil {
			target.Set(reflect.Zero(target.Type()))
			continue
		}
		v := reflect.ValueOf(values[i])
		if !v.Type().AssignableTo(target.Type()) {
			return fmt.Errorf("dbtest: cannot scan %s into %s", v.Type(), target.Type())
		}
		target.Set(v)
	}
	return nil
}

func compact(sql string) string {
	return strings.Join(strings.Fields(sql), " ")
}
