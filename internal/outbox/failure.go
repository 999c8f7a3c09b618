package outbox

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// runAsTenant opens a transaction with app.tenant_id pinned so row-level
// security applies to every statement inside fn.
func runAsTenant(ctx context.Context, pool *pgxpool.Pool, tenantID string, fn func(pgx.Tx) error) error {
	tx, err := pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "SELECT set_config('app.tenant_id', $1, true)", tenantID); err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// DLQWriter records outbox events that could not be delivered.
type DLQWriter struct {
	pool *pgxpool.Pool
}

// NewDLQWriter builds a writer backed by the given pool.
func NewDLQWriter(pool *pgxpool.Pool) *DLQWriter {
	return &DLQWriter{pool: pool}
}

// Write parks an event in outbox_dlq, due for immediate retry.
func (w *DLQWriter) Write(ctx context.Context, ev Event, reason string) error {
	const stmt = `INSERT INTO outbox_dlq
            (tenant_id, event_id, event_type, topic, payload, reason,
             aggregate_type, aggregate_id, schema_subject, partition_key, next_retry_at)
         VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,NOW())`

	return runAsTenant(ctx, w.pool, ev.TenantID, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, stmt,
			ev.TenantID, ev.EventID, ev.EventType, ev.Topic, ev.Payload, reason,
			ev.AggregateType, ev.AggregateID, ev.SchemaSubject, ev.PartitionKey)
		return err
	})
}
