// Package outbox persists and delivers domain events to Kafka.
package outbox

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/segmentio/kafka-go"
)

// Event is a pending outbox row headed for Kafka.
type Event struct {
	EventID       int64
	TenantID      string
	AggregateType string
	AggregateID   string
	EventType     string
	Topic         string
	SchemaSubject string
	PartitionKey  string
	Payload       json.RawMessage
}

// eventSchemas binds every event type the service emits to its JSON schema.
var eventSchemas = map[string]string{
	"activity.created":  activityCreatedSchema,
	"activity.analyzed": activityAnalyzedSchema,
}

type kafkaWriter interface {
	WriteMessages(context.Context, string, ...kafka.Message) error
}

type schemaResolver interface {
	EnsureSchema(context.Context, string, string) (int, error)
}

// Dispatcher drains the outbox table and publishes events with Confluent
// wire framing. Undeliverable batches land in the DLQ instead of blocking
// the queue.
type Dispatcher struct {
	pool         *pgxpool.Pool
	producer     kafkaWriter
	registry     schemaResolver
	dlq          *DLQWriter
	pollInterval time.Duration
	batchSize    int
	schemaIDs    sync.Map
	stopped      chan struct{}
}

// NewDispatcher constructs a Dispatcher.
func NewDispatcher(pool *pgxpool.Pool, producer kafkaWriter, registry schemaResolver, pollInterval time.Duration, batchSize int) *Dispatcher {
	return &Dispatcher{
		pool:         pool,
		producer:     producer,
		registry:     registry,
		dlq:          NewDLQWriter(pool),
		pollInterval: pollInterval,
		batchSize:    batchSize,
		stopped:      make(chan struct{}),
	}
}

// Start runs the polling loop until the context ends. Call in a goroutine.
func (d *Dispatcher) Start(ctx context.Context) {
	ticker := time.NewTicker(d.pollInterval)
	defer func() {
		ticker.Stop()
		close(d.stopped)
	}()

	for {
		if err := d.drainOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("outbox: drain failed: %v", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Wait blocks until the polling loop has exited.
func (d *Dispatcher) Wait() {
	<-d.stopped
}

// drainOnce claims one batch, delivers it, and settles the outcome. Events
// that cannot be delivered move to the DLQ and are marked published so the
// primary queue keeps flowing.
func (d *Dispatcher) drainOnce(ctx context.Context) error {
	start := time.Now()

	events, err := d.claimBatch(ctx)
	if err != nil || len(events) == 0 {
		return err
	}
	defer func() {
		batchDuration.Observe(time.Since(start).Seconds())
	}()

	if err := d.deliver(ctx, events); err != nil {
		log.Printf("outbox: delivery failed: %v", err)
		failedCounter.Add(float64(len(events)))
		if dlqErr := d.parkBatch(ctx, events, err); dlqErr != nil {
			return dlqErr
		}
		return d.markPublished(ctx, events)
	}

	deliveredCounter.Add(float64(len(events)))
	return d.markPublished(ctx, events)
}

// claimBatch stamps claimed_at on the oldest unpublished rows and returns
// them. SKIP LOCKED keeps concurrent dispatchers from fighting over rows.
func (d *Dispatcher) claimBatch(ctx context.Context) ([]Event, error) {
	const query = `UPDATE outbox SET claimed_at = NOW()
        WHERE event_id IN (
            SELECT event_id FROM outbox
            WHERE published_at IS NULL
            ORDER BY event_id
            LIMIT $1
            FOR UPDATE SKIP LOCKED)
        RETURNING event_id, tenant_id, aggregate_type, aggregate_id, event_type,
                  topic, schema_subject, partition_key, payload`

	rows, err := d.pool.Query(ctx, query, d.batchSize)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var ev Event
		if err := rows.Scan(&ev.EventID, &ev.TenantID, &ev.AggregateType, &ev.AggregateID,
			&ev.EventType, &ev.Topic, &ev.SchemaSubject, &ev.PartitionKey, &ev.Payload); err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

func (d *Dispatcher) deliver(ctx context.Context, events []Event) error {
	byTopic := make(map[string][]kafka.Message)
	for _, ev := range events {
		schemaID, err := d.resolveSchemaID(ctx, ev)
		if err != nil {
			return err
		}
		byTopic[ev.Topic] = append(byTopic[ev.Topic], kafkaRecord(ev, schemaID))
	}

	for topic, records := range byTopic {
		if err := d.producer.WriteMessages(ctx, topic, records...); err != nil {
			return err
		}
	}
	return nil
}

// resolveSchemaID looks up the registry ID for the event's subject, caching
// per subject: each subject carries exactly one schema from eventSchemas.
func (d *Dispatcher) resolveSchemaID(ctx context.Context, ev Event) (int, error) {
	if cached, ok := d.schemaIDs.Load(ev.SchemaSubject); ok {
		return cached.(int), nil
	}

	schema, ok := eventSchemas[ev.EventType]
	if !ok {
		return 0, fmt.Errorf("no schema registered for event type %q", ev.EventType)
	}

	id, err := d.registry.EnsureSchema(ctx, ev.SchemaSubject, schema)
	if err != nil {
		return 0, err
	}
	d.schemaIDs.Store(ev.SchemaSubject, id)
	return id, nil
}

func kafkaRecord(ev Event, schemaID int) kafka.Message {
	return kafka.Message{
		Key:   []byte(ev.PartitionKey),
		Value: frameConfluent(schemaID, ev.Payload),
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(ev.EventType)},
			{Key: "tenant_id", Value: []byte(ev.TenantID)},
			{Key: "schema_subject", Value: []byte(ev.SchemaSubject)},
		},
		Time: time.Now().UTC(),
	}
}

// frameConfluent prefixes the payload with the magic byte and the big-endian
// schema ID, as Schema Registry aware consumers expect.
func frameConfluent(schemaID int, payload []byte) []byte {
	framed := make([]byte, 5+len(payload))
	binary.BigEndian.PutUint32(framed[1:5], uint32(schemaID))
	copy(framed[5:], payload)
	return framed
}

func (d *Dispatcher) markPublished(ctx context.Context, events []Event) error {
	byTenant := make(map[string][]int64)
	for _, ev := range events {
		byTenant[ev.TenantID] = append(byTenant[ev.TenantID], ev.EventID)
	}

	for tenantID, ids := range byTenant {
		err := runAsTenant(ctx, d.pool, tenantID, func(tx pgx.Tx) error {
			_, err := tx.Exec(ctx, `UPDATE outbox SET published_at = NOW() WHERE event_id = ANY($1)`, ids)
			return err
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (d *Dispatcher) parkBatch(ctx context.Context, events []Event, cause error) error {
	for _, ev := range events {
		reason := fmt.Sprintf("%v (topic=%s)", cause, ev.Topic)
		if err := d.dlq.Write(ctx, ev, reason); err != nil {
			return err
		}
		dlqCounter.WithLabelValues(ev.Topic).Inc()
	}
	return nil
}
