// Package consumer pulls analysis triggers off Kafka.
package consumer

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/segmentio/kafka-go"
)

// Reader abstracts the kafka.Reader operations the loop depends on.
type Reader interface {
	FetchMessage(context.Context) (kafka.Message, error)
	CommitMessages(context.Context, ...kafka.Message) error
	Close() error
}

// Handler processes one decoded event.
type Handler interface {
	Handle(context.Context, Message) error
}

// Message is a decoded record from the outbox dispatcher: Confluent framing
// stripped, routing metadata lifted out of the Kafka headers.
type Message struct {
	Topic         string
	Partition     int
	Offset        int64
	Timestamp     time.Time
	EventType     string
	TenantID      string
	SchemaSubject string
	SchemaID      int
	Payload       json.RawMessage
}

// Processor fetches framed records and routes them by the event_type header.
// Event types nobody registered for are committed untouched, so one consumer
// group can share a topic with services interested in other events.
type Processor struct {
	reader Reader
	routes map[string]Handler
	logger *log.Logger
}

// NewProcessor wraps a reader. Handlers attach via Route before Run.
func NewProcessor(reader Reader) *Processor {
	return &Processor{
		reader: reader,
		routes: make(map[string]Handler),
		logger: log.New(log.Writer(), "[consumer] ", log.LstdFlags|log.Lshortfile),
	}
}

// Route registers a handler for an event type, replacing any previous one.
func (p *Processor) Route(eventType string, h Handler) {
	p.routes[eventType] = h
}

// Run blocks fetching and dispatching messages until the context ends.
func (p *Processor) Run(ctx context.Context) error {
	for {
		raw, err := p.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			p.logger.Printf("fetch failed: %v", err)
			continue
		}
		p.dispatch(ctx, raw)
	}
}

func (p *Processor) dispatch(ctx context.Context, raw kafka.Message) {
	event, err := decodeEvent(raw)
	if err != nil {
		// Committing keeps a malformed record from wedging the partition.
		recordDecodeError(raw.Topic)
		p.logger.Printf("dropping undecodable record %s[%d]@%d: %v", raw.Topic, raw.Partition, raw.Offset, err)
		p.commit(ctx, raw)
		return
	}

	handler, routed := p.routes[event.EventType]
	if !routed {
		p.commit(ctx, raw)
		return
	}

	if err := handler.Handle(ctx, event); err != nil {
		// No commit: the record is re-fetched and retried.
		recordHandlerError(event)
		p.logger.Printf("handler failed for %s (tenant=%s): %v", event.EventType, event.TenantID, err)
		return
	}

	if p.commit(ctx, raw) {
		recordProcessed(event)
	}
}

func (p *Processor) commit(ctx context.Context, raw kafka.Message) bool {
	if err := p.reader.CommitMessages(ctx, raw); err != nil {
		p.logger.Printf("commit failed for %s@%d: %v", raw.Topic, raw.Offset, err)
		return false
	}
	return true
}

// wireHeaderLen covers the Confluent magic byte plus the big-endian schema ID.
const wireHeaderLen = 5

func decodeEvent(raw kafka.Message) (Message, error) {
	if len(raw.Value) < wireHeaderLen {
		return Message{}, fmt.Errorf("record too short for wire framing: %d bytes", len(raw.Value))
	}
	if raw.Value[0] != 0 {
		return Message{}, fmt.Errorf("unexpected magic byte %#x", raw.Value[0])
	}

	headers := headerMap(raw)
	eventType := headers["event_type"]
	if eventType == "" {
		return Message{}, errors.New("record has no event_type header")
	}

	payload := make(json.RawMessage, len(raw.Value)-wireHeaderLen)
	copy(payload, raw.Value[wireHeaderLen:])

	return Message{
		Topic:         raw.Topic,
		Partition:     raw.Partition,
		Offset:        raw.Offset,
		Timestamp:     raw.Time,
		EventType:     eventType,
		TenantID:      headers["tenant_id"],
		SchemaSubject: headers["schema_subject"],
		SchemaID:      int(binary.BigEndian.Uint32(raw.Value[1:wireHeaderLen])),
		Payload:       payload,
	}, nil
}

func headerMap(raw kafka.Message) map[string]string {
	out := make(map[string]string, len(raw.Headers))
	for _, h := range raw.Headers {
		out[h.Key] = string(h.Value)
	}
	return out
}
