package outbox

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaProducer fans messages out to per-topic writers created on first use.
type KafkaProducer struct {
	addr    net.Addr
	mu      sync.RWMutex
	writers map[string]*kafka.Writer
}

// NewKafkaProducer builds a producer for the given broker list.
func NewKafkaProducer(brokers []string) *KafkaProducer {
	return &KafkaProducer{
		addr:    kafka.TCP(brokers...),
		writers: make(map[string]*kafka.Writer),
	}
}

// WriteMessages writes a batch to the topic.
func (p *KafkaProducer) WriteMessages(ctx context.Context, topic string, msgs ...kafka.Message) error {
	return p.writer(topic).WriteMessages(ctx, msgs...)
}

func (p *KafkaProducer) writer(topic string) *kafka.Writer {
	p.mu.RLock()
	w := p.writers[topic]
	p.mu.RUnlock()
	if w != nil {
		return w
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if w := p.writers[topic]; w != nil {
		return w
	}

	w = &kafka.Writer{
		Addr:  p.addr,
		Topic: topic,
		// Message keys are tenant:activity, so hashing keeps each
		// aggregate's events on one partition, in order.
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Compression:  kafka.Snappy,
		BatchTimeout: 50 * time.Millisecond,
	}
	p.writers[topic] = w
	return w
}

// Close shuts down every writer and reports the combined error.
func (p *KafkaProducer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var errs []error
	for _, w := range p.writers {
		errs = append(errs, w.Close())
	}
	p.writers = make(map[string]*kafka.Writer)
	return errors.Join(errs...)
}
