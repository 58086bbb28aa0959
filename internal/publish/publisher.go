// Package publish hands finished curve records to downstream consumers such
// as the backtesting engine.
package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"kelly-curve-lab/internal/domain"
)

// Publisher delivers curve records.
type Publisher interface {
	Publish(ctx context.Context, records ...*domain.CurveRecord) error
	Close() error
}

// KafkaOptions configures a KafkaPublisher.
type KafkaOptions struct {
	Brokers      []string
	Topic        string
	WriteTimeout time.Duration // default 10s
	BatchTimeout time.Duration // default 1s
}

// KafkaPublisher writes one JSON message per record, keyed by curve ID so
// all versions of a curve land on one partition.
type KafkaPublisher struct {
	writer *kafka.Writer
}

// NewKafkaPublisher creates a KafkaPublisher.
func NewKafkaPublisher(opts KafkaOptions) (*KafkaPublisher, error) {
	if len(opts.Brokers) == 0 {
		return nil, fmt.Errorf("brokers are required")
	}
	if opts.Topic == "" {
		return nil, fmt.Errorf("topic is required")
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 10 * time.Second
	}
	if opts.BatchTimeout <= 0 {
		opts.BatchTimeout = time.Second
	}

	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(opts.Brokers...),
			Topic:        opts.Topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			Compression:  kafka.Gzip,
			MaxAttempts:  3,
			WriteTimeout: opts.WriteTimeout,
			BatchTimeout: opts.BatchTimeout,
		},
	}, nil
}

// Publish writes the records as one batch.
func (p *KafkaPublisher) Publish(ctx context.Context, records ...*domain.CurveRecord) error {
	msgs, err := Messages(records)
	if err != nil {
		return err
	}
	if len(msgs) == 0 {
		return nil
	}
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("write curve records: %w", err)
	}
	return nil
}

// Close flushes and closes the writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// Messages encodes records as Kafka messages.
func Messages(records []*domain.CurveRecord) ([]kafka.Message, error) {
	msgs := make([]kafka.Message, 0, len(records))
	now := time.Now()
	for _, r := range records {
		v, err := json.Marshal(r)
		if err != nil {
			return nil, fmt.Errorf("marshal curve record %s: %w", r.CurveID, err)
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(r.CurveID),
			Value: v,
			Time:  now,
		})
	}
	return msgs, nil
}

// MemoryPublisher keeps published records in memory.
type MemoryPublisher struct {
	mu      sync.Mutex
	records []*domain.CurveRecord
}

// NewMemoryPublisher creates a MemoryPublisher.
func NewMemoryPublisher() *MemoryPublisher {
	return &MemoryPublisher{}
}

// Publish appends the records.
func (p *MemoryPublisher) Publish(_ context.Context, records ...*domain.CurveRecord) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.records = append(p.records, records...)
	return nil
}

// Records returns the published records in order.
func (p *MemoryPublisher) Records() []*domain.CurveRecord {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*domain.CurveRecord, len(p.records))
	copy(out, p.records)
	return out
}

// Close is a no-op.
func (p *MemoryPublisher) Close() error { return nil }

var (
	_ Publisher = (*KafkaPublisher)(nil)
	_ Publisher = (*MemoryPublisher)(nil)
)
