// Package kafka publishes ledger events to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/defistate/reserve-ledger-go/engine"
	"github.com/segmentio/kafka-go"
)

const (
	DefaultMaxTries     = 3
	DefaultBatchTimeout = 10 * time.Millisecond
)

// Logger defines a standard interface for structured, leveled logging.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// messageWriter is the part of *kafka.Writer the publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Config holds the settings for a Publisher.
type Config struct {
	Brokers []string
	Topic   string
	Logger  Logger

	// MaxTries bounds delivery attempts per event. Zero means DefaultMaxTries.
	MaxTries     uint
	BatchTimeout time.Duration
}

// validate checks if the configuration is valid.
func (c *Config) validate() error {
	if len(c.Brokers) == 0 {
		return errors.New("config: Brokers is required")
	}
	if c.Topic == "" {
		return errors.New("config: Topic is required")
	}
	if c.Logger == nil {
		return errors.New("config: Logger is required")
	}
	return nil
}

// Publisher writes each ledger event as one JSON message keyed by its action.
type Publisher struct {
	writer   messageWriter
	topic    string
	logger   Logger
	maxTries uint
}

// NewPublisher creates a Publisher backed by a synchronous kafka.Writer that
// waits for all in-sync replicas.
func NewPublisher(cfg Config) (*Publisher, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	batchTimeout := cfg.BatchTimeout
	if batchTimeout == 0 {
		batchTimeout = DefaultBatchTimeout
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		RequiredAcks: kafka.RequireAll,
		Async:        false,
		BatchTimeout: batchTimeout,
	}
	return newPublisher(writer, cfg), nil
}

func newPublisher(w messageWriter, cfg Config) *Publisher {
	maxTries := cfg.MaxTries
	if maxTries == 0 {
		maxTries = DefaultMaxTries
	}
	return &Publisher{
		writer:   w,
		topic:    cfg.Topic,
		logger:   cfg.Logger,
		maxTries: maxTries,
	}
}

// Publish encodes ev and writes it, retrying with exponential backoff until
// MaxTries is exhausted or ctx is done.
func (p *Publisher) Publish(ctx context.Context, ev engine.Event) error {
	value, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event %s: %w", ev.ID, err)
	}

	msg := kafka.Message{
		Key:   []byte(ev.Action),
		Value: value,
		Time:  ev.Timestamp,
	}

	operation := func() (struct{}, error) {
		return struct{}{}, p.writer.WriteMessages(ctx, msg)
	}
	notify := func(err error, next time.Duration) {
		p.logger.Warn("Retrying event publish", "event_id", ev.ID, "topic", p.topic, "retry_in", next, "error", err)
	}

	_, err = backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(p.maxTries),
		backoff.WithNotify(notify),
	)
	if err != nil {
		return fmt.Errorf("publish event %s to %s: %w", ev.ID, p.topic, err)
	}

	p.logger.Debug("Event published", "event_id", ev.ID, "topic", p.topic, "action", ev.Action)
	return nil
}

// Close flushes pending writes and releases the writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}
