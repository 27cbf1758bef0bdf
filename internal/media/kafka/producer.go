// Package kafka publishes video status events to a Kafka topic.
package kafka

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	kafkago "github.com/segmentio/kafka-go"
)

type ProducerConfig struct {
	Brokers      []string
	Topic        string
	MaxRetries   int
	RetryBackoff time.Duration
	WriteTimeout time.Duration
	BatchSize    int
	Async        bool
	Logger       zerolog.Logger
}

// Message is keyed by video name so every status change of one video lands
// on the same partition in order.
type Message struct {
	Key     string
	Value   []byte
	Headers map[string]string
}

type Metrics struct {
	MessagesPublished int64
	MessagesFailed    int64
	RetriesTotal      int64
	AvgPublishTime    time.Duration
}

type producerMetrics struct {
	MessagesPublished atomic.Int64
	MessagesFailed    atomic.Int64
	RetriesTotal      atomic.Int64
	PublishDuration   atomic.Int64
}

// messageWriter is the part of *kafkago.Writer the producer drives.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

type Producer struct {
	writer  messageWriter
	config  ProducerConfig
	metrics producerMetrics
	closed  atomic.Bool
	logger  zerolog.Logger
}

func NewProducer(cfg ProducerConfig) (*Producer, error) {
	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid producer config: %w", err)
	}
	setDefaults(&cfg)

	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafkago.Hash{},
		BatchSize:    cfg.BatchSize,
		WriteTimeout: cfg.WriteTimeout,
		RequiredAcks: kafkago.RequireAll,
		Async:        cfg.Async,
		// retries are handled in writeWithRetry
		MaxAttempts: 1,
	}
	return newProducer(cfg, w), nil
}

func newProducer(cfg ProducerConfig, w messageWriter) *Producer {
	return &Producer{
		writer: w,
		config: cfg,
		logger: cfg.Logger.With().Str("component", "kafka_producer").Str("topic", cfg.Topic).Logger(),
	}
}

func (p *Producer) Publish(ctx context.Context, key string, value []byte) error {
	return p.PublishBatch(ctx, []Message{{Key: key, Value: value}})
}

func (p *Producer) PublishBatch(ctx context.Context, messages []Message) error {
	if p.closed.Load() {
		return errors.New("producer is closed")
	}
	if len(messages) == 0 {
		return nil
	}

	msgs := encodeMessages(messages)

	start := time.Now()
	err := p.writeWithRetry(ctx, msgs)
	p.metrics.PublishDuration.Add(int64(time.Since(start)))

	if err != nil {
		p.metrics.MessagesFailed.Add(int64(len(msgs)))
		return fmt.Errorf("kafka publish: %w", err)
	}
	p.metrics.MessagesPublished.Add(int64(len(msgs)))
	return nil
}

// encodeMessages keeps batch order and writes headers sorted by name.
func encodeMessages(messages []Message) []kafkago.Message {
	msgs := make([]kafkago.Message, 0, len(messages))
	for _, m := range messages {
		km := kafkago.Message{Key: []byte(m.Key), Value: m.Value}
		for _, k := range slices.Sorted(maps.Keys(m.Headers)) {
			km.Headers = append(km.Headers, kafkago.Header{Key: k, Value: []byte(m.Headers[k])})
		}
		msgs = append(msgs, km)
	}
	return msgs
}

func (p *Producer) writeWithRetry(ctx context.Context, msgs []kafkago.Message) error {
	var err error
	for attempt := 0; attempt <= p.config.MaxRetries; attempt++ {
		if attempt > 0 {
			p.metrics.RetriesTotal.Add(1)
			backoff := p.config.RetryBackoff * time.Duration(1<<(attempt-1))
			p.logger.Warn().
				Err(err).
				Int("attempt", attempt).
				Dur("backoff", backoff).
				Msg("retrying kafka write")

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}

		err = p.writer.WriteMessages(ctx, msgs...)
		if err == nil {
			return nil
		}
		if !isRetriableError(err) {
			return err
		}
	}
	return fmt.Errorf("after %d retries: %w", p.config.MaxRetries, err)
}

// HealthCheck dials the brokers until one answers.
func (p *Producer) HealthCheck(ctx context.Context) error {
	if p.closed.Load() {
		return errors.New("producer is closed")
	}

	var lastErr error
	for _, broker := range p.config.Brokers {
		conn, err := kafkago.DialContext(ctx, "tcp", broker)
		if err != nil {
			lastErr = err
			continue
		}
		_ = conn.Close()
		return nil
	}
	return fmt.Errorf("no kafka broker reachable: %w", lastErr)
}

func (p *Producer) GetMetrics() Metrics {
	published := p.metrics.MessagesPublished.Load()
	var avg time.Duration
	if published > 0 {
		avg = time.Duration(p.metrics.PublishDuration.Load() / published)
	}
	return Metrics{
		MessagesPublished: published,
		MessagesFailed:    p.metrics.MessagesFailed.Load(),
		RetriesTotal:      p.metrics.RetriesTotal.Load(),
		AvgPublishTime:    avg,
	}
}

func (p *Producer) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return errors.New("producer already closed")
	}
	m := p.GetMetrics()
	p.logger.Info().
		Int64("published", m.MessagesPublished).
		Int64("failed", m.MessagesFailed).
		Int64("retries", m.RetriesTotal).
		Msg("kafka producer closed")
	return p.writer.Close()
}

func isRetriableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var kerr kafkago.Error
	if errors.As(err, &kerr) {
		return kerr.Temporary()
	}

	msg := strings.ToLower(err.Error())
	for _, s := range []string{"invalid", "too large", "authorization", "authentication"} {
		if strings.Contains(msg, s) {
			return false
		}
	}
	// network and leadership errors, and anything unknown
	return true
}

func validateConfig(cfg *ProducerConfig) error {
	switch {
	case len(cfg.Brokers) == 0:
		return errors.New("brokers list is empty")
	case cfg.Topic == "":
		return errors.New("topic is empty")
	case cfg.MaxRetries < 0:
		return errors.New("max_retries cannot be negative")
	case cfg.RetryBackoff < 0:
		return errors.New("retry_backoff cannot be negative")
	case cfg.WriteTimeout < 0:
		return errors.New("write_timeout cannot be negative")
	}
	return nil
}

func setDefaults(cfg *ProducerConfig) {
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryBackoff == 0 {
		cfg.RetryBackoff = 100 * time.Millisecond
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 100
	}
}
