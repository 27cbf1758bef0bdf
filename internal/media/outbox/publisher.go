// Package outbox relays committed video status events from the outbox
// table to Kafka with at-least-once delivery.
package outbox

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/Aiden-ho/twitter-server/internal/media/kafka"
	"github.com/Aiden-ho/twitter-server/internal/storage/postgres"
)

type Store interface {
	GetPending(ctx context.Context, limit int) ([]postgres.OutboxRecord, error)
	MarkProcessed(ctx context.Context, id int64) error
}

type Producer interface {
	PublishBatch(ctx context.Context, messages []kafka.Message) error
}

var (
	_ Store    = (*postgres.OutboxRepo)(nil)
	_ Producer = (*kafka.Producer)(nil)
)

type Publisher struct {
	store     Store
	producer  Producer
	interval  time.Duration
	batchSize int
	logger    zerolog.Logger
}

type PublisherConfig struct {
	Store     Store
	Producer  Producer
	Interval  time.Duration
	BatchSize int
	Logger    zerolog.Logger
}

func NewPublisher(cfg PublisherConfig) (*Publisher, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("outbox store is required")
	}
	if cfg.Producer == nil {
		return nil, fmt.Errorf("kafka producer is required")
	}
	if cfg.Interval <= 0 {
		return nil, fmt.Errorf("interval must be positive, got: %v", cfg.Interval)
	}
	if cfg.BatchSize <= 0 {
		return nil, fmt.Errorf("batch size must be positive, got: %d", cfg.BatchSize)
	}

	return &Publisher{
		store:     cfg.Store,
		producer:  cfg.Producer,
		interval:  cfg.Interval,
		batchSize: cfg.BatchSize,
		logger:    cfg.Logger.With().Str("component", "outbox_publisher").Logger(),
	}, nil
}

// Start polls the outbox every interval until ctx is canceled. A failed
// batch is logged and retried on the next tick.
func (p *Publisher) Start(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.logger.Info().
		Dur("interval", p.interval).
		Int("batch_size", p.batchSize).
		Msg("outbox publisher started")

	for {
		select {
		case <-ctx.Done():
			p.logger.Info().Err(ctx.Err()).Msg("outbox publisher stopped")
			return ctx.Err()

		case <-ticker.C:
			if _, err := p.PublishPending(ctx); err != nil {
				p.logger.Error().Err(err).Msg("failed to publish batch")
			}
		}
	}
}

// PublishPending relays one batch and returns how many events were marked
// processed. Records stay in occurred order; a record that fails to publish
// or to be marked stops the batch so later changes of the same video never
// overtake it.
func (p *Publisher) PublishPending(ctx context.Context) (int, error) {
	records, err := p.store.GetPending(ctx, p.batchSize)
	if err != nil {
		return 0, fmt.Errorf("get pending records: %w", err)
	}
	if len(records) == 0 {
		p.logger.Debug().Msg("no pending events to publish")
		return 0, nil
	}

	var marked int
	for _, record := range records {
		eventLogger := p.logger.With().
			Str("event_id", record.EventID).
			Str("event_type", record.EventType).
			Str("video", record.AggregateID).
			Int64("outbox_id", record.ID).
			Logger()

		msg := kafka.Message{
			Key:     record.AggregateID,
			Value:   record.Payload,
			Headers: map[string]string{"event_type": record.EventType, "event_id": record.EventID},
		}
		if err := p.producer.PublishBatch(ctx, []kafka.Message{msg}); err != nil {
			eventLogger.Error().Err(err).Msg("failed to publish event to kafka")
			return marked, fmt.Errorf("publish %s: %w", record.EventID, err)
		}

		// A publish without a mark is redelivered next tick along with
		// everything after it; consumers dedupe on event_id.
		if err := p.store.MarkProcessed(ctx, record.ID); err != nil {
			eventLogger.Error().Err(err).Msg("failed to mark event as processed")
			return marked, fmt.Errorf("mark %s processed: %w", record.EventID, err)
		}
		marked++
	}

	p.logger.Info().
		Int("total", len(records)).
		Int("marked", marked).
		Msg("batch processing completed")

	return marked, nil
}
