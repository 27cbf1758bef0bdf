package main

import (
	"context"
	"fmt"
	"os"

	"github.com/Aiden-ho/twitter-server/internal/app"
	"github.com/Aiden-ho/twitter-server/internal/config"
	"github.com/Aiden-ho/twitter-server/internal/logging"
	"github.com/Aiden-ho/twitter-server/internal/media/kafka"
	"github.com/Aiden-ho/twitter-server/internal/media/outbox"
	"github.com/Aiden-ho/twitter-server/internal/storage/postgres"
)

func main() {
	os.Exit(app.Run("publish", logging.Base(), run))
}

func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is empty")
	}
	logger := logging.Configure(logging.Config{Level: cfg.LogLevel, Service: "publish"})

	db, err := postgres.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("db connect: %w", err)
	}
	defer db.Close()

	producer, err := kafka.NewProducer(kafka.ProducerConfig{
		Brokers: cfg.KafkaBrokers,
		Topic:   cfg.KafkaTopic,
		Logger:  logger,
	})
	if err != nil {
		return err
	}
	defer producer.Close()

	if err := producer.HealthCheck(ctx); err != nil {
		logger.Warn().Err(err).Msg("kafka not reachable yet; events stay in the outbox until it is")
	}

	publisher, err := outbox.NewPublisher(outbox.PublisherConfig{
		Store:     postgres.NewOutboxRepo(db),
		Producer:  producer,
		Interval:  cfg.OutboxInterval,
		BatchSize: cfg.OutboxBatchSize,
		Logger:    logger,
	})
	if err != nil {
		return err
	}

	return publisher.Start(ctx)
}
