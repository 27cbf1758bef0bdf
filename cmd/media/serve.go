package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/Aiden-ho/twitter-server/internal/auth"
	"github.com/Aiden-ho/twitter-server/internal/config"
	"github.com/Aiden-ho/twitter-server/internal/logging"
	"github.com/Aiden-ho/twitter-server/internal/media/httpapi"
	"github.com/Aiden-ho/twitter-server/internal/media/repository"
	"github.com/Aiden-ho/twitter-server/internal/media/service"
	"github.com/Aiden-ho/twitter-server/internal/media/transcode"
	"github.com/Aiden-ho/twitter-server/internal/storage/blob"
	"github.com/Aiden-ho/twitter-server/internal/storage/postgres"
)

func newServeCommand() *cobra.Command {
	var migrate bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the media API and run the transcode queue",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}
			return serve(cmd.Context(), cfg, migrate)
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", false, "Apply the schema before serving (postgres store only)")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config, migrate bool) error {
	logger := logging.Configure(logging.Config{Level: cfg.LogLevel, Service: "media"})

	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	repo, closeRepo, err := openStatusStore(ctx, cfg, migrate, logger)
	if err != nil {
		return err
	}
	defer closeRepo()

	store, err := openBlobStore(ctx, cfg, logger)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	publisher, err := transcode.NewArtifactPublisher(transcode.PublisherConfig{
		Store:       store,
		Root:        cfg.VideoDir(),
		Concurrency: cfg.UploadConcurrency,
		Logger:      logger,
	})
	if err != nil {
		return err
	}

	queue, err := transcode.NewQueue(transcode.QueueConfig{
		Repo:      repo,
		Encoder:   transcode.NewFFmpegEncoder(cfg.FFmpegPath, cfg.SegmentSeconds),
		Publisher: publisher,
		Metrics:   transcode.NewMetrics(reg),
		Logger:    logger,
	})
	if err != nil {
		return err
	}

	svc, err := service.New(service.Config{
		Queue:    queue,
		ImageDir: cfg.ImageDir(),
		VideoDir: cfg.VideoDir(),
		Host:     cfg.Host,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	router := httpapi.NewRouter(httpapi.RouterConfig{
		Handler:          httpapi.New(svc, logger),
		Static:           httpapi.NewStatic(cfg.ImageDir(), cfg.VideoDir(), store, logger),
		Verifier:         auth.NewHS256Verifier(cfg.JWTAccessSecret),
		Metrics:          promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
		Logger:           logging.WithComponent("http"),
		UploadsPerMinute: cfg.UploadsPerMinute,
	})

	srv := &http.Server{
		Addr:              net.JoinHostPort("", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Str("status_store", cfg.StatusStore).Msg("media server listening")
		if err := srv.ListenAndServe(); err != nil {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		// every admitted job ends Succeeded or Failed before exit
		queueCtx, cancelQueue := context.WithTimeout(context.Background(), cfg.QueueShutdownTimeout)
		defer cancelQueue()
		if err := queue.Shutdown(queueCtx); err != nil {
			logger.Warn().Err(err).Msg("transcode jobs interrupted by shutdown")
		}
		return nil

	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen and serve: %w", err)
	}
}

func openStatusStore(ctx context.Context, cfg *config.Config, migrate bool, logger zerolog.Logger) (repository.StatusRepository, func(), error) {
	if cfg.StatusStore == "memory" {
		logger.Warn().Msg("using in-memory video status store; statuses are lost on restart")
		return repository.NewMemoryRepository(), func() {}, nil
	}

	db, err := postgres.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("db connect: %w", err)
	}
	if migrate {
		if err := postgres.Migrate(ctx, db); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
	}
	repo := postgres.NewVideoStatusRepo(db, postgres.NewOutboxRepo(db))
	return repo, func() { _ = db.Close() }, nil
}

func openBlobStore(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (blob.Store, error) {
	if cfg.S3.Endpoint == "" {
		logger.Info().Str("root", cfg.BlobDir()).Msg("using local blob store")
		return blob.NewLocalStore(cfg.BlobDir(), cfg.Host+"/static")
	}

	s, err := blob.NewMinioStore(blob.MinioConfig{
		Endpoint:  cfg.S3.Endpoint,
		AccessKey: cfg.S3.AccessKey,
		SecretKey: cfg.S3.SecretKey,
		Bucket:    cfg.S3.Bucket,
		Region:    cfg.S3.Region,
		UseSSL:    cfg.S3.UseSSL,
	})
	if err != nil {
		return nil, err
	}
	if err := s.EnsureBucket(ctx, cfg.S3.Region); err != nil {
		return nil, err
	}
	logger.Info().Str("endpoint", cfg.S3.Endpoint).Str("bucket", cfg.S3.Bucket).Msg("using s3 blob store")
	return s, nil
}
