package transcode

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/Aiden-ho/twitter-server/internal/media/domain"
	"github.com/Aiden-ho/twitter-server/internal/media/models"
	"github.com/Aiden-ho/twitter-server/internal/media/repository"
)

// ErrQueueClosed is returned by Enqueue once Shutdown has begun.
var ErrQueueClosed = errors.New("transcode queue is shutting down")

const msgInterrupted = "interrupted by shutdown"

type QueueConfig struct {
	Repo      repository.StatusRepository
	Encoder   Encoder
	Publisher Publisher
	Metrics   *Metrics
	Logger    zerolog.Logger
}

// Queue runs uploaded videos through encode, publish and cleanup one at a
// time, in the order they were enqueued.
//
// items holds source paths; the head stays in place while it is being
// worked on and is removed once the attempt ends. active is true while a
// drain goroutine owns the list; both are guarded by mu. closed stops
// admission; runCtx is canceled when a shutdown runs out of time.
type Queue struct {
	repo      repository.StatusRepository
	encoder   Encoder
	publisher Publisher
	metrics   *Metrics
	logger    zerolog.Logger

	runCtx context.Context
	stop   context.CancelFunc

	mu     sync.Mutex
	items  []string
	active bool
	closed bool
	wg     sync.WaitGroup
}

func NewQueue(cfg QueueConfig) (*Queue, error) {
	if cfg.Repo == nil {
		return nil, fmt.Errorf("status repository is required")
	}
	if cfg.Encoder == nil {
		return nil, fmt.Errorf("encoder is required")
	}
	if cfg.Publisher == nil {
		return nil, fmt.Errorf("publisher is required")
	}
	if cfg.Metrics == nil {
		cfg.Metrics = NewMetrics(prometheus.NewRegistry())
	}

	// Jobs outlive the upload request that created them.
	runCtx, stop := context.WithCancel(context.Background())
	return &Queue{
		runCtx:    runCtx,
		stop:      stop,
		repo:      cfg.Repo,
		encoder:   cfg.Encoder,
		publisher: cfg.Publisher,
		metrics:   cfg.Metrics,
		logger:    cfg.Logger.With().Str("component", "transcode_queue").Logger(),
	}, nil
}

// JobName derives the job id from an upload path: the file name up to its
// first dot.
func JobName(sourcePath string) string {
	base := filepath.Base(sourcePath)
	if base == "." || base == string(filepath.Separator) {
		return ""
	}
	name, _, _ := strings.Cut(base, ".")
	return name
}

// Enqueue records the job as Pending and schedules it. The status record
// exists before Enqueue returns; the encode itself runs in the background.
func (q *Queue) Enqueue(ctx context.Context, sourcePath string) error {
	name := JobName(sourcePath)
	if name == "" {
		return fmt.Errorf("%w: empty job name for %q", models.ErrInvalidArgument, sourcePath)
	}

	if q.isClosed() {
		return ErrQueueClosed
	}

	// Pending must be stored before the path is visible to a running drain,
	// otherwise Processing could land first.
	if err := q.repo.Create(ctx, &models.VideoStatus{Name: name, Status: domain.Pending}); err != nil {
		return fmt.Errorf("create video status %s: %w", name, err)
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		q.recordStatus(context.WithoutCancel(ctx), q.logger.With().Str("job", name).Logger(), name, domain.Failed, msgInterrupted)
		return ErrQueueClosed
	}
	q.items = append(q.items, sourcePath)
	q.metrics.QueueDepth.Set(float64(len(q.items)))
	start := !q.active
	if start {
		q.active = true
		q.wg.Add(1)
	}
	q.mu.Unlock()

	q.logger.Info().Str("job", name).Bool("started_drain", start).Msg("video enqueued")

	if start {
		go q.drain()
	}
	return nil
}

// Status returns the stored record for a job.
func (q *Queue) Status(ctx context.Context, name string) (*models.VideoStatus, error) {
	return q.repo.GetByName(ctx, name)
}

// Wait blocks until no drain is running.
func (q *Queue) Wait() {
	q.wg.Wait()
}

// Shutdown stops admission and lets queued jobs finish until ctx is done.
// After that the running encode is canceled and every job still queued is
// marked Failed, so no record is left Pending or Processing. It returns
// ctx's error when jobs had to be interrupted.
func (q *Queue) Shutdown(ctx context.Context) error {
	q.mu.Lock()
	q.closed = true
	pending := len(q.items)
	q.mu.Unlock()

	q.logger.Info().Int("queued", pending).Msg("transcode queue shutting down")

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		q.stop()
		return nil
	case <-ctx.Done():
	}

	q.logger.Warn().Msg("shutdown budget exhausted; interrupting transcode jobs")
	q.stop()
	<-done
	return fmt.Errorf("transcode queue: %w", ctx.Err())
}

func (q *Queue) isClosed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

func (q *Queue) drain() {
	defer q.wg.Done()

	for {
		sourcePath, ok := q.head()
		if !ok {
			return
		}
		if q.runCtx.Err() != nil {
			q.abandon(sourcePath)
			continue
		}
		q.process(sourcePath)
	}
}

// head peeks at the first item. On an empty list it clears active in the
// same critical section, so a concurrent Enqueue either sees the flag set
// and leaves its item to us, or sees it cleared and starts a new drain.
func (q *Queue) head() (string, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		q.active = false
		return "", false
	}
	return q.items[0], true
}

func (q *Queue) pop() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.items[0] = ""
	q.items = q.items[1:]
	q.metrics.QueueDepth.Set(float64(len(q.items)))
}

func (q *Queue) process(sourcePath string) {
	ctx := q.runCtx
	// status writes must land even after runCtx is canceled
	statusCtx := context.WithoutCancel(ctx)
	name := JobName(sourcePath)
	dir := filepath.Dir(sourcePath)
	logger := q.logger.With().Str("job", name).Logger()

	defer q.cleanup(logger, name, dir, sourcePath)

	q.recordStatus(statusCtx, logger, name, domain.Processing, "")
	logger.Info().Str("source", sourcePath).Msg("encode started")

	begun := time.Now()
	start := begun
	err := q.encode(ctx, sourcePath)
	q.metrics.EncodeDuration.Observe(time.Since(start).Seconds())
	q.pop()
	if err != nil {
		q.fail(statusCtx, logger, name, q.interrupted(fmt.Errorf("encode: %w", err)))
		return
	}

	if err := os.Remove(sourcePath); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Warn().Err(err).Msg("failed to remove source after encode")
	}

	start = time.Now()
	n, err := q.publish(ctx, dir, sourcePath)
	q.metrics.PublishDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		q.fail(statusCtx, logger, name, q.interrupted(fmt.Errorf("publish: %w", err)))
		return
	}
	q.metrics.ArtifactsPublished.Add(float64(n))

	q.recordStatus(statusCtx, logger, name, domain.Succeeded, "")
	q.metrics.Jobs.WithLabelValues(outcomeSucceeded).Inc()
	logger.Info().Int("artifacts", n).Dur("elapsed", time.Since(begun)).Msg("video published")
}

// abandon fails a queued job that never started because the queue was
// interrupted.
func (q *Queue) abandon(sourcePath string) {
	name := JobName(sourcePath)
	logger := q.logger.With().Str("job", name).Logger()
	q.pop()
	q.fail(context.WithoutCancel(q.runCtx), logger, name, errors.New(msgInterrupted))
	q.cleanup(logger, name, filepath.Dir(sourcePath), sourcePath)
}

// interrupted replaces err with the shutdown message when the job was
// canceled by Shutdown.
func (q *Queue) interrupted(err error) error {
	if q.runCtx.Err() != nil {
		return fmt.Errorf("%s: %w", msgInterrupted, err)
	}
	return err
}

func (q *Queue) fail(ctx context.Context, logger zerolog.Logger, name string, cause error) {
	logger.Error().Err(cause).Msg("transcode failed")
	q.recordStatus(ctx, logger, name, domain.Failed, cause.Error())
	q.metrics.Jobs.WithLabelValues(outcomeFailed).Inc()
}

// recordStatus writes a status update and swallows any error: a broken
// status store must not stop the queue.
func (q *Queue) recordStatus(ctx context.Context, logger zerolog.Logger, name string, status domain.Status, message string) {
	if err := q.repo.UpdateStatus(ctx, name, status, message); err != nil {
		q.metrics.StatusWriteErrors.Inc()
		logger.Error().
			Err(err).
			Str("status", string(status)).
			Msg("failed to record video status")
	}
}

func (q *Queue) encode(ctx context.Context, sourcePath string) (err error) {
	defer recoverInto(&err)
	return q.encoder.Encode(ctx, sourcePath)
}

func (q *Queue) publish(ctx context.Context, dir, sourcePath string) (n int, err error) {
	defer recoverInto(&err)
	return q.publisher.Publish(ctx, dir, sourcePath)
}

func recoverInto(err *error) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("panic: %v", r)
	}
}

// cleanup removes the job's working directory whatever the outcome. The
// directory is only removed when it is the per-job one named after the
// job; otherwise only the source file goes.
func (q *Queue) cleanup(logger zerolog.Logger, name, dir, sourcePath string) {
	target := sourcePath
	if filepath.Base(dir) == name {
		target = dir
	}
	if err := os.RemoveAll(target); err != nil {
		logger.Warn().Err(err).Str("path", target).Msg("failed to clean up job files")
	}
}
