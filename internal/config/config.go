package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// MaxQueueShutdownTimeout keeps the HTTP drain (10s) plus the queue budget
// inside app.ShutdownGrace.
const MaxQueueShutdownTimeout = 20 * time.Second

type Config struct {
	Port     string
	Host     string
	LogLevel string

	DatabaseURL string
	StatusStore string // "postgres" or "memory"

	UploadDir         string
	FFmpegPath        string
	SegmentSeconds    int
	UploadConcurrency int
	UploadsPerMinute  int

	// QueueShutdownTimeout bounds how long serve lets queued transcodes
	// finish after a signal before they are marked Failed.
	QueueShutdownTimeout time.Duration

	S3 S3Config

	JWTAccessSecret string

	KafkaBrokers    []string
	KafkaTopic      string
	OutboxInterval  time.Duration
	OutboxBatchSize int
}

type S3Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from a lookup function, applying defaults.
func FromEnv(getenv func(string) string) (*Config, error) {
	get := func(key, fallback string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return fallback
	}

	segment, err := atoi(get("HLS_SEGMENT_SECONDS", "6"), "HLS_SEGMENT_SECONDS")
	if err != nil {
		return nil, err
	}
	concurrency, err := atoi(get("UPLOAD_CONCURRENCY", "4"), "UPLOAD_CONCURRENCY")
	if err != nil {
		return nil, err
	}
	perMinute, err := atoi(get("UPLOAD_RATE_PER_MINUTE", "30"), "UPLOAD_RATE_PER_MINUTE")
	if err != nil {
		return nil, err
	}
	batch, err := atoi(get("OUTBOX_BATCH_SIZE", "100"), "OUTBOX_BATCH_SIZE")
	if err != nil {
		return nil, err
	}
	interval, err := time.ParseDuration(get("OUTBOX_INTERVAL", "1s"))
	if err != nil {
		return nil, fmt.Errorf("OUTBOX_INTERVAL: %w", err)
	}

	queueGrace, err := time.ParseDuration(get("QUEUE_SHUTDOWN_TIMEOUT", "15s"))
	if err != nil {
		return nil, fmt.Errorf("QUEUE_SHUTDOWN_TIMEOUT: %w", err)
	}

	port := get("PORT", "4000")
	dsn := get("DATABASE_URL", "")
	store := "postgres"
	if dsn == "" {
		store = "memory"
	}

	cfg := &Config{
		Port:              port,
		Host:              strings.TrimSuffix(get("HOST", "http://localhost:"+port), "/"),
		LogLevel:          get("LOG_LEVEL", "info"),
		DatabaseURL:       dsn,
		StatusStore:       get("STATUS_STORE", store),
		UploadDir:         get("UPLOAD_DIR", "uploads"),
		FFmpegPath:        get("FFMPEG_PATH", "ffmpeg"),
		SegmentSeconds:    segment,
		UploadConcurrency: concurrency,
		UploadsPerMinute:  perMinute,
		S3: S3Config{
			Endpoint:  get("S3_ENDPOINT", ""),
			AccessKey: get("S3_ACCESS_KEY", ""),
			SecretKey: get("S3_SECRET_KEY", ""),
			Bucket:    get("S3_BUCKET", "twitter-media"),
			Region:    get("S3_REGION", ""),
			UseSSL:    strings.EqualFold(get("S3_USE_SSL", "false"), "true"),
		},
		QueueShutdownTimeout: queueGrace,
		JWTAccessSecret:      get("JWT_SECRET_ACCESS_TOKEN", ""),
		KafkaBrokers:         splitList(get("KAFKA_BROKERS", "")),
		KafkaTopic:           get("KAFKA_TOPIC", "video-status"),
		OutboxInterval:       interval,
		OutboxBatchSize:      batch,
	}

	return cfg, nil
}

// Validate checks the settings the media server cannot run without.
func (c *Config) Validate() error {
	switch c.StatusStore {
	case "memory":
	case "postgres":
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is empty")
		}
	default:
		return fmt.Errorf("unknown STATUS_STORE %q", c.StatusStore)
	}
	if c.JWTAccessSecret == "" {
		return fmt.Errorf("JWT_SECRET_ACCESS_TOKEN is empty")
	}
	if c.SegmentSeconds <= 0 {
		return fmt.Errorf("HLS_SEGMENT_SECONDS must be positive, got: %d", c.SegmentSeconds)
	}
	if c.QueueShutdownTimeout <= 0 || c.QueueShutdownTimeout > MaxQueueShutdownTimeout {
		return fmt.Errorf("QUEUE_SHUTDOWN_TIMEOUT must be in (0, %v], got: %v", MaxQueueShutdownTimeout, c.QueueShutdownTimeout)
	}
	if c.UploadConcurrency <= 0 {
		return fmt.Errorf("UPLOAD_CONCURRENCY must be positive, got: %d", c.UploadConcurrency)
	}
	return nil
}

// ImageDir holds converted images served under /static/image.
func (c *Config) ImageDir() string { return filepath.Join(c.UploadDir, "images") }

// ImageTempDir holds raw image uploads before conversion.
func (c *Config) ImageTempDir() string { return filepath.Join(c.UploadDir, "images", "temp") }

// VideoDir holds one directory per uploaded video.
func (c *Config) VideoDir() string { return filepath.Join(c.UploadDir, "videos") }

// BlobDir is the LocalStore root used when no S3 endpoint is configured.
func (c *Config) BlobDir() string { return filepath.Join(c.UploadDir, "blobs") }

// EnsureDirectories creates the upload directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.ImageTempDir(), c.VideoDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return nil
}

func atoi(v, key string) (int, error) {
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func splitList(v string) []string {
	if v == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
