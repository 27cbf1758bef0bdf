package transcode

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	outcomeSucceeded = "succeeded"
	outcomeFailed    = "failed"
)

type Metrics struct {
	QueueDepth         prometheus.Gauge
	Jobs               *prometheus.CounterVec
	EncodeDuration     prometheus.Histogram
	PublishDuration    prometheus.Histogram
	ArtifactsPublished prometheus.Counter
	StatusWriteErrors  prometheus.Counter
}

// NewMetrics registers the queue metrics on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		QueueDepth: f.NewGauge(prometheus.GaugeOpts{
			Name: "twitter_transcode_queue_depth",
			Help: "Videos waiting in the transcode queue, including the one being encoded",
		}),
		Jobs: f.NewCounterVec(prometheus.CounterOpts{
			Name: "twitter_transcode_jobs_total",
			Help: "Transcode jobs that reached a terminal state",
		}, []string{"outcome"}),
		EncodeDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "twitter_transcode_encode_duration_seconds",
			Help:    "Duration of encoder invocations",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12), // 1s to ~34m
		}),
		PublishDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "twitter_transcode_publish_duration_seconds",
			Help:    "Duration of artifact upload batches",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
		ArtifactsPublished: f.NewCounter(prometheus.CounterOpts{
			Name: "twitter_transcode_artifacts_published_total",
			Help: "HLS artifacts uploaded to the blob store",
		}),
		StatusWriteErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "twitter_transcode_status_write_errors_total",
			Help: "Status updates that failed and were dropped",
		}),
	}
}
