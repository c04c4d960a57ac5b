package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

var (
	once sync.Once

	apiRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tacosync",
			Name:      "api_requests_total",
			Help:      "Outbound API attempts by api and outcome.",
		},
		[]string{"api", "outcome"},
	)

	authRotations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tacosync",
			Name:      "auth_rotations_total",
			Help:      "Token rotations triggered by 401/403 responses.",
		},
		[]string{"api"},
	)

	rateLimitWaits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tacosync",
			Name:      "rate_limit_waits_total",
			Help:      "Backoff waits triggered by 429 responses.",
		},
		[]string{"api"},
	)

	chunkRetries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tacosync",
			Name:      "chunk_retries_total",
			Help:      "Whole-chunk retries by pipeline stage.",
		},
		[]string{"stage"},
	)

	pushedRecords = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tacosync",
			Name:      "pushed_records_total",
			Help:      "Records pushed to the pricing-sync service by result status.",
		},
		[]string{"status"},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(apiRequests, authRotations, rateLimitWaits, chunkRetries, pushedRecords)
	})
}

// IncRequest counts one outbound attempt.
func IncRequest(api, outcome string) {
	apiRequests.WithLabelValues(api, outcome).Inc()
}

// IncAuthRotation counts one token rotation.
func IncAuthRotation(api string) {
	authRotations.WithLabelValues(api).Inc()
}

// IncRateLimitWait counts one 429 backoff wait.
func IncRateLimitWait(api string) {
	rateLimitWaits.WithLabelValues(api).Inc()
}

// IncChunkRetry counts one whole-chunk rerun.
func IncChunkRetry(stage string) {
	chunkRetries.WithLabelValues(stage).Inc()
}

// IncPush counts one pricing-sync push result.
func IncPush(status string) {
	pushedRecords.WithLabelValues(status).Inc()
}

// PushToGateway ships the default registry to a Pushgateway. Batch jobs
// have no scrape surface, so this runs once at end of run.
func PushToGateway(url, job string) error {
	return push.New(url, job).Gatherer(prometheus.DefaultGatherer).Push()
}
