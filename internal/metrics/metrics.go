// Package metrics exposes Prometheus counters for backend fetches, config
// scrubs, child exits and the gateway health wait.
//
// Collectors are registered with the default registry on the first call to
// Init. Record functions are no-ops until then, so packages can record
// unconditionally while only "start --metrics-addr" pays for registration.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "openclaw_secure"

// Fetch results.
const (
	ResultFound    = "found"
	ResultMissing  = "missing"
	ResultError    = "error"
	ResultSuccess  = "success"
	ResultFailure  = "failure"
	ResultNotFound = "not_found"
)

var (
	backendFetchTotal *prometheus.CounterVec
	scrubTotal        *prometheus.CounterVec
	childExitTotal    *prometheus.CounterVec
	healthWaitSeconds prometheus.Histogram

	once       sync.Once
	registered bool
	mu         sync.RWMutex
)

// Init registers all collectors. Further calls do nothing.
func Init() {
	once.Do(func() {
		backendFetchTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "backend_fetch_total",
				Help:      "Secret reads from the backend, by outcome",
			},
			[]string{"backend", "result"},
		)

		scrubTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "scrub_total",
				Help:      "Config rewrites, by operation and outcome",
			},
			[]string{"operation", "result"},
		)

		childExitTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "child_exit_total",
				Help:      "Supervised child exits, by reason",
			},
			[]string{"reason"},
		)

		healthWaitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "health_wait_seconds",
			Help:      "Time until the gateway answered its health endpoint",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60},
		})

		mu.Lock()
		registered = true
		mu.Unlock()
	})
}

// Registered reports whether Init has run.
func Registered() bool {
	mu.RLock()
	defer mu.RUnlock()
	return registered
}

// RecordFetch counts one backend read.
func RecordFetch(backend, result string) {
	if !Registered() {
		return
	}
	backendFetchTotal.WithLabelValues(backend, result).Inc()
}

// RecordScrub counts one config rewrite (store, scrub or reconcile).
func RecordScrub(operation string, err error) {
	if !Registered() {
		return
	}
	result := ResultSuccess
	if err != nil {
		result = ResultFailure
	}
	scrubTotal.WithLabelValues(operation, result).Inc()
}

// RecordChildExit counts a child exit. reason is one of exited, signaled,
// forced or spawn_failed.
func RecordChildExit(reason string) {
	if !Registered() {
		return
	}
	childExitTotal.WithLabelValues(reason).Inc()
}

// ObserveHealthWait records how long the gateway took to become healthy.
func ObserveHealthWait(d time.Duration) {
	if !Registered() {
		return
	}
	healthWaitSeconds.Observe(d.Seconds())
}

// BackendFetchTotal returns the fetch counter, nil before Init.
func BackendFetchTotal() *prometheus.CounterVec { return backendFetchTotal }

// ScrubTotal returns the scrub counter, nil before Init.
func ScrubTotal() *prometheus.CounterVec { return scrubTotal }

// ChildExitTotal returns the child exit counter, nil before Init.
func ChildExitTotal() *prometheus.CounterVec { return childExitTotal }
