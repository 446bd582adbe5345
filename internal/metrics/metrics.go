package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Per-pass outcome labels.
const (
	StatusSuccess = "success"
	StatusError   = "error"
	StatusNoOp    = "noop"
)

var (
	syncDuration = prometheus.NewSummaryVec(prometheus.SummaryOpts{
		Name: "gitops_sync_duration_seconds",
		Help: "Summary of reconciliation pass durations",
	}, []string{"status"})

	syncCount = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gitops_sync_count_total",
		Help: "How many reconciliation passes completed, partitioned by application and status (success, error, noop)",
	}, []string{"application", "status"})

	patchCount = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gitops_patch_count_total",
		Help: "How many patches were applied, partitioned by operation",
	}, []string{"op"})
)

func init() {
	prometheus.MustRegister(syncDuration)
	prometheus.MustRegister(syncCount)
	prometheus.MustRegister(patchCount)
}

// ObservePass records the outcome and duration of one reconciliation pass.
func ObservePass(application, status string, seconds float64) {
	syncDuration.WithLabelValues(status).Observe(seconds)
	syncCount.WithLabelValues(application, status).Inc()
}

// ObservePatch records one applied patch.
func ObservePatch(op string) {
	patchCount.WithLabelValues(op).Inc()
}

// Serve exposes /metrics on addr. Blocks; intended to run in its own
// goroutine.
func Serve(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return http.ListenAndServe(addr, mux)
}
