package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(jobsReconciledTotal) }

var jobsReconciledTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "imagine_jobs_reconciled_total",
		Help: "Stuck jobs terminally failed by the reconciliation sweep.",
	},
	[]string{"stuck_in"}, // 'pending', 'processing', 'awaiting_completion'
)

func AddReconciled(stuckIn string, n int) {
	jobsReconciledTotal.WithLabelValues(norm(stuckIn)).Add(float64(n))
}
