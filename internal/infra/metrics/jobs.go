package metrics

import (
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() { register(jobsProcessedTotal, dispatchLatency) }

var jobsProcessedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "imagine_jobs_processed_total",
		Help: "Total number of generation jobs reaching a terminal status.",
	},
	[]string{"status"}, // 'completed', 'failed'
)

var dispatchLatency = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "imagine_dispatch_latency_ms",
		Help:    "Provider submission latency distribution in milliseconds.",
		Buckets: []float64{25, 50, 100, 200, 400, 800, 1600, 3000, 5000, 10000},
	},
	[]string{"success"},
)

func IncJob(status string) {
	jobsProcessedTotal.WithLabelValues(norm(status)).Inc()
}

func ObserveDispatch(d time.Duration, success bool) {
	dispatchLatency.WithLabelValues(strconv.FormatBool(success)).
		Observe(float64(d / time.Millisecond))
}

func norm(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
