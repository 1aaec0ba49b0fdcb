package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(webhookEventsTotal) }

var webhookEventsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "imagine_webhook_events_total",
		Help: "Inbound provider webhook deliveries by outcome.",
	},
	[]string{"outcome"}, // 'completed', 'failed', 'progress', 'unmatched', 'materialize_error'
)

func IncWebhook(outcome string) {
	webhookEventsTotal.WithLabelValues(norm(outcome)).Inc()
}
