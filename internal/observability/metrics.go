// Package observability exposes Prometheus metrics for the poller.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	pollCycles = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "xertbridge",
		Subsystem: "poller",
		Name:      "cycles_total",
		Help:      "Poll cycles by domain and result (changed, unchanged, error).",
	}, []string{"domain", "result"})
	webhookEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "xertbridge",
		Subsystem: "webhook",
		Name:      "events_total",
		Help:      "Webhook dispatch attempts by event type and result.",
	}, []string{"event", "result"})
	tokenExchanges = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "xertbridge",
		Subsystem: "auth",
		Name:      "token_exchanges_total",
		Help:      "OAuth token exchanges by grant type and result.",
	}, []string{"grant", "result"})
	lastChangeGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "xertbridge",
		Subsystem: "poller",
		Name:      "last_change_timestamp_seconds",
		Help:      "Unix timestamp of the most recent dispatched change per domain.",
	}, []string{"domain"})
)

func init() {
	prometheus.MustRegister(pollCycles, webhookEvents, tokenExchanges, lastChangeGauge)
}

// RecordPollCycle counts one completed cycle for a domain.
func RecordPollCycle(domain, result string) {
	pollCycles.WithLabelValues(domain, result).Inc()
}

// RecordWebhookEvent counts one dispatch attempt.
func RecordWebhookEvent(event string, sent bool) {
	result := "sent"
	if !sent {
		result = "failed"
	}
	webhookEvents.WithLabelValues(event, result).Inc()
}

// RecordTokenExchange counts one OAuth exchange attempt.
func RecordTokenExchange(grant string, ok bool) {
	result := "ok"
	if !ok {
		result = "error"
	}
	tokenExchanges.WithLabelValues(grant, result).Inc()
}

// RecordChangeDispatched updates the last-change watermark for a domain.
func RecordChangeDispatched(domain string, ts time.Time) {
	if ts.IsZero() {
		return
	}
	lastChangeGauge.WithLabelValues(domain).Set(float64(ts.Unix()))
}
