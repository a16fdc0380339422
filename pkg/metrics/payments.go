package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PaymentMetrics records webhook and effects processing outcomes.
type PaymentMetrics struct {
	webhookDuration *prometheus.HistogramVec
	statusApplied   *prometheus.CounterVec
	effectFailures  *prometheus.CounterVec
	outboxPublished *prometheus.CounterVec
}

// NewPaymentMetrics registers the payment metrics on the provided registerer.
func NewPaymentMetrics(reg prometheus.Registerer) *PaymentMetrics {
	if reg == nil {
		return &PaymentMetrics{}
	}
	webhookDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "payment_webhook_duration_seconds",
		Help:    "Duration of payment webhook processing in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"result"})
	statusApplied := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_status_applied_total",
		Help: "Status transitions applied to the payment ledger.",
	}, []string{"status"})
	effectFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_effect_failures_total",
		Help: "Post-payment effect steps that failed and were logged.",
	}, []string{"step"})
	outboxPublished := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "outbox_events_published_total",
		Help: "Outbox events published, by outcome.",
	}, []string{"outcome"})
	reg.MustRegister(webhookDuration, statusApplied, effectFailures, outboxPublished)
	return &PaymentMetrics{
		webhookDuration: webhookDuration,
		statusApplied:   statusApplied,
		effectFailures:  effectFailures,
		outboxPublished: outboxPublished,
	}
}

// ObserveWebhook records the webhook handling duration with its result label.
func (p *PaymentMetrics) ObserveWebhook(result string, duration time.Duration) {
	if p == nil || p.webhookDuration == nil {
		return
	}
	p.webhookDuration.WithLabelValues(normalizeLabel(result)).Observe(duration.Seconds())
}

// IncStatusApplied increments the applied-transition counter for a status.
func (p *PaymentMetrics) IncStatusApplied(status string) {
	if p == nil || p.statusApplied == nil {
		return
	}
	p.statusApplied.WithLabelValues(normalizeLabel(status)).Inc()
}

// IncEffectFailure increments the failure counter for a named effect step.
func (p *PaymentMetrics) IncEffectFailure(step string) {
	if p == nil || p.effectFailures == nil {
		return
	}
	p.effectFailures.WithLabelValues(normalizeLabel(step)).Inc()
}

// IncOutboxPublished increments the outbox publish counter for an outcome.
func (p *PaymentMetrics) IncOutboxPublished(outcome string) {
	if p == nil || p.outboxPublished == nil {
		return
	}
	p.outboxPublished.WithLabelValues(normalizeLabel(outcome)).Inc()
}
