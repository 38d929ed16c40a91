package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PaymentMetrics 支付相关指标
type PaymentMetrics struct {
	// 对账结果, path = verify | callback | webhook
	ReconciliationsTotal *prometheus.CounterVec
	// webhook投递, 永远返回200, 只能从这里看到失败
	WebhookDeliveriesTotal *prometheus.CounterVec
	GatewayRequestDuration *prometheus.HistogramVec
	RefundsTotal           *prometheus.CounterVec
	IntentsCreatedTotal    *prometheus.CounterVec
	// 同一订单第二笔被扣款的支付, 需要人工退款
	DuplicateCapturesTotal *prometheus.CounterVec
}

// NewPaymentMetrics registers the payment metrics on reg.
func NewPaymentMetrics(reg prometheus.Registerer) *PaymentMetrics {
	f := promauto.With(reg)
	return &PaymentMetrics{
		ReconciliationsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "payment_reconciliations_total",
				Help: "Reconciliation attempts by entry path and result",
			},
			[]string{"path", "result"},
		),
		WebhookDeliveriesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "payment_webhook_deliveries_total",
				Help: "Webhook deliveries by event and outcome",
			},
			[]string{"event", "outcome"},
		),
		GatewayRequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "payment_gateway_request_duration_seconds",
				Help:    "Outbound gateway request latency",
				Buckets: prometheus.ExponentialBuckets(0.025, 2, 10), // 25ms .. ~12.8s
			},
			[]string{"operation", "result"},
		),
		RefundsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "payment_refunds_total",
				Help: "Refund requests by result",
			},
			[]string{"result"},
		),
		IntentsCreatedTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "payment_intents_created_total",
				Help: "Gateway payment intents by result",
			},
			[]string{"result"},
		),
		DuplicateCapturesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "payment_duplicate_captures_total",
				Help: "Captured payments on orders already settled by another payment",
			},
			[]string{"path"},
		),
	}
}

func (m *PaymentMetrics) RecordReconciliation(path, result string) {
	if m == nil {
		return
	}
	m.ReconciliationsTotal.WithLabelValues(path, result).Inc()
}

func (m *PaymentMetrics) RecordWebhook(event, outcome string) {
	if m == nil {
		return
	}
	if event == "" {
		event = "unknown"
	}
	m.WebhookDeliveriesTotal.WithLabelValues(event, outcome).Inc()
}

func (m *PaymentMetrics) RecordRefund(result string) {
	if m == nil {
		return
	}
	m.RefundsTotal.WithLabelValues(result).Inc()
}

func (m *PaymentMetrics) RecordIntent(result string) {
	if m == nil {
		return
	}
	m.IntentsCreatedTotal.WithLabelValues(result).Inc()
}

func (m *PaymentMetrics) RecordDuplicateCapture(path string) {
	if m == nil {
		return
	}
	m.DuplicateCapturesTotal.WithLabelValues(path).Inc()
}

// ObserveGatewayRequest implements gateway.Observer.
func (m *PaymentMetrics) ObserveGatewayRequest(operation, result string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.GatewayRequestDuration.WithLabelValues(operation, result).Observe(elapsed.Seconds())
}
