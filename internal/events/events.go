// Package events publishes committed payment state changes for downstream consumers (fulfillment).
package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/bytedance/gopkg/util/gopool"
	"github.com/segmentio/kafka-go"
)

type Type string

const (
	PaymentConfirmed         Type = "payment.confirmed"
	PaymentFailed            Type = "payment.failed"
	PaymentRefunded          Type = "payment.refunded"
	PaymentDuplicateCaptured Type = "payment.duplicate_captured" // order was already settled by another payment
)

// PaymentEvent is emitted once per committed transition.
type PaymentEvent struct {
	ID               string    `json:"id"`
	Type             Type      `json:"type"`
	Source           string    `json:"source"` // verify | callback | webhook | refund
	OrderID          string    `json:"order_id"`
	OrderNumber      string    `json:"order_number,omitempty"`
	PaymentID        string    `json:"payment_id"`
	GatewayOrderID   string    `json:"gateway_order_id"`
	GatewayPaymentID string    `json:"gateway_payment_id,omitempty"`
	Status           string    `json:"status"`
	Amount           int64     `json:"amount"`
	RefundedAmount   int64     `json:"refunded_amount,omitempty"`
	Currency         string    `json:"currency"`
	OccurredAt       time.Time `json:"occurred_at"`
}

type Publisher interface {
	Publish(ctx context.Context, e PaymentEvent) error
}

// NopPublisher drops every event; used when no brokers are configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, PaymentEvent) error { return nil }

type KafkaPublisher struct {
	writer *kafka.Writer
}

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{}, // 同一订单的事件进同一分区，保证顺序
			RequiredAcks: kafka.RequireAll,
		},
	}
}

func (k *KafkaPublisher) Publish(ctx context.Context, e PaymentEvent) error {
	msg, err := toMessage(e)
	if err != nil {
		return err
	}
	return k.writer.WriteMessages(ctx, msg)
}

func (k *KafkaPublisher) Close() error {
	return k.writer.Close()
}

func toMessage(e PaymentEvent) (kafka.Message, error) {
	v, err := json.Marshal(e)
	if err != nil {
		return kafka.Message{}, err
	}
	return kafka.Message{
		Key:   []byte(e.OrderID),
		Value: v,
		Time:  e.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(e.Type)},
		},
	}, nil
}

// AsyncPublisher hands events to a bounded pool so a slow broker never holds up a payment request.
// Failures are only logged.
type AsyncPublisher struct {
	next    Publisher
	pool    gopool.Pool
	timeout time.Duration
}

func NewAsyncPublisher(next Publisher, maxWorkers int32, timeout time.Duration) *AsyncPublisher {
	if maxWorkers < 1 {
		maxWorkers = 16
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &AsyncPublisher{
		next:    next,
		pool:    gopool.NewPool("event_pool", maxWorkers, gopool.NewConfig()),
		timeout: timeout,
	}
}

func (a *AsyncPublisher) Publish(ctx context.Context, e PaymentEvent) error {
	// 请求结束后ctx会被取消，这里只保留其中的值
	base := context.WithoutCancel(ctx)
	a.pool.Go(func() {
		ctx, cancel := context.WithTimeout(base, a.timeout)
		defer cancel()
		if err := a.next.Publish(ctx, e); err != nil {
			slog.Error("publish payment event failed", "error", err, "type", e.Type, "orderID", e.OrderID, "paymentID", e.PaymentID)
			return
		}
		slog.Debug("payment event published", "type", e.Type, "orderID", e.OrderID)
	})
	return nil
}
