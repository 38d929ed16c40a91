// Package payment reconciles gateway payments with storefront orders.
//
// Verify, callback and webhook all funnel into the same state machine: a Payment leaves
// "created" exactly once, through a conditional store update, and every later arrival for
// the same payment is a read-only check.
package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jaevor/go-nanoid"
	"golang.org/x/sync/singleflight"

	"github.com/Daneel-Li/storefront-pay/internal/dao"
	"github.com/Daneel-Li/storefront-pay/internal/events"
	"github.com/Daneel-Li/storefront-pay/internal/gateway"
	"github.com/Daneel-Li/storefront-pay/internal/metrics"
	mxm "github.com/Daneel-Li/storefront-pay/internal/models"
)

// Entry paths, used as metric labels and event sources.
const (
	SourceVerify   = "verify"
	SourceCallback = "callback"
	SourceWebhook  = "webhook"
	SourceRefund   = "refund"
)

type Options struct {
	KeyID         string // public key handed to the checkout widget
	KeySecret     string // signs (gateway order id | gateway payment id)
	WebhookSecret string // signs webhook bodies
	Currency      string
}

// Service 支付对账服务
type Service struct {
	repo      dao.Repository
	gateway   gateway.Client
	publisher events.Publisher
	metrics   *metrics.PaymentMetrics
	opts      Options

	group   singleflight.Group
	receipt func() string
	now     func() time.Time
}

func NewService(repo dao.Repository, gw gateway.Client, pub events.Publisher, m *metrics.PaymentMetrics, opts Options) (*Service, error) {
	if opts.KeySecret == "" || opts.WebhookSecret == "" {
		return nil, errors.New("payment service: key secret and webhook secret are required")
	}
	if opts.Currency == "" {
		opts.Currency = "INR"
	}
	if pub == nil {
		pub = events.NopPublisher{}
	}
	gen, err := nanoid.Standard(21)
	if err != nil {
		return nil, fmt.Errorf("payment service: receipt generator: %w", err)
	}
	return &Service{
		repo:      repo,
		gateway:   gw,
		publisher: pub,
		metrics:   m,
		opts:      opts,
		receipt:   func() string { return "rcpt_" + gen() },
		now:       func() time.Time { return time.Now().UTC() },
	}, nil
}

// KeyID is the public gateway key for the checkout widget.
func (s *Service) KeyID() string {
	return s.opts.KeyID
}

// GetOrder 查询订单
func (s *Service) GetOrder(ctx context.Context, orderID string) (*mxm.Order, error) {
	o, err := s.repo.GetOrderByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, dao.ErrNotFound) {
			return nil, reject(ErrOrderNotFound, "order %s", orderID)
		}
		return nil, fmt.Errorf("load order %s: %w", orderID, err)
	}
	return o, nil
}

// gatewayErr classifies a gateway failure. Only a 4xx answer is final; everything
// else leaves the payment untouched and retryable.
func gatewayErr(op string, err error) error {
	var apiErr *gateway.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("%w: %s: %w", ErrGatewayRejected, op, err)
	}
	return fmt.Errorf("%w: %s: %w", ErrGatewayUnreachable, op, err)
}

func (s *Service) publish(ctx context.Context, typ events.Type, source string, p *mxm.Payment, o *mxm.Order) {
	e := events.PaymentEvent{
		ID:             uuid.NewString(),
		Type:           typ,
		Source:         source,
		OrderID:        p.OrderID,
		PaymentID:      p.ID,
		GatewayOrderID: p.GatewayOrderID,
		Status:         string(p.Status),
		Amount:         p.Amount,
		RefundedAmount: p.RefundedAmount,
		Currency:       p.Currency,
		OccurredAt:     s.now(),
	}
	if p.GatewayPaymentID != nil {
		e.GatewayPaymentID = *p.GatewayPaymentID
	}
	if o != nil {
		e.OrderNumber = o.OrderNumber
	}
	if err := s.publisher.Publish(ctx, e); err != nil {
		slog.Error("publish payment event failed", "error", err, "type", typ, "paymentID", p.ID)
	}
}

// OrderForGatewayOrder finds the order behind a gateway intent, for error pages that
// still want to show the customer which order they were paying.
func (s *Service) OrderForGatewayOrder(ctx context.Context, gatewayOrderID string) (*mxm.Order, error) {
	p, err := s.repo.GetPaymentByGatewayOrderID(ctx, gatewayOrderID)
	if err != nil {
		if errors.Is(err, dao.ErrNotFound) {
			return nil, reject(ErrPaymentNotFound, "gateway order %s", gatewayOrderID)
		}
		return nil, err
	}
	return s.GetOrder(ctx, p.OrderID)
}
