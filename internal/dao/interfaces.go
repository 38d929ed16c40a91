package dao

import (
	"context"
	"errors"
	"time"

	mxm "github.com/Daneel-Li/storefront-pay/internal/models"
)

var (
	// ErrNotFound wraps gorm.ErrRecordNotFound so callers need not import gorm.
	ErrNotFound = errors.New("record not found")
	// ErrStaleTransition 条件更新没有命中任何行，说明状态已被其他请求改变
	ErrStaleTransition = errors.New("payment status changed concurrently")
)

// OrderRepository 订单相关数据访问接口
type OrderRepository interface {
	CreateOrder(ctx context.Context, order *mxm.Order) error
	GetOrderByID(ctx context.Context, orderID string) (*mxm.Order, error)
	// UpdateOrderPaymentStatus sets payment_status and, when paymentID is non-nil, the linked payment.
	UpdateOrderPaymentStatus(ctx context.Context, orderID string, status mxm.OrderPaymentStatus, paymentID *string) error
}

// PaymentChanges are the columns written together with a status transition.
// Zero values are left untouched.
type PaymentChanges struct {
	GatewayPaymentID string
	Method           string
	Signature        string
	RefundedAmount   int64
	CapturedAt       *time.Time
}

// PaymentRepository 支付记录数据访问接口
type PaymentRepository interface {
	CreatePayment(ctx context.Context, p *mxm.Payment) error
	GetPaymentByID(ctx context.Context, id string) (*mxm.Payment, error)
	GetPaymentByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*mxm.Payment, error)
	GetPaymentByGatewayPaymentID(ctx context.Context, gatewayPaymentID string) (*mxm.Payment, error)
	// LockPaymentByGatewayPaymentID reads with SELECT ... FOR UPDATE; use inside Transaction.
	LockPaymentByGatewayPaymentID(ctx context.Context, gatewayPaymentID string) (*mxm.Payment, error)
	ListPaymentsByOrderID(ctx context.Context, orderID string) ([]*mxm.Payment, error)
	// ApplyPaymentTransition writes t only if the row still holds t.From().
	// It returns ErrStaleTransition when another writer got there first.
	ApplyPaymentTransition(ctx context.Context, p *mxm.Payment, t mxm.PaymentTransition, changes PaymentChanges) error
}

// RefundRepository 退款记录
type RefundRepository interface {
	CreateRefund(ctx context.Context, r *mxm.Refund) error
	// UpdateRefund sets status and, when gatewayRefundID is non-nil, the gateway refund id.
	UpdateRefund(ctx context.Context, refundID string, status string, gatewayRefundID *string) error
	ListRefundsByPaymentID(ctx context.Context, paymentID string) ([]*mxm.Refund, error)
}

// WebhookEventRepository webhook投递审计
type WebhookEventRepository interface {
	CreateWebhookEvent(ctx context.Context, e *mxm.WebhookEvent) error
	ListWebhookEvents(ctx context.Context, gatewayPaymentID string) ([]*mxm.WebhookEvent, error)
}

// Repository 组合所有数据访问接口
type Repository interface {
	OrderRepository
	PaymentRepository
	RefundRepository
	WebhookEventRepository

	// Transaction runs fn against a repository bound to one database transaction.
	// fn must only use the tx it is given.
	Transaction(ctx context.Context, fn func(tx Repository) error) error
	Ping(ctx context.Context) error
}
