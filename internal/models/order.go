package models

import (
	"time"
)

// OrderPaymentStatus 订单支付状态
type OrderPaymentStatus string

const (
	OrderPaymentPending  OrderPaymentStatus = "pending"
	OrderPaymentPaid     OrderPaymentStatus = "paid"
	OrderPaymentFailed   OrderPaymentStatus = "failed"
	OrderPaymentRefunded OrderPaymentStatus = "refunded"
)

// PaymentRoute is the payment route declared by checkout.
type PaymentRoute string

const (
	RouteCOD     PaymentRoute = "COD"
	RoutePrepaid PaymentRoute = "Prepaid"
)

// Order is written by checkout; this service only moves PaymentStatus and PaymentID.
type Order struct {
	ID            string             `gorm:"primaryKey;type:varchar(36)" json:"id"`
	OrderNumber   string             `gorm:"uniqueIndex;type:varchar(32);not null" json:"order_number"`
	TotalAmount   int64              `gorm:"not null" json:"total_amount"` // 单位:分
	Currency      string             `gorm:"type:varchar(3);not null;default:'INR'" json:"currency"`
	PaymentRoute  PaymentRoute       `gorm:"type:varchar(16);not null" json:"payment_route"`
	PaymentStatus OrderPaymentStatus `gorm:"type:varchar(16);not null;default:'pending'" json:"payment_status"`
	PaymentID     *string            `gorm:"type:varchar(36)" json:"payment_id,omitempty"`
	CreatedAt     time.Time          `json:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at"`
}

func (Order) TableName() string {
	return "orders"
}

// IsPrepaid reports whether the order is paid through the gateway.
func (o *Order) IsPrepaid() bool {
	return o.PaymentRoute == RoutePrepaid
}

// OrderStatusFor derives the order payment status implied by a payment status.
func OrderStatusFor(s PaymentStatus) OrderPaymentStatus {
	switch s {
	case PaymentCaptured:
		return OrderPaymentPaid
	case PaymentFailed:
		return OrderPaymentFailed
	case PaymentRefunded, PaymentPartiallyRefunded:
		return OrderPaymentRefunded
	default:
		return OrderPaymentPending
	}
}
