package models

import (
	"time"

	"gorm.io/datatypes"
)

// Refund statuses written by this service; any other value is the gateway's own refund status.
const (
	// RefundInitiated is committed before the gateway is called and blocks further refunds
	// of the same payment until it is resolved.
	RefundInitiated = "initiated"
	// RefundFailed: the gateway call returned an error, the payment stays refundable.
	RefundFailed = "failed"
)

// Refund 退款记录, one row per refund attempt.
type Refund struct {
	ID              string         `gorm:"primaryKey;type:varchar(36)" json:"id"`
	PaymentID       string         `gorm:"index;type:varchar(36);not null" json:"payment_id"`
	GatewayRefundID *string        `gorm:"uniqueIndex;type:varchar(64)" json:"gateway_refund_id,omitempty"` // null until the gateway answers
	Receipt         string         `gorm:"type:varchar(40)" json:"receipt"`                                 // idempotency key sent to the gateway
	Amount          int64          `gorm:"not null" json:"amount"`                                          // 单位:分
	Currency        string         `gorm:"type:varchar(3);not null" json:"currency"`
	Status          string         `gorm:"type:varchar(24)" json:"status"`
	Notes           datatypes.JSON `json:"notes,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

func (Refund) TableName() string {
	return "refunds"
}

// InFlight reports whether the refund was sent (or is being sent) but not recorded as settled.
func (r *Refund) InFlight() bool {
	return r.Status == RefundInitiated
}
