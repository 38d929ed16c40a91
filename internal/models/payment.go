package models

import (
	"fmt"
	"time"
)

type PaymentStatus string

const (
	PaymentCreated           PaymentStatus = "created"
	PaymentCaptured          PaymentStatus = "captured"
	PaymentFailed            PaymentStatus = "failed"
	PaymentRefunded          PaymentStatus = "refunded"
	PaymentPartiallyRefunded PaymentStatus = "partially_refunded"
)

// allowed transitions; anything not listed is rejected
var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentCreated:  {PaymentCaptured, PaymentFailed},
	PaymentCaptured: {PaymentRefunded, PaymentPartiallyRefunded},
}

func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentCreated, PaymentCaptured, PaymentFailed, PaymentRefunded, PaymentPartiallyRefunded:
		return true
	}
	return false
}

// CanTransitionTo reports whether next is reachable from s in one step.
func (s PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	for _, t := range paymentTransitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// IsRefunded reports whether a refund has already been issued.
func (s PaymentStatus) IsRefunded() bool {
	return s == PaymentRefunded || s == PaymentPartiallyRefunded
}

// Payment 支付记录. One order may own several payments, at most one of them not failed.
type Payment struct {
	ID               string        `gorm:"primaryKey;type:varchar(36)" json:"id"`
	OrderID          string        `gorm:"index;type:varchar(36);not null" json:"order_id"`
	GatewayOrderID   string        `gorm:"uniqueIndex;type:varchar(64);not null" json:"gateway_order_id"`
	GatewayPaymentID *string       `gorm:"uniqueIndex;type:varchar(64)" json:"gateway_payment_id,omitempty"`
	Receipt          string        `gorm:"type:varchar(40)" json:"receipt"`
	Amount           int64         `gorm:"not null" json:"amount"` // 单位:分
	Currency         string        `gorm:"type:varchar(3);not null" json:"currency"`
	Status           PaymentStatus `gorm:"type:varchar(24);not null;default:'created'" json:"status"`
	Method           string        `gorm:"type:varchar(32)" json:"method,omitempty"`
	Signature        string        `gorm:"type:varchar(128)" json:"-"`
	RefundedAmount   int64         `gorm:"not null;default:0" json:"refunded_amount"`
	CapturedAt       *time.Time    `json:"captured_at,omitempty"`
	CreatedAt        time.Time     `json:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at"`
}

func (Payment) TableName() string {
	return "payments"
}

// PaymentTransition is a checked status change. Only Payment.Transition builds one,
// so the store can never be handed a status the state machine did not approve.
type PaymentTransition struct {
	from PaymentStatus
	to   PaymentStatus
}

func (t PaymentTransition) From() PaymentStatus { return t.from }
func (t PaymentTransition) To() PaymentStatus   { return t.to }

// IsZero reports whether t was not produced by Payment.Transition.
func (t PaymentTransition) IsZero() bool {
	return t.from == "" || t.to == ""
}

// Transition validates moving p to next.
func (p *Payment) Transition(next PaymentStatus) (PaymentTransition, error) {
	if !p.Status.CanTransitionTo(next) {
		return PaymentTransition{}, fmt.Errorf("payment %s: illegal transition %s -> %s", p.ID, p.Status, next)
	}
	return PaymentTransition{from: p.Status, to: next}, nil
}
