package models

import (
	"time"

	"gorm.io/datatypes"
)

type WebhookOutcome string

const (
	WebhookProcessed WebhookOutcome = "processed"
	WebhookDuplicate WebhookOutcome = "duplicate"
	WebhookIgnored   WebhookOutcome = "ignored"
	WebhookRejected  WebhookOutcome = "rejected"
	WebhookError     WebhookOutcome = "error"
)

// WebhookEvent is the audit trail of gateway webhook deliveries. The HTTP response is always
// 200, so this table and the logs are where failed deliveries show up.
type WebhookEvent struct {
	ID               string         `gorm:"primaryKey;type:varchar(36)" json:"id"`
	EventID          string         `gorm:"index;type:varchar(64)" json:"event_id,omitempty"`
	Event            string         `gorm:"type:varchar(64)" json:"event"`
	GatewayPaymentID string         `gorm:"index;type:varchar(64)" json:"gateway_payment_id,omitempty"`
	SignatureValid   bool           `json:"signature_valid"`
	Outcome          WebhookOutcome `gorm:"type:varchar(16)" json:"outcome"`
	ErrorKind        string         `gorm:"type:varchar(64)" json:"error_kind,omitempty"`
	Payload          datatypes.JSON `json:"payload,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
}

func (WebhookEvent) TableName() string {
	return "webhook_events"
}
