package dao

import (
	"context"
	"fmt"

	mxm "github.com/Daneel-Li/storefront-pay/internal/models"
)

// CreateWebhookEvent 记录一次webhook投递，无论处理结果
func (d *GormRepository) CreateWebhookEvent(ctx context.Context, e *mxm.WebhookEvent) error {
	if err := d.db.WithContext(ctx).Create(e).Error; err != nil {
		return fmt.Errorf("add webhook event error, %w", err)
	}
	return nil
}

// ListWebhookEvents returns deliveries for one gateway payment, oldest first.
func (d *GormRepository) ListWebhookEvents(ctx context.Context, gatewayPaymentID string) ([]*mxm.WebhookEvent, error) {
	var lst []*mxm.WebhookEvent
	err := d.db.WithContext(ctx).
		Where("gateway_payment_id = ?", gatewayPaymentID).
		Order("created_at").
		Find(&lst).Error
	if err != nil {
		return nil, fmt.Errorf("select webhook events failed, %w", err)
	}
	return lst, nil
}
