package dao

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	mxm "github.com/Daneel-Li/storefront-pay/internal/models"
)

func (d *GormRepository) CreateRefund(ctx context.Context, r *mxm.Refund) error {
	if err := d.db.WithContext(ctx).Create(r).Error; err != nil {
		return fmt.Errorf("add refund error, %w", err)
	}
	return nil
}

// UpdateRefund 更新退款状态
func (d *GormRepository) UpdateRefund(ctx context.Context, refundID string, status string, gatewayRefundID *string) error {
	updates := map[string]interface{}{
		"status":     status,
		"updated_at": time.Now().UTC(),
	}
	if gatewayRefundID != nil {
		updates["gateway_refund_id"] = *gatewayRefundID
	}
	res := d.db.WithContext(ctx).Model(&mxm.Refund{}).Where("id = ?", refundID).Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("update refund error, %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return notFound(gorm.ErrRecordNotFound, "refund "+refundID)
	}
	return nil
}

func (d *GormRepository) ListRefundsByPaymentID(ctx context.Context, paymentID string) ([]*mxm.Refund, error) {
	var lst []*mxm.Refund
	if err := d.db.WithContext(ctx).Where("payment_id = ?", paymentID).Order("created_at").Find(&lst).Error; err != nil {
		return nil, fmt.Errorf("select refunds failed, %w", err)
	}
	return lst, nil
}
