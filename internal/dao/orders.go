package dao

import (
	"context"
	"time"

	mxm "github.com/Daneel-Li/storefront-pay/internal/models"
	"gorm.io/gorm"
)

func (d *GormRepository) CreateOrder(ctx context.Context, order *mxm.Order) error {
	return d.db.WithContext(ctx).Create(order).Error
}

// GetOrderByID 根据ID获取订单
func (d *GormRepository) GetOrderByID(ctx context.Context, orderID string) (*mxm.Order, error) {
	var order mxm.Order
	if err := d.db.WithContext(ctx).Where("id = ?", orderID).First(&order).Error; err != nil {
		return nil, notFound(err, "order "+orderID)
	}
	return &order, nil
}

// UpdateOrderPaymentStatus 更新订单支付状态
func (d *GormRepository) UpdateOrderPaymentStatus(ctx context.Context, orderID string, status mxm.OrderPaymentStatus, paymentID *string) error {
	updates := map[string]interface{}{
		"payment_status": status,
		"updated_at":     time.Now().UTC(),
	}
	if paymentID != nil {
		updates["payment_id"] = *paymentID
	}
	res := d.db.WithContext(ctx).Model(&mxm.Order{}).Where("id = ?", orderID).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return notFound(gorm.ErrRecordNotFound, "order "+orderID)
	}
	return nil
}
