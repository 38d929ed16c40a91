package dao

import (
	"context"
	"errors"
	"fmt"
	"time"

	mxm "github.com/Daneel-Li/storefront-pay/internal/models"
	"gorm.io/gorm/clause"
)

func (d *GormRepository) CreatePayment(ctx context.Context, p *mxm.Payment) error {
	if err := d.db.WithContext(ctx).Create(p).Error; err != nil {
		return fmt.Errorf("create payment for order %s: %w", p.OrderID, err)
	}
	return nil
}

func (d *GormRepository) GetPaymentByID(ctx context.Context, id string) (*mxm.Payment, error) {
	return d.firstPayment(ctx, "payment "+id, "id = ?", id)
}

// GetPaymentByGatewayOrderID 按网关订单号查询 (intent 幂等键)
func (d *GormRepository) GetPaymentByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*mxm.Payment, error) {
	return d.firstPayment(ctx, "payment for gateway order "+gatewayOrderID, "gateway_order_id = ?", gatewayOrderID)
}

// GetPaymentByGatewayPaymentID 按网关支付号查询 (确认 幂等键)
func (d *GormRepository) GetPaymentByGatewayPaymentID(ctx context.Context, gatewayPaymentID string) (*mxm.Payment, error) {
	return d.firstPayment(ctx, "payment "+gatewayPaymentID, "gateway_payment_id = ?", gatewayPaymentID)
}

func (d *GormRepository) LockPaymentByGatewayPaymentID(ctx context.Context, gatewayPaymentID string) (*mxm.Payment, error) {
	var p mxm.Payment
	err := d.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("gateway_payment_id = ?", gatewayPaymentID).
		First(&p).Error
	if err != nil {
		return nil, notFound(err, "lock payment "+gatewayPaymentID)
	}
	return &p, nil
}

func (d *GormRepository) ListPaymentsByOrderID(ctx context.Context, orderID string) ([]*mxm.Payment, error) {
	var lst []*mxm.Payment
	if err := d.db.WithContext(ctx).Where("order_id = ?", orderID).Order("created_at").Find(&lst).Error; err != nil {
		return nil, fmt.Errorf("list payments of order %s: %w", orderID, err)
	}
	return lst, nil
}

func (d *GormRepository) ApplyPaymentTransition(ctx context.Context, p *mxm.Payment, t mxm.PaymentTransition, changes PaymentChanges) error {
	if t.IsZero() {
		return errors.New("apply payment transition: zero transition")
	}
	now := time.Now().UTC()
	updates := map[string]interface{}{
		"status":     t.To(),
		"updated_at": now,
	}
	if changes.GatewayPaymentID != "" {
		updates["gateway_payment_id"] = changes.GatewayPaymentID
	}
	if changes.Method != "" {
		updates["method"] = changes.Method
	}
	if changes.Signature != "" {
		updates["signature"] = changes.Signature
	}
	if changes.RefundedAmount != 0 {
		updates["refunded_amount"] = changes.RefundedAmount
	}
	if changes.CapturedAt != nil {
		updates["captured_at"] = *changes.CapturedAt
	}

	// set status = to where status = from; 0行说明被并发请求抢先
	res := d.db.WithContext(ctx).Model(&mxm.Payment{}).
		Where("id = ? AND status = ?", p.ID, t.From()).
		Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("payment %s %s -> %s: %w", p.ID, t.From(), t.To(), res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("payment %s %s -> %s: %w", p.ID, t.From(), t.To(), ErrStaleTransition)
	}

	p.Status = t.To()
	p.UpdatedAt = now
	if changes.GatewayPaymentID != "" {
		id := changes.GatewayPaymentID
		p.GatewayPaymentID = &id
	}
	if changes.Method != "" {
		p.Method = changes.Method
	}
	if changes.Signature != "" {
		p.Signature = changes.Signature
	}
	if changes.RefundedAmount != 0 {
		p.RefundedAmount = changes.RefundedAmount
	}
	if changes.CapturedAt != nil {
		p.CapturedAt = changes.CapturedAt
	}
	return nil
}

func (d *GormRepository) firstPayment(ctx context.Context, what string, query string, args ...interface{}) (*mxm.Payment, error) {
	var p mxm.Payment
	if err := d.db.WithContext(ctx).Where(query, args...).First(&p).Error; err != nil {
		return nil, notFound(err, what)
	}
	return &p, nil
}
