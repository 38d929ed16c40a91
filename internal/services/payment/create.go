package payment

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/Daneel-Li/storefront-pay/internal/gateway"
	mxm "github.com/Daneel-Li/storefront-pay/internal/models"
)

type CreateOrderInput struct {
	OrderID     string
	OrderNumber string
	Amount      int64 // minor units
}

type CreateOrderResult struct {
	Payment *mxm.Payment
	Order   *mxm.Order
}

// CreateOrder mints a gateway intent for a prepaid order and records a Payment in "created".
func (s *Service) CreateOrder(ctx context.Context, in CreateOrderInput) (res *CreateOrderResult, err error) {
	defer func() {
		if err != nil {
			s.metrics.RecordIntent(Kind(err))
			slog.Warn("create payment intent failed", "error", err, "orderID", in.OrderID)
		}
	}()

	if in.OrderID == "" || in.OrderNumber == "" {
		return nil, reject(ErrValidation, "orderId and orderNumber are required")
	}
	if in.Amount <= 0 {
		return nil, reject(ErrValidation, "amount must be positive")
	}

	order, err := s.GetOrder(ctx, in.OrderID)
	if err != nil {
		return nil, err
	}
	switch {
	case order.OrderNumber != in.OrderNumber:
		return nil, reject(ErrValidation, "order number %s does not belong to order %s", in.OrderNumber, in.OrderID)
	case !order.IsPrepaid():
		return nil, reject(ErrValidation, "order %s uses payment route %s", order.OrderNumber, order.PaymentRoute)
	case order.PaymentStatus == mxm.OrderPaymentPaid || order.PaymentStatus == mxm.OrderPaymentRefunded:
		return nil, reject(ErrValidation, "order %s is already %s", order.OrderNumber, order.PaymentStatus)
	case in.Amount != order.TotalAmount:
		// 金额必须与订单总额一致，否则订单永远不能变成paid
		return nil, reject(ErrValidation, "amount %d does not match order total %d", in.Amount, order.TotalAmount)
	}

	// 每次调用都新建一个意图和 Payment 行；重复点击留下的 created 行不会被结算
	currency := order.Currency
	if currency == "" {
		currency = s.opts.Currency
	}
	receipt := s.receipt()
	intent, err := s.gateway.CreateOrder(ctx, gateway.CreateOrderRequest{
		Amount:   in.Amount,
		Currency: currency,
		Receipt:  receipt,
		Notes: map[string]string{
			"order_id":     order.ID,
			"order_number": order.OrderNumber,
		},
	})
	if err != nil {
		return nil, gatewayErr("create order", err)
	}
	if intent.Amount != 0 && intent.Amount != in.Amount {
		return nil, reject(ErrAmountMismatch, "gateway intent %s amount %d, requested %d", intent.ID, intent.Amount, in.Amount)
	}

	p := &mxm.Payment{
		ID:             uuid.NewString(),
		OrderID:        order.ID,
		GatewayOrderID: intent.ID,
		Receipt:        receipt,
		Amount:         in.Amount,
		Currency:       currency,
		Status:         mxm.PaymentCreated,
	}
	if err := s.repo.CreatePayment(ctx, p); err != nil {
		return nil, err
	}

	slog.Info("payment intent created", "orderID", order.ID, "paymentID", p.ID, "gatewayOrderID", p.GatewayOrderID, "amount", p.Amount)
	s.metrics.RecordIntent("ok")
	return &CreateOrderResult{Payment: p, Order: order}, nil
}
