package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/Daneel-Li/storefront-pay/internal/dao"
	"github.com/Daneel-Li/storefront-pay/internal/events"
	"github.com/Daneel-Li/storefront-pay/internal/gateway"
	mxm "github.com/Daneel-Li/storefront-pay/internal/models"
)

type RefundInput struct {
	GatewayPaymentID string
	Amount           int64 // minor units, 0 refunds the full captured amount
	Notes            map[string]string
}

type RefundResult struct {
	Refund  *mxm.Refund
	Payment *mxm.Payment
	Order   *mxm.Order
}

// refundReceipt is the idempotency key sent with a payment's refund. At most one refund
// per payment is allowed, so it only depends on the payment.
func refundReceipt(paymentID string) string {
	return "rf_" + paymentID
}

// Refund refunds a captured payment once.
//
// An "initiated" Refund row is committed before the gateway is called. Until it is resolved
// every further refund of the payment is rejected with ErrAlreadyRefunded, so a store failure
// after the gateway refunded can never lead to a second remote refund.
func (s *Service) Refund(ctx context.Context, in RefundInput) (res *RefundResult, err error) {
	defer func() {
		if err != nil {
			s.metrics.RecordRefund(Kind(err))
			return
		}
		s.metrics.RecordRefund(string(res.Payment.Status))
	}()

	if in.GatewayPaymentID == "" {
		return nil, reject(ErrValidation, "gatewayPaymentId is required")
	}
	if in.Amount < 0 {
		return nil, reject(ErrValidation, "refund amount must be positive")
	}
	var notes []byte
	if len(in.Notes) > 0 {
		if notes, err = json.Marshal(in.Notes); err != nil {
			return nil, reject(ErrValidation, "notes: %v", err)
		}
	}

	p, refund, err := s.reserveRefund(ctx, in, notes)
	if err != nil {
		slog.Warn("refund rejected", "error", err, "gatewayPaymentID", in.GatewayPaymentID, "kind", Kind(err))
		return nil, err
	}

	gr, err := s.gateway.Refund(ctx, in.GatewayPaymentID, gateway.RefundRequest{
		Amount:  refund.Amount,
		Receipt: refund.Receipt,
		Notes:   in.Notes,
	})
	if err != nil {
		// 网关未退款, release the reservation
		if uerr := s.repo.UpdateRefund(context.WithoutCancel(ctx), refund.ID, mxm.RefundFailed, nil); uerr != nil {
			slog.Error("release refund reservation failed, payment stays blocked", "error", uerr,
				"refundID", refund.ID, "gatewayPaymentID", in.GatewayPaymentID)
		}
		err = gatewayErr("refund "+in.GatewayPaymentID, err)
		slog.Warn("gateway refund failed", "error", err, "gatewayPaymentID", in.GatewayPaymentID, "kind", Kind(err))
		return nil, err
	}

	payment, order, err := s.recordRefund(ctx, p, refund, gr)
	if err != nil {
		slog.Error("refund issued but not recorded, operator attention required", "error", err,
			"gatewayPaymentID", in.GatewayPaymentID, "gatewayRefundID", gr.ID, "refundID", refund.ID)
		// keep the reservation, with the gateway id for whoever resolves it
		if uerr := s.repo.UpdateRefund(context.WithoutCancel(ctx), refund.ID, mxm.RefundInitiated, &gr.ID); uerr != nil {
			slog.Error("store gateway refund id failed", "error", uerr, "refundID", refund.ID, "gatewayRefundID", gr.ID)
		}
		return nil, err
	}

	slog.Info("payment refunded", "paymentID", payment.ID, "refundID", gr.ID,
		"amount", refund.Amount, "status", payment.Status)
	s.publish(ctx, events.PaymentRefunded, SourceRefund, payment, order)
	return &RefundResult{Refund: refund, Payment: payment, Order: order}, nil
}

// reserveRefund checks the payment under a row lock and commits an initiated Refund row.
func (s *Service) reserveRefund(ctx context.Context, in RefundInput, notes []byte) (*mxm.Payment, *mxm.Refund, error) {
	var (
		payment *mxm.Payment
		refund  *mxm.Refund
	)
	err := s.repo.Transaction(ctx, func(tx dao.Repository) error {
		p, err := tx.LockPaymentByGatewayPaymentID(ctx, in.GatewayPaymentID)
		if err != nil {
			if errors.Is(err, dao.ErrNotFound) {
				return reject(ErrPaymentNotFound, "gateway payment %s", in.GatewayPaymentID)
			}
			return err
		}
		switch {
		case p.Status.IsRefunded():
			return reject(ErrAlreadyRefunded, "payment %s is %s", in.GatewayPaymentID, p.Status)
		case p.Status != mxm.PaymentCaptured:
			return reject(ErrNotCaptured, "payment %s is %s", in.GatewayPaymentID, p.Status)
		}

		previous, err := tx.ListRefundsByPaymentID(ctx, p.ID)
		if err != nil {
			return err
		}
		for _, r := range previous {
			if r.InFlight() {
				return reject(ErrAlreadyRefunded, "refund %s of payment %s is in flight", r.ID, in.GatewayPaymentID)
			}
		}

		amount := in.Amount
		if amount == 0 {
			amount = p.Amount
		}
		if amount > p.Amount {
			return reject(ErrValidation, "refund amount %d exceeds captured amount %d", amount, p.Amount)
		}

		refund = &mxm.Refund{
			ID:        uuid.NewString(),
			PaymentID: p.ID,
			Receipt:   refundReceipt(p.ID),
			Amount:    amount,
			Currency:  p.Currency,
			Status:    mxm.RefundInitiated,
			Notes:     notes,
		}
		if err := tx.CreateRefund(ctx, refund); err != nil {
			return err
		}
		payment = p
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return payment, refund, nil
}

// recordRefund writes the gateway result: refund row, payment status and order status together.
func (s *Service) recordRefund(ctx context.Context, p *mxm.Payment, refund *mxm.Refund, gr *gateway.Refund) (*mxm.Payment, *mxm.Order, error) {
	next := mxm.PaymentRefunded
	if refund.Amount < p.Amount {
		next = mxm.PaymentPartiallyRefunded
	}
	t, err := p.Transition(next)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: gateway refund %s issued: %w", ErrPartialReconciliation, gr.ID, err)
	}
	// 网关已经退款，之后的失败都需要人工处理
	partial := func(step string, err error) error {
		return fmt.Errorf("%w: gateway refund %s issued but %s failed: %w", ErrPartialReconciliation, gr.ID, step, err)
	}

	status := gr.Status
	if status == "" || status == mxm.RefundInitiated || status == mxm.RefundFailed {
		status = "processed"
	}
	updated := *p
	var order *mxm.Order
	err = s.repo.Transaction(ctx, func(tx dao.Repository) error {
		if err := tx.UpdateRefund(ctx, refund.ID, status, &gr.ID); err != nil {
			return partial("recording the refund", err)
		}
		if err := tx.ApplyPaymentTransition(ctx, &updated, t, dao.PaymentChanges{RefundedAmount: refund.Amount}); err != nil {
			return partial("updating the payment", err)
		}
		if err := tx.UpdateOrderPaymentStatus(ctx, updated.OrderID, mxm.OrderPaymentRefunded, nil); err != nil {
			return partial("updating the order", err)
		}
		o, err := tx.GetOrderByID(ctx, updated.OrderID)
		if err != nil {
			return partial("reloading the order", err)
		}
		order = o
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	refund.Status = status
	refund.GatewayRefundID = &gr.ID
	return &updated, order, nil
}
