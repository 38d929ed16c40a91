package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/singleflight"

	"github.com/Daneel-Li/storefront-pay/internal/dao"
	"github.com/Daneel-Li/storefront-pay/internal/events"
	"github.com/Daneel-Li/storefront-pay/internal/gateway"
	mxm "github.com/Daneel-Li/storefront-pay/internal/models"
	"github.com/Daneel-Li/storefront-pay/internal/signature"
)

type Status string

const (
	Confirmed        Status = "confirmed"
	AlreadyConfirmed Status = "already-confirmed"
)

// Claim is what the checkout hands back after payment: both gateway ids and their signature.
type Claim struct {
	GatewayOrderID   string
	GatewayPaymentID string
	Signature        string
	Source           string // verify | callback
	// OrderID, when set, is the storefront order the caller believes it paid for.
	// A claim for a different order is rejected before anything is written.
	OrderID string
}

// Result of a reconciliation that was not rejected.
type Result struct {
	Status      Status
	OrderID     string
	OrderNumber string
	Payment     *mxm.Payment
	Order       *mxm.Order
}

// Paid reports whether the order ended up paid.
func (r *Result) Paid() bool {
	return r.Payment != nil && r.Payment.Status == mxm.PaymentCaptured
}

// Reconcile confirms a client-presented payment against the gateway.
//
// A tampered claim never touches the store. A payment that already left "created" is
// reported as already-confirmed without calling the gateway. A gateway that cannot be
// reached leaves the payment in "created" so any later arrival can finish the job.
func (s *Service) Reconcile(ctx context.Context, c Claim) (res *Result, err error) {
	source := c.Source
	if source == "" {
		source = SourceVerify
	}
	defer func() { s.recordReconciliation(source, res, err) }()

	if c.GatewayOrderID == "" || c.GatewayPaymentID == "" || c.Signature == "" {
		return nil, reject(ErrValidation, "gatewayOrderId, gatewayPaymentId and signature are required")
	}
	if !signature.VerifyPayment(s.opts.KeySecret, c.GatewayOrderID, c.GatewayPaymentID, c.Signature) {
		return nil, reject(ErrInvalidSignature, "gateway order %s payment %s", c.GatewayOrderID, c.GatewayPaymentID)
	}

	p, err := s.repo.GetPaymentByGatewayOrderID(ctx, c.GatewayOrderID)
	if err != nil {
		if errors.Is(err, dao.ErrNotFound) {
			return nil, reject(ErrPaymentNotFound, "gateway order %s", c.GatewayOrderID)
		}
		return nil, err
	}
	if c.OrderID != "" && c.OrderID != p.OrderID {
		return nil, reject(ErrValidation, "gateway order %s does not belong to order %s", c.GatewayOrderID, c.OrderID)
	}
	if p.Status != mxm.PaymentCreated {
		return s.alreadyConfirmed(ctx, p)
	}

	gp, err := s.fetchPayment(ctx, c.GatewayOrderID, c.GatewayPaymentID)
	if err != nil {
		return nil, err
	}
	if gp.OrderID != "" && gp.OrderID != p.GatewayOrderID {
		return nil, reject(ErrValidation, "gateway payment %s belongs to gateway order %s", gp.ID, gp.OrderID)
	}
	if gp.Amount != 0 && gp.Amount != p.Amount {
		return nil, reject(ErrAmountMismatch, "gateway payment %s amount %d, expected %d", gp.ID, gp.Amount, p.Amount)
	}

	next := mxm.PaymentFailed
	if gp.IsCaptured() {
		next = mxm.PaymentCaptured
	}
	return s.settle(ctx, p, next, dao.PaymentChanges{
		GatewayPaymentID: c.GatewayPaymentID,
		Method:           gp.Method,
		Signature:        c.Signature,
	}, source)
}

// fetchPayment collapses concurrent lookups of the same verified claim into one gateway call.
// The shared call does not inherit any caller's cancellation, only the client timeout.
// Each caller stops waiting when its own context ends.
func (s *Service) fetchPayment(ctx context.Context, gatewayOrderID, gatewayPaymentID string) (*gateway.Payment, error) {
	shared := context.WithoutCancel(ctx)
	ch := s.group.DoChan(gatewayOrderID+"|"+gatewayPaymentID, func() (interface{}, error) {
		return s.gateway.GetPayment(shared, gatewayPaymentID)
	})

	var r singleflight.Result
	select {
	case r = <-ch:
	case <-ctx.Done():
		return nil, gatewayErr("get payment "+gatewayPaymentID, ctx.Err())
	}
	if r.Err != nil {
		return nil, gatewayErr("get payment "+gatewayPaymentID, r.Err)
	}
	if r.Shared {
		slog.Debug("gateway payment lookup shared", "gatewayPaymentID", gatewayPaymentID)
	}
	gp, _ := r.Val.(*gateway.Payment)
	if gp == nil {
		return nil, gatewayErr("get payment "+gatewayPaymentID, errors.New("empty response"))
	}
	return gp, nil
}

// settle moves p out of "created" and the parent order along with it, in one transaction.
// Losing the race to another path is not an error: the winner's state is reported back.
func (s *Service) settle(ctx context.Context, p *mxm.Payment, next mxm.PaymentStatus, changes dao.PaymentChanges, source string) (*Result, error) {
	t, err := p.Transition(next)
	if err != nil {
		return s.alreadyConfirmed(ctx, p)
	}
	if next == mxm.PaymentCaptured && changes.CapturedAt == nil {
		now := s.now()
		changes.CapturedAt = &now
	}

	updated := *p
	var order *mxm.Order
	duplicate := false
	err = s.repo.Transaction(ctx, func(tx dao.Repository) error {
		if err := tx.ApplyPaymentTransition(ctx, &updated, t, changes); err != nil {
			return err
		}
		o, err := tx.GetOrderByID(ctx, updated.OrderID)
		if err != nil {
			return fmt.Errorf("%w: payment %s is %s but order %s could not be loaded: %w",
				ErrPartialReconciliation, updated.ID, next, updated.OrderID, err)
		}
		if o.PaymentID != nil && *o.PaymentID != updated.ID &&
			(o.PaymentStatus == mxm.OrderPaymentPaid || o.PaymentStatus == mxm.OrderPaymentRefunded) {
			// 订单已由另一笔支付完成，不回退订单状态
			slog.Warn("order already settled by another payment", "orderID", o.ID,
				"orderPaymentID", *o.PaymentID, "paymentID", updated.ID, "paymentStatus", next)
			order = o
			duplicate = next == mxm.PaymentCaptured
			return nil
		}
		status := mxm.OrderStatusFor(next)
		if err := tx.UpdateOrderPaymentStatus(ctx, o.ID, status, &updated.ID); err != nil {
			return fmt.Errorf("%w: payment %s is %s but order %s update failed: %w",
				ErrPartialReconciliation, updated.ID, next, o.ID, err)
		}
		o.PaymentStatus = status
		o.PaymentID = &updated.ID
		order = o
		return nil
	})
	if err != nil {
		if errors.Is(err, dao.ErrStaleTransition) {
			slog.Debug("lost reconciliation race", "paymentID", p.ID, "source", source)
			current, rerr := s.repo.GetPaymentByID(ctx, p.ID)
			if rerr != nil {
				return nil, fmt.Errorf("reload payment %s: %w", p.ID, rerr)
			}
			return s.alreadyConfirmed(ctx, current)
		}
		if errors.Is(err, ErrPartialReconciliation) {
			slog.Error("partial reconciliation, operator attention required", "error", err,
				"paymentID", p.ID, "orderID", p.OrderID, "source", source)
			return nil, err
		}
		return nil, fmt.Errorf("settle payment %s: %w", p.ID, err)
	}

	slog.Info("payment reconciled", "paymentID", updated.ID, "orderID", updated.OrderID,
		"status", updated.Status, "source", source)
	typ := events.PaymentConfirmed
	switch {
	case updated.Status == mxm.PaymentFailed:
		typ = events.PaymentFailed
	case duplicate:
		// 顾客被扣了两次钱，这笔需要退款
		slog.Error("duplicate capture on settled order, refund required", "paymentID", updated.ID,
			"orderID", order.ID, "orderPaymentID", *order.PaymentID, "amount", updated.Amount, "source", source)
		s.metrics.RecordDuplicateCapture(source)
		typ = events.PaymentDuplicateCaptured
	}
	s.publish(ctx, typ, source, &updated, order)
	*p = updated
	return &Result{
		Status:      Confirmed,
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		Payment:     &updated,
		Order:       order,
	}, nil
}

func (s *Service) alreadyConfirmed(ctx context.Context, p *mxm.Payment) (*Result, error) {
	order, err := s.GetOrder(ctx, p.OrderID)
	if err != nil {
		return nil, err
	}
	return &Result{
		Status:      AlreadyConfirmed,
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		Payment:     p,
		Order:       order,
	}, nil
}

func (s *Service) recordReconciliation(source string, res *Result, err error) {
	switch {
	case err != nil:
		s.metrics.RecordReconciliation(source, Kind(err))
	case res.Status == AlreadyConfirmed:
		s.metrics.RecordReconciliation(source, "already_confirmed")
	default:
		s.metrics.RecordReconciliation(source, string(res.Payment.Status))
	}
}
