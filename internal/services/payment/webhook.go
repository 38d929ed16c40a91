package payment

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/Daneel-Li/storefront-pay/internal/dao"
	"github.com/Daneel-Li/storefront-pay/internal/gateway"
	mxm "github.com/Daneel-Li/storefront-pay/internal/models"
	"github.com/Daneel-Li/storefront-pay/internal/signature"
)

// GatewayEvent is an authenticated statement from the gateway about one payment.
type GatewayEvent struct {
	Event            string // payment.captured | payment.failed
	GatewayPaymentID string
	GatewayOrderID   string
	Amount           int64
	Method           string
}

// ApplyGatewayEvent feeds a webhook event into the same state machine as Reconcile.
// The event is already authenticated, so the gateway is not asked again.
func (s *Service) ApplyGatewayEvent(ctx context.Context, ev GatewayEvent) (res *Result, err error) {
	defer func() { s.recordReconciliation(SourceWebhook, res, err) }()

	var next mxm.PaymentStatus
	switch ev.Event {
	case gateway.EventPaymentCaptured:
		next = mxm.PaymentCaptured
	case gateway.EventPaymentFailed:
		next = mxm.PaymentFailed
	default:
		return nil, reject(ErrValidation, "unsupported event %q", ev.Event)
	}
	if ev.GatewayPaymentID == "" {
		return nil, reject(ErrValidation, "event %s carries no payment id", ev.Event)
	}

	p, err := s.findForEvent(ctx, ev)
	if err != nil {
		return nil, err
	}
	if p.Status != mxm.PaymentCreated {
		return s.alreadyConfirmed(ctx, p)
	}
	if ev.Amount != 0 && ev.Amount != p.Amount {
		return nil, reject(ErrAmountMismatch, "webhook payment %s amount %d, expected %d", ev.GatewayPaymentID, ev.Amount, p.Amount)
	}
	return s.settle(ctx, p, next, dao.PaymentChanges{
		GatewayPaymentID: ev.GatewayPaymentID,
		Method:           ev.Method,
	}, SourceWebhook)
}

// findForEvent looks the payment up by gateway payment id. A capture can beat the browser
// redirect, in which case the payment id is not recorded yet and the gateway order id is used.
// A failed attempt is never matched that way: the customer may still retry on the same intent.
func (s *Service) findForEvent(ctx context.Context, ev GatewayEvent) (*mxm.Payment, error) {
	p, err := s.repo.GetPaymentByGatewayPaymentID(ctx, ev.GatewayPaymentID)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, dao.ErrNotFound) {
		return nil, err
	}
	if ev.Event != gateway.EventPaymentCaptured || ev.GatewayOrderID == "" {
		return nil, reject(ErrPaymentNotFound, "gateway payment %s", ev.GatewayPaymentID)
	}
	p, err = s.repo.GetPaymentByGatewayOrderID(ctx, ev.GatewayOrderID)
	if err != nil {
		if errors.Is(err, dao.ErrNotFound) {
			return nil, reject(ErrPaymentNotFound, "gateway payment %s (order %s)", ev.GatewayPaymentID, ev.GatewayOrderID)
		}
		return nil, err
	}
	return p, nil
}

type WebhookDelivery struct {
	Body      []byte
	Signature string // X-Signature
	EventID   string // X-Event-Id, optional
}

type WebhookOutcome struct {
	Outcome          mxm.WebhookOutcome
	Event            string
	GatewayPaymentID string
	Result           *Result
}

// ProcessWebhook authenticates and applies one delivery and records it in the audit table.
// The returned error is for logs only; the HTTP answer is 200 either way.
func (s *Service) ProcessWebhook(ctx context.Context, d WebhookDelivery) (*WebhookOutcome, error) {
	out := &WebhookOutcome{}
	rec := &mxm.WebhookEvent{
		ID:      uuid.NewString(),
		EventID: d.EventID,
	}
	if json.Valid(d.Body) {
		rec.Payload = d.Body
	}

	err := s.processWebhook(ctx, d, rec, out)
	rec.Outcome = out.Outcome
	if err != nil {
		rec.ErrorKind = Kind(err)
	}
	if rerr := s.repo.CreateWebhookEvent(ctx, rec); rerr != nil {
		slog.Error("record webhook event failed", "error", rerr, "eventID", d.EventID)
	}
	s.metrics.RecordWebhook(out.Event, string(out.Outcome))

	logArgs := []any{"eventID", d.EventID, "event", out.Event, "gatewayPaymentID", out.GatewayPaymentID, "outcome", out.Outcome}
	switch out.Outcome {
	case mxm.WebhookProcessed, mxm.WebhookDuplicate:
		slog.Info("webhook handled", logArgs...)
	case mxm.WebhookIgnored:
		slog.Debug("webhook ignored", append(logArgs, "reason", errString(err))...)
	default:
		slog.Error("webhook failed", append(logArgs, "error", err, "kind", Kind(err))...)
	}
	return out, err
}

func (s *Service) processWebhook(ctx context.Context, d WebhookDelivery, rec *mxm.WebhookEvent, out *WebhookOutcome) error {
	if !signature.VerifyPayload(s.opts.WebhookSecret, d.Body, d.Signature) {
		out.Outcome = mxm.WebhookRejected
		return reject(ErrInvalidSignature, "webhook payload signature")
	}
	rec.SignatureValid = true

	ev, err := gateway.ParseWebhookEvent(d.Body)
	if err != nil {
		out.Outcome = mxm.WebhookRejected
		return reject(ErrValidation, "%v", err)
	}
	out.Event = ev.Event
	rec.Event = ev.Event

	if ev.Event != gateway.EventPaymentCaptured && ev.Event != gateway.EventPaymentFailed {
		out.Outcome = mxm.WebhookIgnored
		return nil
	}
	pe := ev.PaymentEntity()
	if pe == nil || pe.ID == "" {
		out.Outcome = mxm.WebhookRejected
		return reject(ErrValidation, "event %s carries no payment entity", ev.Event)
	}
	out.GatewayPaymentID = pe.ID
	rec.GatewayPaymentID = pe.ID

	res, err := s.ApplyGatewayEvent(ctx, GatewayEvent{
		Event:            ev.Event,
		GatewayPaymentID: pe.ID,
		GatewayOrderID:   pe.OrderID,
		Amount:           pe.Amount,
		Method:           pe.Method,
	})
	out.Result = res
	switch {
	case err == nil && res.Status == Confirmed:
		out.Outcome = mxm.WebhookProcessed
	case err == nil:
		out.Outcome = mxm.WebhookDuplicate
	case ev.Event == gateway.EventPaymentFailed && errors.Is(err, ErrPaymentNotFound):
		// failed attempt on an intent nobody has confirmed yet
		out.Outcome = mxm.WebhookIgnored
	default:
		out.Outcome = mxm.WebhookError
	}
	return err
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
