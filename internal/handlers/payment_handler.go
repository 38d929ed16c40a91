package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"

	mxm "github.com/Daneel-Li/storefront-pay/internal/models"
	"github.com/Daneel-Li/storefront-pay/internal/services/payment"
	"github.com/Daneel-Li/storefront-pay/pkg/utils"
)

const maxWebhookBody = 1 << 20

// PaymentService is what the HTTP adapters need from the reconciliation service.
type PaymentService interface {
	CreateOrder(ctx context.Context, in payment.CreateOrderInput) (*payment.CreateOrderResult, error)
	Reconcile(ctx context.Context, c payment.Claim) (*payment.Result, error)
	ProcessWebhook(ctx context.Context, d payment.WebhookDelivery) (*payment.WebhookOutcome, error)
	Refund(ctx context.Context, in payment.RefundInput) (*payment.RefundResult, error)
	GetOrder(ctx context.Context, orderID string) (*mxm.Order, error)
	OrderForGatewayOrder(ctx context.Context, gatewayOrderID string) (*mxm.Order, error)
	KeyID() string
}

// PaymentHandler 支付相关接口, every route is a thin adapter over PaymentService
type PaymentHandler struct {
	svc         PaymentService
	callbackURL string // storefront page the browser lands on after the gateway redirect
}

func NewPaymentHandler(svc PaymentService, callbackURL string) *PaymentHandler {
	return &PaymentHandler{svc: svc, callbackURL: callbackURL}
}

type createOrderRequest struct {
	OrderID     string          `json:"orderId"`
	OrderNumber string          `json:"orderNumber"`
	Amount      decimal.Decimal `json:"amount"`
}

type gatewayIntent struct {
	IntentID  string `json:"intentId"`
	Amount    int64  `json:"amount"` // minor units, as the checkout widget expects
	Currency  string `json:"currency"`
	PublicKey string `json:"publicKey"`
	Receipt   string `json:"receipt"`
}

type orderSummary struct {
	ID            string                 `json:"id"`
	OrderNumber   string                 `json:"order_number"`
	PaymentStatus mxm.OrderPaymentStatus `json:"payment_status"`
}

func summarize(o *mxm.Order) *orderSummary {
	if o == nil {
		return nil
	}
	return &orderSummary{ID: o.ID, OrderNumber: o.OrderNumber, PaymentStatus: o.PaymentStatus}
}

// CreateOrder 创建网关支付单
func (h *PaymentHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("%w: invalid request body: %v", payment.ErrValidation, err))
		return
	}
	amount, err := payment.ToMinorUnits(req.Amount)
	if err != nil {
		writeError(w, err)
		return
	}

	res, err := h.svc.CreateOrder(r.Context(), payment.CreateOrderInput{
		OrderID:     req.OrderID,
		OrderNumber: req.OrderNumber,
		Amount:      amount,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	utils.WriteHttpResponse(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"gateway": gatewayIntent{
			IntentID:  res.Payment.GatewayOrderID,
			Amount:    res.Payment.Amount,
			Currency:  res.Payment.Currency,
			PublicKey: h.svc.KeyID(),
			Receipt:   res.Payment.Receipt,
		},
		"payment": res.Payment,
	})
}

type verifyRequest struct {
	OrderID          string `json:"orderId"`
	GatewayOrderID   string `json:"gatewayOrderId"`
	GatewayPaymentID string `json:"gatewayPaymentId"`
	Signature        string `json:"signature"`
}

// Verify 客户端支付完成后同步校验
func (h *PaymentHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("%w: invalid request body: %v", payment.ErrValidation, err))
		return
	}
	if req.OrderID == "" || req.GatewayOrderID == "" || req.GatewayPaymentID == "" || req.Signature == "" {
		writeError(w, fmt.Errorf("%w: orderId, gatewayOrderId, gatewayPaymentId and signature are required", payment.ErrValidation))
		return
	}

	res, err := h.svc.Reconcile(r.Context(), payment.Claim{
		GatewayOrderID:   req.GatewayOrderID,
		GatewayPaymentID: req.GatewayPaymentID,
		Signature:        req.Signature,
		Source:           payment.SourceVerify,
		OrderID:          req.OrderID,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	order, err := h.svc.GetOrder(r.Context(), res.OrderID)
	if err != nil {
		writeError(w, err)
		return
	}

	utils.WriteHttpResponse(w, http.StatusOK, map[string]interface{}{
		"success": res.Paid(),
		"status":  res.Status,
		"payment": res.Payment,
		"order":   summarize(order),
	})
}

// formValue returns the first non-empty form field among names.
func formValue(r *http.Request, names ...string) string {
	for _, n := range names {
		if v := strings.TrimSpace(r.PostFormValue(n)); v != "" {
			return v
		}
	}
	return ""
}

// redirectTarget merges q into the storefront callback URL, keeping any query it already carries.
func (h *PaymentHandler) redirectTarget(q url.Values) string {
	u, err := url.Parse(h.callbackURL)
	if err != nil {
		slog.Error("invalid callback url", "url", h.callbackURL, "error", err)
		return h.callbackURL + "?" + q.Encode()
	}
	merged := u.Query()
	for k, vs := range q {
		merged[k] = vs
	}
	u.RawQuery = merged.Encode()
	return u.String()
}

// Callback is where the gateway sends the browser. It always redirects to the storefront.
func (h *PaymentHandler) Callback(w http.ResponseWriter, r *http.Request) {
	q := url.Values{}
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("payment callback panicked", "panic", rec)
			q.Set("status", "error")
			q.Set("error", payment.KindInternal)
		}
		http.Redirect(w, r, h.redirectTarget(q), http.StatusSeeOther)
	}()

	if err := r.ParseForm(); err != nil {
		q.Set("status", "error")
		q.Set("error", "validation_error")
		return
	}
	claim := payment.Claim{
		GatewayOrderID:   formValue(r, "gatewayOrderId", "razorpay_order_id"),
		GatewayPaymentID: formValue(r, "gatewayPaymentId", "razorpay_payment_id"),
		Signature:        formValue(r, "signature", "razorpay_signature"),
		Source:           payment.SourceCallback,
	}

	// 网关在支付失败时回传 error[...] 字段而不是签名
	if code := formValue(r, "error[code]"); code != "" && claim.Signature == "" {
		slog.Info("gateway reported a failed payment attempt", "code", code,
			"reason", formValue(r, "error[reason]"), "description", formValue(r, "error[description]"))
		q.Set("status", "failed")
		q.Set("error", "payment_failed")
		var meta struct {
			OrderID string `json:"order_id"`
		}
		if err := json.Unmarshal([]byte(formValue(r, "error[metadata]")), &meta); err == nil && meta.OrderID != "" {
			h.addOrder(r.Context(), q, meta.OrderID)
		}
		return
	}

	res, err := h.svc.Reconcile(r.Context(), claim)
	if err != nil {
		kind := payment.Kind(err)
		slog.Warn("payment callback rejected", "error", err, "kind", kind, "gatewayOrderID", claim.GatewayOrderID)
		q.Set("status", "error")
		q.Set("error", kind)
		if kind != "invalid_signature" && kind != "validation_error" {
			h.addOrder(r.Context(), q, claim.GatewayOrderID)
		}
		return
	}

	if res.Paid() {
		q.Set("status", "success")
	} else {
		q.Set("status", "failed")
	}
	q.Set("order_id", res.OrderID)
	q.Set("order_number", res.OrderNumber)
	if res.Order != nil {
		q.Set("payment_status", string(res.Order.PaymentStatus))
	}
}

// addOrder fills order fields on the redirect when the order can still be found.
func (h *PaymentHandler) addOrder(ctx context.Context, q url.Values, gatewayOrderID string) {
	o, err := h.svc.OrderForGatewayOrder(ctx, gatewayOrderID)
	if err != nil {
		return
	}
	q.Set("order_id", o.ID)
	q.Set("order_number", o.OrderNumber)
	q.Set("payment_status", string(o.PaymentStatus))
}

// Webhook answers 200 whatever happens; failures are visible in logs, metrics and the webhook_events table.
func (h *PaymentHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("payment webhook panicked", "panic", rec)
			utils.WriteHttpResponse(w, http.StatusOK, map[string]interface{}{"success": false, "message": "error"})
		}
	}()

	body, err := utils.ReadBody(r, maxWebhookBody)
	if err != nil {
		slog.Error("read webhook body failed", "error", err)
		utils.WriteHttpResponse(w, http.StatusOK, map[string]interface{}{"success": false, "message": "unreadable body"})
		return
	}

	sig := r.Header.Get("X-Signature")
	if sig == "" {
		sig = r.Header.Get("X-Razorpay-Signature")
	}
	eventID := r.Header.Get("X-Event-Id")
	if eventID == "" {
		eventID = r.Header.Get("X-Razorpay-Event-Id")
	}

	out, err := h.svc.ProcessWebhook(r.Context(), payment.WebhookDelivery{Body: body, Signature: sig, EventID: eventID})
	msg := "processed"
	if out != nil && out.Outcome != "" {
		msg = string(out.Outcome)
	}
	utils.WriteHttpResponse(w, http.StatusOK, map[string]interface{}{
		"success": err == nil,
		"message": msg,
	})
}

type refundRequest struct {
	GatewayPaymentID string            `json:"gatewayPaymentId"`
	Amount           *decimal.Decimal  `json:"amount,omitempty"`
	Notes            map[string]string `json:"notes,omitempty"`
}

// Refund 管理员退款
func (h *PaymentHandler) Refund(w http.ResponseWriter, r *http.Request) {
	var req refundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("%w: invalid request body: %v", payment.ErrValidation, err))
		return
	}
	in := payment.RefundInput{GatewayPaymentID: req.GatewayPaymentID, Notes: req.Notes}
	if req.Amount != nil {
		amount, err := payment.ToMinorUnits(*req.Amount)
		if err != nil {
			writeError(w, err)
			return
		}
		in.Amount = amount
	}

	res, err := h.svc.Refund(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	slog.Info("refund issued", "admin", adminFromContext(r.Context()), "gatewayPaymentID", req.GatewayPaymentID,
		"amount", res.Refund.Amount)

	utils.WriteHttpResponse(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"refund":  res.Refund,
		"payment": res.Payment,
		"order":   summarize(res.Order),
	})
}

var kindStatus = map[string]int{
	"validation_error":               http.StatusBadRequest,
	"invalid_signature":              http.StatusBadRequest,
	"payment_not_found":              http.StatusBadRequest,
	"amount_mismatch":                http.StatusBadRequest,
	"order_not_found":                http.StatusNotFound,
	"not_captured":                   http.StatusConflict,
	"already_refunded":               http.StatusConflict,
	"gateway_error":                  http.StatusBadGateway,
	"gateway_unreachable":            http.StatusServiceUnavailable,
	"partial_reconciliation_failure": http.StatusInternalServerError,
}

// writeError maps err to its status code and writes {success:false, error:<kind>, message}.
func writeError(w http.ResponseWriter, err error) {
	kind := payment.Kind(err)
	code, ok := kindStatus[kind]
	if !ok {
		code = http.StatusInternalServerError
	}
	msg := err.Error()
	if kind == payment.KindInternal || errors.Is(err, payment.ErrPartialReconciliation) {
		slog.Error("payment request failed", "error", err, "kind", kind)
		msg = "internal error, please contact support"
	}
	utils.WriteHttpResponse(w, code, map[string]interface{}{
		"success": false,
		"error":   kind,
		"message": msg,
	})
}
