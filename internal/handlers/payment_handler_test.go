package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	mxm "github.com/Daneel-Li/storefront-pay/internal/models"
	"github.com/Daneel-Li/storefront-pay/internal/services"
	"github.com/Daneel-Li/storefront-pay/internal/services/payment"
)

// MockPaymentService mock payment service
type MockPaymentService struct {
	mock.Mock
}

func (m *MockPaymentService) CreateOrder(ctx context.Context, in payment.CreateOrderInput) (*payment.CreateOrderResult, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.CreateOrderResult), args.Error(1)
}

func (m *MockPaymentService) Reconcile(ctx context.Context, c payment.Claim) (*payment.Result, error) {
	args := m.Called(ctx, c)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Result), args.Error(1)
}

func (m *MockPaymentService) ProcessWebhook(ctx context.Context, d payment.WebhookDelivery) (*payment.WebhookOutcome, error) {
	args := m.Called(ctx, d)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.WebhookOutcome), args.Error(1)
}

func (m *MockPaymentService) Refund(ctx context.Context, in payment.RefundInput) (*payment.RefundResult, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.RefundResult), args.Error(1)
}

func (m *MockPaymentService) GetOrder(ctx context.Context, orderID string) (*mxm.Order, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*mxm.Order), args.Error(1)
}

func (m *MockPaymentService) OrderForGatewayOrder(ctx context.Context, gatewayOrderID string) (*mxm.Order, error) {
	args := m.Called(ctx, gatewayOrderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*mxm.Order), args.Error(1)
}

func (m *MockPaymentService) KeyID() string {
	return "rzp_test_key"
}

const callbackURL = "https://shop.example.com/payment-callback"

var testJWTKey = []byte("handler-test-key")

func newTestRouter(t *testing.T, svc *MockPaymentService) http.Handler {
	t.Helper()
	return NewRouter(NewPaymentHandler(svc, callbackURL), RouterOptions{
		APIKey:   "app-key",
		JWT:      services.NewJWTService(testJWTKey, "storefront-pay"),
		Gatherer: prometheus.NewRegistry(),
	})
}

func doJSON(t *testing.T, h http.Handler, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("appKey", "app-key")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func doForm(h http.Handler, path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out), rr.Body.String())
	return out
}

func redirectQuery(t *testing.T, rr *httptest.ResponseRecorder) url.Values {
	t.Helper()
	require.Equal(t, http.StatusSeeOther, rr.Code)
	loc, err := url.Parse(rr.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "/payment-callback", loc.Path)
	return loc.Query()
}

func gwID(s string) *string { return &s }

func paidResult(status payment.Status) *payment.Result {
	return &payment.Result{
		Status:      status,
		OrderID:     "ord-1",
		OrderNumber: "SO-1001",
		Payment: &mxm.Payment{
			ID: "pay-1", OrderID: "ord-1", GatewayOrderID: "order_A", GatewayPaymentID: gwID("pay_P"),
			Amount: 49900, Currency: "INR", Status: mxm.PaymentCaptured,
		},
		Order: &mxm.Order{ID: "ord-1", OrderNumber: "SO-1001", PaymentStatus: mxm.OrderPaymentPaid},
	}
}

func TestCreateOrder(t *testing.T) {
	svc := new(MockPaymentService)
	h := newTestRouter(t, svc)

	svc.On("CreateOrder", mock.Anything, payment.CreateOrderInput{OrderID: "ord-1", OrderNumber: "SO-1001", Amount: 49900}).
		Return(&payment.CreateOrderResult{
			Payment: &mxm.Payment{ID: "pay-1", OrderID: "ord-1", GatewayOrderID: "order_A", Receipt: "rcpt_x",
				Amount: 49900, Currency: "INR", Status: mxm.PaymentCreated},
			Order: &mxm.Order{ID: "ord-1"},
		}, nil)

	rr := doJSON(t, h, "/api/v1/payments/create-order",
		map[string]interface{}{"orderId": "ord-1", "orderNumber": "SO-1001", "amount": "499.00"}, nil)

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	body := decodeBody(t, rr)
	assert.Equal(t, true, body["success"])
	gw := body["gateway"].(map[string]interface{})
	assert.Equal(t, "order_A", gw["intentId"])
	assert.Equal(t, float64(49900), gw["amount"])
	assert.Equal(t, "INR", gw["currency"])
	assert.Equal(t, "rzp_test_key", gw["publicKey"])
	assert.Equal(t, "rcpt_x", gw["receipt"])
	svc.AssertExpectations(t)
}

func TestCreateOrder_Errors(t *testing.T) {
	tests := []struct {
		name   string
		body   interface{}
		err    error
		status int
		kind   string
	}{
		{"fractional paise", map[string]interface{}{"orderId": "ord-1", "orderNumber": "SO-1", "amount": "1.005"}, nil, http.StatusBadRequest, "validation_error"},
		{"order missing", map[string]interface{}{"orderId": "ord-x", "orderNumber": "SO-1", "amount": "10"}, fmt.Errorf("%w: ord-x", payment.ErrOrderNotFound), http.StatusNotFound, "order_not_found"},
		{"gateway down", map[string]interface{}{"orderId": "ord-1", "orderNumber": "SO-1", "amount": "10"}, fmt.Errorf("%w: timeout", payment.ErrGatewayUnreachable), http.StatusServiceUnavailable, "gateway_unreachable"},
		{"gateway rejected", map[string]interface{}{"orderId": "ord-1", "orderNumber": "SO-1", "amount": "10"}, fmt.Errorf("%w: BAD_REQUEST", payment.ErrGatewayRejected), http.StatusBadGateway, "gateway_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockPaymentService)
			if tt.err != nil {
				svc.On("CreateOrder", mock.Anything, mock.Anything).Return(nil, tt.err)
			}
			rr := doJSON(t, newTestRouter(t, svc), "/api/v1/payments/create-order", tt.body, nil)
			assert.Equal(t, tt.status, rr.Code)
			body := decodeBody(t, rr)
			assert.Equal(t, false, body["success"])
			assert.Equal(t, tt.kind, body["error"])
		})
	}
}

func TestAPIKeyRequired(t *testing.T) {
	svc := new(MockPaymentService)
	rr := doJSON(t, newTestRouter(t, svc), "/api/v1/payments/verify", map[string]string{}, map[string]string{"appKey": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	svc.AssertNotCalled(t, "Reconcile", mock.Anything, mock.Anything)
}

func TestVerify_Confirmed(t *testing.T) {
	svc := new(MockPaymentService)
	claim := payment.Claim{GatewayOrderID: "order_A", GatewayPaymentID: "pay_P", Signature: "sig", Source: payment.SourceVerify, OrderID: "ord-1"}
	svc.On("Reconcile", mock.Anything, claim).Return(paidResult(payment.Confirmed), nil)
	svc.On("GetOrder", mock.Anything, "ord-1").Return(&mxm.Order{ID: "ord-1", OrderNumber: "SO-1001", PaymentStatus: mxm.OrderPaymentPaid}, nil)

	rr := doJSON(t, newTestRouter(t, svc), "/api/v1/payments/verify", map[string]string{
		"orderId": "ord-1", "gatewayOrderId": "order_A", "gatewayPaymentId": "pay_P", "signature": "sig",
	}, nil)

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	body := decodeBody(t, rr)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "confirmed", body["status"])
	order := body["order"].(map[string]interface{})
	assert.Equal(t, "SO-1001", order["order_number"])
	assert.Equal(t, "paid", order["payment_status"])
	svc.AssertExpectations(t)
}

func TestVerify_AlreadyConfirmed(t *testing.T) {
	svc := new(MockPaymentService)
	svc.On("Reconcile", mock.Anything, mock.Anything).Return(paidResult(payment.AlreadyConfirmed), nil)
	svc.On("GetOrder", mock.Anything, "ord-1").Return(&mxm.Order{ID: "ord-1", PaymentStatus: mxm.OrderPaymentPaid}, nil)

	rr := doJSON(t, newTestRouter(t, svc), "/api/v1/payments/verify", map[string]string{
		"orderId": "ord-1", "gatewayOrderId": "order_A", "gatewayPaymentId": "pay_P", "signature": "sig",
	}, nil)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "already-confirmed", decodeBody(t, rr)["status"])
}

func TestVerify_Errors(t *testing.T) {
	full := map[string]string{"orderId": "ord-1", "gatewayOrderId": "order_A", "gatewayPaymentId": "pay_P", "signature": "sig"}
	tests := []struct {
		name   string
		body   map[string]string
		err    error
		status int
		kind   string
	}{
		{"missing signature", map[string]string{"orderId": "ord-1", "gatewayOrderId": "order_A", "gatewayPaymentId": "pay_P"}, nil, http.StatusBadRequest, "validation_error"},
		{"bad signature", full, payment.ErrInvalidSignature, http.StatusBadRequest, "invalid_signature"},
		{"unknown intent", full, payment.ErrPaymentNotFound, http.StatusBadRequest, "payment_not_found"},
		{"amount mismatch", full, payment.ErrAmountMismatch, http.StatusBadRequest, "amount_mismatch"},
		{"gateway down", full, payment.ErrGatewayUnreachable, http.StatusServiceUnavailable, "gateway_unreachable"},
		{"partial", full, fmt.Errorf("%w: update order: boom", payment.ErrPartialReconciliation), http.StatusInternalServerError, "partial_reconciliation_failure"},
		{"unexpected", full, errors.New("db exploded"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockPaymentService)
			if tt.err != nil {
				svc.On("Reconcile", mock.Anything, mock.Anything).Return(nil, tt.err)
			}
			rr := doJSON(t, newTestRouter(t, svc), "/api/v1/payments/verify", tt.body, nil)
			assert.Equal(t, tt.status, rr.Code)
			body := decodeBody(t, rr)
			assert.Equal(t, tt.kind, body["error"])
			assert.NotContains(t, body["message"], "db exploded")
		})
	}
}

func TestVerify_OrderMismatch(t *testing.T) {
	svc := new(MockPaymentService)
	claim := payment.Claim{GatewayOrderID: "order_A", GatewayPaymentID: "pay_P", Signature: "sig", Source: payment.SourceVerify, OrderID: "ord-other"}
	svc.On("Reconcile", mock.Anything, claim).
		Return(nil, fmt.Errorf("%w: gateway order order_A does not belong to order ord-other", payment.ErrValidation))

	rr := doJSON(t, newTestRouter(t, svc), "/api/v1/payments/verify", map[string]string{
		"orderId": "ord-other", "gatewayOrderId": "order_A", "gatewayPaymentId": "pay_P", "signature": "sig",
	}, nil)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "validation_error", decodeBody(t, rr)["error"])
	svc.AssertExpectations(t)
	svc.AssertNotCalled(t, "GetOrder", mock.Anything, mock.Anything)
}

func TestCallback_Success(t *testing.T) {
	svc := new(MockPaymentService)
	claim := payment.Claim{GatewayOrderID: "order_A", GatewayPaymentID: "pay_P", Signature: "sig", Source: payment.SourceCallback}
	svc.On("Reconcile", mock.Anything, claim).Return(paidResult(payment.Confirmed), nil)

	rr := doForm(newTestRouter(t, svc), "/api/v1/payments/callback", url.Values{
		"razorpay_order_id":   {"order_A"},
		"razorpay_payment_id": {"pay_P"},
		"razorpay_signature":  {"sig"},
	})

	q := redirectQuery(t, rr)
	assert.Equal(t, "success", q.Get("status"))
	assert.Equal(t, "ord-1", q.Get("order_id"))
	assert.Equal(t, "SO-1001", q.Get("order_number"))
	assert.Equal(t, "paid", q.Get("payment_status"))
	svc.AssertExpectations(t)
}

func TestCallback_KeepsStorefrontQuery(t *testing.T) {
	svc := new(MockPaymentService)
	svc.On("Reconcile", mock.Anything, mock.Anything).Return(paidResult(payment.Confirmed), nil)
	h := NewRouter(NewPaymentHandler(svc, "https://shop.example/checkout/done?lang=en"), RouterOptions{
		APIKey:   "app-key",
		JWT:      services.NewJWTService(testJWTKey, "storefront-pay"),
		Gatherer: prometheus.NewRegistry(),
	})

	rr := doForm(h, "/api/v1/payments/callback", url.Values{
		"gatewayOrderId": {"order_A"}, "gatewayPaymentId": {"pay_P"}, "signature": {"sig"},
	})

	require.Equal(t, http.StatusSeeOther, rr.Code)
	loc, err := url.Parse(rr.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "shop.example", loc.Host)
	assert.Equal(t, "/checkout/done", loc.Path)
	q := loc.Query()
	assert.Equal(t, "en", q.Get("lang"))
	assert.Equal(t, "success", q.Get("status"))
	assert.Equal(t, "ord-1", q.Get("order_id"))
	assert.Len(t, q["status"], 1)
}

func TestCallback_InvalidSignature(t *testing.T) {
	svc := new(MockPaymentService)
	svc.On("Reconcile", mock.Anything, mock.Anything).Return(nil, payment.ErrInvalidSignature)

	rr := doForm(newTestRouter(t, svc), "/api/v1/payments/callback", url.Values{
		"gatewayOrderId":   {"order_A"},
		"gatewayPaymentId": {"pay_P"},
		"signature":        {"forged"},
	})

	q := redirectQuery(t, rr)
	assert.Equal(t, "error", q.Get("status"))
	assert.Equal(t, "invalid_signature", q.Get("error"))
	assert.Empty(t, q.Get("order_id"))
	svc.AssertNotCalled(t, "OrderForGatewayOrder", mock.Anything, mock.Anything)
}

func TestCallback_GatewayDownKeepsOrderContext(t *testing.T) {
	svc := new(MockPaymentService)
	svc.On("Reconcile", mock.Anything, mock.Anything).Return(nil, payment.ErrGatewayUnreachable)
	svc.On("OrderForGatewayOrder", mock.Anything, "order_A").
		Return(&mxm.Order{ID: "ord-1", OrderNumber: "SO-1001", PaymentStatus: mxm.OrderPaymentPending}, nil)

	rr := doForm(newTestRouter(t, svc), "/api/v1/payments/callback", url.Values{
		"gatewayOrderId": {"order_A"}, "gatewayPaymentId": {"pay_P"}, "signature": {"sig"},
	})

	q := redirectQuery(t, rr)
	assert.Equal(t, "error", q.Get("status"))
	assert.Equal(t, "gateway_unreachable", q.Get("error"))
	assert.Equal(t, "ord-1", q.Get("order_id"))
	assert.Equal(t, "pending", q.Get("payment_status"))
}

func TestCallback_GatewayReportedFailure(t *testing.T) {
	svc := new(MockPaymentService)
	svc.On("OrderForGatewayOrder", mock.Anything, "order_A").
		Return(&mxm.Order{ID: "ord-1", OrderNumber: "SO-1001", PaymentStatus: mxm.OrderPaymentPending}, nil)

	rr := doForm(newTestRouter(t, svc), "/api/v1/payments/callback", url.Values{
		"error[code]":        {"BAD_REQUEST_ERROR"},
		"error[description]": {"Payment failed"},
		"error[metadata]":    {`{"payment_id":"pay_P","order_id":"order_A"}`},
	})

	q := redirectQuery(t, rr)
	assert.Equal(t, "failed", q.Get("status"))
	assert.Equal(t, "ord-1", q.Get("order_id"))
	svc.AssertNotCalled(t, "Reconcile", mock.Anything, mock.Anything)
}

func TestCallback_Panic(t *testing.T) {
	svc := new(MockPaymentService)
	svc.On("Reconcile", mock.Anything, mock.Anything).Run(func(mock.Arguments) { panic("boom") })

	rr := doForm(newTestRouter(t, svc), "/api/v1/payments/callback", url.Values{
		"gatewayOrderId": {"order_A"}, "gatewayPaymentId": {"pay_P"}, "signature": {"sig"},
	})

	q := redirectQuery(t, rr)
	assert.Equal(t, "error", q.Get("status"))
	assert.Equal(t, "internal_error", q.Get("error"))
}

func TestWebhook_AlwaysOK(t *testing.T) {
	body := []byte(`{"event":"payment.captured"}`)
	tests := []struct {
		name    string
		out     *payment.WebhookOutcome
		err     error
		success bool
		message string
	}{
		{"processed", &payment.WebhookOutcome{Outcome: mxm.WebhookProcessed}, nil, true, "processed"},
		{"rejected", &payment.WebhookOutcome{Outcome: mxm.WebhookRejected}, payment.ErrInvalidSignature, false, "rejected"},
		{"store error", &payment.WebhookOutcome{Outcome: mxm.WebhookError}, errors.New("db down"), false, "error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockPaymentService)
			svc.On("ProcessWebhook", mock.Anything, payment.WebhookDelivery{Body: body, Signature: "sig", EventID: "evt_1"}).
				Return(tt.out, tt.err)

			req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/webhook", bytes.NewReader(body))
			req.Header.Set("X-Razorpay-Signature", "sig")
			req.Header.Set("X-Event-Id", "evt_1")
			rr := httptest.NewRecorder()
			newTestRouter(t, svc).ServeHTTP(rr, req)

			assert.Equal(t, http.StatusOK, rr.Code)
			resp := decodeBody(t, rr)
			assert.Equal(t, tt.success, resp["success"])
			assert.Equal(t, tt.message, resp["message"])
			svc.AssertExpectations(t)
		})
	}
}

func TestWebhook_Panic(t *testing.T) {
	svc := new(MockPaymentService)
	svc.On("ProcessWebhook", mock.Anything, mock.Anything).Run(func(mock.Arguments) { panic("boom") })

	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/webhook", strings.NewReader(`{}`))
	rr := httptest.NewRecorder()
	newTestRouter(t, svc).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, false, decodeBody(t, rr)["success"])
}

func adminToken(t *testing.T, admin bool) string {
	t.Helper()
	tok, err := services.NewJWTService(testJWTKey, "storefront-pay").GenerateToken("ops@shop", admin, time.Hour)
	require.NoError(t, err)
	return "Bearer " + tok
}

func TestRefund(t *testing.T) {
	svc := new(MockPaymentService)
	svc.On("Refund", mock.Anything, payment.RefundInput{GatewayPaymentID: "pay_P", Amount: 10000, Notes: map[string]string{"reason": "damaged"}}).
		Return(&payment.RefundResult{
			Refund:  &mxm.Refund{ID: "ref-1", GatewayRefundID: gwID("rfnd_1"), Amount: 10000},
			Payment: &mxm.Payment{ID: "pay-1", Status: mxm.PaymentPartiallyRefunded, RefundedAmount: 10000},
			Order:   &mxm.Order{ID: "ord-1", OrderNumber: "SO-1001", PaymentStatus: mxm.OrderPaymentRefunded},
		}, nil)

	rr := doJSON(t, newTestRouter(t, svc), "/api/v1/payments/refund", map[string]interface{}{
		"gatewayPaymentId": "pay_P", "amount": "100.00", "notes": map[string]string{"reason": "damaged"},
	}, map[string]string{"Authorization": adminToken(t, true)})

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	body := decodeBody(t, rr)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "refunded", body["order"].(map[string]interface{})["payment_status"])
	svc.AssertExpectations(t)
}

func TestRefund_Errors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		kind   string
	}{
		{"not captured", payment.ErrNotCaptured, http.StatusConflict, "not_captured"},
		{"already refunded", payment.ErrAlreadyRefunded, http.StatusConflict, "already_refunded"},
		{"unknown payment", payment.ErrPaymentNotFound, http.StatusBadRequest, "payment_not_found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockPaymentService)
			svc.On("Refund", mock.Anything, mock.Anything).Return(nil, tt.err)
			rr := doJSON(t, newTestRouter(t, svc), "/api/v1/payments/refund",
				map[string]interface{}{"gatewayPaymentId": "pay_P"}, map[string]string{"Authorization": adminToken(t, true)})
			assert.Equal(t, tt.status, rr.Code)
			assert.Equal(t, tt.kind, decodeBody(t, rr)["error"])
		})
	}
}

func TestRefund_RequiresAdmin(t *testing.T) {
	svc := new(MockPaymentService)
	h := newTestRouter(t, svc)

	rr := doJSON(t, h, "/api/v1/payments/refund", map[string]interface{}{"gatewayPaymentId": "pay_P"}, nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = doJSON(t, h, "/api/v1/payments/refund", map[string]interface{}{"gatewayPaymentId": "pay_P"},
		map[string]string{"Authorization": adminToken(t, false)})
	assert.Equal(t, http.StatusForbidden, rr.Code)

	svc.AssertNotCalled(t, "Refund", mock.Anything, mock.Anything)
}

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

func TestHealthz(t *testing.T) {
	for _, tt := range []struct {
		err  error
		code int
	}{{nil, http.StatusOK}, {errors.New("down"), http.StatusServiceUnavailable}} {
		h := NewRouter(NewPaymentHandler(new(MockPaymentService), callbackURL), RouterOptions{Health: fakePinger{tt.err}})
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		assert.Equal(t, tt.code, rr.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	rr := httptest.NewRecorder()
	newTestRouter(t, new(MockPaymentService)).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
}
