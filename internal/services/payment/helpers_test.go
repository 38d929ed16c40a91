package payment

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Daneel-Li/storefront-pay/internal/dao"
	"github.com/Daneel-Li/storefront-pay/internal/dao/daotest"
	"github.com/Daneel-Li/storefront-pay/internal/events"
	"github.com/Daneel-Li/storefront-pay/internal/gateway"
	"github.com/Daneel-Li/storefront-pay/internal/metrics"
	mxm "github.com/Daneel-Li/storefront-pay/internal/models"
	"github.com/Daneel-Li/storefront-pay/internal/signature"
)

const (
	testKeySecret     = "key_secret"
	testWebhookSecret = "webhook_secret"
)

// MockGateway 模拟支付网关
type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) CreateOrder(ctx context.Context, req gateway.CreateOrderRequest) (*gateway.Order, error) {
	args := m.Called(ctx, req)
	o, _ := args.Get(0).(*gateway.Order)
	return o, args.Error(1)
}

func (m *MockGateway) GetPayment(ctx context.Context, paymentID string) (*gateway.Payment, error) {
	args := m.Called(ctx, paymentID)
	p, _ := args.Get(0).(*gateway.Payment)
	return p, args.Error(1)
}

func (m *MockGateway) Refund(ctx context.Context, paymentID string, req gateway.RefundRequest) (*gateway.Refund, error) {
	args := m.Called(ctx, paymentID, req)
	r, _ := args.Get(0).(*gateway.Refund)
	return r, args.Error(1)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.PaymentEvent
}

func (r *recordingPublisher) Publish(_ context.Context, e events.PaymentEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recordingPublisher) types() []events.Type {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []events.Type
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

type fixture struct {
	svc  *Service
	repo *dao.GormRepository
	gw   *MockGateway
	pub  *recordingPublisher
	m    *metrics.PaymentMetrics
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		repo: daotest.NewRepository(t),
		gw:   &MockGateway{},
		pub:  &recordingPublisher{},
		m:    metrics.NewPaymentMetrics(prometheus.NewRegistry()),
	}
	svc, err := NewService(f.repo, f.gw, f.pub, f.m, Options{
		KeyID:         "rzp_test_key",
		KeySecret:     testKeySecret,
		WebhookSecret: testWebhookSecret,
		Currency:      "INR",
	})
	require.NoError(t, err)
	f.svc = svc
	t.Cleanup(func() { f.gw.AssertExpectations(t) })
	return f
}

// seedCreated inserts a pending prepaid order with one payment in "created".
func (f *fixture) seedCreated(t *testing.T, orderID, gatewayOrderID string, amount int64) *mxm.Payment {
	t.Helper()
	daotest.SeedOrder(t, f.repo, orderID, "N-"+orderID, amount, mxm.RoutePrepaid)
	p := &mxm.Payment{
		ID:             "pay-row-" + orderID,
		OrderID:        orderID,
		GatewayOrderID: gatewayOrderID,
		Receipt:        "rcpt_" + orderID,
		Amount:         amount,
		Currency:       "INR",
		Status:         mxm.PaymentCreated,
	}
	require.NoError(t, f.repo.CreatePayment(context.Background(), p))
	return p
}

func (f *fixture) payment(t *testing.T, id string) *mxm.Payment {
	t.Helper()
	p, err := f.repo.GetPaymentByID(context.Background(), id)
	require.NoError(t, err)
	return p
}

func (f *fixture) order(t *testing.T, id string) *mxm.Order {
	t.Helper()
	o, err := f.repo.GetOrderByID(context.Background(), id)
	require.NoError(t, err)
	return o
}

func claimFor(gatewayOrderID, gatewayPaymentID string) Claim {
	return Claim{
		GatewayOrderID:   gatewayOrderID,
		GatewayPaymentID: gatewayPaymentID,
		Signature:        signature.SignPayment(testKeySecret, gatewayOrderID, gatewayPaymentID),
		Source:           SourceVerify,
	}
}

func capturedPayment(id, gatewayOrderID string, amount int64) *gateway.Payment {
	return &gateway.Payment{ID: id, OrderID: gatewayOrderID, Amount: amount, Currency: "INR", Status: gateway.StatusCaptured, Method: "upi", Captured: true}
}

func webhookDelivery(event, paymentID, gatewayOrderID string, amount int64) WebhookDelivery {
	body := []byte(fmt.Sprintf(`{"entity":"event","event":%q,"contains":["payment"],"payload":{"payment":{"entity":{"id":%q,"order_id":%q,"amount":%d,"currency":"INR","status":"captured","method":"card"}}},"created_at":1700000000}`,
		event, paymentID, gatewayOrderID, amount))
	return WebhookDelivery{
		Body:      body,
		Signature: signature.SignPayload(testWebhookSecret, body),
		EventID:   "evt_" + paymentID,
	}
}
