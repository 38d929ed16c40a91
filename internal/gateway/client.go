// Package gateway is the REST client of the payment gateway.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bytedance/gopkg/util/gopool"
	"golang.org/x/time/rate"
)

// Client 支付网关接口
type Client interface {
	// CreateOrder mints a payment intent for amount minor units.
	CreateOrder(ctx context.Context, req CreateOrderRequest) (*Order, error)
	// GetPayment fetches the authoritative payment status.
	GetPayment(ctx context.Context, paymentID string) (*Payment, error)
	// Refund refunds a captured payment, fully when req.Amount is zero.
	Refund(ctx context.Context, paymentID string, req RefundRequest) (*Refund, error)
}

// Observer receives one call per outbound request.
type Observer interface {
	ObserveGatewayRequest(operation, result string, elapsed time.Duration)
}

type Options struct {
	BaseURL        string
	KeyID          string
	KeySecret      string
	Timeout        time.Duration
	MaxQPS         int
	MaxConcurrency int32
	HTTPClient     *http.Client
	Observer       Observer
}

// HTTPClient talks to the gateway over HTTPS with basic auth (key id / key secret).
type HTTPClient struct {
	baseURL   string
	keyID     string
	keySecret string
	timeout   time.Duration
	http      *http.Client
	limiter   *rate.Limiter
	pool      gopool.Pool
	observer  Observer
}

var _ Client = (*HTTPClient)(nil)

func NewHTTPClient(opts Options) *HTTPClient {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.MaxQPS < 1 {
		opts.MaxQPS = 20
	}
	if opts.MaxConcurrency < 1 {
		opts.MaxConcurrency = 64
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{}
	}
	return &HTTPClient{
		baseURL:   strings.TrimRight(opts.BaseURL, "/"),
		keyID:     opts.KeyID,
		keySecret: opts.KeySecret,
		timeout:   opts.Timeout,
		http:      opts.HTTPClient,
		limiter:   rate.NewLimiter(rate.Limit(opts.MaxQPS), opts.MaxQPS), //每秒产生MaxQPS个令牌，桶的大小为MaxQPS
		pool:      gopool.NewPool("gateway_pool", opts.MaxConcurrency, gopool.NewConfig()),
		observer:  opts.Observer,
	}
}

func (c *HTTPClient) CreateOrder(ctx context.Context, req CreateOrderRequest) (*Order, error) {
	var o Order
	if err := c.call(ctx, "create_order", http.MethodPost, "/v1/orders", req, &o); err != nil {
		return nil, err
	}
	return &o, nil
}

func (c *HTTPClient) GetPayment(ctx context.Context, paymentID string) (*Payment, error) {
	var p Payment
	if err := c.call(ctx, "get_payment", http.MethodGet, "/v1/payments/"+url.PathEscape(paymentID), nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *HTTPClient) Refund(ctx context.Context, paymentID string, req RefundRequest) (*Refund, error) {
	var r Refund
	if err := c.call(ctx, "refund", http.MethodPost, "/v1/payments/"+url.PathEscape(paymentID)+"/refund", req, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (c *HTTPClient) call(ctx context.Context, op, method, path string, body, out any) error {
	start := time.Now()
	err := c.do(ctx, method, path, body, out)
	if c.observer != nil {
		c.observer.ObserveGatewayRequest(op, resultOf(err), time.Since(start))
	}
	return err
}

func resultOf(err error) string {
	var apiErr *APIError
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrUnavailable):
		return "unavailable"
	case errors.As(err, &apiErr):
		return "rejected"
	default:
		return "error"
	}
}

// do runs one request on the pool, bounded by the rate limiter and c.timeout.
func (c *HTTPClient) do(ctx context.Context, method, path string, body, out any) error {
	var bodyRaw []byte
	if body != nil {
		var err error
		if bodyRaw, err = json.Marshal(body); err != nil {
			return fmt.Errorf("encode gateway request: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(bodyRaw))
	if err != nil {
		return fmt.Errorf("build gateway request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.keyID, c.keySecret)

	ch1 := make(chan *http.Response)
	ch2 := make(chan error)
	c.pool.Go(func() {
		if ctx.Err() != nil {
			return
		}
		//等令牌，限制最高并发量
		if err := c.limiter.Wait(ctx); err != nil {
			select {
			case ch2 <- fmt.Errorf("%w: waiting for rate limit token: %v", ErrUnavailable, err):
			case <-ctx.Done():
			}
			return
		}
		resp, err := c.http.Do(req)
		if err != nil {
			select {
			case ch2 <- fmt.Errorf("%w: %s %s: %v", ErrUnavailable, method, path, err):
			case <-ctx.Done():
			}
			return
		}
		select { // 外层已经返回时关闭body，避免占用连接
		case ch1 <- resp:
		case <-ctx.Done():
			resp.Body.Close()
		}
	})

	var resp *http.Response
	select {
	case <-ctx.Done():
		return fmt.Errorf("%w: %s %s: %v", ErrUnavailable, method, path, ctx.Err())
	case err := <-ch2:
		return err
	case resp = <-ch1:
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%w: read %s %s: %v", ErrUnavailable, method, path, err)
	}
	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return fmt.Errorf("%w: %s %s returned %d", ErrUnavailable, method, path, resp.StatusCode)
	case resp.StatusCode >= 400:
		return parseAPIError(resp.StatusCode, raw)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode gateway response of %s %s: %w", method, path, err)
	}
	return nil
}
