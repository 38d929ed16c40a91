package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Daneel-Li/storefront-pay/internal/services"
	"github.com/Daneel-Li/storefront-pay/pkg/utils"
)

// Pinger reports database health for /healthz.
type Pinger interface {
	Ping(ctx context.Context) error
}

type RouterOptions struct {
	APIKey   string
	JWT      services.JWTService
	Health   Pinger
	Gatherer prometheus.Gatherer // nil skips /metrics
}

// NewRouter 设置路由
func NewRouter(h *PaymentHandler, opts RouterOptions) *mux.Router {
	r := mux.NewRouter()

	storefront := []Middleware{ApiAuthCheck(opts.APIKey), RequestLogger}
	admin := []Middleware{AdminOnly(opts.JWT), RequestLogger}

	r.HandleFunc("/api/v1/payments/create-order", WithMidWare(h.CreateOrder, storefront...)).Methods("POST")
	r.HandleFunc("/api/v1/payments/verify", WithMidWare(h.Verify, storefront...)).Methods("POST")

	// gateway-facing, authenticated by signature only
	r.HandleFunc("/api/v1/payments/callback", WithMidWare(h.Callback, RequestLogger)).Methods("POST")
	r.HandleFunc("/api/v1/payments/webhook", WithMidWare(h.Webhook, RequestLogger)).Methods("POST")

	r.HandleFunc("/api/v1/payments/refund", WithMidWare(h.Refund, admin...)).Methods("POST")

	r.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if opts.Health != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := opts.Health.Ping(ctx); err != nil {
				utils.WriteHttpResponse(w, http.StatusServiceUnavailable, map[string]interface{}{"status": "down", "error": err.Error()})
				return
			}
		}
		utils.WriteHttpResponse(w, http.StatusOK, map[string]interface{}{"status": "ok"})
	}).Methods("GET")

	if opts.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})).Methods("GET")
	}
	return r
}
