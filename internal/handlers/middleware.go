package handlers

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/Daneel-Li/storefront-pay/internal/services"
	"github.com/Daneel-Li/storefront-pay/pkg/utils"
)

type Middleware func(http.HandlerFunc) http.HandlerFunc

type ctxKey string

const adminKey ctxKey = "admin"

func WithMidWare(finalHandler http.HandlerFunc, middlwares ...Middleware) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f := finalHandler
		for _, m := range middlwares {
			f = m(f)
		}
		f(w, r)
	}
}

// ApiAuthCheck 校验 appKey 请求头. An empty apiKey disables the check.
func ApiAuthCheck(apiKey string) Middleware {
	return func(h http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if apiKey != "" && subtle.ConstantTimeCompare([]byte(r.Header.Get("appKey")), []byte(apiKey)) != 1 {
				utils.WriteHttpResponse(w, http.StatusUnauthorized, map[string]interface{}{
					"success": false, "error": "unauthorized", "message": "invalid appKey",
				})
				return
			}
			h(w, r)
		}
	}
}

// AdminOnly requires a bearer token carrying the admin claim.
func AdminOnly(jwt services.JWTService) Middleware {
	return func(h http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			tokenString := strings.TrimSpace(strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer "))
			if tokenString == "" {
				utils.WriteHttpResponse(w, http.StatusUnauthorized, map[string]interface{}{
					"success": false, "error": "unauthorized", "message": "missing token",
				})
				return
			}
			subject, err := jwt.ValidateAdmin(tokenString)
			if err != nil {
				slog.Debug("admin token rejected", "path", r.URL.Path, "error", err)
				utils.WriteHttpResponse(w, http.StatusForbidden, map[string]interface{}{
					"success": false, "error": "forbidden", "message": "admin token required",
				})
				return
			}
			h(w, r.WithContext(context.WithValue(r.Context(), adminKey, subject)))
		}
	}
}

func adminFromContext(ctx context.Context) string {
	s, _ := ctx.Value(adminKey).(string)
	return s
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// RequestLogger logs method, path, status and latency of every request.
func RequestLogger(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		h(rec, r)
		slog.Debug("request", "method", r.Method, "path", r.URL.Path, "status", rec.status,
			"elapsed", time.Since(start))
	}
}
