package middleware

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	"github.com/metafam/metagame/internal/model"
)

// WebhookSecretHeader はHasuraからの呼び出しを認証する共有シークレットのヘッダー。
const WebhookSecretHeader = "X-Webhook-Secret"

// NewWebhookSecretMiddleware は共有シークレットを検証するミドルウェアを返す。
// secretが空の場合は検証しない（ローカル開発用）。
func NewWebhookSecretMiddleware(secret string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if secret == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.Header.Get(WebhookSecretHeader)
			if subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
				slog.Warn("webhook secret mismatch",
					slog.String("path", r.URL.Path),
					slog.String("remote_addr", r.RemoteAddr),
				)
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
