// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

// HasuraUserIDHeader はHasuraがアクション/イベント転送時に付与するセッション変数のヘッダー。
const HasuraUserIDHeader = "X-Hasura-User-Id"

// HasuraRoleHeader はHasuraが転送するセッションのロール。ログにのみ使う。
const HasuraRoleHeader = "X-Hasura-Role"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// playerIDContextKey はリクエストコンテキストにプレイヤーIDを格納するためのキー。
var playerIDContextKey = contextKey("player_id")

// NewHasuraSessionMiddleware はHasuraのセッションヘッダーからプレイヤーIDを読み取り、
// リクエストコンテキストに注入するミドルウェアを返す。
// ヘッダーが無いリクエストもそのまま通す（イベントトリガーはセッションを持たない）。
func NewHasuraSessionMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			playerID := strings.TrimSpace(r.Header.Get(HasuraUserIDHeader))
			if playerID == "" {
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(ContextWithPlayerID(r.Context(), playerID)))
		})
	}
}

// PlayerIDFromContext はリクエストコンテキストからプレイヤーIDを取得する。
func PlayerIDFromContext(ctx context.Context) (string, error) {
	playerID, ok := ctx.Value(playerIDContextKey).(string)
	if !ok || playerID == "" {
		return "", fmt.Errorf("player ID not found in context")
	}
	return playerID, nil
}

// ContextWithPlayerID はコンテキストにプレイヤーIDを注入する。
func ContextWithPlayerID(ctx context.Context, playerID string) context.Context {
	return context.WithValue(ctx, playerIDContextKey, playerID)
}
