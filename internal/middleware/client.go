// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// ClientCookieName はクライアント識別子を保持するCookieの名前。
const ClientCookieName = "vidshare_client"

// ClientCookieLifetime はクライアントCookieの有効期間。
// クライアントに紐づくIdPトークンもこれより長くは保持しない。
const ClientCookieLifetime = 30 * 24 * time.Hour

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// clientIDContextKey はリクエストコンテキストにクライアントIDを格納するためのキー。
var clientIDContextKey = contextKey("client_id")

// CookieConfig はミドルウェアが発行するCookieの共通設定。
type CookieConfig struct {
	Secure bool
	Domain string
}

// NewClientMiddleware はHTTP Only Cookieからクライアント識別子を読み取り、
// リクエストコンテキストに注入するミドルウェアを返す。
// Cookieが無い、またはUUIDとして不正な場合は新しい識別子を発行する。
// 識別子はリクエストを対応するセッションコンテキストに束ねるためだけに使い、
// 認証状態そのものは表さない。
func NewClientMiddleware(config CookieConfig) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientID := ""
			if cookie, err := r.Cookie(ClientCookieName); err == nil {
				if id, err := uuid.Parse(cookie.Value); err == nil {
					clientID = id.String()
				}
			}

			if clientID == "" {
				clientID = uuid.NewString()
				http.SetCookie(w, &http.Cookie{
					Name:     ClientCookieName,
					Value:    clientID,
					Path:     "/",
					Domain:   config.Domain,
					MaxAge:   int(ClientCookieLifetime / time.Second),
					HttpOnly: true,
					Secure:   config.Secure,
					SameSite: http.SameSiteLaxMode,
				})
			}

			next.ServeHTTP(w, r.WithContext(ContextWithClientID(r.Context(), clientID)))
		})
	}
}

// ClientIDFromContext はリクエストコンテキストからクライアントIDを取得する。
// クライアントミドルウェアを通過したリクエストでのみ有効。
func ClientIDFromContext(ctx context.Context) (string, error) {
	clientID, ok := ctx.Value(clientIDContextKey).(string)
	if !ok || clientID == "" {
		return "", fmt.Errorf("client ID not found in context")
	}
	return clientID, nil
}

// ContextWithClientID はコンテキストにクライアントIDを注入する。
func ContextWithClientID(ctx context.Context, clientID string) context.Context {
	return context.WithValue(ctx, clientIDContextKey, clientID)
}
