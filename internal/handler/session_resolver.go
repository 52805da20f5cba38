package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/vidshare/internal/middleware"
	"github.com/hitoshi/vidshare/internal/model"
	"github.com/hitoshi/vidshare/internal/session"
)

// SessionContext はハンドラーが必要とするセッションコンテキストの操作。
// session.Managerが実装する。
type SessionContext interface {
	State() model.AuthState
	WaitReady(ctx context.Context) error
	Login(ctx context.Context, email, password string) error
	Register(ctx context.Context, username, email, password string) error
	Logout(ctx context.Context) error
	UpdateProfile(ctx context.Context, patch model.ProfilePatch) error
}

// SessionResolver はクライアントIDに対応するセッションコンテキストを返す。
type SessionResolver interface {
	Resolve(clientID string) (SessionContext, error)
}

// RegistryResolver は session.Registry を SessionResolver に適合させるアダプタ。
type RegistryResolver struct {
	registry *session.Registry
}

// NewRegistryResolver はRegistryResolverを生成する。
func NewRegistryResolver(registry *session.Registry) *RegistryResolver {
	return &RegistryResolver{registry: registry}
}

// Resolve はクライアントのManagerを取得する。初回は生成して起動する。
func (a *RegistryResolver) Resolve(clientID string) (SessionContext, error) {
	m, err := a.registry.Get(clientID)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// sessionContextKey はRequireAuthが解決済みのセッションコンテキストを格納するキー。
type sessionContextKey struct{}

// resolveSession はリクエストのクライアントに対応するセッションコンテキストを返す。
// 解決できない場合はエラーレスポンスを書き込み、falseを返す。
func resolveSession(w http.ResponseWriter, r *http.Request, resolver SessionResolver) (SessionContext, bool) {
	if sc, ok := r.Context().Value(sessionContextKey{}).(SessionContext); ok {
		return sc, true
	}

	clientID, err := middleware.ClientIDFromContext(r.Context())
	if err != nil {
		slog.Error("client ID missing; client middleware is not configured",
			slog.String("path", r.URL.Path),
		)
		middleware.WriteInternalServerError(w)
		return nil, false
	}

	sc, err := resolver.Resolve(clientID)
	if err != nil {
		if errors.Is(err, session.ErrRegistryClosed) {
			middleware.WriteErrorResponse(w, http.StatusServiceUnavailable, &model.APIError{
				Code:     "SHUTTING_DOWN",
				Message:  "サーバーが停止処理中です。",
				Category: "system",
				Action:   "しばらく待ってから再度お試しください。",
			})
			return nil, false
		}
		slog.Error("failed to resolve session context",
			slog.String("client_id", clientID),
			slog.String("error", err.Error()),
		)
		middleware.WriteInternalServerError(w)
		return nil, false
	}
	return sc, true
}

// statusClientClosedRequest はクライアントが応答前に切断したことを示す非標準ステータス。
const statusClientClosedRequest = 499

// waitSessionReady は初期読み込みの完了を待つ。
// 待機が打ち切られた場合はログに記録してエラーレスポンスを書き込み、falseを返す。
func waitSessionReady(w http.ResponseWriter, r *http.Request, sc SessionContext) bool {
	err := sc.WaitReady(r.Context())
	if err == nil {
		return true
	}

	status := http.StatusServiceUnavailable
	if errors.Is(err, context.Canceled) {
		status = statusClientClosedRequest
	}
	slog.Warn("session context did not become ready",
		slog.String("path", r.URL.Path),
		slog.Int("status", status),
		slog.String("error", err.Error()),
	)
	middleware.WriteErrorResponse(w, status, &model.APIError{
		Code:     "SESSION_NOT_READY",
		Message:  "セッションの初期化が完了しませんでした。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	})
	return false
}
