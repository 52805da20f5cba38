package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/hitoshi/vidshare/internal/middleware"
	"github.com/hitoshi/vidshare/internal/model"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthHandler は認証状態と認証操作のHTTPハンドラー。
type AuthHandler struct {
	sessions SessionResolver
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(sessions SessionResolver) *AuthHandler {
	return &AuthHandler{sessions: sessions}
}

// State は現在の認証状態を返す。
// GET /auth/state
// ?wait=1 を指定すると初期読み込みの完了を待ってから返す。
func (h *AuthHandler) State(w http.ResponseWriter, r *http.Request) {
	sc, ok := resolveSession(w, r, h.sessions)
	if !ok {
		return
	}

	if r.URL.Query().Get("wait") != "" {
		if !waitSessionReady(w, r, sc) {
			return
		}
	}

	writeJSON(w, http.StatusOK, toAuthStateResponse(sc.State()))
}

// Login はメールアドレスとパスワードでログインする。
// POST /auth/login
// 成功時の状態変化はセッションイベント経由で反映されるため、本文は返さない。
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		middleware.WriteError(w, err)
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || req.Password == "" {
		middleware.WriteError(w, model.NewValidationError("メールアドレスとパスワードを入力してください"))
		return
	}

	sc, ok := resolveSession(w, r, h.sessions)
	if !ok {
		return
	}

	if err := sc.Login(r.Context(), req.Email, req.Password); err != nil {
		middleware.WriteError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Register は新しいアカウントを作成し、プロフィールを登録する。
// POST /auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		middleware.WriteError(w, err)
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)
	if req.Username == "" || req.Email == "" || req.Password == "" {
		middleware.WriteError(w, model.NewValidationError("ユーザー名、メールアドレス、パスワードを入力してください"))
		return
	}

	sc, ok := resolveSession(w, r, h.sessions)
	if !ok {
		return
	}

	if err := sc.Register(r.Context(), req.Username, req.Email, req.Password); err != nil {
		middleware.WriteError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toAuthStateResponse(sc.State()))
}

// Logout はIdPのセッションを破棄する。
// POST /auth/logout
// 失敗した場合は状態を変更しない。IdPの拒否は認証情報の問題ではないため502を返す。
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	sc, ok := resolveSession(w, r, h.sessions)
	if !ok {
		return
	}

	if err := sc.Logout(r.Context()); err != nil {
		var apiErr *model.APIError
		if errors.As(err, &apiErr) && apiErr.Code == model.ErrCodeProvider {
			middleware.WriteErrorResponse(w, http.StatusBadGateway, apiErr)
			return
		}
		middleware.WriteError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
