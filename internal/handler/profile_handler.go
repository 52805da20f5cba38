package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/vidshare/internal/middleware"
	"github.com/hitoshi/vidshare/internal/model"
)

type updateProfileRequest struct {
	Username *string `json:"username"`
	Avatar   *string `json:"avatar"`
	Bio      *string `json:"bio"`
}

// RequireAuth は認証済みのクライアントだけを通すミドルウェアを返す。
// 初期読み込みが終わるまで待ってから判定するため、起動直後のリクエストが
// 誤って未認証扱いされることはない。
// 解決したセッションコンテキストはリクエストコンテキストに格納し、後続のハンドラーで再利用する。
func RequireAuth(sessions SessionResolver) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sc, ok := resolveSession(w, r, sessions)
			if !ok {
				return
			}

			if !waitSessionReady(w, r, sc) {
				return
			}

			if !sc.State().IsAuthenticated {
				middleware.WriteError(w, model.NewNotAuthenticatedError())
				return
			}

			ctx := context.WithValue(r.Context(), sessionContextKey{}, sc)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ProfileHandler はログイン中ユーザーのプロフィールのHTTPハンドラー。
// RequireAuthの内側に配置する。
type ProfileHandler struct {
	sessions SessionResolver
}

// NewProfileHandler はProfileHandlerを生成する。
func NewProfileHandler(sessions SessionResolver) *ProfileHandler {
	return &ProfileHandler{sessions: sessions}
}

// GetProfile はプロフィールを返す。
// GET /api/profile
func (h *ProfileHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	sc, ok := resolveSession(w, r, h.sessions)
	if !ok {
		return
	}

	state := sc.State()
	if state.Profile == nil {
		middleware.WriteError(w, model.NewProfileNotFoundError())
		return
	}

	writeJSON(w, http.StatusOK, toProfileResponse(state.Profile))
}

// UpdateProfile は指定されたフィールドだけを更新し、反映後のプロフィールを返す。
// PATCH /api/profile
func (h *ProfileHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req updateProfileRequest
	if err := decodeJSON(w, r, &req); err != nil {
		middleware.WriteError(w, err)
		return
	}

	sc, ok := resolveSession(w, r, h.sessions)
	if !ok {
		return
	}

	patch := model.ProfilePatch{
		Username: req.Username,
		Avatar:   req.Avatar,
		Bio:      req.Bio,
	}
	if err := sc.UpdateProfile(r.Context(), patch); err != nil {
		middleware.WriteError(w, err)
		return
	}

	state := sc.State()
	if state.Profile == nil {
		// 更新中にidentityが切り替わった
		middleware.WriteError(w, model.NewNotAuthenticatedError())
		return
	}
	writeJSON(w, http.StatusOK, toProfileResponse(state.Profile))
}
