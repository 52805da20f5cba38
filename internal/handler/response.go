// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/vidshare/internal/model"
)

// maxRequestBodySize はJSONリクエストボディの上限（バイト）。
const maxRequestBodySize = 64 << 10

// writeJSON はvをJSONとして書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// decodeJSON はリクエストボディをdstにデコードする。
// 不正なJSONや上限超過はVALIDATIONエラーとして返す。
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return model.NewValidationError("リクエストボディが大きすぎます")
		}
		return model.NewValidationError("リクエストボディの形式が正しくありません")
	}
	return nil
}

// --- レスポンス型 ---

type identityResponse struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Verified bool   `json:"verified"`
}

type profileResponse struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Avatar    string    `json:"avatar"`
	Bio       string    `json:"bio"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// sessionResponse はセッショントークンを含まない。トークンはサーバー側にのみ保持する。
type sessionResponse struct {
	ID              string    `json:"id"`
	ExpiresAt       time.Time `json:"expires_at"`
	AuthenticatedAt time.Time `json:"authenticated_at"`
}

type authStateResponse struct {
	IsAuthenticated bool              `json:"is_authenticated"`
	Loading         bool              `json:"loading"`
	Identity        *identityResponse `json:"identity"`
	Profile         *profileResponse  `json:"profile"`
	Session         *sessionResponse  `json:"session"`
}

func toProfileResponse(p *model.Profile) *profileResponse {
	if p == nil {
		return nil
	}
	return &profileResponse{
		ID:        p.ID,
		Username:  p.Username,
		Email:     p.Email,
		Avatar:    p.Avatar,
		Bio:       p.Bio,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

func toAuthStateResponse(s model.AuthState) authStateResponse {
	resp := authStateResponse{
		IsAuthenticated: s.IsAuthenticated,
		Loading:         s.Loading,
		Profile:         toProfileResponse(s.Profile),
	}
	if s.Identity != nil {
		resp.Identity = &identityResponse{
			ID:       s.Identity.ID,
			Email:    s.Identity.Email,
			Verified: s.Identity.Verified,
		}
	}
	if s.Session != nil {
		resp.Session = &sessionResponse{
			ID:              s.Session.ID,
			ExpiresAt:       s.Session.ExpiresAt,
			AuthenticatedAt: s.Session.AuthenticatedAt,
		}
	}
	return resp
}
