// Package model はドメインモデルを定義する。
package model

import (
	"errors"
	"fmt"
	"time"
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, profile, catalog, system
	Action   string // ユーザー向け対処方法
	Cause    error  // 元のエラー（ログ用。レスポンスには含めない）
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap は元のエラーを返す。
func (e *APIError) Unwrap() error {
	return e.Cause
}

// 定義済みエラーコード
const (
	ErrCodeConnectivity     = "CONNECTIVITY"
	ErrCodeTimeout          = "TIMEOUT"
	ErrCodeProvider         = "PROVIDER_REJECTED"
	ErrCodeStore            = "PROFILE_STORE"
	ErrCodeNotAuthenticated = "NOT_AUTHENTICATED"
	ErrCodeValidation       = "VALIDATION"
	ErrCodeProfileNotFound  = "PROFILE_NOT_FOUND"
	ErrCodeVideoNotFound    = "VIDEO_NOT_FOUND"
	ErrCodeChannelNotFound  = "CHANNEL_NOT_FOUND"
)

// HasCode はerrチェーン中のAPIErrorが指定コードを持つかを返す。
func HasCode(err error, code string) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == code
	}
	return false
}

// NewConnectivityError はネットワーク到達性がない場合のエラーを生成する。
// IdPへの問い合わせ前にローカルで判定される。
func NewConnectivityError() *APIError {
	return &APIError{
		Code:     ErrCodeConnectivity,
		Message:  "ネットワークに接続されていません。",
		Category: "system",
		Action:   "ネットワーク接続を確認してから再度お試しください。",
	}
}

// NewTimeoutError はIdP呼び出しが制限時間内に完了しなかった場合のエラーを生成する。
func NewTimeoutError(operation string, limit time.Duration) *APIError {
	return &APIError{
		Code:     ErrCodeTimeout,
		Message:  fmt.Sprintf("%sが%s以内に完了しませんでした。", operation, limit),
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewProviderError はIdPが要求を拒否した場合のエラーを生成する。
// descriptionにはIdPのエラー説明をそのまま格納する。
func NewProviderError(description string, cause error) *APIError {
	return &APIError{
		Code:     ErrCodeProvider,
		Message:  description,
		Category: "auth",
		Action:   "入力内容を確認して再度お試しください。",
		Cause:    cause,
	}
}

// NewStoreError はプロフィールの読み書きに失敗した場合のエラーを生成する。
func NewStoreError(cause error) *APIError {
	return &APIError{
		Code:     ErrCodeStore,
		Message:  "プロフィールの保存に失敗しました。",
		Category: "profile",
		Action:   "しばらく待ってから再度お試しください。",
		Cause:    cause,
	}
}

// NewNotAuthenticatedError はidentityがない状態でプロフィール更新が要求された場合のエラーを生成する。
// UIがこの状態に到達できること自体が呼び出し側の不具合を示す。
func NewNotAuthenticatedError() *APIError {
	return &APIError{
		Code:     ErrCodeNotAuthenticated,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	}
}

// NewValidationError は入力値が不正な場合のエラーを生成する。
func NewValidationError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeValidation,
		Message:  fmt.Sprintf("入力値が不正です: %s", reason),
		Category: "validation",
		Action:   "入力内容を確認してください。",
	}
}

// NewProfileNotFoundError はidentityはあるがプロフィールがまだ読み込まれていない場合のエラーを生成する。
func NewProfileNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeProfileNotFound,
		Message:  "プロフィールが見つかりません。",
		Category: "profile",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewVideoNotFoundError は動画が見つからない場合のエラーを生成する。
func NewVideoNotFoundError(videoID string) *APIError {
	return &APIError{
		Code:     ErrCodeVideoNotFound,
		Message:  fmt.Sprintf("指定された動画が見つかりません: %s", videoID),
		Category: "catalog",
		Action:   "動画IDを確認してください。",
	}
}

// NewChannelNotFoundError はチャンネルが見つからない場合のエラーを生成する。
func NewChannelNotFoundError(channelID string) *APIError {
	return &APIError{
		Code:     ErrCodeChannelNotFound,
		Message:  fmt.Sprintf("指定されたチャンネルが見つかりません: %s", channelID),
		Category: "catalog",
		Action:   "チャンネルIDを確認してください。",
	}
}
