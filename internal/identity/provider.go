// Package identity は外部IdP（Ory Kratos）とのやり取りを抽象化する。
// セッション変化はSessionEventのチャネルとして購読者に配信される。
package identity

import (
	"context"

	"github.com/hitoshi/vidshare/internal/model"
)

// EventKind はセッション変化の種類。
type EventKind string

const (
	EventInitial        EventKind = "initial"
	EventSignedIn       EventKind = "signed_in"
	EventSignedOut      EventKind = "signed_out"
	EventTokenRefreshed EventKind = "token_refreshed"
)

// SessionEvent はIdPから通知されるセッション変化。
// signed_outではSessionはnil。
type SessionEvent struct {
	Kind    EventKind
	Session *model.Session
}

// SignUpMetadata はアカウント作成時にIdPへ渡す追加属性。
type SignUpMetadata struct {
	Username string
}

// Unsubscribe は購読を解除する。複数回呼び出しても安全。
type Unsubscribe func()

// Provider はセッションコンテキストが利用するIdPのインターフェース。
// 拒否時のエラーは*model.APIError（ErrCodeProvider）で返す。
type Provider interface {
	// CurrentSession は現在のセッションを返す。セッションがない場合はnil。
	CurrentSession(ctx context.Context) (*model.Session, error)

	// Subscribe はセッション変化の通知チャネルを返す。
	Subscribe() (<-chan SessionEvent, Unsubscribe)

	// SignInWithPassword はパスワードでログインする。
	SignInWithPassword(ctx context.Context, email, password string) (*model.Session, error)

	// SignUp はアカウントを作成し、作成されたidentityを返す。
	SignUp(ctx context.Context, email, password string, meta SignUpMetadata) (*model.Identity, error)

	// SignOut は現在のセッションを終了する。
	SignOut(ctx context.Context) error
}
