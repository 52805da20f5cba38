package identity

import (
	"context"
	"sync/atomic"
)

// 呼び出し結果の確定状態。pendingからcommittedかabandonedのどちらか一方にだけ遷移する。
const (
	callPending int32 = iota
	callCommitted
	callAbandoned
)

type abandonKey struct{}

// WithAbandon は呼び出し側が結果を待たなくなったことを後から通知できるコンテキストを返す。
// キャンセルとは異なり通信は継続させる。
//
// 返却されるabandonは放棄に成功した場合にtrueを返す。
// Providerが先にCommitで結果を確定していた場合はfalseを返し、
// 呼び出し側はその結果を受け取らなければならない。
func WithAbandon(ctx context.Context) (context.Context, func() bool) {
	state := &atomic.Int32{}
	abandon := func() bool {
		return state.CompareAndSwap(callPending, callAbandoned) || state.Load() == callAbandoned
	}
	return context.WithValue(ctx, abandonKey{}, state), abandon
}

// Commit はセッションの保存と通知を始める前にProviderが呼び出し、結果の確定を宣言する。
// 呼び出し側が既に放棄していた場合はfalseを返し、Providerは結果を反映してはならない。
// WithAbandonを経由しないctxでは常にtrue。
func Commit(ctx context.Context) bool {
	state, ok := ctx.Value(abandonKey{}).(*atomic.Int32)
	if !ok {
		return true
	}
	return state.CompareAndSwap(callPending, callCommitted) || state.Load() == callCommitted
}

// Abandoned はctxの呼び出し側が結果を破棄済みかを返す。
func Abandoned(ctx context.Context) bool {
	state, ok := ctx.Value(abandonKey{}).(*atomic.Int32)
	return ok && state.Load() == callAbandoned
}
