package session

import (
	"context"
	"errors"
	"time"

	"github.com/hitoshi/vidshare/internal/identity"
)

// errTimerWon はタイマーが呼び出しより先に満了したことを示す。
var errTimerWon = errors.New("timer settled first")

type settled[T any] struct {
	value T
	err   error
}

// firstSettled はcallとlimitのタイマーのうち先に完了した方の結果を返す。
//
// タイマー（またはctx）が先に完了した場合、callの通信は中断せずに放棄する。
// 放棄したことはidentity.WithAbandonを通じてcallに伝わり、
// 後から到着した結果はdiscardに渡されるだけで呼び出し元には返らない。
// ただしcallがidentity.Commitで先に結果を確定していた場合は放棄できず、
// その結果を待って返す。
func firstSettled[T any](ctx context.Context, limit time.Duration, call func(context.Context) (T, error), discard func(T, error)) (T, error) {
	callCtx, abandon := identity.WithAbandon(context.WithoutCancel(ctx))

	results := make(chan settled[T], 1)
	go func() {
		v, err := call(callCtx)
		results <- settled[T]{value: v, err: err}
	}()

	timer := time.NewTimer(limit)
	defer timer.Stop()

	var lost error
	select {
	case r := <-results:
		return r.value, r.err
	case <-timer.C:
		lost = errTimerWon
	case <-ctx.Done():
		lost = ctx.Err()
	}

	if !abandon() {
		r := <-results
		return r.value, r.err
	}
	go func() {
		r := <-results
		if discard != nil {
			discard(r.value, r.err)
		}
	}()

	var zero T
	return zero, lost
}
