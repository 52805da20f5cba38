package identity

import (
	"log/slog"
	"sync"
)

// subscriberBuffer は購読者ごとのチャネルバッファ。
// 溢れた場合は最も古いイベントを捨てて最新を優先する。
const subscriberBuffer = 16

// Broadcaster はSessionEventを複数の購読者へ配信する。
type Broadcaster struct {
	mu     sync.Mutex
	subs   map[int]chan SessionEvent
	nextID int
	closed bool
}

// NewBroadcaster はBroadcasterを生成する。
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[int]chan SessionEvent)}
}

// Subscribe は新しい購読チャネルと解除関数を返す。
// 解除するとチャネルはクローズされる。
func (b *Broadcaster) Subscribe() (<-chan SessionEvent, Unsubscribe) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan SessionEvent, subscriberBuffer)
	if b.closed {
		close(ch)
		return ch, func() {}
	}

	id := b.nextID
	b.nextID++
	b.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if c, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(c)
			}
		})
	}
}

// Publish はイベントを全購読者へ配信する。送信はブロックしない。
func (b *Broadcaster) Publish(ev SessionEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for id, ch := range b.subs {
		select {
		case ch <- ev:
			continue
		default:
		}
		// バッファ満杯: 古いイベントを1件捨てて再送する
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- ev:
		default:
		}
		slog.Warn("session event subscriber lagging, dropped oldest event",
			slog.Int("subscriber", id),
			slog.String("kind", string(ev.Kind)),
		)
	}
}

// Subscribers は現在の購読者数を返す。
func (b *Broadcaster) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Close は全購読を終了する。以降のSubscribeはクローズ済みチャネルを返す。
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
