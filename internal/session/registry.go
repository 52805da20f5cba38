package session

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/vidshare/internal/metrics"
)

// ErrRegistryClosed はClose後にGetが呼ばれたことを示す。
var ErrRegistryClosed = errors.New("session registry is closed")

// Factory はクライアントIDに対応する未開始のManagerを生成する。
// releaseはManagerのClose後に呼ばれ、Factoryが確保した資源（IdPクライアントなど）を解放する。
type Factory func(clientID string) (m *Manager, release func(), err error)

// RegistryConfig はRegistryの設定。
type RegistryConfig struct {
	IdleTTL         time.Duration // 最終アクセスからこの時間を超えたManagerを破棄する
	CleanupInterval time.Duration
}

type registryEntry struct {
	manager    *Manager
	release    func()
	lastAccess time.Time
}

// Registry はブラウザクライアントごとのManagerを保持する。
// 1クライアントにつき1つのセッションコンテキストを割り当て、アイドル状態のものを回収する。
type Registry struct {
	config  RegistryConfig
	factory Factory
	metrics metrics.Recorder
	now     func() time.Time

	mu      sync.Mutex
	entries map[string]*registryEntry
	closed  bool

	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewRegistry はRegistryを生成し、バックグラウンドでアイドルManagerの回収を開始する。
func NewRegistry(factory Factory, config RegistryConfig, rec metrics.Recorder) *Registry {
	if rec == nil {
		rec = metrics.Noop{}
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = time.Minute
	}
	r := &Registry{
		config:  config,
		factory: factory,
		metrics: rec,
		now:     time.Now,
		entries: make(map[string]*registryEntry),
		stopCh:  make(chan struct{}),
	}

	go r.cleanupLoop()

	return r
}

// Get はクライアントのManagerを返す。存在しなければ生成して開始する。
func (r *Registry) Get(clientID string) (*Manager, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, ErrRegistryClosed
	}

	if e, ok := r.entries[clientID]; ok {
		e.lastAccess = r.now()
		return e.manager, nil
	}

	m, release, err := r.factory(clientID)
	if err != nil {
		return nil, err
	}
	if err := m.Start(); err != nil {
		m.Close()
		if release != nil {
			release()
		}
		return nil, err
	}

	r.entries[clientID] = &registryEntry{
		manager:    m,
		release:    release,
		lastAccess: r.now(),
	}
	r.metrics.SetActiveSessions(len(r.entries))

	slog.Debug("session context created", slog.String("client_id", clientID))
	return m, nil
}

// Len は保持しているManagerの数を返す。
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Close は回収を停止し、全Managerを閉じる。
func (r *Registry) Close() {
	r.stopOnce.Do(func() { close(r.stopCh) })

	r.mu.Lock()
	r.closed = true
	victims := r.entries
	r.entries = make(map[string]*registryEntry)
	r.mu.Unlock()

	for _, e := range victims {
		closeEntry(e)
	}
	r.metrics.SetActiveSessions(0)
}

func (r *Registry) cleanupLoop() {
	ticker := time.NewTicker(r.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.evictIdle()
		case <-r.stopCh:
			return
		}
	}
}

// evictIdle は最終アクセスからIdleTTLを超えたManagerを閉じて削除する。
func (r *Registry) evictIdle() int {
	now := r.now()

	r.mu.Lock()
	var victims []*registryEntry
	for id, e := range r.entries {
		if now.Sub(e.lastAccess) > r.config.IdleTTL {
			victims = append(victims, e)
			delete(r.entries, id)
		}
	}
	count := len(r.entries)
	r.mu.Unlock()

	// Closeは調停ループの終了を待つためロックの外で行う
	for _, e := range victims {
		closeEntry(e)
	}
	if len(victims) > 0 {
		r.metrics.SetActiveSessions(count)
		slog.Info("evicted idle session contexts", slog.Int("count", len(victims)))
	}
	return len(victims)
}

func closeEntry(e *registryEntry) {
	e.manager.Close()
	if e.release != nil {
		e.release()
	}
}
