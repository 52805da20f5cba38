// Package cache はプロフィールキャッシュとセッショントークン保存に使うキーバリューストアを提供する。
package cache

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrMiss はキーが存在しない（または期限切れ）ことを示す。
var ErrMiss = errors.New("cache: miss")

// Client はTTL付きキーバリューストアのインターフェース。
type Client interface {
	// Get はキーの値を返す。存在しない場合はErrMissを返す。
	Get(ctx context.Context, key string) (string, error)
	// Set はキーに値を保存する。ttlが0以下の場合は期限なし。
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	// Delete は指定キーを削除する。存在しないキーは無視する。
	Delete(ctx context.Context, keys ...string) error
}

type memoryEntry struct {
	value     string
	expiresAt time.Time
}

// Memory はプロセス内のClient実装。
// REDIS_ADDRが未設定の単一インスタンス構成とテストで使用する。
type Memory struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemory はMemoryを生成する。
func NewMemory() *Memory {
	return &Memory{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

// Get はキーの値を返す。期限切れのエントリはその場で削除する。
func (m *Memory) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		return "", ErrMiss
	}
	if !e.expiresAt.IsZero() && !m.now().Before(e.expiresAt) {
		delete(m.entries, key)
		return "", ErrMiss
	}
	return e.value, nil
}

// Set はキーに値を保存する。
func (m *Memory) Set(_ context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e := memoryEntry{value: value}
	if ttl > 0 {
		e.expiresAt = m.now().Add(ttl)
	}
	m.entries[key] = e
	return nil
}

// Delete は指定キーを削除する。
func (m *Memory) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, k := range keys {
		delete(m.entries, k)
	}
	return nil
}

var _ Client = (*Memory)(nil)
