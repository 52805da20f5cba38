package identity

import (
	"context"
	"errors"
	"time"

	"github.com/hitoshi/vidshare/internal/cache"
)

const tokenKeyPrefix = "session_token:"

// TokenStore はクライアントごとのIdPセッショントークンを保持する。
// トークンの永続化はIdP側の関心事であり、このストアはその受け皿にすぎない。
type TokenStore struct {
	cache cache.Client
	ttl   time.Duration
}

// NewTokenStore はTokenStoreを生成する。ttlはトークンの保持期間の上限。
func NewTokenStore(c cache.Client, ttl time.Duration) *TokenStore {
	return &TokenStore{cache: c, ttl: ttl}
}

// Load はクライアントのトークンを返す。未保存の場合は空文字列。
func (s *TokenStore) Load(ctx context.Context, clientID string) (string, error) {
	tok, err := s.cache.Get(ctx, tokenKeyPrefix+clientID)
	if errors.Is(err, cache.ErrMiss) {
		return "", nil
	}
	return tok, err
}

// Save はトークンを保存する。expiresAtが設定されていればそれまでを保持期間とする。
func (s *TokenStore) Save(ctx context.Context, clientID, token string, expiresAt time.Time) error {
	ttl := s.ttl
	if !expiresAt.IsZero() {
		if until := time.Until(expiresAt); until > 0 && (ttl <= 0 || until < ttl) {
			ttl = until
		}
	}
	return s.cache.Set(ctx, tokenKeyPrefix+clientID, token, ttl)
}

// Clear はトークンを削除する。
func (s *TokenStore) Clear(ctx context.Context, clientID string) error {
	return s.cache.Delete(ctx, tokenKeyPrefix+clientID)
}
