package repository

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/vidshare/internal/cache"
	"github.com/hitoshi/vidshare/internal/model"
)

const profileCachePrefix = "profile:"

// cachedProfile はキャッシュに保存するプロフィールのJSON表現。
type cachedProfile struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Avatar    string    `json:"avatar"`
	Bio       string    `json:"bio"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CachedProfileRepo はProfileRepositoryにリードスルーキャッシュを被せるデコレータ。
// 書き込み時はキャッシュを無効化し、次回読み込みでストアから再取得する。
// キャッシュ障害はログに記録し、ストアへのフォールバックで吸収する。
type CachedProfileRepo struct {
	next  ProfileRepository
	cache cache.Client
	ttl   time.Duration

	// mu はgenerationの確認とキャッシュ書き込み、無効化を直列化する。
	// 読み込み中に書き込みがあった場合、読んだ行はキャッシュしない。
	mu         sync.Mutex
	generation uint64
}

// NewCachedProfileRepo はCachedProfileRepoを生成する。
func NewCachedProfileRepo(next ProfileRepository, c cache.Client, ttl time.Duration) *CachedProfileRepo {
	return &CachedProfileRepo{next: next, cache: c, ttl: ttl}
}

// FindByID はキャッシュを参照し、ミス時はストアから取得してキャッシュする。
// 存在しないプロフィールはキャッシュしない（登録直後の作成を取りこぼさないため）。
func (r *CachedProfileRepo) FindByID(ctx context.Context, id string) (*model.Profile, error) {
	key := profileCachePrefix + id

	gen := r.currentGeneration()
	raw, err := r.cache.Get(ctx, key)
	if err == nil {
		var cp cachedProfile
		if jsonErr := json.Unmarshal([]byte(raw), &cp); jsonErr == nil {
			return toModelProfile(cp), nil
		}
		slog.Warn("discarding corrupt cached profile", slog.String("profile_id", id))
	} else if !errors.Is(err, cache.ErrMiss) {
		slog.Warn("profile cache read failed",
			slog.String("profile_id", id),
			slog.String("error", err.Error()),
		)
	}

	p, err := r.next.FindByID(ctx, id)
	if err != nil || p == nil {
		return p, err
	}

	r.store(ctx, key, p, gen)
	return p, nil
}

// Create はストアに作成し、キャッシュを無効化する。
func (r *CachedProfileRepo) Create(ctx context.Context, p *model.Profile) error {
	if err := r.next.Create(ctx, p); err != nil {
		return err
	}
	r.invalidate(ctx, p.ID)
	return nil
}

// Update はストアを更新し、キャッシュを無効化する。
func (r *CachedProfileRepo) Update(ctx context.Context, id string, patch model.ProfilePatch, updatedAt time.Time) error {
	if err := r.next.Update(ctx, id, patch, updatedAt); err != nil {
		return err
	}
	r.invalidate(ctx, id)
	return nil
}

func (r *CachedProfileRepo) currentGeneration() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.generation
}

// store はgen以降に書き込みがなかった場合だけpをキャッシュする。
func (r *CachedProfileRepo) store(ctx context.Context, key string, p *model.Profile, gen uint64) {
	data, err := json.Marshal(cachedProfile{
		ID:        p.ID,
		Username:  p.Username,
		Email:     p.Email,
		Avatar:    p.Avatar,
		Bio:       p.Bio,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	})
	if err != nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.generation != gen {
		return
	}
	if err := r.cache.Set(ctx, key, string(data), r.ttl); err != nil {
		slog.Warn("profile cache write failed",
			slog.String("profile_id", p.ID),
			slog.String("error", err.Error()),
		)
	}
}

func (r *CachedProfileRepo) invalidate(ctx context.Context, id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.generation++
	if err := r.cache.Delete(ctx, profileCachePrefix+id); err != nil {
		slog.Warn("profile cache invalidation failed",
			slog.String("profile_id", id),
			slog.String("error", err.Error()),
		)
	}
}

func toModelProfile(cp cachedProfile) *model.Profile {
	return &model.Profile{
		ID:        cp.ID,
		Username:  cp.Username,
		Email:     cp.Email,
		Avatar:    cp.Avatar,
		Bio:       cp.Bio,
		CreatedAt: cp.CreatedAt,
		UpdatedAt: cp.UpdatedAt,
	}
}

var _ ProfileRepository = (*CachedProfileRepo)(nil)
