// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/hitoshi/vidshare/internal/model"
)

// ErrProfileNotFound は更新対象のプロフィールが存在しないことを示す。
var ErrProfileNotFound = errors.New("profile not found")

// ProfileRepository はプロフィールの永続化インターフェース。
// identity IDをキーとするレコードストアとして振る舞う。
type ProfileRepository interface {
	// FindByID は指定IDのプロフィールを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Profile, error)

	// Create はプロフィールを作成する。
	Create(ctx context.Context, profile *model.Profile) error

	// Update はpatchで指定されたフィールドのみを更新し、updated_atをupdatedAtにする。
	// 対象が存在しない場合はErrProfileNotFoundを返す。
	Update(ctx context.Context, id string, patch model.ProfilePatch, updatedAt time.Time) error
}
