package security

import (
	"strings"
	"unicode/utf8"

	"github.com/hitoshi/vidshare/internal/model"
)

// プロフィール入力の上限
const (
	MaxUsernameLength = 64
	MaxBioLength      = 500
)

// ProfilePolicy はプロフィール更新内容を検証・正規化する。
type ProfilePolicy struct {
	sanitizer *TextSanitizer
}

// NewProfilePolicy はProfilePolicyを生成する。
func NewProfilePolicy() *ProfilePolicy {
	return &ProfilePolicy{sanitizer: NewTextSanitizer()}
}

// Normalize は指定されたフィールドだけを検証し、正規化したパッチを返す。
//   - username: タグ除去後に空でなく、64文字以内
//   - bio: タグ除去後に500文字以内（空は許可）
//   - avatar: 公開ホストを指すhttp(s)のURL
//
// 不正な場合は*model.APIError（ErrCodeValidation）を返す。
func (p *ProfilePolicy) Normalize(patch model.ProfilePatch) (model.ProfilePatch, error) {
	var out model.ProfilePatch

	if patch.Username != nil {
		username := p.sanitizer.Sanitize(*patch.Username)
		if username == "" {
			return model.ProfilePatch{}, model.NewValidationError("usernameは必須です")
		}
		if utf8.RuneCountInString(username) > MaxUsernameLength {
			return model.ProfilePatch{}, model.NewValidationError("usernameは64文字以内で指定してください")
		}
		out.Username = &username
	}

	if patch.Bio != nil {
		bio := p.sanitizer.Sanitize(*patch.Bio)
		if utf8.RuneCountInString(bio) > MaxBioLength {
			return model.ProfilePatch{}, model.NewValidationError("bioは500文字以内で指定してください")
		}
		out.Bio = &bio
	}

	if patch.Avatar != nil {
		avatar := strings.TrimSpace(*patch.Avatar)
		if err := ValidatePublicURL(avatar); err != nil {
			return model.ProfilePatch{}, model.NewValidationError("avatarのURLが不正です: " + err.Error())
		}
		out.Avatar = &avatar
	}

	return out, nil
}
