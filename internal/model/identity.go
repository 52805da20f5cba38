// Package model はドメインモデルを定義する。
package model

import "time"

// Identity はIdP上の認証主体（ログイン中の誰か）を表す。
type Identity struct {
	ID       string
	Email    string
	Verified bool
}

// Session はIdPが発行した認証セッションを表す。
// Tokenは不透明な値で、IdP以外は中身を解釈しない。
type Session struct {
	ID              string
	Token           string
	Identity        *Identity
	ExpiresAt       time.Time
	AuthenticatedAt time.Time
}

// IdentityID はセッションに紐づくidentityのIDを返す。
// セッションまたはidentityがnilの場合は空文字列を返す。
func (s *Session) IdentityID() string {
	if s == nil || s.Identity == nil {
		return ""
	}
	return s.Identity.ID
}

// Profile はアプリケーションが保持するユーザー属性を表す。
// IDはidentityのIDと同一。
type Profile struct {
	ID        string
	Username  string
	Email     string
	Avatar    string
	Bio       string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ProfilePatch はプロフィールの部分更新内容を表す。
// nilのフィールドは変更しない。
type ProfilePatch struct {
	Username *string
	Avatar   *string
	Bio      *string
}

// IsEmpty は更新対象のフィールドが1つもない場合にtrueを返す。
func (p ProfilePatch) IsEmpty() bool {
	return p.Username == nil && p.Avatar == nil && p.Bio == nil
}

// Fields は更新対象のフィールド名を返す。
func (p ProfilePatch) Fields() []string {
	var fields []string
	if p.Username != nil {
		fields = append(fields, "username")
	}
	if p.Avatar != nil {
		fields = append(fields, "avatar")
	}
	if p.Bio != nil {
		fields = append(fields, "bio")
	}
	return fields
}

// ApplyTo はパッチをプロフィールのコピーに適用して返す。元のプロフィールは変更しない。
func (p ProfilePatch) ApplyTo(profile Profile) Profile {
	if p.Username != nil {
		profile.Username = *p.Username
	}
	if p.Avatar != nil {
		profile.Avatar = *p.Avatar
	}
	if p.Bio != nil {
		profile.Bio = *p.Bio
	}
	return profile
}

// AuthState はプレゼンテーション層に公開する認証状態のスナップショット。
// 独自の保存領域は持たず、Session/Identity/Profileの変化のたびに再計算される。
type AuthState struct {
	Identity        *Identity
	Profile         *Profile
	Session         *Session
	IsAuthenticated bool
	Loading         bool
}
