// Package events はプロフィール変更イベントの発行を提供する。
// 発行はベストエフォートで、失敗しても呼び出し元の操作は失敗させない。
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/vidshare/internal/model"
)

// イベント種別
const (
	TypeProfileCreated = "profile.created"
	TypeProfileUpdated = "profile.updated"
)

// Publisher はイベントを発行する。keyは同一プロフィールのイベント順序を保つパーティションキー。
type Publisher interface {
	Publish(ctx context.Context, eventType string, payload []byte, key string) error
	Close() error
}

// ProfileEvent はプロフィール変更イベントのペイロード。
type ProfileEvent struct {
	EventID    string    `json:"event_id"`
	EventType  string    `json:"event_type"`
	OccurredAt time.Time `json:"occurred_at"`
	ProfileID  string    `json:"profile_id"`
	Username   string    `json:"username"`
	Avatar     string    `json:"avatar"`
	Fields     []string  `json:"fields,omitempty"` // profile.updatedで変更されたフィールド
}

// NewProfileEvent はプロフィールからイベントペイロードを組み立てる。
func NewProfileEvent(eventType string, p model.Profile, fields []string, occurredAt time.Time) ([]byte, error) {
	payload, err := json.Marshal(ProfileEvent{
		EventID:    uuid.NewString(),
		EventType:  eventType,
		OccurredAt: occurredAt.UTC(),
		ProfileID:  p.ID,
		Username:   p.Username,
		Avatar:     p.Avatar,
		Fields:     fields,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal profile event: %w", err)
	}
	return payload, nil
}

// NoopPublisher はイベントを捨てるPublisher。KAFKA_BROKERS未設定時に使う。
type NoopPublisher struct{}

// Publish は何もしない。
func (NoopPublisher) Publish(context.Context, string, []byte, string) error { return nil }

// Close は何もしない。
func (NoopPublisher) Close() error { return nil }

var _ Publisher = NoopPublisher{}
