package events

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/hitoshi/vidshare/internal/model"
)

// mockWriter はkafka.Writerのテスト用実装。
type mockWriter struct {
	messages []kafka.Message
	err      error
	closed   bool
}

func (m *mockWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if m.err != nil {
		return m.err
	}
	m.messages = append(m.messages, msgs...)
	return nil
}

func (m *mockWriter) Close() error {
	m.closed = true
	return nil
}

func TestNewProfileEvent(t *testing.T) {
	occurred := time.Date(2026, 3, 1, 12, 0, 0, 0, time.FixedZone("JST", 9*3600))
	p := model.Profile{ID: "user-1", Username: "alice", Avatar: "https://a/alice"}

	payload, err := NewProfileEvent(TypeProfileUpdated, p, []string{"bio"}, occurred)
	if err != nil {
		t.Fatalf("NewProfileEvent failed: %v", err)
	}

	var ev ProfileEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if ev.EventID == "" {
		t.Error("expected event_id to be set")
	}
	if ev.EventType != TypeProfileUpdated {
		t.Errorf("EventType = %q, want %q", ev.EventType, TypeProfileUpdated)
	}
	if ev.ProfileID != "user-1" || ev.Username != "alice" {
		t.Errorf("unexpected profile fields: %+v", ev)
	}
	if !reflect.DeepEqual(ev.Fields, []string{"bio"}) {
		t.Errorf("Fields = %v, want [bio]", ev.Fields)
	}
	if ev.OccurredAt.Location() != time.UTC {
		t.Errorf("OccurredAt should be UTC, got %v", ev.OccurredAt.Location())
	}
}

// イベントIDは毎回異なること
func TestNewProfileEvent_UniqueIDs(t *testing.T) {
	p := model.Profile{ID: "user-1"}
	a, _ := NewProfileEvent(TypeProfileCreated, p, nil, time.Now())
	b, _ := NewProfileEvent(TypeProfileCreated, p, nil, time.Now())

	var ea, eb ProfileEvent
	json.Unmarshal(a, &ea)
	json.Unmarshal(b, &eb)
	if ea.EventID == eb.EventID {
		t.Errorf("expected distinct event ids, both %q", ea.EventID)
	}
}

func TestKafkaPublisher_Publish_KeyAndHeader(t *testing.T) {
	mock := &mockWriter{}
	p := &KafkaPublisher{writer: mock, topic: "vidshare.profile"}

	if err := p.Publish(context.Background(), TypeProfileCreated, []byte(`{}`), "user-1"); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if len(mock.messages) != 1 {
		t.Fatalf("len(messages) = %d, want 1", len(mock.messages))
	}
	msg := mock.messages[0]
	if string(msg.Key) != "user-1" {
		t.Errorf("Key = %q, want %q", msg.Key, "user-1")
	}
	if len(msg.Headers) != 1 || msg.Headers[0].Key != "event_type" || string(msg.Headers[0].Value) != TypeProfileCreated {
		t.Errorf("unexpected headers: %+v", msg.Headers)
	}
}

func TestKafkaPublisher_Publish_WrapsError(t *testing.T) {
	writeErr := errors.New("leader not available")
	p := &KafkaPublisher{writer: &mockWriter{err: writeErr}, topic: "vidshare.profile"}

	err := p.Publish(context.Background(), TypeProfileUpdated, []byte(`{}`), "user-1")
	if !errors.Is(err, writeErr) {
		t.Errorf("err = %v, want wrapped %v", err, writeErr)
	}
}

func TestKafkaPublisher_Close(t *testing.T) {
	mock := &mockWriter{}
	p := &KafkaPublisher{writer: mock, topic: "t"}
	if err := p.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if !mock.closed {
		t.Error("expected writer to be closed")
	}
}

func TestNewKafkaPublisher_Validation(t *testing.T) {
	if _, err := NewKafkaPublisher(nil, "t"); err == nil {
		t.Error("expected error for empty brokers")
	}
	if _, err := NewKafkaPublisher([]string{"kafka:9092"}, ""); err == nil {
		t.Error("expected error for empty topic")
	}
	p, err := NewKafkaPublisher([]string{"kafka:9092"}, "vidshare.profile")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	p.Close()
}

func TestNoopPublisher(t *testing.T) {
	var p Publisher = NoopPublisher{}
	if err := p.Publish(context.Background(), TypeProfileCreated, nil, ""); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
