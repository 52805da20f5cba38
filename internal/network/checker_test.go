package network

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestNewDialChecker_DefaultPorts(t *testing.T) {
	tests := []struct {
		target string
		want   string
	}{
		{"http://kratos:4433", "kratos:4433"},
		{"https://auth.example.com", "auth.example.com:443"},
		{"http://kratos", "kratos:80"},
	}
	for _, tt := range tests {
		c, err := NewDialChecker(tt.target, time.Second)
		if err != nil {
			t.Fatalf("NewDialChecker(%q) failed: %v", tt.target, err)
		}
		if c.Address() != tt.want {
			t.Errorf("Address() = %q, want %q", c.Address(), tt.want)
		}
	}
}

func TestNewDialChecker_InvalidTarget(t *testing.T) {
	for _, target := range []string{"", "ftp://kratos", "://bad"} {
		if _, err := NewDialChecker(target, time.Second); err == nil {
			t.Errorf("NewDialChecker(%q) expected error", target)
		}
	}
}

func TestDialChecker_Online_ReachableServer(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	c, err := NewDialChecker(srv.URL, time.Second)
	if err != nil {
		t.Fatalf("NewDialChecker failed: %v", err)
	}
	if !c.Online(context.Background()) {
		t.Error("expected Online() = true for running server")
	}
}

func TestDialChecker_Online_ClosedPort(t *testing.T) {
	// 空きポートを確保してすぐ閉じる
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen failed: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()

	c, err := NewDialChecker("http://"+addr, 500*time.Millisecond)
	if err != nil {
		t.Fatalf("NewDialChecker failed: %v", err)
	}
	if c.Online(context.Background()) {
		t.Error("expected Online() = false for closed port")
	}
}

func TestStatic(t *testing.T) {
	s := NewStatic(false)
	if s.Online(context.Background()) {
		t.Error("expected offline")
	}
	s.Set(true)
	if !s.Online(context.Background()) {
		t.Error("expected online")
	}
}
