package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	"github.com/hitoshi/vidshare/internal/middleware"
	"github.com/hitoshi/vidshare/internal/model"
)

// --- モック定義 ---

// mockSessionContext はSessionContextのモック実装。
type mockSessionContext struct {
	mu    sync.Mutex
	state model.AuthState

	waitReadyFn     func(ctx context.Context) error
	loginFn         func(ctx context.Context, email, password string) error
	registerFn      func(ctx context.Context, username, email, password string) error
	logoutFn        func(ctx context.Context) error
	updateProfileFn func(ctx context.Context, patch model.ProfilePatch) error

	loginCalls    int
	registerCalls int
}

func (m *mockSessionContext) State() model.AuthState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *mockSessionContext) setState(s model.AuthState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = s
}

func (m *mockSessionContext) WaitReady(ctx context.Context) error {
	if m.waitReadyFn != nil {
		return m.waitReadyFn(ctx)
	}
	return nil
}

func (m *mockSessionContext) Login(ctx context.Context, email, password string) error {
	m.loginCalls++
	if m.loginFn != nil {
		return m.loginFn(ctx, email, password)
	}
	return nil
}

func (m *mockSessionContext) Register(ctx context.Context, username, email, password string) error {
	m.registerCalls++
	if m.registerFn != nil {
		return m.registerFn(ctx, username, email, password)
	}
	return nil
}

func (m *mockSessionContext) Logout(ctx context.Context) error {
	if m.logoutFn != nil {
		return m.logoutFn(ctx)
	}
	return nil
}

func (m *mockSessionContext) UpdateProfile(ctx context.Context, patch model.ProfilePatch) error {
	if m.updateProfileFn != nil {
		return m.updateProfileFn(ctx, patch)
	}
	return nil
}

// mockResolver はクライアントIDごとにmockSessionContextを返すSessionResolver。
type mockResolver struct {
	mu       sync.Mutex
	contexts map[string]*mockSessionContext
	err      error
	newFn    func() *mockSessionContext
}

func newMockResolver() *mockResolver {
	return &mockResolver{contexts: make(map[string]*mockSessionContext)}
}

func (m *mockResolver) Resolve(clientID string) (SessionContext, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	sc, ok := m.contexts[clientID]
	if !ok {
		if m.newFn != nil {
			sc = m.newFn()
		} else {
			sc = &mockSessionContext{}
		}
		m.contexts[clientID] = sc
	}
	return sc, nil
}

// forClient はクライアントIDに紐づくモックを返す。無ければ生成する。
func (m *mockResolver) forClient(clientID string) *mockSessionContext {
	sc, _ := m.Resolve(clientID)
	return sc.(*mockSessionContext)
}

// --- テストヘルパー ---

const testClientID = "7f1c2a9e-3b4d-4e5f-8a6b-1c2d3e4f5a6b"

// newClientRequest はクライアントIDを注入済みのリクエストを生成する。
func newClientRequest(method, target, body string) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	return req.WithContext(middleware.ContextWithClientID(req.Context(), testClientID))
}

func authenticatedState() model.AuthState {
	return model.AuthState{
		Identity: &model.Identity{ID: "id-1", Email: "alice@example.com", Verified: true},
		Profile: &model.Profile{
			ID:       "id-1",
			Username: "alice",
			Email:    "alice@example.com",
			Avatar:   "https://api.dicebear.com/7.x/avataaars/svg?seed=alice",
		},
		Session: &model.Session{
			ID:       "sess-1",
			Token:    "secret-token",
			Identity: &model.Identity{ID: "id-1", Email: "alice@example.com"},
		},
		IsAuthenticated: true,
	}
}

var errBoom = errors.New("boom")
