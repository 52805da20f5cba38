package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/hitoshi/vidshare/internal/identity"
	"github.com/hitoshi/vidshare/internal/model"
	"github.com/hitoshi/vidshare/internal/network"
)

// fakeProvider はテスト用のidentity.Provider実装。
// 通知はBroadcasterで配信し、各操作は関数フィールドで差し替えられる。
type fakeProvider struct {
	events *identity.Broadcaster

	mu                   sync.Mutex
	current              *model.Session
	snapshotErr          error
	subscribedAtSnapshot bool
	signInFn             func(ctx context.Context, email, password string) (*model.Session, error)
	signUpFn             func(ctx context.Context, email, password string, meta identity.SignUpMetadata) (*model.Identity, error)
	signOutFn            func(ctx context.Context) error
	signInCalls          int
	signUpCalls          int
	signOutCalls         int
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{events: identity.NewBroadcaster()}
}

func sessionFor(id string) *model.Session {
	return &model.Session{
		ID:       "sess-" + id,
		Token:    "tok-" + id,
		Identity: &model.Identity{ID: id, Email: id + "@example.com"},
	}
}

func (f *fakeProvider) CurrentSession(context.Context) (*model.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subscribedAtSnapshot = f.events.Subscribers() > 0
	if f.snapshotErr != nil {
		return nil, f.snapshotErr
	}
	return f.current, nil
}

func (f *fakeProvider) Subscribe() (<-chan identity.SessionEvent, identity.Unsubscribe) {
	return f.events.Subscribe()
}

func (f *fakeProvider) SignInWithPassword(ctx context.Context, email, password string) (*model.Session, error) {
	f.mu.Lock()
	f.signInCalls++
	fn := f.signInFn
	f.mu.Unlock()
	if fn != nil {
		return fn(ctx, email, password)
	}
	return nil, errors.New("signInFn not set")
}

func (f *fakeProvider) SignUp(ctx context.Context, email, password string, meta identity.SignUpMetadata) (*model.Identity, error) {
	f.mu.Lock()
	f.signUpCalls++
	fn := f.signUpFn
	f.mu.Unlock()
	if fn != nil {
		return fn(ctx, email, password, meta)
	}
	return nil, errors.New("signUpFn not set")
}

func (f *fakeProvider) SignOut(ctx context.Context) error {
	f.mu.Lock()
	f.signOutCalls++
	fn := f.signOutFn
	f.mu.Unlock()
	if fn != nil {
		return fn(ctx)
	}
	f.emitSignedOut()
	return nil
}

// emitSignedIn はidのセッションを確立して通知する。
func (f *fakeProvider) emitSignedIn(id string) *model.Session {
	sess := sessionFor(id)
	f.mu.Lock()
	f.current = sess
	f.mu.Unlock()
	f.events.Publish(identity.SessionEvent{Kind: identity.EventSignedIn, Session: sess})
	return sess
}

func (f *fakeProvider) emitSignedOut() {
	f.mu.Lock()
	f.current = nil
	f.mu.Unlock()
	f.events.Publish(identity.SessionEvent{Kind: identity.EventSignedOut})
}

func (f *fakeProvider) calls() (signIn, signUp, signOut int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.signInCalls, f.signUpCalls, f.signOutCalls
}

type updateCall struct {
	id        string
	patch     model.ProfilePatch
	updatedAt time.Time
}

// fakeStore はテスト用のrepository.ProfileRepository実装。
type fakeStore struct {
	mu        sync.Mutex
	profiles  map[string]model.Profile
	gates     map[string]chan struct{} // FindByIDを指定IDで止める
	findErr   error
	createErr error
	updateErr error
	findCalls int
	creates   []model.Profile
	updates   []updateCall
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		profiles: make(map[string]model.Profile),
		gates:    make(map[string]chan struct{}),
	}
}

func (s *fakeStore) put(p model.Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[p.ID] = p
}

// block はidのFindByIDを、返された関数が呼ばれるまで止める。
func (s *fakeStore) block(id string) func() {
	gate := make(chan struct{})
	s.mu.Lock()
	s.gates[id] = gate
	s.mu.Unlock()
	return func() { close(gate) }
}

func (s *fakeStore) FindByID(_ context.Context, id string) (*model.Profile, error) {
	s.mu.Lock()
	s.findCalls++
	gate := s.gates[id]
	s.mu.Unlock()

	if gate != nil {
		<-gate
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.findErr != nil {
		return nil, s.findErr
	}
	p, ok := s.profiles[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (s *fakeStore) Create(_ context.Context, p *model.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return s.createErr
	}
	s.creates = append(s.creates, *p)
	s.profiles[p.ID] = *p
	return nil
}

func (s *fakeStore) Update(_ context.Context, id string, patch model.ProfilePatch, updatedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updateErr != nil {
		return s.updateErr
	}
	s.updates = append(s.updates, updateCall{id: id, patch: patch, updatedAt: updatedAt})
	if p, ok := s.profiles[id]; ok {
		p = patch.ApplyTo(p)
		p.UpdatedAt = updatedAt
		s.profiles[id] = p
	}
	return nil
}

func (s *fakeStore) counts() (finds, creates, updates int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.findCalls, len(s.creates), len(s.updates)
}

// fakeRecorder はテスト用のmetrics.Recorder実装。
type fakeRecorder struct {
	mu      sync.Mutex
	ops     map[string]int // operation/outcome
	stale   map[string]int
	late    map[string]int
	active  int
	transit int
}

func newFakeRecorder() *fakeRecorder {
	return &fakeRecorder{ops: map[string]int{}, stale: map[string]int{}, late: map[string]int{}}
}

func (r *fakeRecorder) RecordAuthOperation(op, outcome string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops[op+"/"+outcome]++
}
func (r *fakeRecorder) RecordSessionTransition(string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transit++
}
func (r *fakeRecorder) RecordStaleWriteDiscarded(source string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stale[source]++
}
func (r *fakeRecorder) RecordLateResult(op string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.late[op]++
}
func (r *fakeRecorder) SetActiveSessions(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.active = n
}
func (r *fakeRecorder) RecordHTTPStatus(int) {}

func (r *fakeRecorder) staleCount(source string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stale[source]
}

func (r *fakeRecorder) lateCount(op string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.late[op]
}

func (r *fakeRecorder) opCount(op, outcome string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ops[op+"/"+outcome]
}

func (r *fakeRecorder) activeCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

type fixture struct {
	provider *fakeProvider
	store    *fakeStore
	net      *network.Static
	rec      *fakeRecorder
	manager  *Manager
}

// newFixture は開始済みのManagerとフェイク依存を返す。
func newFixture(t *testing.T, cfg Config, setup func(f *fixture)) *fixture {
	t.Helper()

	f := &fixture{
		provider: newFakeProvider(),
		store:    newFakeStore(),
		net:      network.NewStatic(true),
		rec:      newFakeRecorder(),
	}
	if setup != nil {
		setup(f)
	}

	f.manager = NewManager(Deps{
		Provider: f.provider,
		Profiles: f.store,
		Network:  f.net,
		Metrics:  f.rec,
	}, cfg)
	if err := f.manager.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(f.manager.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := f.manager.WaitReady(ctx); err != nil {
		t.Fatalf("WaitReady failed: %v", err)
	}
	return f
}

// waitFor はcondがtrueになるまで待つ。
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func strPtr(s string) *string { return &s }
