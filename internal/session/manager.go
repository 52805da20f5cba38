// Package session はブラウザクライアントごとの認証状態（セッションコンテキスト）を管理する。
//
// Managerは「誰がサインインしているか」の唯一の情報源であり、
// IdPからの非同期通知とプロフィールストアの内容を1本の調停ループで状態に反映する。
// 遅延して到着する書き込み（プロフィール取得の完了など）は、
// 書き込み時点のidentity IDと照合し、一致しない場合は破棄する。
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/vidshare/internal/events"
	"github.com/hitoshi/vidshare/internal/identity"
	"github.com/hitoshi/vidshare/internal/metrics"
	"github.com/hitoshi/vidshare/internal/model"
	"github.com/hitoshi/vidshare/internal/network"
	"github.com/hitoshi/vidshare/internal/repository"
)

// InputPolicy はプロフィール更新内容の検証と正規化を行う。
type InputPolicy interface {
	Normalize(patch model.ProfilePatch) (model.ProfilePatch, error)
}

// Deps はManagerの依存。Provider, Profiles, Networkは必須。
type Deps struct {
	Provider identity.Provider
	Profiles repository.ProfileRepository
	Network  network.Checker
	Metrics  metrics.Recorder
	Events   events.Publisher
	Policy   InputPolicy
	Logger   *slog.Logger
	Now      func() time.Time
}

// Config はManagerの設定。
type Config struct {
	LoginTimeout      time.Duration
	RegisterTimeout   time.Duration
	AvatarSeedBaseURL string
	EventTimeout      time.Duration // イベント発行1件あたりの上限
}

// DefaultConfig はデフォルト設定を返す。
func DefaultConfig() Config {
	return Config{
		LoginTimeout:      15 * time.Second,
		RegisterTimeout:   15 * time.Second,
		AvatarSeedBaseURL: "https://api.dicebear.com/7.x/avataaars/svg?seed=",
		EventTimeout:      5 * time.Second,
	}
}

// 調停ループへのメッセージ
type snapshotResult struct {
	session *model.Session
	err     error
}

type profileResult struct {
	identityID string
	profile    *model.Profile
	err        error
}

// Manager はセッションコンテキスト。NewManagerで生成し、Startで購読を開始する。
type Manager struct {
	deps Deps
	cfg  Config
	log  *slog.Logger

	mu       sync.Mutex
	started  bool
	closed   bool
	loading  bool
	session  *model.Session
	profile  *model.Profile
	fetching string // 取得中のプロフィールのidentity ID

	watchers    map[int]chan model.AuthState
	nextWatcher int

	ready chan struct{}
	inbox chan any
	done  chan struct{}

	ctx         context.Context
	cancel      context.CancelFunc
	unsubscribe identity.Unsubscribe
	closeOnce   sync.Once
	wg          sync.WaitGroup
}

// NewManager はManagerを生成する。生成直後の状態はloading=true。
func NewManager(deps Deps, cfg Config) *Manager {
	if deps.Metrics == nil {
		deps.Metrics = metrics.Noop{}
	}
	if deps.Events == nil {
		deps.Events = events.NoopPublisher{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	defaults := DefaultConfig()
	if cfg.LoginTimeout <= 0 {
		cfg.LoginTimeout = defaults.LoginTimeout
	}
	if cfg.RegisterTimeout <= 0 {
		cfg.RegisterTimeout = defaults.RegisterTimeout
	}
	if cfg.AvatarSeedBaseURL == "" {
		cfg.AvatarSeedBaseURL = defaults.AvatarSeedBaseURL
	}
	if cfg.EventTimeout <= 0 {
		cfg.EventTimeout = defaults.EventTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		deps:     deps,
		cfg:      cfg,
		log:      deps.Logger,
		loading:  true,
		watchers: make(map[int]chan model.AuthState),
		ready:    make(chan struct{}),
		inbox:    make(chan any),
		done:     make(chan struct{}),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start はIdPの通知を購読してから現在のセッションを問い合わせ、調停ループを開始する。
// 購読を先に行うため、2つの手順の間に起きた変化も取りこぼさない。
func (m *Manager) Start() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return errors.New("session manager is closed")
	}
	if m.started {
		m.mu.Unlock()
		return errors.New("session manager already started")
	}
	m.started = true
	m.mu.Unlock()

	sessionEvents, unsubscribe := m.deps.Provider.Subscribe()
	m.unsubscribe = unsubscribe

	m.wg.Add(2)
	go m.run(sessionEvents)
	go m.loadSnapshot()

	return nil
}

// WaitReady はloadingがfalseになるまで待つ。
func (m *Manager) WaitReady(ctx context.Context) error {
	select {
	case <-m.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Ready はloadingがfalseになると閉じられるチャネルを返す。
func (m *Manager) Ready() <-chan struct{} {
	return m.ready
}

// Close は購読を解除し、調停ループと実行中のプロフィール取得を停止する。複数回呼び出しても安全。
func (m *Manager) Close() {
	m.closeOnce.Do(func() {
		m.mu.Lock()
		m.closed = true
		m.mu.Unlock()

		if m.unsubscribe != nil {
			m.unsubscribe()
		}
		m.cancel()
		close(m.done)
		m.wg.Wait()

		m.mu.Lock()
		for id, ch := range m.watchers {
			delete(m.watchers, id)
			close(ch)
		}
		m.mu.Unlock()
	})
}

// State は現在の認証状態のスナップショットを返す。
func (m *Manager) State() model.AuthState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

// Watch は状態が変化するたびに最新のスナップショットを受け取るチャネルを返す。
// 受信が遅れた場合は古い値を捨て、最新値だけを保持する。
// チャネルには現在の状態が最初に1件入っている。
func (m *Manager) Watch() (<-chan model.AuthState, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ch := make(chan model.AuthState, 1)
	ch <- m.snapshotLocked()
	if m.closed {
		close(ch)
		return ch, func() {}
	}

	id := m.nextWatcher
	m.nextWatcher++
	m.watchers[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			if c, ok := m.watchers[id]; ok {
				delete(m.watchers, id)
				close(c)
			}
		})
	}
}

// run は調停ループ。Session/Identityと取得したProfileの書き込みはここで直列化される。
func (m *Manager) run(sessionEvents <-chan identity.SessionEvent) {
	defer m.wg.Done()

	for {
		select {
		case <-m.done:
			return
		case ev, ok := <-sessionEvents:
			if !ok {
				sessionEvents = nil
				continue
			}
			m.applySession(string(ev.Kind), ev.Session)
		case msg := <-m.inbox:
			switch r := msg.(type) {
			case snapshotResult:
				m.applySnapshot(r)
			case profileResult:
				m.applyProfile(r)
			}
		}
	}
}

// post は調停ループへメッセージを送る。Close後は破棄する。
func (m *Manager) post(msg any) {
	select {
	case m.inbox <- msg:
	case <-m.done:
	}
}

func (m *Manager) loadSnapshot() {
	defer m.wg.Done()

	sess, err := m.deps.Provider.CurrentSession(m.ctx)
	m.post(snapshotResult{session: sess, err: err})
}

func (m *Manager) applySnapshot(r snapshotResult) {
	if r.err != nil {
		m.log.Warn("failed to load current session",
			slog.String("error", r.err.Error()),
		)
		m.mu.Lock()
		changed := m.settleLocked()
		if changed {
			m.notifyLocked()
		}
		m.mu.Unlock()
		return
	}
	m.applySession("snapshot", r.session)
}

// applySession はセッションを置き換える。identityが変わった場合はプロフィールを破棄し、
// 新しいidentityのプロフィール取得を開始する。
func (m *Manager) applySession(kind string, sess *model.Session) {
	m.mu.Lock()
	prevID := m.session.IdentityID()
	newID := sess.IdentityID()

	m.session = sess
	if newID != prevID {
		m.profile = nil
	}
	m.settleLocked()

	needFetch := newID != "" && m.profile == nil && m.fetching != newID
	if needFetch {
		m.fetching = newID
		m.wg.Add(1)
	}
	m.notifyLocked()
	m.mu.Unlock()

	m.deps.Metrics.RecordSessionTransition(kind)
	m.log.Debug("session applied",
		slog.String("kind", kind),
		slog.String("identity_id", newID),
		slog.String("previous_identity_id", prevID),
	)

	if needFetch {
		go m.fetchProfile(newID)
	}
}

func (m *Manager) fetchProfile(identityID string) {
	defer m.wg.Done()

	p, err := m.deps.Profiles.FindByID(m.ctx, identityID)
	m.post(profileResult{identityID: identityID, profile: p, err: err})
}

// applyProfile はプロフィール取得結果を反映する。
// 書き込み時点のidentityが取得対象と異なる場合は破棄する。
// 結果がnil（未作成）の場合も既存のプロフィールは消さない。
func (m *Manager) applyProfile(r profileResult) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.fetching == r.identityID {
		m.fetching = ""
	}

	if m.session.IdentityID() != r.identityID {
		m.deps.Metrics.RecordStaleWriteDiscarded("profile_fetch")
		m.log.Info("discarded stale profile fetch",
			slog.String("identity_id", r.identityID),
		)
		return
	}
	if r.err != nil {
		m.log.Warn("failed to fetch profile",
			slog.String("identity_id", r.identityID),
			slog.String("error", r.err.Error()),
		)
		return
	}
	if r.profile == nil {
		return
	}

	p := *r.profile
	m.profile = &p
	m.notifyLocked()
}

// adoptProfile は登録直後に作成したプロフィールを、identityが一致する場合のみ反映する。
// 一致しない場合はまだsigned_inが反映されていないため、反映時のプロフィール取得に任せる。
func (m *Manager) adoptProfile(p model.Profile) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session.IdentityID() != p.ID {
		return false
	}
	m.profile = &p
	m.notifyLocked()
	return true
}

// mergeProfile は更新に成功したパッチをメモリ上のプロフィールへ反映する。
func (m *Manager) mergeProfile(identityID string, patch model.ProfilePatch, updatedAt time.Time) (model.Profile, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session.IdentityID() != identityID || m.profile == nil {
		m.deps.Metrics.RecordStaleWriteDiscarded("profile_update")
		return model.Profile{}, false
	}
	merged := patch.ApplyTo(*m.profile)
	merged.UpdatedAt = updatedAt
	m.profile = &merged
	m.notifyLocked()
	return merged, true
}

// settleLocked はloadingを一度だけfalseにする。変化した場合はtrueを返す。
func (m *Manager) settleLocked() bool {
	if !m.loading {
		return false
	}
	m.loading = false
	close(m.ready)
	return true
}

func (m *Manager) snapshotLocked() model.AuthState {
	st := model.AuthState{Loading: m.loading}
	if m.session != nil {
		s := *m.session
		if s.Identity != nil {
			id := *s.Identity
			s.Identity = &id
		}
		st.Session = &s
		st.Identity = s.Identity
		st.IsAuthenticated = s.Identity != nil
	}
	if m.profile != nil {
		p := *m.profile
		st.Profile = &p
	}
	return st
}

// notifyLocked は全watcherへ最新の状態を送る。送信はブロックしない。
func (m *Manager) notifyLocked() {
	st := m.snapshotLocked()
	for _, ch := range m.watchers {
		select {
		case <-ch:
		default:
		}
		ch <- st
	}
}
