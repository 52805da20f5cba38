package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/vidshare/internal/events"
	"github.com/hitoshi/vidshare/internal/identity"
	"github.com/hitoshi/vidshare/internal/model"
)

// 操作名（メトリクスのラベル）
const (
	opLogin         = "login"
	opRegister      = "register"
	opLogout        = "logout"
	opUpdateProfile = "update_profile"
)

// Login はメールアドレスとパスワードでサインインする。
// 入力が空でないことは呼び出し側で検証済みとする。
//
// 成功しても状態は直接書き換えない。IdPからのsigned_in通知を調停ループが反映する。
func (m *Manager) Login(ctx context.Context, email, password string) error {
	start := m.deps.Now()
	err := m.login(ctx, email, password)
	m.record(opLogin, start, err)
	return err
}

func (m *Manager) login(ctx context.Context, email, password string) error {
	if !m.deps.Network.Online(ctx) {
		return model.NewConnectivityError()
	}

	_, err := firstSettled(ctx, m.cfg.LoginTimeout,
		func(c context.Context) (*model.Session, error) {
			return m.deps.Provider.SignInWithPassword(c, email, password)
		},
		func(sess *model.Session, err error) {
			m.discardLate(opLogin, sess.IdentityID(), err)
		},
	)
	if errors.Is(err, errTimerWon) {
		return model.NewTimeoutError("ログイン", m.cfg.LoginTimeout)
	}
	if err != nil {
		return asProviderError(err)
	}
	return nil
}

// Register はアカウントを作成し、対応するプロフィールを作成する。
//
// プロフィールの作成に失敗した場合は補償としてサインアウトしてからStoreErrorを返す。
// IdP側のidentityは削除しないため、プロフィールのないidentityが残りうる。
func (m *Manager) Register(ctx context.Context, username, email, password string) error {
	start := m.deps.Now()
	err := m.register(ctx, username, email, password)
	m.record(opRegister, start, err)
	return err
}

func (m *Manager) register(ctx context.Context, username, email, password string) error {
	if !m.deps.Network.Online(ctx) {
		return model.NewConnectivityError()
	}

	ident, err := firstSettled(ctx, m.cfg.RegisterTimeout,
		func(c context.Context) (*model.Identity, error) {
			return m.deps.Provider.SignUp(c, email, password, identity.SignUpMetadata{Username: username})
		},
		func(ident *model.Identity, err error) {
			id := ""
			if ident != nil {
				id = ident.ID
			}
			m.discardLate(opRegister, id, err)
		},
	)
	if errors.Is(err, errTimerWon) {
		return model.NewTimeoutError("アカウント登録", m.cfg.RegisterTimeout)
	}
	if err != nil {
		return asProviderError(err)
	}
	if ident == nil || ident.ID == "" {
		return model.NewProviderError("IdPがidentityを返しませんでした", nil)
	}

	now := m.deps.Now()
	profile := model.Profile{
		ID:        ident.ID,
		Username:  username,
		Email:     email,
		Avatar:    SeedAvatarURL(m.cfg.AvatarSeedBaseURL, username),
		Bio:       "",
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := m.deps.Profiles.Create(ctx, &profile); err != nil {
		m.compensateSignOut(ctx, ident.ID)
		return model.NewStoreError(err)
	}

	if !m.adoptProfile(profile) {
		m.log.Debug("profile created before session was applied",
			slog.String("identity_id", ident.ID),
		)
	}
	m.publish(events.TypeProfileCreated, profile, nil)
	return nil
}

// compensateSignOut はプロフィール作成に失敗したidentityをサインアウトさせる。
// 呼び出し元がキャンセル済みでも実行する。
func (m *Manager) compensateSignOut(ctx context.Context, identityID string) {
	if err := m.deps.Provider.SignOut(context.WithoutCancel(ctx)); err != nil {
		m.log.Error("compensating sign-out failed",
			slog.String("identity_id", identityID),
			slog.String("error", err.Error()),
		)
	}
	m.log.Warn("identity left without profile",
		slog.String("identity_id", identityID),
	)
}

// Logout はサインアウトする。失敗した場合は状態を変更しない。
func (m *Manager) Logout(ctx context.Context) error {
	start := m.deps.Now()
	err := m.deps.Provider.SignOut(ctx)
	if err != nil {
		err = asProviderError(err)
	}
	m.record(opLogout, start, err)
	return err
}

// UpdateProfile は指定されたフィールドだけをプロフィールストアに書き込み、
// 成功したら同じ内容をメモリ上のプロフィールへ反映する（ストアからの再取得はしない）。
func (m *Manager) UpdateProfile(ctx context.Context, patch model.ProfilePatch) error {
	start := m.deps.Now()
	err := m.updateProfile(ctx, patch)
	m.record(opUpdateProfile, start, err)
	return err
}

func (m *Manager) updateProfile(ctx context.Context, patch model.ProfilePatch) error {
	m.mu.Lock()
	identityID := m.session.IdentityID()
	hasProfile := m.profile != nil
	m.mu.Unlock()

	if identityID == "" || !hasProfile {
		return model.NewNotAuthenticatedError()
	}
	if patch.IsEmpty() {
		return model.NewValidationError("更新するフィールドがありません")
	}

	if m.deps.Policy != nil {
		normalized, err := m.deps.Policy.Normalize(patch)
		if err != nil {
			return err
		}
		patch = normalized
	}

	updatedAt := m.deps.Now()
	if err := m.deps.Profiles.Update(ctx, identityID, patch, updatedAt); err != nil {
		return model.NewStoreError(err)
	}

	merged, ok := m.mergeProfile(identityID, patch, updatedAt)
	if !ok {
		m.log.Info("identity changed during profile update, local merge skipped",
			slog.String("identity_id", identityID),
		)
		return nil
	}
	m.publish(events.TypeProfileUpdated, merged, patch.Fields())
	return nil
}

// discardLate はタイムアウト後に到着した結果を記録して捨てる。
func (m *Manager) discardLate(operation, identityID string, err error) {
	m.deps.Metrics.RecordLateResult(operation)
	attrs := []any{
		slog.String("operation", operation),
		slog.String("identity_id", identityID),
	}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	m.log.Warn("discarded result that arrived after timeout", attrs...)
}

// publish はプロフィールイベントをバックグラウンドで発行する。失敗はログのみ。
func (m *Manager) publish(eventType string, p model.Profile, fields []string) {
	payload, err := events.NewProfileEvent(eventType, p, fields, m.deps.Now())
	if err != nil {
		m.log.Error("failed to build profile event", slog.String("error", err.Error()))
		return
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.wg.Add(1)
	m.mu.Unlock()

	go func() {
		defer m.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), m.cfg.EventTimeout)
		defer cancel()
		if err := m.deps.Events.Publish(ctx, eventType, payload, p.ID); err != nil {
			m.log.Warn("failed to publish profile event",
				slog.String("event_type", eventType),
				slog.String("profile_id", p.ID),
				slog.String("error", err.Error()),
			)
		}
	}()
}

func (m *Manager) record(operation string, start time.Time, err error) {
	outcome := "success"
	if err != nil {
		var apiErr *model.APIError
		if errors.As(err, &apiErr) {
			outcome = apiErr.Code
		} else {
			outcome = "error"
		}
	}
	m.deps.Metrics.RecordAuthOperation(operation, outcome, m.deps.Now().Sub(start))
}

// asProviderError はIdPのエラーをProviderErrorとして返す。
// 既に*model.APIErrorの場合はそのまま返す。
func asProviderError(err error) error {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("identity provider call aborted: %w", err)
	}
	return model.NewProviderError(err.Error(), err)
}
